// Package models defines the core data types of the transfer service:
// sessions, transfer plans, transfer records and chunks.
package models

import "time"

// Credentials is the ephemeral access material issued for one session:
// read-only on the source bucket, valid only for a bounded window.
type Credentials struct {
	AccessKeyID     string    `json:"access_key_id"`
	SecretAccessKey string    `json:"secret_access_key"`
	SessionToken    string    `json:"session_token"`
	Region          string    `json:"region"`
	Expiration      time.Time `json:"expiration"`
}

// Session is a single-use, time-boxed authorization bound to one approval
// reference. The token itself is opaque to callers; ID keys the stored
// record. No operation may extend ExpiresAt.
type Session struct {
	Token             string      `json:"-"`
	ID                string      `json:"id"`
	Subject           string      `json:"subject"`
	ApprovalReference string      `json:"approval_reference"`
	IssuedAt          time.Time   `json:"issued_at"`
	ExpiresAt         time.Time   `json:"expires_at"`
	Credentials       Credentials `json:"credentials"`
	Consumed          bool        `json:"consumed"`
}

// IsExpired returns true once the session's validity window has passed.
func (s *Session) IsExpired() bool {
	return !time.Now().Before(s.ExpiresAt)
}

// IsValid reports whether the session can still authorize work:
// unexpired and not yet consumed.
func (s *Session) IsValid() bool {
	return !s.IsExpired() && !s.Consumed
}
