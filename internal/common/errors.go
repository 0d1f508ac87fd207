// Package common defines shared constants and sentinel errors used across
// the FileFerry transfer core. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Validation errors (malformed plan, never retried).
	ErrValidation = errors.New("validation error")

	// Authorization errors (never retried, terminal for the attempt).
	ErrReplayDetected  = errors.New("approval reference already used")
	ErrApprovalInvalid = errors.New("invalid approval reference")
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionConsumed = errors.New("session already consumed")

	// Credential issuance failure at the identity provider. Infrastructure
	// failures around it are transient and retried by the orchestrator.
	ErrCredentialIssuance = errors.New("credential issuance failed")

	// Transfer errors surfaced by the streaming engine.
	ErrTransfer               = errors.New("transfer failed")
	ErrSourceUnreadable       = errors.New("source unreadable")
	ErrDestinationUnreachable = errors.New("destination unreachable")
	ErrAuthRejected           = errors.New("destination rejected credentials")

	// Integrity errors (bytes moved but are wrong, never retried).
	ErrIntegrity           = errors.New("checksum mismatch")
	ErrChecksumUnavailable = errors.New("expected checksum unavailable")

	// Collaborator errors (audit/notification, never affect the transfer's
	// own terminal state).
	ErrCollaborator = errors.New("collaborator call failed")

	// Store-level errors.
	ErrNotFound = errors.New("not found")
)
