// Package broker implements the session broker: it gates every transfer
// behind a single-use, time-boxed authorization bound to one approval
// reference.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/fileferry/internal/common"
	"github.com/dmitrijs2005/fileferry/internal/logging"
	"github.com/dmitrijs2005/fileferry/internal/server/identity"
	"github.com/dmitrijs2005/fileferry/internal/server/kvstore"
	"github.com/dmitrijs2005/fileferry/internal/server/models"
)

const (
	sessionKeyPrefix  = "session:"
	consumedKeyPrefix = "session_used:"
	approvalKeyPrefix = "approval:"
)

// Broker issues and invalidates sessions. There is deliberately no refresh
// or extension operation: once ExpiresAt passes, a fresh approval reference
// is the only way back in.
type Broker struct {
	store             kvstore.Store
	provider          identity.Provider
	secretKey         []byte
	sessionTTL        time.Duration
	approvalRetention time.Duration
	logger            logging.Logger
}

func NewBroker(store kvstore.Store, provider identity.Provider, secretKey []byte,
	sessionTTL, approvalRetention time.Duration, logger logging.Logger) *Broker {
	return &Broker{
		store:             store,
		provider:          provider,
		secretKey:         secretKey,
		sessionTTL:        sessionTTL,
		approvalRetention: approvalRetention,
		logger:            logger,
	}
}

// Authenticate validates the approval reference, marks it consumed, obtains
// ephemeral credentials and persists a session record with the fixed short
// TTL. A reference that was ever used before is rejected with
// common.ErrReplayDetected rather than reused.
func (b *Broker) Authenticate(ctx context.Context, subject, approvalRef string) (*models.Session, error) {
	if !models.ValidApprovalReference(approvalRef) {
		return nil, fmt.Errorf("%w: %q", common.ErrApprovalInvalid, approvalRef)
	}

	first, err := b.store.ConsumeIfUnused(ctx, approvalKeyPrefix+approvalRef, b.approvalRetention)
	if err != nil {
		return nil, fmt.Errorf("marking approval reference: %w", err)
	}
	if !first {
		return nil, fmt.Errorf("%w: %s", common.ErrReplayDetected, approvalRef)
	}

	session, err := b.createSession(ctx, subject, approvalRef)
	if err != nil {
		// The approval must not stay burned when no session was created for
		// it, otherwise a transient issuance failure locks the requester out.
		if delErr := b.store.Delete(ctx, approvalKeyPrefix+approvalRef); delErr != nil {
			b.logger.Error(ctx, "failed to release approval reference", "ref", approvalRef, "error", delErr)
		}
		return nil, err
	}

	b.logger.Info(ctx, "session created",
		"session_id", session.ID, "subject", subject, "ref", approvalRef,
		"expires_at", session.ExpiresAt)

	return session, nil
}

func (b *Broker) createSession(ctx context.Context, subject, approvalRef string) (*models.Session, error) {
	creds, err := b.provider.IssueEphemeralCredentials(ctx, subject, identity.Scope{})
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	now := time.Now()

	token, err := GenerateToken(id, subject, approvalRef, b.secretKey, b.sessionTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: signing token: %w", common.ErrCredentialIssuance, err)
	}

	session := &models.Session{
		Token:             token,
		ID:                id,
		Subject:           subject,
		ApprovalReference: approvalRef,
		IssuedAt:          now,
		ExpiresAt:         now.Add(b.sessionTTL),
		Credentials:       *creds,
	}

	if err := b.putSession(ctx, session, b.sessionTTL); err != nil {
		return nil, err
	}

	return session, nil
}

func (b *Broker) putSession(ctx context.Context, session *models.Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshalling session: %w", err)
	}
	if err := b.store.Put(ctx, sessionKeyPrefix+session.ID, data, ttl); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}
	return nil
}

func (b *Broker) getSession(ctx context.Context, id string) (*models.Session, error) {
	data, err := b.store.Get(ctx, sessionKeyPrefix+id)
	if err != nil {
		return nil, err
	}
	session := &models.Session{}
	if err := json.Unmarshal(data, session); err != nil {
		return nil, fmt.Errorf("unmarshalling session: %w", err)
	}
	return session, nil
}

// IsValid reports whether the token refers to a stored, unexpired,
// unconsumed session.
func (b *Broker) IsValid(ctx context.Context, token string) bool {
	claims, err := ParseToken(token, b.secretKey)
	if err != nil {
		return false
	}
	session, err := b.getSession(ctx, claims.ID)
	if err != nil {
		return false
	}
	return session.IsValid()
}

// CredentialsFor returns the ephemeral credentials held by an unexpired
// session.
func (b *Broker) CredentialsFor(ctx context.Context, token string) (*models.Credentials, error) {
	claims, err := ParseToken(token, b.secretKey)
	if err != nil {
		return nil, err
	}
	session, err := b.getSession(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrSessionNotFound, claims.ID)
	}
	if session.IsExpired() {
		return nil, common.ErrSessionExpired
	}
	return &session.Credentials, nil
}

// Consume atomically claims the session for one transfer and returns it.
// A second Consume of the same token fails with common.ErrSessionConsumed;
// an expired session fails with common.ErrSessionExpired.
func (b *Broker) Consume(ctx context.Context, token string) (*models.Session, error) {
	claims, err := ParseToken(token, b.secretKey)
	if err != nil {
		return nil, err
	}
	session, err := b.getSession(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrSessionNotFound, claims.ID)
	}
	if session.IsExpired() {
		return nil, common.ErrSessionExpired
	}

	first, err := b.store.ConsumeIfUnused(ctx, consumedKeyPrefix+claims.ID, b.approvalRetention)
	if err != nil {
		return nil, fmt.Errorf("consuming session: %w", err)
	}
	if !first {
		return nil, fmt.Errorf("%w: %s", common.ErrSessionConsumed, claims.ID)
	}

	session.Consumed = true
	session.Token = token
	if ttl := time.Until(session.ExpiresAt); ttl > 0 {
		if err := b.putSession(ctx, session, ttl); err != nil {
			b.logger.Warn(ctx, "failed to persist consumed flag", "session_id", claims.ID, "error", err)
		}
	}

	return session, nil
}

// Invalidate marks the session consumed and removes its record immediately,
// without waiting for the TTL. It is idempotent and tolerates tokens whose
// record is already gone.
func (b *Broker) Invalidate(ctx context.Context, token string) error {
	claims, err := ParseToken(token, b.secretKey)
	if err != nil {
		// expired or malformed token: nothing left to invalidate
		return nil
	}

	if _, err := b.store.ConsumeIfUnused(ctx, consumedKeyPrefix+claims.ID, b.approvalRetention); err != nil {
		return fmt.Errorf("marking session consumed: %w", err)
	}
	if err := b.store.Delete(ctx, sessionKeyPrefix+claims.ID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	b.logger.Info(ctx, "session invalidated", "session_id", claims.ID)
	return nil
}
