// Package identity issues ephemeral, least-privilege credentials for
// transfer sessions. The session broker is its only consumer.
package identity

import (
	"context"

	"github.com/dmitrijs2005/fileferry/internal/server/models"
)

// Scope narrows issued credentials to what one transfer needs: read-only
// access to a single source bucket.
type Scope struct {
	SourceBucket string
}

// Provider issues ephemeral credentials for a subject within a scope.
type Provider interface {
	IssueEphemeralCredentials(ctx context.Context, subject string, scope Scope) (*models.Credentials, error)
}
