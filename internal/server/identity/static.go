package identity

import (
	"context"
	"time"

	"github.com/dmitrijs2005/fileferry/internal/server/models"
)

// StaticProvider returns fixed credentials with a bounded lifetime. Intended
// for development setups against S3-compatible backends (e.g. MinIO) and for
// tests.
type StaticProvider struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Validity        time.Duration
}

func (p *StaticProvider) IssueEphemeralCredentials(_ context.Context, _ string, _ Scope) (*models.Credentials, error) {
	return &models.Credentials{
		AccessKeyID:     p.AccessKeyID,
		SecretAccessKey: p.SecretAccessKey,
		Region:          p.Region,
		Expiration:      time.Now().Add(p.Validity),
	}, nil
}
