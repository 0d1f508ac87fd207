// Package notify delivers human-facing completion and failure notices.
package notify

import (
	"context"

	"github.com/dmitrijs2005/fileferry/internal/server/models"
)

type Notifier interface {
	Notify(ctx context.Context, rec *models.TransferRecord) error
}
