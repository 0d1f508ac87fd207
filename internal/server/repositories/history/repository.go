// Package history archives terminal transfer records to long-term storage,
// beyond the bounded retention of the hot record store.
package history

import (
	"context"

	"github.com/dmitrijs2005/fileferry/internal/server/models"
)

type Repository interface {
	// Archive stores a terminal record. Archiving the same record twice
	// overwrites, so retried archival is safe.
	Archive(ctx context.Context, rec *models.TransferRecord) error

	// List returns the most recent records, newest first.
	List(ctx context.Context, limit int) ([]*models.TransferRecord, error)

	// Get returns one archived record by transfer ID.
	Get(ctx context.Context, id string) (*models.TransferRecord, error)
}
