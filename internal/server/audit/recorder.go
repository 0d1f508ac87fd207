// Package audit records transfer outcomes with the external ticketing
// system. Recording is best-effort: a failure here degrades a successful
// transfer's reporting but never rolls the transfer back.
package audit

import (
	"context"

	"github.com/dmitrijs2005/fileferry/internal/server/models"
)

// Recorder logs the terminal outcome of a transfer and returns a ticket
// reference when the collaborator issues one.
type Recorder interface {
	RecordOutcome(ctx context.Context, rec *models.TransferRecord) (string, error)
}
