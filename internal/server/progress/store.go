// Package progress persists transfer records in the key-value store. Records
// outlive the transfer for audit, with a retention TTL much longer than the
// session TTL. Only the orchestrator writes here; the engine reports progress
// through callbacks.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fileferry/internal/server/kvstore"
	"github.com/dmitrijs2005/fileferry/internal/server/models"
)

const recordKeyPrefix = "transfer:"

type Store struct {
	kv        kvstore.Store
	retention time.Duration
}

func NewStore(kv kvstore.Store, retention time.Duration) *Store {
	return &Store{kv: kv, retention: retention}
}

// Save writes the record, refreshing its retention TTL.
func (s *Store) Save(ctx context.Context, rec *models.TransferRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshalling transfer record: %w", err)
	}
	if err := s.kv.Put(ctx, recordKeyPrefix+rec.ID, data, s.retention); err != nil {
		return fmt.Errorf("storing transfer record %s: %w", rec.ID, err)
	}
	return nil
}

// Get returns the record or common.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*models.TransferRecord, error) {
	data, err := s.kv.Get(ctx, recordKeyPrefix+id)
	if err != nil {
		return nil, err
	}
	rec := &models.TransferRecord{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("unmarshalling transfer record %s: %w", id, err)
	}
	return rec, nil
}
