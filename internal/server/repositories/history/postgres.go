package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/fileferry/internal/common"
	"github.com/dmitrijs2005/fileferry/internal/dbx"
	"github.com/dmitrijs2005/fileferry/internal/server/migrations"
	"github.com/dmitrijs2005/fileferry/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetDialect("pgx")
	return gooseUpContext(ctx, db, ".")
}

func (r *PostgresRepository) Archive(ctx context.Context, rec *models.TransferRecord) error {
	query := `
		INSERT INTO transfer_history (
			id, requested_by, approval_reference,
			source_bucket, source_key,
			dest_protocol, dest_host, dest_path,
			strategy, state,
			bytes_total, bytes_transferred,
			checksum_expected, checksum_actual,
			attempt_count, error, error_kind, ticket_ref,
			started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			bytes_transferred = EXCLUDED.bytes_transferred,
			checksum_actual = EXCLUDED.checksum_actual,
			attempt_count = EXCLUDED.attempt_count,
			error = EXCLUDED.error,
			error_kind = EXCLUDED.error_kind,
			ticket_ref = EXCLUDED.ticket_ref,
			completed_at = EXCLUDED.completed_at
		`

	var completed sql.NullTime
	if !rec.CompletedAt.IsZero() {
		completed = sql.NullTime{Time: rec.CompletedAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.Plan.RequestedBy, rec.Plan.ApprovalReference,
		rec.Plan.Source.Bucket, rec.Plan.Source.Key,
		rec.Plan.Destination.Protocol, rec.Plan.Destination.Host, rec.Plan.Destination.RemotePath,
		rec.Strategy, rec.State,
		rec.BytesTotal, rec.BytesTransferred,
		rec.ChecksumExpected, rec.ChecksumActual,
		rec.AttemptCount, rec.Error, rec.ErrorKind, rec.TicketRef,
		rec.StartedAt, completed)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

const selectColumns = `
	id, requested_by, approval_reference,
	source_bucket, source_key,
	dest_protocol, dest_host, dest_path,
	strategy, state,
	bytes_total, bytes_transferred,
	checksum_expected, checksum_actual,
	attempt_count, error, error_kind, ticket_ref,
	started_at, completed_at`

func (r *PostgresRepository) List(ctx context.Context, limit int) ([]*models.TransferRecord, error) {
	query := `SELECT` + selectColumns + `
		FROM transfer_history
		ORDER BY started_at DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	defer rows.Close()

	var recs []*models.TransferRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading rows: %w", err)
	}
	return recs, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.TransferRecord, error) {
	query := `SELECT` + selectColumns + `
		FROM transfer_history
		WHERE id = $1`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transfer %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.TransferRecord, error) {
	var rec models.TransferRecord
	var completed sql.NullTime
	err := row.Scan(
		&rec.ID, &rec.Plan.RequestedBy, &rec.Plan.ApprovalReference,
		&rec.Plan.Source.Bucket, &rec.Plan.Source.Key,
		&rec.Plan.Destination.Protocol, &rec.Plan.Destination.Host, &rec.Plan.Destination.RemotePath,
		&rec.Strategy, &rec.State,
		&rec.BytesTotal, &rec.BytesTransferred,
		&rec.ChecksumExpected, &rec.ChecksumActual,
		&rec.AttemptCount, &rec.Error, &rec.ErrorKind, &rec.TicketRef,
		&rec.StartedAt, &completed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("error scanning row: %w", err)
	}
	if completed.Valid {
		rec.CompletedAt = completed.Time
	}
	rec.Progress(rec.BytesTransferred) // restore the derived percent
	return &rec, nil
}
