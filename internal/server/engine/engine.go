// Package engine moves bytes from the source object store to the destination
// endpoint. It knows nothing about sessions, tickets or workflow state: given
// credentials-backed readers, a plan and a strategy, it streams, retries at
// chunk level and reports a checksum over everything it wrote.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/fileferry/internal/common"
	"github.com/dmitrijs2005/fileferry/internal/logging"
	"github.com/dmitrijs2005/fileferry/internal/server/dest"
	"github.com/dmitrijs2005/fileferry/internal/server/models"
	"github.com/dmitrijs2005/fileferry/internal/server/source"
)

// ProgressFunc receives the running total of bytes transferred. Called from
// the engine's own goroutine; implementations must be cheap.
type ProgressFunc func(bytesTransferred int64)

// Config carries the engine's tunables. All values are configuration, not
// policy baked into code.
type Config struct {
	// ChunkSize is the buffer/chunk size in bytes (default 10 MiB).
	ChunkSize int64
	// Workers bounds concurrency in the parallel-chunked strategy.
	Workers int
	// ChunkRetries bounds retry attempts per chunk.
	ChunkRetries uint64
	// RetryBackoff is the initial exponential backoff step.
	RetryBackoff time.Duration
}

// Result is what a finished transfer reports back.
type Result struct {
	BytesTransferred int64
	// Checksum is the MD5 hex digest over all bytes in object order. The
	// parallel strategy feeds chunks to the digest in chunk order, so the
	// value is independent of worker scheduling and equal to the direct
	// strategy's checksum for the same bytes.
	Checksum string
}

type Engine struct {
	dialer dest.Dialer
	cfg    Config
	logger logging.Logger
}

func NewEngine(dialer dest.Dialer, cfg Config, logger logging.Logger) *Engine {
	return &Engine{dialer: dialer, cfg: cfg, logger: logger}
}

// Transfer executes the selected strategy. The source reader is built by the
// caller from session credentials; size comes from planning metadata.
func (e *Engine) Transfer(ctx context.Context, reader source.Reader, plan *models.TransferPlan,
	size int64, strategy models.Strategy, progress ProgressFunc) (*Result, error) {

	if progress == nil {
		progress = func(int64) {}
	}

	switch strategy {
	case models.StrategyDirect:
		return e.direct(ctx, reader, plan, progress)
	case models.StrategyChunked:
		return e.chunked(ctx, reader, plan, size, progress)
	case models.StrategyParallel:
		return e.parallel(ctx, reader, plan, size, progress)
	default:
		return nil, errors.New("unknown strategy " + string(strategy))
	}
}

func (e *Engine) backoff() retry.Backoff {
	return retry.WithMaxRetries(e.cfg.ChunkRetries, retry.NewExponential(e.cfg.RetryBackoff))
}

// classify decides whether a chunk-level failure may be retried.
// Authentication rejections surface immediately: the ephemeral credentials
// may have just expired and retrying cannot help.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, common.ErrAuthRejected) {
		return err
	}
	if errors.Is(err, common.ErrDestinationUnreachable) || errors.Is(err, common.ErrSourceUnreadable) {
		return retry.RetryableError(err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return retry.RetryableError(err)
}
