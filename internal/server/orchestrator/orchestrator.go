// Package orchestrator drives one transfer through its state machine:
// validate the plan, obtain and consume a single-use session, select a
// strategy from object size, stream, verify the checksum, then record,
// notify and clean up. Cleanup runs on every path, success or failure.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/fileferry/internal/common"
	"github.com/dmitrijs2005/fileferry/internal/logging"
	"github.com/dmitrijs2005/fileferry/internal/server/audit"
	"github.com/dmitrijs2005/fileferry/internal/server/engine"
	"github.com/dmitrijs2005/fileferry/internal/server/models"
	"github.com/dmitrijs2005/fileferry/internal/server/notify"
	"github.com/dmitrijs2005/fileferry/internal/server/progress"
	"github.com/dmitrijs2005/fileferry/internal/server/source"
)

// SessionBroker is the authorization surface the orchestrator needs.
type SessionBroker interface {
	Authenticate(ctx context.Context, subject, approvalRef string) (*models.Session, error)
	Consume(ctx context.Context, token string) (*models.Session, error)
	Invalidate(ctx context.Context, token string) error
}

// Engine streams the object to the destination under a chosen strategy.
type Engine interface {
	Transfer(ctx context.Context, reader source.Reader, plan *models.TransferPlan,
		size int64, strategy models.Strategy, progress engine.ProgressFunc) (*engine.Result, error)
}

// SourceFactory builds an object-store reader from session credentials.
type SourceFactory func(ctx context.Context, creds *models.Credentials) (source.Reader, error)

// Archiver persists terminal records to long-term history. Optional.
type Archiver interface {
	Archive(ctx context.Context, rec *models.TransferRecord) error
}

// Meter observes transfer lifecycle events. Optional.
type Meter interface {
	TransferStarted()
	ObserveTransfer(rec *models.TransferRecord, elapsed time.Duration)
}

// Config carries the orchestrator's tunables.
type Config struct {
	// SmallObjectThreshold: objects below it go direct (default 100 MiB).
	SmallObjectThreshold int64
	// LargeObjectThreshold: objects above it go parallel-chunked
	// (default 1 GiB); in between, sequential chunked.
	LargeObjectThreshold int64
	// AuthRetries bounds retries of transient authentication failures.
	AuthRetries uint64
	// TransferRetries bounds whole-transfer retries after the engine has
	// exhausted its own per-chunk budget.
	TransferRetries uint64
	// RetryBackoff is the initial exponential backoff step.
	RetryBackoff time.Duration
	// TransferTimeout bounds a single transfer attempt. Zero disables it.
	TransferTimeout time.Duration
}

type Orchestrator struct {
	broker   SessionBroker
	engine   Engine
	sources  SourceFactory
	progress *progress.Store
	recorder audit.Recorder
	notifier notify.Notifier
	history  Archiver
	meter    Meter
	cfg      Config
	logger   logging.Logger
}

func New(broker SessionBroker, eng Engine, sources SourceFactory, prog *progress.Store,
	recorder audit.Recorder, notifier notify.Notifier, history Archiver, meter Meter,
	cfg Config, logger logging.Logger) *Orchestrator {
	return &Orchestrator{
		broker:   broker,
		engine:   eng,
		sources:  sources,
		progress: prog,
		recorder: recorder,
		notifier: notifier,
		history:  history,
		meter:    meter,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run executes one transfer to a terminal state. The returned record is
// always non-nil; the error is the classified cause when the record ends
// in the failed state.
func (o *Orchestrator) Run(ctx context.Context, plan *models.TransferPlan) (*models.TransferRecord, error) {
	return o.RunWithID(ctx, uuid.NewString(), plan)
}

// RunWithID is Run with a caller-chosen transfer ID, so callers that respond
// before the transfer finishes can hand out the ID for status polling.
func (o *Orchestrator) RunWithID(ctx context.Context, id string, plan *models.TransferPlan) (*models.TransferRecord, error) {
	if o.meter != nil {
		o.meter.TransferStarted()
	}
	rec := &models.TransferRecord{
		ID:        id,
		Plan:      *plan,
		State:     models.StateValidating,
		StartedAt: time.Now(),
	}
	o.save(ctx, rec)
	o.logger.Info(ctx, "transfer accepted", "transfer", rec.ID,
		"source", plan.Source.Bucket+"/"+plan.Source.Key, "dest", plan.Destination.Addr())

	if err := plan.Validate(); err != nil {
		return o.finish(ctx, rec, "", err)
	}

	rec.State = models.StateAuthenticating
	o.save(ctx, rec)
	session, err := o.authenticate(ctx, plan)
	if err != nil {
		return o.finish(ctx, rec, "", err)
	}
	rec.SessionID = session.ID

	rec.State = models.StatePlanning
	o.save(ctx, rec)
	reader, err := o.sources(ctx, &session.Credentials)
	if err != nil {
		return o.finish(ctx, rec, session.Token, err)
	}
	info, err := reader.Stat(ctx, plan.Source.Bucket, plan.Source.Key)
	if err != nil {
		return o.finish(ctx, rec, session.Token, err)
	}
	rec.BytesTotal = info.Size
	rec.Strategy = o.selectStrategy(info.Size)

	expected := plan.ExpectedChecksum
	if expected == "" {
		expected, _ = info.MD5()
	}
	if expected == "" {
		return o.finish(ctx, rec, session.Token,
			fmt.Errorf("%w: no checksum in plan and source ETag is not a content digest", common.ErrChecksumUnavailable))
	}
	rec.ChecksumExpected = expected

	// The single-use authorization is spent here. If the window lapsed
	// during planning this fails and no bytes move.
	if _, err := o.broker.Consume(ctx, session.Token); err != nil {
		return o.finish(ctx, rec, session.Token, err)
	}

	rec.State = models.StateTransferring
	o.save(ctx, rec)
	o.logger.Info(ctx, "transfer starting", "transfer", rec.ID,
		"strategy", rec.Strategy, "bytes", rec.BytesTotal)
	res, err := o.transfer(ctx, rec, reader)
	if err != nil {
		return o.finish(ctx, rec, session.Token, err)
	}
	rec.Progress(res.BytesTransferred)
	rec.ChecksumActual = res.Checksum

	rec.State = models.StateVerifying
	o.save(ctx, rec)
	if rec.ChecksumActual != rec.ChecksumExpected {
		return o.finish(ctx, rec, session.Token,
			fmt.Errorf("%w: checksum mismatch: expected %s, wrote %s",
				common.ErrIntegrity, rec.ChecksumExpected, rec.ChecksumActual))
	}

	return o.finish(ctx, rec, session.Token, nil)
}

func (o *Orchestrator) selectStrategy(size int64) models.Strategy {
	switch {
	case size < o.cfg.SmallObjectThreshold:
		return models.StrategyDirect
	case size <= o.cfg.LargeObjectThreshold:
		return models.StrategyChunked
	default:
		return models.StrategyParallel
	}
}

// authenticate obtains a session, retrying transient broker failures.
// Replay and malformed approvals fail immediately.
func (o *Orchestrator) authenticate(ctx context.Context, plan *models.TransferPlan) (*models.Session, error) {
	var session *models.Session
	b := retry.WithMaxRetries(o.cfg.AuthRetries, retry.NewExponential(o.cfg.RetryBackoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		s, err := o.broker.Authenticate(ctx, plan.RequestedBy, plan.ApprovalReference)
		if err != nil {
			if errors.Is(err, common.ErrReplayDetected) || errors.Is(err, common.ErrApprovalInvalid) {
				return err
			}
			o.logger.Warn(ctx, "authentication attempt failed", "error", err)
			return retry.RetryableError(err)
		}
		session = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// transfer runs the engine, retrying the whole strategy after the engine's
// own chunk budget is exhausted. Attempt counting lives here so the record
// reflects every engine invocation.
func (o *Orchestrator) transfer(ctx context.Context, rec *models.TransferRecord,
	reader source.Reader) (*engine.Result, error) {

	var res *engine.Result
	b := retry.WithMaxRetries(o.cfg.TransferRetries, retry.NewExponential(o.cfg.RetryBackoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		rec.AttemptCount++
		if rec.AttemptCount > 1 {
			rec.State = models.StateRetrying
			o.save(ctx, rec)
			o.logger.Warn(ctx, "retrying transfer", "transfer", rec.ID, "attempt", rec.AttemptCount)
			rec.State = models.StateTransferring
			o.save(ctx, rec)
		}

		tctx := ctx
		if o.cfg.TransferTimeout > 0 {
			var cancel context.CancelFunc
			tctx, cancel = context.WithTimeout(ctx, o.cfg.TransferTimeout)
			defer cancel()
		}

		r, err := o.engine.Transfer(tctx, reader, &rec.Plan, rec.BytesTotal, rec.Strategy,
			func(n int64) {
				rec.Progress(n)
				o.save(ctx, rec)
			})
		if err != nil {
			if errors.Is(err, common.ErrAuthRejected) || ctx.Err() != nil {
				return err
			}
			return retry.RetryableError(err)
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// finish walks the tail of the state machine shared by success and failure:
// record the outcome, notify, invalidate the session, persist the terminal
// record. Collaborator failures degrade reporting but never change the
// transfer outcome; they are logged, not swallowed.
func (o *Orchestrator) finish(ctx context.Context, rec *models.TransferRecord,
	token string, cause error) (*models.TransferRecord, error) {

	terminal := models.StateCompleted
	if cause != nil {
		terminal = models.StateFailed
		rec.ErrorKind = kindOf(cause)
		rec.Error = userMessage(cause, rec.AttemptCount)
		o.logger.Error(ctx, "transfer failed", "transfer", rec.ID,
			"kind", rec.ErrorKind, "attempts", rec.AttemptCount, "error", cause)
	}

	rec.State = models.StateRecording
	o.save(ctx, rec)
	if o.recorder != nil {
		snap := *rec
		snap.State = terminal
		if ticket, err := o.recorder.RecordOutcome(ctx, &snap); err != nil {
			o.logger.Warn(ctx, "outcome recording failed, result is degraded",
				"transfer", rec.ID, "error", err)
		} else {
			rec.TicketRef = ticket
		}
	}

	rec.State = models.StateNotifying
	o.save(ctx, rec)
	if o.notifier != nil {
		snap := *rec
		snap.State = terminal
		if err := o.notifier.Notify(ctx, &snap); err != nil {
			o.logger.Warn(ctx, "notification failed", "transfer", rec.ID, "error", err)
		}
	}

	rec.State = models.StateCleaningUp
	o.save(ctx, rec)
	if token != "" {
		if err := o.broker.Invalidate(ctx, token); err != nil {
			o.logger.Warn(ctx, "session invalidation failed", "transfer", rec.ID, "error", err)
		}
	}

	rec.State = terminal
	rec.CompletedAt = time.Now()
	o.save(ctx, rec)
	o.logger.Info(ctx, "transfer finished", "transfer", rec.ID, "state", rec.State,
		"bytes", rec.BytesTransferred, "attempts", rec.AttemptCount)

	if o.history != nil {
		if err := o.history.Archive(ctx, rec); err != nil {
			o.logger.Warn(ctx, "history archival failed", "transfer", rec.ID, "error", err)
		}
	}
	if o.meter != nil {
		o.meter.ObserveTransfer(rec, rec.CompletedAt.Sub(rec.StartedAt))
	}
	return rec, cause
}

func (o *Orchestrator) save(ctx context.Context, rec *models.TransferRecord) {
	if o.progress == nil {
		return
	}
	if err := o.progress.Save(ctx, rec); err != nil {
		o.logger.Warn(ctx, "failed to persist transfer record", "transfer", rec.ID, "error", err)
	}
}
