// Package server initializes and runs the transfer service: it wires the
// session broker, streaming engine, orchestrator and HTTP API from
// configuration and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/fileferry/internal/logging"
	"github.com/dmitrijs2005/fileferry/internal/server/audit"
	"github.com/dmitrijs2005/fileferry/internal/server/broker"
	"github.com/dmitrijs2005/fileferry/internal/server/config"
	"github.com/dmitrijs2005/fileferry/internal/server/dest"
	"github.com/dmitrijs2005/fileferry/internal/server/engine"
	"github.com/dmitrijs2005/fileferry/internal/server/httpapi"
	"github.com/dmitrijs2005/fileferry/internal/server/identity"
	"github.com/dmitrijs2005/fileferry/internal/server/kvstore"
	"github.com/dmitrijs2005/fileferry/internal/server/metrics"
	"github.com/dmitrijs2005/fileferry/internal/server/models"
	"github.com/dmitrijs2005/fileferry/internal/server/notify"
	"github.com/dmitrijs2005/fileferry/internal/server/orchestrator"
	"github.com/dmitrijs2005/fileferry/internal/server/progress"
	"github.com/dmitrijs2005/fileferry/internal/server/repositories/history"
	"github.com/dmitrijs2005/fileferry/internal/server/source"
)

type App struct {
	config *config.Config
	logger logging.Logger
	orch   *orchestrator.Orchestrator
	prog   *progress.Store
	hist   history.Repository
	db     *sql.DB
}

func NewApp(cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	var kv kvstore.Store
	if cfg.RedisAddr != "" {
		kv = kvstore.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	} else {
		kv = kvstore.NewInMemoryStore()
	}

	var provider identity.Provider
	if cfg.STSRoleARN != "" {
		provider = identity.NewSTSProvider(cfg.STSRoleARN, cfg.S3Region)
	} else {
		provider = &identity.StaticProvider{
			AccessKeyID:     cfg.StaticAccessKey,
			SecretAccessKey: cfg.StaticSecretKey,
			Region:          cfg.S3Region,
			Validity:        cfg.SessionTTL,
		}
	}

	brk := broker.NewBroker(kv, provider, []byte(cfg.SecretKey),
		cfg.SessionTTL, cfg.ApprovalRetention, logger)

	dialer := &dest.ProtocolDialer{Timeout: cfg.DialTimeout}
	eng := engine.NewEngine(dialer, engine.Config{
		ChunkSize:    cfg.ChunkSize,
		Workers:      cfg.Workers,
		ChunkRetries: cfg.ChunkRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, logger)

	prog := progress.NewStore(kv, cfg.RecordRetention)

	var recorder audit.Recorder
	if cfg.ServiceNowURL != "" {
		recorder = audit.NewServiceNowRecorder(cfg.ServiceNowURL, cfg.ServiceNowTable,
			cfg.ServiceNowUser, cfg.ServiceNowPassword, cfg.CollaboratorTimeout)
	}

	var notifier notify.Notifier
	if cfg.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.WebhookURL, cfg.CollaboratorTimeout)
	}

	var hist history.Repository
	var db *sql.DB
	if cfg.DatabaseDSN != "" {
		var err error
		db, err = sql.Open("pgx", cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		if err := history.RunMigrations(context.Background(), db); err != nil {
			return nil, fmt.Errorf("db migration error: %w", err)
		}
		hist = history.NewPostgresRepository(db)
	}

	sources := func(ctx context.Context, creds *models.Credentials) (source.Reader, error) {
		return source.NewS3Reader(ctx, creds, cfg.S3BaseEndpoint)
	}

	orch := orchestrator.New(brk, eng, sources, prog, recorder, notifier, hist,
		metrics.NewCollector(), orchestrator.Config{
			SmallObjectThreshold: cfg.SmallObjectThreshold,
			LargeObjectThreshold: cfg.LargeObjectThreshold,
			AuthRetries:          cfg.AuthRetries,
			TransferRetries:      cfg.TransferRetries,
			RetryBackoff:         cfg.RetryBackoff,
			TransferTimeout:      cfg.TransferTimeout,
		}, logger)

	return &App{config: cfg, logger: logger, orch: orch, prog: prog, hist: hist, db: db}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.New(ctx, app.config.EndpointAddrHTTP, app.orch, app.prog, app.hist, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(ctx, "db close error", "error", err)
		}
	}
}
