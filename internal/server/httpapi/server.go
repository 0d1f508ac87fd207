// Package httpapi exposes the transfer service over HTTP: submit a transfer,
// poll its status, browse history, scrape metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/fileferry/internal/common"
	"github.com/dmitrijs2005/fileferry/internal/logging"
	"github.com/dmitrijs2005/fileferry/internal/server/models"
	"github.com/dmitrijs2005/fileferry/internal/server/progress"
	"github.com/dmitrijs2005/fileferry/internal/server/repositories/history"
)

// Runner starts transfers. Implemented by the orchestrator.
type Runner interface {
	RunWithID(ctx context.Context, id string, plan *models.TransferPlan) (*models.TransferRecord, error)
}

type Server struct {
	httpServer *http.Server
	runner     Runner
	progress   *progress.Store
	history    history.Repository
	logger     logging.Logger
	// baseCtx outlives individual requests; asynchronous transfers run on
	// it so a closed client connection does not cancel a moving transfer.
	baseCtx context.Context
}

func New(baseCtx context.Context, addr string, runner Runner, prog *progress.Store,
	hist history.Repository, logger logging.Logger) *Server {

	s := &Server{
		runner:   runner,
		progress: prog,
		history:  hist,
		logger:   logger,
		baseCtx:  baseCtx,
	}

	router := chi.NewRouter()
	router.Use(requestLogger(logger))
	router.Use(metricsMiddleware)

	router.Post("/api/transfers", s.createTransfer)
	router.Get("/api/transfers/{id}", s.getTransfer)
	router.Get("/api/history", s.listHistory)
	router.Get("/healthz", s.healthz)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.logger.Info(ctx, "http api listening", "addr", s.httpServer.Addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// createTransfer accepts a transfer plan. By default the transfer runs in
// the background and the response is 202 with the ID to poll; with
// ?wait=true the handler blocks and returns the terminal record.
func (s *Server) createTransfer(w http.ResponseWriter, r *http.Request) {
	var plan models.TransferPlan
	if err := json.NewDecoder(r.Body).Decode(&plan); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := plan.Validate(); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	id := uuid.NewString()

	if r.URL.Query().Get("wait") == "true" {
		rec, _ := s.runner.RunWithID(r.Context(), id, &plan)
		s.writeJSON(w, r, http.StatusOK, rec)
		return
	}

	go func() {
		if _, err := s.runner.RunWithID(s.baseCtx, id, &plan); err != nil {
			s.logger.Warn(s.baseCtx, "background transfer failed", "transfer", id, "error", err)
		}
	}()
	s.writeJSON(w, r, http.StatusAccepted, map[string]string{
		"id":    id,
		"state": string(models.StateValidating),
	})
}

// getTransfer looks up a transfer in the hot record store first, then falls
// back to archived history for records past retention.
func (s *Server) getTransfer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := s.progress.Get(r.Context(), id)
	if errors.Is(err, common.ErrNotFound) && s.history != nil {
		rec, err = s.history.Get(r.Context(), id)
	}
	if errors.Is(err, common.ErrNotFound) {
		s.writeError(w, r, http.StatusNotFound, "transfer not found")
		return
	}
	if err != nil {
		s.logger.Error(r.Context(), "transfer lookup failed", "transfer", id, "error", err)
		s.writeError(w, r, http.StatusInternalServerError, "lookup failed")
		return
	}
	s.writeJSON(w, r, http.StatusOK, rec)
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, r, http.StatusNotFound, "history is not configured")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			s.writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	recs, err := s.history.List(r.Context(), limit)
	if err != nil {
		s.logger.Error(r.Context(), "history query failed", "error", err)
		s.writeError(w, r, http.StatusInternalServerError, "history query failed")
		return
	}
	if recs == nil {
		recs = []*models.TransferRecord{}
	}
	s.writeJSON(w, r, http.StatusOK, recs)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error(r.Context(), "failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	s.writeJSON(w, r, status, map[string]string{"error": msg})
}
