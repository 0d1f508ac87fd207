// Package metrics exposes Prometheus metrics for the transfer service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dmitrijs2005/fileferry/internal/server/models"
)

var (
	transfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fileferry_transfers_total",
		Help: "Finished transfers by terminal state and strategy.",
	}, []string{"state", "strategy"})

	transferFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fileferry_transfer_failures_total",
		Help: "Failed transfers by taxonomy kind.",
	}, []string{"kind"})

	transferBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fileferry_transfer_bytes_total",
		Help: "Total bytes delivered to destinations.",
	})

	transferDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fileferry_transfer_duration_seconds",
		Help:    "End-to-end transfer duration from acceptance to terminal state.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600, 1800},
	})

	transferAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fileferry_transfer_attempts",
		Help:    "Engine invocations per transfer, including retries.",
		Buckets: []float64{1, 2, 3, 4, 5},
	})

	activeTransfers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fileferry_active_transfers",
		Help: "Transfers currently in a non-terminal state.",
	})
)

// Collector implements the orchestrator's Meter seam.
type Collector struct{}

func NewCollector() *Collector {
	return &Collector{}
}

// TransferStarted bumps the in-flight gauge. Paired with ObserveTransfer.
func (c *Collector) TransferStarted() {
	activeTransfers.Inc()
}

func (c *Collector) ObserveTransfer(rec *models.TransferRecord, elapsed time.Duration) {
	activeTransfers.Dec()
	transfersTotal.WithLabelValues(string(rec.State), string(rec.Strategy)).Inc()
	transferDuration.Observe(elapsed.Seconds())
	transferAttempts.Observe(float64(rec.AttemptCount))
	transferBytesTotal.Add(float64(rec.BytesTransferred))
	if rec.State == models.StateFailed {
		transferFailures.WithLabelValues(rec.ErrorKind).Inc()
	}
}
