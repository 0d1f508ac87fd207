package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrijs2005/fileferry/internal/server/models"
)

func TestCollector_ObserveTransfer(t *testing.T) {
	c := NewCollector()

	completedBefore := testutil.ToFloat64(transfersTotal.WithLabelValues("completed", "direct"))
	failedBefore := testutil.ToFloat64(transferFailures.WithLabelValues("integrity error"))
	bytesBefore := testutil.ToFloat64(transferBytesTotal)

	c.TransferStarted()
	assert.Equal(t, float64(1), testutil.ToFloat64(activeTransfers))

	c.ObserveTransfer(&models.TransferRecord{
		State:            models.StateCompleted,
		Strategy:         models.StrategyDirect,
		BytesTransferred: 1024,
		AttemptCount:     1,
	}, time.Second)

	assert.Equal(t, float64(0), testutil.ToFloat64(activeTransfers))
	assert.Equal(t, completedBefore+1, testutil.ToFloat64(transfersTotal.WithLabelValues("completed", "direct")))
	assert.Equal(t, bytesBefore+1024, testutil.ToFloat64(transferBytesTotal))

	c.TransferStarted()
	c.ObserveTransfer(&models.TransferRecord{
		State:        models.StateFailed,
		Strategy:     models.StrategyChunked,
		ErrorKind:    "integrity error",
		AttemptCount: 1,
	}, time.Second)

	assert.Equal(t, failedBefore+1, testutil.ToFloat64(transferFailures.WithLabelValues("integrity error")))
}
