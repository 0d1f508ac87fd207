package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/fileferry/internal/common"
	"github.com/dmitrijs2005/fileferry/internal/server/models"
)

func sampleRecord() *models.TransferRecord {
	return &models.TransferRecord{
		ID:    "t-1",
		State: models.StateCompleted,
		Plan: models.TransferPlan{
			RequestedBy:       "svc-account",
			ApprovalReference: "REQ0042001",
			Source:            models.Source{Bucket: "exports", Key: "report.csv"},
			Destination:       models.Destination{Protocol: models.ProtocolSFTP, Host: "drop.example.com"},
		},
		BytesTotal:       100,
		BytesTransferred: 100,
	}
}

func TestServiceNowRecorder_RecordOutcome(t *testing.T) {
	var got serviceNowRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/now/table/incident", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "ferry", user)
		assert.Equal(t, "secret", pass)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":{"number":"INC0099001"}}`))
	}))
	defer srv.Close()

	rec := NewServiceNowRecorder(srv.URL, "incident", "ferry", "secret", time.Second)
	number, err := rec.RecordOutcome(context.Background(), sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, "INC0099001", number)
	assert.Equal(t, "t-1", got.CorrelationID)
	assert.Contains(t, got.ShortDescription, "t-1")
}

func TestServiceNowRecorder_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	rec := NewServiceNowRecorder(srv.URL, "incident", "ferry", "secret", time.Second)
	_, err := rec.RecordOutcome(context.Background(), sampleRecord())
	assert.ErrorIs(t, err, common.ErrCollaborator)
}
