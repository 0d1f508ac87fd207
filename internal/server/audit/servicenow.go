package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/fileferry/internal/common"
	"github.com/dmitrijs2005/fileferry/internal/server/models"
)

// ServiceNowRecorder files a work note against the configured table for
// every finished transfer, successful or not.
type ServiceNowRecorder struct {
	baseURL  string
	table    string
	username string
	password string
	client   *http.Client
}

func NewServiceNowRecorder(baseURL, table, username, password string, timeout time.Duration) *ServiceNowRecorder {
	return &ServiceNowRecorder{
		baseURL:  baseURL,
		table:    table,
		username: username,
		password: password,
		client:   &http.Client{Timeout: timeout},
	}
}

type serviceNowRequest struct {
	ShortDescription string `json:"short_description"`
	Description      string `json:"description"`
	CorrelationID    string `json:"correlation_id"`
}

type serviceNowResponse struct {
	Result struct {
		Number string `json:"number"`
	} `json:"result"`
}

func (r *ServiceNowRecorder) RecordOutcome(ctx context.Context, rec *models.TransferRecord) (string, error) {
	desc := fmt.Sprintf("transfer %s (%s -> %s://%s) finished in state %s, %d/%d bytes",
		rec.ID, rec.Plan.Source.Key, rec.Plan.Destination.Protocol, rec.Plan.Destination.Host,
		rec.State, rec.BytesTransferred, rec.BytesTotal)
	if rec.Error != "" {
		desc += ": " + rec.Error
	}

	body, err := json.Marshal(serviceNowRequest{
		ShortDescription: fmt.Sprintf("FileFerry transfer %s: %s", rec.ID, rec.State),
		Description:      desc,
		CorrelationID:    rec.ID,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encoding outcome: %w", common.ErrCollaborator, err)
	}

	url := fmt.Sprintf("%s/api/now/table/%s", r.baseURL, r.table)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrCollaborator, err)
	}
	req.SetBasicAuth(r.username, r.password)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrCollaborator, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: ticketing API returned %s", common.ErrCollaborator, resp.Status)
	}

	var out serviceNowResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decoding response: %w", common.ErrCollaborator, err)
	}
	return out.Result.Number, nil
}
