package notify

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

// WebhookNotifier posts a JSON summary to a chat webhook.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{url: url, client: &http.Client{Timeout: timeout}}
}

type webhookMessage struct {
	Text string `json:"text"`
}

func (n *WebhookNotifier) Notify(ctx context.Context, rec *models.TransferRecord) error {
	text := fmt.Sprintf("transfer %s for %s: %s (%d/%d bytes)",
		rec.ID, rec.Plan.RequestedBy, rec.State, rec.BytesTransferred, rec.BytesTotal)
	if rec.Error != "" {
		text += " - " + rec.Error
	}
	if rec.TicketRef != "" {
		text += " [" + rec.TicketRef + "]"
	}

	body, err := json.Marshal(webhookMessage{Text: text})
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrCollaborator, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrCollaborator, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrCollaborator, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: webhook returned %s", common.ErrCollaborator, resp.Status)
	}
	return nil
}
