package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Envelope - конверт события, отправляемого во внешний почтовый сервис.
type Envelope struct {
	EventID        string       `json:"event_id"`
	EventType      string       `json:"event_type"`
	IdempotencyKey string       `json:"idempotency_key"`
	Timestamp      time.Time    `json:"timestamp"`
	Source         string       `json:"source"`
	Data           EmailMessage `json:"data"`
}

// WebhookMailer передает письма почтовому сервису через HTTP webhook.
// Без адреса письма только журналируются.
type WebhookMailer struct {
	source     string
	url        string
	httpClient *http.Client
	logger     *log.Logger
}

// NewWebhookMailer создает новый экземпляр WebhookMailer.
func NewWebhookMailer(source, url string, timeout time.Duration, logger *log.Logger) *WebhookMailer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookMailer{
		source:     source,
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// SendEmail отправляет письмо. Ответ 5xx и сетевые ошибки возвращаются для повтора,
// ответ 4xx считается окончательным отказом.
func (m *WebhookMailer) SendEmail(ctx context.Context, msg EmailMessage) error {
	envelope := Envelope{
		EventID:        uuid.NewString(),
		EventType:      "bid." + string(msg.Event),
		IdempotencyKey: fmt.Sprintf("%s_%s_%s_%s", msg.BidID, msg.ProviderID, msg.Event, msg.Status),
		Timestamp:      time.Now().UTC(),
		Source:         m.source,
		Data:           msg,
	}

	if m.url == "" {
		m.logger.Printf("email skipped, no webhook configured: provider=%s bid=%s event=%s",
			msg.ProviderID, msg.BidID, msg.Event)
		return nil
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return Permanent(fmt.Errorf("marshal email: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-ID", envelope.EventID)
	req.Header.Set("X-Event-Type", envelope.EventType)
	req.Header.Set("Idempotency-Key", envelope.IdempotencyKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email webhook: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("email webhook: status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return Permanent(fmt.Errorf("email webhook rejected: status %d", resp.StatusCode))
	}
	return nil
}
