package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/senyabanana/tender-orchestrator/internal/models"
	"github.com/senyabanana/tender-orchestrator/internal/socket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMailer struct {
	mu       sync.Mutex
	sent     []EmailMessage
	fail     map[string]error
	attempts map[string]int
}

func (m *recordingMailer) SendEmail(_ context.Context, msg EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attempts == nil {
		m.attempts = make(map[string]int)
	}
	m.attempts[msg.ProviderID]++
	if err := m.fail[msg.ProviderID]; err != nil {
		return err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type recordingRealtime struct {
	mu      sync.Mutex
	sent    map[string][]byte
	offline map[string]bool
}

func (r *recordingRealtime) Send(providerId string, message []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.offline[providerId] {
		return socket.ErrOffline
	}
	if r.sent == nil {
		r.sent = make(map[string][]byte)
	}
	r.sent[providerId] = message
	return nil
}

func testNotification() models.Notification {
	return models.Notification{
		ID:    "n1",
		Bid:   &models.Bid{ID: "b1", Name: "Road repair", Status: models.PublishedBid},
		Event: models.EventStatusChanged,
		Receivers: models.NotificationReceiverSet{
			BidID:             "b1",
			Event:             models.EventStatusChanged,
			ActualReceivers:   []string{"p1", "p2"},
			RealtimeReceivers: []string{"p2", "p3"},
		},
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestNotifier_FansOutToBothChannels(t *testing.T) {
	mailer := &recordingMailer{}
	rt := &recordingRealtime{}
	n := NewNotifier(mailer, rt, discardLogger())

	require.NoError(t, n.Notify(context.Background(), testNotification()))

	require.Len(t, mailer.sent, 2)
	assert.Equal(t, "p1", mailer.sent[0].ProviderID)
	assert.Equal(t, "p2", mailer.sent[1].ProviderID)

	require.Len(t, rt.sent, 2)
	var msg RealtimeMessage
	require.NoError(t, json.Unmarshal(rt.sent["p3"], &msg))
	assert.Equal(t, models.EventStatusChanged, msg.Type)
	assert.Equal(t, "b1", msg.BidID)
}

func TestNotifier_AggregatesChannelErrors(t *testing.T) {
	mailer := &recordingMailer{fail: map[string]error{"p1": errors.New("smtp down")}}
	rt := &recordingRealtime{offline: map[string]bool{"p3": true}}
	n := NewNotifier(mailer, rt, discardLogger())

	err := n.Notify(context.Background(), testNotification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email to p1")
	assert.NotContains(t, err.Error(), "p3")

	// Остальные получатели все равно получили уведомление.
	assert.Len(t, mailer.sent, 1)
	assert.Contains(t, rt.sent, "p2")
}

func TestNotifier_PartialFailureKeepsTransientReceivers(t *testing.T) {
	mailer := &recordingMailer{fail: map[string]error{
		"p1": Permanent(errors.New("status 400")),
		"p2": errors.New("status 503"),
	}}
	var logs bytes.Buffer
	n := NewNotifier(mailer, &recordingRealtime{}, log.New(&logs, "", 0))

	err := n.Notify(context.Background(), testNotification())
	require.Error(t, err)
	assert.False(t, IsPermanent(err))
	assert.NotContains(t, logs.String(), "notification sent")

	var partial *DeliveryError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, []string{"p2"}, partial.Pending.ActualReceivers)
	assert.Empty(t, partial.Pending.RealtimeReceivers)
	assert.NotContains(t, err.Error(), "p1")
}

func TestNotifier_AllRejectedIsPermanent(t *testing.T) {
	mailer := &recordingMailer{fail: map[string]error{
		"p1": Permanent(errors.New("status 400")),
		"p2": Permanent(errors.New("status 404")),
	}}
	n := NewNotifier(mailer, &recordingRealtime{}, discardLogger())

	err := n.Notify(context.Background(), testNotification())
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
}

func TestNotifier_QueueRetriesTransientReceiverOnly(t *testing.T) {
	mailer := &recordingMailer{fail: map[string]error{
		"p1": Permanent(errors.New("status 400")),
		"p2": errors.New("status 503"),
	}}
	n := NewNotifier(mailer, &recordingRealtime{}, discardLogger())
	q := NewQueue(QueueConfig{Workers: 1, Size: 1, MaxRetries: 3, Backoff: time.Millisecond}, discardLogger())
	q.Start(context.Background())

	notification := testNotification()
	notification.Receivers.RealtimeReceivers = nil
	require.True(t, q.Enqueue("notify", func(ctx context.Context) error {
		err := n.Notify(ctx, notification)
		var partial *DeliveryError
		if errors.As(err, &partial) {
			notification.Receivers = partial.Pending
		}
		return err
	}))
	require.NoError(t, q.Shutdown(context.Background()))

	mailer.mu.Lock()
	defer mailer.mu.Unlock()
	assert.Equal(t, 1, mailer.attempts["p1"])
	assert.Equal(t, 4, mailer.attempts["p2"])
	assert.Equal(t, int64(1), q.Stats().Failed)
}

func TestWebhookMailer_PostsEnvelope(t *testing.T) {
	var got Envelope
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Event-ID"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	m := NewWebhookMailer("tender-orchestrator", server.URL, time.Second, discardLogger())
	err := m.SendEmail(context.Background(), EmailMessage{ProviderID: "p1", BidID: "b1", Event: models.EventDocumentPurchase})
	require.NoError(t, err)

	assert.Equal(t, "bid.DocumentPurchased", got.EventType)
	assert.Equal(t, "tender-orchestrator", got.Source)
	assert.Equal(t, "p1", got.Data.ProviderID)
}

func TestWebhookMailer_StatusClassification(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusServiceUnavailable)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer server.Close()
	m := NewWebhookMailer("test", server.URL, time.Second, discardLogger())

	err := m.SendEmail(context.Background(), EmailMessage{ProviderID: "p1"})
	require.Error(t, err)
	assert.False(t, IsPermanent(err))

	status.Store(http.StatusBadRequest)
	err = m.SendEmail(context.Background(), EmailMessage{ProviderID: "p1"})
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
}

func TestWebhookMailer_NoURLLogsOnly(t *testing.T) {
	m := NewWebhookMailer("test", "", time.Second, discardLogger())
	require.NoError(t, m.SendEmail(context.Background(), EmailMessage{ProviderID: "p1"}))
}
