package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"droplink/internal/config"
	"droplink/internal/logging"
)

func sample(kind Kind) Notification {
	return Notification{
		Kind:         kind,
		To:           "bob@example.com",
		Link:         "http://localhost:8080/files/abc/view",
		OriginalName: "report.pdf",
		SizeBytes:    2_500_000,
		TTL:          24 * time.Hour,
	}
}

func TestNotificationBody(t *testing.T) {
	sender := sample(KindSenderConfirmation)
	assert.Contains(t, sender.Subject(), "ready to share")
	assert.Contains(t, sender.Body(), "2.5 MB")
	assert.Contains(t, sender.Body(), sender.Link)
	assert.Contains(t, sender.Body(), "24 hour(s)")

	recipient := sample(KindRecipientLink)
	assert.Contains(t, recipient.Subject(), "report.pdf")
	assert.Contains(t, recipient.Body(), "Someone sent you")
}

func TestTTLHoursRoundsUp(t *testing.T) {
	assert.Equal(t, 1, ttlHours(30*time.Minute))
	assert.Equal(t, 2, ttlHours(2*time.Hour))
	assert.Equal(t, 0, ttlHours(0))
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, NewLogNotifier(logging.Discard()).Notify(context.Background(), sample(KindRecipientLink)))
}

func TestNewSMTPNotifierRequiresCredentials(t *testing.T) {
	_, err := NewSMTPNotifier(config.SMTPConfig{Host: "smtp.example.com"})
	assert.Error(t, err)

	n, err := NewSMTPNotifier(config.SMTPConfig{Host: "smtp.example.com", Port: 587, User: "drop@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "drop@example.com", n.from)
}

func TestSMTPMessageRejectsBadRecipient(t *testing.T) {
	n, err := NewSMTPNotifier(config.SMTPConfig{Host: "smtp.example.com", Port: 587, User: "drop@example.com", Password: "secret"})
	require.NoError(t, err)

	bad := sample(KindRecipientLink)
	bad.To = "not-an-address"
	_, err = n.message(bad)
	assert.Error(t, err)

	_, err = n.message(sample(KindRecipientLink))
	assert.NoError(t, err)
}

func TestWebhookNotifier(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	w, err := NewWebhookNotifier(srv.URL, srv.Client())
	require.NoError(t, err)
	require.NoError(t, w.Notify(context.Background(), sample(KindSenderConfirmation)))

	assert.Equal(t, "sender_confirmation", got["kind"])
	assert.Equal(t, "bob@example.com", got["to"])
	assert.EqualValues(t, 24, got["ttl_hours"])
	assert.NotEmpty(t, got["body"])
}

func TestWebhookNotifierErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	w, err := NewWebhookNotifier(srv.URL, nil)
	require.NoError(t, err)
	assert.Error(t, w.Notify(context.Background(), sample(KindRecipientLink)))
}

func TestNewWebhookNotifierRejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "ftp://x", "localhost"} {
		_, err := NewWebhookNotifier(u, nil)
		assert.Error(t, err, u)
	}
}

type recordingNotifier struct {
	mu    sync.Mutex
	got   []Notification
	fail  bool
	block chan struct{}
}

func (r *recordingNotifier) Notify(ctx context.Context, n Notification) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	if r.fail {
		return errors.New("smtp down")
	}
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func TestDispatcherDelivers(t *testing.T) {
	rec := &recordingNotifier{}
	reg := prometheus.NewRegistry()
	d := NewDispatcher(rec, logging.Discard(), 8, time.Second, reg)

	require.NoError(t, d.Notify(context.Background(), sample(KindSenderConfirmation)))
	require.NoError(t, d.Notify(context.Background(), sample(KindRecipientLink)))
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, 2, rec.count())
	assert.Equal(t, float64(2), testutil.ToFloat64(d.total.WithLabelValues(outcomeSent)))
}

func TestDispatcherFailureIsSwallowed(t *testing.T) {
	rec := &recordingNotifier{fail: true}
	d := NewDispatcher(rec, logging.Discard(), 8, time.Second, nil)

	assert.NoError(t, d.Notify(context.Background(), sample(KindRecipientLink)))
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, float64(1), testutil.ToFloat64(d.total.WithLabelValues(outcomeFailed)))
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	rec := &recordingNotifier{block: make(chan struct{})}
	d := NewDispatcher(rec, logging.Discard(), 1, time.Second, nil)

	// The worker takes the first item and blocks; the second fills the queue.
	require.NoError(t, d.Notify(context.Background(), sample(KindSenderConfirmation)))
	require.Eventually(t, func() bool { return len(d.queue) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, d.Notify(context.Background(), sample(KindRecipientLink)))
	require.NoError(t, d.Notify(context.Background(), sample(KindRecipientLink)))

	assert.Equal(t, float64(1), testutil.ToFloat64(d.total.WithLabelValues(outcomeDropped)))

	close(rec.block)
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, 2, rec.count())
}

func TestDispatcherAfterClose(t *testing.T) {
	rec := &recordingNotifier{}
	d := NewDispatcher(rec, logging.Discard(), 1, time.Second, nil)
	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()))

	assert.NoError(t, d.Notify(context.Background(), sample(KindRecipientLink)))
	assert.Equal(t, 0, rec.count())
}
