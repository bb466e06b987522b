// Package notify delivers best-effort upload notifications. Delivery never
// participates in the success of the operation that triggered it.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Kind distinguishes the two messages sent per upload.
type Kind string

const (
	// KindSenderConfirmation goes to the uploader.
	KindSenderConfirmation Kind = "sender_confirmation"
	// KindRecipientLink goes to the receiver.
	KindRecipientLink Kind = "recipient_link"
)

// Notification is the payload handed to a Notifier.
type Notification struct {
	Kind         Kind          `json:"kind"`
	To           string        `json:"to"`
	Link         string        `json:"link"`
	OriginalName string        `json:"original_name"`
	SizeBytes    int64         `json:"size_bytes"`
	TTL          time.Duration `json:"-"`
	TTLHours     int           `json:"ttl_hours"`
}

// Notifier attempts delivery of one notification.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Subject returns the message subject line.
func (n Notification) Subject() string {
	if n.Kind == KindSenderConfirmation {
		return fmt.Sprintf("Your file %q is ready to share", n.OriginalName)
	}
	return fmt.Sprintf("A file was shared with you: %s", n.OriginalName)
}

// Body returns the plain-text message body.
func (n Notification) Body() string {
	var b strings.Builder
	if n.Kind == KindSenderConfirmation {
		fmt.Fprintf(&b, "Your upload %q (%s) was stored.\n", n.OriginalName, humanize.Bytes(uint64(max(n.SizeBytes, 0))))
	} else {
		fmt.Fprintf(&b, "Someone sent you %q (%s).\n", n.OriginalName, humanize.Bytes(uint64(max(n.SizeBytes, 0))))
	}
	fmt.Fprintf(&b, "Link: %s\n", n.Link)
	fmt.Fprintf(&b, "The link expires in %d hour(s).\n", ttlHours(n.TTL))
	return b.String()
}

func ttlHours(ttl time.Duration) int {
	return int((ttl + time.Hour - 1) / time.Hour)
}

// LogNotifier is the sink transport used when no delivery credentials are
// configured: messages are logged and dropped.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a sink notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With(slog.String("component", "notify"), slog.String("transport", "log"))}
}

func (l *LogNotifier) Notify(ctx context.Context, n Notification) error {
	l.logger.InfoContext(ctx, "notification_sink",
		slog.String("kind", string(n.Kind)),
		slog.String("to", n.To),
		slog.String("subject", n.Subject()),
		slog.String("link", n.Link),
	)
	return nil
}
