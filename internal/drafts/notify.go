package drafts

import (
	"context"
	"time"

	"github.com/wolfman30/practice-hub/pkg/logging"
)

// NotificationKind distinguishes server-backed saves from local-only ones.
type NotificationKind string

const (
	NotificationSaved        NotificationKind = "saved"
	NotificationSavedLocally NotificationKind = "saved_locally"
)

// Notification is a transient "your work was saved" signal for the editor.
type Notification struct {
	Kind NotificationKind `json:"kind"`
	Key  string           `json:"key"`
	At   time.Time        `json:"at"`
}

// Notifier surfaces save notifications to whoever is editing.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

// LogNotifier writes notifications to a logger. Used when no editor channel is
// attached to a session.
type LogNotifier struct {
	Logger *logging.Logger
}

func (l LogNotifier) Notify(_ context.Context, n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger.Info("draft saved", "draft_key", n.Key, "kind", string(n.Kind))
}

// Teardown is a host-level "about to terminate" signal.
type Teardown interface {
	// OnTeardown registers fn and returns a function that unregisters it.
	OnTeardown(fn func()) (unsubscribe func())
}
