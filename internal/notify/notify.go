package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// Notification is a transient user-visible message.
type Notification struct {
	ID      string    `json:"id"`
	Kind    Kind      `json:"kind"`
	Op      string    `json:"op"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

func newNotification(kind Kind, op, msg string) Notification {
	return Notification{
		ID:      uuid.New().String(),
		Kind:    kind,
		Op:      op,
		Message: msg,
		At:      time.Now().UTC(),
	}
}

// Success builds a confirmation for op.
func Success(op, msg string) Notification {
	if msg == "" {
		msg = op + " succeeded"
	}
	return newNotification(KindSuccess, op, msg)
}

// Failure builds an error notification for op.
func Failure(op, msg string) Notification {
	if msg == "" {
		msg = "Failed to " + op
	}
	return newNotification(KindError, op, msg)
}

// Info builds an informational notification.
func Info(op, msg string) Notification {
	return newNotification(KindInfo, op, msg)
}

// Notifier receives notifications. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to Notifier.
type Func func(Notification)

func (f Func) Notify(n Notification) { f(n) }

// Discard drops every notification.
var Discard Notifier = Func(func(Notification) {})

// Logger writes notifications to a slog.Logger.
type Logger struct {
	L *slog.Logger
}

func (l Logger) Notify(n Notification) {
	lg := l.L
	if lg == nil {
		lg = slog.Default()
	}
	if n.Kind == KindError {
		lg.Warn(n.Message, "op", n.Op, "kind", n.Kind)
		return
	}
	lg.Info(n.Message, "op", n.Op, "kind", n.Kind)
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(n Notification) {
	for _, x := range m {
		x.Notify(n)
	}
}

// Recorder keeps the most recent notifications in memory.
type Recorder struct {
	max int

	mu    sync.Mutex
	items []Notification
}

// NewRecorder keeps at most max notifications (50 when max <= 0).
func NewRecorder(max int) *Recorder {
	if max <= 0 {
		max = 50
	}
	return &Recorder{max: max}
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
	if len(r.items) > r.max {
		r.items = append([]Notification(nil), r.items[len(r.items)-r.max:]...)
	}
}

// Recent returns the recorded notifications, oldest first.
func (r *Recorder) Recent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

// Count returns how many recorded notifications have the given kind.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, it := range r.items {
		if it.Kind == kind {
			n++
		}
	}
	return n
}
