package notify

import (
	"sync"
	"time"
)

// DefaultDuration is how long a message stays visible.
const DefaultDuration = 3 * time.Second

// Kind classifies a message.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// Message is a visible toast.
type Message struct {
	Text      string    `json:"message"`
	Kind      Kind      `json:"type"`
	ShownAt   time.Time `json:"shown_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Toast holds at most one visible message. Showing a new message replaces
// the current one.
type Toast struct {
	mu       sync.Mutex
	current  *Message
	duration time.Duration
	now      func() time.Time
}

// Option configures a Toast.
type Option func(*Toast)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Toast) { t.now = now }
}

// NewToast creates a notifier whose messages expire after d. A non-positive
// d falls back to DefaultDuration.
func NewToast(d time.Duration, opts ...Option) *Toast {
	if d <= 0 {
		d = DefaultDuration
	}
	t := &Toast{duration: d, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Show replaces any visible message with text.
func (t *Toast) Show(text string, kind Kind) Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	m := Message{Text: text, Kind: kind, ShownAt: now, ExpiresAt: now.Add(t.duration)}
	t.current = &m
	return m
}

// Hide dismisses the visible message, if any.
func (t *Toast) Hide() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = nil
}

// Current returns the visible message. Expired messages are cleared.
func (t *Toast) Current() (Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		return Message{}, false
	}
	if !t.now().Before(t.current.ExpiresAt) {
		t.current = nil
		return Message{}, false
	}
	return *t.current, true
}
