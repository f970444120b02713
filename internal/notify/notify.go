// Package notify implements the dashboard notification center: a
// bounded, deduplicated, auto-expiring queue of user-facing messages
// with change events fanned out to subscribed consumers.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/netdash/uplink/internal/id"
	"github.com/netdash/uplink/internal/metrics"
	"github.com/netdash/uplink/internal/util/sanitize"
)

// Type classifies a notification for rendering and default duration.
type Type string

const (
	TypeSuccess  Type = "success"
	TypeError    Type = "error"
	TypeWarning  Type = "warning"
	TypeInfo     Type = "info"
	TypeProgress Type = "progress"
)

const (
	// DefaultCapacity is the maximum queue length; the oldest entries
	// are silently dropped on overflow.
	DefaultCapacity = 10

	// DefaultDedupWindow collapses notifications with identical title
	// and message created within this span into one.
	DefaultDedupWindow = 2 * time.Second

	// maxTextLen bounds sanitized title/message length.
	maxTextLen = 512
)

// defaultDuration returns the auto-dismiss duration for a type, or nil
// for sticky types (error, progress).
func defaultDuration(t Type) *time.Duration {
	var d time.Duration
	switch t {
	case TypeSuccess, TypeInfo:
		d = 4 * time.Second
	case TypeWarning:
		d = 5 * time.Second
	default:
		return nil
	}
	return &d
}

// Action describes an optional call-to-action rendered with a
// notification. Activation is handled by the consumer.
type Action struct {
	Label string `json:"label"`
}

// Notification is a single entry in the center's queue.
type Notification struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message,omitempty"`
	Duration  *time.Duration `json:"duration,omitempty"` // nil = no auto-dismiss
	Action    *Action        `json:"action,omitempty"`
	Progress  *int           `json:"progress,omitempty"` // 0-100
	CreatedAt time.Time      `json:"created_at"`
}

// Input describes a notification to add. A nil Duration means "use the
// type default"; set Sticky to force no auto-dismiss regardless of type.
type Input struct {
	Type     Type
	Title    string
	Message  string
	Duration *time.Duration
	Sticky   bool
	Action   *Action
	Progress *int
}

// Patch describes an in-place update; nil fields are left unchanged.
type Patch struct {
	Type     *Type
	Title    *string
	Message  *string
	Duration *time.Duration
	Action   *Action
	Progress *int
}

// Options configures a Center. Zero values select the defaults.
type Options struct {
	Capacity    int
	DedupWindow time.Duration

	// Now is the clock used for creation timestamps and expiry checks.
	// Nil means time.Now. Injectable for tests.
	Now func() time.Time

	// SweepInterval controls how often the Run janitor checks for
	// expired entries. Zero means 250ms.
	SweepInterval time.Duration
}

// Center is the process-wide notification queue. All methods are safe
// for concurrent use.
type Center struct {
	capacity    int
	dedupWindow time.Duration
	now         func() time.Time
	sweepEvery  time.Duration

	mu       sync.Mutex
	entries  []Notification
	watchers map[*Watcher]struct{}
}

// New creates a notification Center.
func New(opts Options) *Center {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.DedupWindow <= 0 {
		opts.DedupWindow = DefaultDedupWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 250 * time.Millisecond
	}
	return &Center{
		capacity:    opts.Capacity,
		dedupWindow: opts.DedupWindow,
		now:         opts.Now,
		sweepEvery:  opts.SweepInterval,
		watchers:    make(map[*Watcher]struct{}),
	}
}

// Add inserts a notification and returns its generated id.
//
// The title and message are sanitized before storage. If an entry with
// the same title and message was created within the dedup window, the
// call is a no-op and returns "" (the existing entry's timestamp is not
// refreshed). On overflow the oldest entries are dropped until the
// queue is back at capacity.
func (c *Center) Add(in Input) string {
	title := sanitize.Text(in.Title, maxTextLen)
	message := sanitize.Text(in.Message, maxTextLen)

	duration := in.Duration
	if duration == nil && !in.Sticky {
		duration = defaultDuration(in.Type)
	}
	if in.Sticky {
		duration = nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for i := range c.entries {
		e := &c.entries[i]
		if e.Title == title && e.Message == message && now.Sub(e.CreatedAt) < c.dedupWindow {
			metrics.NotificationsDedupedTotal.Inc()
			return ""
		}
	}

	n := Notification{
		ID:        id.Generate(),
		Type:      in.Type,
		Title:     title,
		Message:   message,
		Duration:  duration,
		Action:    in.Action,
		Progress:  in.Progress,
		CreatedAt: now,
	}
	c.entries = append(c.entries, n)
	metrics.NotificationsTotal.WithLabelValues(string(in.Type)).Inc()

	for len(c.entries) > c.capacity {
		evicted := c.entries[0]
		c.entries = c.entries[1:]
		metrics.NotificationsEvictedTotal.Inc()
		c.broadcastLocked(Event{Kind: EventRemoved, ID: evicted.ID})
	}

	c.broadcastLocked(Event{Kind: EventAdded, ID: n.ID, Notification: &n})
	return n.ID
}

// Remove deletes the entry with the given id. No-op if absent.
func (c *Center) Remove(notificationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(notificationID)
}

func (c *Center) removeLocked(notificationID string) {
	for i := range c.entries {
		if c.entries[i].ID == notificationID {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			c.broadcastLocked(Event{Kind: EventRemoved, ID: notificationID})
			return
		}
	}
}

// Update merges non-nil patch fields into the entry in place. No-op if
// the id is absent.
func (c *Center) Update(notificationID string, p Patch) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.entries {
		e := &c.entries[i]
		if e.ID != notificationID {
			continue
		}
		if p.Type != nil {
			e.Type = *p.Type
		}
		if p.Title != nil {
			e.Title = sanitize.Text(*p.Title, maxTextLen)
		}
		if p.Message != nil {
			e.Message = sanitize.Text(*p.Message, maxTextLen)
		}
		if p.Duration != nil {
			e.Duration = p.Duration
		}
		if p.Action != nil {
			e.Action = p.Action
		}
		if p.Progress != nil {
			e.Progress = p.Progress
		}
		updated := *e
		c.broadcastLocked(Event{Kind: EventUpdated, ID: notificationID, Notification: &updated})
		return
	}
}

// Clear empties the queue.
func (c *Center) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
	c.broadcastLocked(Event{Kind: EventCleared})
}

// Get returns the entry with the given id.
func (c *Center) Get(notificationID string) (Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.entries {
		if c.entries[i].ID == notificationID {
			return c.entries[i], true
		}
	}
	return Notification{}, false
}

// List returns a copy of the queue in insertion order.
func (c *Center) List() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the current queue length.
func (c *Center) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Run sweeps expired entries until the context is canceled. Entries
// with a nil Duration never expire.
func (c *Center) Run(ctx context.Context) {
	ticker := time.NewTicker(c.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweepExpired()
		}
	}
}

func (c *Center) sweepExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	kept := c.entries[:0]
	for i := range c.entries {
		e := c.entries[i]
		if e.Duration != nil && now.Sub(e.CreatedAt) >= *e.Duration {
			c.broadcastLocked(Event{Kind: EventRemoved, ID: e.ID})
			continue
		}
		kept = append(kept, e)
	}
	c.entries = kept
}
