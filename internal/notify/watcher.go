package notify

// EventKind identifies a queue change.
type EventKind string

const (
	EventAdded   EventKind = "added"
	EventUpdated EventKind = "updated"
	EventRemoved EventKind = "removed"
	EventCleared EventKind = "cleared"
)

// Event is a single queue change delivered to watchers. Notification
// is set for added/updated events.
type Event struct {
	Kind         EventKind     `json:"kind"`
	ID           string        `json:"id,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
}

// Watcher represents a single consumer subscribed to queue changes.
type Watcher struct {
	ch chan Event
}

// C returns the channel that receives queue change events.
func (w *Watcher) C() <-chan Event {
	return w.ch
}

// Watch registers a new watcher. The returned Watcher should be
// removed with Unwatch when done.
func (c *Center) Watch() *Watcher {
	w := &Watcher{ch: make(chan Event, 64)}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers[w] = struct{}{}
	return w
}

// Unwatch removes a watcher. Safe to call multiple times.
func (c *Center) Unwatch(w *Watcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.watchers, w)
}

// broadcastLocked sends an event to all watchers. Non-blocking: drops
// events if a watcher's buffer is full. Caller holds c.mu.
func (c *Center) broadcastLocked(ev Event) {
	for w := range c.watchers {
		select {
		case w.ch <- ev:
		default:
			// Watcher buffer full -- drop to avoid blocking.
		}
	}
}
