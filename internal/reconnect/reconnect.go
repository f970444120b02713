// Package reconnect implements the connection supervisor: a stateful
// controller that repeatedly invokes a connect callback with jittered
// exponential delays, up to an attempt bound, reporting status
// transitions to an observer and the notification center.
package reconnect

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/netdash/uplink/internal/backoff"
	"github.com/netdash/uplink/internal/metrics"
	"github.com/netdash/uplink/internal/notify"
)

// Status is the externally visible connection status.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// State is the manager's internal lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateScheduled  State = "scheduled"
	StateConnecting State = "connecting"
	StateExhausted  State = "exhausted"
)

// DefaultMaxAttempts bounds consecutive failed connection attempts.
const DefaultMaxAttempts = 10

// ConnectFunc establishes a connection. It must return nil on success
// and an error on failure; errors are swallowed and drive rescheduling.
type ConnectFunc func(ctx context.Context) error

// Config configures a Manager.
type Config struct {
	// Connect is the attempt callback. Required.
	Connect ConnectFunc

	// MaxAttempts bounds consecutive failures before the manager gives
	// up. Non-positive values select DefaultMaxAttempts.
	MaxAttempts int

	// OnStatusChange, when set, is invoked with the new status on
	// every transition. Called without internal locks held.
	OnStatusChange func(Status)

	// Notify, when set, receives notifications for success and
	// terminal failure (never per attempt). Quiet suppresses them.
	Notify *notify.Center
	Quiet  bool

	// Backoff computes the delay before each attempt. Nil means
	// backoff.Default().
	Backoff *backoff.Policy
}

// Manager owns at most one pending timer at a time and runs attempts
// strictly sequentially. A Manager instance supervises one connection
// concern; independent concerns need separate instances.
type Manager struct {
	connect     ConnectFunc
	maxAttempts int
	onStatus    func(Status)
	notify      *notify.Center
	quiet       bool
	policy      *backoff.Policy

	mu       sync.Mutex
	active   bool
	attempts int
	state    State
	epoch    uint64 // bumped on Start/Stop; stale completions are discarded
	timer    *time.Timer
	cancel   context.CancelFunc
}

// New creates a Manager. It does nothing until Start is called.
func New(cfg Config) *Manager {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Backoff == nil {
		cfg.Backoff = backoff.Default()
	}
	return &Manager{
		connect:     cfg.Connect,
		maxAttempts: cfg.MaxAttempts,
		onStatus:    cfg.OnStatusChange,
		notify:      cfg.Notify,
		quiet:       cfg.Quiet,
		policy:      cfg.Backoff,
		state:       StateIdle,
	}
}

// Start begins the reconnection cycle. No-op if already active. The
// first attempt is scheduled immediately with the attempt-0 delay.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.active {
		m.mu.Unlock()
		return
	}
	m.active = true
	m.epoch++
	epoch := m.epoch
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	m.schedule(runCtx, epoch)
}

// Stop deactivates the manager and cancels any pending timer. A timer
// that has not fired yet will never invoke the connect callback.
// Idempotent. An attempt already in flight cannot be preempted, but
// its result is discarded via the epoch check.
func (m *Manager) Stop() {
	m.mu.Lock()
	wasActive := m.active
	m.active = false
	m.epoch++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.state != StateExhausted {
		m.state = StateIdle
	}
	m.mu.Unlock()

	if wasActive {
		m.emit(StatusDisconnected)
	}
}

// Reset zeroes the attempt counter. It does not change the active
// flag; call Stop first to interrupt a running cycle.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = 0
	if m.state == StateExhausted {
		m.state = StateIdle
	}
}

// Attempts returns the current attempt count.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Active reports whether a reconnection cycle is running.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// State returns the manager's lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// schedule arms the timer for the next attempt, or transitions to
// exhausted when the attempt budget is spent.
func (m *Manager) schedule(ctx context.Context, epoch uint64) {
	m.mu.Lock()
	if !m.active || epoch != m.epoch {
		m.mu.Unlock()
		return
	}

	if m.attempts >= m.maxAttempts {
		m.active = false
		m.state = StateExhausted
		m.timer = nil
		attempts := m.attempts
		m.mu.Unlock()

		slog.Error("reconnection attempts exhausted", "attempts", attempts)
		m.emit(StatusError)
		if m.notify != nil && !m.quiet {
			m.notify.Add(notify.Input{
				Type:    notify.TypeError,
				Title:   "Connection failed",
				Message: "Unable to reach the router backend. Check the network and restart the connection.",
			})
		}
		return
	}

	delay := m.policy.Delay(m.attempts)
	m.attempts++
	m.state = StateScheduled
	metrics.ReconnectAttemptsTotal.Inc()
	m.timer = time.AfterFunc(delay, func() {
		m.attempt(ctx, epoch)
	})
	attempt := m.attempts
	m.mu.Unlock()

	slog.Debug("reconnect attempt scheduled", "attempt", attempt, "delay", delay)
	m.emit(StatusConnecting)
}

// attempt invokes the connect callback and applies its result, unless
// the manager was stopped or restarted in the meantime.
func (m *Manager) attempt(ctx context.Context, epoch uint64) {
	m.mu.Lock()
	if !m.active || epoch != m.epoch || ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	m.state = StateConnecting
	m.timer = nil
	m.mu.Unlock()

	err := m.connect(ctx)

	m.mu.Lock()
	if epoch != m.epoch {
		// Stale completion from before a Stop/Start. Discard.
		m.mu.Unlock()
		return
	}

	if err == nil {
		m.attempts = 0
		m.active = false
		m.state = StateIdle
		m.mu.Unlock()

		m.emit(StatusConnected)
		if m.notify != nil && !m.quiet {
			m.notify.Add(notify.Input{
				Type:  notify.TypeSuccess,
				Title: "Connection restored",
			})
		}
		return
	}

	if !m.active {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	slog.Warn("connect attempt failed, rescheduling", "error", err)
	m.schedule(ctx, epoch)
}

func (m *Manager) emit(s Status) {
	if m.onStatus != nil {
		m.onStatus(s)
	}
}
