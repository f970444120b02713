package reconnect

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netdash/uplink/internal/backoff"
	"github.com/netdash/uplink/internal/notify"
	"github.com/netdash/uplink/internal/util/testutil"
)

// fastPolicy returns a deterministic millisecond-scale backoff for tests.
func fastPolicy() *backoff.Policy {
	return &backoff.Policy{
		Base: 1 * time.Millisecond,
		Max:  10 * time.Millisecond,
		Rand: func() float64 { return 0 },
	}
}

// statusRecorder collects status transitions.
type statusRecorder struct {
	mu       sync.Mutex
	statuses []Status
}

func (r *statusRecorder) record(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *statusRecorder) all() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, len(r.statuses))
	copy(out, r.statuses)
	return out
}

func (r *statusRecorder) last() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return ""
	}
	return r.statuses[len(r.statuses)-1]
}

func TestManager_ConnectSucceeds(t *testing.T) {
	rec := &statusRecorder{}
	center := notify.New(notify.Options{})

	m := New(Config{
		Connect:        func(context.Context) error { return nil },
		Backoff:        fastPolicy(),
		OnStatusChange: rec.record,
		Notify:         center,
	})
	m.Start(context.Background())

	testutil.RequireEventually(t, func() bool { return rec.last() == StatusConnected }, "expected connected status")

	assert.False(t, m.Active())
	assert.Equal(t, 0, m.Attempts(), "attempt count resets on success")
	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, []Status{StatusConnecting, StatusConnected}, rec.all())

	entries := center.List()
	require.Len(t, entries, 1)
	assert.Equal(t, notify.TypeSuccess, entries[0].Type)
}

func TestManager_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	rec := &statusRecorder{}

	m := New(Config{
		Connect: func(context.Context) error {
			if calls.Add(1) < 3 {
				return fmt.Errorf("connection refused")
			}
			return nil
		},
		Backoff:        fastPolicy(),
		OnStatusChange: rec.record,
	})
	m.Start(context.Background())

	testutil.RequireEventually(t, func() bool { return rec.last() == StatusConnected }, "expected eventual success")
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 0, m.Attempts())
}

func TestManager_ExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	rec := &statusRecorder{}
	center := notify.New(notify.Options{})

	m := New(Config{
		Connect: func(context.Context) error {
			calls.Add(1)
			return fmt.Errorf("connection refused")
		},
		MaxAttempts:    3,
		Backoff:        fastPolicy(),
		OnStatusChange: rec.record,
		Notify:         center,
	})
	m.Start(context.Background())

	testutil.RequireEventually(t, func() bool { return m.State() == StateExhausted }, "expected exhaustion")

	assert.False(t, m.Active())
	assert.Equal(t, int32(3), calls.Load(), "exactly MaxAttempts connect calls")
	assert.Equal(t, StatusError, rec.last())

	entries := center.List()
	require.Len(t, entries, 1)
	assert.Equal(t, notify.TypeError, entries[0].Type)
	assert.Equal(t, "Connection failed", entries[0].Title)
}

func TestManager_StartTwiceIsIdempotent(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})

	m := New(Config{
		Connect: func(context.Context) error {
			calls.Add(1)
			<-release
			return nil
		},
		Backoff: fastPolicy(),
	})

	ctx := context.Background()
	m.Start(ctx)
	attemptsAfterFirst := m.Attempts()
	m.Start(ctx) // no-op: already active

	assert.Equal(t, attemptsAfterFirst, m.Attempts(), "second Start must not schedule another attempt")

	testutil.RequireEventually(t, func() bool { return calls.Load() == 1 })
	close(release)
	testutil.RequireEventually(t, func() bool { return !m.Active() })
	assert.Equal(t, int32(1), calls.Load(), "no duplicate timers")
}

func TestManager_StopCancelsPendingTimer(t *testing.T) {
	var calls atomic.Int32

	m := New(Config{
		Connect: func(context.Context) error {
			calls.Add(1)
			return nil
		},
		// Long delay keeps the first attempt pending while we stop.
		Backoff: &backoff.Policy{Base: time.Hour, Max: time.Hour, Rand: func() float64 { return 0 }},
	})
	m.Start(context.Background())
	require.True(t, m.Active())

	m.Stop()
	m.Stop() // idempotent

	assert.False(t, m.Active())
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, calls.Load(), "canceled timer must never fire the callback")
}

func TestManager_StopDiscardsInFlightResult(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	rec := &statusRecorder{}
	center := notify.New(notify.Options{})

	m := New(Config{
		Connect: func(context.Context) error {
			close(started)
			<-release
			return nil // resolves after Stop; must be discarded
		},
		Backoff:        fastPolicy(),
		OnStatusChange: rec.record,
		Notify:         center,
	})
	m.Start(context.Background())

	<-started
	m.Stop()
	close(release)

	time.Sleep(20 * time.Millisecond)
	assert.False(t, m.Active())
	assert.NotContains(t, rec.all(), StatusConnected, "stale completion must not emit connected")
	assert.Zero(t, center.Len(), "stale completion must not notify")
}

func TestManager_ResetZeroesAttempts(t *testing.T) {
	var calls atomic.Int32

	m := New(Config{
		Connect: func(context.Context) error {
			calls.Add(1)
			return fmt.Errorf("fail")
		},
		MaxAttempts: 2,
		Backoff:     fastPolicy(),
	})
	m.Start(context.Background())

	testutil.RequireEventually(t, func() bool { return m.State() == StateExhausted })
	assert.Equal(t, 2, m.Attempts())

	m.Reset()
	assert.Equal(t, 0, m.Attempts())
	assert.Equal(t, StateIdle, m.State())
	assert.False(t, m.Active(), "Reset does not change the active flag")

	// A fresh Start after Reset runs the full budget again.
	m.Start(context.Background())
	testutil.RequireEventually(t, func() bool { return calls.Load() == 4 })
}

func TestManager_NoPerAttemptNotifications(t *testing.T) {
	center := notify.New(notify.Options{})
	var calls atomic.Int32

	m := New(Config{
		Connect: func(context.Context) error {
			if calls.Add(1) < 4 {
				return fmt.Errorf("fail")
			}
			return nil
		},
		Backoff: fastPolicy(),
		Notify:  center,
	})
	m.Start(context.Background())

	testutil.RequireEventually(t, func() bool { return !m.Active() })

	// Only the final success notification, nothing per attempt.
	entries := center.List()
	require.Len(t, entries, 1)
	assert.Equal(t, notify.TypeSuccess, entries[0].Type)
}
