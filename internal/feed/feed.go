package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/netdash/uplink/internal/metrics"
	"github.com/netdash/uplink/internal/notify"
	"github.com/netdash/uplink/internal/reconnect"
)

// Subprotocol is the WebSocket subprotocol spoken on /api/events.
const Subprotocol = "netdash.feed.v1"

// Message kinds.
const (
	KindSnapshot     = "snapshot"
	KindNotification = "notification"
	KindStatus       = "status"
)

// Message is a single feed frame, JSON-encoded and zstd-compressed.
type Message struct {
	Kind          string                `json:"kind"`
	Status        reconnect.Status      `json:"status,omitempty"`
	Notifications []notify.Notification `json:"notifications,omitempty"`
	Event         *notify.Event         `json:"event,omitempty"`
}

// Server fans out notification-queue changes and connection-status
// transitions to subscribed dashboard clients.
type Server struct {
	center *notify.Center

	mu       sync.RWMutex
	status   reconnect.Status
	watchers map[chan reconnect.Status]struct{}
}

// NewServer creates a feed server reading from the given center.
func NewServer(center *notify.Center) *Server {
	return &Server{
		center:   center,
		status:   reconnect.StatusDisconnected,
		watchers: make(map[chan reconnect.Status]struct{}),
	}
}

// SetStatus records a status transition and pushes it to connected
// clients. Suitable as a reconnect.Manager OnStatusChange callback.
func (s *Server) SetStatus(st reconnect.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
	for ch := range s.watchers {
		select {
		case ch <- st:
		default:
			// Slow client -- drop; it will catch up on the next change.
		}
	}
}

// Status returns the last recorded connection status.
func (s *Server) Status() reconnect.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Server) watchStatus() chan reconnect.Status {
	ch := make(chan reconnect.Status, 8)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers[ch] = struct{}{}
	return ch
}

func (s *Server) unwatchStatus(ch chan reconnect.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watchers, ch)
}

// Handler returns an http.Handler that serves the event feed over
// WebSocket.
//
// Protocol:
//  1. Client opens a WebSocket with subprotocol "netdash.feed.v1".
//  2. Server sends a snapshot frame (current status + notifications).
//  3. Server streams notification and status frames as they happen.
//
// Frames are zstd-tagged JSON (see EncodeFrame).
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols: []string{Subprotocol},
		})
		if err != nil {
			slog.Debug("feed: accept failed", "error", err)
			return
		}
		defer func() { _ = conn.CloseNow() }()

		metrics.FeedWatchersActive.Inc()
		defer metrics.FeedWatchersActive.Dec()

		ctx := r.Context()

		nw := s.center.Watch()
		defer s.center.Unwatch(nw)
		statusCh := s.watchStatus()
		defer s.unwatchStatus(statusCh)

		// Snapshot first so the client renders current state immediately.
		snap := Message{
			Kind:          KindSnapshot,
			Status:        s.Status(),
			Notifications: s.center.List(),
		}
		if err := writeMessage(ctx, conn, snap); err != nil {
			slog.Debug("feed: snapshot write failed", "error", err)
			return
		}

		// Reads are discarded; the read loop only detects client close.
		readDone := make(chan struct{})
		go func() {
			defer close(readDone)
			for {
				if _, _, err := conn.Read(ctx); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-readDone:
				return
			case ev := <-nw.C():
				msg := Message{Kind: KindNotification, Event: &ev}
				if err := writeMessage(ctx, conn, msg); err != nil {
					slog.Debug("feed: write failed", "error", err)
					return
				}
			case st := <-statusCh:
				msg := Message{Kind: KindStatus, Status: st}
				if err := writeMessage(ctx, conn, msg); err != nil {
					slog.Debug("feed: write failed", "error", err)
					return
				}
			}
		}
	})
}

func writeMessage(ctx context.Context, conn *websocket.Conn, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageBinary, EncodeFrame(payload)); err != nil {
		return err
	}
	metrics.FeedMessagesTotal.Inc()
	return nil
}
