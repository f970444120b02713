// Package session maintains the control WebSocket session between the
// uplink daemon and the router-management backend.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/netdash/uplink/internal/metrics"
	"github.com/netdash/uplink/internal/notify"
)

// Subprotocol is the WebSocket subprotocol spoken on the control session.
const Subprotocol = "netdash.control.v1"

// Frame kinds exchanged on the control session.
const (
	kindHello     = "hello"
	kindHeartbeat = "heartbeat"
	kindAlert     = "alert"
)

// frame is a single JSON message on the control session.
type frame struct {
	Kind     string `json:"kind"`
	DeviceID string `json:"device_id,omitempty"`
	Version  string `json:"version,omitempty"`
	Alert    *alert `json:"alert,omitempty"`
}

// alert is a backend-pushed event surfaced to the user as a notification.
type alert struct {
	Severity string `json:"severity"` // success | error | warning | info
	Title    string `json:"title"`
	Message  string `json:"message,omitempty"`
}

// Options configures a session Client.
type Options struct {
	BackendURL string
	DeviceID   string
	AuthToken  string
	Version    string

	// HeartbeatIdle is the idle span after which a heartbeat frame is
	// sent. Zero means 5s.
	HeartbeatIdle time.Duration

	// Notify receives backend alerts as user-facing notifications.
	Notify *notify.Center

	// OnDisconnect is invoked once per established session when its
	// read loop ends.
	OnDisconnect func(err error)
}

// Client manages the control session to the backend. Connect
// establishes a session; the read loop runs in the background until
// the connection drops.
type Client struct {
	opts Options

	mu       sync.Mutex
	conn     *websocket.Conn
	lastSend time.Time
}

// New creates a session client.
func New(opts Options) *Client {
	if opts.HeartbeatIdle <= 0 {
		opts.HeartbeatIdle = 5 * time.Second
	}
	return &Client{opts: opts}
}

// Connect dials the backend and performs the hello handshake. It
// returns nil once the session is established; a background goroutine
// then owns the connection until it drops, at which point OnDisconnect
// fires. Suitable as a reconnect.Manager connect callback.
func (c *Client) Connect(ctx context.Context) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.opts.AuthToken)

	conn, _, err := websocket.Dial(ctx, c.controlURL(), &websocket.DialOptions{
		HTTPHeader:   header,
		Subprotocols: []string{Subprotocol},
	})
	if err != nil {
		return fmt.Errorf("dial backend: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.lastSend = time.Now()
	c.mu.Unlock()

	if err := c.send(ctx, frame{Kind: kindHello, DeviceID: c.opts.DeviceID, Version: c.opts.Version}); err != nil {
		_ = conn.CloseNow()
		c.clearConn(conn)
		return fmt.Errorf("hello: %w", err)
	}

	slog.Info("connected to backend", "url", c.opts.BackendURL)
	metrics.SessionConnectsTotal.Inc()
	metrics.SessionConnected.Set(1)

	sessionCtx, cancel := context.WithCancel(ctx)
	go c.heartbeatLoop(sessionCtx)
	go func() {
		defer cancel()
		err := c.readLoop(sessionCtx, conn)
		c.clearConn(conn)
		metrics.SessionConnected.Set(0)
		metrics.SessionDisconnectsTotal.Inc()
		if c.opts.OnDisconnect != nil {
			c.opts.OnDisconnect(err)
		}
	}()
	return nil
}

// Close tears down the current session, if any.
func (c *Client) Close() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}
}

// Connected reports whether a session is currently established.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// controlURL converts the configured backend base URL to the control
// session endpoint.
func (c *Client) controlURL() string {
	base := strings.TrimSuffix(c.opts.BackendURL, "/")
	return base + "/api/uplink/connect"
}

// send writes a frame. The mutex is held for the whole write to
// prevent interleaved frames from concurrent senders.
func (c *Client) send(ctx context.Context, f frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return err
	}
	c.lastSend = time.Now()
	return nil
}

// clearConn drops the stored connection if it is still the given one.
func (c *Client) clearConn(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.conn = nil
	}
}

// readLoop dispatches backend frames until the connection drops.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("receive: %w", err)
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			slog.Warn("malformed backend frame", "error", err)
			continue
		}
		c.handleFrame(f)
	}
}

func (c *Client) handleFrame(f frame) {
	switch f.Kind {
	case kindHeartbeat:
		// Ignore heartbeat responses.

	case kindAlert:
		if f.Alert == nil || c.opts.Notify == nil {
			return
		}
		c.opts.Notify.Add(notify.Input{
			Type:    alertType(f.Alert.Severity),
			Title:   f.Alert.Title,
			Message: f.Alert.Message,
		})

	default:
		slog.Warn("unhandled backend frame", "kind", f.Kind)
	}
}

// alertType maps a backend severity to a notification type.
func alertType(severity string) notify.Type {
	switch severity {
	case "success":
		return notify.TypeSuccess
	case "error":
		return notify.TypeError
	case "warning":
		return notify.TypeWarning
	default:
		return notify.TypeInfo
	}
}

// heartbeatLoop keeps the session alive while it is otherwise idle.
func (c *Client) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			idle := time.Since(c.lastSend)
			c.mu.Unlock()

			if idle >= c.opts.HeartbeatIdle {
				if err := c.send(ctx, frame{Kind: kindHeartbeat}); err != nil {
					slog.Warn("heartbeat send failed", "error", err)
					return
				}
			}
		}
	}
}
