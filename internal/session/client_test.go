package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netdash/uplink/internal/notify"
	"github.com/netdash/uplink/internal/util/testutil"
)

// testBackend is a minimal control-session backend for client tests.
type testBackend struct {
	t     *testing.T
	hello chan frame
	conns chan *websocket.Conn
}

func newTestBackend(t *testing.T) (*testBackend, *httptest.Server) {
	b := &testBackend{
		t:     t,
		hello: make(chan frame, 1),
		conns: make(chan *websocket.Conn, 1),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/uplink/connect", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols: []string{Subprotocol},
		})
		if err != nil {
			return
		}

		// First frame must be the hello.
		_, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}
		var f frame
		_ = json.Unmarshal(data, &f)
		b.hello <- f
		b.conns <- conn

		// Keep reading until the connection drops.
		for {
			if _, _, err := conn.Read(r.Context()); err != nil {
				return
			}
		}
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return b, ts
}

func TestClient_ConnectSendsHello(t *testing.T) {
	backend, ts := newTestBackend(t)

	c := New(Options{
		BackendURL: ts.URL,
		DeviceID:   "dev1",
		AuthToken:  "tok",
		Version:    "1.2.3",
	})
	defer c.Close()

	require.NoError(t, c.Connect(context.Background()))
	assert.True(t, c.Connected())

	select {
	case hello := <-backend.hello:
		assert.Equal(t, kindHello, hello.Kind)
		assert.Equal(t, "dev1", hello.DeviceID)
		assert.Equal(t, "1.2.3", hello.Version)
	case <-time.After(5 * time.Second):
		t.Fatal("no hello frame received")
	}
}

func TestClient_AlertBecomesNotification(t *testing.T) {
	backend, ts := newTestBackend(t)
	center := notify.New(notify.Options{})

	c := New(Options{
		BackendURL: ts.URL,
		DeviceID:   "dev1",
		AuthToken:  "tok",
		Notify:     center,
	})
	defer c.Close()

	require.NoError(t, c.Connect(context.Background()))
	<-backend.hello
	conn := <-backend.conns

	data, err := json.Marshal(frame{
		Kind:  kindAlert,
		Alert: &alert{Severity: "warning", Title: "High CPU", Message: "load 9.8"},
	})
	require.NoError(t, err)
	require.NoError(t, conn.Write(context.Background(), websocket.MessageText, data))

	testutil.RequireEventually(t, func() bool { return center.Len() == 1 })
	entries := center.List()
	assert.Equal(t, notify.TypeWarning, entries[0].Type)
	assert.Equal(t, "High CPU", entries[0].Title)
	assert.Equal(t, "load 9.8", entries[0].Message)
}

func TestClient_OnDisconnectFiresWhenBackendCloses(t *testing.T) {
	backend, ts := newTestBackend(t)

	var disconnects atomic.Int32
	c := New(Options{
		BackendURL: ts.URL,
		DeviceID:   "dev1",
		AuthToken:  "tok",
		OnDisconnect: func(err error) {
			assert.Error(t, err)
			disconnects.Add(1)
		},
	})

	require.NoError(t, c.Connect(context.Background()))
	<-backend.hello
	conn := <-backend.conns

	_ = conn.Close(websocket.StatusGoingAway, "backend restarting")

	testutil.RequireEventually(t, func() bool { return disconnects.Load() == 1 })
	testutil.RequireEventually(t, func() bool { return !c.Connected() })
}

func TestClient_ConnectFailsWhenBackendDown(t *testing.T) {
	c := New(Options{
		BackendURL: "http://127.0.0.1:1", // nothing listens here
		AuthToken:  "tok",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := c.Connect(ctx)
	assert.Error(t, err)
	assert.False(t, c.Connected())
}

func TestAlertType(t *testing.T) {
	assert.Equal(t, notify.TypeSuccess, alertType("success"))
	assert.Equal(t, notify.TypeError, alertType("error"))
	assert.Equal(t, notify.TypeWarning, alertType("warning"))
	assert.Equal(t, notify.TypeInfo, alertType("info"))
	assert.Equal(t, notify.TypeInfo, alertType("anything-else"))
}
