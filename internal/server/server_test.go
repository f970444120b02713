package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netdash/uplink/internal/feed"
	"github.com/netdash/uplink/internal/notify"
	"github.com/netdash/uplink/internal/reconnect"
)

func newTestServer(t *testing.T) (*Server, *notify.Center, *feed.Server) {
	t.Helper()
	center := notify.New(notify.Options{})
	feedSrv := feed.NewServer(center)
	return New(":0", center, feedSrv), center, feedSrv
}

func TestHealthz(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestStatus(t *testing.T) {
	s, _, feedSrv := newTestServer(t)
	feedSrv.SetStatus(reconnect.StatusConnecting)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "connecting", body["status"])
}

func TestListNotifications(t *testing.T) {
	s, center, _ := newTestServer(t)
	id := center.Add(notify.Input{Type: notify.TypeInfo, Title: "hello"})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notifications", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var entries []notify.Notification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
}

func TestRemoveNotification(t *testing.T) {
	s, center, _ := newTestServer(t)
	id := center.Add(notify.Input{Type: notify.TypeInfo, Title: "hello"})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/notifications/"+id, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, center.Len())

	// Removing again yields 404.
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/notifications/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClearNotifications(t *testing.T) {
	s, center, _ := newTestServer(t)
	center.Add(notify.Input{Type: notify.TypeInfo, Title: "a"})
	center.Add(notify.Input{Type: notify.TypeInfo, Title: "b"})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/notifications", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, center.Len())
}

func TestMethodNotAllowed(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/notifications", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
