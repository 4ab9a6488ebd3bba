package events_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/careset/fhirstore/internal/events"
)

func newTestServer(t *testing.T, hub *events.Hub, resourceType string) (*httptest.Server, *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		unsubscribe := hub.Subscribe(conn, resourceType)
		go func() {
			defer unsubscribe()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + srv.URL[len("http"):]
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return srv, conn
}

func TestHub_PublishDeliversToMatchingSubscriber(t *testing.T) {
	hub := events.NewHub(zap.NewNop())
	_, conn := newTestServer(t, hub, "Patient")

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, time.Millisecond)

	hub.Publish(events.Change{Kind: events.Created, ResourceType: "Patient", ID: "p1", VersionID: 1})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(data), `"id":"p1"`)
}

func TestHub_PublishSkipsNonMatchingResourceType(t *testing.T) {
	hub := events.NewHub(zap.NewNop())
	_, conn := newTestServer(t, hub, "Observation")

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, time.Millisecond)

	hub.Publish(events.Change{Kind: events.Created, ResourceType: "Patient", ID: "p1", VersionID: 1})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err) // deadline exceeded: nothing delivered
}
