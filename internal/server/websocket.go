package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/careset/fhirstore/internal/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// newWebSocketHandler upgrades a connection and subscribes it to hub for
// resourceType's changes. The read loop exists only to detect the close.
func newWebSocketHandler(hub *events.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resourceType := chi.URLParam(r, "resourceType")
		if resourceType == "*" {
			resourceType = ""
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		unsubscribe := hub.Subscribe(conn, resourceType)
		go func() {
			defer unsubscribe()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}
