package websocket

import (
	"log"
	"net/http"

	ws "github.com/coder/websocket"
)

// HandleWebSocket returns an HTTP handler that upgrades connections to
// WebSocket and runs them as Hub clients. Each new client immediately
// receives the current state via the hello callback, if set.
func HandleWebSocket(hub *Hub, hello func() Message) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // Allow connections from any origin (device-local UI)
		})
		if err != nil {
			log.Printf("websocket: accept: %v", err)
			return
		}

		client := NewClient(hub, conn)
		if hello != nil {
			if data, err := marshal(hello()); err == nil {
				client.send <- data
			}
		}
		client.Run(r.Context())
	}
}
