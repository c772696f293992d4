package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/r3e-network/healthcheck/health"
)

// streamEvent is the wire shape of one status-change notification pushed to
// a /health/stream subscriber.
type streamEvent struct {
	Check string              `json:"check"`
	Ok    bool                `json:"ok"`
	Axes  map[health.Axis]bool `json:"axes"`
}

var upgrader = websocket.Upgrader{
	// Health status updates carry no user-supplied cross-origin payload and
	// are read-only, so any origin may subscribe.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStream upgrades the connection to a WebSocket and relays every
// subsequent observer event to the client as JSON until the connection
// closes or a write fails. Registry shutdown stops further events but does
// not close the connection.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events := make(chan streamEvent, 64)
	unsubscribe := s.registry.SubscribeToStatusChanges(func(name string, result *health.CheckResult) {
		select {
		case events <- streamEvent{Check: name, Ok: result.Ok(), Axes: map[health.Axis]bool(result.AggregatedAxes)}:
		default:
			// Slow subscriber: drop rather than block the shared observer
			// goroutine that every other subscriber and the registry's
			// own publish path also depends on.
		}
	})
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	pinger := time.NewTicker(30 * time.Second)
	defer pinger.Stop()

	for {
		select {
		case <-closed:
			return
		case event := <-events:
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-pinger.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
