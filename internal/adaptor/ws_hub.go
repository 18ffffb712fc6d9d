package adaptor

import (
	"io"
	"sync"

	"tcg-server/internal/usecase"
	"tcg-server/pkg/metrics"
)

type wsClient struct {
	id      string
	conn    io.Closer
	manager *usecase.AuthManager
}

// wsHub tracks open connections for the server status report.
type wsHub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

func newWSHub() *wsHub {
	return &wsHub{clients: make(map[*wsClient]struct{})}
}

func (h *wsHub) add(client *wsClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	metrics.WSConnections.Inc()
}

func (h *wsHub) remove(client *wsClient) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
	metrics.WSConnections.Dec()
}

// closeAll closes every tracked connection and returns how many it closed.
// Clients drop out of the hub as their read loops exit.
func (h *wsHub) closeAll() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	closed := 0
	for client := range h.clients {
		if client.conn == nil {
			continue
		}
		_ = client.conn.Close()
		closed++
	}
	return closed
}

// counts returns connected clients and those whose token was valid at the
// last check.
func (h *wsHub) counts() (connected, authenticated int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if client.manager.State() == usecase.StateAuthenticated {
			authenticated++
		}
	}
	return len(h.clients), authenticated
}
