package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/lucahq/luca/pkg/audit"
)

// broadcastWriteTimeout bounds how long one stalled client can hold up
// publishing before it is dropped.
var broadcastWriteTimeout = 5 * time.Second

// Broadcaster fans audit events out to connected websocket clients. It
// implements audit.Sink; a slow or dead client is dropped rather than
// allowed to block publishing.
type Broadcaster struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewBroadcaster creates an empty broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{clients: make(map[*websocket.Conn]struct{})}
}

// Add registers a client connection
func (b *Broadcaster) Add(conn *websocket.Conn) {
	b.mu.Lock()
	b.clients[conn] = struct{}{}
	count := len(b.clients)
	b.mu.Unlock()

	log.Debug().Int("clients", count).Msg("Audit stream client connected")
}

// Remove unregisters and closes a client connection
func (b *Broadcaster) Remove(conn *websocket.Conn) {
	b.mu.Lock()
	delete(b.clients, conn)
	b.mu.Unlock()
	conn.Close()
}

// ClientCount returns the number of connected clients
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Publish sends the event to every connected client
func (b *Broadcaster) Publish(event audit.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for conn := range b.clients {
		conn.SetWriteDeadline(time.Now().Add(broadcastWriteTimeout))
		if err := conn.WriteJSON(event); err != nil {
			log.Debug().Err(err).Msg("Dropping audit stream client")
			delete(b.clients, conn)
			conn.Close()
		}
	}
}

// Close disconnects all clients
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for conn := range b.clients {
		conn.Close()
		delete(b.clients, conn)
	}
}
