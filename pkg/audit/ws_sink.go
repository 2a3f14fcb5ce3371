package audit

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketSink pushes audit events to an external collector over a
// websocket connection. Events are buffered in a bounded queue and
// dropped when the collector cannot keep up; delivery is best-effort.
type WebSocketSink struct {
	url     string
	queue   chan Event
	done    chan struct{}
	wg      sync.WaitGroup
	stopped bool
	mu      sync.Mutex
}

const (
	wsQueueSize      = 1024
	wsWriteTimeout   = 5 * time.Second
	wsRedialInterval = 10 * time.Second
)

// NewWebSocketSink creates a sink and starts its delivery loop
func NewWebSocketSink(url string) *WebSocketSink {
	s := &WebSocketSink{
		url:   url,
		queue: make(chan Event, wsQueueSize),
		done:  make(chan struct{}),
	}

	s.wg.Add(1)
	go s.deliver()

	return s
}

// Publish enqueues an event, dropping it if the queue is full
func (s *WebSocketSink) Publish(event Event) {
	select {
	case s.queue <- event:
	default:
		log.Warn().Str("kind", event.Kind).Msg("Audit queue full, event dropped")
	}
}

// Close stops the delivery loop and waits for it to exit
func (s *WebSocketSink) Close() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
	return nil
}

func (s *WebSocketSink) deliver() {
	defer s.wg.Done()

	var conn *websocket.Conn
	defer func() {
		if conn != nil {
			conn.Close()
		}
	}()

	for {
		select {
		case <-s.done:
			return
		case event := <-s.queue:
			if conn == nil {
				conn = s.dial()
				if conn == nil {
					// Collector unreachable, drop the event
					continue
				}
			}

			data, err := json.Marshal(event)
			if err != nil {
				log.Error().Err(err).Msg("Failed to marshal audit event")
				continue
			}

			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Msg("Audit collector write failed, reconnecting")
				conn.Close()
				conn = nil
			}
		}
	}
}

func (s *WebSocketSink) dial() *websocket.Conn {
	dialer := websocket.Dialer{HandshakeTimeout: wsWriteTimeout}
	conn, _, err := dialer.Dial(s.url, nil)
	if err != nil {
		log.Warn().Err(err).Str("url", s.url).Msg("Audit collector unreachable")
		return nil
	}
	return conn
}
