// Package gateway exposes the request pipeline over HTTP: a query
// endpoint, operational reports, Prometheus metrics and a websocket
// stream of audit events.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/lucahq/luca/internal/metrics"
	"github.com/lucahq/luca/pkg/orchestrator"
)

// Config holds gateway server configuration
type Config struct {
	Host        string
	Port        int
	MetricsPath string
}

// Server is the HTTP surface over the orchestrator
type Server struct {
	cfg          Config
	orchestrator *orchestrator.Orchestrator
	metrics      *metrics.Metrics
	broadcaster  *Broadcaster
	server       *http.Server
	upgrader     websocket.Upgrader
}

// NewServer creates a gateway server. The broadcaster should also be
// registered as an audit sink so events reach /ws/audit subscribers.
func NewServer(cfg Config, o *orchestrator.Orchestrator, m *metrics.Metrics, broadcaster *Broadcaster) *Server {
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if broadcaster == nil {
		broadcaster = NewBroadcaster()
	}

	return &Server{
		cfg:          cfg,
		orchestrator: o,
		metrics:      m,
		broadcaster:  broadcaster,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Broadcaster returns the audit event broadcaster
func (s *Server) Broadcaster() *Broadcaster {
	return s.broadcaster
}

// Handler builds the route table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/query", s.handleQuery)
	mux.HandleFunc("/v1/report", s.handleReport)
	mux.HandleFunc("/ws/audit", s.handleAuditStream)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if s.metrics != nil {
		mux.Handle(s.cfg.MetricsPath, s.metrics.Handler())
	}
	return mux
}

// Start begins serving in a background goroutine
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler: s.Handler(),
	}

	log.Info().Str("addr", s.server.Addr).Msg("Starting gateway server")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Gateway server error")
		}
	}()

	return nil
}

// Stop drains clients and shuts the server down
func (s *Server) Stop() error {
	log.Info().Msg("Shutting down gateway server")
	s.broadcaster.Close()

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req orchestrator.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	requestID := uuid.NewString()
	w.Header().Set("X-Request-Id", requestID)

	resp, err := s.orchestrator.HandleRequest(r.Context(), req)
	if err != nil {
		log.Warn().Err(err).Str("request_id", requestID).Msg("Query rejected")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	log.Info().
		Str("request_id", requestID).
		Str("agent", resp.AgentUsed).
		Bool("denied", resp.Denied).
		Dur("elapsed", resp.Elapsed).
		Msg("Query handled")

	status := http.StatusOK
	if resp.Denied {
		status = http.StatusForbidden
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("Failed to encode query response")
	}
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.orchestrator.Report()); err != nil {
		log.Error().Err(err).Msg("Failed to encode report")
	}
}

func (s *Server) handleAuditStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Audit stream upgrade failed")
		return
	}

	s.broadcaster.Add(conn)

	// reader loop exists only to detect close
	go func() {
		defer s.broadcaster.Remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
