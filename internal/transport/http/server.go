package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kestrel-ai/reactor/internal/reactor"
)

// Server exposes an Orchestrator over HTTP: a handler/middleware chain
// trimmed to the four endpoints §6.5 names.
type Server struct {
	orchestrator *reactor.Orchestrator
	logger       *slog.Logger
	authSecret   string
	startedAt    time.Time

	messagesTotal  *prometheus.CounterVec
	messageLatency prometheus.Histogram
}

// NewServer wires handlers onto mux. authSecret enables bearer-token auth
// on /chat and /stream when non-empty; /health and /metrics are always
// unauthenticated.
func NewServer(orchestrator *reactor.Orchestrator, authSecret string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		orchestrator: orchestrator,
		logger:       logger,
		authSecret:   authSecret,
		startedAt:    time.Now(),
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reactor_messages_total",
			Help: "Messages handled by the orchestrator, labeled by outcome.",
		}, []string{"outcome"}),
		messageLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reactor_message_duration_seconds",
			Help:    "End-to-end HandleMessage latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	prometheus.MustRegister(s.messagesTotal, s.messageLatency)
	return s
}

// Mux builds the HTTP routing table.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	auth := AuthMiddleware(s.authSecret)
	mux.Handle("POST /chat", auth(http.HandlerFunc(s.handleChat)))
	mux.Handle("POST /stream", auth(http.HandlerFunc(s.handleStream)))
	return LoggingMiddleware(s.logger)(mux)
}

type chatRequest struct {
	SessionID string         `json:"session_id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func (s *Server) inbound(r *http.Request, req chatRequest) (reactor.InboundMessage, error) {
	tenantID, ok := TenantFromContext(r.Context())
	if !ok {
		tenantID = r.Header.Get("X-Tenant-Id")
	}
	if tenantID == "" {
		return reactor.InboundMessage{}, ErrMissingBearer
	}
	return reactor.InboundMessage{
		TenantID:  tenantID,
		SessionID: req.SessionID,
		Content:   req.Content,
		Metadata:  req.Metadata,
	}, nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	in, err := s.inbound(r, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	start := time.Now()
	result, err := s.orchestrator.HandleMessage(r.Context(), in)
	s.messageLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		s.messagesTotal.WithLabelValues("error").Inc()
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.messagesTotal.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, result)
}

// handleStream frames the Orchestrator's typed event sequence as SSE,
// following the data: <json>\n\n convention with a terminal data: [DONE].
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	in, err := s.inbound(r, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errNotFlushable)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := s.orchestrator.StreamMessage(r.Context(), in)
	for ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			s.logger.Error("stream: marshal event failed", "err", err)
			continue
		}
		if _, err := w.Write([]byte("data: ")); err != nil {
			return
		}
		if _, err := w.Write(payload); err != nil {
			return
		}
		if _, err := w.Write([]byte("\n\n")); err != nil {
			return
		}
		flusher.Flush()
	}
	if _, err := w.Write([]byte("data: [DONE]\n\n")); err == nil {
		flusher.Flush()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startedAt).String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

var errNotFlushable = httpError("transport: response writer does not support flushing")

type httpError string

func (e httpError) Error() string { return string(e) }
