// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/asdscreen/internal/domain/screening"
	"github.com/okian/asdscreen/pkg/logger"
)

// Predictor scores one decoded screening payload.
type Predictor interface {
	Predict(ctx context.Context, raw map[string]any) (screening.Result, error)
}

// Dependencies required by HTTP handlers.
type Dependencies interface {
	Predictor
	StatsProvider
}

// Server wires HTTP routes for the screening API.
type Server struct {
	rootHandler    *RootHandler
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	predictHandler *PredictHandler

	allowedOrigins []string
	logger         logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithAllowedOrigins sets the CORS origins; "*" allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.allowedOrigins = origins
		}
	}
}

// WithLogger sets the logger used by handlers and middleware.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{allowedOrigins: []string{"*"}}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.rootHandler = NewRootHandler()
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(deps)
	s.predictHandler = NewPredictHandler(deps, s.logger)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/{$}", MetricsMiddleware(s.rootHandler.HandleRoot, "root"))
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/predict", MetricsMiddleware(s.predictHandler.HandlePredict, "predict"))
}

// Handler wraps next with the global middleware chain: panic recovery,
// request ids and CORS, outermost first.
func (s *Server) Handler(next http.Handler) http.Handler {
	return Chain(next,
		Recovery(s.logger),
		RequestID(),
		CORS(s.allowedOrigins),
	)
}

type errorResponse struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error, fields ...string) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg, Fields: fields})
}
