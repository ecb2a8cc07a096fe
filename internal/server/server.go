// Package server exposes a running machine over HTTP
package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/anggasct/hsm"
	"github.com/anggasct/hsm/pkg/modelfile"
	"github.com/anggasct/hsm/visualization"
)

// Server routes HTTP requests to a model's machine
type Server struct {
	model    *modelfile.Model
	gatherer prometheus.Gatherer
	queue    chan<- hsm.Event
	logger   *zap.Logger
}

// Option configures a Server
type Option func(*Server)

// WithQueue enables asynchronous delivery: POST /events/{name}?async=true
// hands the event to queue instead of firing it
func WithQueue(queue chan<- hsm.Event) Option {
	return func(s *Server) { s.queue = queue }
}

// WithGatherer serves the metrics of gatherer on /metrics
func WithGatherer(gatherer prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = gatherer }
}

// WithLogger sets the request logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewHandler creates the HTTP handler for model
func NewHandler(model *modelfile.Model, opts ...Option) http.Handler {
	s := &Server{
		model:  model,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/state", s.getState)
	r.Get("/graph", s.getGraph)
	r.Post("/events/{name}", s.postEvent)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// StateResponse is the body of GET /state and of fired events
type StateResponse struct {
	Machine string `json:"machine"`
	Event   string `json:"event,omitempty"`
	State   string `json:"state"`
	Status  string `json:"status"`
	Queued  bool   `json:"queued,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) state(event string) StateResponse {
	m := s.model.Machine
	return StateResponse{
		Machine: m.Name(),
		Event:   event,
		State:   m.CurrentState().String(),
		Status:  m.Status().String(),
	}
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.state(""))
}

func (s *Server) getGraph(w http.ResponseWriter, r *http.Request) {
	dot, err := visualization.NewDOTGenerator(s.model.Machine.Describe()).Generate()
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz")
	_, _ = w.Write([]byte(dot))
}

func (s *Server) postEvent(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ev := s.model.Event(name)

	if r.URL.Query().Get("async") == "true" {
		if s.queue == nil {
			s.writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "asynchronous delivery is disabled"})
			return
		}
		select {
		case s.queue <- ev:
			resp := s.state(name)
			resp.Queued = true
			s.writeJSON(w, http.StatusAccepted, resp)
		default:
			s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "event queue is full"})
		}
		return
	}

	if _, err := s.model.Machine.Fire(r.Context(), ev); err != nil {
		s.logger.Warn("event rejected", zap.String("event", name), zap.Error(err))
		s.writeJSON(w, statusOf(err), errorResponse{Error: err.Error(), Code: codeOf(err)})
		return
	}
	s.writeJSON(w, http.StatusOK, s.state(name))
}

func statusOf(err error) int {
	switch hsm.GetErrorCode(err) {
	case hsm.ErrCodeCancelled:
		return http.StatusServiceUnavailable
	case hsm.ErrCodeNotStarted, hsm.ErrCodeDisposed:
		return http.StatusConflict
	case hsm.ErrCodeStepLimitExceeded:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func codeOf(err error) string {
	if code := hsm.GetErrorCode(err); code != hsm.ErrCodeNone {
		return code.String()
	}
	return ""
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("failed to encode response", zap.Int("status", status), zap.Error(err))
	}
}
