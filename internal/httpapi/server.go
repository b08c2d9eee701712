// Package httpapi exposes the check list over HTTP: JSON views, a websocket
// command channel with event subscriptions, and Prometheus metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/idilsaglam/checklist/internal/checklist"
	"github.com/idilsaglam/checklist/internal/metrics"
	"github.com/idilsaglam/checklist/internal/model"
	"github.com/idilsaglam/checklist/internal/services"
)

// Options configure a Server. Zero values disable the optional parts.
type Options struct {
	Logger    *zap.Logger
	Metrics   *metrics.Recorder
	Gatherer  prometheus.Gatherer
	RateLimit float64
	Burst     int
	// EventBuffer sizes each websocket subscription.
	EventBuffer int
}

// Server wires HTTP endpoints to the check list store.
type Server struct {
	store    *checklist.Store
	services *services.Service
	logger   *zap.Logger
	metrics  *metrics.Recorder
	gatherer prometheus.Gatherer
	limiter  *clientLimiter
	buffer   int
	now      func() time.Time

	mu    sync.Mutex
	conns map[*wsConn]struct{}
}

func New(store *checklist.Store, svc *services.Service, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		store:    store,
		services: svc,
		logger:   logger,
		metrics:  opts.Metrics,
		gatherer: opts.Gatherer,
		limiter:  newClientLimiter(opts.RateLimit, opts.Burst),
		buffer:   opts.EventBuffer,
		now:      time.Now,
		conns:    make(map[*wsConn]struct{}),
	}
}

// Handler returns the mux with every route.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.handle(mux, "GET /api/check_list", s.listItems)
	s.handle(mux, "POST /api/check_list/item", s.createItem)
	s.handle(mux, "POST /api/check_list/item/{item_id}", s.updateItem)
	s.handle(mux, "POST /api/check_list/clear_completed", s.clearCompleted)
	s.handle(mux, "POST /api/check_list/reorder", s.reorder)
	s.handle(mux, "POST /api/services/check_list/{service}", s.callService)
	mux.HandleFunc("GET /api/websocket", s.websocket)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// CloseConnections drops every open websocket. http.Server.Shutdown does not
// track hijacked connections, so callers register this with RegisterOnShutdown.
func (s *Server) CloseConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.conn.Close()
	}
}

// handle wraps a JSON route with rate limiting and request accounting.
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		if !s.limiter.allow(clientKey(r), s.now()) {
			s.metrics.Throttled()
			s.respondMessage(rec, "Too many requests", http.StatusTooManyRequests)
		} else {
			h(rec, r)
		}
		s.metrics.Request(r.Pattern, rec.status)
	})
}

func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, s.store.Items(), http.StatusOK)
}

type createPayload struct {
	Name     *string `json:"name"`
	ItemType *string `json:"item_type"`
}

func (s *Server) createItem(w http.ResponseWriter, r *http.Request) {
	var payload createPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.logger.Info("item creation rejected: unable to decode payload", zap.Error(err))
		s.respondMessage(w, "Message format incorrect: invalid JSON", http.StatusBadRequest)
		return
	}
	if payload.Name == nil {
		s.respondMessage(w, "Message format incorrect: required key not provided @ data['name']", http.StatusBadRequest)
		return
	}
	item := s.store.Add(r.Context(), *payload.Name, payload.ItemType)
	s.logger.Debug("item created", zap.String("id", item.ID))
	s.respondJSON(w, item, http.StatusOK)
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("item_id")
	var fields model.Fields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		s.respondMessage(w, "Message format incorrect: invalid JSON", http.StatusBadRequest)
		return
	}
	item, err := s.store.Update(r.Context(), id, fields)
	switch {
	case err == nil:
		s.respondJSON(w, item, http.StatusOK)
	case checklist.IsNotFound(err):
		s.respondMessage(w, "Item not found", http.StatusNotFound)
	case checklist.IsValidation(err):
		s.logger.Info("item update rejected", zap.String("id", id), zap.Error(err))
		s.respondMessage(w, err.Error(), http.StatusBadRequest)
	default:
		s.respondMessage(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) clearCompleted(w http.ResponseWriter, r *http.Request) {
	s.store.ClearCompleted(r.Context())
	s.respondMessage(w, "Cleared completed items.", http.StatusOK)
}

type reorderPayload struct {
	ItemIDs []string `json:"item_ids"`
}

func (s *Server) reorder(w http.ResponseWriter, r *http.Request) {
	var payload reorderPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.ItemIDs == nil {
		s.respondMessage(w, "Message format incorrect: item_ids must be a list of strings", http.StatusBadRequest)
		return
	}
	err := s.store.Reorder(r.Context(), payload.ItemIDs)
	switch {
	case err == nil:
		s.respondMessage(w, "Reordered items.", http.StatusOK)
	case checklist.IsNotFound(err):
		s.respondMessage(w, "One or more item id(s) not found.", http.StatusNotFound)
	case checklist.IsValidation(err):
		s.respondMessage(w, err.Error(), http.StatusBadRequest)
	default:
		s.respondMessage(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) callService(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("service")
	var call services.Call
	// an empty body is a call without data
	if err := json.NewDecoder(r.Body).Decode(&call); err != nil && !errors.Is(err, io.EOF) {
		s.respondMessage(w, "Message format incorrect: invalid JSON", http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := s.services.Call(ctx, name, call); err != nil {
		if errors.Is(err, services.ErrUnknownService) {
			s.respondMessage(w, "Service not found.", http.StatusNotFound)
			return
		}
		s.respondMessage(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.respondMessage(w, "Service "+name+" called.", http.StatusOK)
}

func (s *Server) respondJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response not written", zap.Error(err))
	}
}

// respondMessage keeps error and acknowledgement bodies in one shape.
func (s *Server) respondMessage(w http.ResponseWriter, message string, status int) {
	s.respondJSON(w, map[string]string{"message": message}, status)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
