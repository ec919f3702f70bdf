// Package http exposes the ResScene service over a JSON REST API built on chi.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/resscene/internal/logging"
	"github.com/aretw0/resscene/pkg/domain"
	"github.com/aretw0/resscene/pkg/service"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server holds the handlers' dependencies.
type Server struct {
	Service *service.Service
	Streams *StreamManager

	metrics http.Handler
	spec    *openapi3.T
	version string
	logger  *slog.Logger
}

type Option func(*Server)

// WithMetrics mounts a Prometheus handler on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithStreams shares a StreamManager, typically one whose Hooks feed the store and activator.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithVersion sets the application version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates the HTTP handler. It fails if the embedded API document is invalid.
func NewHandler(svc *service.Service, opts ...Option) (http.Handler, error) {
	server := &Server{
		Service: svc,
		version: "dev",
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}
	if server.Streams == nil {
		server.Streams = NewStreamManager(server.logger)
	}

	spec, err := LoadSpec(context.Background())
	if err != nil {
		return nil, err
	}
	server.spec = spec

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	r.Get("/health", server.GetHealth)
	r.Get("/info", server.GetInfo)
	if server.metrics != nil {
		r.Method(http.MethodGet, "/metrics", server.metrics)
	}
	r.Get("/events", server.SubscribeEvents)

	r.Route("/scenes", func(r chi.Router) {
		r.Get("/", server.ListScenes)
		r.Get("/{entity_id}", server.GetScene)
		r.Post("/{entity_id}/activate", server.ActivateScene)
	})
	r.Route("/services", func(r chi.Router) {
		r.Post("/create", server.CreateScene)
		r.Post("/delete", server.DeleteScene)
		r.Post("/{service}", server.CallService)
	})

	return enableCORS(r), nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// createResponse is the body of a successful create.
type createResponse struct {
	Scene     *domain.Scene           `json:"scene"`
	Warnings  []domain.CaptureFailure `json:"warnings,omitempty"`
	Fallbacks []string                `json:"fallbacks,omitempty"`
	Diff      *domain.SceneDiff       `json:"diff,omitempty"`
}

func newCreateResponse(res *service.CreateResult) createResponse {
	resp := createResponse{Scene: res.Scene, Fallbacks: res.Fallbacks, Diff: res.Diff}
	if res.Warning != nil {
		resp.Warnings = res.Warning.Failures
	}
	return resp
}

// CreateScene handles POST /services/create.
func (s *Server) CreateScene(w http.ResponseWriter, r *http.Request) {
	var body service.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, s.logger, domain.NewValidationError("", "invalid request body: %v", err))
		return
	}
	res, err := s.Service.Create(r.Context(), body)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, s.logger, http.StatusCreated, newCreateResponse(res))
}

// DeleteScene handles POST /services/delete.
func (s *Server) DeleteScene(w http.ResponseWriter, r *http.Request) {
	var body service.DeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, s.logger, domain.NewValidationError("", "invalid request body: %v", err))
		return
	}
	if err := s.Service.Delete(r.Context(), body); err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CallService handles POST /services/{service} with loosely typed data,
// the same way the host delivers service calls.
func (s *Server) CallService(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "service")

	var data map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		writeError(w, s.logger, domain.NewValidationError("", "invalid request body: %v", err))
		return
	}

	out, err := s.Service.Call(r.Context(), name, data)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	switch v := out.(type) {
	case *service.CreateResult:
		writeJSON(w, s.logger, http.StatusCreated, newCreateResponse(v))
	case nil:
		w.WriteHeader(http.StatusNoContent)
	default:
		writeJSON(w, s.logger, http.StatusOK, v)
	}
}

// ListScenes handles GET /scenes.
func (s *Server) ListScenes(w http.ResponseWriter, r *http.Request) {
	scenes, err := s.Service.List(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, scenes)
}

// GetScene handles GET /scenes/{entity_id}.
func (s *Server) GetScene(w http.ResponseWriter, r *http.Request) {
	scene, err := s.Service.Get(r.Context(), chi.URLParam(r, "entity_id"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, scene)
}

// ActivateScene handles POST /scenes/{entity_id}/activate.
// Per-entity failures are reported in the body; the status stays 200.
func (s *Server) ActivateScene(w http.ResponseWriter, r *http.Request) {
	report, err := s.Service.Activate(r.Context(), chi.URLParam(r, "entity_id"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, report)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if s.spec.Info != nil {
		apiVersion = s.spec.Info.Version
	}
	writeJSON(w, s.logger, http.StatusOK, map[string]string{
		"app":         "resscene-http",
		"version":     s.version,
		"api_version": apiVersion,
	})
}

// SubscribeEvents handles the GET /events request (SSE).
// With ?scene_id= only that scene's events are streamed.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sceneID := r.URL.Query().Get("scene_id")
	s.logger.Info("SSE: Subscribing", "scene_id", sceneID)

	ch, cancel := s.Streams.Subscribe(sceneID)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE Client Disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", bytes.TrimSpace([]byte(msg)))
			flusher.Flush()
		}
	}
}
