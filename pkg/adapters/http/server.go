package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/voiceloop"
	"github.com/aretw0/voiceloop/internal/logging"
	"github.com/aretw0/voiceloop/internal/presentation/graph"
	"github.com/aretw0/voiceloop/pkg/adapters/speech"
	"github.com/aretw0/voiceloop/pkg/domain"
	"github.com/aretw0/voiceloop/pkg/runner"
	"github.com/aretw0/voiceloop/pkg/session"
	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

var json = sonic.ConfigStd

// Sessions is the part of session.Hub the HTTP API drives.
type Sessions interface {
	Create(ctx context.Context, variant domain.Variant) (session.Info, error)
	List() []session.Info
	Get(ctx context.Context, id string) (*domain.State, error)
	Start(ctx context.Context, id string) error
	Post(ctx context.Context, id string, ev domain.Event) error
	Drain(id string) ([]speech.Directive, error)
	Close(ctx context.Context, id string) error
	Inspect(variant domain.Variant) ([]domain.StateNode, error)
}

var _ Sessions = (*session.Hub)(nil)

// Server exposes the hosted sessions over REST and SSE.
type Server struct {
	Sessions Sessions
	Streams  *StreamManager
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStreams shares a StreamManager that is already registered as a hub observer.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// NewHandler creates the HTTP handler. Streams only carry updates when the
// StreamManager's observers are registered on the hub.
func NewHandler(sessions Sessions, opts ...Option) http.Handler {
	s := &Server{Sessions: sessions, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.logger)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/graph", s.GetGraph)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.CreateSession)
		r.Get("/", s.ListSessions)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.CloseSession)
			r.Post("/start", s.StartSession)
			r.Post("/events", s.PostEvent)
			r.Get("/directives", s.DrainDirectives)
			r.Get("/stream", s.SubscribeEvents)
		})
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CreateSessionRequest is the body of POST /sessions.
type CreateSessionRequest struct {
	Variant domain.Variant `json:"variant,omitempty"`
}

// EventRequest is the body of POST /sessions/{id}/events.
type EventRequest struct {
	Type      domain.EventType `json:"type"`
	Utterance string           `json:"utterance,omitempty"`
}

// Event converts the request into a speech event.
func (e EventRequest) Event() (domain.Event, error) {
	return speech.ParseEvent(e.Type, e.Utterance)
}

// CreateSession handles POST /sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var body CreateSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			s.logger.Warn("CreateSession: invalid request body", "err", err)
			return
		}
	}
	if body.Variant != "" && !body.Variant.Valid() {
		http.Error(w, fmt.Sprintf("Unknown variant %q", body.Variant), http.StatusBadRequest)
		return
	}

	info, err := s.Sessions.Create(r.Context(), body.Variant)
	if err != nil {
		http.Error(w, fmt.Sprintf("Create error: %v", err), http.StatusInternalServerError)
		s.logger.Error("CreateSession failed", "err", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, info)
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Sessions.List())
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	state, err := s.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "GetSession", err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

// CloseSession handles DELETE /sessions/{id}.
func (s *Server) CloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Sessions.Close(r.Context(), id); err != nil {
		s.fail(w, "CloseSession", err)
		return
	}
	s.Streams.End(id)
	w.WriteHeader(http.StatusNoContent)
}

// StartSession handles POST /sessions/{id}/start.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Sessions.Start(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, "StartSession", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// PostEvent handles POST /sessions/{id}/events.
func (s *Server) PostEvent(w http.ResponseWriter, r *http.Request) {
	var body EventRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("PostEvent: invalid request body", "err", err)
		return
	}
	ev, err := body.Event()
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid event: %v", err), http.StatusBadRequest)
		s.logger.Warn("PostEvent: event rejected", "err", err, "size", len(body.Utterance))
		return
	}
	if err := s.Sessions.Post(r.Context(), chi.URLParam(r, "id"), ev); err != nil {
		s.fail(w, "PostEvent", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// DrainDirectives handles GET /sessions/{id}/directives.
func (s *Server) DrainDirectives(w http.ResponseWriter, r *http.Request) {
	directives, err := s.Sessions.Drain(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "DrainDirectives", err)
		return
	}
	if directives == nil {
		directives = []speech.Directive{}
	}
	s.writeJSON(w, http.StatusOK, directives)
}

// GetGraph handles GET /graph. ?format=mermaid returns the flowchart;
// ?session=<id> overlays the current state of that session.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	variant := domain.Variant(q.Get("variant"))

	var overlay *graph.GraphOverlay
	if id := q.Get("session"); id != "" {
		state, err := s.Sessions.Get(r.Context(), id)
		if err != nil {
			s.fail(w, "GetGraph", err)
			return
		}
		variant = state.Variant
		overlay = &graph.GraphOverlay{CurrentState: state.Path()}
	}

	nodes, err := s.Sessions.Inspect(variant)
	if err != nil {
		http.Error(w, fmt.Sprintf("Inspect error: %v", err), http.StatusBadRequest)
		return
	}

	if q.Get("format") == "mermaid" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(graph.GenerateMermaid(nodes, overlay)))
		return
	}
	s.writeJSON(w, http.StatusOK, nodes)
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"app":      "voiceloop-http",
		"version":  strings.TrimSpace(voiceloop.Version),
		"sessions": len(s.Sessions.List()),
	})
}

// SubscribeEvents handles GET /sessions/{id}/stream (SSE).
// ?watch=directives,location,history,context,task limits what is sent.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := s.Sessions.Get(r.Context(), id); err != nil {
		s.fail(w, "SubscribeEvents", err)
		return
	}

	var watch []string
	if raw := r.URL.Query().Get("watch"); raw != "" {
		for _, field := range strings.Split(raw, ",") {
			watch = append(watch, strings.TrimSpace(field))
		}
	}

	ch, cancel := s.Streams.Subscribe(id)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.logger.Info("SSE: subscribed", "session_id", id, "watch", watch)

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: client disconnected", "session_id", id)
			return
		case f, ok := <-ch:
			if !ok {
				fmt.Fprintf(w, "event: closed\ndata: %s\n\n", id)
				flusher.Flush()
				return
			}
			if !f.matches(watch) {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", f.Event, f.Data)
			flusher.Flush()
		}
	}
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, domain.ErrSessionNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if errors.Is(err, speech.ErrClosed) || errors.Is(err, runner.ErrStopped) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	http.Error(w, fmt.Sprintf("%s error: %v", op, err), http.StatusInternalServerError)
	s.logger.Error(op+" failed", "err", err)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}
