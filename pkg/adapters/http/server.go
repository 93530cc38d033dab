package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/aretw0/colloquy"
	"github.com/aretw0/colloquy/internal/logging"
	"github.com/aretw0/colloquy/pkg/catalog"
	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/session"
	"github.com/go-chi/chi/v5"
)

// Host is the controller surface the handler drives. *colloquy.Host implements it.
type Host interface {
	OpenNamed(ctx context.Context, id, name string, param any) (*session.Session, domain.Step, error)
	Turn(ctx context.Context, id string, input domain.Turn, timeout time.Duration) (domain.Step, error)
	Await(ctx context.Context, id string, timeout time.Duration) (domain.Step, error)
	Close(id string, wait time.Duration) error
	Registry() *session.Registry
	Catalog() *catalog.Catalog
}

// OpenRequest is the body of POST /sessions.
type OpenRequest struct {
	ID       string `json:"id,omitempty"`
	Dialogue string `json:"dialogue"`
	Param    any    `json:"param,omitempty"`
}

// TurnRequest is the body of POST /sessions/{id}/turns.
type TurnRequest struct {
	Input     any   `json:"input"`
	TimeoutMS int64 `json:"timeout_ms,omitempty"`
}

// StepResponse carries the step a request produced.
type StepResponse struct {
	ID   string      `json:"id"`
	Step domain.Step `json:"step"`
}

// Server adapts a Host to HTTP.
type Server struct {
	Host     Host
	Streams  *StreamManager
	logger   *slog.Logger
	stopWait time.Duration
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStopWait bounds how long DELETE waits for the dialogue to exit.
func WithStopWait(d time.Duration) Option {
	return func(s *Server) {
		s.stopWait = d
	}
}

// NewHandler creates a new HTTP handler for the host.
func NewHandler(host Host, opts ...Option) http.Handler {
	server := &Server{
		Host:     host,
		logger:   logging.NewNop(),
		stopWait: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(server)
	}
	server.Streams = NewStreamManager(server.logger)

	r := chi.NewRouter()
	r.Get("/health", server.GetHealth)
	r.Get("/dialogues", server.ListDialogues)
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", server.ListSessions)
		r.Post("/", server.OpenSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Post("/turns", server.PostTurn)
			r.Get("/step", server.AwaitStep)
			r.Delete("/", server.CloseSession)
			r.Get("/events", server.SubscribeEvents)
		})
	})
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// OpenSession handles the POST /sessions request.
func (s *Server) OpenSession(w http.ResponseWriter, r *http.Request) {
	var body OpenRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if body.Dialogue == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("dialogue is required"))
		return
	}

	sess, step, err := s.Host.OpenNamed(r.Context(), body.ID, body.Dialogue, body.Param)
	if err != nil {
		s.fail(w, "OpenSession", err)
		return
	}

	s.logger.Info("session opened", "session_id", sess.ID(), "dialogue", body.Dialogue)
	s.follow(sess)
	s.publish(sess.ID(), step)
	s.writeJSON(w, http.StatusCreated, StepResponse{ID: sess.ID(), Step: step})
}

// ListSessions handles the GET /sessions request.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]string{"sessions": s.Host.Registry().IDs()})
}

// ListDialogues handles the GET /dialogues request.
func (s *Server) ListDialogues(w http.ResponseWriter, r *http.Request) {
	type dialogue struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	entries := s.Host.Catalog().Entries()
	resp := make([]dialogue, len(entries))
	for i, e := range entries {
		resp[i] = dialogue{Name: e.Name, Description: e.Description}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"dialogues": resp})
}

// PostTurn handles the POST /sessions/{id}/turns request.
func (s *Server) PostTurn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	step, err := s.Host.Turn(r.Context(), id, body.Input, time.Duration(body.TimeoutMS)*time.Millisecond)
	if err != nil {
		s.fail(w, "PostTurn", err)
		return
	}

	s.publish(id, step)
	s.writeJSON(w, http.StatusOK, StepResponse{ID: id, Step: step})
}

// AwaitStep handles the GET /sessions/{id}/step request. It collects the step a
// timed-out turn left pending; the optional timeout_ms query bounds the wait.
func (s *Server) AwaitStep(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var timeout time.Duration
	if raw := r.URL.Query().Get("timeout_ms"); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ms < 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid timeout_ms %q", raw))
			return
		}
		timeout = time.Duration(ms) * time.Millisecond
	}

	step, err := s.Host.Await(r.Context(), id, timeout)
	if err != nil {
		s.fail(w, "AwaitStep", err)
		return
	}

	s.publish(id, step)
	s.writeJSON(w, http.StatusOK, StepResponse{ID: id, Step: step})
}

// CloseSession handles the DELETE /sessions/{id} request.
func (s *Server) CloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.Host.Close(id, s.stopWait); err != nil {
		s.fail(w, "CloseSession", err)
		return
	}

	s.Streams.Close(id)
	s.logger.Info("session closed", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// SubscribeEvents handles the GET /sessions/{id}/events request (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, errors.New("streaming not supported"))
		return
	}

	// Subscribe before the lookup: a session that leaves afterwards closes the stream.
	ch, cancel := s.Streams.Subscribe(id)
	defer cancel()
	if _, err := s.Host.Registry().Get(id); err != nil {
		s.fail(w, "SubscribeEvents", err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected", "session_id", id)
			return
		case msg, ok := <-ch:
			if !ok {
				fmt.Fprintf(w, "event: end\ndata: %s\n\n", id)
				flusher.Flush()
				return
			}
			fmt.Fprintf(w, "event: step\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  colloquy.Version,
		"sessions": s.Host.Registry().Len(),
	})
}

// publish forwards a step to the session's subscribers and ends their streams
// once the dialogue is over.
func (s *Server) publish(id string, step domain.Step) {
	if bytes, err := json.Marshal(step); err == nil {
		s.Streams.Broadcast(id, string(bytes))
	}
	if step.Terminal() {
		s.Streams.Close(id)
	}
}

// follow ends the session's streams once its dialogue was stopped (expiry, DELETE,
// shutdown) or failed to deliver its result. A delivered terminal step is handled by publish.
func (s *Server) follow(sess *session.Session) {
	e := sess.Execution()
	if e == nil {
		return
	}
	id := sess.ID()
	go func() {
		<-e.Finished()
		if e.IsStopped() || e.Err() != nil {
			s.Streams.Close(id)
		}
	}()
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusGatewayTimeout {
		s.logger.Error(op+" failed", "err", err)
	} else {
		s.logger.Warn(op+" rejected", "err", err, "status", status)
	}
	s.writeError(w, status, err)
}

// StatusFor maps the error taxonomy onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrProcedureNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrExecutionStopped), errors.Is(err, domain.ErrChannelClosed):
		return http.StatusGone
	case errors.Is(err, domain.ErrSessionExists), errors.Is(err, domain.ErrIllegalUsage):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTimedOut), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrRegistryStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}
