// Package http exposes the agent over a JSON HTTP API. It is a thin driving
// adapter: requests map one-to-one onto facade calls, no logic lives here.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/arbor-sh/arbor"
	"github.com/arbor-sh/arbor/internal/logging"
	"github.com/arbor-sh/arbor/pkg/domain"
)

// Agent is the slice of the facade the server needs.
type Agent interface {
	SubmitTurn(ctx context.Context, req domain.TurnRequest) (domain.TurnResponse, error)
	TurnStatus(ctx context.Context, sessionID string) (arbor.TurnStatus, error)
	CancelTurn(ctx context.Context, sessionID string) error
	Recover(ctx context.Context, sessionID string) error
	ResetSession(ctx context.Context, sessionID string) error
}

// Server routes HTTP requests to the agent.
type Server struct {
	agent  Agent
	logger *slog.Logger
}

// NewHandler builds the router. The metrics handler is optional; when nil,
// /metrics is not mounted.
func NewHandler(agent Agent, logger *slog.Logger, metrics http.Handler) http.Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{agent: agent, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/turns", s.submitTurn)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", s.status)
			r.Post("/cancel", s.cancel)
			r.Post("/recover", s.recover)
			r.Delete("/", s.reset)
		})
	})

	return r
}

func (s *Server) submitTurn(w http.ResponseWriter, r *http.Request) {
	var req domain.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &domain.ValidationError{Reason: "invalid request body"})
		return
	}

	resp, err := s.agent.SubmitTurn(r.Context(), req)
	if err != nil && resp.SessionID == "" {
		// Rejected before any processing: no turn was served.
		s.writeError(w, err)
		return
	}
	// A processing failure is still a served turn; the response carries the
	// error type and the session is in Error awaiting recover.
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	status, err := s.agent.TurnStatus(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	if err := s.agent.CancelTurn(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) recover(w http.ResponseWriter, r *http.Request) {
	if err := s.agent.Recover(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	if err := s.agent.ResetSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		verr *domain.ValidationError
		terr *domain.InvalidTransitionError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.As(err, &terr):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrAgentClosed):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	s.writeJSON(w, status, errorBody{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}
