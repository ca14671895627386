package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cleanflow/auth"
	"cleanflow/dispute"
)

// maxBodyBytes bounds request bodies; photos arrive inline as base64.
const maxBodyBytes = 64 << 20

type disputeService interface {
	Create(ctx context.Context, viewer auth.Principal, params dispute.CreateParams) (dispute.View, error)
	HomeownerRespond(ctx context.Context, viewer auth.Principal, id string, params dispute.RespondParams) (dispute.View, error)
	OwnerResolve(ctx context.Context, viewer auth.Principal, id string, params dispute.ResolveParams) (dispute.View, error)
	Get(ctx context.Context, viewer auth.Principal, id string) (dispute.View, error)
	ListPending(ctx context.Context, viewer auth.Principal) ([]dispute.View, error)
	History(ctx context.Context, viewer auth.Principal, homeID string) ([]dispute.View, error)
}

type tokenVerifier interface {
	VerifyToken(token string) (auth.Principal, error)
}

type Server struct {
	disputeService disputeService
	tokens         tokenVerifier
	createLimit    *userLimiter
	ready          func(context.Context) error
	logger         *slog.Logger
}

func NewServer(disputes disputeService, tokens tokenVerifier, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		disputeService: disputes,
		tokens:         tokens,
		logger:         logger.With("module", "api", "layer", "http"),
	}
}

// WithCreateLimit caps dispute creation per user per minute. Zero disables it.
func (s *Server) WithCreateLimit(perMinute int) *Server {
	if perMinute > 0 {
		s.createLimit = newUserLimiter(perMinute)
	}
	return s
}

func (s *Server) WithReadiness(check func(context.Context) error) *Server {
	s.ready = check
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(s.loggingMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeMessage(w, http.StatusOK, "ok") })
	r.Get("/readyz", s.handleReady)

	r.Route("/dispute", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Use(bodyLimit(maxBodyBytes))

		r.With(s.rateLimit).Post("/", s.handleCreateDispute)
		r.Get("/pending", s.handlePendingDisputes)
		r.Get("/history/{homeId}", s.handleDisputeHistory)
		r.Get("/{id}", s.handleGetDispute)
		r.Post("/{id}/homeowner-response", s.handleHomeownerResponse)
		r.Post("/{id}/owner-resolve", s.handleOwnerResolve)
	})
	return r
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			s.logger.WarnContext(r.Context(), "readiness check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "database unavailable")
			return
		}
	}
	writeMessage(w, http.StatusOK, "ready")
}
