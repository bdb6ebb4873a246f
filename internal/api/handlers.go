// Package api exposes HTTP handlers for the progression service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"example.com/fitprogress/internal/auth"
	"example.com/fitprogress/internal/domain"
)

// SessionRevoker invalidates a token before its natural expiry.
type SessionRevoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
}

// Handler coordinates HTTP requests with the domain services.
type Handler struct {
	service  *domain.Service
	accounts *domain.AccountService
	tokens   auth.Config
	sessions SessionRevoker
	logger   logrus.FieldLogger
	now      func() time.Time
}

// NewHandler builds a Handler. sessions may be nil, in which case logout only clears the cookie.
func NewHandler(service *domain.Service, accounts *domain.AccountService, tokens auth.Config, sessions SessionRevoker, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		service:  service,
		accounts: accounts,
		tokens:   tokens,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/accounts", h.registerAccount)
	mux.HandleFunc("/v1/sessions", h.sessionsRoute)
	mux.HandleFunc("/v1/me/profile", h.profileRoute)
	mux.HandleFunc("/v1/me/submissions", h.submissionsRoute)
	mux.HandleFunc("/v1/me/progress", h.progress)
	mux.HandleFunc("/v1/leaderboard", h.leaderboard)
	mux.HandleFunc("/v1/users/", h.adjustExperience)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// requireClaims resolves the caller and checks scope; it writes the error response itself.
func requireClaims(w http.ResponseWriter, r *http.Request, scope string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if scope != "" && !claims.HasScope(scope) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
		return nil, false
	}
	return claims, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return false
	}
	return true
}

// writeDomainError maps service errors onto the HTTP error contract.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidSubmission), errors.Is(err, domain.ErrInvalidProfile):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrDuplicateIdentity):
		writeError(w, http.StatusConflict, "duplicate_identity", "handle is already taken")
	case errors.Is(err, domain.ErrIncompleteProfile):
		writeError(w, http.StatusConflict, "incomplete_profile", "complete onboarding before submitting results")
	case errors.Is(err, domain.ErrScoringUnavailable):
		writeError(w, http.StatusBadGateway, "scoring_unavailable", err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid handle or password")
	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "not_found", "user not found")
	default:
		h.logger.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "persistence_failure", "the request could not be completed")
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
}
