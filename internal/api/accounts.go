package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"example.com/fitprogress/internal/auth"
	"example.com/fitprogress/internal/domain"
)

// CredentialsRequest is the payload for POST /v1/accounts and POST /v1/sessions.
type CredentialsRequest struct {
	Handle   string `json:"handle"`
	Password string `json:"password"`
}

// AccountResponse describes a created account.
type AccountResponse struct {
	UserID    string    `json:"user_id"`
	Handle    string    `json:"handle"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionResponse carries a signed token.
type SessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
	Handle    string    `json:"handle"`
}

func (h *Handler) registerAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req CredentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.accounts.Register(r.Context(), req.Handle, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		h.writeDomainError(w, err)
		return
	}

	h.logger.WithFields(logrus.Fields{"user_id": user.ID, "handle": user.Handle}).Info("account registered")
	writeJSON(w, http.StatusCreated, AccountResponse{UserID: user.ID, Handle: user.Handle, CreatedAt: user.CreatedAt})
}

func (h *Handler) sessionsRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.login(w, r)
	case http.MethodDelete:
		h.logout(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.accounts.Authenticate(r.Context(), req.Handle, req.Password)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	token, claims, err := auth.Issue(h.tokens, user.ID, user.Handle, h.now())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  claims.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, SessionResponse{
		Token:     token,
		ExpiresAt: claims.ExpiresAt,
		UserID:    user.ID,
		Handle:    user.Handle,
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r, "")
	if !ok {
		return
	}

	if h.sessions != nil {
		if err := h.sessions.Revoke(r.Context(), claims.ID, claims.ExpiresAt); err != nil {
			h.logger.WithError(err).WithField("user_id", claims.Subject).Warn("token revocation failed")
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}
