package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// CookieName is the session cookie set at sign-in for browser clients.
const CookieName = "auth_token"

// RevocationChecker reports whether a token id was logged out.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Skipper allows callers to bypass authentication for specific requests.
type Skipper func(r *http.Request) bool

// Middleware enforces bearer-token authentication on incoming requests.
type Middleware struct {
	Config      Config
	Skipper     Skipper
	Revocations RevocationChecker
	Logger      logrus.FieldLogger
}

// NewMiddleware constructs Middleware that lets health, metrics and sign-up/sign-in through.
func NewMiddleware(cfg Config, revocations RevocationChecker, logger logrus.FieldLogger) Middleware {
	return Middleware{Config: cfg, Skipper: PublicRoutes, Revocations: revocations, Logger: logger}
}

// PublicRoutes matches requests that never need a token.
func PublicRoutes(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/metrics":
		return true
	case "/v1/accounts", "/v1/sessions":
		return r.Method == http.MethodPost
	}
	return false
}

// Wrap attaches authentication handling to an http.Handler.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Skipper != nil && m.Skipper(r) {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.parseRequest(r)
		if err != nil {
			unauthorized(w, err)
			return
		}

		if m.Revocations != nil && claims.ID != "" {
			revoked, err := m.Revocations.IsRevoked(r.Context(), claims.ID)
			if err != nil && m.Logger != nil {
				m.Logger.WithError(err).Warn("revocation lookup failed; accepting token")
			}
			if revoked {
				unauthorized(w, ErrRevokedToken)
				return
			}
		}

		ctx := WithClaims(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TokenFromRequest extracts the raw token from the Authorization header or the session cookie.
func TokenFromRequest(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			return "", ErrInvalidToken
		}
		return strings.TrimSpace(header[len("Bearer "):]), nil
	}
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	return "", ErrMissingToken
}

func (m Middleware) parseRequest(r *http.Request) (*Claims, error) {
	token, err := TokenFromRequest(r)
	if err != nil {
		return nil, err
	}
	return Parse(token, m.Config)
}

func unauthorized(w http.ResponseWriter, err error) {
	detail := ErrInvalidToken.Error()
	switch {
	case errors.Is(err, ErrMissingToken):
		detail = ErrMissingToken.Error()
	case errors.Is(err, ErrRevokedToken):
		detail = ErrRevokedToken.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"type": "unauthorized", "detail": detail})
}
