package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"example.com/fitprogress/internal/auth"
)

const (
	defaultLeaderboardLimit = 50
	maxLeaderboardLimit     = 200
)

// StandingView is one leaderboard row.
type StandingView struct {
	Position   int    `json:"position"`
	Rank       int    `json:"rank"`
	UserID     string `json:"user_id"`
	Handle     string `json:"handle"`
	Experience int    `json:"experience"`
	Level      int    `json:"level"`
}

// LeaderboardResponse wraps the ranked rows.
type LeaderboardResponse struct {
	Items []StandingView `json:"items"`
}

// AdjustExperienceRequest is the payload for POST /v1/users/{id}/experience.
type AdjustExperienceRequest struct {
	Delta int `json:"delta"`
}

// AdjustExperienceResponse reports the balance after a manual adjustment.
type AdjustExperienceResponse struct {
	UserID     string `json:"user_id"`
	Experience int    `json:"experience"`
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if _, ok := requireClaims(w, r, auth.ScopeProgressRead); !ok {
		return
	}

	limit := defaultLeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			if parsed > maxLeaderboardLimit {
				parsed = maxLeaderboardLimit
			}
			limit = parsed
		}
	}

	standings, err := h.service.Leaderboard(r.Context(), limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	items := make([]StandingView, 0, len(standings))
	for _, s := range standings {
		items = append(items, StandingView{
			Position:   s.Position,
			Rank:       s.Rank,
			UserID:     s.UserID,
			Handle:     s.Handle,
			Experience: s.Experience,
			Level:      s.Level,
		})
	}
	writeJSON(w, http.StatusOK, LeaderboardResponse{Items: items})
}

func (h *Handler) adjustExperience(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	userID, tail, found := strings.Cut(rest, "/")
	if userID == "" || !found || tail != "experience" {
		writeError(w, http.StatusNotFound, "not_found", "unknown route")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	claims, ok := requireClaims(w, r, auth.ScopeExperienceAdjust)
	if !ok {
		return
	}
	if _, err := uuid.Parse(userID); err != nil {
		writeError(w, http.StatusNotFound, "not_found", "user not found")
		return
	}

	var req AdjustExperienceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Delta == 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "delta must be non-zero")
		return
	}

	balance, err := h.service.AdjustExperience(r.Context(), userID, req.Delta)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.logger.WithFields(logrus.Fields{"operator": claims.Subject, "user_id": userID, "delta": req.Delta}).Info("manual experience adjustment")
	writeJSON(w, http.StatusOK, AdjustExperienceResponse{UserID: userID, Experience: balance})
}
