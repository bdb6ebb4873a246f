package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"example.com/fitprogress/internal/auth"
	"example.com/fitprogress/internal/domain"
	"example.com/fitprogress/internal/progression"
)

// OnboardingRequest is the payload for PUT /v1/me/profile. Dates use YYYY-MM-DD.
type OnboardingRequest struct {
	DateOfBirth   string  `json:"date_of_birth"`
	Goal          string  `json:"goal"`
	AvatarPath    string  `json:"avatar_path"`
	NextTestDate  *string `json:"next_test_date"`
	PreviousScore *int    `json:"previous_score"`
}

// ProfileEditRequest is the payload for PATCH /v1/me/profile. Omitted fields are unchanged.
type ProfileEditRequest struct {
	Goal         *string `json:"goal"`
	AvatarPath   *string `json:"avatar_path"`
	NextTestDate *string `json:"next_test_date"`
}

// ProfileView exposes a user's stored profile.
type ProfileView struct {
	UserID        string  `json:"user_id"`
	Onboarded     bool    `json:"onboarded"`
	Experience    int     `json:"experience"`
	Level         int     `json:"level"`
	Currency      int     `json:"currency"`
	DateOfBirth   *string `json:"date_of_birth,omitempty"`
	Goal          string  `json:"goal"`
	AvatarPath    string  `json:"avatar_path"`
	NextTestDate  *string `json:"next_test_date,omitempty"`
	PreviousScore *int    `json:"previous_score,omitempty"`
}

func (h *Handler) profileRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getProfile(w, r)
	case http.MethodPut:
		h.completeOnboarding(w, r)
	case http.MethodPatch:
		h.editProfile(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r, auth.ScopeProgressRead)
	if !ok {
		return
	}
	profile, err := h.service.Profile(r.Context(), claims.Subject)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileView(profile))
}

func (h *Handler) completeOnboarding(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r, auth.ScopeProfileWrite)
	if !ok {
		return
	}

	var req OnboardingRequest
	if !decodeBody(w, r, &req) {
		return
	}

	dob, err := parseDate("date_of_birth", req.DateOfBirth)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	next, err := parseOptionalDate("next_test_date", req.NextTestDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	profile, err := h.service.CompleteOnboarding(r.Context(), claims.Subject, domain.OnboardingInput{
		DateOfBirth:   dob,
		Goal:          req.Goal,
		AvatarPath:    req.AvatarPath,
		NextTestDate:  next,
		PreviousScore: req.PreviousScore,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileView(*profile))
}

func (h *Handler) editProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r, auth.ScopeProfileWrite)
	if !ok {
		return
	}

	var req ProfileEditRequest
	if !decodeBody(w, r, &req) {
		return
	}
	next, err := parseOptionalDate("next_test_date", req.NextTestDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	profile, err := h.service.EditProfile(r.Context(), claims.Subject, domain.ProfileEdit{
		Goal:         req.Goal,
		AvatarPath:   req.AvatarPath,
		NextTestDate: next,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileView(*profile))
}

func toProfileView(p domain.Profile) ProfileView {
	return ProfileView{
		UserID:        p.UserID,
		Onboarded:     p.Onboarded(),
		Experience:    p.Experience,
		Level:         progression.Level(p.Experience),
		Currency:      p.Currency,
		DateOfBirth:   formatDate(p.DateOfBirth),
		Goal:          p.Goal,
		AvatarPath:    p.AvatarPath,
		NextTestDate:  formatDate(p.NextTestDate),
		PreviousScore: p.PreviousScore,
	}
}

func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%s is required", field)
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be YYYY-MM-DD", field)
	}
	return t, nil
}

func parseOptionalDate(field string, value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	t, err := parseDate(field, *value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.DateOnly)
	return &s
}
