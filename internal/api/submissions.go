package api

import (
	"net/http"
	"strconv"
	"time"

	"example.com/fitprogress/internal/auth"
	"example.com/fitprogress/internal/domain"
	"example.com/fitprogress/internal/persistence"
	"example.com/fitprogress/internal/progression"
)

// SubmitRequest is the payload for POST /v1/me/submissions.
// The run may be given as run_seconds or as run_time in MM:SS; run_time wins when both are set.
type SubmitRequest struct {
	Pushups    int     `json:"pushups"`
	Situps     int     `json:"situps"`
	RunSeconds float64 `json:"run_seconds"`
	RunTime    string  `json:"run_time,omitempty"`
}

// SubmissionView exposes one ledger row.
type SubmissionView struct {
	SubmissionID string    `json:"submission_id"`
	Day          string    `json:"day"`
	Pushups      int       `json:"pushups"`
	Situps       int       `json:"situps"`
	RunSeconds   float64   `json:"run_seconds"`
	RunTime      string    `json:"run_time"`
	Score        int       `json:"score"`
	Grade        string    `json:"grade,omitempty"`
	Tier         string    `json:"tier"`
	CreatedAt    time.Time `json:"created_at"`
}

// ProgressionView is the derived level and tier block.
type ProgressionView struct {
	Experience      int    `json:"experience"`
	Level           int    `json:"level"`
	ProgressPercent int    `json:"progress_percent"`
	LatestScore     *int   `json:"latest_score,omitempty"`
	Tier            string `json:"tier"`
	Label           string `json:"label"`
}

// SubmitResponse is returned after a submission commits.
type SubmitResponse struct {
	Submission    SubmissionView  `json:"submission"`
	Age           int             `json:"age"`
	ReplacedScore *int            `json:"replaced_score,omitempty"`
	Progression   ProgressionView `json:"progression"`
}

// ListSubmissionsResponse packages history results.
type ListSubmissionsResponse struct {
	Items      []SubmissionView `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// ProgressResponse backs the home view.
type ProgressResponse struct {
	Profile     ProfileView     `json:"profile"`
	Latest      *SubmissionView `json:"latest,omitempty"`
	RunTime     string          `json:"run_time,omitempty"`
	Progression ProgressionView `json:"progression"`
}

func (h *Handler) submissionsRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.submit(w, r)
	case http.MethodGet:
		h.listSubmissions(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r, auth.ScopeSubmissionsWrite)
	if !ok {
		return
	}

	var req SubmitRequest
	if !decodeBody(w, r, &req) {
		return
	}

	runSeconds := req.RunSeconds
	if req.RunTime != "" {
		secs, err := progression.ParseDuration(req.RunTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		runSeconds = float64(secs)
	}

	outcome, err := h.service.Submit(r.Context(), claims.Subject, domain.SubmitInput{
		Pushups:    req.Pushups,
		Situps:     req.Situps,
		RunSeconds: runSeconds,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, SubmitResponse{
		Submission:    toSubmissionView(outcome.Submission),
		Age:           outcome.Age,
		ReplacedScore: outcome.PreviousScore,
		Progression:   toProgressionView(outcome.Progression),
	})
}

func (h *Handler) listSubmissions(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r, auth.ScopeProgressRead)
	if !ok {
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	subs, next, err := h.service.History(r.Context(), claims.Subject, cursor, limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	items := make([]SubmissionView, 0, len(subs))
	for _, sub := range subs {
		items = append(items, toSubmissionView(sub))
	}
	writeJSON(w, http.StatusOK, ListSubmissionsResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) progress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	claims, ok := requireClaims(w, r, auth.ScopeProgressRead)
	if !ok {
		return
	}

	view, err := h.service.Progress(r.Context(), claims.Subject)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := ProgressResponse{
		Profile:     toProfileView(view.Profile),
		RunTime:     view.RunDisplay,
		Progression: toProgressionView(view.Progression),
	}
	if view.Latest != nil {
		latest := toSubmissionView(*view.Latest)
		resp.Latest = &latest
	}
	writeJSON(w, http.StatusOK, resp)
}

func toSubmissionView(sub domain.Submission) SubmissionView {
	return SubmissionView{
		SubmissionID: sub.ID,
		Day:          sub.Day.Format(time.DateOnly),
		Pushups:      sub.Pushups,
		Situps:       sub.Situps,
		RunSeconds:   sub.RunSeconds,
		RunTime:      progression.FormatDuration(int(sub.RunSeconds)),
		Score:        sub.Score,
		Grade:        sub.Grade,
		Tier:         string(progression.TierFor(sub.Score)),
		CreatedAt:    sub.CreatedAt,
	}
}

func toProgressionView(s progression.Snapshot) ProgressionView {
	return ProgressionView{
		Experience:      s.Experience,
		Level:           s.Level,
		ProgressPercent: s.ProgressPercent,
		LatestScore:     s.LatestScore,
		Tier:            string(s.Tier),
		Label:           s.Label,
	}
}
