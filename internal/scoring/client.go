// Package scoring calls the external grading authority that turns exercise metrics into a score.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"example.com/fitprogress/internal/domain"
	"example.com/fitprogress/internal/observability"
)

// Client posts normalised test results to the scoring authority.
type Client struct {
	httpClient *http.Client
	url        string
	timeout    time.Duration
}

// NewClient constructs a Client. Every call is bounded by timeout.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		url:        strings.TrimRight(endpoint, "/"),
		timeout:    timeout,
	}
}

type scoreRequest struct {
	Age        int     `json:"age"`
	Situps     int     `json:"situps"`
	Pushups    int     `json:"pushups"`
	RunSeconds float64 `json:"run_seconds"`
}

// The authority answers either {"total": n} or {"points": n, "grade": "..."}.
type scoreResponse struct {
	Total  *float64 `json:"total"`
	Points *float64 `json:"points"`
	Grade  string   `json:"grade"`
}

// Score implements domain.Scorer.
func (c *Client) Score(ctx context.Context, req domain.ScoreRequest) (domain.ScoreResult, error) {
	start := time.Now()
	result, err := c.score(ctx, req)
	if err != nil {
		observability.ObserveScoring("error", time.Since(start))
		return domain.ScoreResult{}, err
	}
	observability.ObserveScoring("ok", time.Since(start))
	return result, nil
}

func (c *Client) score(ctx context.Context, req domain.ScoreRequest) (domain.ScoreResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(scoreRequest{
		Age:        req.Age,
		Situps:     req.Situps,
		Pushups:    req.Pushups,
		RunSeconds: req.RunSeconds,
	})
	if err != nil {
		return domain.ScoreResult{}, &Error{Age: req.Age, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return domain.ScoreResult{}, &Error{Age: req.Age, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.ScoreResult{}, &Error{Age: req.Age, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.ScoreResult{}, &Error{
			Status: resp.StatusCode,
			Age:    req.Age,
			Err:    fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(data))),
		}
	}

	var payload scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.ScoreResult{}, &Error{Status: resp.StatusCode, Age: req.Age, Err: fmt.Errorf("decode response: %w", err)}
	}

	var raw *float64
	switch {
	case payload.Total != nil:
		raw = payload.Total
	case payload.Points != nil:
		raw = payload.Points
	default:
		return domain.ScoreResult{}, &Error{Status: resp.StatusCode, Age: req.Age, Err: errors.New("response carries no score")}
	}

	score := math.Round(*raw)
	if math.IsNaN(score) || score < 0 || score > math.MaxInt32 {
		return domain.ScoreResult{}, &Error{Status: resp.StatusCode, Age: req.Age, Err: fmt.Errorf("score %v out of range", *raw)}
	}

	return domain.ScoreResult{
		Score: int(score),
		Grade: strings.TrimSpace(payload.Grade),
	}, nil
}

// Error describes a failed scoring call. Status is zero when no HTTP response was received.
type Error struct {
	Status int
	Age    int
	Err    error
}

func (e *Error) Error() string {
	status := "no response"
	if e.Status != 0 {
		status = fmt.Sprintf("status %d", e.Status)
	}
	if e.Err == nil {
		return fmt.Sprintf("scoring failed for age %d (%s)", e.Age, status)
	}
	return fmt.Sprintf("scoring failed for age %d (%s): %v", e.Age, status, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets callers match any scoring failure against domain.ErrScoringUnavailable.
func (e *Error) Is(target error) bool {
	return target == domain.ErrScoringUnavailable
}
