package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/fitprogress/internal/domain"
)

func TestScoreSendsNormalisedPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"total": 72}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	result, err := client.Score(context.Background(), domain.ScoreRequest{Age: 22, Pushups: 40, Situps: 45, RunSeconds: 660})
	require.NoError(t, err)
	require.Equal(t, 72, result.Score)
	require.Empty(t, result.Grade)

	require.EqualValues(t, 22, got["age"])
	require.EqualValues(t, 40, got["pushups"])
	require.EqualValues(t, 45, got["situps"])
	require.EqualValues(t, 660, got["run_seconds"])
}

func TestScoreAcceptsPointsAndGrade(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"points": 88, "grade": "Gold"}`))
	}))
	defer srv.Close()

	result, err := NewClient(srv.URL, time.Second).Score(context.Background(), domain.ScoreRequest{Age: 30, RunSeconds: 612.5})
	require.NoError(t, err)
	require.Equal(t, 88, result.Score)
	require.Equal(t, "Gold", result.Grade)
}

func TestScoreNonSuccessStatusIsScoringUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Score(context.Background(), domain.ScoreRequest{Age: 22})
	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrScoringUnavailable)

	var scoringErr *Error
	require.True(t, errors.As(err, &scoringErr))
	require.Equal(t, http.StatusInternalServerError, scoringErr.Status)
	require.Equal(t, 22, scoringErr.Age)
	require.Contains(t, err.Error(), "status 500")
}

func TestScoreTimeoutIsScoringUnavailable(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewClient(srv.URL, 50*time.Millisecond).Score(context.Background(), domain.ScoreRequest{Age: 40})
	require.ErrorIs(t, err, domain.ErrScoringUnavailable)

	var scoringErr *Error
	require.True(t, errors.As(err, &scoringErr))
	require.Zero(t, scoringErr.Status)
}

func TestScoreMissingScoreField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"grade": "Pass"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Score(context.Background(), domain.ScoreRequest{Age: 22})
	require.ErrorIs(t, err, domain.ErrScoringUnavailable)
	require.Contains(t, err.Error(), "no score")
}

func TestScoreOutOfRangeIsScoringUnavailable(t *testing.T) {
	for name, body := range map[string]string{
		"negative": `{"total": -40}`,
		"overflow": `{"total": 1e30}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second).Score(context.Background(), domain.ScoreRequest{Age: 30})
			require.ErrorIs(t, err, domain.ErrScoringUnavailable)
			require.Contains(t, err.Error(), "out of range")

			var scoringErr *Error
			require.True(t, errors.As(err, &scoringErr))
			require.Equal(t, http.StatusOK, scoringErr.Status)
			require.Equal(t, 30, scoringErr.Age)
		})
	}
}
