package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"example.com/fitprogress/internal/auth"
	"example.com/fitprogress/internal/domain"
	"example.com/fitprogress/internal/persistence/memory"
)

var tokenConfig = auth.Config{Secret: "test-secret", Issuer: "fitprogress.test", TTL: time.Hour}

type stubScorer struct {
	result domain.ScoreResult
	err    error
	calls  int
}

func (s *stubScorer) Score(ctx context.Context, req domain.ScoreRequest) (domain.ScoreResult, error) {
	s.calls++
	return s.result, s.err
}

type plainHasher struct{}

func (plainHasher) Hash(pw string) (string, error) { return "h:" + pw, nil }

func (plainHasher) Compare(pw, encoded string) (bool, error) { return encoded == "h:"+pw, nil }

type recordingRevoker struct {
	revoked map[string]time.Time
}

func (r *recordingRevoker) Revoke(ctx context.Context, id string, exp time.Time) error {
	r.revoked[id] = exp
	return nil
}

func (r *recordingRevoker) IsRevoked(ctx context.Context, id string) (bool, error) {
	_, ok := r.revoked[id]
	return ok, nil
}

type testEnv struct {
	store   *memory.Store
	scorer  *stubScorer
	revoker *recordingRevoker
	server  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, nil)
}

// newTestEnvWithStore lets a test swap the store seen by the domain service. wrap receives the
// memory store and returns the domain.Store to use; nil keeps the memory store.
func newTestEnvWithStore(t *testing.T, wrap func(*memory.Store) domain.Store) *testEnv {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	env := &testEnv{
		store:   memory.NewStore(),
		scorer:  &stubScorer{result: domain.ScoreResult{Score: 72}},
		revoker: &recordingRevoker{revoked: map[string]time.Time{}},
	}
	now := time.Date(2024, 9, 15, 9, 0, 0, 0, time.UTC)
	var store domain.Store = env.store
	if wrap != nil {
		store = wrap(env.store)
	}
	service := domain.NewService(store, env.scorer,
		domain.WithClock(func() time.Time { return now }),
		domain.WithLogger(logger),
	)
	accounts := domain.NewAccountService(env.store, plainHasher{})
	handler := NewHandler(service, accounts, tokenConfig, env.revoker, logger)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	env.server = auth.NewMiddleware(tokenConfig, env.revoker, logger).Wrap(mux)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

// signUp registers and logs in, returning the session token.
func (e *testEnv) signUp(t *testing.T, handle string) string {
	t.Helper()
	creds := CredentialsRequest{Handle: handle, Password: "correct horse"}
	if rr := e.do(t, http.MethodPost, "/v1/accounts", "", creds); rr.Code != http.StatusCreated {
		t.Fatalf("register: expected 201 got %d: %s", rr.Code, rr.Body.String())
	}
	rr := e.do(t, http.MethodPost, "/v1/sessions", "", creds)
	if rr.Code != http.StatusOK {
		t.Fatalf("login: expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var session SessionResponse
	decode(t, rr, &session)
	return session.Token
}

func (e *testEnv) onboard(t *testing.T, token string) {
	t.Helper()
	rr := e.do(t, http.MethodPut, "/v1/me/profile", token, OnboardingRequest{DateOfBirth: "2002-03-01", Goal: "pass the test"})
	if rr.Code != http.StatusOK {
		t.Fatalf("onboard: expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("failed to decode response: %v (%s)", err, rr.Body.String())
	}
}

func errorType(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decode(t, rr, &body)
	return body["type"]
}

func TestSubmitFlowReturnsProgression(t *testing.T) {
	env := newTestEnv(t)
	token := env.signUp(t, "alice")
	env.onboard(t, token)

	rr := env.do(t, http.MethodPost, "/v1/me/submissions", token, SubmitRequest{Pushups: 40, Situps: 45, RunTime: "11:00"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp SubmitResponse
	decode(t, rr, &resp)
	if resp.Age != 22 {
		t.Fatalf("expected age 22 got %d", resp.Age)
	}
	if resp.Submission.RunSeconds != 660 || resp.Submission.RunTime != "11:00" {
		t.Fatalf("unexpected run %v %s", resp.Submission.RunSeconds, resp.Submission.RunTime)
	}
	if resp.Progression.Tier != "mid" || resp.Progression.Level != 1 || resp.Progression.ProgressPercent != 72 {
		t.Fatalf("unexpected progression %+v", resp.Progression)
	}

	rr = env.do(t, http.MethodGet, "/v1/me/progress", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	var progress ProgressResponse
	decode(t, rr, &progress)
	if progress.RunTime != "11:00" || progress.Progression.Experience != 72 {
		t.Fatalf("unexpected progress %+v", progress)
	}
	if progress.Latest == nil || progress.Latest.Day != "2024-09-15" {
		t.Fatalf("unexpected latest %+v", progress.Latest)
	}

	rr = env.do(t, http.MethodGet, "/v1/me/submissions?limit=5", token, nil)
	var history ListSubmissionsResponse
	decode(t, rr, &history)
	if len(history.Items) != 1 || history.NextCursor != "" {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestSubmitBeforeOnboardingIsIncompleteProfile(t *testing.T) {
	env := newTestEnv(t)
	token := env.signUp(t, "bob")

	rr := env.do(t, http.MethodPost, "/v1/me/submissions", token, SubmitRequest{Pushups: 10})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rr.Code)
	}
	if got := errorType(t, rr); got != "incomplete_profile" {
		t.Fatalf("unexpected error type %s", got)
	}
	if env.scorer.calls != 0 {
		t.Fatalf("scorer must not be called")
	}
}

func TestSubmitScoringFailureIsBadGateway(t *testing.T) {
	env := newTestEnv(t)
	token := env.signUp(t, "alice")
	env.onboard(t, token)
	env.scorer.err = errors.New("status 500")

	rr := env.do(t, http.MethodPost, "/v1/me/submissions", token, SubmitRequest{Pushups: 10})
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 got %d", rr.Code)
	}
	if got := errorType(t, rr); got != "scoring_unavailable" {
		t.Fatalf("unexpected error type %s", got)
	}

	rr = env.do(t, http.MethodGet, "/v1/me/profile", token, nil)
	var profile ProfileView
	decode(t, rr, &profile)
	if profile.Experience != 0 {
		t.Fatalf("experience must be unchanged, got %d", profile.Experience)
	}
}

func TestSubmitValidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.signUp(t, "alice")
	env.onboard(t, token)

	rr := env.do(t, http.MethodPost, "/v1/me/submissions", token, SubmitRequest{Pushups: -3})
	if rr.Code != http.StatusBadRequest || errorType(t, rr) != "validation_failed" {
		t.Fatalf("expected validation_failed got %d %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/v1/me/submissions", token, SubmitRequest{RunTime: "eleven"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/me/submissions", strings.NewReader(`{"pushups": 1, "bogus": true}`))
	req.Header.Set("Authorization", "Bearer "+token)
	raw := httptest.NewRecorder()
	env.server.ServeHTTP(raw, req)
	if raw.Code != http.StatusBadRequest {
		t.Fatalf("unknown fields must be rejected, got %d", raw.Code)
	}
}

func TestRegisterDuplicateHandle(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "alice")

	rr := env.do(t, http.MethodPost, "/v1/accounts", "", CredentialsRequest{Handle: "alice", Password: "something else"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rr.Code)
	}
	if got := errorType(t, rr); got != "duplicate_identity" {
		t.Fatalf("unexpected error type %s", got)
	}

	rr = env.do(t, http.MethodPost, "/v1/accounts", "", CredentialsRequest{Handle: "carol", Password: "short"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "alice")

	rr := env.do(t, http.MethodPost, "/v1/sessions", "", CredentialsRequest{Handle: "alice", Password: "wrong password"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
}

func TestLoginSetsCookieAndLogoutRevokes(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "alice")

	rr := env.do(t, http.MethodPost, "/v1/sessions", "", CredentialsRequest{Handle: "alice", Password: "correct horse"})
	var session SessionResponse
	decode(t, rr, &session)

	var cookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.CookieName {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value != session.Token || !cookie.HttpOnly {
		t.Fatalf("expected http-only session cookie, got %+v", cookie)
	}

	if rr := env.do(t, http.MethodDelete, "/v1/sessions", session.Token, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rr.Code)
	}
	if len(env.revoker.revoked) != 1 {
		t.Fatalf("expected one revoked token, got %d", len(env.revoker.revoked))
	}

	if rr := env.do(t, http.MethodGet, "/v1/me/progress", session.Token, nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token must be rejected, got %d", rr.Code)
	}
}

func TestProfileEditAndView(t *testing.T) {
	env := newTestEnv(t)
	token := env.signUp(t, "alice")

	goal := "run faster"
	rr := env.do(t, http.MethodPatch, "/v1/me/profile", token, ProfileEditRequest{Goal: &goal})
	if rr.Code != http.StatusConflict {
		t.Fatalf("edit before onboarding: expected 409 got %d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/v1/me/profile", token, nil)
	var empty ProfileView
	decode(t, rr, &empty)
	if empty.Onboarded || empty.Level != 1 || empty.Experience != 0 {
		t.Fatalf("unexpected default profile %+v", empty)
	}

	env.onboard(t, token)
	next := "2024-12-01"
	rr = env.do(t, http.MethodPatch, "/v1/me/profile", token, ProfileEditRequest{Goal: &goal, NextTestDate: &next})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var edited ProfileView
	decode(t, rr, &edited)
	if edited.Goal != goal || edited.NextTestDate == nil || *edited.NextTestDate != next {
		t.Fatalf("unexpected profile %+v", edited)
	}
	if edited.DateOfBirth == nil || *edited.DateOfBirth != "2002-03-01" {
		t.Fatalf("date of birth must survive edits: %+v", edited.DateOfBirth)
	}

	rr = env.do(t, http.MethodPut, "/v1/me/profile", token, OnboardingRequest{DateOfBirth: "03/01/2002"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date got %d", rr.Code)
	}
}

func TestLeaderboardRanksTies(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signUp(t, "alice")
	bob := env.signUp(t, "bob")
	env.signUp(t, "carol")
	env.onboard(t, alice)
	env.onboard(t, bob)

	for _, token := range []string{alice, bob} {
		if rr := env.do(t, http.MethodPost, "/v1/me/submissions", token, SubmitRequest{Pushups: 40}); rr.Code != http.StatusCreated {
			t.Fatalf("submit: expected 201 got %d", rr.Code)
		}
	}

	rr := env.do(t, http.MethodGet, "/v1/leaderboard", alice, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	var board LeaderboardResponse
	decode(t, rr, &board)
	if len(board.Items) != 3 {
		t.Fatalf("expected 3 rows got %d", len(board.Items))
	}
	if board.Items[0].Rank != 1 || board.Items[1].Rank != 1 || board.Items[2].Rank != 3 {
		t.Fatalf("unexpected ranks %+v", board.Items)
	}
	if board.Items[0].UserID > board.Items[1].UserID {
		t.Fatalf("ties must be ordered by user id")
	}
	if board.Items[2].Handle != "carol" || board.Items[2].Experience != 0 {
		t.Fatalf("unexpected last row %+v", board.Items[2])
	}
}

func TestAdjustExperienceRequiresScope(t *testing.T) {
	env := newTestEnv(t)
	token := env.signUp(t, "alice")
	env.onboard(t, token)
	user, err := env.store.FindUserByHandle(context.Background(), "alice")
	if err != nil || user == nil {
		t.Fatalf("lookup alice: %v", err)
	}

	path := "/v1/users/" + user.ID + "/experience"
	if rr := env.do(t, http.MethodPost, path, token, AdjustExperienceRequest{Delta: 50}); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rr.Code)
	}

	opToken, _, err := auth.IssueWithScopes(tokenConfig, "ops", "ops", []string{auth.ScopeExperienceAdjust}, time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	rr := env.do(t, http.MethodPost, path, opToken, AdjustExperienceRequest{Delta: 50})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var resp AdjustExperienceResponse
	decode(t, rr, &resp)
	if resp.Experience != 50 {
		t.Fatalf("expected 50 got %d", resp.Experience)
	}
}

func TestRequestsWithoutTokenAreUnauthorized(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/v1/me/progress", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
	if got := errorType(t, rr); got != "unauthorized" {
		t.Fatalf("unexpected error type %s", got)
	}

	if rr := env.do(t, http.MethodGet, "/healthz", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("healthz must be public, got %d", rr.Code)
	}
}

func TestHistoryRejectsForgedCursor(t *testing.T) {
	env := newTestEnv(t)
	token := env.signUp(t, "mallory")
	env.onboard(t, token)

	rr := env.do(t, http.MethodGet, "/v1/me/submissions?cursor=abc", token, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", rr.Code, rr.Body.String())
	}
	if got := errorType(t, rr); got != "validation_failed" {
		t.Fatalf("unexpected error type %s", got)
	}
}

type failingLedger struct {
	*memory.Store
}

func (failingLedger) RecordSubmission(context.Context, domain.Submission) (domain.RecordResult, error) {
	return domain.RecordResult{}, errors.New("deadlock detected")
}

func TestSubmitLedgerFailureIsInternalError(t *testing.T) {
	env := newTestEnvWithStore(t, func(s *memory.Store) domain.Store { return failingLedger{Store: s} })
	token := env.signUp(t, "dave")
	env.onboard(t, token)

	rr := env.do(t, http.MethodPost, "/v1/me/submissions", token, SubmitRequest{Pushups: 20, Situps: 20, RunSeconds: 700})
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d: %s", rr.Code, rr.Body.String())
	}
	if got := errorType(t, rr); got != "persistence_failure" {
		t.Fatalf("unexpected error type %s", got)
	}
	if strings.Contains(rr.Body.String(), "deadlock") {
		t.Fatalf("internal error detail must not leak: %s", rr.Body.String())
	}
}

func TestAdjustExperienceUnknownIDIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	opToken, _, err := auth.IssueWithScopes(tokenConfig, "ops", "ops", []string{auth.ScopeExperienceAdjust}, time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	rr := env.do(t, http.MethodPost, "/v1/users/not-a-uuid/experience", opToken, AdjustExperienceRequest{Delta: 10})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d: %s", rr.Code, rr.Body.String())
	}
	if got := errorType(t, rr); got != "not_found" {
		t.Fatalf("unexpected error type %s", got)
	}
}

func TestLeaderboardLimitIsClamped(t *testing.T) {
	env := newTestEnv(t)
	token := env.signUp(t, "reader")
	for i := 0; i < 210; i++ {
		user := domain.User{ID: fmt.Sprintf("00000000-0000-0000-0000-%012d", i), Handle: fmt.Sprintf("user%03d", i)}
		if err := env.store.CreateUser(context.Background(), user); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}

	cases := []struct {
		query string
		want  int
	}{
		{"", 50},
		{"?limit=10", 10},
		{"?limit=1000", 200},
		{"?limit=-3", 50},
		{"?limit=abc", 50},
	}
	for _, tc := range cases {
		rr := env.do(t, http.MethodGet, "/v1/leaderboard"+tc.query, token, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%q: expected 200 got %d", tc.query, rr.Code)
		}
		var resp LeaderboardResponse
		decode(t, rr, &resp)
		if len(resp.Items) != tc.want {
			t.Fatalf("%q: expected %d rows got %d", tc.query, tc.want, len(resp.Items))
		}
	}
}
