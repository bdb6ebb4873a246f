// Package domain defines the progression and scoring workflows of the fitness service.
package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"example.com/fitprogress/internal/observability"
	"example.com/fitprogress/internal/progression"
)

// UserRepository persists identities.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	FindUserByHandle(ctx context.Context, handle string) (*User, error)
}

// ProfileRepository persists per-user state. GetProfile returns nil, nil when no row exists.
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	EnsureProfile(ctx context.Context, profile Profile) (Profile, error)
	UpdateProfile(ctx context.Context, userID string, edit ProfileEdit) (*Profile, error)
	IncrementExperience(ctx context.Context, userID string, delta int) (int, error)
}

// LedgerRepository persists submissions. RecordSubmission must replace the same-day row, adjust
// the experience balance and record the outbox event atomically.
type LedgerRepository interface {
	RecordSubmission(ctx context.Context, submission Submission) (RecordResult, error)
	LatestSubmission(ctx context.Context, userID string) (*Submission, error)
	ListSubmissions(ctx context.Context, userID string, cursor *Cursor, limit int) ([]Submission, *Cursor, error)
}

// LeaderboardRepository reads identities joined with experience, ordered by experience
// descending then user id ascending.
type LeaderboardRepository interface {
	Rankings(ctx context.Context, limit int) ([]Standing, error)
}

// Store aggregates every repository the service needs.
type Store interface {
	UserRepository
	ProfileRepository
	LedgerRepository
	LeaderboardRepository
}

// Scorer converts raw exercise metrics into a score.
type Scorer interface {
	Score(ctx context.Context, req ScoreRequest) (ScoreResult, error)
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the zone used to decide which calendar day a submission belongs to.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Service) { s.logger = logger }
}

// Service orchestrates onboarding, submissions and progression reads.
type Service struct {
	store  Store
	scorer Scorer
	now    func() time.Time
	loc    *time.Location
	logger logrus.FieldLogger
}

// NewService constructs a Service.
func NewService(store Store, scorer Scorer, opts ...Option) *Service {
	s := &Service{
		store:  store,
		scorer: scorer,
		now:    time.Now,
		loc:    time.UTC,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnboardingInput is the payload of the onboarding form.
type OnboardingInput struct {
	DateOfBirth   time.Time
	Goal          string
	AvatarPath    string
	NextTestDate  *time.Time
	PreviousScore *int
}

// CompleteOnboarding creates the profile on first call and updates it in place afterwards.
func (s *Service) CompleteOnboarding(ctx context.Context, userID string, input OnboardingInput) (*Profile, error) {
	if input.DateOfBirth.IsZero() {
		return nil, fmt.Errorf("%w: date_of_birth is required", ErrInvalidProfile)
	}
	today := s.today()
	dob := CalendarDay(input.DateOfBirth, time.UTC)
	if !dob.Before(today) {
		return nil, fmt.Errorf("%w: date_of_birth must be in the past", ErrInvalidProfile)
	}
	if input.PreviousScore != nil && *input.PreviousScore < 0 {
		return nil, fmt.Errorf("%w: previous_score must be >= 0", ErrInvalidProfile)
	}

	profile := Profile{
		UserID:        userID,
		DateOfBirth:   &dob,
		Goal:          strings.TrimSpace(input.Goal),
		AvatarPath:    strings.TrimSpace(input.AvatarPath),
		PreviousScore: input.PreviousScore,
	}
	if input.NextTestDate != nil {
		next := CalendarDay(*input.NextTestDate, time.UTC)
		profile.NextTestDate = &next
	}

	stored, err := s.store.EnsureProfile(ctx, profile)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// EditProfile applies a partial update to an existing profile.
func (s *Service) EditProfile(ctx context.Context, userID string, edit ProfileEdit) (*Profile, error) {
	if edit.Goal != nil {
		trimmed := strings.TrimSpace(*edit.Goal)
		edit.Goal = &trimmed
	}
	if edit.NextTestDate != nil {
		next := CalendarDay(*edit.NextTestDate, time.UTC)
		edit.NextTestDate = &next
	}
	profile, err := s.store.UpdateProfile(ctx, userID, edit)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrIncompleteProfile
	}
	return profile, nil
}

// Profile returns the user's profile, or a zero-valued one when the user has not onboarded.
func (s *Service) Profile(ctx context.Context, userID string) (Profile, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	if profile == nil {
		return Profile{UserID: userID}, nil
	}
	return *profile, nil
}

// AdjustExperience applies a manual correction to a user's balance and returns the new balance.
func (s *Service) AdjustExperience(ctx context.Context, userID string, delta int) (int, error) {
	balance, err := s.store.IncrementExperience(ctx, userID, delta)
	if err != nil {
		return 0, err
	}
	s.logger.WithFields(logrus.Fields{"user_id": userID, "delta": delta, "experience": balance}).Info("experience adjusted")
	return balance, nil
}

// SubmitInput is the raw physical-test result.
type SubmitInput struct {
	Pushups    int
	Situps     int
	RunSeconds float64
}

// Validate ensures the result is well formed.
func (in SubmitInput) Validate() error {
	if in.Pushups < 0 {
		return fmt.Errorf("%w: pushups must be >= 0", ErrInvalidSubmission)
	}
	if in.Situps < 0 {
		return fmt.Errorf("%w: situps must be >= 0", ErrInvalidSubmission)
	}
	if in.RunSeconds < 0 || math.IsNaN(in.RunSeconds) || math.IsInf(in.RunSeconds, 0) {
		return fmt.Errorf("%w: run_seconds must be a non-negative number", ErrInvalidSubmission)
	}
	return nil
}

// SubmissionOutcome is returned after a submission is committed.
type SubmissionOutcome struct {
	Submission    Submission
	Age           int
	PreviousScore *int
	Progression   progression.Snapshot
}

// Submit scores a test result and records it as the user's entry for today.
// The scoring call happens before any write; a scoring failure leaves all state unchanged.
func (s *Service) Submit(ctx context.Context, userID string, input SubmitInput) (*SubmissionOutcome, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: load profile: %v", ErrPersistence, err)
	}
	if profile == nil || !profile.Onboarded() {
		observability.RecordSubmissionOutcome(observability.OutcomeIncompleteProfile)
		return nil, ErrIncompleteProfile
	}

	now := s.now()
	day := CalendarDay(now, s.loc)
	age := progression.AgeOn(*profile.DateOfBirth, day)

	result, err := s.scorer.Score(ctx, ScoreRequest{
		Age:        age,
		Pushups:    input.Pushups,
		Situps:     input.Situps,
		RunSeconds: input.RunSeconds,
	})
	if err != nil {
		observability.RecordSubmissionOutcome(observability.OutcomeScoringFailed)
		s.logger.WithFields(logrus.Fields{"user_id": userID, "age": age}).WithError(err).Warn("scoring failed")
		if errors.Is(err, ErrScoringUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: age=%d: %v", ErrScoringUnavailable, age, err)
	}

	submission := Submission{
		ID:         uuid.NewString(),
		UserID:     userID,
		Pushups:    input.Pushups,
		Situps:     input.Situps,
		RunSeconds: input.RunSeconds,
		Score:      result.Score,
		Grade:      result.Grade,
		Day:        day,
		CreatedAt:  now.UTC(),
	}

	recorded, err := s.store.RecordSubmission(ctx, submission)
	if err != nil {
		observability.RecordSubmissionOutcome(observability.OutcomePersistenceFailed)
		s.logger.WithFields(logrus.Fields{"user_id": userID, "day": day.Format(time.DateOnly)}).WithError(err).Error("ledger write failed")
		if errors.Is(err, ErrIncompleteProfile) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if recorded.PreviousScore != nil {
		observability.RecordSubmissionOutcome(observability.OutcomeReplaced)
	} else {
		observability.RecordSubmissionOutcome(observability.OutcomeRecorded)
	}
	observability.RecordSubmissionPersisted(submission.CreatedAt)

	s.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"day":        day.Format(time.DateOnly),
		"score":      submission.Score,
		"experience": recorded.Experience,
		"replaced":   recorded.PreviousScore != nil,
	}).Info("submission recorded")

	score := submission.Score
	return &SubmissionOutcome{
		Submission:    submission,
		Age:           age,
		PreviousScore: recorded.PreviousScore,
		Progression:   progression.Derive(recorded.Experience, &score, submission.Grade),
	}, nil
}

// ProgressView is the data behind the home page.
type ProgressView struct {
	Profile     Profile
	Latest      *Submission
	RunDisplay  string
	Progression progression.Snapshot
}

// Progress derives the user's level and tier from stored experience and the latest submission.
func (s *Service) Progress(ctx context.Context, userID string) (*ProgressView, error) {
	profile, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	latest, err := s.store.LatestSubmission(ctx, userID)
	if err != nil {
		return nil, err
	}

	view := &ProgressView{Profile: profile, Latest: latest}
	if latest == nil {
		view.Progression = progression.Derive(profile.Experience, nil, "")
		return view, nil
	}
	score := latest.Score
	view.Progression = progression.Derive(profile.Experience, &score, latest.Grade)
	view.RunDisplay = progression.FormatDuration(int(latest.RunSeconds))
	return view, nil
}

// History lists the user's submissions newest first.
func (s *Service) History(ctx context.Context, userID string, cursor *Cursor, limit int) ([]Submission, *Cursor, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.store.ListSubmissions(ctx, userID, cursor, limit)
}

// Leaderboard returns ranked standings. Tied balances share a rank; positions stay unique.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]Standing, error) {
	standings, err := s.store.Rankings(ctx, limit)
	if err != nil {
		return nil, err
	}
	for i := range standings {
		standings[i].Position = i + 1
		standings[i].Level = progression.Level(standings[i].Experience)
		if i > 0 && standings[i].Experience == standings[i-1].Experience {
			standings[i].Rank = standings[i-1].Rank
		} else {
			standings[i].Rank = i + 1
		}
	}
	return standings, nil
}

func (s *Service) today() time.Time {
	return CalendarDay(s.now(), s.loc)
}
