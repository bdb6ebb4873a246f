// Package memory provides an in-process domain.Store for local development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"example.com/fitprogress/internal/domain"
	"example.com/fitprogress/internal/events"
)

// Store keeps every table in maps guarded by a single RWMutex.
type Store struct {
	mu          sync.RWMutex
	now         func() time.Time
	users       map[string]domain.User
	handles     map[string]string
	profiles    map[string]domain.Profile
	submissions map[string][]domain.Submission
	events      []events.SubmissionRecorded
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		now:         time.Now,
		users:       make(map[string]domain.User),
		handles:     make(map[string]string),
		profiles:    make(map[string]domain.Profile),
		submissions: make(map[string][]domain.Submission),
	}
}

func (s *Store) CreateUser(_ context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.handles[user.Handle]; exists {
		return domain.ErrDuplicateIdentity
	}
	s.users[user.ID] = user
	s.handles[user.Handle] = user.ID
	return nil
}

func (s *Store) FindUserByHandle(_ context.Context, handle string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.handles[handle]
	if !ok {
		return nil, nil
	}
	user := s.users[id]
	return &user, nil
}

func (s *Store) GetProfile(_ context.Context, userID string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// EnsureProfile creates the profile or overwrites its onboarding fields, preserving balances.
func (s *Store) EnsureProfile(_ context.Context, p domain.Profile) (domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[p.UserID]; !ok {
		return domain.Profile{}, domain.ErrUserNotFound
	}

	now := s.now().UTC()
	existing, ok := s.profiles[p.UserID]
	if !ok {
		existing = domain.Profile{UserID: p.UserID, CreatedAt: now}
	}
	existing.DateOfBirth = p.DateOfBirth
	existing.Goal = p.Goal
	existing.AvatarPath = p.AvatarPath
	existing.NextTestDate = p.NextTestDate
	existing.PreviousScore = p.PreviousScore
	existing.UpdatedAt = now

	s.profiles[p.UserID] = existing
	return existing, nil
}

func (s *Store) UpdateProfile(_ context.Context, userID string, edit domain.ProfileEdit) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	if edit.Goal != nil {
		p.Goal = *edit.Goal
	}
	if edit.AvatarPath != nil {
		p.AvatarPath = *edit.AvatarPath
	}
	if edit.NextTestDate != nil {
		next := *edit.NextTestDate
		p.NextTestDate = &next
	}
	p.UpdatedAt = s.now().UTC()
	s.profiles[userID] = p
	return &p, nil
}

func (s *Store) IncrementExperience(_ context.Context, userID string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.incrementLocked(userID, delta)
}

func (s *Store) incrementLocked(userID string, delta int) (int, error) {
	p, ok := s.profiles[userID]
	if !ok {
		return 0, domain.ErrIncompleteProfile
	}
	p.Experience += delta
	if p.Experience < 0 {
		p.Experience = 0
	}
	p.UpdatedAt = s.now().UTC()
	s.profiles[userID] = p
	return p.Experience, nil
}

// RecordSubmission mirrors the Postgres ledger transaction under the write lock.
func (s *Store) RecordSubmission(_ context.Context, sub domain.Submission) (domain.RecordResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result domain.RecordResult
	if _, ok := s.profiles[sub.UserID]; !ok {
		return result, domain.ErrIncompleteProfile
	}

	kept := s.submissions[sub.UserID][:0:0]
	previous, replaced := 0, false
	for _, existing := range s.submissions[sub.UserID] {
		if existing.Day.Equal(sub.Day) {
			previous += existing.Score
			replaced = true
			continue
		}
		kept = append(kept, existing)
	}
	if replaced {
		result.PreviousScore = &previous
	}

	delta := sub.Score - previous
	balance, err := s.incrementLocked(sub.UserID, delta)
	if err != nil {
		return domain.RecordResult{}, err
	}
	result.Experience = balance
	s.submissions[sub.UserID] = append(kept, sub)

	s.events = append(s.events, events.SubmissionRecorded{
		SubmissionID:    sub.ID,
		UserID:          sub.UserID,
		Day:             sub.Day.Format(time.DateOnly),
		Pushups:         sub.Pushups,
		Situps:          sub.Situps,
		RunSeconds:      sub.RunSeconds,
		Score:           sub.Score,
		Grade:           sub.Grade,
		ReplacedScore:   result.PreviousScore,
		ExperienceDelta: delta,
		Experience:      balance,
		RecordedAt:      sub.CreatedAt,
	})
	return result, nil
}

func (s *Store) LatestSubmission(_ context.Context, userID string) (*domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sorted := s.sortedLocked(userID)
	if len(sorted) == 0 {
		return nil, nil
	}
	latest := sorted[0]
	return &latest, nil
}

func (s *Store) ListSubmissions(_ context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.Submission, *domain.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]domain.Submission, 0, limit)
	for _, sub := range s.sortedLocked(userID) {
		if cursor != nil && !before(sub, *cursor) {
			continue
		}
		if len(results) == limit {
			break
		}
		results = append(results, sub)
	}

	var next *domain.Cursor
	if limit > 0 && len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{Day: last.Day, ID: last.ID}
	}
	return results, next, nil
}

func (s *Store) Rankings(_ context.Context, limit int) ([]domain.Standing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	standings := make([]domain.Standing, 0, len(s.users))
	for id, user := range s.users {
		standings = append(standings, domain.Standing{
			UserID:     id,
			Handle:     user.Handle,
			Experience: s.profiles[id].Experience,
		})
	}
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Experience != standings[j].Experience {
			return standings[i].Experience > standings[j].Experience
		}
		return standings[i].UserID < standings[j].UserID
	})
	if limit > 0 && len(standings) > limit {
		standings = standings[:limit]
	}
	return standings, nil
}

// Events returns the submission events recorded so far.
func (s *Store) Events() []events.SubmissionRecorded {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]events.SubmissionRecorded, len(s.events))
	copy(out, s.events)
	return out
}

// sortedLocked returns the user's submissions by day descending then id descending.
func (s *Store) sortedLocked(userID string) []domain.Submission {
	subs := append([]domain.Submission(nil), s.submissions[userID]...)
	sort.Slice(subs, func(i, j int) bool {
		if !subs[i].Day.Equal(subs[j].Day) {
			return subs[i].Day.After(subs[j].Day)
		}
		return subs[i].ID > subs[j].ID
	})
	return subs
}

func before(sub domain.Submission, c domain.Cursor) bool {
	if !sub.Day.Equal(c.Day) {
		return sub.Day.Before(c.Day)
	}
	return sub.ID < c.ID
}

var _ domain.Store = (*Store)(nil)
