package domain

import "time"

// User is the identity record created at registration.
type User struct {
	ID             string
	Handle         string
	CredentialHash string
	CreatedAt      time.Time
}

// Profile holds per-user mutable state. A zero Profile (no CreatedAt) means the user has not onboarded.
type Profile struct {
	UserID        string
	Experience    int
	Currency      int
	DateOfBirth   *time.Time
	Goal          string
	AvatarPath    string
	NextTestDate  *time.Time
	PreviousScore *int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Onboarded reports whether the profile carries the data needed to score a submission.
func (p Profile) Onboarded() bool {
	return p.DateOfBirth != nil
}

// Submission is one calendar day's physical-test record.
type Submission struct {
	ID         string
	UserID     string
	Pushups    int
	Situps     int
	RunSeconds float64
	Score      int
	Grade      string
	// Day is the calendar date at midnight UTC.
	Day       time.Time
	CreatedAt time.Time
}

// RecordResult describes the effect of a committed ledger write.
type RecordResult struct {
	// PreviousScore is the score of the same-day row that was replaced, if any.
	PreviousScore *int
	// Experience is the profile balance after the write.
	Experience int
}

// Standing is one leaderboard row.
type Standing struct {
	Position   int
	Rank       int
	UserID     string
	Handle     string
	Experience int
	Level      int
}

// Cursor models the history pagination token.
type Cursor struct {
	Day time.Time
	ID  string
}

// ProfileEdit carries optional profile changes; nil fields are left untouched.
type ProfileEdit struct {
	Goal         *string
	AvatarPath   *string
	NextTestDate *time.Time
}

// ScoreRequest is the normalised input sent to the scoring authority.
type ScoreRequest struct {
	Age        int
	Pushups    int
	Situps     int
	RunSeconds float64
}

// ScoreResult is the scoring authority's answer. Grade is empty when the authority omits it.
type ScoreResult struct {
	Score int
	Grade string
}

// CalendarDay truncates t to its calendar date in loc, expressed as midnight UTC.
func CalendarDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
