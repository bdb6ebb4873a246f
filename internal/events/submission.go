// Package events defines the event payloads written to the outbox and published to Kafka.
package events

import "time"

// Event types carried in the outbox event_type column and the Kafka event_type header.
const (
	TypeSubmissionRecorded = "submission.recorded"
)

// SubmissionRecorded is emitted when a day's test result is committed to the ledger.
type SubmissionRecorded struct {
	SubmissionID    string    `json:"submission_id"`
	UserID          string    `json:"user_id"`
	Day             string    `json:"day"`
	Pushups         int       `json:"pushups"`
	Situps          int       `json:"situps"`
	RunSeconds      float64   `json:"run_seconds"`
	Score           int       `json:"score"`
	Grade           string    `json:"grade,omitempty"`
	ReplacedScore   *int      `json:"replaced_score,omitempty"`
	ExperienceDelta int       `json:"experience_delta"`
	Experience      int       `json:"experience"`
	RecordedAt      time.Time `json:"recorded_at"`
}
