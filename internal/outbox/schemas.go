package outbox

import "example.com/fitprogress/internal/events"

const submissionRecordedSchema = `{
  "type": "object",
  "title": "SubmissionRecorded",
  "properties": {
    "submission_id": {"type": "string"},
    "user_id": {"type": "string"},
    "day": {"type": "string", "format": "date"},
    "pushups": {"type": "integer", "minimum": 0},
    "situps": {"type": "integer", "minimum": 0},
    "run_seconds": {"type": "number", "minimum": 0},
    "score": {"type": "integer"},
    "grade": {"type": "string"},
    "replaced_score": {"type": "integer"},
    "experience_delta": {"type": "integer"},
    "experience": {"type": "integer", "minimum": 0},
    "recorded_at": {"type": "string", "format": "date-time"}
  },
  "required": ["submission_id", "user_id", "day", "pushups", "situps", "run_seconds", "score", "experience_delta", "experience", "recorded_at"],
  "additionalProperties": false
}`

// SchemaCatalogEntry maps event type to schema definition.
type SchemaCatalogEntry struct {
	Schema string
}

var schemaCatalog = map[string]SchemaCatalogEntry{
	events.TypeSubmissionRecorded: {
		Schema: submissionRecordedSchema,
	},
}
