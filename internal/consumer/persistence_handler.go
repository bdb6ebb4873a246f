package consumer

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrMissingUser is returned when neither the payload nor the record key names a user.
var ErrMissingUser = errors.New("event carries no user id")

// PersistenceHandler appends consumed events to submission_event_log for auditing.
// Redelivered records are ignored on their (topic, partition, offset) position.
type PersistenceHandler struct {
	pool *pgxpool.Pool
}

// NewPersistenceHandler constructs a handler backed by the provided pool.
func NewPersistenceHandler(pool *pgxpool.Pool) *PersistenceHandler {
	return &PersistenceHandler{pool: pool}
}

// Handle stores the event payload.
func (h *PersistenceHandler) Handle(ctx context.Context, msg Message) error {
	userID, err := eventUser(msg)
	if err != nil {
		return err
	}

	tag, err := h.pool.Exec(ctx,
		`INSERT INTO submission_event_log (event_type, user_id, schema_id, schema_subject, topic, partition, record_offset, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
         ON CONFLICT ON CONSTRAINT submission_event_log_position_key DO NOTHING`,
		msg.EventType,
		userID,
		msg.SchemaID,
		msg.SchemaSubject,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		[]byte(msg.Payload),
		msg.Timestamp,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		duplicateCounter.WithLabelValues(msg.Topic).Inc()
	}
	return nil
}

func eventUser(msg Message) (string, error) {
	var body struct {
		UserID string `json:"user_id"`
	}
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &body); err != nil {
			return "", err
		}
	}
	if body.UserID != "" {
		return body.UserID, nil
	}
	if msg.Key != "" {
		return msg.Key, nil
	}
	return "", ErrMissingUser
}
