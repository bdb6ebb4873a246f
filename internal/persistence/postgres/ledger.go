package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"example.com/fitprogress/internal/domain"
	"example.com/fitprogress/internal/events"
)

const submissionColumns = `submission_id::text, user_id::text, pushups, situps, run_seconds, score, grade, submission_date, created_at`

// RecordSubmission replaces the user's row for the submission day, moves the experience balance by
// the difference between the new and replaced scores, and appends the outbox event, all in one
// transaction. The profile row lock serialises concurrent writers for the same user.
func (r *Repository) RecordSubmission(ctx context.Context, sub domain.Submission) (result domain.RecordResult, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return result, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	var current int
	err = tx.QueryRow(ctx, `SELECT experience FROM profiles WHERE user_id = $1 FOR UPDATE`, sub.UserID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = domain.ErrIncompleteProfile
		}
		return result, err
	}

	rows, err := tx.Query(ctx,
		`DELETE FROM workout_submissions WHERE user_id = $1 AND submission_date = $2 RETURNING score`,
		sub.UserID, sub.Day)
	if err != nil {
		return result, err
	}
	replaced, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return result, err
	}

	previous := 0
	for _, score := range replaced {
		previous += score
	}
	if len(replaced) > 0 {
		result.PreviousScore = &previous
	}

	const insertSubmission = `INSERT INTO workout_submissions (submission_id, user_id, pushups, situps, run_seconds, score, grade, submission_date, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	if _, err = tx.Exec(ctx, insertSubmission,
		sub.ID,
		sub.UserID,
		sub.Pushups,
		sub.Situps,
		sub.RunSeconds,
		sub.Score,
		nullIfEmpty(sub.Grade),
		sub.Day,
		sub.CreatedAt,
	); err != nil {
		return result, err
	}

	delta := sub.Score - previous
	if result.Experience, err = incrementExperience(ctx, tx, sub.UserID, delta); err != nil {
		return result, err
	}

	if err = insertOutbox(ctx, tx, outboxRecord{
		AggregateType: "submission",
		AggregateID:   sub.ID,
		UserID:        sub.UserID,
	}, events.TypeSubmissionRecorded, events.SubmissionRecorded{
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
		Experience:      result.Experience,
		RecordedAt:      sub.CreatedAt,
	}); err != nil {
		return result, err
	}

	err = tx.Commit(ctx)
	return result, err
}

// LatestSubmission returns the most recent submission or nil when the user has none.
func (r *Repository) LatestSubmission(ctx context.Context, userID string) (*domain.Submission, error) {
	query := `SELECT ` + submissionColumns + `
        FROM workout_submissions WHERE user_id = $1
        ORDER BY submission_date DESC, created_at DESC LIMIT 1`

	sub, err := scanSubmission(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// ListSubmissions returns a user's submissions newest first.
func (r *Repository) ListSubmissions(ctx context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.Submission, *domain.Cursor, error) {
	args := []interface{}{userID, limit}
	query := `SELECT ` + submissionColumns + `
        FROM workout_submissions WHERE user_id = $1`

	if cursor != nil {
		query += ` AND (submission_date, submission_id) < ($3, $4::uuid)`
		args = append(args, cursor.Day, cursor.ID)
	}
	query += ` ORDER BY submission_date DESC, submission_id DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results := make([]domain.Submission, 0, limit)
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{Day: last.Day, ID: last.ID}
	}
	return results, next, nil
}

func scanSubmission(row pgx.Row) (domain.Submission, error) {
	var sub domain.Submission
	var grade *string
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.Pushups, &sub.Situps, &sub.RunSeconds, &sub.Score, &grade, &sub.Day, &sub.CreatedAt); err != nil {
		return domain.Submission{}, err
	}
	if grade != nil {
		sub.Grade = *grade
	}
	sub.Day = sub.Day.UTC()
	return sub, nil
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
