package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"example.com/fitprogress/internal/domain"
)

const profileColumns = `user_id::text, experience, currency, date_of_birth, goal, avatar_path, next_test_date, previous_score, created_at, updated_at`

// GetProfile returns nil, nil when the user has not onboarded.
func (r *Repository) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	profile, err := scanProfile(r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// EnsureProfile inserts the onboarding row, or overwrites the onboarding fields when the row already
// exists. Experience and currency are never touched here.
func (r *Repository) EnsureProfile(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	const insert = `INSERT INTO profiles (user_id, date_of_birth, goal, avatar_path, next_test_date, previous_score)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING ` + profileColumns

	profile, err := scanProfile(r.pool.QueryRow(ctx, insert,
		p.UserID, p.DateOfBirth, p.Goal, p.AvatarPath, p.NextTestDate, p.PreviousScore))
	if err == nil {
		return profile, nil
	}
	if isPgError(err, pgForeignKeyViolation) {
		return domain.Profile{}, domain.ErrUserNotFound
	}
	if !isPgError(err, pgUniqueViolation) {
		return domain.Profile{}, err
	}

	const update = `UPDATE profiles
        SET date_of_birth = $2, goal = $3, avatar_path = $4, next_test_date = $5, previous_score = $6, updated_at = NOW()
        WHERE user_id = $1
        RETURNING ` + profileColumns

	return scanProfile(r.pool.QueryRow(ctx, update,
		p.UserID, p.DateOfBirth, p.Goal, p.AvatarPath, p.NextTestDate, p.PreviousScore))
}

// UpdateProfile applies the non-nil fields of edit. It returns nil, nil when no profile exists.
func (r *Repository) UpdateProfile(ctx context.Context, userID string, edit domain.ProfileEdit) (*domain.Profile, error) {
	const stmt = `UPDATE profiles
        SET goal = COALESCE($2, goal),
            avatar_path = COALESCE($3, avatar_path),
            next_test_date = COALESCE($4, next_test_date),
            updated_at = NOW()
        WHERE user_id = $1
        RETURNING ` + profileColumns

	profile, err := scanProfile(r.pool.QueryRow(ctx, stmt, userID, edit.Goal, edit.AvatarPath, edit.NextTestDate))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// IncrementExperience moves the balance by delta, flooring at zero.
func (r *Repository) IncrementExperience(ctx context.Context, userID string, delta int) (int, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	balance, err := incrementExperience(ctx, tx, userID, delta)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return balance, nil
}

func incrementExperience(ctx context.Context, tx pgx.Tx, userID string, delta int) (int, error) {
	const stmt = `UPDATE profiles SET experience = GREATEST(experience + $2, 0), updated_at = NOW()
        WHERE user_id = $1 RETURNING experience`

	var balance int
	if err := tx.QueryRow(ctx, stmt, userID, delta).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrIncompleteProfile
		}
		return 0, err
	}
	return balance, nil
}

func scanProfile(row pgx.Row) (domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(
		&p.UserID,
		&p.Experience,
		&p.Currency,
		&p.DateOfBirth,
		&p.Goal,
		&p.AvatarPath,
		&p.NextTestDate,
		&p.PreviousScore,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return domain.Profile{}, err
	}
	if p.DateOfBirth != nil {
		dob := p.DateOfBirth.UTC()
		p.DateOfBirth = &dob
	}
	if p.NextTestDate != nil {
		next := p.NextTestDate.UTC()
		p.NextTestDate = &next
	}
	return p, nil
}
