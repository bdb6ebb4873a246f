package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"example.com/fitprogress/internal/domain"
)

// CreateUser inserts a new identity. A handle collision maps to domain.ErrDuplicateIdentity.
func (r *Repository) CreateUser(ctx context.Context, user domain.User) error {
	const stmt = `INSERT INTO users (user_id, handle, credential_hash, created_at) VALUES ($1,$2,$3,$4)`

	_, err := r.pool.Exec(ctx, stmt, user.ID, user.Handle, user.CredentialHash, user.CreatedAt)
	if err != nil {
		if isPgError(err, pgUniqueViolation) {
			return domain.ErrDuplicateIdentity
		}
		return err
	}
	return nil
}

// FindUserByHandle returns nil, nil when the handle is unknown.
func (r *Repository) FindUserByHandle(ctx context.Context, handle string) (*domain.User, error) {
	const query = `SELECT user_id::text, handle, credential_hash, created_at FROM users WHERE handle = $1`

	var user domain.User
	err := r.pool.QueryRow(ctx, query, handle).Scan(&user.ID, &user.Handle, &user.CredentialHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}
