package postgres

import (
	"context"

	"example.com/fitprogress/internal/domain"
)

// Rankings returns every registered user with their balance; users without a profile count as zero.
// A non-positive limit returns all rows.
func (r *Repository) Rankings(ctx context.Context, limit int) ([]domain.Standing, error) {
	const query = `SELECT u.user_id::text, u.handle, COALESCE(p.experience, 0) AS experience
        FROM users u
        LEFT JOIN profiles p ON p.user_id = u.user_id
        ORDER BY experience DESC, u.user_id ASC
        LIMIT $1`

	var lim interface{}
	if limit > 0 {
		lim = limit
	}

	rows, err := r.pool.Query(ctx, query, lim)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	standings := make([]domain.Standing, 0)
	for rows.Next() {
		var s domain.Standing
		if err := rows.Scan(&s.UserID, &s.Handle, &s.Experience); err != nil {
			return nil, err
		}
		standings = append(standings, s)
	}
	return standings, rows.Err()
}
