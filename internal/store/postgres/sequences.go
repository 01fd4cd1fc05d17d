package postgres

import (
	"context"
	"database/sql"
	"errors"
)

// IncrementSequence is a single upsert, so concurrent callers always get
// distinct values.
func (s *Store) IncrementSequence(ctx context.Context, key string) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sequence_counters (key, last_value, updated_at)
		VALUES ($1, 1, now())
		ON CONFLICT (key)
		DO UPDATE SET last_value = sequence_counters.last_value + 1, updated_at = now()
		RETURNING last_value
	`, key).Scan(&value)
	if err != nil {
		return 0, err
	}
	return value, nil
}

func (s *Store) LoadSequence(ctx context.Context, key string) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `SELECT last_value FROM sequence_counters WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return value, nil
}

// CompareAndSwapSequence moves the counter from expected to next only when
// nobody else moved it first. A missing counter counts as zero.
func (s *Store) CompareAndSwapSequence(ctx context.Context, key string, expected int64, next int64) (bool, error) {
	var res sql.Result
	var err error
	if expected == 0 {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO sequence_counters (key, last_value, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (key)
			DO UPDATE SET last_value = EXCLUDED.last_value, updated_at = now()
			WHERE sequence_counters.last_value = 0
		`, key, next)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE sequence_counters
			SET last_value = $3, updated_at = now()
			WHERE key = $1 AND last_value = $2
		`, key, expected, next)
	}
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}
