package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/domain"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/store"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/xid"
)

const referenceColumns = `id, category, value, description, phone, active, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReference(r rowScanner) (domain.ReferenceEntry, error) {
	var e domain.ReferenceEntry
	var category string
	if err := r.Scan(&e.ID, &category, &e.Value, &e.Description, &e.Phone, &e.Active, &e.CreatedAt); err != nil {
		return domain.ReferenceEntry{}, err
	}
	e.Category = domain.ReferenceCategory(category)
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

func (s *Store) ListReferenceEntries(ctx context.Context, category domain.ReferenceCategory) ([]domain.ReferenceEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+referenceColumns+`
		FROM reference_entries
		WHERE category = $1 AND active = true
		ORDER BY lower(value), created_at
	`, string(category))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.ReferenceEntry, 0, 32)
	for rows.Next() {
		e, err := scanReference(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) GetReferenceEntry(ctx context.Context, id string) (*domain.ReferenceEntry, error) {
	e, err := scanReference(s.db.QueryRowContext(ctx, `
		SELECT `+referenceColumns+`
		FROM reference_entries
		WHERE id = $1
	`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (s *Store) InsertReferenceEntry(ctx context.Context, entry domain.ReferenceEntry) (*domain.ReferenceEntry, error) {
	if !entry.Category.Valid() || strings.TrimSpace(entry.Value) == "" {
		return nil, store.ErrInvalidInput
	}
	if entry.ID == "" {
		entry.ID = xid.New("ref")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reference_entries (id, category, value, description, phone, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, entry.ID, string(entry.Category), entry.Value, entry.Description, entry.Phone, entry.Active, entry.CreatedAt)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	created := entry
	return &created, nil
}

// UpdateReferenceEntry rewrites the editable fields. Category and creation
// time never change.
func (s *Store) UpdateReferenceEntry(ctx context.Context, entry domain.ReferenceEntry) (*domain.ReferenceEntry, error) {
	if strings.TrimSpace(entry.Value) == "" {
		return nil, store.ErrInvalidInput
	}
	updated, err := scanReference(s.db.QueryRowContext(ctx, `
		UPDATE reference_entries
		SET value = $2, description = $3, phone = $4, active = $5
		WHERE id = $1
		RETURNING `+referenceColumns,
		entry.ID, entry.Value, entry.Description, entry.Phone, entry.Active))
	if err != nil {
		return nil, mapWriteErr(notFound(err))
	}
	return &updated, nil
}

func (s *Store) DeactivateReferenceEntry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE reference_entries
		SET active = false
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}
