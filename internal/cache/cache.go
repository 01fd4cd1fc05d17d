package cache

import (
	"context"
	"time"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/domain"
)

// ReferenceCache holds the active entries of one reference category.
type ReferenceCache interface {
	Get(ctx context.Context, category domain.ReferenceCategory) ([]domain.ReferenceEntry, bool, error)
	Set(ctx context.Context, category domain.ReferenceCategory, entries []domain.ReferenceEntry, ttl time.Duration) error
	Invalidate(ctx context.Context, category domain.ReferenceCategory) error
}

type NoopReferenceCache struct{}

func (NoopReferenceCache) Get(_ context.Context, _ domain.ReferenceCategory) ([]domain.ReferenceEntry, bool, error) {
	return nil, false, nil
}

func (NoopReferenceCache) Set(_ context.Context, _ domain.ReferenceCategory, _ []domain.ReferenceEntry, _ time.Duration) error {
	return nil
}

func (NoopReferenceCache) Invalidate(_ context.Context, _ domain.ReferenceCategory) error {
	return nil
}
