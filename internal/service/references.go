package service

import (
	"context"
	"fmt"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/domain"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/store"
)

func (s *Service) ListReferences(ctx context.Context, category domain.ReferenceCategory) ([]domain.ReferenceEntry, error) {
	return s.catalog.FindByCategory(ctx, category)
}

func (s *Service) CheckReferenceDuplicate(ctx context.Context, category domain.ReferenceCategory, value string, excludeID string) (domain.DuplicateCheck, error) {
	return s.catalog.CheckDuplicate(ctx, category, value, excludeID)
}

func (s *Service) AddReference(ctx context.Context, category domain.ReferenceCategory, req domain.ReferenceEntryRequest) (*domain.ReferenceEntry, error) {
	entry, err := s.catalog.Add(ctx, category, req.Value, req.Description, req.Phone)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "reference.create", "reference", entry.ID, fmt.Sprintf("%s=%s", entry.Category, entry.Value))
	return entry, nil
}

// UpdateReference edits an entry addressed by category and id. An id from
// another category is reported as not found.
func (s *Service) UpdateReference(ctx context.Context, category domain.ReferenceCategory, id string, req domain.ReferenceEntryRequest) (*domain.ReferenceEntry, error) {
	if err := s.ensureCategory(ctx, category, id); err != nil {
		return nil, err
	}
	entry, err := s.catalog.Update(ctx, id, req.Value, req.Description, req.Phone)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "reference.update", "reference", entry.ID, fmt.Sprintf("%s=%s", entry.Category, entry.Value))
	return entry, nil
}

func (s *Service) DeactivateReference(ctx context.Context, category domain.ReferenceCategory, id string) (*domain.ReferenceEntry, error) {
	if err := s.ensureCategory(ctx, category, id); err != nil {
		return nil, err
	}
	entry, err := s.catalog.Deactivate(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "reference.deactivate", "reference", entry.ID, fmt.Sprintf("%s=%s", entry.Category, entry.Value))
	return entry, nil
}

func (s *Service) ensureCategory(ctx context.Context, category domain.ReferenceCategory, id string) error {
	if !category.Valid() {
		return domain.Invalid("category", fmt.Sprintf("unknown category %q", category))
	}
	entry, err := s.repo.GetReferenceEntry(ctx, id)
	if err != nil {
		return err
	}
	if entry.Category != category {
		return store.ErrNotFound
	}
	return nil
}
