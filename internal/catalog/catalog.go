package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/cache"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/domain"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/store"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/xid"
)

var ErrDuplicateValue = errors.New("duplicate reference value")

type Store interface {
	ListReferenceEntries(ctx context.Context, category domain.ReferenceCategory) ([]domain.ReferenceEntry, error)
	GetReferenceEntry(ctx context.Context, id string) (*domain.ReferenceEntry, error)
	InsertReferenceEntry(ctx context.Context, entry domain.ReferenceEntry) (*domain.ReferenceEntry, error)
	UpdateReferenceEntry(ctx context.Context, entry domain.ReferenceEntry) (*domain.ReferenceEntry, error)
	DeactivateReferenceEntry(ctx context.Context, id string) error
}

// Catalog serves the named lookup lists (agents, recipients, places, types)
// and guards their case-insensitive uniqueness.
type Catalog struct {
	store  Store
	cache  cache.ReferenceCache
	ttl    time.Duration
	loads  singleflight.Group
	logger *slog.Logger

	// genMu guards gens, bumped on every write so a load that raced a write
	// never fills the cache with its older list.
	genMu sync.Mutex
	gens  map[domain.ReferenceCategory]uint64
}

func New(s Store, refCache cache.ReferenceCache, ttl time.Duration, logger *slog.Logger) *Catalog {
	if refCache == nil {
		refCache = cache.NoopReferenceCache{}
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Catalog{
		store:  s,
		cache:  refCache,
		ttl:    ttl,
		logger: logger,
		gens:   make(map[domain.ReferenceCategory]uint64),
	}
}

// FindByCategory returns the active entries of a category ordered by value.
func (c *Catalog) FindByCategory(ctx context.Context, category domain.ReferenceCategory) ([]domain.ReferenceEntry, error) {
	if !category.Valid() {
		return nil, domain.Invalid("category", fmt.Sprintf("unknown category %q", category))
	}

	if cached, hit, err := c.cache.Get(ctx, category); err != nil {
		c.logger.Warn("reference cache read failed", slog.String("category", string(category)), slog.Any("error", err))
	} else if hit {
		return cached, nil
	}

	result := c.loads.DoChan(string(category), func() (interface{}, error) {
		loadCtx := context.WithoutCancel(ctx)
		gen := c.generation(category)
		entries, err := c.store.ListReferenceEntries(loadCtx, category)
		if err != nil {
			return nil, err
		}
		sortByValue(entries)
		c.fill(loadCtx, category, gen, entries)
		return entries, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-result:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]domain.ReferenceEntry)), nil
	}
}

// CheckDuplicate reports whether an active entry of the category already
// carries value, compared trimmed and case-insensitively. The entry with
// excludeID is ignored so an edit does not collide with itself. It always
// reads the store, never the cache.
func (c *Catalog) CheckDuplicate(ctx context.Context, category domain.ReferenceCategory, value string, excludeID string) (domain.DuplicateCheck, error) {
	if !category.Valid() {
		return domain.DuplicateCheck{}, domain.Invalid("category", fmt.Sprintf("unknown category %q", category))
	}
	entries, err := c.store.ListReferenceEntries(ctx, category)
	if err != nil {
		return domain.DuplicateCheck{}, err
	}

	want := fold(value)
	if want == "" {
		return domain.DuplicateCheck{}, nil
	}
	for i := range entries {
		e := entries[i]
		if !e.Active || e.ID == excludeID {
			continue
		}
		if fold(e.Value) == want {
			return domain.DuplicateCheck{Exists: true, Match: &e}, nil
		}
	}
	return domain.DuplicateCheck{}, nil
}

func (c *Catalog) Add(ctx context.Context, category domain.ReferenceCategory, value string, description string, phone string) (*domain.ReferenceEntry, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, domain.Invalid("value", "must not be empty")
	}

	check, err := c.CheckDuplicate(ctx, category, value, "")
	if err != nil {
		return nil, err
	}
	if check.Exists {
		return nil, fmt.Errorf("%w: %q already exists as %q", ErrDuplicateValue, value, check.Match.Value)
	}

	created, err := c.store.InsertReferenceEntry(ctx, domain.ReferenceEntry{
		ID:          xid.New("ref"),
		Category:    category,
		Value:       value,
		Description: strings.TrimSpace(description),
		Phone:       strings.TrimSpace(phone),
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateValue, value)
		}
		return nil, err
	}
	c.invalidate(ctx, category)
	return created, nil
}

// Update edits an active entry. A changed value is re-checked for duplicates
// excluding the entry itself.
func (c *Catalog) Update(ctx context.Context, id string, value string, description string, phone string) (*domain.ReferenceEntry, error) {
	existing, err := c.store.GetReferenceEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if !existing.Active {
		return nil, store.ErrNotFound
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return nil, domain.Invalid("value", "must not be empty")
	}
	if value != existing.Value {
		check, err := c.CheckDuplicate(ctx, existing.Category, value, existing.ID)
		if err != nil {
			return nil, err
		}
		if check.Exists {
			return nil, fmt.Errorf("%w: %q already exists as %q", ErrDuplicateValue, value, check.Match.Value)
		}
	}

	next := *existing
	next.Value = value
	next.Description = strings.TrimSpace(description)
	next.Phone = strings.TrimSpace(phone)
	updated, err := c.store.UpdateReferenceEntry(ctx, next)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateValue, value)
		}
		return nil, err
	}
	c.invalidate(ctx, existing.Category)
	return updated, nil
}

// Deactivate soft-deletes an entry. Entries are never removed from the store.
func (c *Catalog) Deactivate(ctx context.Context, id string) (*domain.ReferenceEntry, error) {
	existing, err := c.store.GetReferenceEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.store.DeactivateReferenceEntry(ctx, id); err != nil {
		return nil, err
	}
	c.invalidate(ctx, existing.Category)
	existing.Active = false
	return existing, nil
}

// Lookup finds the active entry matching value, exact first and then
// case-insensitively.
func (c *Catalog) Lookup(ctx context.Context, category domain.ReferenceCategory, value string) (*domain.ReferenceEntry, bool, error) {
	entries, err := c.FindByCategory(ctx, category)
	if err != nil {
		return nil, false, err
	}
	entry, ok := Match(entries, value)
	return entry, ok, nil
}

func (c *Catalog) generation(category domain.ReferenceCategory) uint64 {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	return c.gens[category]
}

// fill caches entries read at generation gen. It is skipped when a write
// landed since the read; holding genMu orders the Set before any later
// invalidation.
func (c *Catalog) fill(ctx context.Context, category domain.ReferenceCategory, gen uint64, entries []domain.ReferenceEntry) {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	if c.gens[category] != gen {
		c.logger.Debug("reference list changed during load, not caching", slog.String("category", string(category)))
		return
	}
	if err := c.cache.Set(ctx, category, entries, c.ttl); err != nil {
		c.logger.Warn("reference cache write failed", slog.String("category", string(category)), slog.Any("error", err))
	}
}

func (c *Catalog) invalidate(ctx context.Context, category domain.ReferenceCategory) {
	c.genMu.Lock()
	c.gens[category]++
	c.genMu.Unlock()

	c.loads.Forget(string(category))
	if err := c.cache.Invalidate(ctx, category); err != nil {
		c.logger.Warn("reference cache invalidate failed", slog.String("category", string(category)), slog.Any("error", err))
	}
}

// Match resolves value against entries: an exact match on the trimmed value
// wins over a case-insensitive one. Inactive entries never match.
func Match(entries []domain.ReferenceEntry, value string) (*domain.ReferenceEntry, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, false
	}
	for i := range entries {
		if entries[i].Active && strings.TrimSpace(entries[i].Value) == value {
			e := entries[i]
			return &e, true
		}
	}
	want := fold(value)
	for i := range entries {
		if entries[i].Active && fold(entries[i].Value) == want {
			e := entries[i]
			return &e, true
		}
	}
	return nil, false
}

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

func sortByValue(entries []domain.ReferenceEntry) {
	slices.SortStableFunc(entries, func(a, b domain.ReferenceEntry) int {
		if c := strings.Compare(fold(a.Value), fold(b.Value)); c != 0 {
			return c
		}
		return strings.Compare(a.Value, b.Value)
	})
}
