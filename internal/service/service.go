package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/aggregate"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/catalog"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/domain"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/finance"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/sequence"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/store"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Settings are the tunables the engine reads at request time.
type Settings struct {
	AmountCeiling decimal.Decimal
	TimeFallback  string
}

type Service struct {
	repo      store.Repository
	catalog   *catalog.Catalog
	allocator sequence.Allocator
	settings  Settings
	logger    *slog.Logger
	now       func() time.Time
}

func New(repo store.Repository, refs *catalog.Catalog, allocator sequence.Allocator, settings Settings, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if refs == nil {
		refs = catalog.New(repo, nil, 0, logger)
	}
	if allocator == nil {
		allocator = sequence.NewAtomic(repo)
	}
	if !settings.AmountCeiling.IsPositive() {
		settings.AmountCeiling = finance.DefaultCeiling
	}
	if _, ok := aggregate.NormalizeTime(settings.TimeFallback); !ok {
		settings.TimeFallback = aggregate.DefaultTimeFallback
	}
	return &Service{
		repo:      repo,
		catalog:   refs,
		allocator: allocator,
		settings:  settings,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	var from, to time.Time
	if strings.TrimSpace(date) == "" {
		to = s.now().Add(time.Second)
		from = to.Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse(dateLayout, date)
		if err != nil {
			return nil, domain.Invalid("date", "must be YYYY-MM-DD")
		}
		from = parsed.UTC()
		to = from.Add(24 * time.Hour)
	}

	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

// logAudit records a write. Audit failures are logged and never fail the
// operation that triggered them.
func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	s.logger.InfoContext(ctx, action,
		slog.String("entity_type", entityType),
		slog.String("entity_id", entityID),
		slog.String("actor", actor.Username),
		slog.String("detail", detail),
	)
	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now(),
	}); err != nil {
		s.logger.WarnContext(ctx, "audit write failed",
			slog.String("action", action),
			slog.String("entity", fmt.Sprintf("%s/%s", entityType, entityID)),
			slog.Any("error", err),
		)
	}
}

// checkAmounts applies the persistence ceiling to money values.
func (s *Service) checkAmounts(amounts ...decimal.Decimal) error {
	return finance.Check(s.settings.AmountCeiling, amounts...)
}
