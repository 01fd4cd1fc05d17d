package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/cache"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/catalog"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/config"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/httpapi"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/sequence"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/service"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/store"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/store/memory"
	pgstore "github.com/chalantorn2/BookingSevenSmile-sub000/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg, os.Stdout)

	if err := validateSecurityConfig(cfg); err != nil {
		logger.Error("invalid security configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)
	defer func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				logger.Warn("close error", slog.Any("error", err))
			}
		}
	}()

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("postgres unavailable and DATABASE_URL is set, refusing in-memory fallback: %w", err)
		}
		closers = append(closers, pg.Close)
		if err := pg.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		repo = pg
		logger.Info("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		logger.Info("repository: in-memory")
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			if cfg.SequenceBackend == config.SequenceBackendRedis {
				return fmt.Errorf("redis unavailable and SEQUENCE_BACKEND=redis: %w", err)
			}
			logger.Warn("redis unavailable, using noop reference cache", slog.Any("error", err))
		} else {
			redisClient = client
			closers = append(closers, client.Close)
		}
	}

	refCache := cache.ReferenceCache(cache.NoopReferenceCache{})
	if redisClient != nil {
		refCache = cache.NewRedisReferenceCache(redisClient)
		logger.Info("reference cache: redis")
	} else {
		logger.Info("reference cache: noop")
	}

	counter, err := newCounter(ctx, cfg, repo, redisClient, time.Now().UTC().Year())
	if err != nil {
		return err
	}
	allocator := newAllocator(cfg, counter, logger)
	logger.Info("sequence allocator",
		slog.String("backend", cfg.SequenceBackend),
		slog.String("strategy", cfg.SequenceStrategy),
	)

	refs := catalog.New(repo, refCache, cfg.ReferenceCacheTTL, logger)
	svc := service.New(repo, refs, allocator, service.Settings{
		AmountCeiling: cfg.AmountCeiling,
		TimeFallback:  cfg.TimeFallback,
	}, logger)
	auth, err := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL, repo)
	if err != nil {
		return err
	}
	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		Production:    cfg.IsProduction(),
		Logger:        logger,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("booking backend listening", slog.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.Any("error", err))
	}
	logger.Info("server stopped")
	return nil
}

// newCounter picks where sequence counters live. Redis counters are raised
// to the relational value of each key on first use so a switch of backend
// never reissues a voucher number. The current year is seeded up front to
// fail fast when either side is unreachable.
func newCounter(ctx context.Context, cfg config.Config, repo store.SequenceStore, client *redis.Client, year int) (store.SequenceStore, error) {
	if cfg.SequenceBackend != config.SequenceBackendRedis {
		return repo, nil
	}
	if client == nil {
		return nil, errors.New("SEQUENCE_BACKEND=redis requires a reachable redis")
	}

	counter := sequence.NewRedisCounter(client, "", sequence.SeedFrom(repo))
	key := sequence.Key(sequence.DocumentVoucher, year)
	last, err := repo.LoadSequence(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	if err := counter.Seed(ctx, key, last); err != nil {
		return nil, fmt.Errorf("seed %s: %w", key, err)
	}
	return counter, nil
}

func newAllocator(cfg config.Config, counter store.SequenceStore, logger *slog.Logger) sequence.Allocator {
	if cfg.SequenceStrategy == config.SequenceStrategyOptimistic {
		return sequence.NewOptimistic(counter, cfg.SequenceMaxRetries, sequence.WithLogger(logger))
	}
	return sequence.NewAtomic(counter)
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.IsProduction() && cfg.AllowedOrigin == "*" {
		return fmt.Errorf("ALLOWED_ORIGIN must not be * in production")
	}
	return nil
}
