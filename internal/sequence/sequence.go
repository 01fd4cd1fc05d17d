package sequence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"time"
)

var ErrAllocationUnavailable = errors.New("sequence allocation unavailable")

const DocumentVoucher = "voucher"

// DefaultMaxRetries bounds the optimistic allocation loop.
const DefaultMaxRetries = 5

// Key builds the counter key for one document type and year, e.g. "voucher_2025".
func Key(documentType string, year int) string {
	return fmt.Sprintf("%s_%d", documentType, year)
}

// Format zero-pads n to four digits. Wider numbers are not truncated.
func Format(n int64) string {
	return fmt.Sprintf("%04d", n)
}

// DisplayNumber renders a document number as "2025/0001".
func DisplayNumber(year int, n int64) string {
	return fmt.Sprintf("%d/%s", year, Format(n))
}

// Allocator issues strictly increasing integers per key, starting at 1.
type Allocator interface {
	NextValue(ctx context.Context, key string) (int64, error)
}

type Incrementer interface {
	IncrementSequence(ctx context.Context, key string) (int64, error)
}

type CompareAndSwapper interface {
	LoadSequence(ctx context.Context, key string) (int64, error)
	CompareAndSwapSequence(ctx context.Context, key string, expected int64, next int64) (bool, error)
}

// Atomic allocates through a single increment-and-get on the counter store.
type Atomic struct {
	counter Incrementer
}

func NewAtomic(counter Incrementer) *Atomic {
	return &Atomic{counter: counter}
}

func (a *Atomic) NextValue(ctx context.Context, key string) (int64, error) {
	n, err := a.counter.IncrementSequence(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrAllocationUnavailable, key, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("%w: %s: counter returned %d", ErrAllocationUnavailable, key, n)
	}
	return n, nil
}

// Optimistic allocates by reading the counter and conditionally writing the
// successor, retrying when another caller won the race.
type Optimistic struct {
	store      CompareAndSwapper
	maxRetries int
	backoff    func(attempt int) time.Duration
	logger     *slog.Logger
}

type Option func(*Optimistic)

// WithBackoff overrides the wait between lost races. Tests pass a zero backoff.
func WithBackoff(fn func(attempt int) time.Duration) Option {
	return func(o *Optimistic) {
		if fn != nil {
			o.backoff = fn
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Optimistic) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func NewOptimistic(store CompareAndSwapper, maxRetries int, opts ...Option) *Optimistic {
	if maxRetries < 1 {
		maxRetries = DefaultMaxRetries
	}
	o := &Optimistic{
		store:      store,
		maxRetries: maxRetries,
		backoff:    JitteredBackoff,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Optimistic) NextValue(ctx context.Context, key string) (int64, error) {
	for attempt := 0; attempt < o.maxRetries; attempt++ {
		current, err := o.store.LoadSequence(ctx, key)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %w", ErrAllocationUnavailable, key, err)
		}
		next := current + 1
		swapped, err := o.store.CompareAndSwapSequence(ctx, key, current, next)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %w", ErrAllocationUnavailable, key, err)
		}
		if swapped {
			return next, nil
		}

		o.logger.Debug("sequence race lost", slog.String("key", key), slog.Int("attempt", attempt+1))
		if attempt == o.maxRetries-1 {
			break
		}
		if wait := o.backoff(attempt); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return 0, fmt.Errorf("%w: %s: %w", ErrAllocationUnavailable, key, ctx.Err())
			case <-timer.C:
			}
		}
	}
	return 0, fmt.Errorf("%w: %s: gave up after %d attempts", ErrAllocationUnavailable, key, o.maxRetries)
}

// JitteredBackoff waits 5ms per attempt plus up to 5ms of jitter.
func JitteredBackoff(attempt int) time.Duration {
	base := time.Duration(attempt+1) * 5 * time.Millisecond
	return base + rand.N(5*time.Millisecond)
}

func NoBackoff(int) time.Duration { return 0 }
