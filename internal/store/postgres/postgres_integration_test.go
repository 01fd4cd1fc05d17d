package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/domain"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/store"
)

func integrationStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("BOOKING_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set BOOKING_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestIncrementSequenceIsContiguousUnderConcurrency(t *testing.T) {
	s := integrationStore(t)
	ctx := context.Background()
	key := fmt.Sprintf("it_seq_%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sequence_counters WHERE key = $1`, key)
	})

	const n = 50
	var wg sync.WaitGroup
	values := make(chan int64, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.IncrementSequence(ctx, key)
			assert.NoError(t, err)
			values <- v
		}()
	}
	wg.Wait()
	close(values)

	seen := make(map[int64]bool, n)
	for v := range values {
		assert.False(t, seen[v], "duplicate %d", v)
		seen[v] = true
	}
	for i := int64(1); i <= n; i++ {
		assert.True(t, seen[i], "missing %d", i)
	}
}

func TestInvoiceClaimsPaymentsOnce(t *testing.T) {
	s := integrationStore(t)
	ctx := context.Background()

	p, err := s.CreatePayment(ctx, domain.Payment{
		CustomerName: "Integration",
		Lines:        []domain.PaymentLine{{Description: "Tour", Quantity: 2, UnitPrice: decimal.NewFromInt(500), UnitCost: decimal.NewFromInt(300)}},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, p.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM invoices WHERE payment_ids @> to_jsonb($1::text)`, p.ID)
	})

	inv, err := s.InsertInvoice(ctx, domain.Invoice{Name: "IT", Date: "2025-03-31", PaymentIDs: []string{p.ID}, TotalAmount: decimal.NewFromInt(1000)})
	require.NoError(t, err)

	_, err = s.InsertInvoice(ctx, domain.Invoice{Name: "IT again", Date: "2025-03-31", PaymentIDs: []string{p.ID}})
	assert.ErrorIs(t, err, store.ErrConflict)

	payments, err := s.GetPayments(ctx, []string{p.ID})
	require.NoError(t, err)
	assert.True(t, payments[0].Invoiced)
	assert.Equal(t, inv.ID, payments[0].InvoiceID)
	require.Len(t, payments[0].Lines, 1)
	assert.True(t, payments[0].Lines[0].UnitPrice.Equal(decimal.NewFromInt(500)))
}
