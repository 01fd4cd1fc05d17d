package memory

import (
	"cmp"
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/domain"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/store"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	seq             int64
	references      map[string]row[domain.ReferenceEntry]
	orders          map[string]row[domain.Order]
	bookings        map[string]row[domain.Booking]
	vouchers        map[string]row[domain.Voucher]
	payments        map[string]row[domain.Payment]
	invoices        map[string]row[domain.Invoice]
	sequences       map[string]int64
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// row keeps insertion order so listings are deterministic.
type row[T any] struct {
	seq int64
	val T
}

func New() *Store {
	return &Store{
		references:      make(map[string]row[domain.ReferenceEntry]),
		orders:          make(map[string]row[domain.Order]),
		bookings:        make(map[string]row[domain.Booking]),
		vouchers:        make(map[string]row[domain.Voucher]),
		payments:        make(map[string]row[domain.Payment]),
		invoices:        make(map[string]row[domain.Invoice]),
		sequences:       make(map[string]int64),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD; when
// unset, dev defaults are used with a warning. These accounts never exist in
// production, where the backend runs on PostgreSQL.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"staff", staffPwd, domain.RoleStaff},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store with demo accounts and a starter reference catalog.
func NewSeeded() *Store {
	s := New()
	s.usersByUsername = seedUsers()

	now := time.Now().UTC()
	for _, e := range []domain.ReferenceEntry{
		{Category: domain.CategoryAgent, Value: "Andaman Holidays", Phone: "+66 76 000 111"},
		{Category: domain.CategoryAgent, Value: "Siam Discovery", Phone: "+66 2 000 2222"},
		{Category: domain.CategoryTourRecipient, Value: "Phi Phi Speedboat", Phone: "+66 81 000 3333"},
		{Category: domain.CategoryTourRecipient, Value: "James Bond Island Tours", Phone: "+66 89 000 4444"},
		{Category: domain.CategoryTransferRecipient, Value: "Patong Van Service", Phone: "+66 86 000 5555"},
		{Category: domain.CategoryPlace, Value: "Phuket Airport"},
		{Category: domain.CategoryPlace, Value: "Patong Beach"},
		{Category: domain.CategoryTourType, Value: "Island hopping"},
		{Category: domain.CategoryTransferType, Value: "Airport pickup"},
	} {
		e.ID = xid.New("ref")
		e.Active = true
		e.CreatedAt = now
		s.references[e.ID] = wrap(s, e)
	}
	return s
}

func wrap[T any](s *Store, v T) row[T] {
	s.seq++
	return row[T]{seq: s.seq, val: v}
}

func sortedValues[T any](m map[string]row[T], keep func(T) bool) []T {
	rows := make([]row[T], 0, len(m))
	for _, r := range m {
		if keep == nil || keep(r.val) {
			rows = append(rows, r)
		}
	}
	slices.SortFunc(rows, func(a, b row[T]) int { return cmp.Compare(a.seq, b.seq) })
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.val)
	}
	return out
}

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

func (s *Store) ListReferenceEntries(_ context.Context, category domain.ReferenceCategory) ([]domain.ReferenceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := sortedValues(s.references, func(e domain.ReferenceEntry) bool {
		return e.Active && e.Category == category
	})
	slices.SortStableFunc(entries, func(a, b domain.ReferenceEntry) int {
		return strings.Compare(fold(a.Value), fold(b.Value))
	})
	return entries, nil
}

func (s *Store) GetReferenceEntry(_ context.Context, id string) (*domain.ReferenceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.references[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	entry := r.val
	return &entry, nil
}

// activeValueTaken mirrors the partial unique index on (category, lower(value))
// for active entries.
func (s *Store) activeValueTaken(category domain.ReferenceCategory, value string, excludeID string) bool {
	want := fold(value)
	for id, r := range s.references {
		if id == excludeID || !r.val.Active || r.val.Category != category {
			continue
		}
		if fold(r.val.Value) == want {
			return true
		}
	}
	return false
}

func (s *Store) InsertReferenceEntry(_ context.Context, entry domain.ReferenceEntry) (*domain.ReferenceEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !entry.Category.Valid() || strings.TrimSpace(entry.Value) == "" {
		return nil, store.ErrInvalidInput
	}
	if entry.ID == "" {
		entry.ID = xid.New("ref")
	}
	if _, exists := s.references[entry.ID]; exists {
		return nil, store.ErrConflict
	}
	if entry.Active && s.activeValueTaken(entry.Category, entry.Value, "") {
		return nil, store.ErrConflict
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.references[entry.ID] = wrap(s, entry)
	created := entry
	return &created, nil
}

func (s *Store) UpdateReferenceEntry(_ context.Context, entry domain.ReferenceEntry) (*domain.ReferenceEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.references[entry.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if strings.TrimSpace(entry.Value) == "" {
		return nil, store.ErrInvalidInput
	}
	entry.Category = current.val.Category
	entry.CreatedAt = current.val.CreatedAt
	if entry.Active && s.activeValueTaken(entry.Category, entry.Value, entry.ID) {
		return nil, store.ErrConflict
	}
	current.val = entry
	s.references[entry.ID] = current
	updated := entry
	return &updated, nil
}

func (s *Store) DeactivateReferenceEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.references[id]
	if !ok {
		return store.ErrNotFound
	}
	current.val.Active = false
	s.references[id] = current
	return nil
}

func (s *Store) CreateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(order.Reference) == "" {
		return nil, store.ErrInvalidInput
	}
	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	for _, r := range s.orders {
		if r.val.ID == order.ID || strings.EqualFold(r.val.Reference, order.Reference) {
			return nil, store.ErrConflict
		}
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	s.orders[order.ID] = wrap(s, order)
	created := order
	return &created, nil
}

func (s *Store) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	order := r.val
	return &order, nil
}

func (s *Store) GetOrders(_ context.Context, ids []string) (map[string]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Order, len(ids))
	for _, id := range ids {
		if r, ok := s.orders[id]; ok {
			result[id] = r.val
		}
	}
	return result, nil
}

func (s *Store) DeleteOrder(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[id]; !ok {
		return store.ErrNotFound
	}
	for _, b := range s.bookings {
		if b.val.OrderID == id {
			return fmt.Errorf("%w: order %s still has bookings", store.ErrReferentialIntegrityViolation, id)
		}
	}
	delete(s.orders, id)
	return nil
}

// refreshOrderRange re-derives an order's start and end date from its
// bookings. Caller must hold the write lock.
func (s *Store) refreshOrderRange(orderID string) {
	r, ok := s.orders[orderID]
	if !ok {
		return
	}
	start, end := "", ""
	for _, b := range s.bookings {
		if b.val.OrderID != orderID || b.val.Date == "" {
			continue
		}
		if start == "" || b.val.Date < start {
			start = b.val.Date
		}
		if end == "" || b.val.Date > end {
			end = b.val.Date
		}
	}
	r.val.StartDate, r.val.EndDate = start, end
	s.orders[orderID] = r
}

func (s *Store) CreateBooking(_ context.Context, booking domain.Booking) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !booking.Kind.Valid() || booking.Date == "" {
		return nil, store.ErrInvalidInput
	}
	if _, ok := s.orders[booking.OrderID]; !ok {
		return nil, fmt.Errorf("%w: unknown order %s", store.ErrInvalidInput, booking.OrderID)
	}
	if booking.ID == "" {
		booking.ID = xid.New("bk")
	}
	if _, exists := s.bookings[booking.ID]; exists {
		return nil, store.ErrConflict
	}
	if booking.Status == "" {
		booking.Status = domain.BookingStatusPending
	}
	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = booking.CreatedAt
	s.bookings[booking.ID] = wrap(s, booking)
	s.refreshOrderRange(booking.OrderID)
	created := booking
	return &created, nil
}

func (s *Store) GetBooking(_ context.Context, id string) (*domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.bookings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	booking := r.val
	return &booking, nil
}

func (s *Store) ListBookings(_ context.Context, filter store.BookingFilter) ([]domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bookings := sortedValues(s.bookings, func(b domain.Booking) bool {
		if filter.Kind != "" && b.Kind != filter.Kind {
			return false
		}
		if filter.OrderID != "" && b.OrderID != filter.OrderID {
			return false
		}
		if filter.From != "" && b.Date < filter.From {
			return false
		}
		if filter.To != "" && b.Date > filter.To {
			return false
		}
		return true
	})
	slices.SortStableFunc(bookings, func(a, b domain.Booking) int {
		return strings.Compare(a.Date, b.Date)
	})
	return bookings, nil
}

func (s *Store) UpdateBookingStatus(_ context.Context, id string, status domain.BookingStatus, at time.Time) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !status.Valid() {
		return nil, store.ErrInvalidInput
	}
	r, ok := s.bookings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	r.val.Status = status
	r.val.UpdatedAt = at.UTC()
	s.bookings[id] = r
	updated := r.val
	return &updated, nil
}

func (s *Store) DeleteBooking(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.bookings[id]
	if !ok {
		return store.ErrNotFound
	}
	for _, v := range s.vouchers {
		if v.val.BookingID == id && v.val.BookingType == r.val.Kind {
			return fmt.Errorf("%w: booking %s has voucher %s", store.ErrReferentialIntegrityViolation, id, v.val.Number)
		}
	}
	delete(s.bookings, id)
	s.refreshOrderRange(r.val.OrderID)
	return nil
}

func (s *Store) CreateVoucher(_ context.Context, voucher domain.Voucher) (*domain.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[voucher.BookingID]
	if !ok || b.val.Kind != voucher.BookingType {
		return nil, fmt.Errorf("%w: unknown %s booking %s", store.ErrInvalidInput, voucher.BookingType, voucher.BookingID)
	}
	for _, v := range s.vouchers {
		if v.val.BookingID == voucher.BookingID && v.val.BookingType == voucher.BookingType {
			return nil, fmt.Errorf("%w: booking %s already has voucher %s", store.ErrConflict, voucher.BookingID, v.val.Number)
		}
		if v.val.Year == voucher.Year && v.val.Sequence == voucher.Sequence {
			return nil, fmt.Errorf("%w: voucher number %s already issued", store.ErrConflict, voucher.Number)
		}
	}
	if voucher.ID == "" {
		voucher.ID = xid.New("vc")
	}
	now := time.Now().UTC()
	if voucher.CreatedAt.IsZero() {
		voucher.CreatedAt = now
	}
	voucher.UpdatedAt = voucher.CreatedAt
	s.vouchers[voucher.ID] = wrap(s, voucher)
	created := voucher
	return &created, nil
}

func (s *Store) GetVoucher(_ context.Context, id string) (*domain.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.vouchers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	voucher := r.val
	return &voucher, nil
}

func (s *Store) FindVoucherByBooking(_ context.Context, bookingID string, kind domain.BookingKind) (*domain.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.vouchers {
		if r.val.BookingID == bookingID && r.val.BookingType == kind {
			voucher := r.val
			return &voucher, nil
		}
	}
	return nil, store.ErrNotFound
}

// UpdateVoucher replaces the payload fields. Identity and numbering are kept.
func (s *Store) UpdateVoucher(_ context.Context, voucher domain.Voucher) (*domain.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.vouchers[voucher.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	current := r.val
	current.CustomerName = voucher.CustomerName
	current.Signature = voucher.Signature
	current.PaymentOption = voucher.PaymentOption
	current.PaymentAmount = voucher.PaymentAmount
	current.Tour = voucher.Tour
	current.Transfer = voucher.Transfer
	current.UpdatedAt = time.Now().UTC()
	r.val = current
	s.vouchers[voucher.ID] = r
	return &current, nil
}

func (s *Store) CreatePayment(_ context.Context, payment domain.Payment) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(payment.Lines) == 0 {
		return nil, store.ErrInvalidInput
	}
	if payment.ID == "" {
		payment.ID = xid.New("pay")
	}
	if _, exists := s.payments[payment.ID]; exists {
		return nil, store.ErrConflict
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	payment.Invoiced = false
	payment.InvoiceID = ""
	payment.Lines = slices.Clone(payment.Lines)
	s.payments[payment.ID] = wrap(s, payment)
	created := payment
	return &created, nil
}

func (s *Store) GetPayments(_ context.Context, ids []string) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Payment, 0, len(ids))
	for _, id := range ids {
		r, ok := s.payments[id]
		if !ok {
			return nil, fmt.Errorf("%w: payment %s", store.ErrNotFound, id)
		}
		p := r.val
		p.Lines = slices.Clone(p.Lines)
		result = append(result, p)
	}
	return result, nil
}

func (s *Store) ListPayments(_ context.Context, uninvoicedOnly bool) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortedValues(s.payments, func(p domain.Payment) bool {
		return !uninvoicedOnly || !p.Invoiced
	}), nil
}

func (s *Store) UpdatePaymentLines(_ context.Context, id string, lines []domain.PaymentLine) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(lines) == 0 {
		return nil, store.ErrInvalidInput
	}
	r, ok := s.payments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	r.val.Lines = slices.Clone(lines)
	s.payments[id] = r
	updated := r.val
	updated.Lines = slices.Clone(lines)
	return &updated, nil
}

func (s *Store) InsertInvoice(_ context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(invoice.PaymentIDs) == 0 {
		return nil, store.ErrInvalidInput
	}
	seen := make(map[string]struct{}, len(invoice.PaymentIDs))
	for _, id := range invoice.PaymentIDs {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: payment %s listed twice", store.ErrInvalidInput, id)
		}
		seen[id] = struct{}{}
		r, ok := s.payments[id]
		if !ok {
			return nil, fmt.Errorf("%w: payment %s", store.ErrNotFound, id)
		}
		if r.val.Invoiced {
			return nil, fmt.Errorf("%w: payment %s already invoiced by %s", store.ErrConflict, id, r.val.InvoiceID)
		}
	}

	if invoice.ID == "" {
		invoice.ID = xid.New("inv")
	}
	if _, exists := s.invoices[invoice.ID]; exists {
		return nil, store.ErrConflict
	}
	now := time.Now().UTC()
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = now
	}
	invoice.UpdatedAt = invoice.CreatedAt
	invoice.PaymentIDs = slices.Clone(invoice.PaymentIDs)
	s.invoices[invoice.ID] = wrap(s, invoice)
	for _, id := range invoice.PaymentIDs {
		r := s.payments[id]
		r.val.Invoiced = true
		r.val.InvoiceID = invoice.ID
		s.payments[id] = r
	}
	created := invoice
	return &created, nil
}

func (s *Store) GetInvoice(_ context.Context, id string) (*domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.invoices[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	invoice := r.val
	invoice.PaymentIDs = slices.Clone(invoice.PaymentIDs)
	return &invoice, nil
}

func (s *Store) ListInvoices(_ context.Context) ([]domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	invoices := sortedValues(s.invoices, nil)
	slices.Reverse(invoices)
	return invoices, nil
}

func (s *Store) UpdateInvoiceTotals(_ context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.invoices[invoice.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	r.val.TotalAmount = invoice.TotalAmount
	r.val.TotalCost = invoice.TotalCost
	r.val.TotalSelling = invoice.TotalSelling
	r.val.TotalProfit = invoice.TotalProfit
	r.val.UpdatedAt = time.Now().UTC()
	s.invoices[invoice.ID] = r
	updated := r.val
	return &updated, nil
}

func (s *Store) IncrementSequence(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sequences[key]++
	return s.sequences[key], nil
}

func (s *Store) LoadSequence(_ context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sequences[key], nil
}

func (s *Store) CompareAndSwapSequence(_ context.Context, key string, expected int64, next int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sequences[key] != expected {
		return false, nil
	}
	s.sequences[key] = next
	return true, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	logs := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0 && len(logs) < limit; i-- {
		entry := s.auditLogs[i]
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		logs = append(logs, entry)
	}
	return logs, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

var _ store.Repository = (*Store)(nil)
