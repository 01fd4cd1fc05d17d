package httpapi

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/domain"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/service"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, nil, nil, service.Settings{}, nil)
	auth, err := NewAuthManager(testSecret, time.Hour, repo)
	if err != nil {
		t.Fatalf("new auth manager: %v", err)
	}

	return New(svc, auth, Options{AllowedOrigin: "*"})
}

func doJSON(t *testing.T, api *API, method, path, token string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	return rec
}

func postJSON(t *testing.T, api *API, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return doJSON(t, api, http.MethodPost, path, token, bytes.NewReader(raw))
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

// seedBooking creates an order and a tour booking through the API.
func seedBooking(t *testing.T, api *API, token string) (domain.Order, domain.Booking) {
	t.Helper()

	rec := postJSON(t, api, "/api/v1/orders", token, map[string]any{
		"reference":  "SS-2001",
		"first_name": "Ann",
		"last_name":  "Lee",
		"agent_name": "Andaman Holidays",
		"pax_adult":  2,
		"pax_child":  1,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create order: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	order := decodeBody[domain.Order](t, rec)

	rec = postJSON(t, api, "/api/v1/bookings", token, map[string]any{
		"kind":          "tour",
		"order_id":      order.ID,
		"date":          "2026-03-14",
		"time":          "8:30",
		"send_to":       "Phi Phi Speedboat",
		"cost_price":    1000,
		"selling_price": 1500,
		"detail":        "Phi Phi island day trip",
		"hotel":         "Patong Beach Hotel",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create booking: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	return order, decodeBody[domain.Booking](t, rec)
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	body := decodeBody[map[string]any](t, rec)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)

	rec := postJSON(t, api, "/api/v1/auth/login", "", map[string]string{
		"username": "admin",
		"password": "admin123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	body := decodeBody[domain.LoginResponse](t, rec)
	if body.AccessToken == "" {
		t.Fatalf("expected access_token in response, got %+v", body)
	}
	if body.Role != domain.RoleAdmin {
		t.Fatalf("expected admin role, got %s", body.Role)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)

	rec := postJSON(t, api, "/api/v1/auth/login", "", map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleReferences_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)

	rec := doJSON(t, api, http.MethodGet, "/api/v1/references/agent", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleReferences_WithValidToken(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "staff", "staff123")

	rec := doJSON(t, api, http.MethodGet, "/api/v1/references/agent", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	body := decodeBody[struct {
		Entries []domain.ReferenceEntry `json:"entries"`
	}](t, rec)
	if len(body.Entries) != 2 {
		t.Fatalf("expected 2 seeded agents, got %d", len(body.Entries))
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/references/agent/check?value=andaman%20holidays", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("check: expected 200, got %d", rec.Code)
	}
	if check := decodeBody[domain.DuplicateCheck](t, rec); !check.Exists {
		t.Fatalf("expected case-insensitive duplicate match")
	}

	rec = postJSON(t, api, "/api/v1/references/agent", token, map[string]string{"value": "ANDAMAN HOLIDAYS"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate add: expected 409, got %d", rec.Code)
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/references/hotel", token, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown category: expected 422, got %d", rec.Code)
	}
}

func TestBookingValidationReturns422(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "staff", "staff123")
	order, _ := seedBooking(t, api, token)

	rec := postJSON(t, api, "/api/v1/bookings", token, map[string]any{
		"kind":          "tour",
		"order_id":      order.ID,
		"date":          "2026-03-15",
		"selling_price": -1,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for negative price, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = postJSON(t, api, "/api/v1/bookings", token, map[string]any{
		"kind":     "cruise",
		"order_id": order.ID,
		"date":     "2026-03-15",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown kind, got %d", rec.Code)
	}
}

func TestVoucherLifecycle(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "staff", "staff123")
	_, booking := seedBooking(t, api, token)

	rec := postJSON(t, api, "/api/v1/vouchers", token, map[string]any{
		"booking_id":   booking.ID,
		"booking_type": "tour",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create voucher: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	voucher := decodeBody[domain.Voucher](t, rec)
	if voucher.Number != "2026/0001" {
		t.Fatalf("expected voucher number 2026/0001, got %s", voucher.Number)
	}
	if voucher.CustomerName != "Ann Lee" {
		t.Fatalf("expected customer name from order, got %q", voucher.CustomerName)
	}

	rec = postJSON(t, api, "/api/v1/vouchers", token, map[string]any{
		"booking_id":   booking.ID,
		"booking_type": "tour",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("second voucher: expected 409, got %d", rec.Code)
	}

	rec = doJSON(t, api, http.MethodPatch, "/api/v1/vouchers/"+voucher.ID, token, strings.NewReader(`{"signature":"Manager"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("update voucher: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if updated := decodeBody[domain.Voucher](t, rec); updated.Number != voucher.Number || updated.Signature != "Manager" {
		t.Fatalf("unexpected updated voucher %+v", updated)
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/vouchers/"+voucher.ID+"/pdf", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("voucher pdf: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("expected application/pdf, got %q", got)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("expected pdf body")
	}
}

func TestDailyBookingsGroupsByRecipient(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "staff", "staff123")
	_, booking := seedBooking(t, api, token)

	rec := doJSON(t, api, http.MethodGet, "/api/v1/bookings/daily?kind=tour&date=2026-03-14", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	daily := decodeBody[domain.DailyBookingsResponse](t, rec)
	if daily.Total != 1 || len(daily.Groups) != 1 {
		t.Fatalf("expected one group with one booking, got %+v", daily)
	}
	if daily.Groups[0].Recipient.Name != "Phi Phi Speedboat" {
		t.Fatalf("unexpected recipient %+v", daily.Groups[0].Recipient)
	}
	if daily.Groups[0].Bookings[0].ID != booking.ID {
		t.Fatalf("unexpected booking in group")
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/bookings/daily?kind=tour&date=2026-03-14&format=html", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("html: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Phi Phi Speedboat") {
		t.Fatalf("expected recipient header in html output")
	}
}

func TestMonthlyReportCSV(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "staff", "staff123")
	seedBooking(t, api, token)

	rec := doJSON(t, api, http.MethodGet, "/api/v1/reports/monthly?kind=tour&month=2026-03&range=first_half&format=csv", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "monthly-tour-2026-03.csv") {
		t.Fatalf("unexpected content disposition %q", got)
	}

	records, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	// header, one booking row, its date subtotal and the grand total
	if len(records) != 4 {
		t.Fatalf("expected 4 csv records, got %d: %v", len(records), records)
	}
	if records[1][0] != "2026-03-14" {
		t.Fatalf("expected date group, got %q", records[1][0])
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/reports/monthly?month=2026-13", token, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad month: expected 422, got %d", rec.Code)
	}
	rec = doJSON(t, api, http.MethodGet, "/api/v1/reports/monthly?month=2026-03&columns=nope", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad column: expected 400, got %d", rec.Code)
	}
}

func TestInvoiceFlow(t *testing.T) {
	api := newTestAPI(t)
	staff := loginAs(t, api, "staff", "staff123")
	order, booking := seedBooking(t, api, staff)

	rec := postJSON(t, api, "/api/v1/payments", staff, map[string]any{
		"order_id":      order.ID,
		"customer_name": "Ann Lee",
		"lines": []map[string]any{
			{"booking_id": booking.ID, "quantity": 2},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create payment: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	payment := decodeBody[domain.Payment](t, rec)

	rec = postJSON(t, api, "/api/v1/invoices", staff, map[string]any{
		"name":        "March invoice",
		"date":        "2026-03-31",
		"payment_ids": []string{payment.ID},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create invoice: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	invoice := decodeBody[domain.Invoice](t, rec)
	if invoice.TotalSelling.String() != "3000" || invoice.TotalProfit.String() != "1000" {
		t.Fatalf("unexpected totals selling=%s profit=%s", invoice.TotalSelling, invoice.TotalProfit)
	}

	rec = postJSON(t, api, "/api/v1/invoices", staff, map[string]any{
		"name":        "Again",
		"date":        "2026-03-31",
		"payment_ids": []string{payment.ID},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("reinvoice: expected 409, got %d", rec.Code)
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/invoices/"+invoice.ID+"/table?view=sell", staff, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("invoice table: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "unit_cost") {
		t.Fatalf("sell view must hide cost columns: %s", rec.Body.String())
	}

	rec = doJSON(t, api, http.MethodPut, "/api/v1/payments/"+payment.ID+"/lines", staff,
		strings.NewReader(`{"lines":[{"booking_id":"`+booking.ID+`","quantity":3}]}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("update payment lines: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, api, http.MethodPut, "/api/v1/payments/"+payment.ID+"/lines", staff, strings.NewReader(`{"lines":[]}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty lines: expected 400, got %d", rec.Code)
	}

	admin := loginAs(t, api, "admin", "admin123")
	rec = doJSON(t, api, http.MethodPost, "/api/v1/invoices/"+invoice.ID+"/recompute", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("recompute: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	recomputed := decodeBody[domain.Invoice](t, rec)
	if recomputed.TotalSelling.String() != "4500" || recomputed.TotalProfit.String() != "1500" {
		t.Fatalf("recompute missed the edited lines: selling=%s profit=%s", recomputed.TotalSelling, recomputed.TotalProfit)
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/audit-logs", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("audit logs: expected 200, got %d", rec.Code)
	}
	logs := decodeBody[struct {
		Logs []domain.AuditLog `json:"logs"`
	}](t, rec)
	if len(logs.Logs) == 0 {
		t.Fatalf("expected audit entries for the flow")
	}
}

func TestDeleteOrderWithBookingsConflicts(t *testing.T) {
	api := newTestAPI(t)
	staff := loginAs(t, api, "staff", "staff123")
	order, _ := seedBooking(t, api, staff)
	admin := loginAs(t, api, "admin", "admin123")

	rec := doJSON(t, api, http.MethodDelete, "/api/v1/orders/"+order.ID, admin, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, api, http.MethodDelete, "/api/v1/orders/missing", admin, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAdminCreatesUser(t *testing.T) {
	api := newTestAPI(t)
	admin := loginAs(t, api, "admin", "admin123")

	rec := postJSON(t, api, "/api/v1/users", admin, map[string]string{
		"username": "frontdesk",
		"password": "desk12345",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = postJSON(t, api, "/api/v1/users", admin, map[string]string{
		"username": "frontdesk",
		"password": "desk12345",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate user: expected 409, got %d", rec.Code)
	}

	loginAs(t, api, "frontdesk", "desk12345")
}
