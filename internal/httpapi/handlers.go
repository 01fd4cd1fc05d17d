package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/domain"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/finance"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/render"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/report"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/service"
)

func (a *API) handleListReferences(w http.ResponseWriter, r *http.Request) {
	category := domain.ReferenceCategory(chi.URLParam(r, "category"))
	entries, err := a.service.ListReferences(r.Context(), category)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (a *API) handleCheckReference(w http.ResponseWriter, r *http.Request) {
	category := domain.ReferenceCategory(chi.URLParam(r, "category"))
	query := r.URL.Query()
	result, err := a.service.CheckReferenceDuplicate(r.Context(), category, query.Get("value"), query.Get("exclude_id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleAddReference(w http.ResponseWriter, r *http.Request) {
	var req domain.ReferenceEntryRequest
	if !a.decode(w, r, &req) {
		return
	}
	category := domain.ReferenceCategory(chi.URLParam(r, "category"))
	entry, err := a.service.AddReference(r.Context(), category, req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (a *API) handleUpdateReference(w http.ResponseWriter, r *http.Request) {
	var req domain.ReferenceEntryRequest
	if !a.decode(w, r, &req) {
		return
	}
	category := domain.ReferenceCategory(chi.URLParam(r, "category"))
	entry, err := a.service.UpdateReference(r.Context(), category, chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *API) handleDeactivateReference(w http.ResponseWriter, r *http.Request) {
	category := domain.ReferenceCategory(chi.URLParam(r, "category"))
	entry, err := a.service.DeactivateReference(r.Context(), category, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *API) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderCreateRequest
	if !a.decode(w, r, &req) {
		return
	}
	order, err := a.service.CreateOrder(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (a *API) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req domain.BookingCreateRequest
	if !a.decode(w, r, &req) {
		return
	}
	booking, err := a.service.CreateBooking(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (a *API) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := a.service.GetBooking(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (a *API) handleBookingStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.BookingStatusRequest
	if !a.decode(w, r, &req) {
		return
	}
	booking, err := a.service.UpdateBookingStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (a *API) handleDeleteBooking(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteBooking(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDailyBookings returns grouped JSON by default and a flat table when a
// document format is requested.
func (a *API) handleDailyBookings(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	kind := domain.BookingKind(query.Get("kind"))
	date := query.Get("date")

	format := strings.ToLower(strings.TrimSpace(query.Get("format")))
	if format == "" || format == "json" {
		resp, err := a.service.DailyBookings(r.Context(), kind, date)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	columns, err := report.ParseColumns(query.Get("columns"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	table, err := a.service.DailyBookingsTable(r.Context(), kind, date, columns)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	title := fmt.Sprintf("Daily %s bookings %s", kind, date)
	a.writeTable(w, r, table, title, fmt.Sprintf("daily-%s-%s", kind, date))
}

func (a *API) handleCreateVoucher(w http.ResponseWriter, r *http.Request) {
	var req domain.VoucherCreateRequest
	if !a.decode(w, r, &req) {
		return
	}
	voucher, err := a.service.CreateVoucher(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, voucher)
}

func (a *API) handleGetVoucher(w http.ResponseWriter, r *http.Request) {
	voucher, err := a.service.GetVoucher(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, voucher)
}

func (a *API) handleUpdateVoucher(w http.ResponseWriter, r *http.Request) {
	var req domain.VoucherUpdateRequest
	if !a.decode(w, r, &req) {
		return
	}
	voucher, err := a.service.UpdateVoucher(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, voucher)
}

func (a *API) handleVoucherPDF(w http.ResponseWriter, r *http.Request) {
	voucher, booking, err := a.service.VoucherDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := render.WriteVoucherPDF(&buf, *voucher, *booking); err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "voucher-"+voucher.Number+".pdf"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (a *API) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req domain.PaymentCreateRequest
	if !a.decode(w, r, &req) {
		return
	}
	payment, err := a.service.CreatePayment(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}

func (a *API) handleListPayments(w http.ResponseWriter, r *http.Request) {
	uninvoiced := strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("uninvoiced")), "true")
	payments, err := a.service.ListPayments(r.Context(), uninvoiced)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": payments})
}

func (a *API) handleUpdatePaymentLines(w http.ResponseWriter, r *http.Request) {
	var req domain.PaymentLinesUpdateRequest
	if !a.decode(w, r, &req) {
		return
	}
	payment, err := a.service.UpdatePaymentLines(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

func (a *API) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req domain.InvoiceCreateRequest
	if !a.decode(w, r, &req) {
		return
	}
	invoice, err := a.service.CreateInvoice(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, invoice)
}

func (a *API) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := a.service.ListInvoices(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

func (a *API) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	invoice, err := a.service.GetInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}

func (a *API) handleInvoiceTable(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	view, err := finance.ParseView(query.Get("view"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	columns, err := report.ParseColumns(query.Get("columns"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	invoice, table, err := a.service.InvoiceTable(r.Context(), chi.URLParam(r, "id"), view, columns)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.writeTable(w, r, table, "Invoice "+invoice.Name, "invoice-"+invoice.ID)
}

func (a *API) handleRecomputeInvoice(w http.ResponseWriter, r *http.Request) {
	invoice, err := a.service.RecomputeInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}

func (a *API) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	columns, err := report.ParseColumns(query.Get("columns"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	q := service.MonthlyReportQuery{
		Kind:    domain.BookingKind(query.Get("kind")),
		Month:   query.Get("month"),
		Range:   query.Get("range"),
		View:    query.Get("view"),
		Columns: columns,
	}
	table, err := a.service.MonthlyReport(r.Context(), q)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	label := string(q.Kind)
	if label == "" {
		label = "all"
	}
	a.writeTable(w, r, table, fmt.Sprintf("Monthly report %s (%s)", q.Month, label), fmt.Sprintf("monthly-%s-%s", label, q.Month))
}
