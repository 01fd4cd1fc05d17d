package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/unrolled/secure"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/catalog"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/domain"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/finance"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/render"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/report"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/sequence"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/service"
	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/store"
)

const maxJSONBody = 1 << 20

type Options struct {
	AllowedOrigin string
	Production    bool
	Logger        *slog.Logger
}

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	logger        *slog.Logger
	validate      *validator.Validate
	secure        *secure.Secure
	loginLimit    func(http.Handler) http.Handler
	apiLimit      func(http.Handler) http.Handler
}

func New(svc *service.Service, auth *AuthManager, opts Options) *API {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: opts.AllowedOrigin,
		logger:        logger,
		validate:      validate,
		secure: secure.New(secure.Options{
			FrameDeny:          true,
			ContentTypeNosniff: true,
			ReferrerPolicy:     "strict-origin-when-cross-origin",
			SSLRedirect:        opts.Production,
			SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
			IsDevelopment:      !opts.Production,
		}),
		loginLimit: httprate.Limit(5, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
		apiLimit:   httprate.Limit(600, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
	}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(a.securityHeaders)
	r.Use(a.cors)
	r.Use(limitJSONBody)

	r.Get("/healthz", a.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(a.apiLimit)
		r.With(a.loginLimit).Post("/auth/login", a.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth(domain.RoleStaff, domain.RoleAdmin))

			r.Get("/references/{category}", a.handleListReferences)
			r.Post("/references/{category}", a.handleAddReference)
			r.Get("/references/{category}/check", a.handleCheckReference)
			r.Patch("/references/{category}/{id}", a.handleUpdateReference)

			r.Post("/orders", a.handleCreateOrder)
			r.Post("/bookings", a.handleCreateBooking)
			r.Get("/bookings/daily", a.handleDailyBookings)
			r.Get("/bookings/{id}", a.handleGetBooking)
			r.Patch("/bookings/{id}/status", a.handleBookingStatus)

			r.Post("/vouchers", a.handleCreateVoucher)
			r.Get("/vouchers/{id}", a.handleGetVoucher)
			r.Patch("/vouchers/{id}", a.handleUpdateVoucher)
			r.Get("/vouchers/{id}/pdf", a.handleVoucherPDF)

			r.Post("/payments", a.handleCreatePayment)
			r.Get("/payments", a.handleListPayments)
			r.Put("/payments/{id}/lines", a.handleUpdatePaymentLines)

			r.Post("/invoices", a.handleCreateInvoice)
			r.Get("/invoices", a.handleListInvoices)
			r.Get("/invoices/{id}", a.handleGetInvoice)
			r.Get("/invoices/{id}/table", a.handleInvoiceTable)

			r.Get("/reports/monthly", a.handleMonthlyReport)
		})

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth(domain.RoleAdmin))

			r.Delete("/references/{category}/{id}", a.handleDeactivateReference)
			r.Delete("/orders/{id}", a.handleDeleteOrder)
			r.Delete("/bookings/{id}", a.handleDeleteBooking)
			r.Post("/invoices/{id}/recompute", a.handleRecomputeInvoice)
			r.Get("/audit-logs", a.handleAuditLogs)
			r.Get("/users", a.handleListUsers)
			r.Post("/users", a.handleCreateUser)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeMethodNotAllowed(w)
	})
	return r
}

func (a *API) requireAuth(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authorization := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
				writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
				return
			}

			token := strings.TrimSpace(authorization[len("Bearer "):])
			actor, err := a.auth.ParseToken(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err)
				return
			}

			if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
				writeError(w, http.StatusForbidden, errors.New("forbidden role"))
				return
			}

			next.ServeHTTP(w, r.WithContext(service.WithActor(r.Context(), actor)))
		})
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		startedAt := time.Now()
		next.ServeHTTP(ww, r)
		a.logger.InfoContext(r.Context(), "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(startedAt)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (a *API) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := a.secure.Process(w, r); err != nil {
			a.logger.WarnContext(r.Context(), "secure headers blocked request", slog.Any("error", err))
			return
		}
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}

func (a *API) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func limitJSONBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) {
			r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !a.decode(w, r, &req) {
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)

	logs, err := a.service.ListAuditLogs(r.Context(), date, limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"users": a.auth.ListUsers(r.Context())})
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req UserCreateRequest
	if !a.decode(w, r, &req) {
		return
	}
	user, err := a.auth.CreateUser(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

// decode reads and validates a JSON body, writing a 400 on failure.
func (a *API) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := decodeJSON(r, dest); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	if err := a.validate.Struct(dest); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			err = domain.Invalid(first.Field(), fmt.Sprintf("failed %q validation", first.Tag()))
		}
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

// fail maps a service error to its status. 5xx causes are logged and never
// echoed to the client.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.ErrorContext(r.Context(), "request failed",
			slog.Int("status", status),
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Any("error", err),
		)
	}
	writeError(w, status, err)
}

func statusFor(err error) int {
	var verr domain.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, store.ErrInvalidInput),
		errors.Is(err, finance.ErrValueOutOfRange):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict),
		errors.Is(err, store.ErrReferentialIntegrityViolation),
		errors.Is(err, catalog.ErrDuplicateValue),
		errors.Is(err, errUserExists):
		return http.StatusConflict
	case errors.Is(err, sequence.ErrAllocationUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeTable renders a table in the requested format: csv, pdf, html or the
// default json.
func (a *API) writeTable(w http.ResponseWriter, r *http.Request, table report.Table, title string, filename string) {
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	var (
		buf         bytes.Buffer
		err         error
		contentType string
	)
	switch format {
	case "", "json":
		writeJSON(w, http.StatusOK, map[string]any{"title": title, "table": table})
		return
	case "csv":
		contentType = "text/csv; charset=utf-8"
		err = render.WriteCSV(&buf, table)
	case "pdf":
		contentType = "application/pdf"
		err = render.WritePDF(&buf, table, title)
	case "html":
		contentType = "text/html; charset=utf-8"
		err = render.WriteHTML(&buf, table, title)
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown format %q", format))
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	if format != "html" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+"."+format))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

// writeError returns the original message for 4xx and a generic one for 5xx.
func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
