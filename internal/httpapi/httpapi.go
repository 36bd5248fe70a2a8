package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/ulule/limiter/v3"
	limitermemory "github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/gabrielekerete60/bms/internal/apperror"
	"github.com/gabrielekerete60/bms/internal/domain"
	"github.com/gabrielekerete60/bms/internal/logger"
	"github.com/gabrielekerete60/bms/internal/service"
)

const defaultLoginRate = "5-M"

type Options struct {
	AllowedOrigin string
	// LoginRate is a limiter formatted rate such as "5-M".
	LoginRate string
	Logger    *logger.Logger
}

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *limiter.Limiter
	log           *logger.Logger
}

// envelope is the body of every response.
type envelope struct {
	domain.ActionResult
	Data any `json:"data,omitempty"`
}

func New(svc *service.Service, auth *AuthManager, opts Options) (*API, error) {
	if opts.LoginRate == "" {
		opts.LoginRate = defaultLoginRate
	}
	rate, err := limiter.NewRateFromFormatted(opts.LoginRate)
	if err != nil {
		return nil, err
	}
	if opts.AllowedOrigin == "" {
		opts.AllowedOrigin = "*"
	}
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: opts.AllowedOrigin,
		loginLimiter:  limiter.New(limitermemory.NewStore(), rate),
		log:           log.WithComponent("httpapi"),
	}, nil
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/users", a.requireAuth(a.handleUsers, domain.RoleManager, domain.RoleDeveloper))

	mux.HandleFunc("/api/v1/transfers", a.requireAuth(a.handleTransfers))
	mux.HandleFunc("/api/v1/transfers/{id}", a.requireAuth(only(http.MethodGet, a.handleGetTransfer)))
	mux.HandleFunc("/api/v1/transfers/{id}/acknowledge", a.requireAuth(only(http.MethodPost, a.handleAcknowledgeTransfer)))
	mux.HandleFunc("/api/v1/runs/{id}/return", a.requireAuth(only(http.MethodPost, a.handleReturnStock)))
	mux.HandleFunc("/api/v1/runs/{id}/complete", a.requireAuth(only(http.MethodPost, a.handleCompleteRun)))
	mux.HandleFunc("/api/v1/runs/{id}/reset", a.requireAuth(only(http.MethodPost, a.handleResetRun), domain.RoleDeveloper))
	mux.HandleFunc("/api/v1/runs/{id}/orders", a.requireAuth(only(http.MethodGet, a.handleRunOrders)))

	mux.HandleFunc("/api/v1/production/batches", a.requireAuth(a.handleBatches))
	mux.HandleFunc("/api/v1/production/batches/{id}", a.requireAuth(only(http.MethodGet, a.handleGetBatch)))
	mux.HandleFunc("/api/v1/production/batches/{id}/approve", a.requireAuth(only(http.MethodPost, a.handleApproveBatch)))
	mux.HandleFunc("/api/v1/production/batches/{id}/decline", a.requireAuth(only(http.MethodPost, a.handleDeclineBatch)))
	mux.HandleFunc("/api/v1/production/batches/{id}/cancel", a.requireAuth(only(http.MethodPost, a.handleCancelBatch)))
	mux.HandleFunc("/api/v1/production/batches/{id}/complete", a.requireAuth(only(http.MethodPost, a.handleCompleteBatch)))
	mux.HandleFunc("/api/v1/production/ingredients/return", a.requireAuth(only(http.MethodPost, a.handleReturnIngredients)))
	mux.HandleFunc("/api/v1/production/logs", a.requireAuth(only(http.MethodGet, a.handleProductionLogs)))
	mux.HandleFunc("/api/v1/ingredient-stock-logs", a.requireAuth(only(http.MethodGet, a.handleIngredientStockLogs)))

	mux.HandleFunc("/api/v1/sales/customer", a.requireAuth(only(http.MethodPost, a.handleSellToCustomer)))
	mux.HandleFunc("/api/v1/sales/pos", a.requireAuth(only(http.MethodPost, a.handlePosSale)))
	mux.HandleFunc("/api/v1/sales/debt-payment", a.requireAuth(only(http.MethodPost, a.handleDebtPayment)))
	mux.HandleFunc("/api/v1/sales/expense", a.requireAuth(only(http.MethodPost, a.handleRunExpense)))
	mux.HandleFunc("/api/v1/sales/daily/{day}", a.requireAuth(only(http.MethodGet, a.handleDailySales)))
	mux.HandleFunc("/api/v1/payment-confirmations", a.requireAuth(only(http.MethodGet, a.handlePendingConfirmations)))
	mux.HandleFunc("/api/v1/payment-confirmations/{id}", a.requireAuth(only(http.MethodPost, a.handlePaymentConfirmation)))
	mux.HandleFunc("/api/v1/payments/initialize", a.requireAuth(only(http.MethodPost, a.handleInitializePayment)))
	mux.HandleFunc("/api/v1/payments/verify/{reference}", a.requireAuth(only(http.MethodPost, a.handleVerifyPayment)))

	mux.HandleFunc("/api/v1/products", a.requireAuth(a.handleProducts))
	mux.HandleFunc("/api/v1/ingredients", a.requireAuth(a.handleIngredients))
	mux.HandleFunc("/api/v1/recipes", a.requireAuth(a.handleRecipes))
	mux.HandleFunc("/api/v1/recipes/{id}", a.requireAuth(only(http.MethodDelete, a.handleDeleteRecipe)))
	mux.HandleFunc("/api/v1/customers", a.requireAuth(a.handleCustomers))
	mux.HandleFunc("/api/v1/staff", a.requireAuth(a.handleStaff))
	mux.HandleFunc("/api/v1/staff/{id}/products", a.requireAuth(only(http.MethodGet, a.handleStaffProducts)))

	mux.HandleFunc("/api/v1/waste", a.requireAuth(a.handleWaste))
	mux.HandleFunc("/api/v1/staff/{id}/stock", a.requireAuth(only(http.MethodGet, a.handlePersonalStock)))
	mux.HandleFunc("/api/v1/staff/{id}/stock/remove", a.requireAuth(only(http.MethodPost, a.handleRemoveStock), domain.RoleDeveloper, domain.RoleManager))
	mux.HandleFunc("/api/v1/staff/{id}/pending-transfers", a.requireAuth(only(http.MethodGet, a.handlePendingTransfers)))
	mux.HandleFunc("/api/v1/supply-requests", a.requireAuth(a.handleSupplyRequests))
	mux.HandleFunc("/api/v1/supply-requests/{id}/approve", a.requireAuth(only(http.MethodPost, a.handleApproveSupply)))
	mux.HandleFunc("/api/v1/supply-requests/{id}/decline", a.requireAuth(only(http.MethodPost, a.handleDeclineSupply)))
	mux.HandleFunc("/api/v1/audit-logs", a.requireAuth(only(http.MethodGet, a.handleAuditLogs), domain.RoleManager, domain.RoleDeveloper))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			a.writeError(w, r, apperror.NewUnauthorized("Missing bearer token."))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			a.writeError(w, r, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			a.writeError(w, r, apperror.NewForbidden("You do not have permission to perform this action."))
			return
		}

		ctx := service.WithActor(r.Context(), actor)
		ctx = logger.WithLogger(ctx, logger.FromContext(ctx).With("actor", actor.Username, "role", actor.Role))
		next(w, r.WithContext(ctx))
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

func only(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			writeMethodNotAllowed(w)
			return
		}
		next(w, r)
	}
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		ActionResult: domain.ActionResult{Success: true},
		Data:         map[string]any{"at": time.Now().UTC().Format(time.RFC3339)},
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	limit, err := a.loginLimiter.Get(r.Context(), clientKey(r))
	if err != nil {
		logger.Warn(r.Context(), "login limiter unavailable", "error", err)
	} else if limit.Reached {
		w.Header().Set("Retry-After", strconv.FormatInt(max(limit.Reset-time.Now().Unix(), 1), 10))
		writeJSON(w, http.StatusTooManyRequests, envelope{ActionResult: domain.ActionResult{
			Error: "Too many login attempts. Please wait a minute and try again.",
			Code:  "RATE_LIMITED",
		}})
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{ActionResult: domain.ActionResult{Success: true}, Data: resp})
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.writeResult(w, r, nil, domain.ActionResult{}, a.auth.ListUsers(r.Context()))
	case http.MethodPost:
		var req domain.CreateUserRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		user, err := a.auth.CreateUser(r.Context(), req)
		a.writeResult(w, r, err, domain.ActionResult{ID: user.Username}, user)
	default:
		writeMethodNotAllowed(w)
	}
}

// statusRecorder captures the status code for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		r = r.WithContext(logger.WithLogger(r.Context(), a.log))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		startedAt := time.Now()
		next.ServeHTTP(rec, r)
		a.log.Infow("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(startedAt),
		)
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.NewValidation("Request body is too large.").WithCause(err)
		}
		return apperror.NewValidation("Request body is not valid JSON.").WithCause(err)
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
func decodeOptionalJSON(r *http.Request, dest any) error {
	err := decodeJSON(r, dest)
	if err != nil && errors.Is(err, io.EOF) {
		return nil
	}
	return err
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
	writeJSON(w, http.StatusMethodNotAllowed, envelope{ActionResult: domain.ActionResult{
		Error: "Method not allowed.",
		Code:  "METHOD_NOT_ALLOWED",
	}})
}

// writeResult answers with the success envelope, or the error envelope when err is set.
func (a *API) writeResult(w http.ResponseWriter, r *http.Request, err error, result domain.ActionResult, data any) {
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	result.Success = true
	writeJSON(w, http.StatusOK, envelope{ActionResult: result, Data: data})
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperror.HTTPStatus(err)
	if status >= 500 {
		logger.Error(r.Context(), "request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, envelope{ActionResult: service.ResultOf(err)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
