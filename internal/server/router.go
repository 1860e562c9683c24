// Package server assembles services, handlers and middleware into the API.
package server

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/invoicehub/auth"
	"github.com/diewo77/invoicehub/httpx"
	"github.com/diewo77/invoicehub/internal/config"
	"github.com/diewo77/invoicehub/internal/flags"
	"github.com/diewo77/invoicehub/internal/handlers"
	"github.com/diewo77/invoicehub/internal/logging"
	"github.com/diewo77/invoicehub/internal/models"
	"github.com/diewo77/invoicehub/internal/policy"
	"github.com/diewo77/invoicehub/internal/services"
)

// Deps are the collaborators the router needs. Authenticator and Logger may be nil.
type Deps struct {
	DB            *gorm.DB
	Authenticator *auth.Authenticator
	Logger        *zap.Logger
	App           config.AppConfig
	FlagTTL       time.Duration
}

// New constructs the root http.Handler with all routes and middlewares applied.
func New(d Deps) http.Handler {
	db := d.DB
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	authn := d.Authenticator
	if authn == nil {
		authn = auth.NewAuthenticator(nil, nil, logger)
	}
	if d.FlagTTL == 0 {
		d.FlagTTL = 30 * time.Second
	}

	// RequireAuth checks the user still exists.
	auth.SetUserVerifier(func(_ context.Context, uid uint) bool {
		var count int64
		if err := db.Model(&models.User{}).Where("id = ?", uid).Limit(1).Count(&count).Error; err != nil {
			return false
		}
		return count > 0
	})

	gate := policy.NewDefaultGate()
	invoiceSvc := services.NewInvoiceService(db, gate, logger, d.App)
	paymentSvc := services.NewPaymentService(db, gate, logger)
	clientSvc := services.NewClientService(db, gate)
	bankSvc := services.NewBankAccountService(db, gate)
	exportSvc := services.NewExportService(db, gate, invoiceSvc)
	flagSvc := flags.NewService(db, d.FlagTTL)

	ah := handlers.NewAuthHandler(db, authn, logger)
	ch := handlers.NewClientHandler(clientSvc)
	sh := handlers.NewCatalogHandler(services.NewCatalogService(db, gate))
	eh := handlers.NewExpenseHandler(services.NewExpenseService(db, gate))
	bh := handlers.NewBankAccountHandler(bankSvc)
	ih := handlers.NewInvoiceHandler(invoiceSvc, exportSvc)
	ph := handlers.NewPaymentHandler(paymentSvc)
	oh := handlers.NewOnboardingHandler(services.NewOnboardingService(db, clientSvc, bankSvc))
	rh := handlers.NewReportHandler(services.NewAnalyticsService(db), exportSvc, flagSvc, logger)

	mux := http.NewServeMux()

	// --- Health endpoints ---
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		if err := db.Exec("SELECT 1").Error; err != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Public auth endpoints
	mux.HandleFunc("POST /api/auth/signup", ah.Signup)
	mux.HandleFunc("POST /api/auth/login", ah.Login)

	api := http.NewServeMux()
	api.HandleFunc("POST /api/auth/logout", ah.Logout)
	api.HandleFunc("GET /api/auth/me", ah.Me)

	api.HandleFunc("GET /api/onboarding", oh.State)
	api.HandleFunc("POST /api/onboarding/{step}", oh.Complete)
	api.HandleFunc("POST /api/onboarding/{step}/skip", oh.Skip)

	api.HandleFunc("GET /api/clients", ch.List)
	api.HandleFunc("POST /api/clients", ch.Create)
	api.HandleFunc("GET /api/clients/{id}", ch.Get)
	api.HandleFunc("PUT /api/clients/{id}", ch.Update)
	api.HandleFunc("DELETE /api/clients/{id}", ch.Delete)

	api.HandleFunc("GET /api/services", sh.List)
	api.HandleFunc("POST /api/services", sh.Create)
	api.HandleFunc("PUT /api/services/{id}", sh.Update)
	api.HandleFunc("DELETE /api/services/{id}", sh.Delete)

	api.HandleFunc("GET /api/expenses", eh.List)
	api.HandleFunc("POST /api/expenses", eh.Create)
	api.HandleFunc("PUT /api/expenses/{id}", eh.Update)
	api.HandleFunc("DELETE /api/expenses/{id}", eh.Delete)

	api.HandleFunc("GET /api/bank-accounts", bh.List)
	api.HandleFunc("POST /api/bank-accounts", bh.Create)
	api.HandleFunc("DELETE /api/bank-accounts/{id}", bh.Delete)

	api.HandleFunc("GET /api/invoices", ih.List)
	api.HandleFunc("POST /api/invoices", ih.Create)
	api.HandleFunc("POST /api/invoices/totals", ih.Totals)
	api.HandleFunc("GET /api/invoices/{id}", ih.Get)
	api.HandleFunc("PUT /api/invoices/{id}", ih.Update)
	api.HandleFunc("DELETE /api/invoices/{id}", ih.Delete)
	api.HandleFunc("POST /api/invoices/{id}/{action}", ih.Action)
	api.Handle("GET /api/invoices/{id}/pdf", requireFlag(flagSvc, "pdf_export", http.HandlerFunc(ih.PDF)))

	api.HandleFunc("GET /api/invoices/{id}/payments", ph.List)
	api.HandleFunc("POST /api/invoices/{id}/payments", ph.Record)
	api.HandleFunc("DELETE /api/payments/{id}", ph.Delete)

	api.Handle("GET /api/export/invoices.csv", requireFlag(flagSvc, "csv_export", http.HandlerFunc(rh.InvoicesCSV)))
	api.Handle("GET /api/export/expenses.csv", requireFlag(flagSvc, "csv_export", http.HandlerFunc(rh.ExpensesCSV)))
	api.HandleFunc("GET /api/analytics/summary", rh.Summary)
	api.HandleFunc("GET /api/flags", rh.Flags)

	mux.Handle("/api/", auth.RequireAuth(api))

	return withRecover(logger, authn.Middleware(logging.Middleware(logger)(mux)))
}

// requireFlag answers 404 when the feature is off for the current user.
func requireFlag(fl *flags.Service, key string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, _ := auth.UserIDFromContext(r.Context())
		on, err := fl.Enabled(r.Context(), key, uid)
		if err != nil {
			handlers.WriteError(w, err)
			return
		}
		if !on {
			httpx.JSONError(w, http.StatusNotFound, "feature_disabled", map[string]string{"flag": key})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withRecover(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic", zap.Any("recovered", rec), zap.String("path", r.URL.Path))
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
