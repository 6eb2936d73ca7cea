package httpx

import (
	"net/http"

	"afripay/internal/config"
	"afripay/internal/http/handlers"
	middlewarex "afripay/internal/http/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// RouterDependencies holds all dependencies for the HTTP router
type RouterDependencies struct {
	Config   config.Cfg
	Payments handlers.PaymentService
	Invoices handlers.InvoiceService
	Data     handlers.DataService
	Health   *handlers.Health
	// Limiter is nil when rate limiting is disabled.
	Limiter middlewarex.Limiter
}

// NewRouter creates the HTTP router
func NewRouter(deps RouterDependencies) http.Handler {
	r := chi.NewRouter()
	errs := handlers.Errors{Dev: deps.Config.IsDevelopment()}

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(middlewarex.RequestLogger(log.Logger)...)
	r.Use(chimw.Recoverer)
	r.Use(middlewarex.SecureHeaders(deps.Config.IsDevelopment()))
	r.Use(middlewarex.CORS(deps.Config.Sec.AllowedOrigins))

	// Probes are exempt from rate limiting
	r.Route("/health", func(r chi.Router) {
		r.Get("/", deps.Health.Basic())
		r.Get("/detailed", deps.Health.Detailed())
		r.Get("/ready", deps.Health.Ready())
		r.Get("/live", deps.Health.Live())
	})

	r.Route("/api", func(r chi.Router) {
		if deps.Limiter != nil {
			r.Use(middlewarex.RateLimit(deps.Limiter))
		}
		r.Use(middlewarex.BodyLimit(deps.Config.Server.MaxBodyBytes))

		r.Post("/create", handlers.CreatePayment(deps.Payments, errs))
		r.Get("/create/{reference}", handlers.GetPayment(deps.Payments, errs))
		r.Delete("/create/{reference}", handlers.CancelPayment(deps.Payments, errs))

		r.Route("/payment", func(r chi.Router) {
			r.Get("/status/{reference}", handlers.PaymentStatus(deps.Payments, errs))
			r.Post("/verify", handlers.VerifyPayment(deps.Payments, errs))
			r.Get("/transaction/{reference}", handlers.TransactionRequestMeta(deps.Payments, errs))
			r.Post("/transaction/{reference}", handlers.TransactionRequest(deps.Payments, errs))
			r.Get("/balance/{wallet}", handlers.WalletBalance(deps.Payments, errs))

			r.Get("/requests", handlers.ListRequests(deps.Data, errs))
			r.Get("/transactions", handlers.ListTransactions(deps.Data, errs))
			r.Get("/events/{reference}", handlers.ListEvents(deps.Data, errs))
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Post("/", handlers.CreateInvoice(deps.Invoices, errs))
			r.Get("/", handlers.ListInvoices(deps.Invoices, errs))
			r.Get("/{id}", handlers.GetInvoice(deps.Invoices, errs))
			r.Delete("/{id}", handlers.CancelInvoice(deps.Invoices, errs))
		})

		r.Get("/metrics", handlers.Metrics(deps.Data, errs))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"route not found"}`))
	})

	return r
}
