// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"finflow-ledger/internal/api/handler"
)

// NewRouter sets up and returns a new HTTP router.
// authMiddleware guards everything except health, registration and token issuance.
func NewRouter(
	ledgerHandler *handler.LedgerHandler,
	accountHandler *handler.AccountHandler,
	authHandler *handler.AuthHandler,
	authMiddleware func(http.Handler) http.Handler,
	allowedOrigins []string,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestID)                       // Add a request ID to the context
	r.Use(middleware.RealIP)                          // Use the real IP address
	r.Use(middleware.Logger)                          // Log HTTP requests
	r.Use(middleware.Recoverer)                       // Recover from panics and return 500
	r.Use(middleware.Timeout(handler.DefaultTimeout)) // Set a default timeout for requests
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Post("/auth/register", authHandler.Register)
	r.Post("/auth/token", authHandler.Token)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)

		r.Get("/auth/me", authHandler.Me)
		r.Post("/auth/refresh", authHandler.Refresh)

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", accountHandler.CreateAccount)
			r.Get("/", accountHandler.ListAccounts)
			r.Route("/{accountID}", func(r chi.Router) {
				r.Get("/", accountHandler.GetAccount)
				r.Delete("/", accountHandler.DeleteAccount)
				r.Post("/deposit", ledgerHandler.Deposit)
				r.Post("/withdraw", ledgerHandler.Withdraw)
				r.Post("/transfer", ledgerHandler.Transfer)
				r.Get("/balance", ledgerHandler.GetBalance)
				r.Get("/transactions", ledgerHandler.GetAccountTransactions)
			})
		})

		r.Get("/transactions", ledgerHandler.ListTransactions)
		r.Get("/rates", ledgerHandler.GetRates)
	})

	logger.Debug("HTTP routes registered", "cors_origins", allowedOrigins)
	return r
}
