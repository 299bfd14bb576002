// Package http is the JSON presentation adapter over the ledger and billing
// services. It owns routing, request decoding and the error-to-status mapping;
// all domain rules live below it.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	applog "mymoney/internal/log"
	"mymoney/internal/services"
)

type Server struct {
	http.Server

	ledger    *services.WalletService
	billing   *services.CreditCardService
	recurring *services.RecurringService

	limiter      *rateLimiter
	shutdownOnce sync.Once
}

// NewServer wires all routes and returns a ready-to-run server.
func NewServer(addr string, ledger *services.WalletService, billing *services.CreditCardService, recurring *services.RecurringService, logger *applog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		ledger:    ledger,
		billing:   billing,
		recurring: recurring,
		limiter:   newRateLimiter(),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	// Wallet ledger
	mux.HandleFunc("POST /api/wallets", s.handleCreateWallet)
	mux.HandleFunc("GET /api/wallets", s.handleListWallets)
	mux.HandleFunc("GET /api/wallets/{id}", s.handleGetWallet)
	mux.HandleFunc("PATCH /api/wallets/{id}", s.handleUpdateWallet)
	mux.HandleFunc("DELETE /api/wallets/{id}", s.handleDeleteWallet)
	mux.HandleFunc("GET /api/wallets/{id}/transactions", s.handleListTransactions)
	mux.HandleFunc("GET /api/wallets/{id}/transfers", s.handleListTransfers)
	mux.HandleFunc("GET /api/wallets/{id}/foreseen-balance", s.handleForeseenBalance)

	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("PATCH /api/categories/{id}", s.handleUpdateCategory)

	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("POST /api/transactions/{id}/confirm", s.handleConfirmTransaction)

	mux.HandleFunc("POST /api/transfers", s.handleCreateTransfer)

	// Credit card billing
	mux.HandleFunc("POST /api/cards", s.handleCreateCard)
	mux.HandleFunc("GET /api/cards", s.handleListCards)
	mux.HandleFunc("GET /api/cards/{id}", s.handleGetCard)
	mux.HandleFunc("PUT /api/cards/{id}", s.handleUpdateCard)
	mux.HandleFunc("PATCH /api/cards/{id}", s.handleArchiveCard)
	mux.HandleFunc("DELETE /api/cards/{id}", s.handleDeleteCard)
	mux.HandleFunc("GET /api/cards/{id}/available-credit", s.handleAvailableCredit)
	mux.HandleFunc("POST /api/cards/{id}/debts", s.handleRegisterDebt)
	mux.HandleFunc("GET /api/cards/{id}/debts", s.handleListDebts)
	mux.HandleFunc("GET /api/cards/{id}/invoices/{month}", s.handleGetInvoice)
	mux.HandleFunc("POST /api/cards/{id}/invoices/{month}/pay", s.handlePayInvoice)

	mux.HandleFunc("GET /api/debts/{id}", s.handleGetDebt)
	mux.HandleFunc("PUT /api/debts/{id}", s.handleUpdateDebt)
	mux.HandleFunc("DELETE /api/debts/{id}", s.handleDeleteDebt)

	// Recurring templates
	mux.HandleFunc("POST /api/recurring", s.handleCreateRecurring)
	mux.HandleFunc("GET /api/recurring", s.handleListRecurring)
	mux.HandleFunc("GET /api/recurring/{id}", s.handleGetRecurring)
	mux.HandleFunc("PUT /api/recurring/{id}", s.handleUpdateRecurring)
	mux.HandleFunc("DELETE /api/recurring/{id}", s.handleDeleteRecurring)
	mux.HandleFunc("POST /api/recurring/{id}/stop", s.handleStopRecurring)

	handler := applog.Middleware(logger)(s.withProtection(mux))
	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// withProtection adds baseline response headers and rate limits mutating
// requests per client IP.
func (s *Server) withProtection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")

		if r.Method != http.MethodGet && !s.limiter.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, apiError{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// Shutdown stops the rate limiter cleanup goroutine and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
