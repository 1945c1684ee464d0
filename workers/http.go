package workers

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"goscrow/config"
	"goscrow/logger"
	"goscrow/workers/handlers"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
)

// NewRouter wires the API. Writes go through the per-IP limiter.
func NewRouter(api *handlers.API, metricsHandler http.Handler, writeRPS float64, writeBurst int) http.Handler {
	limiter := newIPLimiter(writeRPS, writeBurst)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Options("/*", CORSHeaders)

	r.Get("/state", api.State)
	r.Get("/health", api.HealthCheck)
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Get("/operations", api.GetOperations)
	r.Get("/operations/{id}", api.GetOperation)
	r.Get("/tokens", api.GetTokens)
	r.Get("/tokens/{address}", api.GetToken)
	r.Get("/balances/escrow", api.GetEscrowBalances)
	r.Get("/balances/{address}", api.GetBalances)
	r.Get("/audit", api.GetAudit)
	r.Get("/owner", api.GetOwner)

	r.Group(func(r chi.Router) {
		r.Use(limiter.middleware)
		r.Post("/operations", api.CreateOperation)
		r.Post("/operations/{id}/complete", api.CompleteOperation)
		r.Post("/operations/{id}/cancel", api.CancelOperation)
		r.Post("/tokens", api.AddToken)
	})

	r.Post("/polling/pause", api.PausePolling)
	r.Post("/polling/resume", api.ResumePolling)

	return r
}

// Worker_HTTP serves the API until SIGINT/SIGTERM, then shuts the server
// down gracefully.
func Worker_HTTP(handler http.Handler) {
	logger.Logger.Info("Starting HTTP service")

	server := &http.Server{
		Addr:              config.Config.Server.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatalf("error listening to: %s", err)
		}
	}()
	logger.Logger.Infof("HTTP service started on %s", server.Addr)

	<-done
	logger.Logger.Info("HTTP service stopped")

	// workflows wait for receipts, give them time to finish
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Logger.Errorf("HTTP service shutdown error: %+v", err)
		return
	}
	logger.Logger.Info("HTTP service shutdown normal")
}

func CORSHeaders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, Origin, X-Requested-With")
}
