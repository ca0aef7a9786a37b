package api

import (
	"log/slog"
	"net/http"
	"time"

	_ "loan-origination/docs"
	"loan-origination/internal/api/handler"
	mw "loan-origination/internal/api/middleware"
	"loan-origination/internal/config"
	"loan-origination/internal/domain/customer"
	"loan-origination/internal/domain/loan"
	"loan-origination/internal/domain/scoring"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/traceid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

// Services bundles what the HTTP surface calls into.
type Services struct {
	Customers    customer.CustomerService
	Loans        loan.LoanService
	Scoring      scoring.ScoringService
	Gateway      handler.ScoringGateway
	Transactions handler.TransactionSource
	// Readiness is keyed by dependency name and backs GET /health.
	Readiness map[string]handler.ReadinessCheck
}

func SetupRouter(rateLimiter *mw.RateLimiterMiddleware, svc Services, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	router := chi.NewRouter()

	setupMiddleware(router, rateLimiter, logger)
	setupMetricsEndpoint(router, cfg, logger)
	setupHealthRoutes(router, svc.Readiness, logger)
	setupAuthRoutes(router, cfg, logger)
	setupCustomerRoutes(router, cfg, svc.Customers, logger)
	setupLoanRoutes(router, cfg, svc, logger)
	setupScoringRoutes(router, cfg, svc, logger)
	setupSwaggerEndpoint(router, logger)

	return router
}

func setupMiddleware(router *chi.Mux, rateLimiter *mw.RateLimiterMiddleware, logger *slog.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(traceid.Middleware)
	router.Use(mw.StructuredLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(middleware.Timeout(60 * time.Second))
	if rateLimiter != nil {
		router.Use(rateLimiter.Middleware)
	}
	router.Use(mw.MetricsMiddleware())
}

func setupMetricsEndpoint(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	metricsPath := cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	logger.Info("Setting up Prometheus metrics endpoint", "path", metricsPath)
	router.Handle(metricsPath, promhttp.Handler())
}

func setupSwaggerEndpoint(router *chi.Mux, logger *slog.Logger) {
	logger.Info("Setting up Swagger UI endpoint", "path", "/swagger/")
	router.Get("/swagger/*", httpSwagger.WrapHandler)
	router.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
	})
}

func setupHealthRoutes(router *chi.Mux, checks map[string]handler.ReadinessCheck, logger *slog.Logger) {
	router.Get("/health", handler.NewHealthHandler(checks, logger).Health)
}

func setupAuthRoutes(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	authHandler := handler.NewAuthHandler(cfg.Server.Auth, logger)
	router.Post("/auth/token", authHandler.GenerateBearerToken)
}

func setupCustomerRoutes(router *chi.Mux, cfg *config.Config, svc customer.CustomerService, logger *slog.Logger) {
	h := handler.NewCustomerHandler(svc, logger)

	router.Group(func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Post("/subscriptions", h.Subscribe)
		r.Route("/customers/{customerNumber}", func(r chi.Router) {
			r.Get("/", h.GetCustomer)
			r.Put("/kyc", h.RefreshKYC)
		})
	})
}

func setupLoanRoutes(router *chi.Mux, cfg *config.Config, svc Services, logger *slog.Logger) {
	h := handler.NewLoanHandler(svc.Loans, svc.Scoring, logger)

	router.Route("/loans", func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Post("/", h.CreateLoan)
		r.Get("/{loanID}", h.GetLoan)
	})
}

func setupScoringRoutes(router *chi.Mux, cfg *config.Config, svc Services, logger *slog.Logger) {
	h := handler.NewScoringHandler(svc.Scoring, svc.Gateway, logger)

	router.Group(func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Post("/scores", h.InitiateScore)
		r.Get("/scores/{customerNumber}", h.GetScore)
		r.Post("/scoring/clients", h.RegisterClient)
	})

	router.Get("/health/scoring", h.ScoringHealth)
	router.Group(func(r chi.Router) {
		r.Use(mw.CallbackAuth(cfg.Server.CallbackAuth, logger))
		r.Post("/scoring/callback", h.ScoreCallback)
		if svc.Transactions != nil {
			r.Get("/transactions/{customerNumber}", handler.NewTransactionHandler(svc.Transactions, logger).GetTransactions)
		}
	})
}
