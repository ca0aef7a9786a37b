package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "loan-origination/docs"
	"loan-origination/internal/api"
	"loan-origination/internal/api/handler"
	mw "loan-origination/internal/api/middleware"
	"loan-origination/internal/batch"
	"loan-origination/internal/config"
	"loan-origination/internal/domain/customer"
	"loan-origination/internal/domain/loan"
	"loan-origination/internal/domain/scoring"
	"loan-origination/internal/event"
	"loan-origination/internal/event/callback"
	"loan-origination/internal/infrastructure/database/memory"
	"loan-origination/internal/infrastructure/database/postgres"
	"loan-origination/internal/infrastructure/gateway"
	"loan-origination/internal/infrastructure/logging"
	"loan-origination/internal/infrastructure/redis"
	"loan-origination/internal/pkg/keylock"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

const tokenSweepTimeout = 30 * time.Second

// infra holds the long-lived connections main has to release on shutdown.
type infra struct {
	dbPool   *pgxpool.Pool
	redis    *redis.Client
	rabbit   *amqp.Connection
	consumer *callback.Consumer
}

type repositories struct {
	customers customer.CustomerRepository
	loans     loan.Repository
}

type services struct {
	customers customer.CustomerService
	loans     loan.LoanService
	scoring   scoring.ScoringService
	tokens    scoring.TokenStore
	gateway   *gateway.ScoringClient
	banking   *gateway.BankingClient
}

// @title Loan Origination API
// @version 1.0
// @description Customer subscription, loan applications and asynchronous credit scoring.

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// @securityDefinitions.basic BasicAuth
func main() {
	cfg, logger := initializeApp()

	res := &infra{}
	defer releaseInfra(res, logger)

	repos := initializeDatabase(cfg, res, logger)
	res.redis = initializeRedis(cfg, logger)
	res.rabbit = initializeRabbitMQ(cfg, logger)

	svc := initializeServices(cfg, repos, res, logger)
	res.consumer = startCallbackConsumer(cfg, res.rabbit, svc.scoring, logger)

	sweepJob := batch.NewTokenSweepJob(svc.tokens, logger)
	cronScheduler := startBatchJobs(cfg, logger, sweepJob)

	rateLimiter := mw.NewRateLimiterMiddleware(cfg.Server.RateLimit, logger)
	defer rateLimiter.Stop()

	router := api.SetupRouter(rateLimiter, api.Services{
		Customers:    svc.customers,
		Loans:        svc.loans,
		Scoring:      svc.scoring,
		Gateway:      svc.gateway,
		Transactions: svc.banking,
		Readiness:    readinessChecks(res),
	}, cfg, logger)

	srv, serverErrors, shutdownChan := startServer(cfg, router, logger)
	handleShutdown(srv, cronScheduler, shutdownChan, serverErrors, logger)
}

func initializeApp() (*config.Config, *slog.Logger) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Logger)
	slog.SetDefault(logger)
	logger.Info("Application starting...", "config_source", viper.ConfigFileUsed())

	return cfg, logger
}

func initializeDatabase(cfg *config.Config, res *infra, logger *slog.Logger) repositories {
	if cfg.Database.Driver == config.DriverMemory {
		logger.Warn("Using in-memory storage; data is lost on restart")
		return repositories{
			customers: memory.NewCustomerRepository(),
			loans:     memory.NewLoanRepository(),
		}
	}

	logger.Info("Initializing database connection pool...")
	dbPool, err := postgres.NewConnectionPool(context.Background(), cfg.Database, logger)
	if err != nil {
		logger.Error("Failed to initialize database connection pool", "error", err)
		os.Exit(1)
	}
	res.dbPool = dbPool
	return repositories{
		customers: postgres.NewCustomerRepository(dbPool, logger),
		loans:     postgres.NewLoanRepository(dbPool, logger),
	}
}

// initializeRedis returns nil unless redis backs the token store.
func initializeRedis(cfg *config.Config, logger *slog.Logger) *redis.Client {
	if cfg.Tokens.Store != config.TokenStoreRedis {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	if client == nil {
		logger.Error("Redis token store selected but redis.url is empty")
		os.Exit(1)
	}
	logger.Info("Connected to Redis")
	return client
}

func initializeRabbitMQ(cfg *config.Config, logger *slog.Logger) *amqp.Connection {
	if !cfg.RabbitMQ.Enabled {
		logger.Info("RabbitMQ disabled; domain events are dropped and callbacks arrive over HTTP only")
		return nil
	}
	uri := fmt.Sprintf("amqp://%s:%s@%s:%d/",
		cfg.RabbitMQ.Username,
		cfg.RabbitMQ.Password,
		cfg.RabbitMQ.Host,
		cfg.RabbitMQ.Port,
	)
	conn, err := connectRabbitMQ(uri, logger)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	return conn
}

func connectRabbitMQ(uri string, logger *slog.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	retryCount := 5
	for i := 1; i <= retryCount; i++ {
		conn, err = amqp.Dial(uri)
		if err == nil {
			logger.Info("Successfully connected to RabbitMQ")

			go func() {
				blockChan := conn.NotifyBlocked(make(chan amqp.Blocking))
				closeChan := conn.NotifyClose(make(chan *amqp.Error))

				select {
				case b := <-blockChan:
					logger.Warn("RabbitMQ Connection Blocked", "reason", b.Reason)
				case e := <-closeChan:
					if e != nil {
						logger.Error("RabbitMQ Connection Closed", slog.Any("error", e))
					}
				}
			}()

			return conn, nil
		}
		logger.Warn("Failed to connect to RabbitMQ, retrying...",
			slog.Int("attempt", i),
			slog.Int("max_attempts", retryCount),
			slog.Any("error", err),
		)
		time.Sleep(time.Duration(i*2) * time.Second)
	}
	return nil, fmt.Errorf("giving up on RabbitMQ after %d attempts: %w", retryCount, err)
}

func initializeServices(cfg *config.Config, repos repositories, res *infra, logger *slog.Logger) services {
	logger.Info("Initializing application components...")

	var publisher event.EventPublisher = event.NopPublisher{}
	if res.rabbit != nil {
		pub, err := event.NewRabbitMQEventPublisher(res.rabbit, cfg.RabbitMQ.ExchangeName, logger)
		if err != nil {
			logger.Error("Failed to create RabbitMQ event publisher", "error", err)
			os.Exit(1)
		}
		publisher = pub
	}

	scoringClient := gateway.NewScoringClient(cfg.Scoring, &http.Client{Timeout: cfg.Scoring.Timeout}, logger)
	bankingClient := gateway.NewBankingClient(cfg.Banking, &http.Client{Timeout: cfg.Banking.Timeout}, logger)

	var tokens scoring.TokenStore
	if res.redis != nil {
		tokens = redis.NewTokenStore(res.redis.Client, cfg.Tokens.Capacity, cfg.Tokens.TTL)
	} else {
		tokens = scoring.NewMemoryTokenStore(cfg.Tokens.Capacity, cfg.Tokens.TTL)
	}

	// loan creation and callback decisions serialize on the same customer key
	locks := keylock.New()

	customerService := customer.NewCustomerService(repos.customers, bankingClient, publisher, logger)
	loanService := loan.NewLoanService(repos.loans, customerService, locks, publisher, logger)
	scoringService := scoring.NewScoringService(customerService, loanService, tokens, scoringClient, locks, logger)

	return services{
		customers: customerService,
		loans:     loanService,
		scoring:   scoringService,
		tokens:    tokens,
		gateway:   scoringClient,
		banking:   bankingClient,
	}
}

// readinessChecks covers the stores opened at startup; in-memory
// storage has nothing to check.
func readinessChecks(res *infra) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{}
	if res.dbPool != nil {
		checks["database"] = res.dbPool.Ping
	}
	if res.redis != nil {
		checks["redis"] = res.redis.Health
	}
	return checks
}

func startCallbackConsumer(cfg *config.Config, conn *amqp.Connection, processor callback.CallbackProcessor, logger *slog.Logger) *callback.Consumer {
	if conn == nil {
		return nil
	}
	cbHandler := callback.NewScoreCallbackHandler(processor, logger)
	consumer, err := callback.NewConsumer(
		conn,
		cfg.RabbitMQ.ExchangeName,
		cfg.RabbitMQ.CallbackQueue,
		cfg.RabbitMQ.ConsumerTag,
		cbHandler.HandleDelivery,
		logger,
	)
	if err != nil {
		logger.Error("Failed to create score callback consumer", "error", err)
		os.Exit(1)
	}
	if err := consumer.Start(context.Background()); err != nil {
		logger.Error("Failed to start score callback consumer", "error", err)
		os.Exit(1)
	}
	return consumer
}

func releaseInfra(res *infra, logger *slog.Logger) {
	if res.consumer != nil {
		logger.Info("Stopping score callback consumer...")
		res.consumer.Stop()
	}
	if res.rabbit != nil {
		logger.Info("Closing RabbitMQ connection...")
		if err := res.rabbit.Close(); err != nil {
			logger.Warn("RabbitMQ close failed", "error", err)
		}
	}
	if res.redis != nil {
		logger.Info("Closing Redis client...")
		if err := res.redis.Close(); err != nil {
			logger.Warn("Redis close failed", "error", err)
		}
	}
	if res.dbPool != nil {
		logger.Info("Closing database connection pool...")
		res.dbPool.Close()
	}
}

func startServer(cfg *config.Config, router http.Handler, logger *slog.Logger) (*http.Server, <-chan error, <-chan os.Signal) {
	logger.Info("Setting up HTTP server...", "port", cfg.Server.Port)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("Server listening on port %d", cfg.Server.Port))
		err := srv.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			serverErrors <- err
		} else {
			logger.Info("Server closed gracefully.")
			serverErrors <- nil
		}
	}()
	return srv, serverErrors, shutdownChan
}

func handleShutdown(srv *http.Server, cronScheduler *cron.Cron, shutdownChan <-chan os.Signal, serverErrors <-chan error, logger *slog.Logger) {
	logger.Info("Shutdown handler started. Waiting for signal or server error...")

	var triggerReason string
	select {
	case sig := <-shutdownChan:
		triggerReason = "signal: " + sig.String()
		logger.Info("Shutdown signal received.", "signal", sig.String())
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server exited unexpectedly before signal", "error", err)
			os.Exit(1)
		}
		triggerReason = "server exited"
		logger.Info("Server goroutine finished before signal.", "error", err)
	}

	logger.Info("Starting graceful shutdown...", "trigger", triggerReason)

	logger.Info("Stopping cron scheduler...")
	cronCtx := cronScheduler.Stop()
	select {
	case <-cronCtx.Done():
		logger.Info("Cron scheduler stopped gracefully.")
	case <-time.After(15 * time.Second):
		logger.Warn("Cron scheduler shutdown timed out.")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	logger.Info("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", "error", err)
		if err := srv.Close(); err != nil {
			logger.Error("HTTP server forced close failed", "error", err)
		}
	} else {
		logger.Info("HTTP server gracefully stopped.")
	}

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Server goroutine exited with unexpected error after shutdown", "error", err)
		}
	case <-time.After(5 * time.Second):
		logger.Warn("Timed out waiting for server goroutine confirmation.")
	}

	logger.Info("Application shutdown process complete.")
}

func startBatchJobs(cfg *config.Config, logger *slog.Logger, sweepJob *batch.TokenSweepJob) *cron.Cron {
	logger.Info("Initializing batch job scheduler...")
	c := cron.New()

	scheduleSpec := cfg.Batch.TokenSweepSchedule
	if scheduleSpec == "" {
		scheduleSpec = "@every 1m"
		logger.Warn("Token sweep schedule not configured, using default", "schedule", scheduleSpec)
	}

	jobID, err := c.AddJob(scheduleSpec, cron.FuncJob(func() {
		jobLogger := logger.With("job_name", "TokenSweep")

		ctx, cancel := context.WithTimeout(context.Background(), tokenSweepTimeout)
		defer cancel()

		if runErr := sweepJob.Run(ctx); runErr != nil {
			jobLogger.Error("Token sweep job finished with error", slog.Any("error", runErr))
		}
	}))

	if err != nil {
		logger.Error("Failed to schedule token sweep job", "schedule", scheduleSpec, slog.Any("error", err))
	} else {
		logger.Info("Scheduled token sweep job", "schedule", scheduleSpec, "job_id", jobID)
	}

	c.Start()
	logger.Info("Cron scheduler started.")
	return c
}

func setupLogger(cfg config.LoggerConfig) *slog.Logger {
	return logging.NewLogger(cfg)
}
