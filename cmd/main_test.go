package main

import (
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	"loan-origination/internal/batch"
	"loan-origination/internal/config"
	"loan-origination/internal/domain/scoring"
	"loan-origination/internal/infrastructure/database/memory"
	"loan-origination/internal/infrastructure/logging"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeApp(t *testing.T) {
	t.Setenv("SERVER_AUTH_JWTSECRET", "test-secret")
	t.Setenv("SERVER_CALLBACKAUTH_PASSWORD", "test-password")

	cfg, log := initializeApp()

	assert.NotNil(t, cfg, "Config should not be nil")
	assert.NotNil(t, log, "Logger should not be nil")
	assert.Equal(t, "@every 1m", cfg.Batch.TokenSweepSchedule)
}

func memoryConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{Driver: config.DriverMemory},
		Tokens:   config.TokenConfig{Store: config.TokenStoreMemory, Capacity: 10, TTL: time.Minute},
		Scoring:  config.ScoringConfig{URL: "http://scoring.invalid", MaxAttempts: 1},
		Banking:  config.BankingConfig{URL: "http://banking.invalid"},
	}
}

func TestInitializeDatabase_Memory(t *testing.T) {
	logger := logging.NewLogger(config.LoggerConfig{})
	res := &infra{}

	repos := initializeDatabase(memoryConfig(), res, logger)

	assert.IsType(t, &memory.CustomerRepository{}, repos.customers)
	assert.IsType(t, &memory.LoanRepository{}, repos.loans)
	assert.Nil(t, res.dbPool)
}

func TestInitializeRedis_SkippedForMemoryStore(t *testing.T) {
	logger := logging.NewLogger(config.LoggerConfig{})

	assert.Nil(t, initializeRedis(memoryConfig(), logger))
}

func TestInitializeServices_InMemory(t *testing.T) {
	logger := logging.NewLogger(config.LoggerConfig{})
	cfg := memoryConfig()
	res := &infra{}

	svc := initializeServices(cfg, initializeDatabase(cfg, res, logger), res, logger)

	require.NotNil(t, svc.customers)
	require.NotNil(t, svc.loans)
	require.NotNil(t, svc.scoring)
	assert.IsType(t, &scoring.MemoryTokenStore{}, svc.tokens)
	assert.Equal(t, "http://scoring.invalid", svc.gateway.BaseURL())
	assert.NotNil(t, svc.banking)
}

func TestReadinessChecks_InMemoryHasNothingToCheck(t *testing.T) {
	assert.Empty(t, readinessChecks(&infra{}))
}

func TestStartCallbackConsumer_WithoutRabbitMQ(t *testing.T) {
	logger := logging.NewLogger(config.LoggerConfig{})

	assert.Nil(t, startCallbackConsumer(memoryConfig(), nil, nil, logger))
}

func TestReleaseInfra_Empty(t *testing.T) {
	logger := logging.NewLogger(config.LoggerConfig{})

	assert.NotPanics(t, func() { releaseInfra(&infra{}, logger) })
}

func TestStartServer(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:         0,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  5 * time.Second,
		},
	}
	logger := logging.NewLogger(config.LoggerConfig{})
	router := http.NewServeMux()

	srv, serverErrors, shutdownChan := startServer(cfg, router, logger)
	t.Cleanup(func() { _ = srv.Close() })

	assert.NotNil(t, srv, "Server should not be nil")
	assert.NotNil(t, serverErrors, "Server errors channel should not be nil")
	assert.NotNil(t, shutdownChan, "Shutdown channel should not be nil")
}

func TestStartBatchJobs(t *testing.T) {
	logger := logging.NewLogger(config.LoggerConfig{})
	job := batch.NewTokenSweepJob(scoring.NewMemoryTokenStore(10, time.Minute), logger)

	c := startBatchJobs(&config.Config{}, logger, job)
	defer c.Stop()

	assert.Len(t, c.Entries(), 1)
}

func TestHandleShutdown(t *testing.T) {
	logger := logging.NewLogger(config.LoggerConfig{})
	cronScheduler := cron.New()
	srv := &http.Server{}
	shutdownChan := make(chan os.Signal, 1)
	serverErrors := make(chan error, 1)

	go func() {
		shutdownChan <- syscall.SIGINT
	}()

	handleShutdown(srv, cronScheduler, shutdownChan, serverErrors, logger)
	assert.True(t, true, "Graceful shutdown should complete without errors")
}
