// Package main provides the API server entry point for the scam scanner service.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scam-scanner/internal/adapter"
	"github.com/scam-scanner/internal/api"
	"github.com/scam-scanner/internal/config"
	"github.com/scam-scanner/internal/logging"
	"github.com/scam-scanner/internal/service"
	"github.com/scam-scanner/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ClickHouse")
	}
	defer clickhouse.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	// Repositories
	userRepo := storage.NewUserRepository(postgres)
	rateLimitRepo := storage.NewRateLimitRepository(postgres)
	bonusRepo := storage.NewBonusRepository(postgres)
	expertRepo := storage.NewExpertRequestRepository(postgres)
	termRepo := storage.NewTermRepository(postgres)
	scamCheckRepo := storage.NewScamCheckRepository(postgres)
	auditRepo := storage.NewAuditRepository(clickhouse)
	cacheService := storage.NewCacheService(redis, cfg.Cache.TTL)

	// External clients
	etherscan := adapter.NewEtherscanClient(&cfg.Etherscan)
	llm := adapter.NewOpenAIClient(&cfg.OpenAI)

	// Services
	logger.Info("Initializing services...")

	adminList := service.NewAdminList(cfg.Admin.Emails)
	resolver := service.NewEntitlementResolver(userRepo, adminList)
	quota := service.NewQuotaService(rateLimitRepo, bonusRepo, resolver, &cfg.Quota)
	analyzer := service.NewAnalyzer(etherscan, cfg.Etherscan.Timeout)
	assessments := service.NewAssessmentService(quota, analyzer, llm, termRepo, scamCheckRepo, cacheService, auditRepo)
	accounts := service.NewAccountService(resolver, quota, expertRepo, auditRepo, auditRepo)

	logger.Info("Services initialized")

	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    60 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		FreeRPS:         cfg.Server.FreeRPS,
		PremiumRPS:      cfg.Server.PremiumRPS,
	}

	server := api.NewServer(serverConfig, assessments, accounts, quota, resolver)
	server.RegisterStore("postgres", postgres)
	server.RegisterStore("clickhouse", clickhouse)
	server.RegisterStore("redis", redis)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started")

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
