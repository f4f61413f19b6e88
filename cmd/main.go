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

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"

	"github.com/Dosada05/smk-league/audit"
	"github.com/Dosada05/smk-league/cache"
	"github.com/Dosada05/smk-league/config"
	"github.com/Dosada05/smk-league/db"
	"github.com/Dosada05/smk-league/handlers"
	"github.com/Dosada05/smk-league/repositories"
	api "github.com/Dosada05/smk-league/routes"
	"github.com/Dosada05/smk-league/scheduler"
	"github.com/Dosada05/smk-league/services"
	"github.com/Dosada05/smk-league/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	var uploader storage.FileUploader
	if cfg.R2Configured() {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		uploader = storage.NewDisabledUploader()
		logger.Warn("object storage credentials missing, avatar upload disabled")
	}

	// Repositories
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	competitorRepo := repositories.NewPostgresCompetitorRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	reportRepo := repositories.NewPostgresMatchReportRepository(dbConn)
	recordRepo := repositories.NewPostgresQualificationRecordRepository(dbConn)
	auditRepo := repositories.NewPostgresAuditRepository(dbConn)
	logger.Info("repositories initialized")

	// Shared infrastructure
	txRunner := services.NewDBTxRunner(dbConn)
	auditor := audit.NewRecorder(auditRepo, logger)
	standingsCache := cache.NewStandings(cfg.StandingsCacheTTL)

	// Services
	authService := services.NewAuthService(userRepo, competitorRepo, auditor, logger)
	competitorService := services.NewCompetitorService(competitorRepo, uploader, auditor, logger)
	tournamentService := services.NewTournamentService(tournamentRepo, auditor, logger)
	standingsService := services.NewStandingsService(matchRepo, recordRepo, competitorRepo, tournamentRepo, standingsCache, logger)
	matchService := services.NewMatchService(matchRepo, tournamentRepo, reportRepo, standingsService, txRunner, auditor, logger)
	reportService := services.NewReportService(matchRepo, reportRepo, matchService, txRunner, auditor, logger, cfg.ReportEscalationTTL)
	bracketService := services.NewBracketService(matchRepo, tournamentRepo, recordRepo, competitorRepo, txRunner, auditor, logger)
	logger.Info("services initialized")

	// Background jobs
	jobs := scheduler.New(logger, 2*time.Minute)
	if err := jobs.Add(cfg.StatusCronSpec, "tournament_status_transitions", tournamentService.AutoUpdateStatusesByDates); err != nil {
		logger.Error("failed to register status transition job", slog.Any("error", err))
		os.Exit(1)
	}
	if err := jobs.Add(cfg.StaleSweepCronSpec, "stale_report_sweep", func(ctx context.Context) error {
		_, err := reportService.EscalateStale(ctx)
		return err
	}); err != nil {
		logger.Error("failed to register stale report sweep", slog.Any("error", err))
		os.Exit(1)
	}
	jobs.Start()
	defer jobs.Stop()
	logger.Info("scheduler started",
		slog.String("status_spec", cfg.StatusCronSpec),
		slog.String("stale_sweep_spec", cfg.StaleSweepCronSpec))

	// HTTP surface
	authHandler := handlers.NewAuthHandler(authService, cfg.JWTSecretKey, cfg.TokenTTL)
	tournamentHandler := handlers.NewTournamentHandler(tournamentService, matchService, standingsService, bracketService)
	matchHandler := handlers.NewMatchHandler(matchService, reportService)
	competitorHandler := handlers.NewCompetitorHandler(competitorService)
	adminHandler := handlers.NewAdminHandler(reportService, auditRepo)

	router := chi.NewRouter()
	api.SetupRoutes(router, cfg.JWTSecretKey, authHandler, tournamentHandler, matchHandler, competitorHandler, adminHandler)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
