package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rentesla/mobile-backend/internal/clients/redis"
	"github.com/rentesla/mobile-backend/internal/db"
	"github.com/rentesla/mobile-backend/internal/handlers"
	"github.com/rentesla/mobile-backend/internal/logger"
	"github.com/rentesla/mobile-backend/internal/middleware"
	"github.com/rentesla/mobile-backend/internal/repos"
	"github.com/rentesla/mobile-backend/internal/server"
	"github.com/rentesla/mobile-backend/internal/services"
	"github.com/rentesla/mobile-backend/internal/sse"
	"github.com/rentesla/mobile-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	ocrConfig := services.LoadOCRConfig(log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	documentRepo := repos.NewDocumentRepo(thePG, log)
	consentRepo := repos.NewConsentRepo(thePG, log)
	notificationRepo := repos.NewNotificationRepo(thePG, log)

	// SSE
	log.Info("Setting up SSE hub now...")
	sseHub := sse.NewSSEHub(log)

	// Redis bus is optional; without it notifications stay node-local.
	var bus redis.NotificationBus
	if b, err := redis.NewNotificationBus(log); err != nil {
		log.Warn("Redis bus disabled", "error", err)
	} else {
		bus = b
		defer bus.Close()
		if err := bus.StartForwarder(ctx, func(m sse.SSEMessage) {
			sseHub.Broadcast(m)
		}); err != nil {
			log.Warn("Redis forwarder failed to start", "error", err)
		}
	}

	// Services
	log.Info("Setting up Services from main...")
	notifier := services.NewNotifier(thePG, log, notificationRepo, userRepo, sseHub, bus)
	var extractor services.TextExtractor
	if ocrConfig.MockEnabled {
		extractor = services.NewMockExtractor(log)
	} else {
		extractor, err = services.NewVisionExtractor(log)
		if err != nil {
			log.Fatal("Could not init Vision extractor", "error", err)
		}
	}
	aggregator := services.NewVerificationAggregator(thePG, log, userRepo, documentRepo, notifier)
	pipeline := services.NewDocumentPipeline(thePG, log, ocrConfig, userRepo, documentRepo, extractor, aggregator, notifier)
	pipeline.StartWorkers(ctx)
	adminReviewService := services.NewAdminReviewService(log, ocrConfig, userRepo, documentRepo, aggregator, notifier)
	pendingSummarySeconds := utils.GetEnvAsInt("PENDING_SUMMARY_INTERVAL_SECONDS", 3600, log)
	adminReviewService.StartPendingSummary(ctx, time.Duration(pendingSummarySeconds)*time.Second)
	authService := services.NewAuthService(thePG, log, userRepo, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second)
	userService := services.NewUserService(log, userRepo)
	consentService := services.NewConsentService(log, userRepo, consentRepo)
	notificationFeed := services.NewNotificationFeed(log, notificationRepo)

	// Handlers
	log.Info("Setting up handlers from main...")
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	documentHandler := handlers.NewDocumentHandler(pipeline, adminReviewService, aggregator, ocrConfig)
	consentHandler := handlers.NewConsentHandler(consentService)
	notificationHandler := handlers.NewNotificationHandler(notificationFeed)
	sseHandler := handlers.NewSSEHandler(sseHub)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AuthHandler:         authHandler,
		AuthMiddleware:      authMiddleware,
		UserHandler:         userHandler,
		DocumentHandler:     documentHandler,
		ConsentHandler:      consentHandler,
		NotificationHandler: notificationHandler,
		SSEHandler:          sseHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Error("Server failed", "error", err)
	}
}
