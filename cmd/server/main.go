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

	"mindsphere-backend/internal/config"
	"mindsphere-backend/internal/database"
	"mindsphere-backend/internal/handlers"
	"mindsphere-backend/internal/logger"
	"mindsphere-backend/internal/middleware"
	"mindsphere-backend/internal/repository"
	"mindsphere-backend/internal/router"
	"mindsphere-backend/internal/scheduler"
	"mindsphere-backend/internal/services"
	"mindsphere-backend/internal/websocket"
	"mindsphere-backend/internal/worker"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("starting MindSphere backend", "env", cfg.Env, "timezone", cfg.Location.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("postgres connection failed", "error", err)
	}
	defer pool.Close()

	// ──── Step 3: Initialize Redis Clients (queue, cache, realtime) ────
	queueWorkers := cfg.HydrateConcurrency + cfg.ReportConcurrency + cfg.NotificationConcurrency
	redisClients, err := database.NewRedisClients(ctx, cfg.RedisURL, queueWorkers)
	if err != nil {
		log.Fatal("redis connection failed", "error", err)
	}
	defer redisClients.Close()

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(ctx, pool, cfg.MigrationsDir, log); err != nil {
		log.Fatal("database migration failed", "error", err)
	}

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	contentRepo := repository.NewContentRepo(pool)
	planRepo := repository.NewPlanRepo(pool)
	reportRepo := repository.NewReportRepo(pool)
	learningSessionRepo := repository.NewLearningSessionRepo(pool)
	pushRepo := repository.NewPushSubscriptionRepo(pool)

	// ──── Step 5: Initialize External Providers ────
	var provider services.ContentProvider = services.NewMockProvider()
	if cfg.UseYouTube() {
		youtube, err := services.NewYouTubeProvider(ctx, cfg.YouTubeAPIKey)
		if err != nil {
			log.Fatal("youtube client initialization failed", "error", err)
		}
		provider = services.NewFallbackProvider(youtube, provider, log)
		log.Info("content provider: youtube with mock fallback")
	} else {
		log.Warn("content provider: mock (set CONTENT_PROVIDER=youtube and YOUTUBE_API_KEY for real content)")
	}

	var syllabus services.Syllabus = services.StaticSyllabus{}
	if cfg.UseGemini() {
		gemini, err := services.NewGeminiSyllabus(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiConcurrentReqs, log)
		if err != nil {
			log.Fatal("gemini client initialization failed", "error", err)
		}
		defer gemini.Close()
		syllabus = gemini
		log.Info("syllabus provider: gemini", "model", cfg.GeminiModel)
	}

	var pushSender services.PushSender = services.NewLogPushSender(log)
	if cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "" {
		pushSender = services.NewWebPushSender(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubject)
	} else {
		log.Warn("VAPID keys not configured, push notifications will only be logged")
	}

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	queue := worker.NewQueue(redisClients.Queue)
	realtime := services.NewRedisPublisher(redisClients.Cache, log)

	resolver := services.NewContentResolver(contentRepo, provider, log)
	planService := services.NewPlanService(planRepo, queue, syllabus, log)
	hydrator := services.NewPlanHydrator(planRepo, resolver, queue, realtime, log)
	reports := services.NewReportAggregator(reportRepo, learningSessionRepo, queue, cfg.Location, log)
	dispatcher := services.NewNotificationDispatcher(pushRepo, pushSender, realtime, log)
	gamification := services.NewGamificationService(userRepo, cfg.Location, log)
	sessionService := services.NewSessionService(learningSessionRepo, contentRepo, gamification, log)
	recommendations := services.NewRecommendationService(contentRepo, userRepo, redisClients.Cache, log)
	profileService := services.NewProfileService(userRepo, recommendations, log)
	authService := services.NewAuthService(userRepo, jwtAuth, log)

	// ──── Step 6: Start Job Worker Pool ────
	workerPool := worker.NewPool(
		redisClients.Queue,
		queue,
		hydrator,
		reports,
		dispatcher,
		worker.PoolConfig{
			Concurrency: map[string]int{
				worker.QueueHydratePlan:   cfg.HydrateConcurrency,
				worker.QueueReports:       cfg.ReportConcurrency,
				worker.QueueNotifications: cfg.NotificationConcurrency,
			},
			MaxAttempts: cfg.JobMaxAttempts,
		},
		log,
	)
	workerPool.Start()

	var weekly *scheduler.WeeklyReports
	if cfg.WeeklyReportsEnabled {
		weekly = scheduler.NewWeeklyReports(reports, cfg.WeeklyReportCron, cfg.Location, log)
		if err := weekly.Start(); err != nil {
			log.Fatal("weekly report scheduler failed to start", "error", err)
		}
	}

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.Realtime, jwtAuth, []string{cfg.FrontendURL}, log)
	hubCtx, stopHub := context.WithCancel(context.Background())
	go wsHub.Run(hubCtx)

	// ──── Step 8: Start HTTP Server ────
	r := router.New(jwtAuth, router.Handlers{
		Auth:          handlers.NewAuthHandler(authService),
		Profile:       handlers.NewProfileHandler(profileService),
		Content:       handlers.NewContentHandler(recommendations),
		Sessions:      handlers.NewSessionHandler(sessionService),
		Schedule:      handlers.NewScheduleHandler(planService),
		Reports:       handlers.NewReportHandler(reports),
		Notifications: handlers.NewNotificationHandler(dispatcher, cfg.VAPIDPublicKey),
		WebSocket:     wsHub.HandleWebSocket,
	}, redisClients.Cache, cfg.FrontendURL, log)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("MindSphere backend ready", "addr", server.Addr, "api", "/api/v1", "ws", "/api/v1/ws")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-serverErr:
		log.Error("server error", "error", err)
	}

	// Graceful shutdown: stop accepting requests, then drain background work.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}
	if weekly != nil {
		weekly.Stop()
	}
	workerPool.Stop()
	stopHub()
	log.Info("shutdown complete")
}
