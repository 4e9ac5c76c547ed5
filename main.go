package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messenger-service/internal/auth"
	"messenger-service/internal/config"
	"messenger-service/internal/db"
	"messenger-service/internal/events"
	"messenger-service/internal/handlers"
	"messenger-service/internal/logger"
	"messenger-service/internal/middleware"
	"messenger-service/internal/notify"
	"messenger-service/internal/observability"
	"messenger-service/internal/presence"
	"messenger-service/internal/rabbitmq"
	"messenger-service/internal/repositories"
	"messenger-service/internal/session"
	"messenger-service/internal/storage"
	"messenger-service/internal/telemetry"
	"messenger-service/internal/ws"
)

func main() {
	cfg, err := config.Load(os.Getenv("MESSENGER_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if err := logger.Setup(cfg.Logger); err != nil {
		log.Fatal().Err(err).Msg("failed to set up logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Tracing.Endpoint, cfg.Tracing.Environment)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up tracing")
	}
	if shutdownTracing != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("tracer shutdown failed")
			}
		}()
	}

	database, err := db.Connect(cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to db")
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, "audit.messenger", "messenger-service", cfg.Tracing.Environment)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	profileRepo := repositories.NewProfileRepo(database)
	requestRepo := repositories.NewRequestRepo(database)
	friendRepo := repositories.NewFriendRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	broker := events.NewBroker()
	tracker := presence.NewTracker(profileRepo, broker, redisClient)
	if redisClient != nil {
		go tracker.Relay(ctx)
	}

	store, err := storage.NewDiskStore(cfg.Storage.Dir, cfg.Storage.PublicBaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up object store")
	}

	authService := auth.NewService(profileRepo, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	hub := ws.NewHub()
	notifier := notify.NewNotifier(hub)

	sessionCfg := session.Config{
		SeenRetention: cfg.Chat.SeenRetention,
		TypingDecay:   cfg.Chat.TypingDecay,
		DedupeWindow:  cfg.Chat.DedupeWindow,
	}
	sessionDeps := session.Deps{
		Messages: messageRepo,
		Profiles: profileRepo,
		Broker:   broker,
	}

	authHandler := handlers.NewAuthHandler(authService, profileRepo, audit)
	profileHandler := handlers.NewProfileHandler(profileRepo, store)
	friendHandler := handlers.NewFriendHandler(friendRepo, requestRepo, profileRepo, messageRepo, broker, audit)
	messageHandler := handlers.NewMessageHandler(messageRepo, friendRepo, broker)
	feedHandler := ws.NewFeedHandler(hub, sessionCfg, sessionDeps, tracker, notifier)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("messenger-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(authService)

	router.POST("/auth/signup", authHandler.SignUp)
	router.POST("/auth/login", authHandler.Login)
	router.GET("/auth/session", authMiddleware, authHandler.Session)

	router.POST("/profile", authMiddleware, profileHandler.Setup)
	router.GET("/profile", authMiddleware, profileHandler.Get)
	router.PUT("/profile", authMiddleware, profileHandler.Update)
	router.POST("/profile/avatar", authMiddleware, profileHandler.UploadAvatar)

	router.GET("/friends", authMiddleware, friendHandler.List)
	router.GET("/friends/requests", authMiddleware, friendHandler.ListRequests)
	router.POST("/friends/requests", authMiddleware, friendHandler.Send)
	router.POST("/friends/requests/:request_id/accept", authMiddleware, friendHandler.Accept)
	router.POST("/friends/requests/:request_id/reject", authMiddleware, friendHandler.Reject)

	router.GET("/messages/:friend_id", authMiddleware, messageHandler.History)
	router.POST("/messages/:friend_id", authMiddleware, messageHandler.Send)

	router.GET("/ws/feed", authMiddleware, feedHandler.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.Static("/storage", store.Root())
	handlers.RegisterDebugRoutes(router, audit, broker, cfg.Tracing.Environment != "production")

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("messenger service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
