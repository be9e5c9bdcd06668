package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tryon-chat-backend/internal/clients"
	"tryon-chat-backend/internal/config"
	"tryon-chat-backend/internal/handlers"
	"tryon-chat-backend/internal/middleware"
	"tryon-chat-backend/internal/repository"
	"tryon-chat-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	// Connect to database
	db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	if err := repository.Migrate(context.Background(), db); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	quotaRepo := repository.NewQuotaRepository(db)

	// Initialize external clients
	twilioClient := clients.NewTwilioClient(cfg.Twilio)
	gradioClient := clients.NewGradioClient(cfg.TryOn.SpaceURL)
	imageStore, err := clients.NewS3ImageStore(context.Background(), cfg.AWS)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create image store")
	}

	// Initialize services
	limiter := services.NewRateLimiter(quotaRepo, cfg.RateLimit.MaxDailyRequests, cfg.RateLimit.Window())
	userService := services.NewUserService(userRepo)
	sessionService := services.NewSessionService(sessionRepo)
	tryOnService := services.NewTryOnService(
		twilioClient,
		gradioClient,
		imageStore,
		cfg.Server.PublicBaseURL,
		cfg.TryOn.Timeout(),
		cfg.TryOn.GarmentDescription,
		cfg.TryOn.DenoiseSteps,
		cfg.TryOn.Seed,
	)
	locks := services.NewIdentityLocks()
	hub := services.NewEventsHub()

	// Initialize handlers
	webhookHandler := handlers.NewWebhookHandler(limiter, userService, sessionService, tryOnService, twilioClient, locks, hub)
	limitsHandler := handlers.NewLimitsHandler(limiter, userService)
	staticHandler := handlers.NewStaticHandler(imageStore)
	wsHandler := handlers.NewWebSocketHandler(hub, cfg.JWT.Secret)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)

	// Routes
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Virtual try-on chatbot API"))
	})
	r.Post("/webhook", webhookHandler.Handle)
	r.Get("/static/{filename}", staticHandler.GetResult)

	// Operator routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
		r.Get("/user/{identity}/limits", limitsHandler.GetLimits)
	})

	// WebSocket route (token passed as query parameter)
	r.Get("/ws", wsHandler.HandleWebSocket)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // webhook requests block on the prediction call
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
