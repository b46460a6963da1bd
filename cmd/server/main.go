package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/theuszinp/chatbot/internal/aggregator"
	"github.com/theuszinp/chatbot/internal/api"
	"github.com/theuszinp/chatbot/internal/auth"
	"github.com/theuszinp/chatbot/internal/cache"
	"github.com/theuszinp/chatbot/internal/config"
	"github.com/theuszinp/chatbot/internal/engine"
	"github.com/theuszinp/chatbot/internal/metrics"
	"github.com/theuszinp/chatbot/internal/queue"
	"github.com/theuszinp/chatbot/internal/storage"
	"github.com/theuszinp/chatbot/internal/sweeper"
	"github.com/theuszinp/chatbot/internal/transport"
	"github.com/theuszinp/chatbot/internal/websocket"
	"github.com/theuszinp/chatbot/pkg/middleware"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Msg("starting chatbot server")

	// Initialize JWKS verification when an OIDC issuer is configured
	if issuer := os.Getenv("OIDC_ISSUER"); issuer != "" {
		if err := auth.InitJWKS(issuer); err != nil {
			log.Fatal().Err(err).Msg("failed to initialize JWKS")
		}
	}

	// Create context for services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create history store (DynamoDB local/aws, or noop)
	store, err := storage.NewStore(ctx, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create history store")
	}

	// Create outbound transport
	var tr transport.Transport
	if cfg.WebhookURL != "" {
		tr = transport.NewWebhookTransport(cfg.WebhookURL, log.Logger)
		log.Info().Str("url", cfg.WebhookURL).Msg("using webhook transport")
	} else {
		tr = transport.NewLogTransport(log.Logger)
		log.Warn().Msg("no webhook URL configured, outbound messages are logged only")
	}

	// Create WebSocket hub
	hub := websocket.NewHub(log.Logger)
	go hub.Run()

	// Create hot state and the routing engine
	registry := cache.NewRegistry()
	queues := queue.NewManager(registry, log.Logger)
	events := cache.NewEventLog()
	eng := engine.New(cfg, registry, queues, tr, store, hub, events, log.Logger)

	// Create timeout sweeper
	sweep := sweeper.NewSweeper(eng, cfg.TickInterval, log.Logger)
	go sweep.Start(ctx)

	// Create snapshot aggregator
	aggregatorService := aggregator.NewAggregator(registry, queues, hub, cfg.SnapshotInterval, log.Logger)
	go aggregatorService.Start(ctx)

	// Create handlers
	wsHandler := websocket.NewHandler(hub, cfg, log.Logger)
	receiver := api.NewReceiver(eng, log.Logger)
	dashboard := api.NewDashboardHandler(registry, queues, store, events, log.Logger)
	admin := api.NewAdminHandler(eng, store, log.Logger)

	// Create router
	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Register public routes (no auth required)
	r.Get("/health", healthHandler)
	r.Get("/metrics", metrics.Get().Handler())

	// Internal routes (no auth - for the message gateway)
	r.Route("/internal", func(r chi.Router) {
		r.Post("/message", receiver.HandleMessage)
		r.Get("/message/stats", receiver.GetStats)
	})

	// Add auth middleware for protected routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Get("/ws", wsHandler.ServeHTTP)

		r.Route("/api/dashboard", func(r chi.Router) {
			r.Get("/sessions", dashboard.GetSessions)
			r.Get("/attendants", dashboard.GetAttendants)
			r.Get("/queues", dashboard.GetQueues)
			r.Get("/services", dashboard.GetOpenServices)
			r.Get("/history", dashboard.GetHistory)
			r.Get("/history/{code}", dashboard.GetServiceByCode)
			r.Get("/evaluations/{id}", dashboard.GetEvaluations)
			r.Get("/events", dashboard.GetEvents)
		})

		r.Route("/api/admin", func(r chi.Router) {
			// Day-to-day floor operations
			r.Group(func(r chi.Router) {
				r.Use(api.RequireSupervisorOrAdmin)

				r.Put("/attendants/{id}/status", admin.SetAttendantStatus)
				r.Post("/sessions/close", admin.ForceClose)
				r.Post("/sessions/transfer", admin.ForceTransfer)
				r.Post("/sessions/reopen", admin.ReopenSession)
			})

			// Roster management and destructive resets
			r.Group(func(r chi.Router) {
				r.Use(api.RequireAdmin)

				r.Put("/attendants", admin.UpsertAttendant)
				r.Delete("/attendants/{id}", admin.RemoveAttendant)
				r.Post("/queues/wipe", admin.WipeQueues)
				r.Post("/memory/reset", admin.ResetMemory)
				r.Post("/history/wipe", admin.WipeDynamo)
			})
		})
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Stop sweeper and aggregator
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"chatbot"}`)
}
