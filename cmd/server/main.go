// Grounded - Multi-Persona Analysis Server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/groundedhq/grounded/internal/agent"
	"github.com/groundedhq/grounded/internal/analysis"
	"github.com/groundedhq/grounded/internal/api"
	"github.com/groundedhq/grounded/internal/auth"
	"github.com/groundedhq/grounded/internal/config"
	"github.com/groundedhq/grounded/internal/janitor"
	"github.com/groundedhq/grounded/internal/llm"
	"github.com/groundedhq/grounded/internal/middleware"
	"github.com/groundedhq/grounded/internal/persona"
	"github.com/groundedhq/grounded/internal/store"
	"github.com/groundedhq/grounded/internal/usage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "personas", persona.Count())

	// Backend selection happens once here: durable SQLite when it opens,
	// otherwise the in-process store for this process's whole lifetime.
	// Nothing downstream branches on which one was picked.
	var repo store.Repository
	sqliteRepo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Warn("Durable store unavailable, falling back to in-process store", "error", err)
		repo = store.NewMemory()
	} else {
		repo = sqliteRepo
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Store health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Store ready")

	generator, err := llm.NewAnthropicClient(llm.AnthropicConfig{
		APIKey:         cfg.AnthropicAPIKey,
		Model:          cfg.AnthropicModel,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		slog.Error("Failed to initialize model client", "error", err)
		os.Exit(1)
	}

	// Initialize services.
	caller := agent.NewCaller(generator, logger)
	orchestrator := agent.NewOrchestrator(caller)
	synthesizer := agent.NewSynthesizer(generator, logger)
	tracker := usage.NewTracker(repo)
	authSvc := auth.NewService(repo)
	pipeline := analysis.NewPipeline(orchestrator, synthesizer, repo, tracker, logger)

	handler := api.NewHandler(pipeline, repo, tracker, authSvc, !cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(corsOrigins(cfg)))
	r.Use(auth.Middleware(authSvc))

	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // fan-out plus synthesis can be slow
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	janitor.Start(ctx, repo)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

func corsOrigins(cfg *config.Config) []string {
	if cfg.FrontendURL != "" {
		return []string{cfg.FrontendURL}
	}
	return []string{"*"}
}
