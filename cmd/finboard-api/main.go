// Package main is the entry point for the finboard-api server.
// Note: User signup, OAuth, and session minting are handled by the auth
// provider; this server verifies its HS256 session tokens.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/finboard/finboard-api/internal/config"
	"github.com/finboard/finboard-api/internal/database"
	"github.com/finboard/finboard-api/internal/http/handlers"
	"github.com/finboard/finboard-api/internal/http/mw"
	"github.com/finboard/finboard-api/internal/logging"
	"github.com/finboard/finboard-api/internal/repository"
	"github.com/finboard/finboard-api/internal/service"
	"github.com/finboard/finboard-api/internal/shutdown"
	"github.com/finboard/finboard-api/internal/version"
)

func main() {
	// Initialize logger with TTY detection and format control
	logger := logging.SetDefault()

	v := version.Get()
	logger.Info("starting finboard-api",
		"version", v.Version,
		"commit", v.Commit,
		"built", v.Date,
		"go_version", v.GoVersion,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := database.MigrateWithLogger(db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	applied, err := database.GetAppliedMigrations(db)
	if err != nil {
		logger.Warn("failed to read schema version", "error", err)
	} else if len(applied) > 0 {
		latest := applied[len(applied)-1]
		logger.Info("database schema ready",
			"schema_version", latest.Timestamp,
			"migrations_applied", len(applied),
		)
	}

	repos := repository.NewRepositories(db)

	services, err := service.NewServices(cfg, repos, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	// Idle monitor for scale-to-zero platforms. Health probes from the
	// platform must not count as activity.
	idleMonitor := shutdown.NewIdleMonitor(cfg.IdleTimeout, []string{"/healthz", "/readyz"}, logger)
	idleMonitor.Start()

	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(idleMonitor.Middleware)
	// AI chat calls block on provider inference, so they get an extended
	// deadline beyond the normal request timeout.
	router.Use(mw.Timeout(mw.TimeoutConfig{
		Default:          30 * time.Second,
		Extended:         cfg.AIChatTimeout + 10*time.Second,
		ExtendedPatterns: []string{"/ai/chat"},
	}))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Request size limit (1MB) covers the largest CSV import we accept
	router.Use(middleware.RequestSize(1 * 1024 * 1024))

	// Global rate limit by IP
	router.Use(httprate.LimitByIP(100, time.Minute))

	// Global concurrency throttle
	router.Use(middleware.Throttle(100))

	// Main API with OpenAPI docs
	humaConfig := huma.DefaultConfig("Finboard API", "1.0.0")
	humaConfig.Info.Description = "Backend for the finboard personal-finance desktop: credits, AI chat, transactions, billing."
	humaConfig.Servers = []*huma.Server{
		{URL: cfg.BaseURL, Description: "API Server"},
	}
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearerAuth": {
			Type:        "http",
			Scheme:      "bearer",
			Description: "Session token authentication. Include the JWT in the Authorization header as `Bearer <token>`.",
		},
	}
	api := humachi.New(router, humaConfig)

	// Config for hidden routes (K8s probes - no docs needed)
	hiddenConfig := huma.DefaultConfig("Finboard API", "1.0.0")
	hiddenConfig.DocsPath = ""
	hiddenConfig.OpenAPIPath = ""
	hiddenConfig.SchemasPath = ""
	hiddenAPI := humachi.New(router, hiddenConfig)

	// Config for protected routes (docs are served by the main API)
	protectedConfig := huma.DefaultConfig("Finboard API", "1.0.0")
	protectedConfig.Info.Description = humaConfig.Info.Description
	protectedConfig.Servers = humaConfig.Servers
	protectedConfig.DocsPath = ""
	protectedConfig.OpenAPIPath = ""
	protectedConfig.SchemasPath = ""

	// Health check (public, shown in docs)
	huma.Get(api, "/api/v1/health", handlers.HealthCheck)

	// Public credit package catalog (for the pricing page)
	billingHandler := handlers.NewBillingHandler(services.Billing)
	huma.Get(api, "/api/v1/billing/packages", billingHandler.ListPackages)

	// Kubernetes probes (hidden from docs)
	huma.Get(hiddenAPI, "/healthz", handlers.Livez)
	readyzHandler := handlers.NewReadyzHandler(db)
	huma.Get(hiddenAPI, "/readyz", readyzHandler.Readyz)

	// Stripe webhook (signature verified by handler, not user auth)
	if cfg.StripeWebhookSecret != "" {
		stripeWebhook := handlers.NewStripeWebhookHandler(cfg, services.Billing, logger)
		router.Post("/api/v1/webhooks/stripe", stripeWebhook.HandleWebhook)
		logger.Info("stripe webhook endpoint enabled")
	}

	// Protected routes
	router.Group(func(r chi.Router) {
		r.Use(mw.Auth(cfg.JWTSecret))

		protectedAPI := humachi.New(r, protectedConfig)

		// Credit ledger routes
		creditsHandler := handlers.NewCreditsHandler(services.Credit)
		huma.Get(protectedAPI, "/api/v1/credits", creditsHandler.GetBalance)
		huma.Post(protectedAPI, "/api/v1/credits/claim-daily", creditsHandler.ClaimDaily)
		huma.Get(protectedAPI, "/api/v1/credits/transactions", creditsHandler.ListTransactions)

		// Mortgage calculator
		mortgageHandler := handlers.NewMortgageHandler(services.Mortgage)
		huma.Post(protectedAPI, "/api/v1/mortgage/calculate", mortgageHandler.Calculate)

		// AI chat and provider settings
		aiHandler := handlers.NewAIHandler(services.Chat, services.AISettings)
		huma.Get(protectedAPI, "/api/v1/ai/providers", aiHandler.ListProviders)
		huma.Get(protectedAPI, "/api/v1/ai/status", aiHandler.ProviderStatus)
		huma.Post(protectedAPI, "/api/v1/ai/chat", aiHandler.Chat)
		huma.Get(protectedAPI, "/api/v1/ai/settings", aiHandler.GetSettings)
		huma.Put(protectedAPI, "/api/v1/ai/settings", aiHandler.UpdateSettings)
		huma.Delete(protectedAPI, "/api/v1/ai/settings", aiHandler.DeleteSettings)

		// Conversation history
		conversationsHandler := handlers.NewConversationsHandler(repos)
		huma.Get(protectedAPI, "/api/v1/ai/conversations", conversationsHandler.ListConversations)
		huma.Get(protectedAPI, "/api/v1/ai/conversations/{id}", conversationsHandler.GetConversation)
		huma.Put(protectedAPI, "/api/v1/ai/conversations/{id}", conversationsHandler.RenameConversation)
		huma.Delete(protectedAPI, "/api/v1/ai/conversations/{id}", conversationsHandler.DeleteConversation)

		// Financial transactions, categories, sources
		transactionsHandler := handlers.NewTransactionsHandler(repos)
		huma.Post(protectedAPI, "/api/v1/transactions", transactionsHandler.CreateTransaction)
		huma.Get(protectedAPI, "/api/v1/transactions", transactionsHandler.ListTransactions)
		huma.Put(protectedAPI, "/api/v1/transactions/{id}", transactionsHandler.UpdateTransaction)
		huma.Delete(protectedAPI, "/api/v1/transactions/{id}", transactionsHandler.DeleteTransaction)
		huma.Post(protectedAPI, "/api/v1/categories", transactionsHandler.CreateCategory)
		huma.Get(protectedAPI, "/api/v1/categories", transactionsHandler.ListCategories)
		huma.Put(protectedAPI, "/api/v1/categories/{id}", transactionsHandler.UpdateCategory)
		huma.Delete(protectedAPI, "/api/v1/categories/{id}", transactionsHandler.DeleteCategory)
		huma.Get(protectedAPI, "/api/v1/sources", transactionsHandler.ListSources)
		huma.Delete(protectedAPI, "/api/v1/sources/{id}", transactionsHandler.DeleteSource)

		// CSV import
		importHandler := handlers.NewImportHandler(services.Import)
		huma.Post(protectedAPI, "/api/v1/transactions/import", importHandler.Import)

		// Desktop session persistence
		desktopHandler := handlers.NewDesktopHandler(services.Desktop)
		huma.Get(protectedAPI, "/api/v1/desktop/session", desktopHandler.GetSession)
		huma.Put(protectedAPI, "/api/v1/desktop/session", desktopHandler.SaveSession)

		// Checkout (packages list is public above)
		huma.Post(protectedAPI, "/api/v1/billing/checkout", billingHandler.CreateCheckout)
	})

	// WriteTimeout must outlast the extended AI chat deadline or the
	// connection is cut mid-response.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AIChatTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on signal or idle timeout
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

		select {
		case <-sigChan:
			logger.Info("shutting down server", "reason", "signal")
		case <-idleMonitor.ShutdownChan():
			logger.Info("shutting down server", "reason", "idle")
		}

		idleMonitor.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	logger.Info("starting server", "port", cfg.Port, "base_url", cfg.BaseURL)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
