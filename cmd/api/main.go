package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bankfeed-dev/bankfeed/internal/ai"
	"github.com/bankfeed-dev/bankfeed/internal/api/handlers"
	"github.com/bankfeed-dev/bankfeed/internal/api/middleware"
	"github.com/bankfeed-dev/bankfeed/internal/config"
	"github.com/bankfeed-dev/bankfeed/internal/importer"
	"github.com/bankfeed-dev/bankfeed/internal/logger"
	"github.com/bankfeed-dev/bankfeed/internal/matcher"
	"github.com/bankfeed-dev/bankfeed/internal/notion"
	"github.com/bankfeed-dev/bankfeed/internal/progress"
	"github.com/bankfeed-dev/bankfeed/internal/store"
)

func main() {
	cfg := config.FromEnv()

	// Parse command-line flags
	var (
		port = flag.String("port", cfg.Port, "HTTP server port")
	)
	flag.Parse()

	// Initialize logger
	log := logger.NewWithLevel(cfg.LogLevel)
	ctx := logger.WithContext(context.Background(), log)

	// Relational cache: checksum dedup rows, aliases, AI usage ledger
	pg, err := store.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer pg.Close()

	if err := pg.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database schema")
	}

	// Record store
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	notionClient := notion.NewClient(cfg.NotionToken)
	catalog := notion.NewEntityCatalog(notionClient, cfg.NotionEntitiesDB)
	writer := notion.NewTransactionWriter(notionClient, cfg.NotionTransactionsDB)

	if err := catalog.Refresh(ctx); err != nil {
		// Matching degrades to AI-only until the first successful refresh.
		log.Warn().Err(err).Msg("Failed to load entity catalog on startup")
	}

	// AI fallback categorizer; without a credential it reports
	// NO_API_KEY and imports proceed with heuristic matching only.
	var completer ai.CompletionService
	if cfg.GeminiAPIKey != "" {
		completer = ai.NewGeminiCompleter(cfg.GeminiAPIKey, cfg.GeminiModel)
	} else {
		log.Warn().Msg("No GEMINI_API_KEY configured - AI categorization disabled")
	}
	categorizer := ai.NewCategorizer(completer, pg, cfg.Pricing, cfg.AIMaxAttempts)

	// Session progress tracking
	progressStore := progress.NewStore(cfg.SessionRetention)
	defer progressStore.Close()

	// Import orchestrator
	svc := importer.NewService(
		progressStore,
		pg,
		pg,
		catalog,
		matcher.New(cfg.MatchMinContainsLen),
		categorizer,
		writer,
		cfg.ImportBatchSize,
	)

	// Initialize handlers
	importHandler := handlers.NewImportHandler(svc, log)
	entitiesHandler := handlers.NewEntitiesHandler(catalog, log)

	// Create router
	mux := http.NewServeMux()

	mux.HandleFunc("/api/import/process", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			importHandler.ProcessImport(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/import/execute", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			importHandler.ExecuteImport(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/import/progress/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			sessionID := strings.TrimPrefix(r.URL.Path, "/api/import/progress/")
			if sessionID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Session ID is required")
				return
			}
			importHandler.GetProgress(w, r, sessionID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/entities", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			entitiesHandler.CreateEntity(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(
					middleware.Environment(mux),
				),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown. In-flight import sessions keep running until the
	// process exits; their sessions are in-memory anyway.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
