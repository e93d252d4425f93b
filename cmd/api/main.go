package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/careloop/conditiontrack/internal/adapters/cache"
	"github.com/careloop/conditiontrack/internal/adapters/database"
	"github.com/careloop/conditiontrack/internal/adapters/events"
	"github.com/careloop/conditiontrack/internal/adapters/store"
	"github.com/careloop/conditiontrack/internal/api/handlers"
	"github.com/careloop/conditiontrack/internal/api/routes"
	"github.com/careloop/conditiontrack/internal/application/services"
	"github.com/careloop/conditiontrack/internal/domain/providers"
	"github.com/careloop/conditiontrack/internal/domain/repositories"
	"github.com/careloop/conditiontrack/internal/infrastructure/clients/openai"
	"github.com/careloop/conditiontrack/internal/infrastructure/clients/postgres"
	"github.com/careloop/conditiontrack/internal/infrastructure/clients/redis"
	"github.com/careloop/conditiontrack/internal/infrastructure/observability"
	"github.com/careloop/conditiontrack/pkg/config"
)

func main() {
	// .env is optional; real environments set variables directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Server.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// OpenTelemetry tracing if configured
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// Record store backend
	var repo repositories.ConditionRepository
	switch cfg.Store.Backend {
	case "postgres":
		pgClient, err := postgres.NewClient(&cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
		}
		defer pgClient.Close()
		repo = database.NewConditionAdapter(pgClient)
		log.Info().Msg("using postgres record store")
	case "memory":
		repo = store.NewMemoryAdapter()
		log.Info().Msg("using in-memory record store")
	default:
		fileStore, err := store.NewFileAdapter(cfg.Store.FilePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Store.FilePath).Msg("failed to open record store")
		}
		repo = fileStore
		log.Info().Str("path", cfg.Store.FilePath).Msg("using file record store")
	}

	// Redis backs both the cache and the cross-process event bus when
	// enabled; everything degrades to in-process equivalents without it.
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, falling back to in-process cache and bus")
		} else {
			defer redisClient.Close()
			log.Info().Msg("Redis client initialized")
		}
	}

	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	if redisClient != nil {
		cacheProvider = cache.NewRedisAdapter(redisClient)
		eventBus = events.NewRedisEventBus(redisClient)
	} else {
		cacheProvider = cache.NewMemoryAdapter()
		eventBus = events.NewMemoryEventBus()
	}

	// Local suggestion index from the reference dataset. A missing dataset
	// is a startup error, not a runtime one.
	index, err := services.NewSuggestionIndex(cfg.Store.DatasetPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Store.DatasetPath).Msg("failed to load suggestion dataset")
	}

	// Remote suggestions are optional: without an API key the coordinator
	// runs local-only.
	var suggestionProvider providers.SuggestionProvider
	if cfg.OpenAI.APIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY is not set; remote suggestions disabled")
	} else {
		openaiClient, err := openai.NewClient(&cfg.OpenAI)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize OpenAI client")
		} else {
			suggestionProvider = openaiClient
		}
	}

	coordinator := services.NewSuggestionCoordinator(index, suggestionProvider, cacheProvider, services.CoordinatorConfig{
		MinQueryLength:  cfg.Suggest.MinQueryLength,
		DebounceDelay:   cfg.Suggest.DebounceDelay,
		Limit:           cfg.Suggest.Limit,
		CacheTTLSeconds: cfg.Suggest.CacheTTLSeconds,
	})
	defer coordinator.Close()

	recordService := services.NewRecordService(repo, eventBus)

	conditionHandler := handlers.NewConditionHandler(recordService)
	suggestionHandler := handlers.NewSuggestionHandler(coordinator, index)
	sseHandler := handlers.NewSSEHandler(eventBus)

	router := routes.NewRouter(conditionHandler, suggestionHandler, sseHandler, metrics)
	handler := router.SetupRoutes()

	server := &http.Server{
		Addr:         cfg.Server.ServerAddr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE streams must not be cut off by a write deadline
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	if err := eventBus.Close(); err != nil {
		log.Error().Err(err).Msg("error closing event bus")
	}

	log.Info().Msg("server stopped")
}
