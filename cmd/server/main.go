package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"docusight/internal/auth"
	"docusight/internal/blobstore"
	"docusight/internal/capabilities"
	"docusight/internal/classifier"
	"docusight/internal/classifier/httpengine"
	"docusight/internal/classifier/openaiengine"
	"docusight/internal/config"
	"docusight/internal/handler"
	"docusight/internal/middleware"
	"docusight/internal/repository/postgres"
	postgresDocsys "docusight/internal/repository/postgres/docsystem"
	serviceClassification "docusight/internal/service/classification"
	serviceDocsys "docusight/internal/service/docsystem"
	"docusight/internal/service/docsystem/converter"
	"docusight/internal/service/transfer"
	"docusight/internal/worker"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	var logOut io.Writer = os.Stdout
	if cfg.LogDir != "" {
		logFile, err := config.SetupLogFile(cfg.LogDir, cfg.LogMaxFiles)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer logFile.Close()
		logOut = io.MultiWriter(os.Stdout, logFile)
	}

	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
		"blob_backend", cfg.BlobBackend,
		"classifier", cfg.ClassifierProvider+":"+cfg.ClassifierModel,
	)

	ctx := context.Background()

	// Token verification; without JWKS_URL only dev may trust the owner header
	var verifier auth.JWTVerifier
	if cfg.JWKSURL != "" {
		jwtVerifier, err := auth.NewJWTVerifier(ctx, cfg.JWKSURL, logger)
		if err != nil {
			log.Fatalf("Failed to create JWT verifier: %v", err)
		}
		defer jwtVerifier.Close()
		verifier = jwtVerifier
	} else if cfg.Environment != "dev" {
		log.Fatalf("JWKS_URL is required outside the dev environment")
	} else {
		logger.Warn("DEV MODE: trusting the " + middleware.OwnerHeader + " header (NEVER use in production!)")
	}

	// Create pgx connection pool
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)
	if err := postgres.EnsureSchema(ctx, pool, tables); err != nil {
		log.Fatalf("Failed to create schema: %v", err)
	}
	logger.Info("database ready", "max_conns", pool.Config().MaxConns, "min_conns", pool.Config().MinConns)

	// Create repositories
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	folderRepo := postgresDocsys.NewFolderRepository(repoConfig)
	docRepo := postgresDocsys.NewDocumentRepository(repoConfig)
	classRepo := postgresDocsys.NewClassificationRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool, logger)

	workers := worker.NewPool(cfg.WorkerPoolSize, logger)

	blobs, err := blobstore.Setup(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to set up blob store: %v", err)
	}
	transferService := transfer.NewService(blobs, workers, transfer.Config{
		UploadRoot:        cfg.UploadRoot,
		ChunkSize:         cfg.UploadChunkSize,
		RequestsPerSecond: cfg.BlobRPS,
		Burst:             cfg.BlobBurst,
	}, logger)

	// Classification engine and its model profile
	capabilityRegistry, err := capabilities.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to initialize capability registry: %v", err)
	}
	profile, err := capabilityRegistry.GetModelProfile(cfg.ClassifierProvider, cfg.ClassifierModel)
	if err != nil {
		logger.Warn("no profile for classifier model, using defaults",
			"provider", cfg.ClassifierProvider,
			"model", cfg.ClassifierModel,
			"error", err,
		)
		profile = capabilities.DefaultProfile(cfg.ClassifierModel)
	}
	engine, err := setupEngine(cfg, profile, logger)
	if err != nil {
		log.Fatalf("Failed to set up classifier: %v", err)
	}

	// Ingestion pipeline
	stager := serviceDocsys.NewStager(serviceDocsys.StagerConfig{
		Root:              cfg.StagingDir,
		ChunkSize:         cfg.ArchiveChunkSize,
		MaxArchiveBytes:   cfg.MaxArchiveBytes,
		MaxEntries:        cfg.MaxArchiveEntries,
		MaxExtractedBytes: cfg.MaxExtractedBytes,
	}, workers, logger)
	normalizer := serviceDocsys.NewNormalizer(converter.NewConverterRegistry(cfg.MaxExtractedBytes), workers, logger)
	treeBuilder := serviceDocsys.NewTreeBuilder(folderRepo, docRepo, cfg.MaxTreeDepth, logger)
	treeService := serviceDocsys.NewTreeService(folderRepo, docRepo, logger)
	ingestService := serviceDocsys.NewIngestService(
		stager,
		normalizer,
		treeBuilder,
		transferService,
		folderRepo,
		docRepo,
		treeService,
		txManager,
		logger,
	)

	classificationService := serviceClassification.NewService(
		folderRepo,
		docRepo,
		classRepo,
		txManager,
		transferService,
		stager,
		engine,
		profile,
		workers,
		serviceClassification.Config{BatchSize: cfg.ClassificationBatchSize},
		logger,
	)

	// Create handlers
	ingestHandler := handler.NewIngestHandler(ingestService, logger)
	treeHandler := handler.NewTreeHandler(treeService, logger)
	classificationHandler := handler.NewClassificationHandler(classificationService, logger)
	modelsHandler := handler.NewModelsHandler(capabilityRegistry, handler.ActiveModel{
		Provider: cfg.ClassifierProvider,
		Model:    cfg.ClassifierModel,
	}, logger)

	logger.Info("services initialized", "worker_pool_size", workers.Size(), "batch_size", profile.BatchSize(cfg.ClassificationBatchSize))

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handler.HealthCheck)

	mux.HandleFunc("POST /api/ingest", ingestHandler.Ingest)
	mux.HandleFunc("GET /api/folders/tree", treeHandler.GetTree)
	mux.HandleFunc("POST /api/classifications/folder", classificationHandler.ClassifyFolder)
	mux.HandleFunc("GET /api/models", modelsHandler.GetModels)

	// Build middleware chain
	// Order: CORS → Recovery → Auth → Routes
	var h http.Handler = mux
	h = middleware.Auth(verifier, logger, "/health")(h)
	h = middleware.Recovery(logger)(h)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.OwnerHeader},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  0, // archive uploads stream for as long as the client sends
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// setupEngine builds the configured classification engine
func setupEngine(cfg *config.Config, profile *capabilities.ModelProfile, logger *slog.Logger) (classifier.Engine, error) {
	switch cfg.ClassifierProvider {
	case capabilities.ProviderHTTP:
		url := cfg.ClassifierURL
		if url == "" {
			url = "https://api-inference.huggingface.co/models/" + cfg.ClassifierModel
		}
		return httpengine.New(httpengine.Config{
			URL:    url,
			APIKey: cfg.ClassifierAPIKey,
			Model:  cfg.ClassifierModel,
		}, logger), nil

	case capabilities.ProviderOpenAI:
		if cfg.ClassifierAPIKey == "" && cfg.ClassifierURL == "" {
			return nil, errors.New("CLASSIFIER_API_KEY is required for the openai provider")
		}
		return openaiengine.New(openaiengine.Config{
			APIKey:  cfg.ClassifierAPIKey,
			BaseURL: cfg.ClassifierURL,
			Model:   cfg.ClassifierModel,
			Labels:  profile.Vocabulary,
		}, logger), nil

	default:
		return nil, fmt.Errorf("unknown classifier provider %q", cfg.ClassifierProvider)
	}
}
