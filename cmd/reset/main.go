package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"docusight/internal/blobstore"
	"docusight/internal/config"
	"docusight/internal/repository/postgres"
	"docusight/internal/service/transfer"
	"docusight/internal/worker"

	"github.com/joho/godotenv"
)

// reset drops the environment's tables and deletes every uploaded blob.
func main() {
	keepBlobs := flag.Bool("keep-blobs", false, "Only drop tables, leave uploaded blobs in place")
	keepTables := flag.Bool("keep-tables", false, "Only delete uploaded blobs, leave tables in place")
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" {
		log.Fatalf("BLOCKED: reset cannot run in the production environment")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ctx := context.Background()

	if !*keepTables {
		pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pool.Close()

		tables := postgres.NewTableNames(cfg.TablePrefix)
		if err := postgres.DropSchema(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		logger.Info("tables dropped", "tables", tables.All())
	}

	if !*keepBlobs {
		blobs, err := blobstore.Setup(ctx, cfg, logger)
		if err != nil {
			log.Fatalf("Failed to set up blob store: %v", err)
		}
		xfer := transfer.NewService(blobs, worker.NewPool(1, logger), transfer.Config{UploadRoot: cfg.UploadRoot}, logger)

		removed, err := xfer.Purge(ctx)
		if err != nil {
			log.Fatalf("Failed to purge blobs: %v", err)
		}
		logger.Info("blobs purged", "upload_root", xfer.UploadRoot(), "removed", removed)
	}
}
