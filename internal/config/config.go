package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	CORSOrigins string
	TablePrefix string
	JWKSURL     string // Empty in dev means the X-Owner-ID header is trusted

	// Staging and ingestion
	StagingDir        string
	ArchiveChunkSize  int
	MaxArchiveBytes   int64
	MaxArchiveEntries int
	MaxExtractedBytes int64
	MaxTreeDepth      int

	// Blob store
	BlobBackend     string // "s3" or "local"
	LocalBlobDir    string
	UploadRoot      string
	UploadChunkSize int
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3Region        string
	S3UseSSL        bool
	BlobRPS         float64
	BlobBurst       int

	// Classification engine
	ClassifierProvider      string // "http" or "openai"
	ClassifierModel         string
	ClassifierURL           string
	ClassifierAPIKey        string
	ClassificationBatchSize int

	WorkerPoolSize int

	// Logging
	LogDir      string
	LogMaxFiles int
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		DatabaseURL: getEnv("DATABASE_URL", ""),
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix: getTablePrefix(env),
		JWKSURL:     getEnv("JWKS_URL", ""),

		StagingDir:        getEnv("STAGING_DIR", os.TempDir()),
		ArchiveChunkSize:  getEnvInt("ARCHIVE_CHUNK_SIZE", DefaultArchiveChunkSize),
		MaxArchiveBytes:   getEnvInt64("MAX_ARCHIVE_BYTES", DefaultMaxArchiveBytes),
		MaxArchiveEntries: getEnvInt("MAX_ARCHIVE_ENTRIES", DefaultMaxArchiveEntries),
		MaxExtractedBytes: getEnvInt64("MAX_EXTRACTED_BYTES", DefaultMaxExtractedBytes),
		MaxTreeDepth:      getEnvInt("MAX_TREE_DEPTH", DefaultMaxTreeDepth),

		BlobBackend:     getEnv("BLOB_BACKEND", "local"),
		LocalBlobDir:    getEnv("LOCAL_BLOB_DIR", "./data/blobs"),
		UploadRoot:      strings.Trim(getEnv("UPLOAD_ROOT", "uploads"), "/"),
		UploadChunkSize: getEnvInt("UPLOAD_CHUNK_SIZE", DefaultUploadChunkSize),
		S3Endpoint:      getEnv("S3_ENDPOINT", "localhost:9000"),
		S3AccessKey:     getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:     getEnv("S3_SECRET_KEY", ""),
		S3Bucket:        getEnv("S3_BUCKET", "docusight"),
		S3Region:        getEnv("S3_REGION", ""),
		S3UseSSL:        getEnv("S3_USE_SSL", "false") == "true",
		BlobRPS:         getEnvFloat("BLOB_RPS", 20),
		BlobBurst:       getEnvInt("BLOB_BURST", 10),

		ClassifierProvider:      getEnv("CLASSIFIER_PROVIDER", "http"),
		ClassifierModel:         getEnv("CLASSIFIER_MODEL", "nlptown/bert-base-multilingual-uncased-sentiment"),
		ClassifierURL:           getEnv("CLASSIFIER_URL", ""),
		ClassifierAPIKey:        getEnv("CLASSIFIER_API_KEY", ""),
		ClassificationBatchSize: getEnvInt("CLASSIFICATION_BATCH_SIZE", DefaultClassificationBatchSize),

		WorkerPoolSize: getEnvInt("WORKER_POOL_SIZE", DefaultWorkerPoolSize),

		LogDir:      getEnv("LOG_DIR", ""),
		LogMaxFiles: getEnvInt("LOG_MAX_FILES", 10),
	}
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt falls back to the default when the variable is unset, malformed or not positive
func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

func getEnvInt64(key string, defaultValue int64) int64 {
	n, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || f <= 0 {
		return defaultValue
	}
	return f
}
