package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"docrag/internal/errs"
)

// Config holds all configuration for the application.
type Config struct {
	DBPath      string
	SourcesFile string
	// Sources lists the document roots to ingest, from the *_ROOT variables
	// followed by the entries of SourcesFile.
	Sources []SourceConfig

	ChunkSize        int
	ChunkOverlap     int
	PDFParagraphSize int
	CodeExtensions   []string
	CodeStrategy     string
	CodeLineWindow   int

	EmbeddingBaseURL   string
	EmbeddingModelName string
	EmbeddingAPIKey    string
	EmbeddingBatchSize int
	EmbeddingRateLimit float64 // Requests per second, 0 disables limiting

	QdrantURL        string
	QdrantCollection string
	QdrantVectorSize int

	APIPort   string
	LogLevel  string
	LogFormat string

	IngestInterval    time.Duration
	IngestTimeout     time.Duration
	IngestParallelism int
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
// Invalid values are reported as errs.ErrConfiguration.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	// Check current directory first, then walk up to find project root
	_ = godotenv.Load() // Try current directory

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ { // Limit search depth
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break // Reached filesystem root
			}
			dir = parent
		}
	}

	cfg := &Config{
		DBPath:             getEnv("DB_PATH", "./data/docrag.db"),
		SourcesFile:        getEnv("SOURCES_FILE", ""),
		CodeExtensions:     splitList(getEnv("CODE_EXTENSIONS", ".cs")),
		CodeStrategy:       getEnv("CODE_CHUNK_STRATEGY", "lines"),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "granite-embedding-278m-multilingual"),
		EmbeddingAPIKey:    getEnv("EMBEDDING_API_KEY", ""),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "documents"),
		APIPort:            getEnv("API_PORT", "9000"),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	ints := []struct {
		key  string
		def  int
		min  int
		dest *int
	}{
		{"CHUNK_SIZE", 1000, 1, &cfg.ChunkSize},
		{"CHUNK_OVERLAP", 200, 0, &cfg.ChunkOverlap},
		{"PDF_PARAGRAPH_SIZE", 200, 1, &cfg.PDFParagraphSize},
		{"CODE_LINE_WINDOW", 200, 1, &cfg.CodeLineWindow},
		{"EMBEDDING_BATCH_SIZE", 32, 1, &cfg.EmbeddingBatchSize},
		{"INGEST_PARALLELISM", 2, 1, &cfg.IngestParallelism},
	}
	for _, v := range ints {
		n, err := getEnvInt(v.key, v.def)
		if err != nil {
			return nil, err
		}
		if n < v.min {
			return nil, &errs.ValidationError{Field: v.key, Message: fmt.Sprintf("must be at least %d", v.min)}
		}
		*v.dest = n
	}

	// Parse QDRANT_VECTOR_SIZE
	// Note: This must match the output vector size of the embeddings model.
	// If the vector size changes, the Qdrant collection must be recreated.
	vectorSizeStr := getEnv("QDRANT_VECTOR_SIZE", "")
	if vectorSizeStr == "" {
		return nil, &errs.ValidationError{Field: "QDRANT_VECTOR_SIZE", Message: "is required"}
	}
	vectorSize, err := strconv.Atoi(vectorSizeStr)
	if err != nil {
		return nil, &errs.ValidationError{Field: "QDRANT_VECTOR_SIZE", Message: "must be a valid integer"}
	}
	if vectorSize <= 0 {
		return nil, &errs.ValidationError{Field: "QDRANT_VECTOR_SIZE", Message: "must be greater than 0"}
	}
	cfg.QdrantVectorSize = vectorSize

	rateLimit, err := strconv.ParseFloat(getEnv("EMBEDDING_RATE_LIMIT", "0"), 64)
	if err != nil || rateLimit < 0 {
		return nil, &errs.ValidationError{Field: "EMBEDDING_RATE_LIMIT", Message: "must be a non-negative number"}
	}
	cfg.EmbeddingRateLimit = rateLimit

	if cfg.IngestInterval, err = getEnvDuration("INGEST_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.IngestTimeout, err = getEnvDuration("INGEST_TIMEOUT", 30*time.Minute); err != nil {
		return nil, err
	}

	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, &errs.ValidationError{Field: "CHUNK_OVERLAP", Message: "must be smaller than CHUNK_SIZE"}
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, &errs.ValidationError{Field: "LOG_FORMAT", Message: fmt.Sprintf("unknown format %q", cfg.LogFormat)}
	}

	cfg.Sources = cfg.rootSources()
	if cfg.SourcesFile != "" {
		fileSources, err := LoadSourcesFile(cfg.SourcesFile)
		if err != nil {
			return nil, err
		}
		cfg.Sources = append(cfg.Sources, fileSources...)
	}
	if len(cfg.Sources) == 0 {
		return nil, &errs.ValidationError{Field: "sources", Message: "set PDF_ROOT, CODE_ROOT, MARKDOWN_ROOT or SOURCES_FILE"}
	}
	if err := validateSources(cfg.Sources); err != nil {
		return nil, err
	}

	// Create ./data directory if it doesn't exist (for future DB file)
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// rootSources returns one source per *_ROOT variable that is set.
func (c *Config) rootSources() []SourceConfig {
	var out []SourceConfig
	if root := getEnv("PDF_ROOT", ""); root != "" {
		out = append(out, SourceConfig{Kind: "pdf", Root: root})
	}
	if root := getEnv("CODE_ROOT", ""); root != "" {
		out = append(out, SourceConfig{Kind: "code", Root: root})
	}
	if root := getEnv("MARKDOWN_ROOT", ""); root != "" {
		out = append(out, SourceConfig{Kind: "markdown", Root: root})
	}
	return out
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, &errs.ValidationError{Field: key, Message: "must be a valid integer"}
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0, &errs.ValidationError{Field: key, Message: "must be a non-negative duration such as 30s or 5m"}
	}
	return d, nil
}

// splitList splits a comma-separated list, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
