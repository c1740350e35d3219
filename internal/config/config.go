package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Embedding EmbeddingConfig
	Face      FaceConfig
	Storage   StorageConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins string // comma-separated list of extra CORS origins
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type EmbeddingConfig struct {
	URL     string        // face embedding server, defaults to http://localhost:9000
	Dim     int           // embedding dimension, defaults to 512
	Timeout time.Duration // per-call deadline for embedding extraction
}

type FaceConfig struct {
	MatchThreshold float64 // maximum cosine distance to accept a match
	TieEpsilon     float64 // two candidates closer than this are ambiguous
	IndexPath      string  // path to persist the HNSW index (empty = rebuild on startup)
}

type StorageConfig struct {
	DataDir       string        // root for uploaded records and face images
	MaxUploadSize int64         // cap on multipart payloads in bytes
	WriteTimeout  time.Duration // bound on blob writes
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envInt64 is envInt for byte-size style values.
func envInt64(key string, defaultVal int64) int64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envDuration reads an environment variable as seconds.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8000),
			AllowedOrigins: os.Getenv("WEB_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Embedding: EmbeddingConfig{
			URL:     envString("EMBEDDING_URL", "http://localhost:9000"),
			Dim:     envInt("EMBEDDING_DIM", 512),
			Timeout: envDuration("EMBEDDING_TIMEOUT_SECONDS", 15*time.Second),
		},
		Face: FaceConfig{
			MatchThreshold: envFloat("FACE_MATCH_THRESHOLD", 0.35),
			TieEpsilon:     envFloat("FACE_TIE_EPSILON", 1e-6),
			IndexPath:      os.Getenv("FACE_INDEX_PATH"),
		},
		Storage: StorageConfig{
			DataDir:       envString("DATA_DIR", "data"),
			MaxUploadSize: envInt64("MAX_UPLOAD_SIZE", 32<<20),
			WriteTimeout:  envDuration("STORAGE_WRITE_TIMEOUT_SECONDS", 10*time.Second),
		},
	}
}
