package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Server.Port != 8000 {
		t.Errorf("expected default port 8000, got %d", cfg.Server.Port)
	}
	if cfg.Embedding.Dim != 512 {
		t.Errorf("expected default embedding dim 512, got %d", cfg.Embedding.Dim)
	}
	if cfg.Face.MatchThreshold != 0.35 {
		t.Errorf("expected default match threshold 0.35, got %f", cfg.Face.MatchThreshold)
	}
	if cfg.Storage.MaxUploadSize != 32<<20 {
		t.Errorf("expected default max upload size 32MiB, got %d", cfg.Storage.MaxUploadSize)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WEB_PORT", "9999")
	t.Setenv("EMBEDDING_DIM", "768")
	t.Setenv("FACE_MATCH_THRESHOLD", "0.5")
	t.Setenv("EMBEDDING_TIMEOUT_SECONDS", "30")

	cfg := Load()

	if cfg.Server.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Embedding.Dim != 768 {
		t.Errorf("expected embedding dim 768, got %d", cfg.Embedding.Dim)
	}
	if cfg.Face.MatchThreshold != 0.5 {
		t.Errorf("expected match threshold 0.5, got %f", cfg.Face.MatchThreshold)
	}
	if cfg.Embedding.Timeout != 30*time.Second {
		t.Errorf("expected embedding timeout 30s, got %v", cfg.Embedding.Timeout)
	}
}

func TestEnvInvalidValuesFallBack(t *testing.T) {
	t.Setenv("WEB_PORT", "not-a-number")
	t.Setenv("FACE_MATCH_THRESHOLD", "-1")

	cfg := Load()

	if cfg.Server.Port != 8000 {
		t.Errorf("expected fallback port 8000, got %d", cfg.Server.Port)
	}
	if cfg.Face.MatchThreshold != 0.35 {
		t.Errorf("expected fallback threshold 0.35, got %f", cfg.Face.MatchThreshold)
	}
}
