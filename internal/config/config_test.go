package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.FrameInterval != 2*time.Second {
		t.Fatalf("Expected default frame interval 2s, got %v", cfg.FrameInterval)
	}
	if cfg.MaxPredictionTime != 25*time.Second {
		t.Fatalf("Expected default prediction timeout 25s, got %v", cfg.MaxPredictionTime)
	}
	if cfg.PoolSize != 2 {
		t.Fatalf("Expected default pool size 2, got %d", cfg.PoolSize)
	}
	if cfg.IdleTimeout != 60*time.Second {
		t.Fatalf("Expected default idle timeout 60s, got %v", cfg.IdleTimeout)
	}
	if cfg.AlertThreshold != 0.7 {
		t.Fatalf("Expected default alert threshold 0.7, got %f", cfg.AlertThreshold)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("FRAME_INTERVAL", "0.5")
	t.Setenv("POOL_SIZE", "8")
	t.Setenv("ALERT_THRESHOLD", "0.9")
	t.Setenv("FALLBACK_HEURISTIC", "true")

	cfg := LoadConfig()

	if cfg.FrameInterval != 500*time.Millisecond {
		t.Fatalf("Expected frame interval 500ms, got %v", cfg.FrameInterval)
	}
	if cfg.PoolSize != 8 {
		t.Fatalf("Expected pool size 8, got %d", cfg.PoolSize)
	}
	if cfg.AlertThreshold != 0.9 {
		t.Fatalf("Expected alert threshold 0.9, got %f", cfg.AlertThreshold)
	}
	if !cfg.FallbackHeuristic {
		t.Fatal("Expected fallback heuristic enabled")
	}
}

func TestPoolSizeFloor(t *testing.T) {
	t.Setenv("POOL_SIZE", "0")
	cfg := LoadConfig()
	if cfg.PoolSize != 1 {
		t.Fatalf("Pool size below 1 must be clamped to 1, got %d", cfg.PoolSize)
	}
}

func TestDSNForLogHidesPassword(t *testing.T) {
	t.Setenv("DB_PASSWORD", "supersecret")
	cfg := LoadConfig()

	safe := cfg.DSNForLog()
	for i := 0; i+len("supersecret") <= len(safe); i++ {
		if safe[i:i+len("supersecret")] == "supersecret" {
			t.Fatal("DSNForLog must not contain the password")
		}
	}
}
