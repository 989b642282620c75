package config

import (
	"testing"

	"github.com/embervox/parakeetstream/internal/logging"
)

func TestLoadAppliesFlagOverrides(t *testing.T) {
	cfg, err := Load([]string{"-addr", ":9999", "-log-level", "verbose", "-diarize-threshold", "0.6"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":9999" {
		t.Fatalf("got addr %q, want :9999", cfg.Addr)
	}
	if cfg.LogLevel != logging.LevelVerbose {
		t.Fatalf("got log level %v, want verbose", cfg.LogLevel)
	}
	if cfg.Diarize.ClusteringThreshold != 0.6 {
		t.Fatalf("got threshold %v, want 0.6", cfg.Diarize.ClusteringThreshold)
	}
}

func TestLoadDefaultsCacheDirWhenUnset(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CacheDir == "" {
		t.Fatal("expected a non-empty default cache directory")
	}
}
