package config

import (
	"strings"
	"testing"

	"github.com/embervox/parakeetstream/internal/diarize"
)

func TestParseDiarizeConfigDefaultsWhenEmpty(t *testing.T) {
	cfg, err := ParseDiarizeConfig([]byte(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg != diarize.DefaultConfig() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestParseDiarizeConfigOverridesNamedFields(t *testing.T) {
	cfg, err := ParseDiarizeConfig([]byte(`{"clustering_threshold": 0.5, "num_clusters": 2}`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ClusteringThreshold != 0.5 || cfg.NumClusters != 2 {
		t.Fatalf("got %+v", cfg)
	}
	if cfg.MinSpeechDurationS != diarize.DefaultConfig().MinSpeechDurationS {
		t.Fatalf("expected untouched fields to keep their default, got %+v", cfg)
	}
}

func TestParseDiarizeConfigRejectsUnknownField(t *testing.T) {
	_, err := ParseDiarizeConfig([]byte(`{"clustering_threshold": 0.5, "bogus_option": 1}`))
	if err == nil {
		t.Fatal("expected an error for an unrecognized option")
	}
}

func TestParseDiarizeConfigRejectsOutOfRangeThreshold(t *testing.T) {
	_, err := ParseDiarizeConfig([]byte(`{"clustering_threshold": 1.5}`))
	if err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("expected an out-of-range error, got %v", err)
	}
}
