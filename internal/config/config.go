// Package config resolves parakeetstream's flag/env/.env configuration
// surface into one reusable loader shared by the server and client
// binaries.
package config

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/embervox/parakeetstream/internal/diarize"
	"github.com/embervox/parakeetstream/internal/logging"
)

// Server holds parakeetstream-server's resolved configuration.
type Server struct {
	Addr       string
	CacheDir   string
	OrtLibPath string
	Token      string
	LogLevel   logging.Level
	Diarize    diarize.Config
}

// Load reads .env (if present) and parses flags over args. Only the cache
// directory falls back to environment variables when its flag is empty
// (flag -> PARAKEETSTREAM_CACHE_DIR -> XDG_CACHE_HOME ->
// ~/.cache/parakeetstream); other settings come from flags alone.
func Load(args []string) (*Server, error) {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("parakeetstream-server", flag.ContinueOnError)
	addr := fs.String("addr", ":9765", "listen address")
	cacheDir := fs.String("cache", "", "cache directory for models (default: ~/.cache/parakeetstream)")
	ortLib := fs.String("ort", "", "ONNX Runtime library path (default: auto-detect)")
	token := fs.String("token", "", "require Bearer token for authentication")
	logLevel := fs.String("log-level", "normal", "log level: off, normal, verbose")

	clusteringThreshold := fs.Float64("diarize-threshold", diarize.DefaultConfig().ClusteringThreshold, "diarization clustering cosine-distance threshold")
	minSpeechDuration := fs.Float64("diarize-min-speech-s", diarize.DefaultConfig().MinSpeechDurationS, "minimum segment duration to create a new speaker centroid")
	minSilenceGap := fs.Float64("diarize-min-silence-gap-s", diarize.DefaultConfig().MinSilenceGapS, "minimum silence gap between segments")
	numClusters := fs.Int("diarize-num-clusters", diarize.DefaultConfig().NumClusters, "fixed speaker count, or -1 for automatic")
	minActiveFrames := fs.Float64("diarize-min-active-frames", diarize.DefaultConfig().MinActiveFrames, "minimum unmasked frames for a valid embedding")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cache := *cacheDir
	if cache == "" {
		cache = resolveCacheDir()
	}

	return &Server{
		Addr:       *addr,
		CacheDir:   cache,
		OrtLibPath: *ortLib,
		Token:      *token,
		LogLevel:   logging.ParseLevel(*logLevel),
		Diarize: diarize.Config{
			ClusteringThreshold: *clusteringThreshold,
			MinSpeechDurationS:  *minSpeechDuration,
			MinSilenceGapS:      *minSilenceGap,
			NumClusters:         *numClusters,
			MinActiveFrames:     *minActiveFrames,
		},
	}, nil
}

func resolveCacheDir() string {
	if d := os.Getenv("PARAKEETSTREAM_CACHE_DIR"); d != "" {
		return d
	}
	if d := os.Getenv("XDG_CACHE_HOME"); d != "" {
		return filepath.Join(d, "parakeetstream")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "parakeetstream")
}
