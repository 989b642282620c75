package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/embervox/parakeetstream/internal/diarize"
)

// diarizeOptions mirrors diarize.Config's JSON-facing field names.
type diarizeOptions struct {
	ClusteringThreshold *float64 `json:"clustering_threshold"`
	MinSpeechDurationS  *float64 `json:"min_speech_duration_s"`
	MinSilenceGapS      *float64 `json:"min_silence_gap_s"`
	NumClusters         *int     `json:"num_clusters"`
	MinActiveFrames     *float64 `json:"min_active_frames"`
}

// ParseDiarizeConfig decodes a JSON diarizer configuration, starting
// from diarize.DefaultConfig() and overriding only the fields present,
// rejecting any unrecognized option.
func ParseDiarizeConfig(data []byte) (diarize.Config, error) {
	cfg := diarize.DefaultConfig()

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var opts diarizeOptions
	if err := dec.Decode(&opts); err != nil {
		return diarize.Config{}, fmt.Errorf("config: invalid diarizer options: %w", err)
	}

	if opts.ClusteringThreshold != nil {
		if *opts.ClusteringThreshold < 0 || *opts.ClusteringThreshold > 1 {
			return diarize.Config{}, fmt.Errorf("config: clustering_threshold %v out of range [0,1]", *opts.ClusteringThreshold)
		}
		cfg.ClusteringThreshold = *opts.ClusteringThreshold
	}
	if opts.MinSpeechDurationS != nil {
		cfg.MinSpeechDurationS = *opts.MinSpeechDurationS
	}
	if opts.MinSilenceGapS != nil {
		cfg.MinSilenceGapS = *opts.MinSilenceGapS
	}
	if opts.NumClusters != nil {
		cfg.NumClusters = *opts.NumClusters
	}
	if opts.MinActiveFrames != nil {
		cfg.MinActiveFrames = *opts.MinActiveFrames
	}
	return cfg, nil
}
