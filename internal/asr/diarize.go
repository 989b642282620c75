package asr

import (
	"context"
	"sort"

	"github.com/embervox/parakeetstream/internal/diarize"
	"github.com/embervox/parakeetstream/internal/model"
	"github.com/embervox/parakeetstream/internal/stream"
)

// DiarizationResult is a slice of diarize.Segment sorted by start_s.
type DiarizationResult []diarize.Segment

const diarizeChunkSamples = 160000 // 10s at 16kHz, the segmentation network's fixed window.

// Diarize splits samples into the diarization pipeline's fixed 10 s
// windows and runs the powerset/embedding/clustering pipeline over each,
// accumulating segments across the whole utterance against one shared
// ClusterStore so a speaker recognized in an earlier window is reused
// in later ones.
func Diarize(ctx context.Context, samples []float32, pipeline *diarize.Pipeline, segmentation, embedding model.Predictor) (DiarizationResult, error) {
	if err := validateAudio(samples); err != nil {
		return nil, err
	}

	var out DiarizationResult
	for start := 0; start < len(samples); start += diarizeChunkSamples {
		end := start + diarizeChunkSamples
		if end > len(samples) {
			end = len(samples)
		}
		chunkOffsetS := float64(start) / stream.SampleRate
		segs, err := pipeline.Diarize(ctx, samples[start:end], chunkOffsetS, segmentation, embedding)
		if err != nil {
			return nil, err
		}
		out = append(out, segs...)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].StartS < out[j].StartS })
	return out, nil
}
