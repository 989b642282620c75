package diarize

import (
	"context"
	"errors"
	"sort"

	"github.com/embervox/parakeetstream/internal/model"
	"github.com/embervox/parakeetstream/internal/tensor"
)

// Segment is one speaker-attributed span of the input.
// Invariant: EndS > StartS.
type Segment struct {
	SpeakerID  string
	StartS     float32
	EndS       float32
	Confidence float32
}

// Pipeline ties segmentation, masked embedding extraction, and online
// clustering into one frame-to-segment pipeline.
type Pipeline struct {
	Store *ClusterStore
	Cfg   Config
}

// NewPipeline returns a Pipeline with a fresh ClusterStore.
func NewPipeline(cfg Config) *Pipeline {
	return &Pipeline{Store: NewClusterStore(cfg), Cfg: cfg}
}

// Diarize converts one chunk of 16 kHz mono samples into speaker
// segments. chunkOffsetS is the chunk's start time within the overall
// recording, so sliding-window timestamps remain correct across chunks.
func (p *Pipeline) Diarize(ctx context.Context, samples []float32, chunkOffsetS float64, seg, emb model.Predictor) ([]Segment, error) {
	waveform := PadWaveform(samples)
	audioTensor, err := tensor.NewFloat32([]int64{1, 1, int64(len(waveform))}, waveform)
	if err != nil {
		return nil, err
	}

	segOutputs, err := seg.Predict(ctx, map[string]*tensor.Tensor{"audio": audioTensor})
	if err != nil {
		return nil, err
	}
	segments, err := model.Output(segOutputs, "segments")
	if err != nil {
		return nil, err
	}

	binarized, err := Binarize(segments)
	if err != nil {
		return nil, err
	}
	mask, err := BuildMask(binarized)
	if err != nil {
		return nil, err
	}

	runs := dominantSpeakerRuns(binarized, chunkOffsetS)
	if len(runs) == 0 {
		return nil, nil
	}

	counts := ActiveFrameCounts(mask)
	embeddings, err := Embed(ctx, emb, waveform, mask)
	if err != nil {
		return nil, err
	}

	var out []Segment
	for _, run := range runs {
		if run.speaker < 0 || counts[run.speaker] <= p.Cfg.MinActiveFrames {
			continue
		}

		duration := run.endS - run.startS
		c, _, distance, err := p.Store.Assign(embeddings[run.speaker], duration, "")
		if err != nil {
			if errors.Is(err, ErrInvalidEmbedding) {
				continue
			}
			return nil, err
		}
		if c == nil {
			continue
		}

		out = append(out, Segment{
			SpeakerID:  c.ID,
			StartS:     float32(run.startS),
			EndS:       float32(run.endS),
			Confidence: float32(1 - distance),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].StartS < out[j].StartS })
	return out, nil
}
