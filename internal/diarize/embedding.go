package diarize

import (
	"context"
	"fmt"

	"github.com/embervox/parakeetstream/internal/model"
	"github.com/embervox/parakeetstream/internal/tensor"
)

// paddedWaveformSamples is the embedding model's fixed input window: 10 s
// at 16 kHz.
const paddedWaveformSamples = 160000

// PadWaveform pads (with trailing zeros) or truncates samples to the
// embedding model's fixed window of 160,000 samples (10 s).
func PadWaveform(samples []float32) []float32 {
	if len(samples) >= paddedWaveformSamples {
		return samples[:paddedWaveformSamples]
	}
	out := make([]float32, paddedWaveformSamples)
	copy(out, samples)
	return out
}

// BuildMask constructs the [3,F] embedding mask from a [1,F,3] binarized
// powerset tensor: mask[s][f] = binarized[f][s] * clean[f], where
// clean[f] is 1 only when fewer than 2 speakers are simultaneously
// active in frame f (excluding overlapped regions).
func BuildMask(binarized *tensor.Tensor) ([][]float32, error) {
	shape := binarized.Shape()
	if len(shape) != 3 || shape[0] != 1 || shape[2] != 3 {
		return nil, fmt.Errorf("%w: binarized shape %v, want [1,F,3]", ErrInvalidInput, shape)
	}

	f := int(shape[1])
	data := binarized.Float32Data()
	mask := make([][]float32, 3)
	for s := range mask {
		mask[s] = make([]float32, f)
	}

	for frame := 0; frame < f; frame++ {
		active := data[frame*3] + data[frame*3+1] + data[frame*3+2]
		var clean float32
		if active < 2 {
			clean = 1
		}
		for s := 0; s < 3; s++ {
			mask[s][frame] = data[frame*3+s] * clean
		}
	}
	return mask, nil
}

// ActiveFrameCounts returns, per speaker channel, the number of frames
// where that channel's mask entry is active — gated against
// Config.MinActiveFrames before an embedding is considered valid.
func ActiveFrameCounts(mask [][]float32) []float64 {
	counts := make([]float64, len(mask))
	for s, row := range mask {
		for _, v := range row {
			if v != 0 {
				counts[s]++
			}
		}
	}
	return counts
}

// Embed calls the embedding network for one padded waveform replicated
// into a batch of 3 (one per speaker channel) with the given per-channel
// mask: waveform[3,160000], mask[3,F] -> embedding[3,256].
func Embed(ctx context.Context, embedding model.Predictor, waveform []float32, mask [][]float32) ([][]float32, error) {
	if len(mask) != 3 {
		return nil, fmt.Errorf("%w: mask has %d channels, want 3", ErrInvalidInput, len(mask))
	}
	f := len(mask[0])

	wav := make([]float32, 0, 3*len(waveform))
	for s := 0; s < 3; s++ {
		wav = append(wav, waveform...)
	}
	waveTensor, err := tensor.NewFloat32([]int64{3, int64(len(waveform))}, wav)
	if err != nil {
		return nil, err
	}

	maskFlat := make([]float32, 0, 3*f)
	for s := 0; s < 3; s++ {
		maskFlat = append(maskFlat, mask[s]...)
	}
	maskTensor, err := tensor.NewFloat32([]int64{3, int64(f)}, maskFlat)
	if err != nil {
		return nil, err
	}

	outputs, err := embedding.Predict(ctx, map[string]*tensor.Tensor{
		"waveform": waveTensor,
		"mask":     maskTensor,
	})
	if err != nil {
		return nil, err
	}
	embTensor, err := model.Output(outputs, "embedding")
	if err != nil {
		return nil, err
	}

	shape := embTensor.Shape()
	if len(shape) != 2 || shape[0] != 3 {
		return nil, fmt.Errorf("%w: embedding shape %v, want [3,D]", model.ErrInvalidShape, shape)
	}
	d := int(shape[1])
	data := embTensor.Float32Data()
	embeddings := make([][]float32, 3)
	for s := 0; s < 3; s++ {
		embeddings[s] = append([]float32(nil), data[s*d:(s+1)*d]...)
	}
	return embeddings, nil
}
