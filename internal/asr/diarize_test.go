package asr

import (
	"context"
	"testing"

	"github.com/embervox/parakeetstream/internal/diarize"
	"github.com/embervox/parakeetstream/internal/tensor"
)

const diarizeFrames = 589

type fakeSegmentation struct{}

func (fakeSegmentation) Predict(context.Context, map[string]*tensor.Tensor) (map[string]*tensor.Tensor, error) {
	data := make([]float32, diarizeFrames*7)
	for frame := 0; frame < diarizeFrames; frame++ {
		data[frame*7+1] = 9 // class 1: speaker 0 throughout
	}
	segs, _ := tensor.NewFloat32([]int64{1, diarizeFrames, 7}, data)
	return map[string]*tensor.Tensor{"segments": segs}, nil
}

type fakeEmbedding struct{}

func (fakeEmbedding) Predict(context.Context, map[string]*tensor.Tensor) (map[string]*tensor.Tensor, error) {
	d := 8
	data := make([]float32, 3*d)
	for s := 0; s < 3; s++ {
		data[s*d+s] = 1
	}
	embTensor, _ := tensor.NewFloat32([]int64{3, int64(d)}, data)
	return map[string]*tensor.Tensor{"embedding": embTensor}, nil
}

func TestDiarizeSplitsIntoFixedWindows(t *testing.T) {
	pipeline := diarize.NewPipeline(diarize.DefaultConfig())
	samples := make([]float32, 250000) // spans two 160000-sample windows
	for i := range samples {
		samples[i] = 0.5
	}

	segs, err := Diarize(context.Background(), samples, pipeline, fakeSegmentation{}, fakeEmbedding{})
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 2 {
		t.Fatalf("expected one segment per 160000-sample window, got %d", len(segs))
	}
	if segs[0].SpeakerID != segs[1].SpeakerID {
		t.Fatalf("expected the same speaker reused across windows, got %q and %q", segs[0].SpeakerID, segs[1].SpeakerID)
	}
	for i := 1; i < len(segs); i++ {
		if segs[i].StartS < segs[i-1].StartS {
			t.Fatal("expected segments sorted by start time")
		}
	}
}

func TestDiarizeRejectsInvalidAudio(t *testing.T) {
	pipeline := diarize.NewPipeline(diarize.DefaultConfig())
	if _, err := Diarize(context.Background(), nil, pipeline, fakeSegmentation{}, fakeEmbedding{}); err == nil {
		t.Fatal("expected ErrInvalidAudio for empty input")
	}
}
