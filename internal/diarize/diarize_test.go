package diarize

import (
	"context"
	"math"
	"testing"

	"github.com/embervox/parakeetstream/internal/tensor"
)

// fakeSegmentation always reports every frame dominated by a single
// speaker (constructor argument), matching the F=589 frame count the
// segmentation network produces for a 10s/160000-sample window.
type fakeSegmentation struct{ speaker int }

const framesPerWindow = 589

func (f fakeSegmentation) Predict(context.Context, map[string]*tensor.Tensor) (map[string]*tensor.Tensor, error) {
	data := make([]float32, framesPerWindow*7)
	class := f.speaker + 1 // classes 1,2,3 correspond to singleton speakers 0,1,2
	for frame := 0; frame < framesPerWindow; frame++ {
		data[frame*7+class] = 9
	}
	segs, err := tensor.NewFloat32([]int64{1, framesPerWindow, 7}, data)
	if err != nil {
		return nil, err
	}
	return map[string]*tensor.Tensor{"segments": segs}, nil
}

// fakeEmbedding returns a fixed, mutually orthogonal basis embedding per
// speaker channel regardless of the mask, so the clustering test can
// reason about cosine distance directly.
type fakeEmbedding struct{}

func (fakeEmbedding) Predict(context.Context, map[string]*tensor.Tensor) (map[string]*tensor.Tensor, error) {
	d := 8
	data := make([]float32, 3*d)
	for s := 0; s < 3; s++ {
		data[s*d+s] = 1
	}
	embTensor, err := tensor.NewFloat32([]int64{3, int64(d)}, data)
	if err != nil {
		return nil, err
	}
	return map[string]*tensor.Tensor{"embedding": embTensor}, nil
}

func TestDiarizeTwoAlternatingSpeakersProduceTwoCentroids(t *testing.T) {
	pipeline := NewPipeline(DefaultConfig())

	segs0, err := pipeline.Diarize(context.Background(), make([]float32, 160000), 0, fakeSegmentation{speaker: 0}, fakeEmbedding{})
	if err != nil {
		t.Fatal(err)
	}
	segs1, err := pipeline.Diarize(context.Background(), make([]float32, 160000), 10, fakeSegmentation{speaker: 1}, fakeEmbedding{})
	if err != nil {
		t.Fatal(err)
	}

	if len(segs0) != 1 || len(segs1) != 1 {
		t.Fatalf("expected exactly one dominant-speaker segment per chunk, got %d and %d", len(segs0), len(segs1))
	}
	if segs0[0].SpeakerID == segs1[0].SpeakerID {
		t.Fatalf("expected distinct speakers across chunks, both got %q", segs0[0].SpeakerID)
	}

	centroids := pipeline.Store.Centroids()
	if len(centroids) != 2 {
		t.Fatalf("expected exactly 2 centroids, got %d", len(centroids))
	}
	dist := float64(tensor.CosineDistance(centroids[0].Current, centroids[1].Current))
	if dist <= 0.7 {
		t.Fatalf("expected cosine distance > 0.7 between distinct speakers, got %v", dist)
	}

	wantDuration := float64(framesPerWindow-1)*FrameStepS + FrameDurationS
	for i, segs := range [][]Segment{segs0, segs1} {
		got := float64(segs[0].EndS - segs[0].StartS)
		if math.Abs(got-wantDuration) > 1e-6 {
			t.Fatalf("chunk %d: segment duration %v, want ~%v", i, got, wantDuration)
		}
	}
}

func TestDiarizeEmptySegmentationProducesNoSegments(t *testing.T) {
	pipeline := NewPipeline(DefaultConfig())

	segs, err := pipeline.Diarize(context.Background(), make([]float32, 160000), 0, silenceSegmentation{}, fakeEmbedding{})
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 0 {
		t.Fatalf("expected no segments for all-silence input, got %d", len(segs))
	}
}

type silenceSegmentation struct{}

func (silenceSegmentation) Predict(context.Context, map[string]*tensor.Tensor) (map[string]*tensor.Tensor, error) {
	data := make([]float32, framesPerWindow*7)
	for frame := 0; frame < framesPerWindow; frame++ {
		data[frame*7] = 9 // class 0: silence, every frame
	}
	segs, err := tensor.NewFloat32([]int64{1, framesPerWindow, 7}, data)
	if err != nil {
		return nil, err
	}
	return map[string]*tensor.Tensor{"segments": segs}, nil
}
