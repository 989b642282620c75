package asr

import (
	"context"
	"testing"

	"github.com/embervox/parakeetstream/internal/model"
	"github.com/embervox/parakeetstream/internal/tdt"
	"github.com/embervox/parakeetstream/internal/tensor"
	"github.com/embervox/parakeetstream/internal/vocab"
)

const testFrames = 3

type fakeMel struct{}

func (fakeMel) Predict(context.Context, map[string]*tensor.Tensor) (map[string]*tensor.Tensor, error) {
	spec, _ := tensor.NewFloat32([]int64{1, 80, testFrames}, make([]float32, 80*testFrames))
	length, _ := tensor.NewInt32([]int64{1}, []int32{testFrames})
	return map[string]*tensor.Tensor{"melspectogram": spec, "melspectogram_length": length}, nil
}

type fakeEncoder struct{}

func (fakeEncoder) Predict(context.Context, map[string]*tensor.Tensor) (map[string]*tensor.Tensor, error) {
	enc, _ := tensor.NewFloat32([]int64{1, testFrames, 1}, make([]float32, testFrames))
	length, _ := tensor.NewInt32([]int64{1}, []int32{testFrames})
	return map[string]*tensor.Tensor{"encoder": enc, "encoded_lengths": length}, nil
}

type fakePredictorNet struct{}

func (fakePredictorNet) Predict(context.Context, map[string]*tensor.Tensor) (map[string]*tensor.Tensor, error) {
	dec, _ := tensor.NewFloat32([]int64{1, 1, 4}, []float32{0, 0, 0, 0})
	h, _ := tensor.NewFloat32([]int64{2, 1, 640}, make([]float32, 2*640))
	c, _ := tensor.NewFloat32([]int64{2, 1, 640}, make([]float32, 2*640))
	return map[string]*tensor.Tensor{"decoder_output": dec, "h_out": h, "c_out": c}, nil
}

// fakeJoint selects token 1 with duration 1 for its first two calls (the
// two frames that actually get a chance to emit before t reaches
// tValid), then blanks forever so the last-chunk drain exits on its
// first two consecutive blanks instead of running to MaxSymbolsPerStep.
type fakeJoint struct{ calls int }

func (f *fakeJoint) Predict(context.Context, map[string]*tensor.Tensor) (map[string]*tensor.Tensor, error) {
	logits := make([]float32, 9) // vocabSize(4) + len(DurationBins)(5)
	if f.calls < 2 {
		logits[1] = 9   // token 1
		logits[4+1] = 9 // duration bin index 1 -> DurationBins[1] == 1
	} else {
		logits[3] = 9 // blank
		logits[4] = 9 // duration bin index 0 -> DurationBins[0] == 0
	}
	f.calls++
	t, _ := tensor.NewFloat32([]int64{9}, logits)
	return map[string]*tensor.Tensor{"logits": t}, nil
}

func testConfig() tdt.Config {
	return tdt.Config{
		IncludeTokenDuration: true,
		MaxSymbolsPerStep:    10,
		DurationBins:         []int32{0, 1, 2, 3, 4},
		BlankID:              3,
		PunctuationIDs:       map[int32]bool{},
	}
}

func testVocabulary() *vocab.Vocabulary {
	return vocab.FromMap(map[int32]string{1: "▁hi", 3: "<blk>"})
}

func testModels() model.Six {
	return model.Six{
		Mel:          fakeMel{},
		Encoder:      fakeEncoder{},
		PredictorNet: fakePredictorNet{},
		Joint:        &fakeJoint{},
	}
}

func TestTranscribeEmitsTextAndTimestamps(t *testing.T) {
	sess := NewSession(testModels(), testVocabulary(), testConfig())
	samples := make([]float32, 16001)
	for i := range samples {
		samples[i] = 0.5 // well above the RMS-silence floor
	}

	result, err := sess.Transcribe(context.Background(), samples)
	if err != nil {
		t.Fatal(err)
	}
	if result.Text != "hi hi" {
		t.Fatalf("got text %q, want %q", result.Text, "hi hi")
	}
	if len(result.Tokens) != 2 {
		t.Fatalf("got %d tokens, want %d", len(result.Tokens), 2)
	}
	for _, id := range result.Tokens {
		if id != 1 {
			t.Fatalf("unexpected token id %d", id)
		}
	}
	for i := 1; i < len(result.TimestampsFrames); i++ {
		if result.TimestampsFrames[i] < result.TimestampsFrames[i-1] {
			t.Fatal("timestamps must be non-decreasing")
		}
	}
	if result.Confidence <= 0 {
		t.Fatalf("expected positive confidence, got %v", result.Confidence)
	}
}

func TestTranscribeRejectsEmptyAudio(t *testing.T) {
	sess := NewSession(testModels(), testVocabulary(), testConfig())
	if _, err := sess.Transcribe(context.Background(), nil); err == nil {
		t.Fatal("expected ErrInvalidAudio for empty input")
	}
}

func TestTranscribeRejectsShortAudio(t *testing.T) {
	sess := NewSession(testModels(), testVocabulary(), testConfig())
	if _, err := sess.Transcribe(context.Background(), make([]float32, 100)); err == nil {
		t.Fatal("expected ErrInvalidAudio for sub-1s input")
	}
}

func TestTranscribeRejectsSilentAudio(t *testing.T) {
	sess := NewSession(testModels(), testVocabulary(), testConfig())
	if _, err := sess.Transcribe(context.Background(), make([]float32, 16001)); err == nil {
		t.Fatal("expected ErrInvalidAudio for silent input")
	}
}

func TestResetClearsPredictorState(t *testing.T) {
	sess := NewSession(testModels(), testVocabulary(), testConfig())
	samples := make([]float32, 16001)
	for i := range samples {
		samples[i] = 0.5
	}
	if _, err := sess.Transcribe(context.Background(), samples); err != nil {
		t.Fatal(err)
	}
	if sess.State.LastToken == nil {
		t.Fatal("expected LastToken set after a successful transcribe")
	}
	sess.Reset()
	if sess.State.LastToken != nil {
		t.Fatal("expected Reset to clear LastToken")
	}
}
