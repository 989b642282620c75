package asr

import (
	"context"
	"testing"

	"github.com/embervox/parakeetstream/internal/diarize"
)

func TestTranscribeAndDiarizeAttachesSpeakerPerToken(t *testing.T) {
	sess := NewSession(testModels(), testVocabulary(), testConfig())
	pipeline := diarize.NewPipeline(diarize.DefaultConfig())

	samples := make([]float32, 16001)
	for i := range samples {
		samples[i] = 0.5
	}

	result, err := sess.TranscribeAndDiarize(context.Background(), samples, pipeline, fakeSegmentation{}, fakeEmbedding{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Tokens) != len(result.Transcription.Tokens) {
		t.Fatalf("expected one DiarizedToken per transcribed token, got %d vs %d", len(result.Tokens), len(result.Transcription.Tokens))
	}
	if len(result.Segments) == 0 {
		t.Fatal("expected at least one diarization segment")
	}
	for _, tok := range result.Tokens {
		if tok.SpeakerID == "" {
			t.Fatal("expected every token to be attributed to a speaker")
		}
	}
}
