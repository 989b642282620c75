package asr

import (
	"math"

	"github.com/embervox/parakeetstream/internal/stream"
)

// TranscriptionResult is the public ASR output.
type TranscriptionResult struct {
	Text                 string
	Tokens               []int32
	TimestampsFrames     []int32
	TokenDurationsFrames []int32
	Confidence           float32
	DurationS            float64
	ProcessingTimeS      float64
}

func framesFromSeconds(s float64) int32 {
	return int32(math.Round(s * stream.FrameRate))
}

// buildTranscriptionResult converts the orchestrator's stitched token
// stream plus accumulated chunk metadata into the public result shape.
func buildTranscriptionResult(tokens []stream.TimedToken, text string, confidence float32, durationS, processingTimeS float64) *TranscriptionResult {
	r := &TranscriptionResult{
		Text:            text,
		Confidence:      confidence,
		DurationS:       durationS,
		ProcessingTimeS: processingTimeS,
	}
	r.Tokens = make([]int32, len(tokens))
	r.TimestampsFrames = make([]int32, len(tokens))
	r.TokenDurationsFrames = make([]int32, len(tokens))
	for i, tok := range tokens {
		r.Tokens[i] = tok.ID
		r.TimestampsFrames[i] = framesFromSeconds(tok.Start)
		r.TokenDurationsFrames[i] = framesFromSeconds(tok.Duration)
	}
	return r
}
