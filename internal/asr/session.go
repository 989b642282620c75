// Package asr ties the tensor, model, tdt, stream, and diarize packages
// into the top-level transcription session exposed as a single
// Transcribe(samples) call, a chunk-aware, state-carrying session.
package asr

import (
	"context"
	"time"

	"github.com/embervox/parakeetstream/internal/model"
	"github.com/embervox/parakeetstream/internal/stream"
	"github.com/embervox/parakeetstream/internal/tdt"
	"github.com/embervox/parakeetstream/internal/vocab"
)

// Session owns one streaming transcription's state: the decoder's
// PredictorState, its models, and the orchestrator policy. It is owned
// exclusively by one caller; concurrent use requires external
// synchronization.
type Session struct {
	Models       model.Six
	Vocab        *vocab.Vocabulary
	Decoder      *tdt.Decoder
	Orchestrator *stream.Orchestrator
	State        *tdt.PredictorState
}

// NewSession builds a fresh Session with a zeroed PredictorState, ready
// to transcribe from the start of a new utterance.
func NewSession(models model.Six, vocabulary *vocab.Vocabulary, cfg tdt.Config) *Session {
	return &Session{
		Models:       models,
		Vocab:        vocabulary,
		Decoder:      tdt.New(cfg),
		Orchestrator: stream.New(stream.PolicyContiguousThenLCS, cfg.PunctuationIDs),
		State:        tdt.NewPredictorState(),
	}
}

// Reset clears the session's decoder state so it can start a new,
// unrelated utterance while reusing the loaded models.
func (s *Session) Reset() { s.State.Reset() }

// Transcribe runs the full raw-samples -> mel -> encoder -> chunk
// orchestrator -> TDT decoder -> vocabulary pipeline over one
// utterance.
func (s *Session) Transcribe(ctx context.Context, samples []float32) (*TranscriptionResult, error) {
	start := time.Now()
	if err := validateAudio(samples); err != nil {
		return nil, err
	}

	var totalScore float32
	var chunkCount int

	decode := func(ctx context.Context, chunkSamples []float32, startFrameOffset int32, isLastChunk bool) ([]stream.TimedToken, error) {
		mel, melLen, err := runMel(ctx, s.Models.Mel, chunkSamples)
		if err != nil {
			return nil, err
		}
		encoded, tValid, err := runEncoder(ctx, s.Models.Encoder, mel, melLen)
		if err != nil {
			return nil, err
		}
		hyp, err := s.Decoder.DecodeWithTimings(ctx, encoded, tValid, s.Models.PredictorNet, s.Models.Joint, s.State, startFrameOffset, isLastChunk)
		if err != nil {
			return nil, err
		}
		chunkCount++
		totalScore += hyp.Score
		return hypothesisToTimedTokens(hyp), nil
	}

	result, err := s.Orchestrator.Transcribe(ctx, samples, decode)
	if err != nil {
		return nil, err
	}

	var confidence float32
	if chunkCount > 0 {
		confidence = totalScore / float32(chunkCount)
	}

	text := s.Vocab.Detokenize(tokenIDs(result.Tokens))
	durationS := float64(len(samples)) / stream.SampleRate
	return buildTranscriptionResult(result.Tokens, text, confidence, durationS, time.Since(start).Seconds()), nil
}

func tokenIDs(tokens []stream.TimedToken) []int32 {
	ids := make([]int32, len(tokens))
	for i, t := range tokens {
		ids[i] = t.ID
	}
	return ids
}

// hypothesisToTimedTokens converts one chunk's frame-indexed Hypothesis
// into the orchestrator's second-indexed TimedToken currency.
func hypothesisToTimedTokens(hyp *tdt.Hypothesis) []stream.TimedToken {
	out := make([]stream.TimedToken, len(hyp.YSequence))
	for i, id := range hyp.YSequence {
		tok := stream.TimedToken{
			ID:    id,
			Start: float64(hyp.Timestamps[i]) / stream.FrameRate,
		}
		if i < len(hyp.TokenDurations) {
			tok.Duration = float64(hyp.TokenDurations[i]) / stream.FrameRate
		}
		out[i] = tok
	}
	return out
}
