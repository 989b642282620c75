package asr

import (
	"context"

	"github.com/embervox/parakeetstream/internal/diarize"
	"github.com/embervox/parakeetstream/internal/model"
	"github.com/embervox/parakeetstream/internal/stream"
)

// DiarizedToken pairs one decoded token with the speaker whose segment
// contains (or is nearest to) its timestamp.
type DiarizedToken struct {
	Token     int32
	StartS    float64
	SpeakerID string
}

// DiarizedResult is the combined transcript+diarization response: both
// pipelines already produce timestamped output, so this is a thin
// combinator over their two results rather than a new model.
type DiarizedResult struct {
	Transcription *TranscriptionResult
	Segments      DiarizationResult
	Tokens        []DiarizedToken
}

// TranscribeAndDiarize runs both pipelines over the same audio and
// attaches a SpeakerID to each decoded token by nearest-timestamp match
// against the diarization segments.
func (s *Session) TranscribeAndDiarize(ctx context.Context, samples []float32, diarizer *diarize.Pipeline, segmentation, embedding model.Predictor) (*DiarizedResult, error) {
	transcription, err := s.Transcribe(ctx, samples)
	if err != nil {
		return nil, err
	}
	segments, err := Diarize(ctx, samples, diarizer, segmentation, embedding)
	if err != nil {
		return nil, err
	}

	tokens := make([]DiarizedToken, len(transcription.Tokens))
	for i, id := range transcription.Tokens {
		startS := float64(transcription.TimestampsFrames[i]) / stream.FrameRate
		tokens[i] = DiarizedToken{
			Token:     id,
			StartS:    startS,
			SpeakerID: nearestSpeaker(segments, startS),
		}
	}

	return &DiarizedResult{Transcription: transcription, Segments: segments, Tokens: tokens}, nil
}

// nearestSpeaker finds the segment containing t, or failing that the
// segment whose boundary is closest to t; returns "" if segments is
// empty.
func nearestSpeaker(segments DiarizationResult, t float64) string {
	if len(segments) == 0 {
		return ""
	}
	var best diarize.Segment
	bestDist := -1.0
	for _, seg := range segments {
		if float64(seg.StartS) <= t && t <= float64(seg.EndS) {
			return seg.SpeakerID
		}
		d := distanceToSegment(seg, t)
		if bestDist < 0 || d < bestDist {
			bestDist = d
			best = seg
		}
	}
	return best.SpeakerID
}

func distanceToSegment(seg diarize.Segment, t float64) float64 {
	if t < float64(seg.StartS) {
		return float64(seg.StartS) - t
	}
	return t - float64(seg.EndS)
}
