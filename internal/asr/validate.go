package asr

import (
	"fmt"
	"math"

	"github.com/embervox/parakeetstream/internal/model"
	"github.com/embervox/parakeetstream/internal/stream"
)

const (
	minAudioSeconds = 1.0
	minAudioRMS     = 0.01
)

// validateAudio rejects empty, too short (<1s), or silent (<0.01 RMS)
// input with ErrInvalidAudio before any model is invoked.
func validateAudio(samples []float32) error {
	if len(samples) == 0 {
		return fmt.Errorf("%w: empty audio", model.ErrInvalidAudio)
	}
	if seconds := float64(len(samples)) / stream.SampleRate; seconds < minAudioSeconds {
		return fmt.Errorf("%w: audio too short (%.2fs < %.0fs)", model.ErrInvalidAudio, seconds, minAudioSeconds)
	}
	if rms(samples) < minAudioRMS {
		return fmt.Errorf("%w: audio is silent (rms < %.2f)", model.ErrInvalidAudio, minAudioRMS)
	}
	return nil
}

func rms(samples []float32) float64 {
	var sumSquares float64
	for _, s := range samples {
		sumSquares += float64(s) * float64(s)
	}
	return math.Sqrt(sumSquares / float64(len(samples)))
}
