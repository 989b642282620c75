// Package model defines the uniform predict(inputs)->outputs contract the
// TDT decoder, chunk orchestrator, and diarization pipeline use to talk to
// the six opaque neural networks (mel, encoder, predictor, joint,
// segmentation, embedding). Implementations wrap an ONNX Runtime session
// behind a named-tensor map contract instead of positional input/output
// slices.
package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/embervox/parakeetstream/internal/tensor"
)

// Sentinel error kinds from the error handling design.
var (
	ErrModelUnavailable = errors.New("model: unavailable")
	ErrInvalidShape     = errors.New("model: invalid shape")
	ErrMissingFeature   = errors.New("model: missing output feature")
	ErrInvalidAudio     = errors.New("model: invalid audio")
)

// ProcessingError wraps an arbitrary downstream failure, carrying a message
// as required by the ProcessingFailed(string) error kind.
type ProcessingError struct {
	Msg string
	Err error
}

func (e *ProcessingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("model: processing failed: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("model: processing failed: %s", e.Msg)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// NewProcessingError builds a ProcessingError, the non-sentinel error kind
// callers match on via errors.As.
func NewProcessingError(msg string, err error) error {
	return &ProcessingError{Msg: msg, Err: err}
}

// Predictor is the uniform contract every external network implements:
// predict(inputs) -> outputs, by name. Implementations must be safe to
// call from any goroutine (they may serialize internally) since
// independent sessions run concurrently.
type Predictor interface {
	Predict(ctx context.Context, inputs map[string]*tensor.Tensor) (map[string]*tensor.Tensor, error)
}

// Output looks up a named tensor from a Predict result, returning
// ErrMissingFeature if absent. The TDT decoder and diarization pipeline
// use this instead of direct map indexing so a missing network output
// surfaces the documented error kind rather than a nil-pointer panic.
func Output(outputs map[string]*tensor.Tensor, name string) (*tensor.Tensor, error) {
	t, ok := outputs[name]
	if !ok || t == nil {
		return nil, fmt.Errorf("%w: %q", ErrMissingFeature, name)
	}
	return t, nil
}

// Six bundles the six named model sessions a full pipeline needs:
// raw samples -> Mel -> Encoder -> orchestrator/decoder
// (<->Predictor/Joint) for ASR, and Segmentation -> Embedding for
// diarization.
type Six struct {
	Mel          Predictor
	Encoder      Predictor
	PredictorNet Predictor
	Joint        Predictor
	Segmentation Predictor
	Embedding    Predictor
}
