// Package tdt implements the Token-and-Duration Transducer greedy decoder:
// a coupled time/label state machine. It fuses encoder frames with a
// recurrent predictor through a joint network, emitting (token,
// duration) pairs while skipping silence via the inner loop, and
// carries enough state in PredictorState to continue decoding
// seamlessly across chunk boundaries.
package tdt

import (
	"github.com/embervox/parakeetstream/internal/tensor"
)

const (
	lstmLayers = 2
	lstmHidden = 640
)

// Config holds the decoder's tunable parameters.
type Config struct {
	IncludeTokenDuration bool
	MaxSymbolsPerStep    uint32
	DurationBins         []int32
	BlankID              int32
	// PunctuationIDs is the set of token ids whose emission clears the
	// cached predictor output at a chunk boundary. The punctuation set
	// is vocabulary-specific and must be parametrized rather than
	// hardcoded.
	PunctuationIDs map[int32]bool
}

// DefaultConfig returns the default tuning for a Parakeet-TDT-style
// vocabulary of 8192 subword tokens plus the blank id.
func DefaultConfig() Config {
	return Config{
		IncludeTokenDuration: true,
		MaxSymbolsPerStep:    10,
		DurationBins:         []int32{0, 1, 2, 3, 4},
		BlankID:              8192,
		PunctuationIDs:       map[int32]bool{7883: true, 7952: true, 7948: true},
	}
}

// PredictorState carries everything the decoder needs to resume across
// calls: the LSTM hidden/cell state, the most recently emitted non-blank
// token, the cached predictor projection for that token, and a leftover
// frame offset ("time jump") for the next chunk. Zero value is a valid
// fresh session.
type PredictorState struct {
	H, C *tensor.Tensor

	LastToken *int32

	// PredictorOutput caches the predictor's projection so the inner
	// blank-skip loop can reuse it without a redundant LSTM evaluation.
	// It is owned by PredictorState and replaced wholesale, never
	// mutated in place, on each non-blank emission.
	PredictorOutput *tensor.Tensor

	// TimeJump carries the frame overshoot from one chunk to the next in
	// a streaming session. It is read at the start of every chunk when
	// set, written only after a non-last chunk, and cleared after the
	// last chunk.
	TimeJump *int32
}

// NewPredictorState returns a zeroed state, as created at session start.
func NewPredictorState() *PredictorState {
	return &PredictorState{H: tensor.Zeros(lstmLayers, 1, lstmHidden), C: tensor.Zeros(lstmLayers, 1, lstmHidden)}
}

// Reset restores all four fields to their zero/empty value, as required on
// explicit session reset.
func (s *PredictorState) Reset() {
	s.H = tensor.Zeros(lstmLayers, 1, lstmHidden)
	s.C = tensor.Zeros(lstmLayers, 1, lstmHidden)
	s.LastToken = nil
	s.PredictorOutput = nil
	s.TimeJump = nil
}

// MarshalBinary serializes H, C, LastToken and TimeJump into an opaque
// blob so a caller can checkpoint a streaming session. PredictorOutput
// is deliberately not persisted: it's a pure cache invalidated by
// LastToken, recomputed lazily on first use.
func (s *PredictorState) MarshalBinary() ([]byte, error) {
	return marshalState(s)
}

// UnmarshalBinary restores a PredictorState previously produced by
// MarshalBinary.
func (s *PredictorState) UnmarshalBinary(data []byte) error {
	return unmarshalState(s, data)
}
