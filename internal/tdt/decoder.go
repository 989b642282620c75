package tdt

import (
	"context"
	"fmt"

	"github.com/embervox/parakeetstream/internal/model"
	"github.com/embervox/parakeetstream/internal/tensor"
)

// Decoder runs the greedy TDT inference loop. It is stateless itself;
// all session state lives in the PredictorState passed to
// DecodeWithTimings, so a Decoder value can be shared across sessions.
type Decoder struct {
	cfg Config
}

// New returns a Decoder configured per cfg.
func New(cfg Config) *Decoder { return &Decoder{cfg: cfg} }

// loopState names the decoder's per-step mode, replacing a plain
// active_mask/advance_mask boolean pair with an explicit state enum.
type loopState int

const (
	stateOuter loopState = iota
	stateInnerBlank
	stateDrain
	stateDone
)

// DecodeWithTimings runs the greedy transduction over one encoder chunk,
// mutating state on success and leaving it untouched on early-exit or
// error. encoder must have rank >= 3 (e.g. [1,T,H]); tValid <= encoder's T
// dimension is the number of frames actually populated in this chunk.
func (d *Decoder) DecodeWithTimings(
	ctx context.Context,
	encoder *tensor.Tensor,
	tValid int,
	predictor, joint model.Predictor,
	state *PredictorState,
	startFrameOffset int32,
	isLastChunk bool,
) (*Hypothesis, error) {
	if encoder.Rank() < 3 {
		return nil, fmt.Errorf("%w: encoder rank %d < 3", model.ErrInvalidShape, encoder.Rank())
	}

	h, c := state.H, state.C
	if h == nil {
		h = tensor.Zeros(lstmLayers, 1, lstmHidden)
	}
	if c == nil {
		c = tensor.Zeros(lstmLayers, 1, lstmHidden)
	}
	var lastToken *int32
	if state.LastToken != nil {
		v := *state.LastToken
		lastToken = &v
	}
	var predOutput []float32
	if state.PredictorOutput != nil {
		predOutput = append([]float32(nil), state.PredictorOutput.Float32Data()...)
	}

	// Step 1: preparation, once per session-start, computed into locals so
	// a subsequent early-return (t >= T_valid) leaves state untouched.
	// Fresh state (no prior token at all) primes on the blank id. A chunk
	// that resumed from a punctuation boundary carries a LastToken but no
	// cached PredictorOutput (persist cleared it); that case must re-run
	// the predictor on LastToken, not on the blank id, or the joint
	// network gets fed a missing/wrong-shaped decoder projection.
	if predOutput == nil {
		primeToken := d.cfg.BlankID
		if lastToken != nil {
			primeToken = *lastToken
		} else {
			h = tensor.Zeros(lstmLayers, 1, lstmHidden)
			c = tensor.Zeros(lstmLayers, 1, lstmHidden)
		}
		out, nh, nc, err := runPredictor(ctx, predictor, primeToken, h, c)
		if err != nil {
			return nil, err
		}
		predOutput, h, c = out, nh, nc
	}

	// Step 2: time initialization.
	t := int(startFrameOffset)
	if state.TimeJump != nil {
		t = int(*state.TimeJump) + int(startFrameOffset)
		if t < 0 {
			t = 0
		}
	}

	hyp := &Hypothesis{}
	if t >= tValid {
		return hyp, nil
	}

	enc2d, err := viewEncoderFrames(encoder)
	if err != nil {
		return nil, err
	}

	vocabSize := int(d.cfg.BlankID) + 1
	emissionsAtT := 0
	lastEmitT := -1

	advancePredictor := func(token int32) error {
		out, nh, nc, err := runPredictor(ctx, predictor, token, h, c)
		if err != nil {
			return err
		}
		predOutput, h, c = out, nh, nc
		v := token
		lastToken = &v
		return nil
	}

	stepJoint := func(tIdx int) (label int32, duration int32, score float32, err error) {
		frame := enc2d.Row(clamp(tIdx, 0, tValid-1))
		logits, err := runJoint(ctx, joint, frame, predOutput)
		if err != nil {
			return 0, 0, 0, err
		}
		if len(logits) < vocabSize+len(d.cfg.DurationBins) {
			return 0, 0, 0, fmt.Errorf("%w: joint returned %d logits, want >= %d", model.ErrInvalidShape, len(logits), vocabSize+len(d.cfg.DurationBins))
		}
		tokIdx, tokScore := tensor.ArgMax(logits[:vocabSize])
		durIdx, _ := tensor.ArgMax(logits[vocabSize : vocabSize+len(d.cfg.DurationBins)])
		label = int32(tokIdx)
		score = tokScore
		duration = d.cfg.DurationBins[durIdx]
		if label == d.cfg.BlankID && duration == 0 {
			duration = 1
		}
		return
	}

	state3 := stateOuter
	for state3 != stateDone {
		switch state3 {
		case stateOuter:
			if t >= tValid {
				state3 = stateDone
				continue
			}
			label, duration, score, err := stepJoint(t)
			if err != nil {
				return nil, err
			}
			tEmit := t
			t += int(duration)

			if label == d.cfg.BlankID && t < tValid {
				state3 = stateInnerBlank
				_ = tEmit
				continue
			}

			if t < tValid && label != d.cfg.BlankID {
				if err := emit(hyp, &d.cfg, label, tEmit, duration, score, startFrameOffset); err != nil {
					return nil, err
				}
				if err := advancePredictor(label); err != nil {
					return nil, err
				}
				if forceAdvance(&emissionsAtT, &lastEmitT, tEmit, d.cfg.MaxSymbolsPerStep) {
					t = clamp(t+1, 0, tValid)
				}
			}
			// else: blank at chunk end, nothing to emit, loop re-checks t>=tValid.

		case stateInnerBlank:
			label, duration, score, err := stepJoint(t)
			if err != nil {
				return nil, err
			}
			tEmit := t
			t += int(duration)

			if label == d.cfg.BlankID {
				if t >= tValid {
					state3 = stateOuter // loop head re-checks and exits
				}
				continue
			}

			if t < tValid {
				if err := emit(hyp, &d.cfg, label, tEmit, duration, score, startFrameOffset); err != nil {
					return nil, err
				}
				if err := advancePredictor(label); err != nil {
					return nil, err
				}
				if forceAdvance(&emissionsAtT, &lastEmitT, tEmit, d.cfg.MaxSymbolsPerStep) {
					t = clamp(t+1, 0, tValid)
				}
			}
			state3 = stateOuter
		}
	}

	if isLastChunk {
		if err := drain(ctx, &d.cfg, enc2d, tValid, joint, &h, &c, &predOutput, &lastToken, hyp, predictor); err != nil {
			return nil, err
		}
	}

	persist(state, &d.cfg, h, c, lastToken, predOutput, t, tValid, isLastChunk)
	hyp.LastToken = lastToken
	return hyp, nil
}

// emit appends a non-blank token to the hypothesis if it falls at or
// after the chunk's left-context boundary (the frame-offset rule).
func emit(hyp *Hypothesis, cfg *Config, label int32, tEmit int, duration int32, score float32, startFrameOffset int32) error {
	if int32(tEmit) >= startFrameOffset {
		hyp.YSequence = append(hyp.YSequence, label)
		hyp.Timestamps = append(hyp.Timestamps, int32(tEmit))
		if cfg.IncludeTokenDuration {
			hyp.TokenDurations = append(hyp.TokenDurations, duration)
		}
		hyp.Score += score
	}
	return nil
}

// forceAdvance tracks repeated emissions at the same timestamp, returning
// true (and resetting the counter) once max_symbols_per_step is reached.
func forceAdvance(emissionsAtT *int, lastEmitT *int, tEmit int, maxSymbols uint32) bool {
	if tEmit == *lastEmitT {
		*emissionsAtT++
	} else {
		*emissionsAtT = 1
		*lastEmitT = tEmit
	}
	if *emissionsAtT >= int(maxSymbols) {
		*emissionsAtT = 0
		return true
	}
	return false
}

// drain runs the bounded last-chunk finalization: up to
// MaxSymbolsPerStep additional joint steps pinned to the final frame,
// exiting early on two consecutive blanks.
func drain(
	ctx context.Context,
	cfg *Config,
	enc2d *tensor.Tensor,
	tValid int,
	joint model.Predictor,
	h, c **tensor.Tensor,
	predOutput *[]float32,
	lastToken **int32,
	hyp *Hypothesis,
	predictor model.Predictor,
) error {
	finalT := clamp(tValid-1, 0, tValid-1)
	vocabSize := int(cfg.BlankID) + 1
	consecutiveBlanks := 0

	for i := uint32(0); i < cfg.MaxSymbolsPerStep; i++ {
		frame := enc2d.Row(finalT)
		logits, err := runJoint(ctx, joint, frame, *predOutput)
		if err != nil {
			return err
		}
		if len(logits) < vocabSize+len(cfg.DurationBins) {
			return fmt.Errorf("%w: joint returned %d logits in drain", model.ErrInvalidShape, len(logits))
		}
		tokIdx, score := tensor.ArgMax(logits[:vocabSize])
		durIdx, _ := tensor.ArgMax(logits[vocabSize : vocabSize+len(cfg.DurationBins)])
		label := int32(tokIdx)
		duration := cfg.DurationBins[durIdx]

		if label == cfg.BlankID {
			consecutiveBlanks++
			if consecutiveBlanks >= 2 {
				break
			}
			continue
		}
		consecutiveBlanks = 0

		hyp.YSequence = append(hyp.YSequence, label)
		hyp.Timestamps = append(hyp.Timestamps, int32(finalT))
		if cfg.IncludeTokenDuration {
			hyp.TokenDurations = append(hyp.TokenDurations, duration)
		}
		hyp.Score += score

		out, nh, nc, err := runPredictor(ctx, predictor, label, *h, *c)
		if err != nil {
			return err
		}
		*predOutput, *h, *c = out, nh, nc
		v := label
		*lastToken = &v
	}
	return nil
}

// persist writes the decoder's local working state back to the shared
// PredictorState, applying the punctuation cache-bust rule; time_jump is
// set only after a non-last chunk and cleared after the final chunk.
func persist(state *PredictorState, cfg *Config, h, c *tensor.Tensor, lastToken *int32, predOutput []float32, t, tValid int, isLastChunk bool) {
	state.H, state.C = h, c
	state.LastToken = lastToken

	if lastToken != nil && cfg.PunctuationIDs[*lastToken] {
		state.PredictorOutput = nil
	} else if predOutput != nil {
		pt, err := tensor.NewFloat32([]int64{int64(len(predOutput))}, append([]float32(nil), predOutput...))
		if err == nil {
			state.PredictorOutput = pt
		}
	}

	if isLastChunk {
		state.TimeJump = nil
	} else {
		tj := int32(t - tValid)
		state.TimeJump = &tj
	}
}

func viewEncoderFrames(encoder *tensor.Tensor) (*tensor.Tensor, error) {
	if encoder.Shape()[0] == 1 {
		return encoder.View(0)
	}
	return encoder, nil
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
