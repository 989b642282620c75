package tdt

// Hypothesis is the growable decode result for one call to
// DecodeWithTimings: parallel token/timestamp/duration slices plus the
// accumulated score. Invariant: len(YSequence) == len(Timestamps), and
// == len(TokenDurations) whenever durations are included.
type Hypothesis struct {
	YSequence      []int32
	Timestamps     []int32
	TokenDurations []int32
	Score          float32
	LastToken      *int32
}

// Len reports the number of emitted tokens.
func (h *Hypothesis) Len() int { return len(h.YSequence) }
