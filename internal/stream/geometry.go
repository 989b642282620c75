// Package stream implements the chunked streaming orchestrator: it
// windows a long utterance into overlapping encoder-sized chunks,
// drives a caller-supplied per-chunk decode function, and stitches the
// resulting timed tokens into one monotone transcript.
package stream

import "math"

// Window geometry: sample rate 16 kHz, encoder frame rate 12.5 frames/s
// (≈80 ms/frame ≈1280 samples), 11.0 s center context, 2.0 s of left and
// right context, and a 15.0 s hard ceiling on model input (which is
// exactly left+center+right — the geometry is self-consistent).
const (
	SampleRate = 16000
	FrameRate  = 12.5

	CenterS    = 11.0
	LeftS      = 2.0
	RightS     = 2.0
	MaxWindowS = 15.0
)

func samplesFor(seconds float64) int {
	return int(math.Round(seconds * SampleRate))
}

// StartFrameOffsetFrames is the frame count corresponding to LeftS of left
// context: round(2.0 * 12.5) = 25 frames. Tokens with a timestamp
// before this offset belong to the previous
// chunk's territory and must not be re-emitted (the frame-offset rule).
func StartFrameOffsetFrames() int32 {
	return int32(math.Round(LeftS * FrameRate))
}

// window describes one slice of the input sample buffer to decode, plus
// the frame offset and last-chunk flag the TDT decoder needs.
type window struct {
	SampleStart      int
	SampleEnd        int
	StartFrameOffset int32
	IsLast           bool
}

// planWindows lays out the overlapping chunk boundaries for an input of
// nSamples total samples. The first window has no left context (nothing
// precedes it); every subsequent window begins LeftS seconds before its
// center region starts, so the decoder's start_frame_offset can suppress
// tokens that fall in the already-transcribed overlap.
func planWindows(nSamples int) []window {
	if nSamples <= 0 {
		return nil
	}

	centerSamples := samplesFor(CenterS)
	leftSamples := samplesFor(LeftS)
	rightSamples := samplesFor(RightS)
	maxWindowSamples := samplesFor(MaxWindowS)
	offsetFrames := StartFrameOffsetFrames()

	var windows []window
	centerStart := 0
	for centerStart < nSamples {
		start := centerStart - leftSamples
		offset := offsetFrames
		if centerStart == 0 {
			start = 0
			offset = 0
		}
		if start < 0 {
			start = 0
		}

		end := centerStart + centerSamples + rightSamples
		if end > nSamples {
			end = nSamples
		}
		if end-start > maxWindowSamples {
			end = start + maxWindowSamples
		}

		isLast := end >= nSamples
		windows = append(windows, window{
			SampleStart:      start,
			SampleEnd:        end,
			StartFrameOffset: offset,
			IsLast:           isLast,
		})

		centerStart += centerSamples
	}
	return windows
}
