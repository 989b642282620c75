package diarize

import "github.com/embervox/parakeetstream/internal/tensor"

// FrameDurationS and FrameStepS are the segmentation model's per-frame
// sliding-window metadata: each frame covers FrameDurationS seconds of
// audio, with consecutive frames FrameStepS apart.
const (
	FrameDurationS = 0.0619375
	FrameStepS     = 0.016875
)

// speakerRun is a contiguous run of frames sharing the same dominant
// speaker, the candidate unit grouped into SpeakerSegments.
type speakerRun struct {
	speaker int
	startS  float64
	endS    float64
}

// dominantSpeakerRuns groups contiguous frames sharing the same dominant
// speaker (per-frame argmax over the 3 speaker channels; silent frames,
// where no channel is active, break a run without starting a new one)
// into candidate segments with sliding-window timestamps relative to
// chunkOffsetS.
func dominantSpeakerRuns(binarized *tensor.Tensor, chunkOffsetS float64) []speakerRun {
	shape := binarized.Shape()
	if len(shape) != 3 || shape[2] != 3 {
		return nil
	}
	f := int(shape[1])
	data := binarized.Float32Data()

	var runs []speakerRun
	curSpeaker := -2 // sentinel distinct from "silence" (-1) and any real speaker
	var curStart float64

	flush := func(lastFrame int) {
		if curSpeaker >= 0 {
			runs = append(runs, speakerRun{
				speaker: curSpeaker,
				startS:  curStart,
				endS:    chunkOffsetS + float64(lastFrame)*FrameStepS + FrameDurationS,
			})
		}
	}

	for frame := 0; frame < f; frame++ {
		row := data[frame*3 : frame*3+3]
		speaker := -1
		if row[0]+row[1]+row[2] > 0 {
			speaker, _ = tensor.ArgMax(row)
		}
		if speaker != curSpeaker {
			flush(frame - 1)
			curSpeaker = speaker
			curStart = chunkOffsetS + float64(frame)*FrameStepS
		}
	}
	flush(f - 1)
	return runs
}
