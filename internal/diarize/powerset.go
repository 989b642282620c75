// Package diarize implements the speaker-diarization post-processing
// pipeline: powerset activation decoding, silence/overlap masking,
// masked mean-pooled embedding extraction, and online speaker
// clustering, all driven through internal/model.Predictor sessions.
package diarize

import (
	"fmt"

	"github.com/embervox/parakeetstream/internal/tensor"
)

// PowersetClasses enumerates the 7 subsets of {0,1,2} the segmentation
// network's powerset head predicts per frame: {∅, {0}, {1}, {2}, {0,1},
// {0,2}, {1,2}}.
var PowersetClasses = [][]int{
	{},
	{0},
	{1},
	{2},
	{0, 1},
	{0, 2},
	{1, 2},
}

// Binarize converts a [1,F,7] powerset logits tensor into a [1,F,3]
// tensor of 0/1 speaker activations by taking the argmax class per frame
// and setting its member speakers active.
func Binarize(segments *tensor.Tensor) (*tensor.Tensor, error) {
	shape := segments.Shape()
	if len(shape) != 3 || shape[0] != 1 || shape[2] != int64(len(PowersetClasses)) {
		return nil, fmt.Errorf("%w: segments shape %v, want [1,F,%d]", ErrInvalidInput, shape, len(PowersetClasses))
	}

	f := int(shape[1])
	data := segments.Float32Data()
	out := make([]float32, f*3)
	for frame := 0; frame < f; frame++ {
		logits := data[frame*7 : frame*7+7]
		cls, _ := tensor.ArgMax(logits)
		for _, speaker := range PowersetClasses[cls] {
			out[frame*3+speaker] = 1
		}
	}
	return tensor.NewFloat32([]int64{1, int64(f), 3}, out)
}
