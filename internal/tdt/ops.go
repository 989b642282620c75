package tdt

import (
	"context"

	"github.com/embervox/parakeetstream/internal/model"
	"github.com/embervox/parakeetstream/internal/tensor"
)

// runPredictor calls the predictor network for one token: targets[1,1],
// target_lengths[1], h_in[2,1,640], c_in[2,1,640] ->
// decoder_output[1,1,640], h_out, c_out.
func runPredictor(ctx context.Context, predictor model.Predictor, token int32, h, c *tensor.Tensor) (output []float32, newH, newC *tensor.Tensor, err error) {
	targets, err := tensor.NewInt32([]int64{1, 1}, []int32{token})
	if err != nil {
		return nil, nil, nil, err
	}
	targetLengths, err := tensor.NewInt32([]int64{1}, []int32{1})
	if err != nil {
		return nil, nil, nil, err
	}

	inputs := map[string]*tensor.Tensor{
		"targets":        targets,
		"target_lengths": targetLengths,
		"h_in":           h,
		"c_in":           c,
	}

	outputs, err := predictor.Predict(ctx, inputs)
	if err != nil {
		return nil, nil, nil, err
	}

	decOut, err := model.Output(outputs, "decoder_output")
	if err != nil {
		return nil, nil, nil, err
	}
	hOut, err := model.Output(outputs, "h_out")
	if err != nil {
		return nil, nil, nil, err
	}
	cOut, err := model.Output(outputs, "c_out")
	if err != nil {
		return nil, nil, nil, err
	}

	return append([]float32(nil), decOut.Float32Data()...), hOut, cOut, nil
}

// runJoint calls the joint network for one encoder frame and the cached
// predictor projection: encoder_outputs[1,1,1024],
// decoder_outputs[1,1,640] -> logits[V+|bins|].
func runJoint(ctx context.Context, joint model.Predictor, encFrame []float32, decOutput []float32) ([]float32, error) {
	encTensor, err := tensor.NewFloat32([]int64{1, 1, int64(len(encFrame))}, append([]float32(nil), encFrame...))
	if err != nil {
		return nil, err
	}
	decTensor, err := tensor.NewFloat32([]int64{1, 1, int64(len(decOutput))}, append([]float32(nil), decOutput...))
	if err != nil {
		return nil, err
	}

	outputs, err := joint.Predict(ctx, map[string]*tensor.Tensor{
		"encoder_outputs": encTensor,
		"decoder_outputs": decTensor,
	})
	if err != nil {
		return nil, err
	}

	logits, err := model.Output(outputs, "logits")
	if err != nil {
		return nil, err
	}
	return logits.Float32Data(), nil
}
