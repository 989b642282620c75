package asr

import (
	"context"
	"fmt"

	"github.com/embervox/parakeetstream/internal/model"
	"github.com/embervox/parakeetstream/internal/tensor"
)

// runMel calls the mel-spectrogram network: audio_signal[1,N],
// audio_length[1] -> melspectogram[1,80,F], melspectogram_length[1].
func runMel(ctx context.Context, mel model.Predictor, samples []float32) (*tensor.Tensor, int32, error) {
	audioSignal, err := tensor.NewFloat32([]int64{1, int64(len(samples))}, samples)
	if err != nil {
		return nil, 0, err
	}
	audioLength, err := tensor.NewInt32([]int64{1}, []int32{int32(len(samples))})
	if err != nil {
		return nil, 0, err
	}

	outputs, err := mel.Predict(ctx, map[string]*tensor.Tensor{
		"audio_signal": audioSignal,
		"audio_length": audioLength,
	})
	if err != nil {
		return nil, 0, err
	}

	spec, err := model.Output(outputs, "melspectogram")
	if err != nil {
		return nil, 0, err
	}
	specLen, err := model.Output(outputs, "melspectogram_length")
	if err != nil {
		return nil, 0, err
	}
	lenData := specLen.Int32Data()
	if len(lenData) == 0 {
		return nil, 0, fmt.Errorf("%w: melspectogram_length is empty", model.ErrInvalidShape)
	}
	return spec, lenData[0], nil
}

// runEncoder calls the acoustic encoder: audio_signal[1,80,F], length[1]
// -> encoder[1,T,1024], encoded_lengths[1].
func runEncoder(ctx context.Context, encoder model.Predictor, mel *tensor.Tensor, melLen int32) (*tensor.Tensor, int, error) {
	lengthTensor, err := tensor.NewInt32([]int64{1}, []int32{melLen})
	if err != nil {
		return nil, 0, err
	}

	outputs, err := encoder.Predict(ctx, map[string]*tensor.Tensor{
		"audio_signal": mel,
		"length":       lengthTensor,
	})
	if err != nil {
		return nil, 0, err
	}

	encoded, err := model.Output(outputs, "encoder")
	if err != nil {
		return nil, 0, err
	}
	encodedLengths, err := model.Output(outputs, "encoded_lengths")
	if err != nil {
		return nil, 0, err
	}
	lenData := encodedLengths.Int32Data()
	if len(lenData) == 0 {
		return nil, 0, fmt.Errorf("%w: encoded_lengths is empty", model.ErrInvalidShape)
	}
	return encoded, int(lenData[0]), nil
}
