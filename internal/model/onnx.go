package model

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/embervox/parakeetstream/internal/tensor"
)

// OnnxSession adapts an ONNX Runtime session to the Predictor contract,
// wrapping positional Run calls behind a named input/output map. ONNX
// Runtime sessions are not safe for concurrent Run calls against the
// same session, so Predict serializes with an internal mutex.
type OnnxSession struct {
	mu          sync.Mutex
	session     *ort.DynamicAdvancedSession
	inputNames  []string
	outputNames []string
}

// NewOnnxSession loads an ONNX model file and declares its named inputs and
// outputs via ort.NewDynamicAdvancedSession; parakeet.LoadASR and
// parakeet.LoadDiarize use it for each of their model sessions.
func NewOnnxSession(path string, inputNames, outputNames []string) (*OnnxSession, error) {
	sess, err := ort.NewDynamicAdvancedSession(path, inputNames, outputNames, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", ErrModelUnavailable, path, err)
	}
	return &OnnxSession{session: sess, inputNames: inputNames, outputNames: outputNames}, nil
}

// Predict runs the session once, converting named tensors to/from
// ort.Value. Input order follows the declared inputNames; a declared input
// missing from the map fails with ErrInvalidShape before the session runs.
func (s *OnnxSession) Predict(ctx context.Context, inputs map[string]*tensor.Tensor) (map[string]*tensor.Tensor, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	ortInputs := make([]ort.Value, len(s.inputNames))
	for i, name := range s.inputNames {
		t, ok := inputs[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing input %q", ErrInvalidShape, name)
		}
		v, err := toOrtValue(t)
		if err != nil {
			return nil, err
		}
		defer v.Destroy()
		ortInputs[i] = v
	}

	ortOutputs := make([]ort.Value, len(s.outputNames))
	s.mu.Lock()
	err := s.session.Run(ortInputs, ortOutputs)
	s.mu.Unlock()
	if err != nil {
		return nil, NewProcessingError("onnxruntime run", err)
	}

	result := make(map[string]*tensor.Tensor, len(s.outputNames))
	for i, name := range s.outputNames {
		t, err := fromOrtValue(ortOutputs[i])
		ortOutputs[i].Destroy()
		if err != nil {
			return nil, err
		}
		result[name] = t
	}
	return result, nil
}

func toOrtValue(t *tensor.Tensor) (ort.Value, error) {
	shape := ort.NewShape(t.Shape()...)
	switch t.DType() {
	case tensor.Float32:
		return ort.NewTensor(shape, t.Float32Data())
	default:
		return ort.NewTensor(shape, t.Int32Data())
	}
}

func fromOrtValue(v ort.Value) (*tensor.Tensor, error) {
	switch tv := v.(type) {
	case *ort.Tensor[float32]:
		data := append([]float32(nil), tv.GetData()...)
		return tensor.NewFloat32(shapeToInt64(tv.GetShape()), data)
	case *ort.Tensor[int32]:
		data := append([]int32(nil), tv.GetData()...)
		return tensor.NewInt32(shapeToInt64(tv.GetShape()), data)
	case *ort.Tensor[int64]:
		raw := tv.GetData()
		data := make([]int32, len(raw))
		for i, x := range raw {
			data[i] = int32(x)
		}
		return tensor.NewInt32(shapeToInt64(tv.GetShape()), data)
	default:
		return nil, fmt.Errorf("%w: unsupported onnx output type", ErrInvalidShape)
	}
}

func shapeToInt64(s ort.Shape) []int64 {
	out := make([]int64, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
