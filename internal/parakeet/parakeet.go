// Package parakeet loads the sherpa-onnx-format Parakeet TDT and pyannote
// diarization model files from disk into the uniform model.Predictor
// sessions the rest of the pipeline talks to: owning the ONNX Runtime
// environment and the ort.NewDynamicAdvancedSession calls for every
// network file. It does not run the TDT decode loop itself; that lives
// in internal/tdt and internal/diarize, against the named-tensor
// model.Predictor contract.
package parakeet

import (
	"fmt"
	"path/filepath"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/embervox/parakeetstream/internal/model"
	"github.com/embervox/parakeetstream/internal/vocab"
)

var runtimeInitialized bool

// InitRuntime points ONNX Runtime at its shared library and brings up its
// global environment. It must be called once before any LoadASR/LoadDiarize
// call.
func InitRuntime(ortLibPath string) error {
	if runtimeInitialized {
		return nil
	}
	ort.SetSharedLibraryPath(ortLibPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("init onnxruntime: %w", err)
	}
	runtimeInitialized = true
	return nil
}

// LoadASR opens the four TDT network files and the vocabulary from dir
// (as laid out by internal/models.ASRModel) and returns them as a
// model.Six with only the ASR fields populated.
func LoadASR(dir string) (model.Six, *vocab.Vocabulary, error) {
	var six model.Six
	var err error

	six.Mel, err = model.NewOnnxSession(filepath.Join(dir, "mel.int8.onnx"),
		[]string{"audio_signal", "audio_length"},
		[]string{"melspectogram", "melspectogram_length"})
	if err != nil {
		return model.Six{}, nil, fmt.Errorf("load mel: %w", err)
	}

	six.Encoder, err = model.NewOnnxSession(filepath.Join(dir, "encoder.int8.onnx"),
		[]string{"audio_signal", "length"},
		[]string{"encoder", "encoded_lengths"})
	if err != nil {
		return model.Six{}, nil, fmt.Errorf("load encoder: %w", err)
	}

	six.PredictorNet, err = model.NewOnnxSession(filepath.Join(dir, "predictor.int8.onnx"),
		[]string{"targets", "target_lengths", "h_in", "c_in"},
		[]string{"decoder_output", "h_out", "c_out"})
	if err != nil {
		return model.Six{}, nil, fmt.Errorf("load predictor: %w", err)
	}

	six.Joint, err = model.NewOnnxSession(filepath.Join(dir, "joint.int8.onnx"),
		[]string{"encoder_outputs", "decoder_outputs"},
		[]string{"logits"})
	if err != nil {
		return model.Six{}, nil, fmt.Errorf("load joint: %w", err)
	}

	v, err := vocab.Load(filepath.Join(dir, "vocab.json"))
	if err != nil {
		return model.Six{}, nil, fmt.Errorf("load vocab: %w", err)
	}

	return six, v, nil
}

// LoadDiarize opens the segmentation and embedding network files from dir
// (as laid out by internal/models.DiarizeModel).
func LoadDiarize(dir string) (segmentation, embedding model.Predictor, err error) {
	segmentation, err = model.NewOnnxSession(filepath.Join(dir, "segmentation.onnx"),
		[]string{"audio"}, []string{"segments"})
	if err != nil {
		return nil, nil, fmt.Errorf("load segmentation: %w", err)
	}

	embedding, err = model.NewOnnxSession(filepath.Join(dir, "embedding.onnx"),
		[]string{"waveform", "mask"}, []string{"embedding"})
	if err != nil {
		return nil, nil, fmt.Errorf("load embedding: %w", err)
	}

	return segmentation, embedding, nil
}
