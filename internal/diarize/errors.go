package diarize

import "errors"

// Sentinel errors specific to the diarization pipeline. Model and tensor
// shape failures from the underlying networks still surface the kinds
// defined in internal/model.
var (
	// ErrInvalidInput reports a malformed segmentation/embedding tensor
	// shape that doesn't match this pipeline's input contract.
	ErrInvalidInput = errors.New("diarize: invalid input")

	// ErrInvalidEmbedding reports an embedding that fails the validity
	// check (magnitude <= 0.1, or a non-finite component); such
	// embeddings are never written to a centroid.
	ErrInvalidEmbedding = errors.New("diarize: invalid embedding")
)
