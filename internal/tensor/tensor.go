// Package tensor provides the dense multidimensional arrays shared by the
// model adapter, the TDT decoder, and the diarization pipeline. Tensors own
// their backing storage exclusively; slicing along a dimension produces a
// borrowed view with no copy.
package tensor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// DType identifies the element type of a Tensor.
type DType int

const (
	// Float32 tensors back encoder/decoder/joint activations.
	Float32 DType = iota
	// Int32 tensors back lengths and token ids.
	Int32
)

// Tensor is a dense, row-major multidimensional array of f32 or i32 data.
// The count of backing elements always equals the product of Shape.
type Tensor struct {
	shape   []int64
	strides []int64
	dtype   DType
	f32     []float32
	i32     []int32
}

// NewFloat32 builds a Tensor over data with the given shape. data is taken
// by reference, not copied; callers must not mutate it concurrently with
// reads through the returned Tensor.
func NewFloat32(shape []int64, data []float32) (*Tensor, error) {
	n := product(shape)
	if int64(len(data)) != n {
		return nil, fmt.Errorf("tensor: shape %v wants %d elements, got %d", shape, n, len(data))
	}
	return &Tensor{shape: append([]int64(nil), shape...), strides: rowMajorStrides(shape), dtype: Float32, f32: data}, nil
}

// NewInt32 builds an integer Tensor, e.g. for lengths or token sequences.
func NewInt32(shape []int64, data []int32) (*Tensor, error) {
	n := product(shape)
	if int64(len(data)) != n {
		return nil, fmt.Errorf("tensor: shape %v wants %d elements, got %d", shape, n, len(data))
	}
	return &Tensor{shape: append([]int64(nil), shape...), strides: rowMajorStrides(shape), dtype: Int32, i32: data}, nil
}

// Zeros allocates a zero-filled float32 tensor of the given shape.
func Zeros(shape ...int64) *Tensor {
	t, _ := NewFloat32(shape, make([]float32, product(shape)))
	return t
}

func product(shape []int64) int64 {
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}

func rowMajorStrides(shape []int64) []int64 {
	strides := make([]int64, len(shape))
	acc := int64(1)
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}
	return strides
}

// Shape returns the tensor's dimensions.
func (t *Tensor) Shape() []int64 { return t.shape }

// DType reports whether the tensor holds float32 or int32 data.
func (t *Tensor) DType() DType { return t.dtype }

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int { return len(t.shape) }

// Float32Data returns the raw backing slice for a Float32 tensor, or nil.
func (t *Tensor) Float32Data() []float32 { return t.f32 }

// Int32Data returns the raw backing slice for an Int32 tensor, or nil.
func (t *Tensor) Int32Data() []int32 { return t.i32 }

// View returns a zero-copy slice view along the leading dimension at index
// idx, e.g. View(0) on a [1,T,H] tensor returns the [T,H] sub-tensor.
func (t *Tensor) View(idx int64) (*Tensor, error) {
	if len(t.shape) == 0 {
		return nil, fmt.Errorf("tensor: cannot view a scalar")
	}
	if idx < 0 || idx >= t.shape[0] {
		return nil, fmt.Errorf("tensor: index %d out of range [0,%d)", idx, t.shape[0])
	}
	sub := t.shape[1:]
	span := t.strides[0]
	start := idx * span
	switch t.dtype {
	case Float32:
		return NewFloat32(sub, t.f32[start:start+span])
	default:
		return NewInt32(sub, t.i32[start:start+span])
	}
}

// Row returns the f32 frame at index i along the second-to-last dimension,
// i.e. for a [T,H] or [1,T,H]-flattened encoder tensor, Row(i) is the
// length-H slice for encoder frame i. min(i, lastRow) clamping is the
// caller's responsibility (the TDT decoder clamps at t_valid-1 itself).
func (t *Tensor) Row(i int) []float32 {
	h := int(t.shape[len(t.shape)-1])
	start := i * h
	return t.f32[start : start+h]
}

// ArgMax returns the index of the first maximum value. NaN entries are
// skipped; if every entry is NaN, ArgMax returns (0, NaN).
func ArgMax(data []float32) (int, float32) {
	best := 0
	bestVal := float32(math.NaN())
	seen := false
	for i, v := range data {
		if math.IsNaN(float64(v)) {
			continue
		}
		if !seen || v > bestVal {
			bestVal = v
			best = i
			seen = true
		}
	}
	if !seen {
		return 0, float32(math.NaN())
	}
	return best, bestVal
}

// L2Norm returns the Euclidean norm of data, via gonum's floats package.
func L2Norm(data []float32) float32 {
	f64 := make([]float64, len(data))
	for i, v := range data {
		f64[i] = float64(v)
	}
	return float32(floats.Norm(f64, 2))
}

// ScaledAddInto computes dst += alpha*src element-wise over the shorter
// of the two slices.
func ScaledAddInto(dst []float32, src []float32, alpha float32) {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	for i := 0; i < n; i++ {
		dst[i] += alpha * src[i]
	}
}

// Mean computes the element-wise arithmetic mean of a set of equal-length
// vectors, used for recomputing a speaker centroid from its raw
// embedding buffer.
func Mean(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	d := len(vectors[0])
	out := make([]float32, d)
	for _, v := range vectors {
		for i := 0; i < d && i < len(v); i++ {
			out[i] += v[i]
		}
	}
	inv := 1.0 / float32(len(vectors))
	for i := range out {
		out[i] *= inv
	}
	return out
}

// CosineDistance returns 1 - cosine_similarity(a,b). Returns 1 (maximally
// distant) if either vector has zero magnitude.
func CosineDistance(a, b []float32) float32 {
	na, nb := L2Norm(a), L2Norm(b)
	if na == 0 || nb == 0 {
		return 1
	}
	var dot float32
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
	}
	sim := dot / (na * nb)
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return 1 - sim
}
