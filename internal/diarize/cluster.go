package diarize

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/embervox/parakeetstream/internal/tensor"
)

// rawBufferCap is the FIFO capacity of a centroid's raw embedding
// buffer (deque<[f32; D]> capacity 50, FIFO).
const rawBufferCap = 50

// Centroid is a running speaker representative: the arithmetic mean of
// its FIFO raw-embedding buffer.
type Centroid struct {
	ID          string
	Current     []float32
	Raw         [][]float32
	Duration    float32
	UpdateCount uint32
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Config holds the diarizer's tunables.
type Config struct {
	ClusteringThreshold float64
	MinSpeechDurationS  float64
	MinSilenceGapS      float64
	NumClusters         int
	MinActiveFrames     float64
}

// DefaultConfig returns the standard diarizer tuning.
func DefaultConfig() Config {
	return Config{
		ClusteringThreshold: 0.7,
		MinSpeechDurationS:  1.0,
		MinSilenceGapS:      0.5,
		NumClusters:         -1,
		MinActiveFrames:     10.0,
	}
}

// ClusterStore is the process-wide speaker centroid database, guarded
// by a single mutual-exclusion primitive, reads concurrent between
// writes.
type ClusterStore struct {
	mu        sync.RWMutex
	cfg       Config
	centroids []*Centroid
	nextID    int
}

// NewClusterStore returns an empty store using cfg's thresholds.
func NewClusterStore(cfg Config) *ClusterStore {
	return &ClusterStore{cfg: cfg}
}

func validEmbedding(v []float32) bool {
	if tensor.L2Norm(v) <= 0.1 {
		return false
	}
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return false
		}
	}
	return true
}

// Centroids returns a snapshot of the current centroids.
func (s *ClusterStore) Centroids() []*Centroid {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Centroid, len(s.centroids))
	copy(out, s.centroids)
	return out
}

// Assign implements the online clustering rule: nearest centroid
// within ClusteringThreshold by cosine distance wins; otherwise a new
// centroid is created if the segment is long enough to anchor one, else
// the embedding is discarded (not an error — created is false and c is
// nil). label overrides the generated "Speaker N" id when non-empty.
// distance is the cosine distance to the assigned/nearest centroid (0 for
// a freshly created one, since it is its own first point).
func (s *ClusterStore) Assign(v []float32, segmentDurationS float64, label string) (c *Centroid, created bool, distance float64, err error) {
	if !validEmbedding(v) {
		return nil, false, 1, ErrInvalidEmbedding
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var best *Centroid
	bestDist := math.MaxFloat64
	for _, existing := range s.centroids {
		d := float64(tensor.CosineDistance(v, existing.Current))
		if d < bestDist {
			bestDist = d
			best = existing
		}
	}

	if best != nil && bestDist <= s.cfg.ClusteringThreshold {
		s.pushRaw(best, v)
		best.Current = tensor.Mean(best.Raw)
		best.Duration += float32(segmentDurationS)
		best.UpdateCount++
		best.UpdatedAt = time.Now()
		return best, false, bestDist, nil
	}

	if segmentDurationS >= s.cfg.MinSpeechDurationS {
		id := label
		if id == "" {
			s.nextID++
			id = fmt.Sprintf("Speaker %d", s.nextID)
		}
		now := time.Now()
		nc := &Centroid{
			ID:          id,
			Current:     append([]float32(nil), v...),
			Raw:         [][]float32{append([]float32(nil), v...)},
			Duration:    float32(segmentDurationS),
			UpdateCount: 1,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		s.centroids = append(s.centroids, nc)
		return nc, true, 0, nil
	}

	return nil, false, bestDist, nil
}

func (s *ClusterStore) pushRaw(c *Centroid, v []float32) {
	c.Raw = append(c.Raw, append([]float32(nil), v...))
	if len(c.Raw) > rawBufferCap {
		c.Raw = c.Raw[len(c.Raw)-rawBufferCap:]
	}
}

// Merge combines two centroids under a caller-supplied id, concatenating
// (and re-truncating) their raw FIFOs and summing durations.
func (s *ClusterStore) Merge(a, b *Centroid, mergedID string) *Centroid {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw := append(append([][]float32{}, a.Raw...), b.Raw...)
	if len(raw) > rawBufferCap {
		raw = raw[len(raw)-rawBufferCap:]
	}
	merged := &Centroid{
		ID:          mergedID,
		Current:     tensor.Mean(raw),
		Raw:         raw,
		Duration:    a.Duration + b.Duration,
		UpdateCount: a.UpdateCount + b.UpdateCount,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   time.Now(),
	}

	var out []*Centroid
	for _, c := range s.centroids {
		if c == a || c == b {
			continue
		}
		out = append(out, c)
	}
	s.centroids = append(out, merged)
	return merged
}
