package stream

import "sort"

// TimedToken is one decoded token carried across chunk boundaries.
type TimedToken struct {
	ID       int32
	Start    float64
	Duration float64
}

// MergePolicy selects which cross-chunk stitching strategy Merge
// applies: the two strategies are plain functions over timed-token
// slices, chosen by this value rather than by conditional compilation
// or a hidden fallback the caller can't observe.
type MergePolicy int

const (
	// PolicyContiguousThenLCS tries the longest contiguous overlap first
	// and falls back to LCS alignment, matching production behavior.
	PolicyContiguousThenLCS MergePolicy = iota
	// PolicyContiguousOnly never falls back; with no contiguous overlap,
	// cur is appended after prev unchanged.
	PolicyContiguousOnly
	// PolicyLCSOnly always aligns via LCS, skipping the contiguous search.
	PolicyLCSOnly
)

// maxScannedOverlap bounds every overlap search (duplicate-suffix guard,
// contiguous match, LCS window) to the last/first 12 tokens (maximum
// scanned overlap, default 12 tokens).
const maxScannedOverlap = 12

// Merge stitches cur onto the end of prev, applying the duplicate-suffix
// guard first and then the chosen MergePolicy over what remains.
func Merge(policy MergePolicy, prev, cur []TimedToken, punctuation map[int32]bool) []TimedToken {
	cur = dropDuplicateSuffix(prev, cur, punctuation)

	switch policy {
	case PolicyContiguousOnly:
		if merged, ok := mergeContiguous(prev, cur); ok {
			return merged
		}
		return append(append([]TimedToken{}, prev...), cur...)
	case PolicyLCSOnly:
		return mergeLCS(prev, cur)
	default:
		if merged, ok := mergeContiguous(prev, cur); ok {
			return merged
		}
		return mergeLCS(prev, cur)
	}
}

// dropDuplicateSuffix implements the duplicate-suffix guard: if
// the tail of prev and the head of cur share an identical-id run of at
// least 3 tokens (or just 1, if that token is in the punctuation set),
// the shared prefix is dropped from cur before any further merge.
func dropDuplicateSuffix(prev, cur []TimedToken, punctuation map[int32]bool) []TimedToken {
	maxK := len(prev)
	if len(cur) < maxK {
		maxK = len(cur)
	}
	if maxK > maxScannedOverlap {
		maxK = maxScannedOverlap
	}

	for k := maxK; k >= 1; k-- {
		if !idsEqual(prev[len(prev)-k:], cur[:k]) {
			continue
		}
		if k >= 3 || (k == 1 && punctuation[cur[0].ID]) {
			return cur[k:]
		}
	}
	return cur
}

// mergeContiguous finds the longest substring of token ids that is
// simultaneously a suffix of prev and a prefix of cur. ok is false if no
// such (non-empty) run exists.
func mergeContiguous(prev, cur []TimedToken) ([]TimedToken, bool) {
	maxK := len(prev)
	if len(cur) < maxK {
		maxK = len(cur)
	}
	if maxK > maxScannedOverlap {
		maxK = maxScannedOverlap
	}

	for k := maxK; k >= 1; k-- {
		if idsEqual(prev[len(prev)-k:], cur[:k]) {
			merged := append(append([]TimedToken{}, prev...), cur[k:]...)
			return merged, true
		}
	}
	return nil, false
}

// mergeLCS aligns the tail of prev and the head of cur (bounded to
// maxScannedOverlap tokens each) via longest common subsequence, using
// matched positions as anchors and interleaving
// unmatched tokens from both sides in timestamp order.
func mergeLCS(prev, cur []TimedToken) []TimedToken {
	overlapPrevStart := len(prev) - maxScannedOverlap
	if overlapPrevStart < 0 {
		overlapPrevStart = 0
	}
	overlapCurEnd := maxScannedOverlap
	if overlapCurEnd > len(cur) {
		overlapCurEnd = len(cur)
	}

	head := prev[:overlapPrevStart]
	prevOverlap := prev[overlapPrevStart:]
	curOverlap := cur[:overlapCurEnd]
	tail := cur[overlapCurEnd:]

	mp, mc := lcsIndices(prevOverlap, curOverlap)

	merged := append([]TimedToken{}, head...)
	merged = append(merged, interleaveByAnchors(prevOverlap, curOverlap, mp, mc)...)
	merged = append(merged, tail...)
	return merged
}

// lcsIndices returns the matched index pairs of the longest common
// subsequence of a and b by token id, in increasing order.
func lcsIndices(a, b []TimedToken) (mp, mc []int) {
	n, m := len(a), len(b)
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			switch {
			case a[i].ID == b[j].ID:
				dp[i][j] = dp[i+1][j+1] + 1
			case dp[i+1][j] >= dp[i][j+1]:
				dp[i][j] = dp[i+1][j]
			default:
				dp[i][j] = dp[i][j+1]
			}
		}
	}

	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i].ID == b[j].ID:
			mp = append(mp, i)
			mc = append(mc, j)
			i++
			j++
		case dp[i+1][j] >= dp[i][j+1]:
			i++
		default:
			j++
		}
	}
	return mp, mc
}

// interleaveByAnchors walks the matched (anchor) positions in order,
// emitting the unmatched tokens between each pair of anchors sorted by
// timestamp (so out-of-order contributions from either side still read
// as one monotone transcript), then the anchor token itself.
func interleaveByAnchors(prevSeg, curSeg []TimedToken, mp, mc []int) []TimedToken {
	var out []TimedToken
	pi, ci := 0, 0

	for k := 0; k <= len(mp); k++ {
		var pEnd, cEnd int
		if k < len(mp) {
			pEnd, cEnd = mp[k], mc[k]
		} else {
			pEnd, cEnd = len(prevSeg), len(curSeg)
		}

		bucket := append(append([]TimedToken{}, prevSeg[pi:pEnd]...), curSeg[ci:cEnd]...)
		sort.SliceStable(bucket, func(i, j int) bool { return bucket[i].Start < bucket[j].Start })
		out = append(out, bucket...)

		if k < len(mp) {
			out = append(out, prevSeg[mp[k]])
			pi, ci = mp[k]+1, mc[k]+1
		}
	}
	return out
}

func idsEqual(a, b []TimedToken) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}
