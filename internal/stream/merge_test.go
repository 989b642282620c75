package stream

import (
	"reflect"
	"testing"
)

func tok(id int32, start float64) TimedToken {
	return TimedToken{ID: id, Start: start, Duration: 0.08}
}

func TestMergeContiguousOverlapDropsDuplicatePrefix(t *testing.T) {
	prev := []TimedToken{tok(1, 0), tok(2, 1), tok(3, 2), tok(10, 3), tok(11, 4), tok(12, 5)}
	cur := []TimedToken{tok(10, 9), tok(11, 10), tok(12, 11), tok(20, 12)}

	merged := Merge(PolicyContiguousThenLCS, prev, cur, nil)

	want := []int32{1, 2, 3, 10, 11, 12, 20}
	if ids := idsOf(merged); !reflect.DeepEqual(ids, want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
}

func TestMergeNoOverlapFallsBackToLCS(t *testing.T) {
	prev := []TimedToken{tok(1, 0), tok(2, 1), tok(3, 2)}
	cur := []TimedToken{tok(2, 2.5), tok(4, 3)}

	merged := Merge(PolicyContiguousThenLCS, prev, cur, nil)

	// "2" is the LCS anchor; everything else preserved in timestamp order.
	ids := idsOf(merged)
	foundAnchor := false
	for _, id := range ids {
		if id == 2 {
			foundAnchor = true
		}
	}
	if !foundAnchor {
		t.Fatalf("expected anchor token 2 present in %v", ids)
	}
	if len(ids) != 4 {
		t.Fatalf("expected 4 tokens (1,2,3,4), got %v", ids)
	}
}

func TestDropDuplicateSuffixRequiresThreeUnlessPunctuation(t *testing.T) {
	prev := []TimedToken{tok(5, 0), tok(6, 1)}
	cur := []TimedToken{tok(6, 1.5), tok(7, 2)}

	// Only a 1-token overlap ("6"), not punctuation: guard must not drop it.
	out := dropDuplicateSuffix(prev, cur, nil)
	if len(out) != 2 {
		t.Fatalf("expected no drop for non-punctuation 1-token overlap, got %v", idsOf(out))
	}

	// Same overlap, but "6" is registered as punctuation: guard drops it.
	out = dropDuplicateSuffix(prev, cur, map[int32]bool{6: true})
	if len(out) != 1 || out[0].ID != 7 {
		t.Fatalf("expected punctuation-triggered drop leaving [7], got %v", idsOf(out))
	}
}

func TestDropDuplicateSuffixThreeTokenRun(t *testing.T) {
	prev := []TimedToken{tok(1, 0), tok(2, 1), tok(3, 2)}
	cur := []TimedToken{tok(1, 2), tok(2, 3), tok(3, 4), tok(9, 5)}

	out := dropDuplicateSuffix(prev, cur, nil)
	if len(out) != 1 || out[0].ID != 9 {
		t.Fatalf("expected 3-token run dropped leaving [9], got %v", idsOf(out))
	}
}

func idsOf(tokens []TimedToken) []int32 {
	ids := make([]int32, len(tokens))
	for i, tk := range tokens {
		ids[i] = tk.ID
	}
	return ids
}
