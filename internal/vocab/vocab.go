// Package vocab loads the token id to surface string side table and
// detokenizes decoded id sequences into text, reading the JSON
// vocabulary format shipped with Parakeet TDT ONNX exports.
package vocab

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Vocabulary maps token ids to their surface string.
type Vocabulary struct {
	tokens map[int32]string
}

// Load reads a JSON object of the form {"0": "<blk>", "1": "▁the", ...}
// from path and returns a Vocabulary.
func Load(path string) (*Vocabulary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: read %s: %w", path, err)
	}

	var byString map[string]string
	if err := json.Unmarshal(raw, &byString); err != nil {
		return nil, fmt.Errorf("vocab: parse %s: %w", path, err)
	}

	tokens := make(map[int32]string, len(byString))
	for k, v := range byString {
		id, err := strconv.ParseInt(k, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("vocab: non-integer token id %q: %w", k, err)
		}
		tokens[int32(id)] = v
	}
	return &Vocabulary{tokens: tokens}, nil
}

// FromMap builds a Vocabulary directly from an id->string map, mainly
// for tests and for callers that already hold the table in memory.
func FromMap(tokens map[int32]string) *Vocabulary {
	cp := make(map[int32]string, len(tokens))
	for k, v := range tokens {
		cp[k] = v
	}
	return &Vocabulary{tokens: cp}
}

// Len returns the vocabulary size.
func (v *Vocabulary) Len() int { return len(v.tokens) }

// Token returns the surface string for id, or "" and false if unknown.
func (v *Vocabulary) Token(id int32) (string, bool) {
	s, ok := v.tokens[id]
	return s, ok
}

// Detokenize joins the decoded token ids into human-readable text:
// unknown ids and the literal "<...>" special tokens are dropped, the
// SentencePiece word-boundary marker "▁" becomes a space, and the
// result is trimmed of leading/trailing whitespace.
func (v *Vocabulary) Detokenize(ids []int32) string {
	var parts []string
	for _, id := range ids {
		tok, ok := v.Token(id)
		if !ok || tok == "" {
			continue
		}
		if strings.HasPrefix(tok, "<") && strings.HasSuffix(tok, ">") {
			continue
		}
		parts = append(parts, tok)
	}
	text := strings.Join(parts, "")
	text = strings.ReplaceAll(text, "▁", " ")
	return strings.TrimSpace(text)
}
