package rag

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/spigell/fitcheck/internal/ai"
)

const defaultHashDim = 256

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// HashEmbedder returns deterministic bag-of-words vectors. It needs no
// credentials and is used offline and in tests.
type HashEmbedder struct {
	Dim int
}

var _ ai.Embedder = (*HashEmbedder)(nil)

func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = defaultHashDim
	}
	return &HashEmbedder{Dim: dim}
}

func (e *HashEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *HashEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

func (e *HashEmbedder) Model() string {
	return "hash"
}

func (e *HashEmbedder) vector(text string) []float32 {
	dim := e.Dim
	if dim <= 0 {
		dim = defaultHashDim
	}
	v := make([]float32, dim)
	for _, feature := range features(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(feature))
		v[h.Sum32()%uint32(dim)]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

// features yields lowercase words, plus rune bigrams for words written in
// scripts that do not separate words with spaces.
func features(text string) []string {
	var out []string
	for _, word := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if !hasWideRunes(word) {
			out = append(out, word)
			continue
		}
		runes := []rune(word)
		if len(runes) == 1 {
			out = append(out, word)
			continue
		}
		for i := 0; i+1 < len(runes); i++ {
			out = append(out, string(runes[i:i+2]))
		}
	}
	return out
}

func hasWideRunes(word string) bool {
	for _, r := range word {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana) {
			return true
		}
	}
	return false
}
