package model

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashModel is a local feature-hashing encoder. Each word (and each adjacent
// word pair) is hashed into one signed bucket and the vector is L2-normalized,
// so texts sharing vocabulary score close under cosine similarity. It needs no
// network access and always returns the same vector for the same text.
type HashModel struct {
	dimension int
}

func NewHashModel(config *ModelConfig) (*HashModel, error) {
	dim := config.dimension()
	if dim < 8 {
		return nil, fmt.Errorf("hash encoder dimension %d is too small", dim)
	}
	return &HashModel{dimension: dim}, nil
}

func (h *HashModel) Encode(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float64, h.dimension)
	words := tokenize(text)
	for i, w := range words {
		h.add(vec, w, 1)
		if i > 0 {
			h.add(vec, words[i-1]+" "+w, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, h.dimension)
	if norm == 0 {
		return out, nil
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

func (h *HashModel) add(vec []float64, feature string, weight float64) {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(feature))
	sum := hasher.Sum64()

	bucket := int(sum % uint64(h.dimension))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[bucket] += weight
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	words := fields[:0]
	for _, f := range fields {
		if _, stop := stopWords[f]; stop {
			continue
		}
		words = append(words, f)
	}
	return words
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "the": {}, "of": {}, "in": {}, "on": {}, "to": {},
	"is": {}, "it": {}, "by": {}, "for": {}, "with": {}, "as": {}, "at": {}, "from": {},
}

func (h *HashModel) Dimension() int {
	return h.dimension
}

func (h *HashModel) GetModelName() string {
	return fmt.Sprintf("hash:%d", h.dimension)
}

func (h *HashModel) Close() error {
	return nil
}

// HashFactory implements ModelFactory for the local encoder
type HashFactory struct{}

func (f *HashFactory) CreateModel(config *ModelConfig) (Encoder, error) {
	return NewHashModel(config)
}

func (f *HashFactory) GetSupportedModels() []string {
	return []string{"hash"}
}

func NewHashFactory() ModelFactory {
	return &HashFactory{}
}
