// Package index keeps content vectors in memory and answers nearest-neighbour
// queries by cosine similarity.
package index

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrEncoding = errors.New("text encoding failed")
	ErrEmptyKey = errors.New("index key is empty")
)

// Encoder turns text into a vector of a fixed dimension.
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Entry is one stored vector. Entries are replaced, never mutated.
type Entry struct {
	ID      string
	Key     string
	Vector  []float32
	Payload map[string]any
	seq     uint64
}

// Result is a scored search hit.
type Result struct {
	Key     string
	Score   float64
	Payload map[string]any
}

type Index struct {
	encoder Encoder
	dim     int

	mtx     sync.RWMutex
	entries map[string]*Entry
	nextSeq uint64
}

func New(encoder Encoder) (*Index, error) {
	if encoder == nil {
		return nil, errors.New("index requires an encoder")
	}
	dim := encoder.Dimension()
	if dim <= 0 {
		return nil, fmt.Errorf("encoder reports invalid dimension %d", dim)
	}

	return &Index{
		encoder: encoder,
		dim:     dim,
		entries: map[string]*Entry{},
	}, nil
}

// Dimension returns the vector length every entry has.
func (x *Index) Dimension() int {
	return x.dim
}

// Upsert encodes text and stores it under key, superseding any previous entry
// for the same key. When encoding fails the index is left untouched.
func (x *Index) Upsert(ctx context.Context, key string, text string, metadata map[string]any) error {
	if key == "" {
		return ErrEmptyKey
	}

	vector, err := x.encode(ctx, text)
	if err != nil {
		return err
	}

	entry := &Entry{
		ID:      uuid.New().String(),
		Key:     key,
		Vector:  vector,
		Payload: maps.Clone(metadata),
	}
	if entry.Payload == nil {
		entry.Payload = map[string]any{}
	}

	x.mtx.Lock()
	defer x.mtx.Unlock()

	// a re-ingested key keeps its original position for tie-breaks
	if prev, ok := x.entries[key]; ok {
		entry.seq = prev.seq
	} else {
		entry.seq = x.nextSeq
		x.nextSeq++
	}
	x.entries[key] = entry

	return nil
}

// Search returns up to limit entries ordered by descending cosine similarity
// to the query. Equal scores keep insertion order.
func (x *Index) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit < 1 || x.Len() == 0 {
		return []Result{}, nil
	}

	vector, err := x.encode(ctx, query)
	if err != nil {
		return nil, err
	}

	type scored struct {
		entry *Entry
		score float64
	}

	x.mtx.RLock()
	candidates := make([]scored, 0, len(x.entries))
	for _, e := range x.entries {
		candidates = append(candidates, scored{entry: e, score: CosineSimilarity(vector, e.Vector)})
	}
	x.mtx.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].entry.seq < candidates[j].entry.seq
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, Result{
			Key:     c.entry.Key,
			Score:   c.score,
			Payload: maps.Clone(c.entry.Payload),
		})
	}

	return results, nil
}

// Clear drops every entry.
func (x *Index) Clear() {
	x.mtx.Lock()
	defer x.mtx.Unlock()

	x.entries = map[string]*Entry{}
	x.nextSeq = 0
}

func (x *Index) Len() int {
	x.mtx.RLock()
	defer x.mtx.RUnlock()
	return len(x.entries)
}

func (x *Index) encode(ctx context.Context, text string) ([]float32, error) {
	vector, err := x.encoder.Encode(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncoding, err)
	}
	if len(vector) != x.dim {
		return nil, fmt.Errorf("%w: got %d dimensions, want %d", ErrEncoding, len(vector), x.dim)
	}

	cpy := make([]float32, len(vector))
	copy(cpy, vector)
	return cpy, nil
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Mismatched, empty or zero-norm vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
