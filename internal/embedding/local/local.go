package local

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"echochat/internal/domain"
)

const defaultDimension = 256

// Embedder is a deterministic offline embedder: token counts hashed
// into a fixed number of buckets, L2-normalized. No network, no fitted
// vocabulary, so vectors stay comparable across process restarts.
// Useful for tests and for running without an embeddings provider.
type Embedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
}

func New() *Embedder {
	return &Embedder{
		dimension:    defaultDimension,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
	}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "local" }

// Embed returns one vector per input text, order-preserving.
func (e *Embedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vectors[i] = e.embedOne(text)
	}
	return vectors, nil
}

func (e *Embedder) embedOne(text string) []float64 {
	v := make([]float64, e.dimension)
	tokens := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	for _, tok := range tokens {
		h := fnv.New64a()
		h.Write([]byte(tok))
		v[h.Sum64()%uint64(e.dimension)]++
	}
	// L2-normalize so cosine scores stay in a comparable range
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	if sum > 0 {
		n := math.Sqrt(sum)
		for i := range v {
			v[i] /= n
		}
	}
	return v
}

var _ domain.Embedder = (*Embedder)(nil)
