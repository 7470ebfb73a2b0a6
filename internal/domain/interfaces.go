package domain

import "context"

// Embedder converts text into fixed-length numeric vectors, one per
// input string, order-preserving.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Index stores embedding vectors and supports similarity search.
// Replace swaps the entire contents atomically with respect to
// concurrent Query and Count calls.
type Index interface {
	Replace(items []IndexedVector) error
	Query(vector []float64, topK int, minSimilarity float64) ([]SearchResult, error)
	Count() int
}

// ProviderMessage is the wire form of a chat turn sent to the LLM.
type ProviderMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider generates a reply for an ordered message list and an
// optional system prompt.
type Provider interface {
	Chat(ctx context.Context, messages []ProviderMessage, system string) (string, error)
}
