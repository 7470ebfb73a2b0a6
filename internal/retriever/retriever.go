package retriever

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"echochat/internal/character"
	"echochat/internal/chunker"
	"echochat/internal/domain"
)

const languageInstruction = `

IMPORTANT: Always respond in the same language as the user's message. If the user writes in English, respond in English. If they write in Russian, respond in Russian. If they write in any other language, respond in that same language.`

// Retriever embeds queries and documents, drives the vector index, and
// assembles the final system prompt from persona plus retrieved context.
type Retriever struct {
	chunker       *chunker.WindowChunker
	embedder      domain.Embedder
	index         domain.Index
	persona       *character.Character
	knowledgeDir  string
	profilePath   string
	topK          int
	minSimilarity float64
}

// Config carries the retrieval parameters and corpus location.
type Config struct {
	KnowledgeDir  string
	ProfilePath   string
	TopK          int
	MinSimilarity float64
}

func New(ch *chunker.WindowChunker, embedder domain.Embedder, index domain.Index, persona *character.Character, cfg Config) *Retriever {
	return &Retriever{
		chunker:       ch,
		embedder:      embedder,
		index:         index,
		persona:       persona,
		knowledgeDir:  cfg.KnowledgeDir,
		profilePath:   cfg.ProfilePath,
		topK:          cfg.TopK,
		minSimilarity: cfg.MinSimilarity,
	}
}

// Search embeds the query and returns results above the configured
// similarity threshold.
func (r *Retriever) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	return r.SearchWith(ctx, query, r.topK, r.minSimilarity)
}

// SearchWith is Search with per-call topK and threshold overrides.
func (r *Retriever) SearchWith(ctx context.Context, query string, topK int, minSimilarity float64) ([]domain.SearchResult, error) {
	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return r.index.Query(vectors[0], topK, minSimilarity)
}

// BuildPrompt composes the system prompt: persona, the fixed
// language-mirroring instruction, then either a RELEVANT CONTEXT block
// or a plain in-character instruction. The ordering is the contract the
// language model depends on.
func (r *Retriever) BuildPrompt(userMessage string, results []domain.SearchResult) string {
	var b strings.Builder
	b.WriteString(r.persona.SystemPrompt())
	b.WriteString(languageInstruction)

	if len(results) > 0 {
		blocks := make([]string, len(results))
		for i, res := range results {
			blocks[i] = fmt.Sprintf("[From %s]: %s", res.Meta.Source, res.Text)
		}
		fmt.Fprintf(&b, "\n\nRELEVANT CONTEXT FROM YOUR KNOWLEDGE:\n%s\n\nUse this information to inform your response, but always stay in character as %s.",
			strings.Join(blocks, "\n\n"), r.persona.Name)
	} else {
		fmt.Fprintf(&b, "\n\nRespond to the user as %s, staying in character.", r.persona.Name)
	}
	return b.String()
}

// ExtractSources returns client-visible citations for the results.
func (r *Retriever) ExtractSources(results []domain.SearchResult) []domain.SourceRef {
	sources := make([]domain.SourceRef, 0, len(results))
	for _, res := range results {
		sources = append(sources, domain.SourceRef{
			File:      res.Meta.Source,
			Relevance: math.Round(res.Similarity*1000) / 1000,
		})
	}
	return sources
}

// IndexCorpus rebuilds the index from every .txt file in the knowledge
// directory except the persona profile. All chunks are embedded before
// the single Replace call, so any failure leaves the prior index intact.
func (r *Retriever) IndexCorpus(ctx context.Context) (domain.RebuildStats, error) {
	var stats domain.RebuildStats

	entries, err := os.ReadDir(r.knowledgeDir)
	if err != nil {
		return stats, fmt.Errorf("read knowledge dir: %w", err)
	}
	profileName := filepath.Base(r.profilePath)

	var chunks []domain.Chunk
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(name), ".txt") || name == profileName {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.knowledgeDir, name))
		if err != nil {
			return stats, fmt.Errorf("read %s: %w", name, err)
		}
		chunks = append(chunks, r.chunker.Chunk(string(data), name, nil)...)
		stats.FilesIndexed++
		stats.Sources = append(stats.Sources, name)
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	items := make([]domain.IndexedVector, len(chunks))
	if len(chunks) > 0 {
		vectors, err := r.embedder.Embed(ctx, texts)
		if err != nil {
			return stats, fmt.Errorf("embed corpus: %w", err)
		}
		if len(vectors) != len(chunks) {
			return stats, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
		}
		for i, ch := range chunks {
			items[i] = domain.IndexedVector{
				ID:        fmt.Sprintf("%s_chunk_%d", ch.Meta.Source, ch.Meta.ChunkID),
				Embedding: vectors[i],
				Text:      ch.Text,
				Meta:      ch.Meta,
			}
		}
	}
	if err := r.index.Replace(items); err != nil {
		return stats, fmt.Errorf("replace index: %w", err)
	}
	stats.TotalChunks = len(chunks)
	return stats, nil
}
