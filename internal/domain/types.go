package domain

// Message roles accepted by the chat pipeline and the LLM provider.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Metadata carries the positional and provenance fields attached to every
// indexed chunk. Extra holds caller-supplied passthrough values that the
// core never interprets.
type Metadata struct {
	Source  string            `json:"source"`
	ChunkID int               `json:"chunk_id"`
	Start   int               `json:"start"`
	End     int               `json:"end"`
	Extra   map[string]string `json:"extra,omitempty"`
}

// Chunk is a bounded substring of a source document, the unit of indexing.
type Chunk struct {
	Text string
	Meta Metadata
}

// IndexedVector is one (embedding, text, metadata) triple stored in the
// vector index. ID is unique within the index; re-adding the same ID
// overwrites the previous entry.
type IndexedVector struct {
	ID        string    `json:"id"`
	Embedding []float64 `json:"embedding"`
	Text      string    `json:"text"`
	Meta      Metadata  `json:"metadata"`
}

// SearchResult is a retrieval hit. Similarity is cosine similarity
// rounded to three decimals.
type SearchResult struct {
	Text       string
	Meta       Metadata
	Similarity float64
}

// SourceRef is a client-visible citation extracted from a search result.
type SourceRef struct {
	File      string  `json:"file"`
	Relevance float64 `json:"relevance"`
}

// Message is a single chat turn. Immutable once created.
type Message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Session is one conversation's history. Owned exclusively by the
// session store; one persisted record per session.
type Session struct {
	ID        string    `json:"session_id"`
	CreatedAt string    `json:"created_at"`
	Messages  []Message `json:"messages"`
}

// SessionSummary is the listing form of a session.
type SessionSummary struct {
	ID           string `json:"session_id"`
	CreatedAt    string `json:"created_at"`
	MessageCount int    `json:"message_count"`
}

// RebuildStats reports the outcome of a full corpus reindex.
type RebuildStats struct {
	FilesIndexed int      `json:"files_indexed"`
	TotalChunks  int      `json:"total_chunks"`
	Sources      []string `json:"sources"`
}
