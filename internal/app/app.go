package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"echochat/internal/character"
	"echochat/internal/chunker"
	"echochat/internal/config"
	"echochat/internal/domain"
	"echochat/internal/embedding/local"
	"echochat/internal/embedding/openai"
	"echochat/internal/llm"
	"echochat/internal/retriever"
	"echochat/internal/session"
	"echochat/internal/vectorstore/bolt"
	"echochat/internal/vectorstore/memory"
)

// App owns every service instance. Handlers receive it explicitly;
// there is no package-level state.
type App struct {
	Config    *config.AppConfig
	Character *character.Character
	Retriever *retriever.Retriever
	Sessions  *session.Store
	Provider  domain.Provider
	Index     domain.Index
	Log       *slog.Logger

	closer func() error
}

// New assembles the application from configuration.
func New(cfg *config.AppConfig, logger *slog.Logger) (*App, error) {
	persona, err := character.LoadProfile(cfg.Paths.Profile)
	if err != nil {
		return nil, fmt.Errorf("load character profile: %w", err)
	}

	var embedder domain.Embedder
	switch cfg.Embedding.Type {
	case "local":
		embedder = local.New()
	case "openai":
		embedder, err = openai.NewClient(openai.Config{
			BaseURL:   cfg.Embedding.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedding.OpenAI.APIKeyEnv,
			Model:     cfg.Embedding.OpenAI.Model,
			Timeout:   time.Duration(cfg.Embedding.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("init embedder: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown embedder type %q", cfg.Embedding.Type)
	}

	var index domain.Index
	closer := func() error { return nil }
	switch cfg.Index.Type {
	case "memory":
		index = memory.New()
	case "bolt":
		store, err := bolt.Open(cfg.Index.Path)
		if err != nil {
			return nil, fmt.Errorf("open index: %w", err)
		}
		index = store
		closer = store.Close
	default:
		return nil, fmt.Errorf("unknown index type %q", cfg.Index.Type)
	}

	ch, err := chunker.New(cfg.Embedding.ChunkSize, cfg.Embedding.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	sessions, err := session.NewStore(cfg.Paths.SessionsDir)
	if err != nil {
		return nil, err
	}

	provider, err := llm.NewClient(llm.Config{
		BaseURL:   cfg.LLM.APIURL,
		APIKeyEnv: cfg.LLM.APIKeyEnv,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
		Timeout:   time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("init llm provider: %w", err)
	}

	return &App{
		Config:    cfg,
		Character: persona,
		Retriever: retriever.New(ch, embedder, index, persona, retriever.Config{
			KnowledgeDir:  cfg.Paths.KnowledgeDir,
			ProfilePath:   cfg.Paths.Profile,
			TopK:          cfg.RAG.TopK,
			MinSimilarity: cfg.RAG.MinSimilarity,
		}),
		Sessions: sessions,
		Provider: provider,
		Index:    index,
		Log:      logger,
		closer:   closer,
	}, nil
}

// Bootstrap indexes the knowledge corpus when the index is empty.
func (a *App) Bootstrap(ctx context.Context) error {
	if a.Index.Count() > 0 {
		a.Log.Info("index already populated", "vectors", a.Index.Count())
		return nil
	}
	stats, err := a.Rebuild(ctx)
	if err != nil {
		return err
	}
	a.Log.Info("indexed knowledge corpus",
		"files", stats.FilesIndexed, "chunks", stats.TotalChunks)
	return nil
}

// Close releases the index database.
func (a *App) Close() error {
	return a.closer()
}

// Rebuild reindexes the knowledge corpus from scratch.
func (a *App) Rebuild(ctx context.Context) (domain.RebuildStats, error) {
	started := time.Now()
	stats, err := a.Retriever.IndexCorpus(ctx)
	if err != nil {
		a.Log.Error("corpus rebuild failed", "error", err)
		return stats, err
	}
	a.Log.Info("corpus rebuilt",
		"files", stats.FilesIndexed, "chunks", stats.TotalChunks,
		"elapsed", time.Since(started))
	return stats, nil
}

// ChatResult is the outcome of one chat turn.
type ChatResult struct {
	Response  string
	SessionID string
	Sources   []domain.SourceRef
	Timestamp string
}

// Chat runs one conversation turn: retrieve context, assemble the
// prompt, generate a reply, and persist the updated session. The whole
// read-modify-write runs under the session's lock, so concurrent turns
// on one conversation are serialized and none is lost.
func (a *App) Chat(ctx context.Context, sessionID, message string) (*ChatResult, error) {
	results, err := a.Retriever.Search(ctx, message)
	if err != nil {
		return nil, err
	}
	system := a.Retriever.BuildPrompt(message, results)

	sess, err := a.Sessions.GetOrCreate(sessionID)
	if err != nil {
		return nil, err
	}
	unlock := a.Sessions.Lock(sess.ID)
	defer unlock()
	if sessionID != "" && sess.ID == sessionID {
		// reload under the lock in case another turn just saved
		if fresh, err := a.Sessions.GetOrCreate(sessionID); err == nil {
			sess = fresh
		} else {
			return nil, err
		}
	}

	history := sess.Messages
	if max := a.Config.RAG.MaxHistoryMessages; len(history) > max {
		history = history[len(history)-max:]
	}
	msgs := make([]domain.ProviderMessage, 0, len(history)+1)
	for _, m := range history {
		msgs = append(msgs, domain.ProviderMessage{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, domain.ProviderMessage{Role: domain.RoleUser, Content: message})

	reply, err := a.Provider.Chat(ctx, msgs, system)
	if err != nil {
		return nil, err
	}

	a.Sessions.Append(sess, domain.RoleUser, message)
	last := a.Sessions.Append(sess, domain.RoleAssistant, reply)
	a.Sessions.Trim(sess, a.Config.RAG.MaxTokenBudget)
	if err := a.Sessions.Save(sess); err != nil {
		return nil, err
	}

	return &ChatResult{
		Response:  reply,
		SessionID: sess.ID,
		Sources:   a.Retriever.ExtractSources(results),
		Timestamp: last.Timestamp,
	}, nil
}
