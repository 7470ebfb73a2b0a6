package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echochat/internal/app"
	"echochat/internal/character"
	"echochat/internal/chunker"
	"echochat/internal/config"
	"echochat/internal/domain"
	"echochat/internal/embedding/local"
	"echochat/internal/retriever"
	"echochat/internal/session"
	"echochat/internal/vectorstore/memory"
)

type echoProvider struct{}

func (echoProvider) Chat(_ context.Context, msgs []domain.ProviderMessage, _ string) (string, error) {
	return "echo: " + msgs[len(msgs)-1].Content, nil
}

func newTestHandler(t *testing.T) (http.Handler, *app.App) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "profile.txt"), []byte("NAME: Elara\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bio.txt"),
		[]byte("Elara catalogued storms in the lighthouse district."), 0o644))

	cfg, err := config.Load(filepath.Join(dir, "no-config.yaml"))
	require.NoError(t, err)
	cfg.Paths.Profile = filepath.Join(dir, "profile.txt")
	cfg.Paths.KnowledgeDir = dir
	cfg.Paths.SessionsDir = filepath.Join(dir, "sessions")
	cfg.RAG.MinSimilarity = 0.05

	persona, err := character.LoadProfile(cfg.Paths.Profile)
	require.NoError(t, err)
	ch, err := chunker.New(cfg.Embedding.ChunkSize, cfg.Embedding.ChunkOverlap)
	require.NoError(t, err)
	sessions, err := session.NewStore(cfg.Paths.SessionsDir)
	require.NoError(t, err)
	idx := memory.New()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	a := &app.App{
		Config:    cfg,
		Character: persona,
		Retriever: retriever.New(ch, local.New(), idx, persona, retriever.Config{
			KnowledgeDir:  cfg.Paths.KnowledgeDir,
			ProfilePath:   cfg.Paths.Profile,
			TopK:          cfg.RAG.TopK,
			MinSimilarity: cfg.RAG.MinSimilarity,
		}),
		Sessions: sessions,
		Provider: echoProvider{},
		Index:    idx,
		Log:      logger,
	}
	require.NoError(t, a.Bootstrap(context.Background()))
	return New(a, logger).Handler(), a
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, true, out["vector_db_initialized"])
	assert.Equal(t, true, out["character_loaded"])
}

func TestCharacter(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h, http.MethodGet, "/api/character", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "Elara", out["name"])
	assert.NotEmpty(t, out["personality"])
}

func TestChatEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h, http.MethodPost, "/api/chat", map[string]string{"message": "hello storms"})
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Response  string             `json:"response"`
		SessionID string             `json:"session_id"`
		Sources   []domain.SourceRef `json:"sources"`
		Timestamp string             `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "echo: hello storms", out.Response)
	assert.NotEmpty(t, out.SessionID)
	assert.NotEmpty(t, out.Timestamp)

	// continuing the same session works through the API
	rec = doJSON(t, h, http.MethodPost, "/api/chat",
		map[string]string{"message": "more", "session_id": out.SessionID})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestChatValidation(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/api/chat", map[string]string{"message": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/chat",
		map[string]string{"message": "hi", "session_id": "../etc/passwd"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewBufferString("{broken"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionEndpoints(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h, http.MethodPost, "/api/chat", map[string]string{"message": "hi"})
	require.Equal(t, http.StatusOK, rec.Code)
	var chat struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chat))

	rec = doJSON(t, h, http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Sessions []domain.SessionSummary `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, chat.SessionID, list.Sessions[0].ID)
	assert.Equal(t, 2, list.Sessions[0].MessageCount)

	rec = doJSON(t, h, http.MethodGet, "/api/sessions/"+chat.SessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sess domain.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Len(t, sess.Messages, 2)

	rec = doJSON(t, h, http.MethodDelete, "/api/sessions/"+chat.SessionID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/api/sessions/"+chat.SessionID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/sessions/"+chat.SessionID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSessionCorruptRecord(t *testing.T) {
	h, a := newTestHandler(t)
	bad := filepath.Join(a.Config.Paths.SessionsDir, "brokenrecord.json")
	require.NoError(t, os.WriteFile(bad, []byte("{oops"), 0o644))

	rec := doJSON(t, h, http.MethodGet, "/api/sessions/brokenrecord", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "damaged")
}

func TestRebuildEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h, http.MethodPost, "/api/knowledge/rebuild", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		FilesIndexed int      `json:"files_indexed"`
		TotalChunks  int      `json:"total_chunks"`
		Sources      []string `json:"sources"`
		Message      string   `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 1, out.FilesIndexed)
	assert.Equal(t, 1, out.TotalChunks)
	assert.Equal(t, []string{"bio.txt"}, out.Sources)
	assert.Equal(t, "Indexed 1 files with 1 chunks", out.Message)
}
