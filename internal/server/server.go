package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"echochat/internal/app"
	"echochat/internal/domain"
	"echochat/internal/llm"
)

// Server exposes the chat application over a JSON HTTP API.
type Server struct {
	app *app.App
	log *slog.Logger
}

func New(a *app.App, logger *slog.Logger) *Server {
	return &Server{app: a, log: logger}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/character", s.handleCharacter)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /api/knowledge/rebuild", s.handleRebuild)
	return s.logRequests(mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info("request",
			"method", r.Method, "path", r.URL.Path, "elapsed", time.Since(started))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":                "ok",
		"vector_db_initialized": s.app.Index.Count() > 0,
		"character_loaded":      s.app.Character != nil,
	})
}

func (s *Server) handleCharacter(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Character)
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message must not be empty")
		return
	}
	if req.SessionID != "" && !validSessionID(req.SessionID) {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	res, err := s.app.Chat(r.Context(), req.SessionID, req.Message)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"response":   res.Response,
		"session_id": res.SessionID,
		"sources":    res.Sources,
		"timestamp":  res.Timestamp,
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.app.Sessions.List()
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": summaries})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !validSessionID(id) {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	sess, err := s.app.Sessions.Load(id)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !validSessionID(id) {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	deleted, err := s.app.Sessions.Delete(id)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "session_id": id})
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	stats, err := s.app.Rebuild(r.Context())
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"files_indexed": stats.FilesIndexed,
		"total_chunks":  stats.TotalChunks,
		"sources":       stats.Sources,
		"message":       formatRebuildMessage(stats),
	})
}

func formatRebuildMessage(stats domain.RebuildStats) string {
	return fmt.Sprintf("Indexed %d files with %d chunks", stats.FilesIndexed, stats.TotalChunks)
}

// writeAppError maps domain errors onto status codes.
func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	var provErr *llm.ProviderError
	var shapeErr *domain.ShapeError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, domain.ErrCorruptState):
		s.log.Error("corrupt persisted state", "error", err)
		writeError(w, http.StatusInternalServerError, "persisted record is damaged")
	case errors.As(err, &provErr):
		s.log.Error("provider request failed", "error", err)
		writeError(w, http.StatusBadGateway, "language model request failed")
	case errors.As(err, &shapeErr):
		s.log.Error("embedding shape mismatch", "error", err)
		writeError(w, http.StatusInternalServerError, "embedding dimension mismatch; rebuild the index")
	default:
		s.log.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// validSessionID keeps ids safe for use as file names.
func validSessionID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
