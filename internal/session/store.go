package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"echochat/internal/domain"
)

// timeLayout matches the persisted format: UTC with microseconds.
// Lexicographic order equals chronological order, which List relies on.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Store persists one JSON document per session under dir. Mutating
// flows on the same session id are serialized through a per-id lock
// table; different ids never contend.
type Store struct {
	dir   string
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates the sessions directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	return &Store{dir: dir, locks: map[string]*sync.Mutex{}}, nil
}

// Lock acquires the mutex for one session id and returns its unlock
// function. A read-modify-write flow (GetOrCreate, Append, Trim, Save)
// must run under this lock; Load and Delete lock internally and must
// not be called while the same id's lock is held.
func (s *Store) Lock(id string) (unlock func()) {
	mu := s.lockFor(id)
	mu.Lock()
	return mu.Unlock
}

func (s *Store) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[id] = mu
	}
	return mu
}

// GetOrCreate loads the session with the given id, or returns a fresh
// session (new uuid, current timestamp) when id is empty or unknown.
// A damaged record is an error, not a fresh session.
func (s *Store) GetOrCreate(id string) (*domain.Session, error) {
	if id != "" {
		sess, err := s.read(id)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return &domain.Session{
		ID:        uuid.NewString(),
		CreatedAt: now(),
	}, nil
}

// Append adds a message with the current UTC timestamp and returns it.
// Prior messages are never touched.
func (s *Store) Append(sess *domain.Session, role, content string) domain.Message {
	msg := domain.Message{Role: role, Content: content, Timestamp: now()}
	sess.Messages = append(sess.Messages, msg)
	return msg
}

// Trim evicts whole messages from the front until the estimated token
// count (total characters / 4) fits maxTokens. Never reorders and never
// truncates message content.
func (s *Store) Trim(sess *domain.Session, maxTokens int) {
	budget := maxTokens * 4
	total := 0
	for _, m := range sess.Messages {
		total += len(m.Content)
	}
	for len(sess.Messages) > 0 && total > budget {
		total -= len(sess.Messages[0].Content)
		sess.Messages = sess.Messages[1:]
	}
}

// Save persists the full session state, overwriting any prior record.
func (s *Store) Save(sess *domain.Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(sess.ID), data, 0o644)
}

// Load reads the session with the given id.
func (s *Store) Load(id string) (*domain.Session, error) {
	defer s.Lock(id)()
	return s.read(id)
}

func (s *Store) read(id string) (*domain.Session, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("session %s: %w: %v", id, domain.ErrCorruptState, err)
	}
	if sess.ID == "" {
		return nil, fmt.Errorf("session %s: %w: missing session_id", id, domain.ErrCorruptState)
	}
	return &sess, nil
}

// Delete removes a session record. Returns true if it existed.
func (s *Store) Delete(id string) (bool, error) {
	defer s.Lock(id)()
	err := os.Remove(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns summaries of all sessions, newest first.
func (s *Store) List() ([]domain.SessionSummary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	summaries := make([]domain.SessionSummary, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		sess, err := s.read(strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, domain.SessionSummary{
			ID:           sess.ID,
			CreatedAt:    sess.CreatedAt,
			MessageCount: len(sess.Messages),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt > summaries[j].CreatedAt
	})
	return summaries, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func now() string {
	return time.Now().UTC().Format(timeLayout)
}
