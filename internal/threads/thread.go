// Package threads stores conversation threads. Each thread serializes to
// its own JSON file under <project>/.jrdev/threads/.
package threads

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"jrdev/internal/llm"
	"jrdev/internal/logging"

	"github.com/google/uuid"
)

// Thread names are short and filesystem-safe.
var nameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{3,20}$`)

// Thread is one persistent conversation with its staged and embedded
// context files. A path lives in exactly one of the two sets: staged
// until a successful send, embedded afterwards. Writes to one thread are
// serialized by its own lock, since a background send and the
// interactive loop can touch the same thread at once.
type Thread struct {
	mu sync.Mutex

	ID            string          `json:"id"`
	Messages      []llm.Message   `json:"messages"`
	StagedFiles   map[string]bool `json:"staged_files"`
	EmbeddedFiles map[string]bool `json:"embedded_files"`
	InputTokens   int             `json:"input_tokens"`
	OutputTokens  int             `json:"output_tokens"`
	CreatedAt     time.Time       `json:"created_at"`
	LastModified  time.Time       `json:"last_modified"`
}

func newThread(id string) *Thread {
	now := time.Now().UTC()
	return &Thread{
		ID:            id,
		StagedFiles:   make(map[string]bool),
		EmbeddedFiles: make(map[string]bool),
		CreatedAt:     now,
		LastModified:  now,
	}
}

// AppendMessage adds a finalized message.
func (t *Thread) AppendMessage(role llm.Role, content string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Messages = append(t.Messages, llm.Message{Role: role, Content: content})
	t.LastModified = time.Now().UTC()
}

// AppendToLastAssistant grows the trailing assistant message with a
// streamed chunk, creating it on the first chunk.
func (t *Thread) AppendToLastAssistant(chunk string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.Messages)
	if n == 0 || t.Messages[n-1].Role != llm.RoleAssistant {
		t.Messages = append(t.Messages, llm.Message{Role: llm.RoleAssistant})
		n++
	}
	t.Messages[n-1].Content += chunk
	t.LastModified = time.Now().UTC()
}

// History returns a copy of the messages so far.
func (t *Thread) History() []llm.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]llm.Message, len(t.Messages))
	copy(out, t.Messages)
	return out
}

// ClearMessages drops the message history.
func (t *Thread) ClearMessages() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Messages = nil
	t.LastModified = time.Now().UTC()
}

// StageFile queues a path for the next send. Already embedded paths are
// not re-staged.
func (t *Thread) StageFile(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.EmbeddedFiles[path] || t.StagedFiles[path] {
		return false
	}
	t.StagedFiles[path] = true
	t.LastModified = time.Now().UTC()
	return true
}

// UnstageFile removes a queued path.
func (t *Thread) UnstageFile(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.StagedFiles, path)
	t.LastModified = time.Now().UTC()
}

// MarkEmbedded moves the given paths from staged to embedded after a
// successful send.
func (t *Thread) MarkEmbedded(paths []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range paths {
		delete(t.StagedFiles, p)
		t.EmbeddedFiles[p] = true
	}
	t.LastModified = time.Now().UTC()
}

// ClearContext empties both file sets.
func (t *Thread) ClearContext() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.StagedFiles = make(map[string]bool)
	t.EmbeddedFiles = make(map[string]bool)
	t.LastModified = time.Now().UTC()
}

// Staged returns the queued paths in sorted order.
func (t *Thread) Staged() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.StagedFiles))
	for p := range t.StagedFiles {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Embedded returns the already-sent paths in sorted order.
func (t *Thread) Embedded() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.EmbeddedFiles))
	for p := range t.EmbeddedFiles {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// EmbeddedCopy returns a copy of the embedded set for message builds.
func (t *Thread) EmbeddedCopy() map[string]bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]bool, len(t.EmbeddedFiles))
	for p, v := range t.EmbeddedFiles {
		out[p] = v
	}
	return out
}

// Stats returns the message and file-set sizes.
func (t *Thread) Stats() (messages, staged, embedded int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Messages), len(t.StagedFiles), len(t.EmbeddedFiles)
}

// encode marshals the thread under its lock so a concurrent send cannot
// mutate the maps mid-serialization.
func (t *Thread) encode() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return json.MarshalIndent(t, "", "  ")
}

// Store manages thread persistence and the active-thread pointer.
// Operations on a single thread are serialized by the store lock.
type Store struct {
	mu      sync.Mutex
	dir     string
	threads map[string]*Thread
	current string
}

// NewStore loads every thread file under dir and ensures a default
// current thread exists.
func NewStore(dir string) (*Store, error) {
	s := &Store{dir: dir, threads: make(map[string]*Thread)}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create threads dir: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read threads dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		t, err := s.read(filepath.Join(dir, e.Name()))
		if err != nil {
			logging.Threads("skipping unreadable thread file %s: %v", e.Name(), err)
			continue
		}
		s.threads[t.ID] = t
	}

	if len(s.threads) == 0 {
		id, err := s.Create("main")
		if err != nil {
			return nil, err
		}
		s.current = id
	} else {
		// Resume the most recently touched thread.
		var latest *Thread
		for _, t := range s.threads {
			if latest == nil || t.LastModified.After(latest.LastModified) {
				latest = t
			}
		}
		s.current = latest.ID
	}
	return s, nil
}

func (s *Store) read(path string) (*Thread, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var t Thread
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	if t.StagedFiles == nil {
		t.StagedFiles = make(map[string]bool)
	}
	if t.EmbeddedFiles == nil {
		t.EmbeddedFiles = make(map[string]bool)
	}
	return &t, nil
}

// Create makes a new thread. An empty id gets a generated one; a given
// id must match the name rule and be free.
func (s *Store) Create(id string) (string, error) {
	if id == "" {
		id = uuid.NewString()[:8]
	} else if !nameRe.MatchString(id) {
		return "", fmt.Errorf("thread name must be 3-20 chars of [A-Za-z0-9_-]: %q", id)
	}
	if _, exists := s.threads[id]; exists {
		return "", fmt.Errorf("thread %s already exists", id)
	}
	t := newThread(id)
	s.threads[id] = t
	if err := s.persist(t); err != nil {
		return "", err
	}
	logging.Threads("created thread %s", id)
	return id, nil
}

// CreateThread is the locked form of Create.
func (s *Store) CreateThread(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Create(id)
}

// Switch changes the current thread.
func (s *Store) Switch(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[id]; !ok {
		return fmt.Errorf("thread %s not found", id)
	}
	s.current = id
	logging.Threads("switched to thread %s", id)
	return nil
}

// Get returns a thread by id.
func (s *Store) Get(id string) (*Thread, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[id]
	return t, ok
}

// Current returns the active thread.
func (s *Store) Current() *Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threads[s.current]
}

// Rename gives a thread a new id, enforcing the name rule and rejecting
// collisions with existing ids.
func (s *Store) Rename(oldID, newID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !nameRe.MatchString(newID) {
		return fmt.Errorf("thread name must be 3-20 chars of [A-Za-z0-9_-]: %q", newID)
	}
	t, ok := s.threads[oldID]
	if !ok {
		return fmt.Errorf("thread %s not found", oldID)
	}
	if _, taken := s.threads[newID]; taken {
		return fmt.Errorf("thread %s already exists", newID)
	}

	t.mu.Lock()
	t.ID = newID
	t.LastModified = time.Now().UTC()
	t.mu.Unlock()
	delete(s.threads, oldID)
	s.threads[newID] = t
	if err := s.persist(t); err != nil {
		return err
	}
	if err := os.Remove(s.path(oldID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove old thread file: %w", err)
	}
	if s.current == oldID {
		s.current = newID
	}
	logging.Threads("renamed thread %s to %s", oldID, newID)
	return nil
}

// Delete removes a thread and its file. The current thread cannot be
// deleted.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == s.current {
		return fmt.Errorf("cannot delete the active thread")
	}
	if _, ok := s.threads[id]; !ok {
		return fmt.Errorf("thread %s not found", id)
	}
	delete(s.threads, id)
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove thread file: %w", err)
	}
	return nil
}

// Save persists a thread to disk.
func (s *Store) Save(t *Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist(t)
}

func (s *Store) persist(t *Thread) error {
	data, err := t.encode()
	if err != nil {
		return fmt.Errorf("marshal thread %s: %w", t.ID, err)
	}
	if err := os.WriteFile(s.path(t.ID), data, 0o644); err != nil {
		return fmt.Errorf("write thread %s: %w", t.ID, err)
	}
	return nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// List returns all thread ids, current first, the rest sorted.
func (s *Store) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rest []string
	for id := range s.threads {
		if id != s.current {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append([]string{s.current}, rest...)
}
