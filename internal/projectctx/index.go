package projectctx

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const indexFile = "file_index.json"

// IndexEntry records one summarized file.
type IndexEntry struct {
	SummaryPath   string    `json:"summary_path"`
	SourceHash    string    `json:"source_hash"`
	LastIndexedAt time.Time `json:"last_indexed_at"`
}

// Index maps project-relative paths to their summary and content hash.
// A file is outdated when its current hash differs from SourceHash.
type Index struct {
	mu      sync.Mutex
	root    string
	dir     string
	entries map[string]IndexEntry
}

// LoadIndex reads the index from <dir>/file_index.json, starting empty
// when the file does not exist.
func LoadIndex(root, dir string) (*Index, error) {
	idx := &Index{root: root, dir: dir, entries: make(map[string]IndexEntry)}
	data, err := os.ReadFile(filepath.Join(dir, indexFile))
	if os.IsNotExist(err) {
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read context index: %w", err)
	}
	if err := json.Unmarshal(data, &idx.entries); err != nil {
		return nil, fmt.Errorf("parse context index: %w", err)
	}
	return idx, nil
}

func (idx *Index) save() error {
	data, err := json.MarshalIndent(idx.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal context index: %w", err)
	}
	if err := os.MkdirAll(idx.dir, 0o755); err != nil {
		return fmt.Errorf("create contexts dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(idx.dir, indexFile), data, 0o644); err != nil {
		return fmt.Errorf("write context index: %w", err)
	}
	return nil
}

// HashFile returns the SHA-256 hex digest of a file's bytes.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Record stores or refreshes an entry and persists the index.
func (idx *Index) Record(relPath, summaryPath, hash string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[relPath] = IndexEntry{
		SummaryPath:   summaryPath,
		SourceHash:    hash,
		LastIndexedAt: time.Now().UTC(),
	}
	return idx.save()
}

// Get returns the entry for a path.
func (idx *Index) Get(relPath string) (IndexEntry, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	e, ok := idx.entries[relPath]
	return e, ok
}

// FilePaths returns the indexed paths in sorted order.
func (idx *Index) FilePaths() []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	out := make([]string, 0, len(idx.entries))
	for p := range idx.entries {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// OutdatedFiles returns indexed paths whose content hash no longer
// matches. Deleted files count as outdated.
func (idx *Index) OutdatedFiles() []string {
	idx.mu.Lock()
	entries := make(map[string]IndexEntry, len(idx.entries))
	for p, e := range idx.entries {
		entries[p] = e
	}
	root := idx.root
	idx.mu.Unlock()

	var out []string
	for p, e := range entries {
		hash, err := HashFile(filepath.Join(root, p))
		if err != nil || hash != e.SourceHash {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
