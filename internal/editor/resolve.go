package editor

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"jrdev/internal/logging"
)

// Directories never searched during fuzzy resolution.
var skipDirs = map[string]bool{
	".git":         true,
	".jrdev":       true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	".venv":        true,
}

// resolvePath maps a model-declared filename onto a real file. The model
// frequently gets directories wrong, so when the literal path is missing we
// fall back to, in order: same basename anywhere under root (preferring the
// most similar directory), a fuzzy basename match inside the declared
// directory, and a same-extension fuzzy match anywhere under root.
func resolvePath(root, declared string) (string, error) {
	candidate := declared
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(root, declared)
	}
	if fileExists(candidate) {
		return candidate, nil
	}

	base := filepath.Base(declared)
	declaredDir := filepath.Dir(declared)

	// (a) exact basename anywhere under root.
	if match := bestBasenameMatch(root, base, declaredDir); match != "" {
		logging.EditorWarn("resolved %s -> %s by basename search", declared, match)
		return match, nil
	}

	// (b) fuzzy basename inside the declared directory.
	if match := fuzzyInDir(filepath.Join(root, declaredDir), base, 0.6); match != "" {
		logging.EditorWarn("resolved %s -> %s by fuzzy basename", declared, match)
		return match, nil
	}

	// (c) same extension anywhere under root.
	if match := fuzzyByExtension(root, base, 0.5); match != "" {
		logging.EditorWarn("resolved %s -> %s by extension search", declared, match)
		return match, nil
	}

	return "", fmt.Errorf("file not found: %s", declared)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func walkFiles(root string, visit func(path string)) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if skipDirs[d.Name()] || (strings.HasPrefix(d.Name(), ".") && path != root) {
				return filepath.SkipDir
			}
			return nil
		}
		visit(path)
		return nil
	})
}

func bestBasenameMatch(root, base, declaredDir string) string {
	var best string
	bestScore := -1.0
	walkFiles(root, func(path string) {
		if filepath.Base(path) != base {
			return
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		score := similarity(filepath.Dir(rel), declaredDir)
		if score > bestScore {
			bestScore = score
			best = path
		}
	})
	return best
}

func fuzzyInDir(dir, base string, threshold float64) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	bestScore := threshold
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		score := similarity(e.Name(), base)
		if score >= bestScore {
			bestScore = score
			best = filepath.Join(dir, e.Name())
		}
	}
	return best
}

func fuzzyByExtension(root, base string, threshold float64) string {
	ext := filepath.Ext(base)
	if ext == "" {
		return ""
	}
	var best string
	bestScore := threshold
	walkFiles(root, func(path string) {
		if filepath.Ext(path) != ext {
			return
		}
		score := similarity(filepath.Base(path), base)
		if score >= bestScore {
			bestScore = score
			best = path
		}
	})
	return best
}

// similarity is a normalized Levenshtein ratio in [0,1].
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	dist := levenshtein(a, b)
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	return 1 - float64(dist)/float64(longest)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min3(cur[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
