// Package projectctx maintains the project context artifacts: the compact
// file tree, per-file summaries, conventions and overview markdown, and a
// hash index that tracks staleness.
package projectctx

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

var skipDirs = map[string]bool{
	".git":         true,
	".jrdev":       true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	".venv":        true,
}

// GenerateTree walks root and renders the compact tree: first line
// ROOT=<basename>, then one "<dir>:[f1,f2,...]" line per directory with
// files, root files under the empty dir path. Bracket lists carry no
// spaces so the format survives naive tokenization.
func GenerateTree(root string) (string, error) {
	byDir := make(map[string][]string)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (skipDirs[name] || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		dir := filepath.ToSlash(filepath.Dir(rel))
		if dir == "." {
			dir = ""
		}
		byDir[dir] = append(byDir[dir], name)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk project tree: %w", err)
	}

	dirs := make([]string, 0, len(byDir))
	for dir := range byDir {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	var sb strings.Builder
	fmt.Fprintf(&sb, "ROOT=%s\n", filepath.Base(root))
	for _, dir := range dirs {
		files := byDir[dir]
		sort.Strings(files)
		fmt.Fprintf(&sb, "%s:[%s]\n", dir, strings.Join(files, ","))
	}
	return sb.String(), nil
}

// ParseTree recovers the relative file paths listed in a compact tree.
func ParseTree(text string) []string {
	var paths []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "ROOT=") {
			continue
		}
		open := strings.Index(line, ":[")
		if open < 0 || !strings.HasSuffix(line, "]") {
			continue
		}
		dir := line[:open]
		list := line[open+2 : len(line)-1]
		if list == "" {
			continue
		}
		for _, name := range strings.Split(list, ",") {
			if dir == "" {
				paths = append(paths, name)
			} else {
				paths = append(paths, dir+"/"+name)
			}
		}
	}
	return paths
}
