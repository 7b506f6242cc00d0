// Package prompts holds the named prompt templates that drive every agent.
// Templates are embedded in the binary and addressed by a path-style key,
// e.g. "operations/replace" or "init/overview".
package prompts

import (
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed templates
var templateFS embed.FS

// Load returns the prompt template registered under key.
func Load(key string) (string, error) {
	data, err := templateFS.ReadFile("templates/" + key + ".md")
	if err != nil {
		return "", fmt.Errorf("unknown prompt %q: %w", key, err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// MustLoad is Load for prompts that ship with the binary; a missing key is a
// programming error.
func MustLoad(key string) string {
	s, err := Load(key)
	if err != nil {
		panic(err)
	}
	return s
}

// Fill substitutes {{name}} slots in a template. Unknown slots are left
// untouched so a template bug is visible in the outgoing prompt rather than
// silently dropped.
func Fill(template string, slots map[string]string) string {
	out := template
	for name, value := range slots {
		out = strings.ReplaceAll(out, "{{"+name+"}}", value)
	}
	return out
}

// Keys lists all registered template keys, sorted.
func Keys() []string {
	var keys []string
	var walk func(dir string)
	walk = func(dir string) {
		entries, err := templateFS.ReadDir(dir)
		if err != nil {
			return
		}
		for _, e := range entries {
			path := dir + "/" + e.Name()
			if e.IsDir() {
				walk(path)
				continue
			}
			key := strings.TrimPrefix(path, "templates/")
			key = strings.TrimSuffix(key, ".md")
			keys = append(keys, key)
		}
	}
	walk("templates")
	sort.Strings(keys)
	return keys
}
