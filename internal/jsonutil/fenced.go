// Package jsonutil extracts machine-readable JSON from LLM responses.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractFenced returns the contents of the first fenced JSON block in
// text. A bare JSON object or array with no fence is also accepted.
func ExtractFenced(text string) (string, error) {
	for _, fence := range []string{"```json", "```"} {
		start := strings.Index(text, fence)
		if start < 0 {
			continue
		}
		rest := text[start+len(fence):]
		end := strings.Index(rest, "```")
		if end < 0 {
			continue
		}
		block := strings.TrimSpace(rest[:end])
		if block != "" && (block[0] == '{' || block[0] == '[') {
			return block, nil
		}
	}

	trimmed := strings.TrimSpace(text)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return trimmed, nil
	}
	return "", fmt.Errorf("no JSON block found in response")
}

// UnmarshalFenced extracts the first JSON block and decodes it into v.
func UnmarshalFenced(text string, v any) error {
	block, err := ExtractFenced(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(block), v); err != nil {
		return fmt.Errorf("parse JSON block: %w", err)
	}
	return nil
}
