package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"jrdev/internal/logging"
)

// openAIClient streams chat completions from any OpenAI-shaped endpoint
// (OpenAI itself, OpenRouter, Venice, DeepSeek and compatible gateways).
type openAIClient struct {
	provider   Provider
	apiKey     string
	httpClient *http.Client
}

func (c *openAIClient) Stream(ctx context.Context, model string, messages []Message, opts StreamOptions) (ChunkStream, error) {
	body := map[string]any{
		"model":    model,
		"messages": messages,
		"stream":   true,
		// Ask for usage on the final chunk where supported.
		"stream_options": map[string]any{"include_usage": true},
	}
	if !opts.Think {
		// Reasoning variants reject an explicit temperature.
		body["temperature"] = 0.0
	}
	if opts.MaxCompletionTokens > 0 {
		body["max_completion_tokens"] = opts.MaxCompletionTokens
	}
	if opts.JSONOutput && model == "deepseek-chat" {
		body["response_format"] = map[string]any{"type": "json_object"}
	}
	for k, v := range c.provider.Extras {
		body[k] = v
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.provider.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(resp.Body)
		logging.APIError("[%s] request failed with status %d: %s", c.provider.Name, resp.StatusCode, string(errBody))
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(errBody))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &openAIStream{body: resp.Body, scanner: scanner}, nil
}

type openAIStream struct {
	body      io.ReadCloser
	scanner   *bufio.Scanner
	usage     Usage
	hasUsage  bool
	closeOnce sync.Once
	done      bool
}

type openAIChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (s *openAIStream) Next(ctx context.Context) (string, error) {
	if s.done {
		return "", io.EOF
	}
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if !s.scanner.Scan() {
			s.done = true
			if err := s.scanner.Err(); err != nil {
				if ctx.Err() != nil {
					return "", ctx.Err()
				}
				return "", fmt.Errorf("stream read failed: %w", err)
			}
			return "", io.EOF
		}

		line := strings.TrimSpace(s.scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			s.done = true
			return "", io.EOF
		}

		var chunk openAIChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if chunk.Error != nil {
			s.done = true
			return "", fmt.Errorf("API error: %s", chunk.Error.Message)
		}
		if chunk.Usage != nil {
			s.usage = Usage{
				InputTokens:   chunk.Usage.PromptTokens,
				OutputTokens:  chunk.Usage.CompletionTokens,
				Authoritative: true,
			}
			s.hasUsage = true
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			return chunk.Choices[0].Delta.Content, nil
		}
	}
}

func (s *openAIStream) Usage() (Usage, bool) {
	return s.usage, s.hasUsage
}

func (s *openAIStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.body.Close()
	})
	return err
}
