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

const anthropicVersion = "2023-06-01"

// Default completion cap for the messages API, which requires max_tokens.
const anthropicDefaultMaxTokens = 8192

// anthropicClient streams the Anthropic messages API.
type anthropicClient struct {
	provider   Provider
	apiKey     string
	httpClient *http.Client
}

type anthropicRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

func (c *anthropicClient) Stream(ctx context.Context, model string, messages []Message, opts StreamOptions) (ChunkStream, error) {
	// The messages API takes the system prompt as a top-level field and
	// only user/assistant roles in the message list.
	var system string
	chat := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		chat = append(chat, m)
	}

	maxTokens := opts.MaxCompletionTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	payload, err := json.Marshal(anthropicRequest{
		Model:     model,
		System:    system,
		Messages:  chat,
		MaxTokens: maxTokens,
		Stream:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.provider.BaseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
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
	return &anthropicStream{body: resp.Body, scanner: scanner}, nil
}

type anthropicStream struct {
	body      io.ReadCloser
	scanner   *bufio.Scanner
	usage     Usage
	hasUsage  bool
	closeOnce sync.Once
	done      bool
}

type anthropicEvent struct {
	Type    string `json:"type"`
	Message *struct {
		Usage struct {
			InputTokens int `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Delta *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Usage *struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (s *anthropicStream) Next(ctx context.Context) (string, error) {
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

		var evt anthropicEvent
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			continue
		}
		if evt.Error != nil {
			s.done = true
			return "", fmt.Errorf("API error: %s", evt.Error.Message)
		}

		switch evt.Type {
		case "message_start":
			if evt.Message != nil {
				s.usage.InputTokens = evt.Message.Usage.InputTokens
				s.usage.Authoritative = true
				s.hasUsage = true
			}
		case "content_block_delta":
			if evt.Delta != nil && evt.Delta.Text != "" {
				return evt.Delta.Text, nil
			}
		case "message_delta":
			if evt.Usage != nil {
				s.usage.OutputTokens += evt.Usage.OutputTokens
				s.usage.Authoritative = true
				s.hasUsage = true
			}
		case "message_stop":
			s.done = true
			return "", io.EOF
		}
	}
}

func (s *anthropicStream) Usage() (Usage, bool) {
	return s.usage, s.hasUsage
}

func (s *anthropicStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.body.Close()
	})
	return err
}
