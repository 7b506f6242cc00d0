package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"jrdev/internal/usage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	provider string
	think    bool
}

func (r stubResolver) ResolveModel(name string) (string, bool, error) {
	if r.provider == "" {
		return "", false, fmt.Errorf("unknown model: %s", name)
	}
	return r.provider, r.think, nil
}

// stubStreamer fails the first failures opens, then serves chunks.
type stubStreamer struct {
	failures int
	chunks   []string
	usage    Usage
	opens    int
}

func (s *stubStreamer) Stream(ctx context.Context, model string, messages []Message, opts StreamOptions) (ChunkStream, error) {
	s.opens++
	if s.opens <= s.failures {
		return nil, errors.New("transient failure")
	}
	return &sliceStream{chunks: s.chunks, usage: s.usage, has: s.usage.Authoritative}, nil
}

func testTransport(streamer Streamer, tracker *usage.Tracker) *Transport {
	reg := &Registry{
		providers: []Provider{{Name: "test"}},
		clients:   map[string]Streamer{"test": streamer},
	}
	tr := NewTransport(reg, stubResolver{provider: "test"}, tracker, nil)
	tr.backoff = time.Millisecond
	return tr
}

func TestGenerateResponseConcatenatesChunks(t *testing.T) {
	tracker := usage.NewTracker()
	streamer := &stubStreamer{chunks: []string{"Hel", "lo ", "world"}}
	tr := testTransport(streamer, tracker)

	got, err := tr.GenerateResponse(context.Background(), "m1", []Message{{Role: RoleUser, Content: "hi"}}, "w1", StreamOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Hello world", got)
}

func TestGenerateResponseRetriesAndRecordsUsageOnce(t *testing.T) {
	tracker := usage.NewTracker()
	streamer := &stubStreamer{
		failures: 1,
		chunks:   []string{"done"},
		usage:    Usage{InputTokens: 12, OutputTokens: 5, Authoritative: true},
	}
	tr := testTransport(streamer, tracker)

	got, err := tr.GenerateResponse(context.Background(), "m1", []Message{{Role: RoleUser, Content: "hi"}}, "w1", StreamOptions{})
	require.NoError(t, err)
	assert.Equal(t, "done", got)
	assert.Equal(t, 2, streamer.opens)

	// The failed attempt must not contribute a usage record.
	assert.Equal(t, usage.Counts{InputTokens: 12, OutputTokens: 5}, tracker.Usage()["m1"])
}

func TestGenerateResponseFiltersThinkTags(t *testing.T) {
	tracker := usage.NewTracker()
	streamer := &stubStreamer{chunks: []string{"<think>", "internal", "</think>", "\n", "Hello"}}
	tr := testTransport(streamer, tracker)

	got, err := tr.GenerateResponse(context.Background(), "m1", []Message{{Role: RoleUser, Content: "hi"}}, "w1", StreamOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Hello", got)
}

func TestGenerateResponseStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tracker := usage.NewTracker()
	streamer := &stubStreamer{failures: 10}
	tr := testTransport(streamer, tracker)

	_, err := tr.GenerateResponse(ctx, "m1", []Message{{Role: RoleUser, Content: "hi"}}, "w1", StreamOptions{})
	assert.Error(t, err)
	assert.LessOrEqual(t, streamer.opens, 1)
}

func TestStreamRequestDeliversChunks(t *testing.T) {
	tracker := usage.NewTracker()
	streamer := &stubStreamer{chunks: []string{"a", "b"}}
	tr := testTransport(streamer, tracker)

	stream, err := tr.StreamRequest(context.Background(), "m1", []Message{{Role: RoleUser, Content: "hi"}}, "w1", StreamOptions{})
	require.NoError(t, err)
	defer stream.Close()
	assert.Equal(t, []string{"a", "b"}, drain(t, stream))
}

func TestOpenAIStreamParsesSSE(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[],\"usage\":{\"prompt_tokens\":9,\"completion_tokens\":2}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client := &openAIClient{
		provider:   Provider{Name: "test", BaseURL: srv.URL},
		apiKey:     "test-key",
		httpClient: srv.Client(),
	}
	stream, err := client.Stream(context.Background(), "gpt-test", []Message{{Role: RoleUser, Content: "hi"}}, StreamOptions{})
	require.NoError(t, err)
	defer stream.Close()

	assert.Equal(t, []string{"Hel", "lo"}, drain(t, stream))
	u, ok := stream.(usageReporter).Usage()
	require.True(t, ok)
	assert.Equal(t, Usage{InputTokens: 9, OutputTokens: 2, Authoritative: true}, u)
}

func TestOpenAIStreamSurfacesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := &openAIClient{
		provider:   Provider{Name: "test", BaseURL: srv.URL},
		apiKey:     "bad",
		httpClient: srv.Client(),
	}
	_, err := client.Stream(context.Background(), "gpt-test", nil, StreamOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestAnthropicStreamParsesEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message_start\n")
		fmt.Fprint(w, "data: {\"type\":\"message_start\",\"message\":{\"usage\":{\"input_tokens\":21}}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Hi \"}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"there\"}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"message_delta\",\"usage\":{\"output_tokens\":4}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"message_stop\"}\n\n")
	}))
	defer srv.Close()

	client := &anthropicClient{
		provider:   Provider{Name: "anthropic", BaseURL: srv.URL},
		apiKey:     "test-key",
		httpClient: srv.Client(),
	}
	stream, err := client.Stream(context.Background(), "claude-test", []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hi"},
	}, StreamOptions{})
	require.NoError(t, err)
	defer stream.Close()

	assert.Equal(t, []string{"Hi ", "there"}, drain(t, stream))
	u, ok := stream.(usageReporter).Usage()
	require.True(t, ok)
	assert.Equal(t, 21, u.InputTokens)
	assert.Equal(t, 4, u.OutputTokens)
	assert.True(t, u.Authoritative)
}

func TestEstimateTokensNonZero(t *testing.T) {
	assert.Greater(t, EstimateTokens("the quick brown fox jumps over the lazy dog"), 0)
	assert.Greater(t, EstimateMessages([]Message{{Role: RoleUser, Content: "hello"}}), 0)
}
