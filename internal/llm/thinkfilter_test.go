package llm

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceStream replays a fixed chunk sequence.
type sliceStream struct {
	chunks []string
	pos    int
	closed bool
	usage  Usage
	has    bool
}

func (s *sliceStream) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.pos >= len(s.chunks) {
		return "", io.EOF
	}
	c := s.chunks[s.pos]
	s.pos++
	return c, nil
}

func (s *sliceStream) Usage() (Usage, bool) { return s.usage, s.has }
func (s *sliceStream) Close() error         { s.closed = true; return nil }

func drain(t *testing.T, stream ChunkStream) []string {
	t.Helper()
	var out []string
	for {
		chunk, err := stream.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, chunk)
	}
}

func TestThinkFilterStripsReasoningSpan(t *testing.T) {
	inner := &sliceStream{chunks: []string{"<think>", " reasoning ", "</think>", "\n", "Hello"}}
	got := drain(t, FilterThinkTags(inner))
	assert.Equal(t, []string{"Hello"}, got)
}

func TestThinkFilterPassesPlainStream(t *testing.T) {
	inner := &sliceStream{chunks: []string{"Hello", " ", "<think>", "world"}}
	got := drain(t, FilterThinkTags(inner))
	// The open tag only counts when it is the first chunk.
	assert.Equal(t, []string{"Hello", " ", "<think>", "world"}, got)
}

func TestThinkFilterTrimsOnlyLeadingNewlines(t *testing.T) {
	inner := &sliceStream{chunks: []string{"<think>", "</think>", "\n\nfirst\n", "second"}}
	got := drain(t, FilterThinkTags(inner))
	assert.Equal(t, []string{"first\n", "second"}, got)
}

func TestThinkFilterIdempotent(t *testing.T) {
	raw := []string{"<think>", "plan", "</think>", "\n", "answer", " text"}
	once := drain(t, FilterThinkTags(&sliceStream{chunks: raw}))
	twice := drain(t, FilterThinkTags(&sliceStream{chunks: once}))
	assert.Equal(t, once, twice)
}

func TestThinkFilterForwardsUsage(t *testing.T) {
	inner := &sliceStream{chunks: []string{"hi"}, usage: Usage{InputTokens: 3, OutputTokens: 1, Authoritative: true}, has: true}
	f := FilterThinkTags(inner)
	drain(t, f)
	u, ok := f.(usageReporter).Usage()
	require.True(t, ok)
	assert.Equal(t, 3, u.InputTokens)
}
