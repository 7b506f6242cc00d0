package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// faultStream errors after emitting its chunks.
type faultStream struct {
	sliceStream
	err error
}

func (s *faultStream) Next(ctx context.Context) (string, error) {
	if s.pos >= len(s.chunks) {
		return "", s.err
	}
	return s.sliceStream.Next(ctx)
}

func TestRetryStreamRecoversFailedOpen(t *testing.T) {
	calls := 0
	open := func(ctx context.Context) (ChunkStream, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("connection refused")
		}
		return &sliceStream{chunks: []string{"ok"}}, nil
	}
	r := newRetryStream(open, 2, time.Millisecond)
	got := drain(t, r)
	assert.Equal(t, []string{"ok"}, got)
	assert.Equal(t, 2, calls)
}

func TestRetryStreamRecoversPreEmissionError(t *testing.T) {
	calls := 0
	open := func(ctx context.Context) (ChunkStream, error) {
		calls++
		if calls == 1 {
			return &faultStream{err: errors.New("reset by peer")}, nil
		}
		return &sliceStream{chunks: []string{"a", "b"}}, nil
	}
	r := newRetryStream(open, 2, time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, drain(t, r))
	assert.Equal(t, 2, calls)
}

func TestRetryStreamFinalAfterEmission(t *testing.T) {
	boom := errors.New("mid-stream drop")
	open := func(ctx context.Context) (ChunkStream, error) {
		return &faultStream{sliceStream: sliceStream{chunks: []string{"partial"}}, err: boom}, nil
	}
	r := newRetryStream(open, 3, time.Millisecond)

	chunk, err := r.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "partial", chunk)

	_, err = r.Next(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRetryStreamGivesUpAfterMaxAttempts(t *testing.T) {
	boom := errors.New("always down")
	calls := 0
	open := func(ctx context.Context) (ChunkStream, error) {
		calls++
		return nil, boom
	}
	r := newRetryStream(open, 2, time.Millisecond)
	_, err := r.Next(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestRetryStreamPropagatesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	open := func(ctx context.Context) (ChunkStream, error) {
		return nil, ctx.Err()
	}
	r := newRetryStream(open, 5, time.Second)
	_, err := r.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
