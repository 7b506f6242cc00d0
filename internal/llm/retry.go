package llm

import (
	"context"
	"errors"
	"io"
	"time"

	"jrdev/internal/logging"
)

const (
	defaultMaxAttempts = 2
	defaultBackoff     = 2 * time.Second
)

// streamFactory opens one streaming attempt.
type streamFactory func(ctx context.Context) (ChunkStream, error)

// retryStream restarts a failed stream with exponential backoff, but only
// while no chunk has been handed to the caller. Once output has been
// emitted a restart would interleave two partial responses, so errors
// after the first chunk are final. Cancellation is never retried.
type retryStream struct {
	open        streamFactory
	maxAttempts int
	backoff     time.Duration
	attempt     int
	emitted     bool
	current     ChunkStream
}

func newRetryStream(open streamFactory, maxAttempts int, backoff time.Duration) *retryStream {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	return &retryStream{open: open, maxAttempts: maxAttempts, backoff: backoff}
}

func (r *retryStream) Next(ctx context.Context) (string, error) {
	for {
		if r.current == nil {
			r.attempt++
			stream, err := r.open(ctx)
			if err != nil {
				if !r.retryable(ctx, err) {
					return "", err
				}
				if waitErr := r.wait(ctx); waitErr != nil {
					return "", waitErr
				}
				continue
			}
			r.current = stream
		}

		chunk, err := r.current.Next(ctx)
		if err == nil {
			r.emitted = true
			return chunk, nil
		}
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if !r.retryable(ctx, err) {
			return "", err
		}
		r.current.Close()
		r.current = nil
		if waitErr := r.wait(ctx); waitErr != nil {
			return "", waitErr
		}
	}
}

func (r *retryStream) retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if r.emitted || r.attempt >= r.maxAttempts {
		return false
	}
	logging.APIWarn("attempt %d/%d failed, retrying: %v", r.attempt, r.maxAttempts, err)
	return true
}

func (r *retryStream) wait(ctx context.Context) error {
	delay := r.backoff << (r.attempt - 1)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *retryStream) Usage() (Usage, bool) {
	if rep, ok := r.current.(usageReporter); ok {
		return rep.Usage()
	}
	return Usage{}, false
}

func (r *retryStream) Close() error {
	if r.current != nil {
		return r.current.Close()
	}
	return nil
}
