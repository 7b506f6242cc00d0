package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"jrdev/internal/logging"
	"jrdev/internal/usage"
)

const (
	progressEvery = 10
	logEvery      = 100
)

// Transport is the single entry point for model calls. It resolves the
// model to a provider client and composes token accounting, think-tag
// filtering and retry over the shape stream.
type Transport struct {
	registry    *Registry
	models      ModelResolver
	tracker     *usage.Tracker
	progress    Progress
	maxAttempts int
	backoff     time.Duration
}

// NewTransport wires the transport. progress may be nil.
func NewTransport(registry *Registry, models ModelResolver, tracker *usage.Tracker, progress Progress) *Transport {
	return &Transport{
		registry:    registry,
		models:      models,
		tracker:     tracker,
		progress:    progress,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
	}
}

func (t *Transport) openStream(ctx context.Context, model string, messages []Message, workerID string, opts StreamOptions) (ChunkStream, error) {
	providerName, think, err := t.models.ResolveModel(model)
	if err != nil {
		return nil, err
	}
	client, ok := t.registry.Client(providerName)
	if !ok {
		return nil, fmt.Errorf("provider %s has no active client (missing API key?)", providerName)
	}
	opts.Think = think

	logging.API("[%s] request start: model=%s messages=%d worker=%s", providerName, model, len(messages), workerID)
	raw, err := client.Stream(ctx, model, messages, opts)
	if err != nil {
		return nil, err
	}
	counted := &countingStream{
		inner:         raw,
		tracker:       t.tracker,
		progress:      t.progress,
		workerID:      workerID,
		model:         model,
		inputEstimate: EstimateMessages(messages),
	}
	return FilterThinkTags(counted), nil
}

// StreamRequest returns the filtered chunk stream for UI streaming. A
// failed open is retried with backoff; once a chunk has been delivered
// errors are final, since a restart would interleave partial responses.
func (t *Transport) StreamRequest(ctx context.Context, model string, messages []Message, workerID string, opts StreamOptions) (ChunkStream, error) {
	open := func(ctx context.Context) (ChunkStream, error) {
		return t.openStream(ctx, model, messages, workerID, opts)
	}
	return newRetryStream(open, t.maxAttempts, t.backoff), nil
}

// GenerateResponse streams to completion and returns the concatenated
// text. Each retry starts from a fresh builder, so a partial attempt
// never leaks into the result.
func (t *Transport) GenerateResponse(ctx context.Context, model string, messages []Message, workerID string, opts StreamOptions) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		if attempt > 1 {
			logging.APIWarn("attempt %d/%d for %s after error: %v", attempt, t.maxAttempts, model, lastErr)
			timer := time.NewTimer(t.backoff << (attempt - 2))
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			case <-timer.C:
			}
		}

		text, err := t.consumeOnce(ctx, model, messages, workerID, opts)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("request failed after %d attempts: %w", t.maxAttempts, lastErr)
}

func (t *Transport) consumeOnce(ctx context.Context, model string, messages []Message, workerID string, opts StreamOptions) (string, error) {
	stream, err := t.openStream(ctx, model, messages, workerID, opts)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		chunk, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return "", err
		}
		sb.WriteString(chunk)
	}
}

// countingStream reports token progress to the UI and records final usage
// with the tracker exactly once, when the stream completes cleanly.
type countingStream struct {
	inner         ChunkStream
	tracker       *usage.Tracker
	progress      Progress
	workerID      string
	model         string
	inputEstimate int

	chunkCount int
	text       strings.Builder
	firstChunk time.Time
	recorded   bool
}

func (s *countingStream) Next(ctx context.Context) (string, error) {
	chunk, err := s.inner.Next(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.finish()
		}
		return "", err
	}

	s.chunkCount++
	s.text.WriteString(chunk)
	if s.chunkCount == 1 {
		s.firstChunk = time.Now()
		if s.progress != nil {
			s.progress.UpdateInputTokens(s.workerID, s.model, s.inputEstimate)
		}
	}
	if s.progress != nil && s.chunkCount%progressEvery == 0 {
		tokens := EstimateTokens(s.text.String())
		s.progress.UpdateOutputTokens(s.workerID, tokens, s.tokensPerSec(tokens))
	}
	if s.chunkCount%logEvery == 0 {
		elapsed := time.Since(s.firstChunk).Seconds()
		rate := 0.0
		if elapsed > 0 {
			rate = float64(s.chunkCount) / elapsed
		}
		logging.API("[%s] streamed %d chunks (%.1f chunks/sec)", s.model, s.chunkCount, rate)
	}
	return chunk, nil
}

func (s *countingStream) tokensPerSec(tokens int) float64 {
	elapsed := time.Since(s.firstChunk).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(tokens) / elapsed
}

func (s *countingStream) finish() {
	if s.recorded {
		return
	}
	s.recorded = true

	u := Usage{InputTokens: s.inputEstimate, OutputTokens: EstimateTokens(s.text.String())}
	if rep, ok := s.inner.(usageReporter); ok {
		if reported, has := rep.Usage(); has && reported.Authoritative {
			u = reported
		} else {
			logging.APIWarn("[%s] provider returned no usage, recording estimates", s.model)
		}
	}
	if s.tracker != nil {
		s.tracker.AddUse(s.model, u.InputTokens, u.OutputTokens)
	}
	logging.API("[%s] request complete: %d chunks, input=%d output=%d", s.model, s.chunkCount, u.InputTokens, u.OutputTokens)
}

func (s *countingStream) Usage() (Usage, bool) {
	if rep, ok := s.inner.(usageReporter); ok {
		return rep.Usage()
	}
	return Usage{}, false
}

func (s *countingStream) Close() error {
	return s.inner.Close()
}
