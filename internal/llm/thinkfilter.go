package llm

import (
	"context"
	"strings"
)

type thinkState int

const (
	thinkInitial thinkState = iota
	thinkInside
	thinkPostTrim
	thinkNormal
)

// thinkFilter suppresses a leading <think>...</think> span emitted by
// reasoning models. The open tag is only recognized as the first chunk,
// so filtering an already filtered stream changes nothing.
type thinkFilter struct {
	inner ChunkStream
	state thinkState
}

// FilterThinkTags wraps a stream so reasoning spans never reach the caller.
func FilterThinkTags(inner ChunkStream) ChunkStream {
	return &thinkFilter{inner: inner, state: thinkInitial}
}

func (f *thinkFilter) Next(ctx context.Context) (string, error) {
	for {
		chunk, err := f.inner.Next(ctx)
		if err != nil {
			return "", err
		}

		switch f.state {
		case thinkInitial:
			if chunk == "<think>" {
				f.state = thinkInside
				continue
			}
			f.state = thinkNormal
			return chunk, nil
		case thinkInside:
			if chunk == "</think>" {
				f.state = thinkPostTrim
			}
			continue
		case thinkPostTrim:
			chunk = strings.TrimLeft(chunk, "\n")
			if chunk == "" {
				continue
			}
			f.state = thinkNormal
			return chunk, nil
		default:
			return chunk, nil
		}
	}
}

func (f *thinkFilter) Usage() (Usage, bool) {
	if r, ok := f.inner.(usageReporter); ok {
		return r.Usage()
	}
	return Usage{}, false
}

func (f *thinkFilter) Close() error {
	return f.inner.Close()
}
