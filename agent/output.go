package agent

import (
	"context"
	"strings"
	"sync"
)

// Output is the result of an agent execution: either a complete Content
// string or a lazy Stream of text fragments. Streams are finite and
// forward-only; partial consumption is not supported, callers drain via
// Text before acting on the result.
type Output struct {
	Content string
	Stream  <-chan string

	streamErr func() error
	once      sync.Once
	err       error
}

// NewTextOutput wraps a complete result.
func NewTextOutput(content string) *Output {
	return &Output{Content: content}
}

// NewStreamOutput wraps a lazy fragment stream.
func NewStreamOutput(stream <-chan string) *Output {
	return &Output{Stream: stream}
}

// NewStreamOutputWithError wraps a fragment stream whose producer may fail
// mid-stream. errf is consulted once the stream is closed; a non-nil result
// makes Text fail instead of returning the truncated text.
func NewStreamOutputWithError(stream <-chan string, errf func() error) *Output {
	return &Output{Stream: stream, streamErr: errf}
}

// Text returns the full output text, draining the stream on first call and
// caching the concatenation. Subsequent calls return the cached value.
func (o *Output) Text(ctx context.Context) (string, error) {
	o.once.Do(func() {
		if o.Stream == nil {
			return
		}
		var b strings.Builder
		for {
			select {
			case <-ctx.Done():
				o.err = ctx.Err()
				// keep draining in the background so the producer can exit
				go func() {
					for range o.Stream {
					}
				}()
				return
			case fragment, ok := <-o.Stream:
				if !ok {
					if o.streamErr != nil {
						o.err = o.streamErr()
					}
					if o.err == nil {
						o.Content = b.String()
					}
					return
				}
				b.WriteString(fragment)
			}
		}
	})
	return o.Content, o.err
}
