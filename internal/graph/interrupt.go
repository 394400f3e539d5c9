package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// InterruptError pauses graph execution and carries the payload shown to the
// human operator. It is produced by Interrupt, never constructed directly.
type InterruptError struct {
	Payload any
}

func (e *InterruptError) Error() string {
	return "graph execution interrupted"
}

// AsInterrupt unwraps an InterruptError, returning nil for ordinary errors.
func AsInterrupt(err error) *InterruptError {
	var interrupt *InterruptError
	if errors.As(err, &interrupt) {
		return interrupt
	}
	return nil
}

// resumeHolder carries a one-shot resume value through the context. The value
// is consumed by the first Interrupt call that sees it, so nodes downstream
// of the interrupt point never observe it.
type resumeHolder struct {
	mu    sync.Mutex
	value any
	taken bool
}

func (h *resumeHolder) take() (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.taken {
		return nil, false
	}
	h.taken = true
	return h.value, true
}

type resumeKey struct{}

func withResumeValue(ctx context.Context, value any) context.Context {
	return context.WithValue(ctx, resumeKey{}, &resumeHolder{value: value})
}

func resumeFrom(ctx context.Context) *resumeHolder {
	holder, _ := ctx.Value(resumeKey{}).(*resumeHolder)
	return holder
}

// Interrupt pauses the graph at the calling node. On first execution it
// returns an InterruptError carrying the payload; the runner checkpoints the
// state and surfaces the payload to the caller. When the node is re-executed
// through Runner.Resume, Interrupt returns the resume value instead.
func Interrupt[T any](ctx context.Context, payload any) (T, error) {
	var zero T

	if holder := resumeFrom(ctx); holder != nil {
		if value, ok := holder.take(); ok {
			typed, ok := value.(T)
			if !ok {
				return zero, fmt.Errorf("resume value has type %T, want %T", value, zero)
			}
			return typed, nil
		}
	}

	return zero, &InterruptError{Payload: payload}
}
