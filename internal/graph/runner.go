package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxSteps guards against cycles that never reach END.
const maxSteps = 1000

// Option configures a Runner.
type Option[S any] func(*Runner[S])

func WithCheckpointer[S any](saver Checkpointer) Option[S] {
	return func(r *Runner[S]) {
		r.checkpointer = saver
	}
}

func WithLogger[S any](logger *zap.Logger) Option[S] {
	return func(r *Runner[S]) {
		r.logger = logger
	}
}

// Runner executes a compiled graph. A single Runner serves many threads, one
// checkpoint per thread.
type Runner[S any] struct {
	graph        *Graph[S]
	checkpointer Checkpointer
	logger       *zap.Logger
}

func newRunner[S any](g *Graph[S], opts ...Option[S]) *Runner[S] {
	runner := &Runner[S]{
		graph:        g,
		checkpointer: NewMemorySaver(),
		logger:       zap.NewNop(),
	}

	for _, opt := range opts {
		opt(runner)
	}

	return runner
}

// Result is the outcome of Invoke or Resume. When Interrupt is non-nil the
// thread is paused and State holds the state entering the interrupted node.
type Result[S any] struct {
	State     S
	ThreadID  string
	Interrupt *InterruptError
}

// Invoke runs the graph from its entry point. An empty threadID gets a fresh
// one assigned; the id is how a paused run is resumed later.
func (r *Runner[S]) Invoke(ctx context.Context, state S, threadID string) (*Result[S], error) {
	if threadID == "" {
		threadID = uuid.NewString()
	}

	return r.run(ctx, state, threadID, r.graph.entry)
}

// Resume continues a paused thread, feeding resumeValue to the Interrupt call
// inside the interrupted node. Unknown or already completed threads return an
// error wrapping ErrNoCheckpoint.
func (r *Runner[S]) Resume(ctx context.Context, threadID string, resumeValue any) (*Result[S], error) {
	checkpoint, err := r.checkpointer.Get(threadID)
	if err != nil {
		return nil, err
	}

	var state S
	if err := json.Unmarshal(checkpoint.State, &state); err != nil {
		return nil, fmt.Errorf("restore state for thread %q: %w", threadID, err)
	}

	ctx = withResumeValue(ctx, resumeValue)

	return r.run(ctx, state, threadID, checkpoint.Node)
}

func (r *Runner[S]) run(ctx context.Context, state S, threadID, node string) (*Result[S], error) {
	log := r.logger.With(zap.String("thread", threadID))

	for step := 0; node != END; step++ {
		if step >= maxSteps {
			return nil, fmt.Errorf("thread %q exceeded %d steps at node %q", threadID, maxSteps, node)
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fn, ok := r.graph.nodes[node]
		if !ok {
			return nil, fmt.Errorf("unknown node %q", node)
		}

		log.Debug("executing node", zap.String("node", node))

		next, err := fn(ctx, state)
		if err != nil {
			if interrupt := AsInterrupt(err); interrupt != nil {
				if err := r.saveCheckpoint(threadID, node, state); err != nil {
					return nil, err
				}
				log.Debug("thread interrupted", zap.String("node", node))
				return &Result[S]{State: state, ThreadID: threadID, Interrupt: interrupt}, nil
			}
			return nil, fmt.Errorf("node %q: %w", node, err)
		}
		state = next

		node, err = r.graph.next(node, state)
		if err != nil {
			return nil, err
		}
	}

	if err := r.checkpointer.Delete(threadID); err != nil {
		log.Warn("delete checkpoint", zap.Error(err))
	}

	return &Result[S]{State: state, ThreadID: threadID}, nil
}

func (r *Runner[S]) saveCheckpoint(threadID, node string, state S) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state for thread %q: %w", threadID, err)
	}

	checkpoint := &Checkpoint{
		ThreadID: threadID,
		Node:     node,
		State:    data,
		SavedAt:  time.Now().UTC(),
	}

	if err := r.checkpointer.Put(threadID, checkpoint); err != nil {
		return fmt.Errorf("save checkpoint for thread %q: %w", threadID, err)
	}

	return nil
}
