// Package streampipe composes a streamq.Queue and a stage.Executor into a
// ready-to-iterate pipeline stage, either spawning its own worker
// goroutines or registering onto a shared wpool.Pool.
//
// Below is an example squaring odd ints, discarding even ones, using a
// private-thread stage:
//
//	package yourpipeline
//
//	import (
//		"context"
//		"fmt"
//		"log/slog"
//
//		"github.com/flowlane/streampipe"
//		"github.com/flowlane/streampipe/stage"
//	)
//
//	func squareOdds(v int) (int, error) {
//		if v%2 == 0 {
//			return v, fmt.Errorf("even number error: %v", v)
//		}
//		return v * v, nil
//	}
//
//	func Run() {
//		src := stage.NewSliceSource([]int{1, 2, 3, 4, 5, 6, 7, 8, 9})
//		st := streampipe.New[int, int](src, squareOdds, streampipe.Params{
//			Workers:   3,
//			StageName: "square-odds",
//		})
//		it := st.Iter(context.Background())
//		for it.Next() {
//			slog.Info("received squares output", slog.Int("out", it.Value()))
//		}
//		if err := st.Wait(); err != nil {
//			slog.Error("square-odds stage finished with errors", slog.Any("error", err))
//		}
//	}
package streampipe

import (
	"context"
	"sync"

	"github.com/flowlane/streampipe/stage"
	"github.com/flowlane/streampipe/streamq"
	"github.com/flowlane/streampipe/wpool"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Stage composes an output streamq with the executor(s) driving it.
// Construct one from an input range and a transform, then iterate or
// chain its output into the next stage.
type Stage[In, Out any] struct {
	id  string
	out *streamq.Queue[Out]
	eg  *errgroup.Group // non-nil only for the private-worker variant
}

// ID returns this stage's diagnostic identifier, included in any errors
// and suitable for log correlation when several stages share one pool.
func (s *Stage[In, Out]) ID() string { return s.id }

// Iter returns a lazy iterator over the stage's output, suitable for
// direct consumption.
func (s *Stage[In, Out]) Iter(ctx context.Context) *streamq.Iterator[Out] {
	return s.out.Iter(ctx)
}

// Queue exposes the stage's output streamq directly, for chaining into a
// following stage's Source via stage.NewQueueSource. Iter is preferred
// for a terminal consumer; Queue is for wiring, since NewQueueSource
// needs the queue itself (for its non-blocking TryPop) rather than a
// single-pass iterator over it.
func (s *Stage[In, Out]) Queue() *streamq.Queue[Out] {
	return s.out
}

// Wait blocks until every worker this Stage privately owns has finished
// and returns the first non-nil error returned by any worker's
// stage.Executor.Run, if any; for a worker that continued past transform
// errors, that is the last transform error it saw (see Executor.Run). For
// a NewWithPool stage, whose workers are borrowed from a shared pool,
// Wait returns nil immediately: lifetime there is the pool's concern, not
// this Stage's.
func (s *Stage[In, Out]) Wait() error {
	if s.eg == nil {
		return nil
	}
	return s.eg.Wait()
}

// New constructs a Stage that spawns its own params.Workers goroutines
// (default 1) to drive src through f, each a clone of one underlying
// stage.Executor sharing the same input-range mutex but writing through
// its own output writer handle — so the output streamq's writer count
// only reaches zero once every one of this stage's goroutines has
// exhausted the input.
func New[In, Out any](src stage.Source[In], f stage.Transform[In, Out], params ...Params) *Stage[In, Out] {
	p := applyParams(params...)
	id := stageID(p.StageName)
	out := streamq.NewWithCapacity[Out](p.BufferHint)

	base := stage.New[In, Out](src, f, out.NewWriter(), id, p.OnError)
	eg := &errgroup.Group{}
	for i := 0; i < p.Workers; i++ {
		exec := base
		if i > 0 {
			exec = base.Clone(out.NewWriter())
		}
		eg.Go(exec.Run)
	}

	return &Stage[In, Out]{id: id, out: out, eg: eg}
}

// NewWithPool constructs a Stage that registers a single multitask with
// pool instead of spawning private goroutines. The pool's own workers
// round-robin onto this stage's step alongside every other stage sharing
// the pool, which is how a pipeline deeper than the pool is wide still
// makes progress.
//
// Because the pool may invoke the registered task concurrently from more
// than one of its workers when it is the only alive task, the output
// writer is closed exactly once: after the input is observed exhausted
// AND every concurrently in-flight invocation of this stage's step has
// returned.
func NewWithPool[In, Out any](src stage.Source[In], f stage.Transform[In, Out], pool *wpool.Pool, params ...Params) *Stage[In, Out] {
	p := applyParams(params...)
	id := stageID(p.StageName)
	out := streamq.NewWithCapacity[Out](p.BufferHint)
	writer := out.NewWriter()
	exec := stage.New[In, Out](src, f, writer, id, p.OnError)

	var mu sync.Mutex
	inFlight := 0
	exhausted := false
	closed := false

	pool.Process(func() bool {
		mu.Lock()
		inFlight++
		mu.Unlock()

		more, _, _ := exec.TryStep()

		mu.Lock()
		inFlight--
		if !more {
			exhausted = true
		}
		shouldClose := exhausted && inFlight == 0 && !closed
		if shouldClose {
			closed = true
		}
		mu.Unlock()

		if shouldClose {
			writer.Close()
		}
		return more
	})

	return &Stage[In, Out]{id: id, out: out}
}

func stageID(name string) string {
	if name != "" {
		return name
	}
	return uuid.NewString()
}
