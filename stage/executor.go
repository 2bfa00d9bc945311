// Package stage provides the executor that drives a user transform across
// a range of inputs shared by one or more worker goroutines, writing
// results into a streamq.
package stage

import (
	"context"
	"sync"

	streampipeerrors "github.com/flowlane/streampipe/errors"
	"github.com/flowlane/streampipe/streamq"
)

// Source is a single-pass, shared input range. Implementations need not be
// thread-safe themselves: sharedInput serializes every call to Next on
// their behalf.
type Source[In any] interface {
	// Next returns the next item and true, or the zero value and false
	// once the range is exhausted.
	Next() (In, bool)
}

// Transform is a user-supplied, pure-from-the-executor's-perspective
// function mapping one input item to one output item.
type Transform[In, Out any] func(In) (Out, error)

// OnError is invoked when a Transform fails. Returning true tells the
// executor to continue processing further input; returning false tells it
// to stop as if the input were exhausted. A nil OnError defaults to
// "continue".
type OnError func(err error) (continue_ bool)

// ReadySource is an optional capability a Source may implement to support
// cooperative, non-blocking scheduling under a shared wpool.Pool. A plain
// Source's Next may block (fine for a privately-owned goroutine); TryNext
// must never block, distinguishing "nothing ready yet, try again later"
// from "permanently exhausted" so a single scheduling step can return
// promptly either way.
type ReadySource[In any] interface {
	// TryNext returns (value, true, true) when a value was ready,
	// (zero, false, true) when none was ready yet but the range is still
	// open, and (zero, false, false) once permanently exhausted.
	TryNext() (In, bool, bool)
}

// sharedInput is the mutex-guarded input range described in spec.md §4.2:
// "input iterator pair shared across workers, protected by a mutex". It
// is held by pointer and shared across every Executor cloned for the same
// stage, so all of a stage's worker tasks serialize on the one mutex
// regardless of how many separate Executor values they each hold.
type sharedInput[In any] struct {
	mu  sync.Mutex
	src Source[In]
}

func (s *sharedInput[In]) next() (In, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Next()
}

// tryNext serializes a non-blocking poll the same way next serializes a
// blocking one. ready is false whenever s.src does not implement
// ReadySource: the caller falls back to the blocking next in that case.
func (s *sharedInput[In]) tryNext() (val In, got bool, open bool, ready bool) {
	rs, isReady := s.src.(ReadySource[In])
	if !isReady {
		return val, false, false, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	val, got, open = rs.TryNext()
	return val, got, open, true
}

// Executor drives Transform across a shared input range, writing each
// result through its own output Writer. A stage with N worker tasks holds
// N Executor values, each produced by New or Clone: all of them share one
// sharedInput (one mutex, one Source), but each carries its own writer
// handle, so the output streamq only closes once every worker task's
// Executor has exhausted the input and closed its own handle.
type Executor[In, Out any] struct {
	input *sharedInput[In]
	f     Transform[In, Out]
	out   *streamq.Writer[Out]
	name  string
	onErr OnError
}

// New constructs an Executor. name tags any transform errors raised while
// this executor runs, for diagnostics (see errors.StageError).
func New[In, Out any](src Source[In], f Transform[In, Out], out *streamq.Writer[Out], name string, onErr OnError) *Executor[In, Out] {
	return &Executor[In, Out]{
		input: &sharedInput[In]{src: src},
		f:     f,
		out:   out,
		name:  name,
		onErr: onErr,
	}
}

// Clone returns a new Executor for an additional worker task of the same
// stage: it shares this Executor's input range and transform but writes
// through out, a writer handle of the caller's choosing (typically
// obtained via the output streamq's NewWriter or an existing handle's
// Clone).
func (e *Executor[In, Out]) Clone(out *streamq.Writer[Out]) *Executor[In, Out] {
	return &Executor[In, Out]{input: e.input, f: e.f, out: out, name: e.name, onErr: e.onErr}
}

// Step attempts to process one input item. It returns more=false once the
// input range is exhausted, at which point the caller should retire this
// executor (dropping its output Writer). A transform error is tagged and
// returned; whether the executor continues past it depends on OnError.
func (e *Executor[In, Out]) Step() (more bool, err error) {
	in, ok := e.input.next()
	if !ok {
		return false, nil
	}

	out, ferr := e.f(in)
	if ferr != nil {
		tagged := streampipeerrors.NewStep(e.name, ferr)
		cont := true
		if e.onErr != nil {
			cont = e.onErr(tagged)
		}
		if !cont {
			return false, tagged
		}
		return true, tagged
	}

	if perr := e.out.Push(out); perr != nil {
		return false, perr
	}
	return true, nil
}

// TryStep is the non-blocking counterpart to Step, for use as a
// wpool.Task: it never blocks the calling worker. If the input range
// implements ReadySource, a poll that finds nothing ready yet returns
// (true, false, nil) — "more work may come, but none was done this
// round" — rather than blocking. If the input range does not implement
// ReadySource, TryStep falls back to Step's blocking behavior, since
// there is no way to poll it without blocking.
//
// did reports whether an item was actually processed this call.
func (e *Executor[In, Out]) TryStep() (more bool, did bool, err error) {
	val, got, open, ready := e.input.tryNext()
	if !ready {
		more, err = e.Step()
		return more, true, err
	}
	if !got {
		return open, false, nil
	}

	out, ferr := e.f(val)
	if ferr != nil {
		tagged := streampipeerrors.NewStep(e.name, ferr)
		cont := true
		if e.onErr != nil {
			cont = e.onErr(tagged)
		}
		if !cont {
			return false, true, tagged
		}
		return true, true, tagged
	}

	if perr := e.out.Push(out); perr != nil {
		return false, true, perr
	}
	return true, true, nil
}

// Run loops Step until the input is exhausted or a fatal (non-continued)
// transform error occurs, then closes the output writer. It is the Go
// analogue of the spec's process_all() convenience. A transform error
// that Step continued past (more=true) is returned from Run only once, on
// the very last such occurrence before exhaustion is reached naturally;
// callers that need every individual error should call Step directly in
// their own loop instead of Run.
func (e *Executor[In, Out]) Run() error {
	defer e.out.Close()
	var lastErr error
	for {
		more, err := e.Step()
		if err != nil {
			lastErr = err
			if !more {
				return err
			}
		}
		if !more {
			return lastErr
		}
	}
}

// SliceSource adapts a plain slice into a Source, copying each element.
type SliceSource[T any] struct {
	values []T
	pos    int
}

// NewSliceSource returns a Source yielding values in order.
func NewSliceSource[T any](values []T) *SliceSource[T] {
	return &SliceSource[T]{values: values}
}

func (s *SliceSource[T]) Next() (T, bool) {
	if s.pos >= len(s.values) {
		var zero T
		return zero, false
	}
	v := s.values[s.pos]
	s.pos++
	return v, true
}

// QueueSource adapts a streamq.Queue into a Source. Per spec.md's
// move-vs-copy note (§4.2, §9), this is the "input-only, single-pass"
// case: items are consumed out of the queue, never re-read.
//
// QueueSource also implements ReadySource via the queue's TryPop, so a
// Stage chained onto another via NewWithPool never blocks a shared pool
// worker waiting on an upstream stage that simply hasn't been scheduled
// yet.
type QueueSource[T any] struct {
	q   *streamq.Queue[T]
	ctx context.Context
}

// NewQueueSource wraps q as a Source, reading with ctx.
func NewQueueSource[T any](q *streamq.Queue[T], ctx context.Context) *QueueSource[T] {
	return &QueueSource[T]{q: q, ctx: ctx}
}

func (s *QueueSource[T]) Next() (T, bool) {
	return s.q.Pop(s.ctx)
}

func (s *QueueSource[T]) TryNext() (T, bool, bool) {
	v, state := s.q.TryPop()
	switch state {
	case streamq.PopGot:
		return v, true, true
	case streamq.PopClosed:
		return v, false, false
	default: // streamq.PopEmpty
		return v, false, true
	}
}

// Pair is a 2-element product type used for the optional tuple-spreading
// convenience (spec.md §4.2, §9): a Source[Pair[A, B]] paired with a
// 2-argument transform via NewSpread decomposes each item into its
// components rather than passing the Pair itself.
type Pair[A, B any] struct {
	First  A
	Second B
}

// NewSpread builds an Executor whose Source yields Pair[A, B] items,
// applying a 2-argument transform to the decomposed components. Whether
// to spread is decided once, at construction time, never per item.
func NewSpread[A, B, Out any](src Source[Pair[A, B]], f func(A, B) (Out, error), out *streamq.Writer[Out], name string, onErr OnError) *Executor[Pair[A, B], Out] {
	wrapped := func(p Pair[A, B]) (Out, error) {
		return f(p.First, p.Second)
	}
	return New[Pair[A, B], Out](src, wrapped, out, name, onErr)
}
