// Package bench benchmarks the queue, stage, and pool primitives under
// the throughput and depth shapes spec.md's scenarios exercise.
package bench

import (
	"context"
	"fmt"
	"testing"

	"github.com/flowlane/streampipe"
	"github.com/flowlane/streampipe/stage"
	"github.com/flowlane/streampipe/streamq"
	"github.com/flowlane/streampipe/wpool"
)

func BenchmarkQueue_PushPop(b *testing.B) {
	q := streamq.New[int]()
	w := q.NewWriter()
	defer w.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < b.N; i++ {
			q.Pop(context.Background())
		}
	}()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w.Push(i)
	}
	<-done
}

func BenchmarkStage_SingleWorkerThroughput(b *testing.B) {
	values := make([]int, b.N)
	src := stage.NewSliceSource(values)
	st := streampipe.New[int, int](src, func(v int) (int, error) { return v + 1, nil }, streampipe.Params{Workers: 1})

	b.ResetTimer()
	it := st.Iter(context.Background())
	for it.Next() {
	}
}

func BenchmarkStage_FanOutThroughput(b *testing.B) {
	for _, workers := range []int{1, 4, 16} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			values := make([]int, b.N)
			src := stage.NewSliceSource(values)
			st := streampipe.New[int, int](src, func(v int) (int, error) { return v + 1, nil }, streampipe.Params{Workers: workers})

			b.ResetTimer()
			it := st.Iter(context.Background())
			for it.Next() {
			}
		})
	}
}

func BenchmarkPool_DeepChainLatency(b *testing.B) {
	for _, depth := range []int{10, 100} {
		b.Run(fmt.Sprintf("depth=%d", depth), func(b *testing.B) {
			pool := wpool.New(4)
			defer pool.Close()

			for n := 0; n < b.N; n++ {
				cur := stage.Source[int](stage.NewSliceSource([]int{1}))
				var last *streampipe.Stage[int, int]
				for i := 0; i < depth; i++ {
					st := streampipe.NewWithPool[int, int](cur, func(v int) (int, error) { return v + 1, nil }, pool)
					last = st
					cur = stage.NewQueueSource(st.Queue(), context.Background())
				}
				it := last.Iter(context.Background())
				it.Next()
			}
		})
	}
}
