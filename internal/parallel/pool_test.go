package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewPoolWorkers(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		want    int
	}{
		{"explicit", 4, 4},
		{"zero", 0, runtime.GOMAXPROCS(0)},
		{"negative", -5, runtime.GOMAXPROCS(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPool(tt.workers)
			defer p.Close()
			if p.Workers() != tt.want {
				t.Errorf("Workers() = %d, want %d", p.Workers(), tt.want)
			}
		})
	}
}

func TestDispatchCoversEveryIndexOnce(t *testing.T) {
	tests := []struct {
		n, group int
	}{
		{1, 256},
		{255, 256},
		{256, 256},
		{257, 256},
		{1000, 64},
		{10, 0},
	}
	p := NewPool(4)
	defer p.Close()

	for _, tt := range tests {
		hits := make([]atomic.Int32, tt.n)
		var groups atomic.Int32
		p.Dispatch(tt.n, tt.group, func(lo, hi int) {
			groups.Add(1)
			if tt.group > 0 && hi-lo > tt.group {
				t.Errorf("group [%d, %d) is larger than %d", lo, hi, tt.group)
			}
			for i := lo; i < hi; i++ {
				hits[i].Add(1)
			}
		})
		for i := range hits {
			if got := hits[i].Load(); got != 1 {
				t.Fatalf("n=%d group=%d: index %d visited %d times", tt.n, tt.group, i, got)
			}
		}
		want := 1
		if tt.group > 0 {
			want = (tt.n + tt.group - 1) / tt.group
		}
		if int(groups.Load()) != want {
			t.Errorf("n=%d group=%d: %d groups, want %d", tt.n, tt.group, groups.Load(), want)
		}
	}
}

func TestDispatchEmpty(t *testing.T) {
	p := NewPool(2)
	defer p.Close()
	p.Dispatch(0, 16, func(int, int) { t.Error("fn called for n=0") })
}

func TestDispatchAfterClose(t *testing.T) {
	p := NewPool(2)
	p.Close()
	p.Close()

	var sum atomic.Int64
	p.Dispatch(100, 7, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			sum.Add(int64(i))
		}
	})
	if sum.Load() != 4950 {
		t.Errorf("sum = %d, want 4950", sum.Load())
	}
}

func TestDispatchConcurrentClose(t *testing.T) {
	for round := range 50 {
		p := NewPool(4)

		var wg sync.WaitGroup
		sums := make([]atomic.Int64, 4)
		for d := range sums {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 20 {
					p.Dispatch(100, 3, func(lo, hi int) {
						for i := lo; i < hi; i++ {
							sums[d].Add(int64(i))
						}
					})
				}
			}()
		}
		p.Close()

		finished := make(chan struct{})
		go func() {
			wg.Wait()
			close(finished)
		}()
		select {
		case <-finished:
		case <-time.After(10 * time.Second):
			t.Fatalf("round %d: Dispatch did not return after Close", round)
		}
		for d := range sums {
			if got := sums[d].Load(); got != 20*4950 {
				t.Fatalf("round %d: dispatcher %d sum = %d, want %d", round, d, got, 20*4950)
			}
		}
	}
}
