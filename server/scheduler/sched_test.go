package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

func TestFIFOSum(t *testing.T) {
	var JOBS = 1000
	var expected, actual uint64
	for i := 0; i < JOBS; i++ {
		expected += uint64(i)
	}

	sched := NewFIFOScheduler(context.Background())
	for i := 0; i < JOBS; i++ {
		local := i
		sched.Schedule(Job{Meta: local, Func: func(ctx context.Context) {
			atomic.AddUint64(&actual, uint64(local))
		}})
	}
	sched.WaitFinish(JOBS)
	sched.Stop()
	if actual != expected {
		t.Fatalf("expected: %v, actual: %v", expected, actual)
	}
	if sched.Scheduled() != JOBS || sched.Finished() != JOBS {
		t.Fatalf("counters, expected: (%v, %v), actual: (%v, %v)",
			JOBS, JOBS, sched.Scheduled(), sched.Finished())
	}
}

func TestFIFOOrder(t *testing.T) {
	var JOBS = 200
	sched := NewFIFOScheduler(context.Background())
	var mu sync.Mutex
	var got []int
	for i := 0; i < JOBS; i++ {
		local := i
		sched.Schedule(Job{Meta: local, Func: func(ctx context.Context) {
			mu.Lock()
			got = append(got, local)
			mu.Unlock()
		}})
	}
	sched.WaitFinish(JOBS)
	sched.Stop()
	if len(got) != JOBS {
		t.Fatalf("finished jobs, expected: %v, actual: %v", JOBS, len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1] >= got[i] {
			t.Fatalf("jobs ran out of order at %v: %v >= %v", i, got[i-1], got[i])
		}
	}
}
