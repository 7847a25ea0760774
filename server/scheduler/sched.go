package scheduler

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/vigilglc/flakegen/server/utils/syncutil"
)

type Job struct {
	Meta interface{}
	Func func(ctx context.Context)
}

type Scheduler interface {
	// Schedule asks the scheduler to schedule a job defined by the given func.
	// Schedule to a stopped scheduler might panic.
	Schedule(job Job)

	// Scheduled returns the number of scheduled jobs.
	Scheduled() int

	// Finished returns the number of finished jobs.
	Finished() int

	// WaitFinish waits until at least n job are finished.
	WaitFinish(n int)

	// Stop stops the scheduler.
	Stop()
}

type fifo struct {
	ctx     context.Context
	cancelF context.CancelFunc
	qMu     sync.Mutex
	qCond   *sync.Cond
	queue   []Job
	stopped uint64 // 0 for running, 1 for stopped...
	done    chan struct{}

	scheduled uint64
	fRwmu     sync.RWMutex
	fRCond    *sync.Cond
	finished  uint64
}

// NewFIFOScheduler runs jobs one at a time in scheduling order on a single
// goroutine.
func NewFIFOScheduler(ctx context.Context) Scheduler {
	ret := &fifo{done: make(chan struct{})}
	ret.ctx, ret.cancelF = context.WithCancel(ctx)
	ret.qCond = sync.NewCond(&ret.qMu)
	ret.fRCond = sync.NewCond(ret.fRwmu.RLocker())
	go ret.run()
	return ret
}

func (f *fifo) Schedule(job Job) {
	defer syncutil.SchedLockers(&f.qMu)()
	f.queue = append(f.queue, job)
	atomic.AddUint64(&f.scheduled, 1)
	f.qCond.Broadcast()
}

func (f *fifo) Scheduled() int {
	return int(atomic.LoadUint64(&f.scheduled))
}

func (f *fifo) Finished() int {
	defer syncutil.SchedLockers(f.fRCond.L)()
	return int(f.finished)
}

func (f *fifo) WaitFinish(n int) {
	defer syncutil.SchedLockers(f.fRCond.L)()
	for int(f.finished) < n {
		f.fRCond.Wait()
	}
}

func (f *fifo) Stop() {
	if f.cancelF != nil {
		f.cancelF()
		f.cancelF = nil
	}
	atomic.AddUint64(&f.stopped, 1)
	f.qCond.Broadcast() // not necessary to hold the lock!
	<-f.done
}

func (f *fifo) run() {
	defer close(f.done)
	for atomic.LoadUint64(&f.stopped) == 0 {
		f.qMu.Lock()
		for len(f.queue) == 0 && atomic.LoadUint64(&f.stopped) == 0 {
			f.qCond.Wait()
		}
		q := f.queue
		f.qMu.Unlock()
		var idx int
		for idx = 0; idx < len(q) && atomic.LoadUint64(&f.stopped) == 0; {
			q[idx].Func(f.ctx)
			f.fRwmu.Lock()
			f.finished++
			f.fRCond.Broadcast()
			f.fRwmu.Unlock()
			idx++
		}
		f.qMu.Lock()
		f.queue = f.queue[idx:]
		f.qMu.Unlock()
	}
}
