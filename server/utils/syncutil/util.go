package syncutil

import "sync"

func SchedLockers(lcks ...sync.Locker) (unlock func()) {
	for _, lck := range lcks {
		lck.Lock()
	}
	return func() {
		for i := len(lcks) - 1; i >= 0; i-- {
			lcks[i].Unlock()
		}
	}
}

// FuncWatcher tracks spawned goroutines and in-flight sections so an owner
// can wait for all of them on shutdown.
type FuncWatcher struct {
	sync.WaitGroup
}

func (fw *FuncWatcher) Attach(f func()) {
	fw.Add(1)
	go func() {
		defer fw.Done()
		f()
	}()
}

// RLocker adapts the watcher to a Locker, so a code section can be tracked
// via SchedLockers.
func (fw *FuncWatcher) RLocker() sync.Locker {
	return fwRLocker{fw}
}

type fwRLocker struct{ fw *FuncWatcher }

func (l fwRLocker) Lock()   { l.fw.Add(1) }
func (l fwRLocker) Unlock() { l.fw.Done() }
