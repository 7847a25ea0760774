package ntfyutil

import (
	"sync"

	"github.com/vigilglc/flakegen/server/utils/syncutil"
)

// SharedErr carries the outcome of one shared round of work. The channel
// returned by Wait is closed once Notify delivers the outcome.
type SharedErr struct {
	rwmu sync.RWMutex
	err  error
	ch   chan struct{}
}

func (se *SharedErr) Wait() <-chan struct{} {
	defer syncutil.SchedLockers(se.rwmu.RLocker())()
	return se.ch
}

func (se *SharedErr) Notify(err error) {
	defer syncutil.SchedLockers(&se.rwmu)()
	se.err = err
	close(se.ch)
}

func (se *SharedErr) Err() error {
	defer syncutil.SchedLockers(se.rwmu.RLocker())()
	return se.err
}

// SharedErrEmitter coalesces concurrent requests for the same round of work.
// Callers join the current round via CurrentShared, and only the first of
// them runs firstDo. The worker ends the round with NextShared().Notify(err),
// which releases every caller with the same err.
type SharedErrEmitter struct {
	rwmu    sync.RWMutex
	locker  sync.Locker
	sharing bool
	shared  *SharedErr
}

func NewSharedErrEmitter() *SharedErrEmitter {
	emt := &SharedErrEmitter{}
	emt.clean()
	return emt
}

func (emt *SharedErrEmitter) clean() {
	emt.locker = &emt.rwmu
	emt.sharing = false
	emt.shared = &SharedErr{ch: make(chan struct{})}
}

func (emt *SharedErrEmitter) CurrentShared(firstDo func()) *SharedErr {
	defer syncutil.SchedLockers(emt.locker)()
	if !emt.sharing {
		emt.sharing = true
		emt.locker = emt.rwmu.RLocker()
		if firstDo != nil {
			firstDo()
		}
	}
	return emt.shared
}

func (emt *SharedErrEmitter) NextShared() (oldShared *SharedErr) {
	defer syncutil.SchedLockers(&emt.rwmu)()
	oldShared = emt.shared
	emt.clean()
	return
}
