package server

import (
	"context"
	"sync"
	"time"

	"github.com/vigilglc/flakegen/flake"
	"github.com/vigilglc/flakegen/server/backend"
	"github.com/vigilglc/flakegen/server/config"
	"github.com/vigilglc/flakegen/server/scheduler"
	"github.com/vigilglc/flakegen/server/utils/mathutil"
	"github.com/vigilglc/flakegen/server/utils/syncutil"
	"go.uber.org/zap"
)

type Server struct {
	// core
	lg      *zap.Logger
	Config  *config.ServerConfig
	gen     *flake.Generator
	backend backend.Backend
	sched   scheduler.Scheduler
	// channel...
	readyC  chan struct{} // closed once the startup gate has been passed
	stopped chan struct{}
	done    chan struct{}
	// util
	fw       *syncutil.FuncWatcher
	stopRwmu sync.RWMutex
	stopOnce sync.Once
	// floorTicks is the watermark read at backend open. Stop never cuts the
	// stored watermark below it, so a run that minted nothing keeps the
	// protection left by the previous run.
	floorTicks uint64
}

func NewServer(cfg *config.ServerConfig) (*Server, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	lg := cfg.GetLogger()
	gen, err := flake.NewGenerator(cfg.GetFlakeSettings())
	if err != nil {
		lg.Error("failed to create generator",
			zap.Int64("machine-id", cfg.MachineID), zap.Error(err),
		)
		return nil, err
	}
	be, err := backend.OpenBackend(lg, cfg.GetBackendConfig(), backend.Meta{
		MachineID:   gen.MachineID(),
		EpochMillis: gen.Epoch().UnixMilli(),
	})
	if err != nil {
		lg.Error("failed to open backend",
			zap.String("dir", cfg.GetBackendDir()), zap.Error(err),
		)
		return nil, err
	}
	srv := &Server{
		// core
		lg:      lg,
		Config:  cfg,
		gen:     gen,
		backend: be,
		sched:   scheduler.NewFIFOScheduler(context.Background()),
		// channel...
		readyC:  make(chan struct{}),
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
		// util
		fw:         new(syncutil.FuncWatcher),
		floorTicks: be.Watermark(),
	}
	lg.Info("server created",
		zap.String("name", cfg.Name),
		zap.Uint64("machine-id", gen.MachineID()),
		zap.Time("epoch", gen.Epoch()),
		zap.Uint64("watermark", srv.floorTicks),
	)
	return srv, nil
}

// Start blocks until the local clock passes the persisted watermark, so no
// tick covered by a previous run can ever be handed out again, then launches
// the watermark advancing loop.
func (s *Server) Start() {
	for !s.isStopped() {
		current := s.gen.ElapsedTicks()
		if current > int64(s.floorTicks) {
			break
		}
		delta := mathutil.MaxInt64(int64(s.floorTicks)-current+1, 1)
		wait := time.Duration(delta*flake.TickMillis) * time.Millisecond
		s.lg.Warn("waiting for clock to pass persisted watermark",
			zap.Uint64("watermark", s.floorTicks),
			zap.Int64("elapsed-ticks", current),
			zap.Duration("wait", wait),
		)
		select {
		case <-s.stopped:
			return
		case <-time.After(wait):
		}
	}
	if s.isStopped() {
		return
	}
	s.fw.Attach(s.runWatermarkLoop)
	close(s.readyC)
	s.lg.Info("server started", zap.Uint64("floor-ticks", s.floorTicks))
}

// ReadyNotify returns a channel closed once Start has passed the gate.
func (s *Server) ReadyNotify() <-chan struct{} {
	return s.readyC
}

// runWatermarkLoop periodically persists a watermark a safe margin ahead of
// the current tick, covering every id that may be minted before the next
// write lands even if the process dies without cutting.
func (s *Server) runWatermarkLoop() {
	interval := s.Config.GetWatermarkInterval()
	aheadTicks := mathutil.MaxInt64(2*s.Config.WatermarkIntervalMs/flake.TickMillis, 1)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopped:
			return
		case <-ticker.C:
		}
		mark := uint64(mathutil.MaxInt64(s.gen.ElapsedTicks(), 0) + aheadTicks)
		s.sched.Schedule(scheduler.Job{Meta: mark, Func: func(ctx context.Context) {
			if err := s.backend.PutWatermark(mark); err != nil {
				s.lg.Warn("failed to advance watermark",
					zap.Uint64("watermark", mark), zap.Error(err),
				)
			}
		}})
	}
}

func (s *Server) isStopped() bool {
	select {
	case <-s.stopped:
		return true
	default:
		return false
	}
}

// acquire registers an in-flight request with the func watcher, so Stop cuts
// the watermark only after the request has drained.
func (s *Server) acquire() (release func(), err error) {
	defer syncutil.SchedLockers(s.stopRwmu.RLocker())()
	if s.isStopped() {
		return nil, ErrStopped
	}
	return syncutil.SchedLockers(s.fw.RLocker()), nil
}

// Stop drains in-flight requests and pending watermark writes, cuts the
// stored watermark down to the last minted tick and closes the backend.
func (s *Server) Stop() {
	s.stopOnce.Do(s.doStop)
	<-s.done
}

func (s *Server) doStop() {
	s.stopRwmu.Lock()
	close(s.stopped)
	s.stopRwmu.Unlock()
	s.fw.Wait()
	s.sched.WaitFinish(s.sched.Scheduled())
	s.sched.Stop()
	lastTicks, _ := s.gen.Last()
	cut := mathutil.MaxUint64(uint64(lastTicks), s.floorTicks)
	if err := s.backend.CutWatermark(cut); err != nil {
		s.lg.Error("failed to cut watermark", zap.Uint64("watermark", cut), zap.Error(err))
	}
	if err := s.backend.Close(); err != nil {
		s.lg.Error("failed to close backend", zap.Error(err))
	}
	s.lg.Info("server stopped", zap.Uint64("watermark", cut))
	close(s.done)
}
