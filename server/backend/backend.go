package backend

import (
	"errors"
	"os"
	"sync"

	json "github.com/json-iterator/go"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/vigilglc/flakegen/server/utils/syncutil"
	"go.etcd.io/etcd/client/pkg/v3/fileutil"
	"go.uber.org/zap"
)

type Backend interface {
	Meta() Meta
	Watermark() uint64
	// PutWatermark persists ticks as the new high-watermark. Writes that do
	// not advance it are dropped.
	PutWatermark(ticks uint64) error
	// CutWatermark overwrites the stored watermark regardless of its current
	// value. Only safe once no more ids will be minted, i.e. at shutdown.
	CutWatermark(ticks uint64) error

	Sync() error
	Close() error
}

// Meta pins a data dir to the identity of the generator that owns it.
type Meta struct {
	MachineID   uint64 `json:"machineID"`
	EpochMillis int64  `json:"epochMillis"`
}

const (
	ReservedSPrefix = "__"
	metaKey         = ReservedSPrefix + "META"
	watermarkKey    = ReservedSPrefix + "WATERMARK"
	syncMarkKey     = ReservedSPrefix + "SYNC"
)

var ErrBackendLocked = errors.New("backend: data dir locked by another process")
var ErrMetaMismatch = errors.New("backend: stored meta differs from configured identity")

type backend struct {
	lg *zap.Logger
	// basic db fields
	cfg   Config
	db    *leveldb.DB
	flock *fileutil.LockedFile
	meta  Meta
	// watermark state
	wmRwmu    sync.RWMutex
	watermark uint64
}

func OpenBackend(lg *zap.Logger, cfg Config, meta Meta) (ret Backend, err error) {
	be := &backend{lg: lg, cfg: cfg, meta: meta}
	if lg == nil {
		be.lg = zap.NewExample()
	}
	if err = cfg.MakeDirAll(); err != nil {
		be.lg.Error("failed to make backend dir", zap.Error(err))
		return nil, err
	}
	be.flock, err = fileutil.TryLockFile(cfg.GetLockFilePath(), os.O_CREATE|os.O_WRONLY, fileutil.PrivateFileMode)
	if err != nil {
		if err == fileutil.ErrLocked {
			err = ErrBackendLocked
		}
		be.lg.Error("failed to lock backend dir", zap.String("dir", cfg.Dir), zap.Error(err))
		return nil, err
	}
	be.db, err = leveldb.OpenFile(cfg.GetMainDir(), &opt.Options{
		NoSync:       false, // necessary, if global NoSync is true, all writes do no fSync.
		NoWriteMerge: true,
	})
	if err != nil {
		be.lg.Error("failed to open leveldb", zap.Error(err))
		_ = be.flock.Close()
		return nil, err
	}
	if err = be.checkInMeta(); err != nil {
		_ = be.db.Close()
		_ = be.flock.Close()
		return nil, err
	}
	if be.watermark, err = readInWatermark(be.db); err != nil {
		be.lg.Error("failed to read watermark in", zap.Error(err))
		_ = be.db.Close()
		_ = be.flock.Close()
		return nil, err
	}
	return be, nil
}

// checkInMeta stores the configured meta on first open and rejects any later
// open whose identity differs from the stored one.
func (be *backend) checkInMeta() error {
	bts, err := be.db.Get([]byte(metaKey), nil)
	if err == leveldb.ErrNotFound {
		jsonB, err := json.Marshal(&be.meta)
		if err != nil {
			return err
		}
		return be.db.Put([]byte(metaKey), jsonB, &opt.WriteOptions{
			Sync:         true,
			NoWriteMerge: true,
		})
	}
	if err != nil {
		return err
	}
	var stored Meta
	if err := json.Unmarshal(bts, &stored); err != nil {
		return err
	}
	if stored != be.meta {
		be.lg.Error("backend meta mismatched",
			zap.Any("stored", stored),
			zap.Any("configured", be.meta),
		)
		return ErrMetaMismatch
	}
	return nil
}

func (be *backend) Meta() Meta {
	return be.meta
}

func (be *backend) Watermark() uint64 {
	defer syncutil.SchedLockers(be.wmRwmu.RLocker())()
	return be.watermark
}

func readInWatermark(db *leveldb.DB) (wm uint64, err error) {
	bts, err := db.Get([]byte(watermarkKey), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	return bytes2Uint64(bts), nil
}

func (be *backend) PutWatermark(ticks uint64) error {
	be.wmRwmu.RLock()
	if be.watermark >= ticks {
		defer be.wmRwmu.RUnlock()
		return nil
	}
	be.wmRwmu.RUnlock()
	defer syncutil.SchedLockers(&be.wmRwmu)()
	if be.watermark >= ticks {
		return nil
	}
	if err := be.writeWatermark(ticks, be.cfg.GetSync()); err != nil {
		return err
	}
	be.watermark = ticks
	return nil
}

func (be *backend) CutWatermark(ticks uint64) error {
	defer syncutil.SchedLockers(&be.wmRwmu)()
	if err := be.writeWatermark(ticks, true); err != nil {
		return err
	}
	be.watermark = ticks
	return nil
}

func (be *backend) writeWatermark(ticks uint64, sync bool) error {
	err := be.db.Put([]byte(watermarkKey), uint64ToBytes(ticks), &opt.WriteOptions{
		Sync:         sync,
		NoWriteMerge: true,
	})
	if err != nil {
		be.lg.Error("failed to write watermark",
			zap.Uint64("watermark", ticks),
			zap.Error(err),
		)
	}
	return err
}

func (be *backend) Sync() error {
	return doSync(be.db)
}

func doSync(db *leveldb.DB) error {
	return db.Put([]byte(syncMarkKey), nil, &opt.WriteOptions{
		Sync:         true, // force fsync!
		NoWriteMerge: true,
	})
}

func (be *backend) Close() error {
	if err := be.db.Close(); err != nil {
		return err
	}
	return be.flock.Close()
}
