package benchmark

import (
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/sony/sonyflake"
	"github.com/vigilglc/flakegen/flake"
	"github.com/vigilglc/flakegen/server/backend"
	"go.uber.org/zap"
)

func init() {
	rand.Seed(time.Now().UnixNano())
}

var benchEpoch = time.Date(2014, time.September, 1, 0, 0, 0, 0, time.UTC)

func newFlakegenGenerator() *flake.Generator {
	mid := int64(258)
	gen, err := flake.NewGenerator(flake.Settings{Epoch: benchEpoch, MachineID: &mid})
	if err != nil {
		os.Exit(-1)
	}
	return gen
}

func newSonyflakeGenerator() *sonyflake.Sonyflake {
	sf := sonyflake.NewSonyflake(sonyflake.Settings{
		StartTime: benchEpoch,
		MachineID: func() (uint16, error) { return 258, nil },
	})
	if sf == nil {
		os.Exit(-1)
	}
	return sf
}

func openFlakegenBackend(name string, sync, clean bool) (be backend.Backend, err error) {
	gopath, set := os.LookupEnv("GOPATH")
	if !set {
		os.Exit(-1)
	}
	dbDir := filepath.Join(gopath, "temp", "benchmark", "backend", name)
	if clean {
		_ = os.RemoveAll(dbDir)
	}
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		os.Exit(-1)
	}
	return backend.OpenBackend(zap.NewExample(), backend.Config{Dir: dbDir, Sync: sync},
		backend.Meta{MachineID: 258, EpochMillis: benchEpoch.UnixMilli()})
}
