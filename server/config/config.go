package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/vigilglc/flakegen/flake"
	"github.com/vigilglc/flakegen/server/backend"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ServerConfig struct {
	Name          string   `json:"name" toml:"Name"`
	LocalAddrInfo AddrInfo `json:"localAddrInfo" toml:"LocalAddrInfo"`
	// id generation
	MachineID    int64  `json:"machineID" toml:"MachineID"`       // negative means deriving it from the host address
	EpochMillis  int64  `json:"epochMillis" toml:"EpochMillis"`   // zero means the built-in epoch
	MaxBulkCount uint32 `json:"maxBulkCount" toml:"MaxBulkCount"` // upper bound of ids per bulk request
	// storage
	DataDir             string `json:"dataDir" toml:"DataDir"` // root dir for storing any data of server.
	BackendSync         bool   `json:"backendSync,omitempty" toml:"BackendSync"` // whether Backend does fsync...
	WatermarkIntervalMs int64  `json:"watermarkIntervalMs" toml:"WatermarkIntervalMs"`
	// logger
	lgMu           sync.Mutex
	lg             *zap.Logger
	Development    bool     `json:"development,omitempty" toml:"Development"`
	LogLevel       string   `json:"logLevel,omitempty" toml:"LogLevel"`
	LogOutputPaths []string `json:"logOutputPaths,omitempty" toml:"LogOutputPaths"`
}

func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Name: "flakegen",
		LocalAddrInfo: AddrInfo{
			Name: "flakegen", Host: "127.0.0.1", ServicePort: 7333,
		},
		MachineID:           -1,
		MaxBulkCount:        1024,
		DataDir:             "flakegen-data",
		BackendSync:         true,
		WatermarkIntervalMs: 1000,
		LogLevel:            "info",
	}
}

func ReadServerConfig(fpath string) (*ServerConfig, error) {
	cfg := DefaultServerConfig()
	if _, err := toml.DecodeFile(fpath, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Validate(cfg *ServerConfig) error {
	if len(cfg.Name) == 0 {
		return fmt.Errorf("config: server name is empty")
	}
	if AddrInfoEmpty(cfg.LocalAddrInfo) {
		return fmt.Errorf("config: local address incomplete: %+v", cfg.LocalAddrInfo)
	}
	if len(cfg.DataDir) == 0 {
		return fmt.Errorf("config: data dir is empty")
	}
	if cfg.MachineID > int64(flake.MaxMachineID) {
		return fmt.Errorf("config: machine id %d out of range", cfg.MachineID)
	}
	if cfg.EpochMillis < 0 {
		return fmt.Errorf("config: epoch millis %d is negative", cfg.EpochMillis)
	}
	if cfg.MaxBulkCount == 0 {
		return fmt.Errorf("config: max bulk count is zero")
	}
	if cfg.WatermarkIntervalMs <= 0 {
		return fmt.Errorf("config: watermark interval %dms is not positive", cfg.WatermarkIntervalMs)
	}
	return nil
}

var strMapZapLevel = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
	"panic": zap.PanicLevel,
	"fatal": zap.FatalLevel,
}

// MakeLogger rebuilds the logger, picking up any overridden log fields.
func (cfg *ServerConfig) MakeLogger() {
	cfg.lgMu.Lock()
	defer cfg.lgMu.Unlock()
	cfg.lg = cfg.buildLogger()
}

func (cfg *ServerConfig) GetLogger() *zap.Logger {
	cfg.lgMu.Lock()
	defer cfg.lgMu.Unlock()
	if cfg.lg != nil {
		return cfg.lg
	}
	cfg.lg = cfg.buildLogger()
	return cfg.lg
}

func (cfg *ServerConfig) buildLogger() *zap.Logger {
	logLevel := zapcore.InfoLevel
	if lv, ok := strMapZapLevel[strings.ToLower(cfg.LogLevel)]; ok {
		logLevel = lv
	}
	logOutputPaths := cfg.LogOutputPaths
	if len(logOutputPaths) == 0 {
		logOutputPaths = []string{"stderr"}
	}
	lg, err := zap.Config{
		Level:       zap.NewAtomicLevelAt(logLevel),
		Development: cfg.Development,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      logOutputPaths,
		ErrorOutputPaths: logOutputPaths,
	}.Build()
	if err != nil {
		panic("server config failed to create logger")
	}
	return lg
}

func (cfg *ServerConfig) GetDataDir() string {
	lg := cfg.GetLogger()
	err := os.MkdirAll(cfg.DataDir, 0700)
	if err != nil {
		lg.Fatal("data dir of server is invalid", zap.Error(err))
	}
	return cfg.DataDir
}

func (cfg *ServerConfig) GetBackendDir() string {
	return filepath.Join(cfg.GetDataDir(), "backend")
}

func (cfg *ServerConfig) GetBackendConfig() backend.Config {
	return backend.Config{
		Dir:  cfg.GetBackendDir(),
		Sync: cfg.BackendSync,
	}
}

// GetFlakeSettings maps the configured identity onto generator settings.
// A negative MachineID leaves resolution to the library.
func (cfg *ServerConfig) GetFlakeSettings() flake.Settings {
	var settings flake.Settings
	if cfg.EpochMillis > 0 {
		settings.Epoch = time.UnixMilli(cfg.EpochMillis).UTC()
	}
	if cfg.MachineID >= 0 {
		mid := cfg.MachineID
		settings.MachineID = &mid
	}
	return settings
}

func (cfg *ServerConfig) GetWatermarkInterval() time.Duration {
	return time.Duration(cfg.WatermarkIntervalMs) * time.Millisecond
}
