package server

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vigilglc/flakegen/flake"
	"github.com/vigilglc/flakegen/server/api/idpb"
	"github.com/vigilglc/flakegen/server/backend"
	"github.com/vigilglc/flakegen/server/config"
	"go.uber.org/zap"
)

var testingServerDir string

func TestMain(m *testing.M) {
	gopath, set := os.LookupEnv("GOPATH")
	if !set {
		os.Exit(-1)
	}
	testingServerDir = filepath.Join(gopath, "temp", "testing", "server")
	if err := os.MkdirAll(testingServerDir, 0755); err != nil {
		os.Exit(-1)
	}
	m.Run()
	_ = os.RemoveAll(testingServerDir)
}

func newTestConfig(name string) *config.ServerConfig {
	cfg := config.DefaultServerConfig()
	cfg.Name = name
	cfg.MachineID = 258
	cfg.MaxBulkCount = 512
	cfg.DataDir = filepath.Join(testingServerDir, name)
	cfg.BackendSync = false
	cfg.WatermarkIntervalMs = 100
	cfg.LogLevel = "warn"
	return cfg
}

func TestServerNextAndBulk(t *testing.T) {
	cfg := newTestConfig("next-bulk")
	defer func() { _ = os.RemoveAll(cfg.DataDir) }()
	sv, err := NewServer(cfg)
	if err != nil {
		t.Fatal(err)
	}
	sv.Start()
	ctx := context.Background()

	nextResp, err := sv.NextID(ctx, &idpb.NextIDRequest{})
	if err != nil {
		t.Fatal(err)
	}
	nextResp2, err := sv.NextID(ctx, &idpb.NextIDRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if nextResp2.Id <= nextResp.Id {
		t.Fatalf("successive ids expected increasing, actual: %v then %v", nextResp.Id, nextResp2.Id)
	}

	bulkResp, err := sv.BulkIDs(ctx, &idpb.BulkIDsRequest{Count: 300})
	if err != nil {
		t.Fatal(err)
	}
	if len(bulkResp.Ids) != 300 {
		t.Fatalf("bulk ids len, expected: %v, actual: %v", 300, len(bulkResp.Ids))
	}
	last := nextResp2.Id
	for i, id := range bulkResp.Ids {
		if id <= last {
			t.Fatalf("bulk id %v expected greater than %v, actual: %v", i, last, id)
		}
		last = id
	}
	testCases := []uint32{0, cfg.MaxBulkCount + 1}
	for _, count := range testCases {
		if _, err := sv.BulkIDs(ctx, &idpb.BulkIDsRequest{Count: count}); !errors.Is(err, ErrInvalidArgs) {
			t.Fatalf("bulk count %v, expected: %v, actual: %v", count, ErrInvalidArgs, err)
		}
	}

	parseResp, err := sv.ParseID(ctx, &idpb.ParseIDRequest{Id: nextResp.Id})
	if err != nil {
		t.Fatal(err)
	}
	if parseResp.MachineId != 258 {
		t.Fatalf("parsed machine id, expected: %v, actual: %v", 258, parseResp.MachineId)
	}
	if parseResp.GeneratedTime-parseResp.StartTime != parseResp.Timestamp {
		t.Fatalf("parsed times, expected delta: %v, actual: %v",
			parseResp.Timestamp, parseResp.GeneratedTime-parseResp.StartTime)
	}

	statusResp, err := sv.Status(ctx, &idpb.StatusRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if statusResp.Name != cfg.Name {
		t.Fatalf("status name, expected: %v, actual: %v", cfg.Name, statusResp.Name)
	}
	if statusResp.MachineId != 258 {
		t.Fatalf("status machine id, expected: %v, actual: %v", 258, statusResp.MachineId)
	}
	lastTs, _, _ := flake.Decompose(last)
	if statusResp.LastTicks != lastTs/flake.TickMillis {
		t.Fatalf("status last ticks, expected: %v, actual: %v", lastTs/flake.TickMillis, statusResp.LastTicks)
	}

	sv.Stop()
	if _, err := sv.NextID(ctx, &idpb.NextIDRequest{}); !errors.Is(err, ErrStopped) {
		t.Fatalf("next after stop, expected: %v, actual: %v", ErrStopped, err)
	}
	sv.Stop() // idempotent
}

func TestServerStartGate(t *testing.T) {
	cfg := newTestConfig("start-gate")
	cfg.EpochMillis = time.Now().Add(-time.Hour).UnixMilli()
	defer func() { _ = os.RemoveAll(cfg.DataDir) }()
	// persist a watermark ahead of the clock, as a run dying between
	// checkpoints would leave behind
	meta := backend.Meta{MachineID: 258, EpochMillis: cfg.EpochMillis}
	be, err := backend.OpenBackend(zap.NewExample(), cfg.GetBackendConfig(), meta)
	if err != nil {
		t.Fatal(err)
	}
	aheadMark := uint64((time.Now().UnixMilli()-cfg.EpochMillis)/flake.TickMillis + 30)
	if err := be.PutWatermark(aheadMark); err != nil {
		t.Fatal(err)
	}
	if err := be.Close(); err != nil {
		t.Fatal(err)
	}

	sv, err := NewServer(cfg)
	if err != nil {
		t.Fatal(err)
	}
	go sv.Start()
	select {
	case <-sv.ReadyNotify():
		t.Fatalf("server ready before clock passed watermark %v", aheadMark)
	case <-time.After(50 * time.Millisecond):
	}
	select {
	case <-sv.ReadyNotify():
	case <-time.After(2 * time.Second):
		t.Fatalf("server not ready after clock passed watermark %v", aheadMark)
	}
	resp, err := sv.NextID(context.Background(), &idpb.NextIDRequest{})
	if err != nil {
		t.Fatal(err)
	}
	ts, _, _ := flake.Decompose(resp.Id)
	if uint64(ts/flake.TickMillis) <= aheadMark {
		t.Fatalf("first tick expected beyond watermark %v, actual: %v", aheadMark, ts/flake.TickMillis)
	}
	sv.Stop()
}

func TestServerRestartKeepsIDsUnique(t *testing.T) {
	cfg := newTestConfig("restart")
	cfg.EpochMillis = 1409529600000
	defer func() { _ = os.RemoveAll(cfg.DataDir) }()
	sv, err := NewServer(cfg)
	if err != nil {
		t.Fatal(err)
	}
	sv.Start()
	bulkResp, err := sv.BulkIDs(context.Background(), &idpb.BulkIDsRequest{Count: 500})
	if err != nil {
		t.Fatal(err)
	}
	lastID := bulkResp.Ids[len(bulkResp.Ids)-1]
	sv.Stop()

	// a clean stop cuts the stored watermark down to exactly the last tick
	lastTs, _, _ := flake.Decompose(lastID)
	be, err := backend.OpenBackend(zap.NewExample(), cfg.GetBackendConfig(),
		backend.Meta{MachineID: 258, EpochMillis: cfg.EpochMillis})
	if err != nil {
		t.Fatal(err)
	}
	if wm := be.Watermark(); wm != uint64(lastTs/flake.TickMillis) {
		t.Fatalf("cut watermark, expected: %v, actual: %v", lastTs/flake.TickMillis, wm)
	}
	if err := be.Close(); err != nil {
		t.Fatal(err)
	}

	sv, err = NewServer(cfg)
	if err != nil {
		t.Fatal(err)
	}
	sv.Start()
	resp, err := sv.NextID(context.Background(), &idpb.NextIDRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Id <= lastID {
		t.Fatalf("id after restart expected greater than %v, actual: %v", lastID, resp.Id)
	}
	sv.Stop()
}
