package api

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vigilglc/flakegen/server"
	api "github.com/vigilglc/flakegen/server/api/idpb"
	"github.com/vigilglc/flakegen/server/config"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1 << 20

var testingServiceDir string

func TestMain(m *testing.M) {
	gopath, set := os.LookupEnv("GOPATH")
	if !set {
		os.Exit(-1)
	}
	testingServiceDir = filepath.Join(gopath, "temp", "testing", "api")
	if err := os.MkdirAll(testingServiceDir, 0755); err != nil {
		os.Exit(-1)
	}
	m.Run()
	_ = os.RemoveAll(testingServiceDir)
}

func dialer(gSrv *grpc.Server) func(context.Context, string) (net.Conn, error) {
	lis := bufconn.Listen(bufSize)
	go func() { _ = gSrv.Serve(lis) }()
	return func(ctx context.Context, s string) (net.Conn, error) { return lis.Dial() }
}

func TestServiceOverBufConn(t *testing.T) {
	cfg := config.DefaultServerConfig()
	cfg.Name = "flakegen-test"
	cfg.MachineID = 258
	cfg.DataDir = filepath.Join(testingServiceDir, "service")
	cfg.BackendSync = false
	cfg.WatermarkIntervalMs = 100
	cfg.LogLevel = "warn"
	defer func() { _ = os.RemoveAll(cfg.DataDir) }()

	sv, err := server.NewServer(cfg)
	if err != nil {
		t.Fatal(err)
	}
	sv.Start()
	defer sv.Stop()
	gSrv := grpc.NewServer()
	api.RegisterIDServiceServer(gSrv, &serviceServer{lg: cfg.GetLogger(), sv: sv})
	defer gSrv.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := grpc.DialContext(ctx, "bufnet", grpc.WithContextDialer(dialer(gSrv)), grpc.WithInsecure())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = conn.Close() }()
	cli := api.NewIDServiceClient(conn)

	nextResp, err := cli.NextID(ctx, &api.NextIDRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if nextResp.Id == 0 {
		t.Fatalf("next id expected non-zero, actual: %v", nextResp.Id)
	}
	parseResp, err := cli.ParseID(ctx, &api.ParseIDRequest{Id: nextResp.Id})
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
	bulkResp, err := cli.BulkIDs(ctx, &api.BulkIDsRequest{Count: 16})
	if err != nil {
		t.Fatal(err)
	}
	if len(bulkResp.Ids) != 16 {
		t.Fatalf("bulk ids len, expected: %v, actual: %v", 16, len(bulkResp.Ids))
	}
	last := nextResp.Id
	for i, id := range bulkResp.Ids {
		if id <= last {
			t.Fatalf("bulk id %v expected greater than %v, actual: %v", i, last, id)
		}
		last = id
	}
	if _, err := cli.BulkIDs(ctx, &api.BulkIDsRequest{Count: 0}); err == nil {
		t.Fatalf("bulk count 0 expected error, actual: %v", err)
	}
	statusResp, err := cli.Status(ctx, &api.StatusRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if statusResp.Name != cfg.Name {
		t.Fatalf("status name, expected: %v, actual: %v", cfg.Name, statusResp.Name)
	}
	if statusResp.MachineId != 258 {
		t.Fatalf("status machine id, expected: %v, actual: %v", 258, statusResp.MachineId)
	}
}
