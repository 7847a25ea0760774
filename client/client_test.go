package client

import (
	"context"
	"net"
	"sync/atomic"
	"testing"

	"github.com/vigilglc/flakegen/server/api/idpb"
	"google.golang.org/grpc"
)

type testIDServer struct {
	idpb.UnimplementedIDServiceServer
	nextID uint64
}

func (ts *testIDServer) NextID(ctx context.Context, req *idpb.NextIDRequest) (*idpb.NextIDResponse, error) {
	return &idpb.NextIDResponse{Id: atomic.AddUint64(&ts.nextID, 1)}, nil
}

func (ts *testIDServer) Status(ctx context.Context, req *idpb.StatusRequest) (*idpb.StatusResponse, error) {
	return &idpb.StatusResponse{Name: "testing-server", MachineId: 258}, nil
}

func serveTestIDServer(t *testing.T, addr string) (gSrv *grpc.Server, host string) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	gSrv = grpc.NewServer()
	idpb.RegisterIDServiceServer(gSrv, new(testIDServer))
	go func() { _ = gSrv.Serve(lis) }()
	return gSrv, lis.Addr().String()
}

func TestClientResetAndClose(t *testing.T) {
	gSrv, host := serveTestIDServer(t, "127.0.0.1:0")
	defer gSrv.Stop()

	cli := NewClient(context.Background(), host)
	if !cli.Closed() {
		t.Fatalf("fresh client closed, expected: %v, actual: %v", true, cli.Closed())
	}
	if _, err := cli.NextID(context.Background(), &idpb.NextIDRequest{}); err != ErrClientClosed {
		t.Fatalf("next id err, expected: %v, actual: %v", ErrClientClosed, err)
	}
	if err := cli.Reset(); err != nil {
		t.Fatalf("failed to reset client: %v", err)
	}
	resp, err := cli.NextID(context.Background(), &idpb.NextIDRequest{})
	if err != nil {
		t.Fatalf("failed to request next id: %v", err)
	}
	if resp.Id == 0 {
		t.Fatalf("next id, expected: %v, actual: %v", "non-zero", resp.Id)
	}
	if err := cli.Close(); err != nil {
		t.Fatalf("failed to close client: %v", err)
	}
	if _, err := cli.Status(context.Background(), &idpb.StatusRequest{}); err != ErrClientClosed {
		t.Fatalf("status err, expected: %v, actual: %v", ErrClientClosed, err)
	}
	if err := cli.Close(); err != nil {
		t.Fatalf("failed to close client again: %v", err)
	}
}
