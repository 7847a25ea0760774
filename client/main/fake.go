package main

import (
	"context"
	"fmt"
	"log"

	"github.com/vigilglc/flakegen/client"
	"github.com/vigilglc/flakegen/flake"
	"github.com/vigilglc/flakegen/server/api/idpb"
	"google.golang.org/grpc"
)

const (
	fakeMachineID   = 258
	fakeEpochMillis = 1409529600000
)

var fakeClientError = fmt.Errorf("fake client: test error")

type fakeClient struct {
	host   string
	closed bool
	ticks  uint64
	seq    uint64
}

func newFakeClient(host string) *fakeClient {
	return &fakeClient{host: host}
}

func (f *fakeClient) mint() uint64 {
	f.seq = (f.seq + 1) & flake.MaxSequence
	if f.seq == 0 {
		f.ticks++
	}
	return f.ticks<<(flake.SequenceBits+flake.MachineIDBits) |
		f.seq<<flake.MachineIDBits | fakeMachineID
}

// region fake client impls...

func (f *fakeClient) NextID(ctx context.Context, in *idpb.NextIDRequest, opts ...grpc.CallOption) (*idpb.NextIDResponse, error) {
	log.Printf("req: %v\n", in)
	if f.closed {
		return nil, client.ErrClientClosed
	}
	return &idpb.NextIDResponse{Id: f.mint()}, nil
}

func (f *fakeClient) BulkIDs(ctx context.Context, in *idpb.BulkIDsRequest, opts ...grpc.CallOption) (*idpb.BulkIDsResponse, error) {
	log.Printf("req: %v\n", in)
	if f.closed {
		return nil, client.ErrClientClosed
	}
	if in.Count == 0 || in.Count > 1024 {
		return new(idpb.BulkIDsResponse), fakeClientError
	}
	resp := new(idpb.BulkIDsResponse)
	for i := uint32(0); i < in.Count; i++ {
		resp.Ids = append(resp.Ids, f.mint())
	}
	return resp, nil
}

func (f *fakeClient) ParseID(ctx context.Context, in *idpb.ParseIDRequest, opts ...grpc.CallOption) (*idpb.ParseIDResponse, error) {
	log.Printf("req: %v\n", in)
	if f.closed {
		return nil, client.ErrClientClosed
	}
	ts, seq, mid := flake.Decompose(in.Id)
	return &idpb.ParseIDResponse{
		Timestamp:     ts,
		Sequence:      seq,
		MachineId:     mid,
		StartTime:     fakeEpochMillis,
		GeneratedTime: fakeEpochMillis + ts,
	}, nil
}

func (f *fakeClient) Status(ctx context.Context, in *idpb.StatusRequest, opts ...grpc.CallOption) (*idpb.StatusResponse, error) {
	log.Printf("req: %v\n", in)
	if f.closed {
		return nil, client.ErrClientClosed
	}
	return &idpb.StatusResponse{
		Name:        "fake-node",
		MachineId:   fakeMachineID,
		EpochMillis: fakeEpochMillis,
		LastTicks:   int64(f.ticks),
		Sequence:    f.seq,
		Watermark:   f.ticks + 200,
	}, nil
}

func (f *fakeClient) Host() string {
	return f.host
}

func (f *fakeClient) Closed() bool {
	return f.closed
}

func (f *fakeClient) Reset() error {
	f.closed = false
	return nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

// endregion

type fakeAgent struct {
	ctx     context.Context
	cancel  func()
	clients map[string]*fakeClient
}

func newFakeAgent(ctx context.Context, initHosts ...string) client.Agent {
	ret := &fakeAgent{clients: map[string]*fakeClient{}}
	ret.ctx, ret.cancel = context.WithCancel(ctx)
	ret.AddClients(initHosts)
	return ret
}

func (fa *fakeAgent) Context() context.Context {
	return fa.ctx
}

func (fa *fakeAgent) AllHosts() []string {
	var hosts []string
	for h := range fa.clients {
		hosts = append(hosts, h)
	}
	return hosts
}

func (fa *fakeAgent) AliveHosts() []string {
	var hosts []string
	for h, cli := range fa.clients {
		if !cli.closed {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

func (fa *fakeAgent) AddClients(hosts []string) {
	for _, h := range hosts {
		if _, ok := fa.clients[h]; !ok {
			fa.clients[h] = newFakeClient(h)
		}
	}
}

func (fa *fakeAgent) Close() error {
	fa.cancel()
	for _, cli := range fa.clients {
		_ = cli.Close()
	}
	return nil
}

func (fa *fakeAgent) Revive() error {
	if len(fa.clients) == 0 {
		return client.ErrNoAvailableClients
	}
	for _, cli := range fa.clients {
		_ = cli.Reset()
	}
	return nil
}

func (fa *fakeAgent) Pick(act func(context.Context, client.Client) error) error {
	for _, cli := range fa.clients {
		if cli.closed {
			continue
		}
		return act(fa.ctx, cli)
	}
	return client.ErrNoAvailableClients
}

func (fa *fakeAgent) PickByHost(host string, act func(context.Context, client.Client) error) error {
	cli, ok := fa.clients[host]
	if !ok {
		return client.ErrNoAvailableClients
	}
	return act(fa.ctx, cli)
}
