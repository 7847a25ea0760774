package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vigilglc/flakegen/server/api/idpb"
	"github.com/vigilglc/flakegen/server/utils/syncutil"
	"google.golang.org/grpc"
)

var (
	ErrClientClosed = errors.New("client: closed")
)

const dialTimeout = 3 * time.Second

type Client interface {
	idpb.IDServiceClient
	Host() string
	Closed() bool
	Reset() error
	Close() error
}

type rpcClient struct {
	ctx  context.Context
	host string

	rwmu   sync.RWMutex
	conn   *grpc.ClientConn
	closed bool
	idCli  idpb.IDServiceClient
}

func NewClient(ctx context.Context, host string) (client Client) {
	return &rpcClient{ctx: ctx, host: host, closed: true}
}

func (rc *rpcClient) NextID(ctx context.Context, in *idpb.NextIDRequest, opts ...grpc.CallOption) (*idpb.NextIDResponse, error) {
	defer syncutil.SchedLockers(rc.rwmu.RLocker())()
	if rc.closed {
		return nil, ErrClientClosed
	}
	return rc.idCli.NextID(ctx, in, opts...)
}

func (rc *rpcClient) BulkIDs(ctx context.Context, in *idpb.BulkIDsRequest, opts ...grpc.CallOption) (*idpb.BulkIDsResponse, error) {
	defer syncutil.SchedLockers(rc.rwmu.RLocker())()
	if rc.closed {
		return nil, ErrClientClosed
	}
	return rc.idCli.BulkIDs(ctx, in, opts...)
}

func (rc *rpcClient) ParseID(ctx context.Context, in *idpb.ParseIDRequest, opts ...grpc.CallOption) (*idpb.ParseIDResponse, error) {
	defer syncutil.SchedLockers(rc.rwmu.RLocker())()
	if rc.closed {
		return nil, ErrClientClosed
	}
	return rc.idCli.ParseID(ctx, in, opts...)
}

func (rc *rpcClient) Status(ctx context.Context, in *idpb.StatusRequest, opts ...grpc.CallOption) (*idpb.StatusResponse, error) {
	defer syncutil.SchedLockers(rc.rwmu.RLocker())()
	if rc.closed {
		return nil, ErrClientClosed
	}
	return rc.idCli.Status(ctx, in, opts...)
}

func (rc *rpcClient) Host() string {
	defer syncutil.SchedLockers(rc.rwmu.RLocker())()
	return rc.host
}

// Reset redials the host, closing any previous connection first.
func (rc *rpcClient) Reset() error {
	defer syncutil.SchedLockers(&rc.rwmu)()
	if rc.conn != nil && !rc.closed {
		if err := rc.conn.Close(); err != nil {
			return err
		}
		rc.closed = true
	}
	ctx, cancel := context.WithTimeout(rc.ctx, dialTimeout)
	defer cancel()
	conn, err := grpc.DialContext(ctx, rc.host, grpc.WithInsecure(), grpc.WithBlock())
	if err != nil {
		return err
	}
	rc.conn = conn
	rc.closed = false
	rc.idCli = idpb.NewIDServiceClient(conn)
	return nil
}

func (rc *rpcClient) Closed() bool {
	defer syncutil.SchedLockers(rc.rwmu.RLocker())()
	return rc.closed
}

func (rc *rpcClient) Close() error {
	defer syncutil.SchedLockers(&rc.rwmu)()
	if rc.closed {
		return nil
	}
	rc.closed = true
	return rc.conn.Close()
}
