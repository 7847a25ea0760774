package client

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/vigilglc/flakegen/server/utils/ntfyutil"
	"github.com/vigilglc/flakegen/server/utils/syncutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrNoAvailableClients = errors.New("client-agent: no available clients")
	ErrAgentStopped       = errors.New("client-agent: stopped")
)

// Agent keeps one client per server host. Hosts whose dial or rpc failed are
// parked in a dead pool and redialed periodically, or on demand via Revive.
type Agent interface {
	Context() context.Context
	AllHosts() []string
	AliveHosts() []string
	AddClients(hosts []string)
	Close() error
	Revive() error
	Pick(act func(context.Context, Client) error) error
	PickByHost(host string, act func(context.Context, Client) error) error
}

type agent struct {
	ctx    context.Context
	cancel func()
	rwmu   sync.RWMutex
	rng    *rand.Rand

	aliveClients map[string]*rpcClient
	deadClients  map[string]*rpcClient

	aliveClientsSlc []*rpcClient

	closeOnce sync.Once
	stopped   chan struct{}
	done      chan struct{}

	emitter   *ntfyutil.SharedErrEmitter
	reviveReq chan struct{}
}

const reviveInterval = 10 * time.Second

func NewAgent(ctx context.Context, initHosts ...string) Agent {
	ret := new(agent)
	ret.ctx, ret.cancel = context.WithCancel(ctx)
	ret.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	ret.doClean()
	ret.stopped = make(chan struct{})
	ret.done = make(chan struct{})

	ret.emitter = ntfyutil.NewSharedErrEmitter()
	ret.reviveReq = make(chan struct{})

	ret.AddClients(initHosts)
	go func() {
		var timer = time.NewTimer(reviveInterval)
		for true {
			select {
			case <-ret.stopped:
				close(ret.done)
				return
			case <-timer.C:
				_ = ret.doRevive()
				timer.Reset(reviveInterval)
			case <-ret.reviveReq:
				ret.emitter.NextShared().Notify(ret.doRevive())
				timer.Reset(reviveInterval)
			}
		}
	}()
	return ret
}

func (agt *agent) Context() context.Context {
	return agt.ctx
}

func (agt *agent) AddClients(hosts []string) {
	defer syncutil.SchedLockers(&agt.rwmu)()
	for _, host := range hosts {
		agt.doAddClient(host)
	}
}

func (agt *agent) doAddClient(host string) {
	host = strings.TrimSpace(host)
	if len(host) == 0 {
		return
	}
	if _, ok := agt.aliveClients[host]; ok {
		return
	}
	cli, ok := agt.deadClients[host]
	if !ok {
		cli = &rpcClient{ctx: agt.ctx, host: host, closed: true}
	}
	if err := cli.Reset(); err != nil {
		agt.deadClients[host] = cli
		return
	}
	delete(agt.deadClients, host)
	agt.aliveClients[host] = cli
	agt.aliveClientsSlc = append(agt.aliveClientsSlc, cli)
}

func (agt *agent) doClean() {
	agt.aliveClients = map[string]*rpcClient{}
	agt.deadClients = map[string]*rpcClient{}
	agt.aliveClientsSlc = nil
}

func (agt *agent) AllHosts() []string {
	defer syncutil.SchedLockers(agt.rwmu.RLocker())()
	var hosts []string
	for _, hc := range [...]map[string]*rpcClient{agt.aliveClients, agt.deadClients} {
		for _, cli := range hc {
			hosts = append(hosts, cli.Host())
		}
	}
	return hosts
}

func (agt *agent) AliveHosts() []string {
	defer syncutil.SchedLockers(agt.rwmu.RLocker())()
	var hosts []string
	for _, cli := range agt.aliveClients {
		hosts = append(hosts, cli.Host())
	}
	return hosts
}

func (agt *agent) Close() error {
	var err error
	agt.closeOnce.Do(func() {
		agt.cancel()
		close(agt.stopped)
		<-agt.done
		defer syncutil.SchedLockers(&agt.rwmu)()
		for _, hc := range [...]map[string]*rpcClient{agt.aliveClients, agt.deadClients} {
			for _, cli := range hc {
				er := cli.Close()
				if err == nil {
					err = er
				}
			}
		}
		agt.doClean()
	})
	return err
}

// Revive redials every dead host right away and reports whether any client
// is alive afterwards. Concurrent callers share one redial round and get its
// result.
func (agt *agent) Revive() error {
	sharedV := agt.emitter.CurrentShared(func() {
		select {
		case <-agt.stopped:
		case agt.reviveReq <- struct{}{}:
		}
	})
	select {
	case <-agt.stopped:
		return ErrAgentStopped
	case <-sharedV.Wait():
	}
	return sharedV.Err()
}

func (agt *agent) doRevive() error {
	defer syncutil.SchedLockers(&agt.rwmu)()
	var err error
	for host, cli := range agt.deadClients {
		if er := cli.Reset(); er != nil {
			err = er
			continue
		}
		delete(agt.deadClients, host)
		agt.aliveClients[host] = cli
		agt.aliveClientsSlc = append(agt.aliveClientsSlc, cli)
	}
	if len(agt.aliveClients) > 0 {
		return nil
	}
	if err == nil {
		err = ErrNoAvailableClients
	}
	return err
}

// Pick runs act against a random alive client, parking clients whose rpc
// failed with a connection-level error and retrying on the remaining ones.
func (agt *agent) Pick(act func(context.Context, Client) error) error {
	for {
		agt.rwmu.RLock()
		if len(agt.aliveClientsSlc) == 0 {
			agt.rwmu.RUnlock()
			return ErrNoAvailableClients
		}
		cli := agt.aliveClientsSlc[agt.rng.Int()%len(agt.aliveClientsSlc)]
		agt.rwmu.RUnlock()
		err := act(agt.ctx, cli)
		if shouldCloseClient(err) {
			agt.aliveClient2Dead(cli.host)
			continue
		}
		return err
	}
}

// PickByHost runs act against the given host, redialing it first if it is
// parked in the dead pool.
func (agt *agent) PickByHost(host string, act func(context.Context, Client) error) error {
	agt.rwmu.RLock()
	cli, alive := agt.aliveClients[host]
	if !alive {
		cli = agt.deadClients[host]
	}
	agt.rwmu.RUnlock()
	if cli == nil {
		return ErrNoAvailableClients
	}
	if !alive {
		if err := cli.Reset(); err != nil {
			return err
		}
	}
	err := act(agt.ctx, cli)
	if shouldCloseClient(err) {
		agt.aliveClient2Dead(host)
	} else if !alive {
		agt.deadClient2Alive(host)
	}
	return err
}

func shouldCloseClient(err error) bool {
	if err == nil {
		return false
	}
	if err == grpc.ErrServerStopped {
		return true
	}
	if s, ok := status.FromError(err); ok {
		if s == nil {
			return false
		}
		switch s.Code() {
		case codes.Internal:
			return true
		case codes.Unavailable:
			return true
		}
	}
	return false
}

func (agt *agent) aliveClient2Dead(host string) {
	defer syncutil.SchedLockers(&agt.rwmu)()
	cli, ok := agt.aliveClients[host]
	if !ok {
		return
	}
	delete(agt.aliveClients, host)
	agt.deadClients[host] = cli
	agt.aliveClientsSlc = agt.aliveClientsSlc[:0]
	for _, cli := range agt.aliveClients {
		agt.aliveClientsSlc = append(agt.aliveClientsSlc, cli)
	}
}

func (agt *agent) deadClient2Alive(host string) {
	defer syncutil.SchedLockers(&agt.rwmu)()
	cli, ok := agt.deadClients[host]
	if !ok {
		return
	}
	delete(agt.deadClients, host)
	agt.aliveClients[host] = cli
	agt.aliveClientsSlc = append(agt.aliveClientsSlc, cli)
}
