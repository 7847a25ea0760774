package api

import (
	"context"
	"net"

	"github.com/vigilglc/flakegen/server"
	api "github.com/vigilglc/flakegen/server/api/idpb"
	"github.com/vigilglc/flakegen/server/config"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

type serviceServer struct {
	lg *zap.Logger
	sv *server.Server
}

func StartService(cfg *config.ServerConfig) error {
	lg := cfg.GetLogger()
	sv, err := server.NewServer(cfg)
	if err != nil {
		return err
	}
	sv.Start()
	defer sv.Stop()
	ss := &serviceServer{lg: lg, sv: sv}
	addr := cfg.LocalAddrInfo.ServiceAddress()
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		lg.Error("failed to listen network",
			zap.String("addr", addr), zap.Error(err),
		)
		return err
	}
	gSrv := grpc.NewServer()
	api.RegisterIDServiceServer(gSrv, ss)
	return gSrv.Serve(lis)
}

func (ss *serviceServer) NextID(ctx context.Context, req *api.NextIDRequest) (resp *api.NextIDResponse, err error) {
	resp, err = ss.sv.NextID(ctx, req)
	if err != nil {
		ss.lg.Error("failed to process request", zap.Any("request", req), zap.Error(err))
	}
	return
}

func (ss *serviceServer) BulkIDs(ctx context.Context, req *api.BulkIDsRequest) (resp *api.BulkIDsResponse, err error) {
	resp, err = ss.sv.BulkIDs(ctx, req)
	if err != nil {
		ss.lg.Error("failed to process request", zap.Any("request", req), zap.Error(err))
	}
	return
}

func (ss *serviceServer) ParseID(ctx context.Context, req *api.ParseIDRequest) (resp *api.ParseIDResponse, err error) {
	resp, err = ss.sv.ParseID(ctx, req)
	if err != nil {
		ss.lg.Error("failed to process request", zap.Any("request", req), zap.Error(err))
	}
	return
}

func (ss *serviceServer) Status(ctx context.Context, req *api.StatusRequest) (resp *api.StatusResponse, err error) {
	resp, err = ss.sv.Status(ctx, req)
	if err != nil {
		ss.lg.Error("failed to process request", zap.Any("request", req), zap.Error(err))
	}
	return
}
