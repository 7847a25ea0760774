package server

import (
	"context"

	"github.com/vigilglc/flakegen/server/api/idpb"
	"github.com/vigilglc/flakegen/server/utils/mathutil"
)

// maxBulkPrealloc bounds the initial allocation of a bulk response, whatever
// MaxBulkCount the config allows.
const maxBulkPrealloc = 1024

func (s *Server) NextID(ctx context.Context, request *idpb.NextIDRequest) (resp *idpb.NextIDResponse, err error) {
	resp = new(idpb.NextIDResponse)
	releaseF, err := s.acquire()
	if err != nil {
		return resp, err
	}
	defer releaseF()
	resp.Id, err = s.gen.Next()
	return
}

func (s *Server) BulkIDs(ctx context.Context, request *idpb.BulkIDsRequest) (resp *idpb.BulkIDsResponse, err error) {
	resp = new(idpb.BulkIDsResponse)
	if request.Count == 0 || request.Count > s.Config.MaxBulkCount {
		return resp, ErrInvalidArgs
	}
	releaseF, err := s.acquire()
	if err != nil {
		return resp, err
	}
	defer releaseF()
	ids := make([]uint64, 0, mathutil.MinUint64(uint64(request.Count), maxBulkPrealloc))
	for i := uint32(0); i < request.Count; i++ {
		id, err := s.gen.Next()
		if err != nil {
			return resp, err
		}
		ids = append(ids, id)
	}
	resp.Ids = ids
	return
}

func (s *Server) ParseID(ctx context.Context, request *idpb.ParseIDRequest) (resp *idpb.ParseIDResponse, err error) {
	payload := s.gen.Parse(request.Id)
	resp = &idpb.ParseIDResponse{
		Timestamp:     payload.Timestamp,
		Sequence:      payload.Sequence,
		MachineId:     payload.MachineID,
		StartTime:     payload.StartTime.UnixMilli(),
		GeneratedTime: payload.GeneratedTime.UnixMilli(),
	}
	return
}

func (s *Server) Status(ctx context.Context, request *idpb.StatusRequest) (resp *idpb.StatusResponse, err error) {
	lastTicks, sequence := s.gen.Last()
	resp = &idpb.StatusResponse{
		Name:        s.Config.Name,
		MachineId:   s.gen.MachineID(),
		EpochMillis: s.gen.Epoch().UnixMilli(),
		LastTicks:   lastTicks,
		Sequence:    sequence,
		Watermark:   s.backend.Watermark(),
	}
	return
}
