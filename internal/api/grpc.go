package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const statsServiceName = "mcast.v1.StatsService"

// StatsServiceServer is the server API for the stats service.
type StatsServiceServer interface {
	GetSnapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Reset(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

// StatsService implements StatsServiceServer on top of a StatsSource.
type StatsService struct {
	source StatsSource
}

// NewStatsService creates a new gRPC stats service.
func NewStatsService(source StatsSource) *StatsService {
	return &StatsService{source: source}
}

// GetSnapshot returns the snapshots of all tasks keyed by task name.
func (s *StatsService) GetSnapshot(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	raw, err := json.Marshal(s.source.Snapshots())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to marshal snapshots: %v", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to convert snapshots: %v", err)
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to build snapshot struct: %v", err)
	}
	return out, nil
}

// Reset clears every task.
func (s *StatsService) Reset(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	log.Println("Received Reset request")
	s.source.Reset()
	return &emptypb.Empty{}, nil
}

// RegisterStatsServiceServer registers srv on s.
func RegisterStatsServiceServer(s grpc.ServiceRegistrar, srv StatsServiceServer) {
	s.RegisterService(&statsServiceDesc, srv)
}

func statsGetSnapshotHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StatsServiceServer).GetSnapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + statsServiceName + "/GetSnapshot"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StatsServiceServer).GetSnapshot(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func statsResetHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StatsServiceServer).Reset(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + statsServiceName + "/Reset"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StatsServiceServer).Reset(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

var statsServiceDesc = grpc.ServiceDesc{
	ServiceName: statsServiceName,
	HandlerType: (*StatsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetSnapshot", Handler: statsGetSnapshotHandler},
		{MethodName: "Reset", Handler: statsResetHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mcast/v1/stats.proto",
}

// StatsServiceClient is the client API for the stats service.
type StatsServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewStatsServiceClient creates a client over cc.
func NewStatsServiceClient(cc grpc.ClientConnInterface) *StatsServiceClient {
	return &StatsServiceClient{cc: cc}
}

// GetSnapshot calls StatsService.GetSnapshot.
func (c *StatsServiceClient) GetSnapshot(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+statsServiceName+"/GetSnapshot", &emptypb.Empty{}, out, opts...); err != nil {
		return nil, fmt.Errorf("GetSnapshot: %w", err)
	}
	return out, nil
}

// Reset calls StatsService.Reset.
func (c *StatsServiceClient) Reset(ctx context.Context, opts ...grpc.CallOption) error {
	if err := c.cc.Invoke(ctx, "/"+statsServiceName+"/Reset", &emptypb.Empty{}, new(emptypb.Empty), opts...); err != nil {
		return fmt.Errorf("Reset: %w", err)
	}
	return nil
}
