// Package adminrpc implements the EsporaAdmin gRPC health service served by
// cmd/espora-server. No binary in this repository queries it; cmd/espora-lb
// picks upstreams without consulting it. It hand-rolls a grpc.ServiceDesc without protobuf,
// the exact pattern the teacher uses for its own TinySQLServer in
// cmd/server/main.go (manual grpc.MethodDesc handlers plus a JSON
// encoding.Codec), reused here for a much smaller surface: Ping and
// Stats.
package adminrpc

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
)

// PingRequest is empty; Ping is a pure liveness probe.
type PingRequest struct{}

// PingResponse confirms the process is alive.
type PingResponse struct {
	OK bool `json:"ok"`
}

// StatsRequest is empty.
type StatsRequest struct{}

// StatsResponse reports a small snapshot of process health.
type StatsResponse struct {
	OpenAccounts  int    `json:"open_accounts"`
	AppendCount   uint64 `json:"append_count"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// Server is implemented by cmd/espora-server's process state.
type Server interface {
	Ping(context.Context, *PingRequest) (*PingResponse, error)
	Stats(context.Context, *StatsRequest) (*StatsResponse, error)
}

// JSONCodec is the gRPC wire codec used in place of protobuf, the same
// choice the teacher makes for its own hand-rolled service.
type JSONCodec struct{}

// Name implements encoding.Codec.
func (JSONCodec) Name() string { return "json" }

// Marshal implements encoding.Codec.
func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal implements encoding.Codec.
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Register attaches srv to gs under the EsporaAdmin service name.
func Register(gs *grpc.Server, srv Server) {
	gs.RegisterService(&grpc.ServiceDesc{
		ServiceName: "espora.EsporaAdmin",
		HandlerType: (*Server)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "Ping", Handler: pingHandler},
			{MethodName: "Stats", Handler: statsHandler},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "espora",
	}, srv)
}

func pingHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PingRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/espora.EsporaAdmin/Ping"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).Ping(ctx, req.(*PingRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func statsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StatsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).Stats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/espora.EsporaAdmin/Stats"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).Stats(ctx, req.(*StatsRequest))
	}
	return interceptor(ctx, in, info, handler)
}
