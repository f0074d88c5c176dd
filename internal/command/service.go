package command

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName = "uesim.control.v1.Control"

	executeMethod = "/" + ServiceName + "/Execute"
	stateMethod   = "/" + ServiceName + "/State"
)

// Endpoint is the simulated UE as seen by the control service. Both calls
// are answered from inside the endpoint task.
type Endpoint interface {
	Execute(ctx context.Context, cmd Command) (bool, error)
	Snapshot(ctx context.Context) (*Snapshot, error)
}

type ControlServer interface {
	Execute(context.Context, *structpb.Struct) (*wrapperspb.BoolValue, error)
	State(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Execute", Handler: executeHandler},
		{MethodName: "State", Handler: stateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "uesim/control.proto",
}

func RegisterControlServer(s grpc.ServiceRegistrar, srv ControlServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func executeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).Execute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: executeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControlServer).Execute(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func stateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).State(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: stateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControlServer).State(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// Server answers control calls by asking the endpoint task.
type Server struct {
	ep  Endpoint
	log *zap.SugaredLogger
}

func NewServer(ep Endpoint, log *zap.SugaredLogger) *Server {
	return &Server{ep: ep, log: log}
}

func (s *Server) Execute(ctx context.Context, in *structpb.Struct) (*wrapperspb.BoolValue, error) {
	cmd, err := Parse(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	s.log.Infow("test command received", "command", cmd.Name())
	ok, err := s.ep.Execute(ctx, cmd)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bool(ok), nil
}

func (s *Server) State(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snap, err := s.ep.Snapshot(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return snap.Struct()
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}

// AuthInterceptor rejects calls whose "auth" metadata does not carry
// token. An empty token disables the check.
func AuthInterceptor(token string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if token == "" {
			return handler(ctx, req)
		}
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}
		if v := md.Get("auth"); len(v) == 0 || v[0] != token {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		return handler(ctx, req)
	}
}

// Client is the harness side of the control service.
type Client struct {
	cc    grpc.ClientConnInterface
	token string
}

func NewClient(cc grpc.ClientConnInterface, token string) *Client {
	return &Client{cc: cc, token: token}
}

func (c *Client) outgoing(ctx context.Context) context.Context {
	if c.token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "auth", c.token)
}

// Execute sends cmd and reports whether the endpoint recognized it.
func (c *Client) Execute(ctx context.Context, cmd Command) (bool, error) {
	in, err := ToStruct(cmd)
	if err != nil {
		return false, err
	}
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(c.outgoing(ctx), executeMethod, in, out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

func (c *Client) State(ctx context.Context) (*Snapshot, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(c.outgoing(ctx), stateMethod, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return SnapshotFromStruct(out), nil
}
