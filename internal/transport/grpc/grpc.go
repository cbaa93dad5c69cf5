// Package grpc implements the gRPC transport for cadence.
//
// This transport exposes the cadence.v1.Voice service with unary Speak,
// Validate and Rules methods. Messages travel as JSON using a registered
// codec, so clients select it with the "json" content-subtype. It is the
// preferred transport for low-latency calls from other backend services.
package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/nadzzz/cadence/internal/message"
	"github.com/nadzzz/cadence/internal/ssml"
	"github.com/nadzzz/cadence/internal/transport"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "cadence.v1.Voice"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec marshals messages as JSON.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return "json" }

// Transport implements transport.Transport over gRPC.
type Transport struct {
	port int

	mu     sync.Mutex
	server *grpc.Server
}

// New creates a new gRPC transport on the given port.
func New(port int) *Transport {
	return &Transport{port: port}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "grpc" }

// Listen starts the gRPC server and routes incoming requests to svc.
func (t *Transport) Listen(ctx context.Context, svc transport.Service) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	srv := grpc.NewServer()
	Register(srv, svc)
	t.mu.Lock()
	t.server = srv
	t.mu.Unlock()

	slog.Info("grpc transport listening", "port", t.port)

	go func() {
		<-ctx.Done()
		slog.Info("grpc transport shutting down")
		srv.GracefulStop()
	}()

	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// Close gracefully stops the gRPC server.
func (t *Transport) Close() error {
	t.mu.Lock()
	srv := t.server
	t.mu.Unlock()
	if srv != nil {
		srv.GracefulStop()
	}
	return nil
}

// Register attaches the Voice service to s.
func Register(s grpc.ServiceRegistrar, svc transport.Service) {
	s.RegisterService(&serviceDesc, svc)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*transport.Service)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Speak", Handler: speakHandler},
		{MethodName: "Validate", Handler: validateHandler},
		{MethodName: "Rules", Handler: rulesHandler},
	},
	Metadata: "cadence/v1/voice.proto",
}

// RulesRequest is the empty request of the Rules method.
type RulesRequest struct{}

func speakHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(message.SpeakRequest)
	if err := dec(in); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	call := func(ctx context.Context, req any) (any, error) {
		res, err := srv.(transport.Service).Speak(ctx, req.(*message.SpeakRequest))
		return res, toStatus(err)
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Speak"}
	return interceptor(ctx, in, info, call)
}

func validateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(message.ValidateRequest)
	if err := dec(in); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	call := func(ctx context.Context, req any) (any, error) {
		res, err := srv.(transport.Service).Validate(ctx, req.(*message.ValidateRequest))
		return res, toStatus(err)
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Validate"}
	return interceptor(ctx, in, info, call)
}

func rulesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RulesRequest)
	if err := dec(in); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	call := func(ctx context.Context, _ any) (any, error) {
		res, err := srv.(transport.Service).Rules(ctx)
		return res, toStatus(err)
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Rules"}
	return interceptor(ctx, in, info, call)
}

func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, message.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		slog.Error("grpc request failed", "error", err)
		return status.Error(codes.Internal, err.Error())
	}
}

// Client calls the Voice service over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Speak renders a response on the remote service.
func (c *Client) Speak(ctx context.Context, req *message.SpeakRequest, opts ...grpc.CallOption) (*message.SpeakResult, error) {
	out := new(message.SpeakResult)
	if err := c.invoke(ctx, "Speak", req, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate checks a document on the remote service.
func (c *Client) Validate(ctx context.Context, req *message.ValidateRequest, opts ...grpc.CallOption) (*ssml.Report, error) {
	out := new(ssml.Report)
	if err := c.invoke(ctx, "Validate", req, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// Rules fetches the remote rule set.
func (c *Client) Rules(ctx context.Context, opts ...grpc.CallOption) (*message.RulesResult, error) {
	out := new(message.RulesResult)
	if err := c.invoke(ctx, "Rules", &RulesRequest{}, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(jsonCodec{}.Name())}, opts...)
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}
