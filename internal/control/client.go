package control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls the presence service over any gRPC connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Ping returns the daemon's liveness answer, "pong" when healthy.
func (c *Client) Ping(ctx context.Context, opts ...grpc.CallOption) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, methodPing, &emptypb.Empty{}, out, opts...); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

// Status fetches the current status report.
func (c *Client) Status(ctx context.Context, opts ...grpc.CallOption) (Report, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodStatus, &emptypb.Empty{}, out, opts...); err != nil {
		return Report{}, err
	}
	return reportFromStruct(out), nil
}

// SetMessage replaces the custom message; an empty msg clears it.
func (c *Client) SetMessage(ctx context.Context, msg string, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, methodSetMessage, wrapperspb.String(msg), new(emptypb.Empty), opts...)
}

// Reconnect asks the daemon to re-establish its presence session and
// returns the resulting status line.
func (c *Client) Reconnect(ctx context.Context, opts ...grpc.CallOption) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, methodReconnect, &emptypb.Empty{}, out, opts...); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

// ReloadConfig asks the daemon to re-read its configuration file.
func (c *Client) ReloadConfig(ctx context.Context, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, methodReloadConfig, &emptypb.Empty{}, new(emptypb.Empty), opts...)
}
