package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestAppPresenceDecodesReport(t *testing.T) {
	stubConn(t, func(ctx context.Context, method string, args interface{}, reply interface{}, opts ...grpc.CallOption) error {
		out, ok := reply.(*structpb.Struct)
		if !ok {
			t.Fatalf("unexpected reply type %T", reply)
		}
		s, err := structpb.NewStruct(map[string]any{
			"connected":    true,
			"status":       "Connected",
			"has_snapshot": true,
			"details":      "CPU: 12.0% | RAM: 40.0%",
			"memory_total": 1024,
			"processes":    []any{map[string]any{"name": "[FILTERED]", "cpu_usage": 3.5}},
		})
		if err != nil {
			t.Fatal(err)
		}
		out.Fields = s.Fields
		return nil
	})

	report, err := New(Options{}).Presence(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Presence: %v", err)
	}
	if !report.Connected || report.StatusMessage != "Connected" || report.MemoryTotal != 1024 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(report.Processes) != 1 || report.Processes[0].CPUUsage != 3.5 {
		t.Fatalf("unexpected processes %+v", report.Processes)
	}
}

func TestAppSetMessageSendsValue(t *testing.T) {
	var sent string
	stubConn(t, func(ctx context.Context, method string, args interface{}, reply interface{}, opts ...grpc.CallOption) error {
		if method != "/multipresence.v1.Presence/SetMessage" {
			t.Fatalf("unexpected method %s", method)
		}
		sent = args.(*wrapperspb.StringValue).GetValue()
		return nil
	})

	if err := New(Options{}).SetMessage(context.Background(), "shipping", time.Second); err != nil {
		t.Fatalf("SetMessage: %v", err)
	}
	if sent != "shipping" {
		t.Fatalf("unexpected payload %q", sent)
	}
}

func TestAppSetMessageRPCError(t *testing.T) {
	stubConn(t, func(ctx context.Context, method string, args interface{}, reply interface{}, opts ...grpc.CallOption) error {
		return errors.New("boom")
	})
	err := New(Options{}).SetMessage(context.Background(), "", time.Second)
	if err == nil || err.Error() != "daemon set message RPC failed: boom" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestAppReconnectReturnsStatusLine(t *testing.T) {
	stubConn(t, func(ctx context.Context, method string, args interface{}, reply interface{}, opts ...grpc.CallOption) error {
		reply.(*wrapperspb.StringValue).Value = "Connection failed: no socket"
		return nil
	})
	line, err := New(Options{}).Reconnect(context.Background(), time.Second)
	if err != nil || line != "Connection failed: no socket" {
		t.Fatalf("Reconnect = %q, %v", line, err)
	}
}
