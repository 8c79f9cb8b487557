package presence

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

type fakeClient struct {
	mu sync.Mutex

	connectErr error
	setErr     error
	clearErr   error
	closeErr   error

	connects   int
	closes     int
	clears     int
	activities []Activity
}

func (f *fakeClient) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return f.connectErr
}

func (f *fakeClient) SetActivity(ctx context.Context, a Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.activities = append(f.activities, a)
	return nil
}

func (f *fakeClient) ClearActivity(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	return f.clearErr
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return f.closeErr
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
