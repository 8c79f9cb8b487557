package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"multipresence/internal/control"
	"multipresence/internal/daemon"
)

var (
	daemonIsRunning  = daemon.IsRunning
	dialDaemonClient = defaultDial
)

func defaultDial(ctx context.Context) (*control.Client, io.Closer, error) {
	client, conn, err := daemon.Dial(ctx)
	if err != nil {
		return nil, nil, err
	}
	return client, conn, nil
}

func resetDaemonDeps() {
	daemonIsRunning = daemon.IsRunning
	dialDaemonClient = defaultDial
}

func (a *App) withClient(ctx context.Context, timeout time.Duration, fn func(context.Context, *control.Client) error) error {
	if timeout <= 0 {
		return errors.New("timeout must be greater than 0")
	}
	if !daemonIsRunning() {
		return ErrDaemonNotRunning
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, conn, err := dialDaemonClient(ctx)
	if err != nil {
		return fmt.Errorf("connect to daemon: %w", err)
	}
	if conn != nil {
		defer conn.Close()
	}

	return fn(ctx, client)
}

// ErrDaemonNotRunning is returned by operations that need the daemon.
var ErrDaemonNotRunning = errors.New("daemon is not running")
