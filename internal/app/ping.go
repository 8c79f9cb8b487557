package app

import (
	"context"
	"fmt"
	"time"

	"multipresence/internal/control"
)

// Ping contacts the daemon and returns its health response.
func (a *App) Ping(ctx context.Context, timeout time.Duration) (string, error) {
	var msg string
	err := a.withClient(ctx, timeout, func(ctx context.Context, client *control.Client) error {
		resp, err := client.Ping(ctx)
		if err != nil {
			return fmt.Errorf("daemon ping RPC failed: %w", err)
		}
		msg = resp
		return nil
	})
	return msg, err
}
