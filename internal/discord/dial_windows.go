//go:build windows

package discord

import (
	"context"
	"fmt"
	"os"
)

const maxPipes = 10

func dialIPC(ctx context.Context) (Conn, error) {
	var lastErr error
	for i := 0; i < maxPipes; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(fmt.Sprintf(`\\.\pipe\discord-ipc-%d`, i), os.O_RDWR, 0)
		if err != nil {
			lastErr = err
			continue
		}
		return f, nil
	}
	return nil, fmt.Errorf("no discord ipc pipe found: %w", lastErr)
}
