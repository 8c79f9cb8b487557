//go:build !windows

package discord

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
)

const maxPipes = 10

// socketDirs lists where Discord builds place their socket, including the
// Flatpak and Snap sandboxes.
func socketDirs() []string {
	var bases []string
	for _, env := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if v := os.Getenv(env); v != "" {
			bases = append(bases, v)
		}
	}
	bases = append(bases, "/tmp")

	var dirs []string
	for _, b := range bases {
		dirs = append(dirs,
			b,
			filepath.Join(b, "app", "com.discordapp.Discord"),
			filepath.Join(b, "snap.discord"),
		)
	}
	return dirs
}

func dialIPC(ctx context.Context) (Conn, error) {
	var d net.Dialer
	var lastErr error
	for _, dir := range socketDirs() {
		for i := 0; i < maxPipes; i++ {
			path := filepath.Join(dir, fmt.Sprintf("discord-ipc-%d", i))
			if _, err := os.Stat(path); err != nil {
				continue
			}
			conn, err := d.DialContext(ctx, "unix", path)
			if err != nil {
				lastErr = err
				continue
			}
			return conn, nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("no discord ipc socket found")
}
