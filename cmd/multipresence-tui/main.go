package main

import (
	"flag"
	"io"
	"log"
	"log/slog"

	"multipresence/internal/app"
	"multipresence/internal/tui"
)

func main() {
	configPath := flag.String("config", "", "Path to JSON config file")
	flag.Parse()

	// The alt screen owns the terminal; a daemon started from the TUI logs nowhere.
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	controller := app.New(app.Options{ConfigPath: *configPath})
	if err := tui.Run(controller); err != nil {
		log.Fatalf("tui exited with error: %v", err)
	}
}
