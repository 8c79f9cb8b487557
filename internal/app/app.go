package app

import "multipresence/internal/config"

// Options configures the top-level controller.
type Options struct {
	// ConfigPath points to the config file; empty means the per-user default.
	ConfigPath string
}

// App exposes high-level operations that the CLI/TUI can reuse.
type App struct {
	cfgPath string
}

// New constructs the shared controller facade.
func New(opts Options) *App {
	return &App{
		cfgPath: opts.ConfigPath,
	}
}

// ConfigPath returns the config file the daemon and config commands use.
func (a *App) ConfigPath() (string, error) {
	return config.ResolvePath(a.cfgPath)
}
