package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"multipresence/internal/config"
	"multipresence/internal/control"
)

const reloadTimeout = 2 * time.Second

// LoadConfig reads the config file strictly so callers see parse errors.
func (a *App) LoadConfig() (config.Config, error) {
	path, err := a.ConfigPath()
	if err != nil {
		return config.Config{}, err
	}
	return config.LoadFile(path)
}

// ConfigResult describes a persisted config change.
type ConfigResult struct {
	Path     string
	Reloaded bool
}

// ResetConfig overwrites the config file with the defaults.
func (a *App) ResetConfig(ctx context.Context) (ConfigResult, error) {
	return a.saveConfig(ctx, config.Default())
}

// AddWord appends word to the blacklist. Adding an existing word
// (case-insensitively) is a no-op that still succeeds.
func (a *App) AddWord(ctx context.Context, word string) (ConfigResult, error) {
	word = strings.TrimSpace(word)
	if word == "" {
		return ConfigResult{}, errors.New("word must not be empty")
	}
	cfg, err := a.LoadConfig()
	if err != nil {
		return ConfigResult{}, err
	}
	if slices.ContainsFunc(cfg.BlacklistedWords, func(w string) bool { return strings.EqualFold(w, word) }) {
		path, _ := a.ConfigPath()
		return ConfigResult{Path: path}, nil
	}
	cfg.BlacklistedWords = append(cfg.BlacklistedWords, word)
	return a.saveConfig(ctx, cfg)
}

// RemoveWord drops every case-insensitive match of word from the blacklist.
func (a *App) RemoveWord(ctx context.Context, word string) (ConfigResult, error) {
	word = strings.TrimSpace(word)
	cfg, err := a.LoadConfig()
	if err != nil {
		return ConfigResult{}, err
	}
	before := len(cfg.BlacklistedWords)
	cfg.BlacklistedWords = slices.DeleteFunc(cfg.BlacklistedWords, func(w string) bool { return strings.EqualFold(w, word) })
	if len(cfg.BlacklistedWords) == before {
		return ConfigResult{}, fmt.Errorf("word %q is not blacklisted", word)
	}
	return a.saveConfig(ctx, cfg)
}

// SetConfig changes one scalar setting (see config.SettableKeys) and
// pushes it to a running daemon.
func (a *App) SetConfig(ctx context.Context, key, value string) (ConfigResult, error) {
	cfg, err := a.LoadConfig()
	if err != nil {
		return ConfigResult{}, err
	}
	if err := cfg.Set(key, value); err != nil {
		return ConfigResult{}, err
	}
	return a.saveConfig(ctx, cfg)
}

// ReloadConfig asks the running daemon to re-read the config file, for
// edits made by hand.
func (a *App) ReloadConfig(ctx context.Context) error {
	return a.withClient(ctx, reloadTimeout, func(ctx context.Context, client *control.Client) error {
		return client.ReloadConfig(ctx)
	})
}

// saveConfig persists cfg and, when the daemon is up, asks it to reload.
func (a *App) saveConfig(ctx context.Context, cfg config.Config) (ConfigResult, error) {
	path, err := a.ConfigPath()
	if err != nil {
		return ConfigResult{}, err
	}
	if err := config.Save(path, cfg); err != nil {
		return ConfigResult{}, err
	}
	res := ConfigResult{Path: path}
	if !daemonIsRunning() {
		return res, nil
	}
	if err := a.ReloadConfig(ctx); err != nil {
		return res, fmt.Errorf("config saved but daemon reload failed: %w", err)
	}
	res.Reloaded = true
	return res, nil
}
