package main

import (
	"context"
	"time"

	"multipresence/internal/app"
)

// controllerAPI is the app surface the commands use; tests swap it out.
type controllerAPI interface {
	Ping(ctx context.Context, timeout time.Duration) (string, error)
	Presence(ctx context.Context, timeout time.Duration) (app.Report, error)
	SetMessage(ctx context.Context, msg string, timeout time.Duration) error
	Reconnect(ctx context.Context, timeout time.Duration) (string, error)
	Status() (app.DaemonStatus, error)
	StopDaemon(force bool) error
	StartDaemon() (*app.DaemonHandle, error)
	ConfigPath() (string, error)
	ResetConfig(ctx context.Context) (app.ConfigResult, error)
	AddWord(ctx context.Context, word string) (app.ConfigResult, error)
	RemoveWord(ctx context.Context, word string) (app.ConfigResult, error)
	SetConfig(ctx context.Context, key, value string) (app.ConfigResult, error)
	ReloadConfig(ctx context.Context) error
}

var controllerFactory = func() controllerAPI {
	return app.New(app.Options{ConfigPath: configPath})
}

func controller() controllerAPI {
	return controllerFactory()
}

const rpcTimeout = 2 * time.Second
