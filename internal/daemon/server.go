package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"multipresence/internal/config"
	"multipresence/internal/control"
	"multipresence/internal/discord"
	"multipresence/internal/foreground"
	"multipresence/internal/hostmetrics"
	"multipresence/internal/pipeline"
)

const healthInterval = time.Second

// Server runs the presence pipeline and serves the control socket.
type Server struct {
	ln      net.Listener
	path    string
	grpc    *grpc.Server
	pipe    *pipeline.Pipeline
	cfgPath string
	logger  *slog.Logger

	mu        sync.Mutex
	persisted config.Config
	canSave   bool

	cancel context.CancelFunc
	group  *errgroup.Group

	closeOnce sync.Once
	closeErr  error
}

// StartDaemon loads the configuration, binds the UNIX socket and starts
// sampling and publishing in the background.
func StartDaemon(cfgPath string) (*Server, error) {
	base := slog.Default()
	logger := base.With("component", "daemon")

	resolved, err := config.ResolvePath(cfgPath)
	if err != nil {
		return nil, err
	}
	fileCfg, loadErr := config.LoadFile(resolved)
	if loadErr != nil {
		logger.Warn("using default config", "path", resolved, "error", loadErr)
	}
	cfg := config.WithEnv(fileCfg)

	if err := EnsureRuntimeDir(); err != nil {
		return nil, err
	}
	path := SocketPath()

	// If stale socket file exists but daemon is not running, remove it
	if _, err := os.Stat(path); err == nil && !IsRunning() {
		if err := os.Remove(path); err != nil {
			return nil, err
		}
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		return nil, err
	}

	pipe := pipeline.New(cfg, pipeline.Deps{
		Source: hostmetrics.NewSystem(base.With("component", "hostmetrics")),
		Window: foreground.Default(),
		Client: discord.NewClient(cfg.DiscordAppID, discord.WithLogger(base.With("component", "discord"))),
		Logger: base.With("component", "pipeline"),
	})

	s := &Server{
		ln:        ln,
		path:      path,
		grpc:      grpc.NewServer(),
		pipe:      pipe,
		cfgPath:   resolved,
		logger:    logger,
		persisted: fileCfg,
		canSave:   loadErr == nil,
	}
	if err := WritePID(os.Getpid()); err != nil {
		s.removeFiles()
		ln.Close()
		return nil, err
	}

	svc := control.NewService(s, base.With("component", "control"))
	svc.Register(s.grpc)

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	s.cancel = cancel
	s.group = g

	g.Go(func() error { return pipe.Run(gctx) })
	g.Go(func() error {
		svc.WatchHealth(gctx, healthInterval)
		return nil
	})
	go func() {
		if err := s.grpc.Serve(ln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("control server stopped", "error", err)
		}
	}()

	logger.Info("daemon started", "socket", path, "config", resolved, "interval", cfg.UpdateInterval())
	return s, nil
}

// Preview implements control.Backend.
func (s *Server) Preview() pipeline.Preview { return s.pipe.Preview() }

// SetCustomMessage implements control.Backend.
func (s *Server) SetCustomMessage(msg string) { s.pipe.SetCustomMessage(msg) }

// Reconnect implements control.Backend.
func (s *Server) Reconnect(ctx context.Context) error { return s.pipe.Reconnect(ctx) }

// ReloadConfig re-reads the config file and applies it to the pipeline.
// A broken file leaves the running configuration untouched.
func (s *Server) ReloadConfig(context.Context) error {
	fileCfg, err := config.LoadFile(s.cfgPath)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.persisted = fileCfg
	s.canSave = true
	s.mu.Unlock()

	s.pipe.UpdateConfig(config.WithEnv(fileCfg))
	s.logger.Info("configuration reloaded", "path", s.cfgPath)
	return nil
}

// Close stops the pipeline, clears the remote presence, persists the
// configuration and unlinks the socket.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		if err := s.group.Wait(); err != nil {
			s.logger.Warn("pipeline stopped with error", "error", err)
		}

		s.saveConfig()

		stopped := make(chan struct{})
		go func() {
			s.grpc.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(2 * time.Second):
			s.grpc.Stop()
		}
		s.closeErr = s.removeFiles()
		s.logger.Info("daemon stopped")
	})
	return s.closeErr
}

// saveConfig writes back the config the daemon is running on. The file is
// left alone when it was malformed at load or when it changed on disk
// since the last load or reload.
func (s *Server) saveConfig() {
	s.mu.Lock()
	persisted, canSave := s.persisted, s.canSave
	s.mu.Unlock()
	if !canSave {
		return
	}

	if _, err := os.Stat(s.cfgPath); err == nil {
		onDisk, err := config.LoadFile(s.cfgPath)
		if err != nil {
			s.logger.Warn("config file is broken, not overwriting", "path", s.cfgPath, "error", err)
			return
		}
		if !onDisk.Equal(persisted) {
			s.logger.Info("config file changed since load, keeping it", "path", s.cfgPath)
			return
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("cannot stat config file, not saving", "path", s.cfgPath, "error", err)
		return
	}

	if err := config.Save(s.cfgPath, persisted); err != nil {
		s.logger.Error("failed to save config", "path", s.cfgPath, "error", err)
	}
}

func (s *Server) removeFiles() error {
	if s.path != "" {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return RemovePID()
}

// StopRunningDaemon sends a termination signal to the currently running daemon if any.
func StopRunningDaemon(force bool) error {
	pid, err := RunningPID()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if IsRunning() {
				return fmt.Errorf("daemon is running but PID file %q is missing; stop it manually", PIDPath())
			}
			return nil
		}
		return fmt.Errorf("unable to read daemon PID: %w", err)
	}
	if pid == os.Getpid() {
		return errors.New("refusing to stop current process")
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := sendSignal(proc, syscall.SIGTERM); err != nil {
		return err
	}
	// Shutdown clears the remote presence first, so allow for one IPC round trip.
	if waitForShutdown(5 * time.Second) {
		return nil
	}
	if !force {
		return fmt.Errorf("daemon process %d did not exit after SIGTERM", pid)
	}
	if err := sendSignal(proc, syscall.SIGKILL); err != nil {
		return err
	}
	if waitForShutdown(2 * time.Second) {
		return nil
	}
	return fmt.Errorf("daemon process %d did not exit after SIGKILL", pid)
}

func sendSignal(proc *os.Process, sig syscall.Signal) error {
	if err := proc.Signal(sig); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			_ = RemovePID()
			return nil
		}
		return err
	}
	return nil
}

func waitForShutdown(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if !IsRunning() {
			_ = RemovePID()
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(100 * time.Millisecond)
	}
}
