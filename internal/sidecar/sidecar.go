// Package sidecar runs the HTTP backend as a child process of the MCP server.
//
// [Start] launches the backend, waits until its health endpoint answers and returns a
// [ServiceHandle]. [ServiceHandle.Stop] asks the process to terminate, waits for a grace
// period and kills it if it is still running. If a backend is already listening on the
// configured address, Start reuses it and Stop leaves it alone.
package sidecar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tidal-mcp/internal/services"
	"github.com/desertthunder/tidal-mcp/internal/shared"
)

const (
	DefaultStartTimeout = 10 * time.Second
	DefaultStopTimeout  = 5 * time.Second
	pollInterval        = 100 * time.Millisecond
)

// Options describes the backend process.
type Options struct {
	// Command defaults to the running executable.
	Command string
	Args    []string
	// Env is appended to the parent's environment.
	Env []string
	// API is the client used for health checks.
	API *services.APIService
	// Output receives the child's stdout and stderr. Defaults to os.Stderr.
	Output       io.Writer
	StartTimeout time.Duration
	StopTimeout  time.Duration
	Logger       *log.Logger
}

// ServiceHandle owns a running backend.
type ServiceHandle struct {
	cmd         *exec.Cmd
	api         *services.APIService
	stopTimeout time.Duration
	logger      *log.Logger

	done     chan struct{}
	waitErr  error
	stopOnce sync.Once
	stopErr  error
}

// Start launches the backend and blocks until it is healthy, ctx ends, or the start timeout passes.
func Start(ctx context.Context, opts Options) (*ServiceHandle, error) {
	if opts.API == nil {
		return nil, fmt.Errorf("%w: sidecar needs a backend client", shared.ErrInvalidConfig)
	}
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = DefaultStartTimeout
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	logger := shared.WithLogger(opts.Logger, "component", "sidecar")

	h := &ServiceHandle{
		api:         opts.API,
		stopTimeout: opts.StopTimeout,
		logger:      logger,
		done:        make(chan struct{}),
	}

	if err := opts.API.Ping(ctx); err == nil {
		logger.Info("reusing running backend", "url", opts.API.BaseURL())
		close(h.done)
		return h, nil
	}

	command := opts.Command
	if command == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to locate executable: %v", shared.ErrServiceUnavailable, err)
		}
		command = exe
	}

	cmd := exec.Command(command, opts.Args...)
	cmd.Env = append(os.Environ(), opts.Env...)
	cmd.Stdout = opts.Output
	cmd.Stderr = opts.Output
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to start backend: %v", shared.ErrServiceUnavailable, err)
	}
	h.cmd = cmd
	logger.Info("backend started", "pid", cmd.Process.Pid, "url", opts.API.BaseURL())

	go func() {
		h.waitErr = cmd.Wait()
		close(h.done)
	}()

	if err := h.waitHealthy(ctx, opts.StartTimeout); err != nil {
		h.Stop()
		return nil, err
	}
	return h, nil
}

func (h *ServiceHandle) waitHealthy(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if err := h.api.Ping(ctx); err == nil {
			h.logger.Debug("backend healthy")
			return nil
		}

		select {
		case <-h.done:
			return fmt.Errorf("%w: backend exited during startup: %v", shared.ErrServiceUnavailable, h.waitErr)
		case <-ctx.Done():
			return fmt.Errorf("%w: backend not healthy after %s", shared.ErrServiceUnavailable, timeout)
		case <-ticker.C:
		}
	}
}

// Owned reports whether Stop will terminate a child process.
func (h *ServiceHandle) Owned() bool {
	return h.cmd != nil
}

// Done is closed once the child exits. It is closed immediately for a reused backend.
func (h *ServiceHandle) Done() <-chan struct{} {
	return h.done
}

// Stop terminates the child, killing it after the stop timeout. Safe to call more than once.
func (h *ServiceHandle) Stop() error {
	h.stopOnce.Do(func() {
		if h.cmd == nil {
			return
		}

		select {
		case <-h.done:
			return
		default:
		}

		h.logger.Info("stopping backend", "pid", h.cmd.Process.Pid)
		if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
			h.logger.Warn("terminate failed, killing backend", "err", err)
			h.stopErr = h.kill()
			return
		}

		select {
		case <-h.done:
			h.logger.Info("backend stopped")
		case <-time.After(h.stopTimeout):
			h.logger.Warn("backend ignored terminate, killing", "grace", h.stopTimeout)
			h.stopErr = h.kill()
		}
	})
	return h.stopErr
}

func (h *ServiceHandle) kill() error {
	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill backend: %w", err)
	}
	<-h.done
	return nil
}
