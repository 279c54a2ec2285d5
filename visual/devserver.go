package visual

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrServerNotReady means the dev server did not answer within ReadyTimeout.
var ErrServerNotReady = errors.New("visual: dev server not ready")

var errServerExited = errors.New("dev server exited")

type ServerConfig struct {
	// Command spawns the server. Empty means it is already running and only
	// the readiness poll is performed.
	Command []string
	Dir     string

	ReadyURL     string
	ReadyTimeout time.Duration
	PollInterval time.Duration
	StopTimeout  time.Duration

	Stdout io.Writer
	Stderr io.Writer
	Client *http.Client
	Logger *slog.Logger
}

func (c *ServerConfig) defaults() {
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = 60 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 250 * time.Millisecond
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 5 * time.Second
	}
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 2 * time.Second}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// DevServer is a running dev server. It must be released exactly once;
// further calls to Release are no-ops.
type DevServer struct {
	cfg  ServerConfig
	cmd  *exec.Cmd
	done chan struct{}

	once       sync.Once
	releaseErr error
}

// StartDevServer spawns the configured command and waits until ReadyURL
// answers. If the server never becomes ready it is released before the
// error is returned.
func StartDevServer(ctx context.Context, cfg ServerConfig) (*DevServer, error) {
	cfg.defaults()
	s := &DevServer{cfg: cfg, done: make(chan struct{})}

	if len(cfg.Command) == 0 {
		close(s.done)
	} else if err := s.spawn(); err != nil {
		return nil, err
	}

	if err := s.waitReady(ctx); err != nil {
		if rerr := s.Release(); rerr != nil {
			cfg.Logger.Warn("devserver: release after failed start", "error", rerr)
		}
		return nil, err
	}
	return s, nil
}

// WithDevServer runs fn while a dev server is up and releases the server on
// every exit path, including panics.
func WithDevServer(ctx context.Context, cfg ServerConfig, fn func(ctx context.Context) error) (err error) {
	s, err := StartDevServer(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := s.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return fn(ctx)
}

func (s *DevServer) spawn() error {
	log := s.cfg.Logger
	cmd := exec.Command(s.cfg.Command[0], s.cfg.Command[1:]...)
	cmd.Dir = s.cfg.Dir
	cmd.Stdout = s.cfg.Stdout
	cmd.Stderr = s.cfg.Stderr
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("devserver: start %q: %w", s.cfg.Command[0], err)
	}
	s.cmd = cmd
	log.Info("devserver: started", "pid", cmd.Process.Pid, "command", s.cfg.Command)

	go func() {
		err := cmd.Wait()
		log.Debug("devserver: exited", "pid", cmd.Process.Pid, "error", err)
		close(s.done)
	}()
	return nil
}

// Running reports whether the spawned process is still alive.
func (s *DevServer) Running() bool {
	if s.cmd == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *DevServer) waitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadyTimeout)
	defer cancel()

	poll := func() (int, error) {
		if s.cmd != nil && !s.Running() {
			return 0, backoff.Permanent(errServerExited)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.ReadyURL, nil)
		if err != nil {
			return 0, backoff.Permanent(err)
		}
		resp, err := s.cfg.Client.Do(req)
		if err != nil {
			return 0, err
		}
		resp.Body.Close()
		if resp.StatusCode >= http.StatusInternalServerError {
			return 0, fmt.Errorf("status %d", resp.StatusCode)
		}
		return resp.StatusCode, nil
	}

	status, err := backoff.Retry(ctx, poll,
		backoff.WithBackOff(backoff.NewConstantBackOff(s.cfg.PollInterval)),
		backoff.WithMaxElapsedTime(s.cfg.ReadyTimeout),
	)
	if err != nil {
		return fmt.Errorf("%w: %s within %s: %v", ErrServerNotReady, s.cfg.ReadyURL, s.cfg.ReadyTimeout, err)
	}
	s.cfg.Logger.Info("devserver: ready", "url", s.cfg.ReadyURL, "status", status)
	return nil
}

// Release terminates the server process group and waits for it to exit,
// escalating to a kill after StopTimeout.
func (s *DevServer) Release() error {
	s.once.Do(func() {
		if s.cmd == nil {
			return
		}
		log := s.cfg.Logger
		if !s.Running() {
			return
		}
		if err := terminate(s.cmd); err != nil {
			log.Warn("devserver: terminate", "error", err)
		}
		select {
		case <-s.done:
		case <-time.After(s.cfg.StopTimeout):
			log.Warn("devserver: did not stop in time, killing", "pid", s.cmd.Process.Pid)
			if err := kill(s.cmd); err != nil {
				s.releaseErr = fmt.Errorf("devserver: kill: %w", err)
				return
			}
			<-s.done
		}
		log.Info("devserver: stopped", "pid", s.cmd.Process.Pid)
	})
	return s.releaseErr
}
