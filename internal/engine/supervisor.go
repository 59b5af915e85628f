package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

const (
	defaultMaxFails    = 5
	defaultFastFailSec = 5.0
	defaultMaxBackoff  = 30 * time.Second
	initialBackoff     = 500 * time.Millisecond
	backoffReset       = 30 * time.Second // reset backoff if process ran this long
	sigtermTimeout     = 3 * time.Second
)

// AttachFunc talks to a running helper over its stdio. It must return once
// stdout reaches EOF.
type AttachFunc func(ctx context.Context, stdout io.Reader, stdin io.Writer) error

// Supervisor keeps one engine helper process alive, restarting it with
// exponential backoff. It is safe to call Start/Stop concurrently.
type Supervisor struct {
	name     string
	buildCmd func() *exec.Cmd
	attach   AttachFunc

	// Restart policy
	maxFails    int
	fastFailSec float64
	maxBackoff  time.Duration

	// Internal state (protected by mu)
	mu         sync.Mutex
	currentPID int
	restarts   int
	backoff    time.Duration
	failCount  int
	stopCh     chan struct{}
	doneCh     chan struct{}
	running    bool
}

// NewSupervisor creates a Supervisor with the default restart policy.
func NewSupervisor(name string, buildCmd func() *exec.Cmd, attach AttachFunc) *Supervisor {
	return &Supervisor{
		name:        name,
		buildCmd:    buildCmd,
		attach:      attach,
		maxFails:    defaultMaxFails,
		fastFailSec: defaultFastFailSec,
		maxBackoff:  defaultMaxBackoff,
		backoff:     initialBackoff,
	}
}

// Start launches the helper and the supervision goroutine. ctx cancellation
// stops supervision and kills the process. Starting twice is a no-op.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.failCount = 0
	s.backoff = initialBackoff
	s.running = true
	go s.supervise(ctx)
	return nil
}

// Stop terminates the helper and waits for the supervision goroutine.
// Safe to call if not running.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh := s.stopCh
	doneCh := s.doneCh
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
	case <-time.After(10 * time.Second):
		slog.Warn("supervisor: stop timed out", "name", s.name)
	}
	return nil
}

// Pid returns the current process PID, or 0 if not running.
func (s *Supervisor) Pid() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPID
}

// Restarts returns how many times the helper has been started after the
// first launch.
func (s *Supervisor) Restarts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}

// Running reports whether the supervision goroutine is active.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Supervisor) supervise(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.currentPID = 0
		doneCh := s.doneCh
		s.mu.Unlock()
		close(doneCh)
	}()

	for launches := 0; ; launches++ {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		s.mu.Lock()
		if s.failCount >= s.maxFails {
			slog.Error("supervisor: giving up after too many fast-fails", "name", s.name, "fails", s.failCount)
			s.mu.Unlock()
			return
		}
		if launches > 0 {
			s.restarts++
		}
		s.mu.Unlock()

		cmd := s.buildCmd()
		if cmd == nil {
			slog.Error("supervisor: buildCmd returned nil", "name", s.name)
			return
		}
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
		cmd.Stderr = os.Stderr
		stdin, err := cmd.StdinPipe()
		if err != nil {
			slog.Error("supervisor: stdin pipe", "name", s.name, "err", err)
			return
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			slog.Error("supervisor: stdout pipe", "name", s.name, "err", err)
			return
		}

		startTime := time.Now()
		slog.Info("supervisor: starting process", "name", s.name, "cmd", cmd.Path)

		if err := cmd.Start(); err != nil {
			// A missing binary will not appear by retrying.
			if isNotFoundError(err) {
				slog.Error("supervisor: binary not found, giving up", "name", s.name, "cmd", cmd.Path, "err", err)
				return
			}
			slog.Error("supervisor: failed to start process", "name", s.name, "err", err)
			s.mu.Lock()
			s.failCount++
			backoff := s.backoff
			s.backoff = minDuration(s.backoff*2, s.maxBackoff)
			s.mu.Unlock()
			s.sleepOrStop(ctx, backoff)
			continue
		}

		pid := cmd.Process.Pid
		s.mu.Lock()
		s.currentPID = pid
		s.mu.Unlock()
		slog.Info("supervisor: process running", "name", s.name, "pid", pid)

		// Reads must finish before Wait closes the pipe.
		attachCtx, cancelAttach := context.WithCancel(ctx)
		exitCh := make(chan error, 1)
		go func() {
			if s.attach != nil {
				if err := s.attach(attachCtx, stdout, stdin); err != nil {
					slog.Warn("supervisor: attach ended", "name", s.name, "err", err)
				}
			} else {
				_, _ = io.Copy(io.Discard, stdout)
			}
			_ = stdin.Close()
			exitCh <- cmd.Wait()
		}()

		var exitErr error
		select {
		case exitErr = <-exitCh:
		case <-s.stopCh:
			cancelAttach()
			s.killProcess(pid)
			<-exitCh
			return
		case <-ctx.Done():
			cancelAttach()
			s.killProcess(pid)
			<-exitCh
			return
		}
		cancelAttach()

		elapsed := time.Since(startTime)
		slog.Info("supervisor: process exited", "name", s.name, "pid", pid, "elapsed", elapsed, "err", exitErr)

		s.mu.Lock()
		s.currentPID = 0
		if elapsed >= backoffReset {
			s.failCount = 0
			s.backoff = initialBackoff
		} else if elapsed.Seconds() < s.fastFailSec {
			s.failCount++
			s.backoff = minDuration(s.backoff*2, s.maxBackoff)
		} else {
			s.failCount = 0
		}
		backoff := s.backoff
		s.mu.Unlock()

		if backoff > 0 {
			s.sleepOrStop(ctx, backoff)
		}
	}
}

// killProcess sends SIGTERM to the process group, waits sigtermTimeout,
// then escalates to SIGKILL.
func (s *Supervisor) killProcess(pid int) {
	if pid <= 0 {
		return
	}
	slog.Debug("supervisor: sending SIGTERM to process group", "pid", pid)
	_ = syscall.Kill(-pid, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		deadline := time.Now().Add(sigtermTimeout)
		for time.Now().Before(deadline) {
			if syscall.Kill(-pid, 0) != nil {
				close(done)
				return
			}
			time.Sleep(100 * time.Millisecond)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(sigtermTimeout + 100*time.Millisecond):
	}
	if syscall.Kill(-pid, 0) == nil {
		slog.Warn("supervisor: SIGTERM timed out, sending SIGKILL", "pid", pid)
		_ = syscall.Kill(-pid, syscall.SIGKILL)
	}
}

func (s *Supervisor) sleepOrStop(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-s.stopCh:
	case <-ctx.Done():
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// isNotFoundError reports whether err means the binary does not exist.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return errors.Is(err, exec.ErrNotFound) ||
		strings.Contains(msg, "executable file not found") ||
		strings.Contains(msg, "no such file or directory")
}
