package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/caioniehues/clibridge/internal/apperror"
	"github.com/caioniehues/clibridge/internal/metrics"
	"github.com/caioniehues/clibridge/internal/perf"
	"github.com/caioniehues/clibridge/internal/protocol"
)

// killGracePeriod is how long an interrupted process gets to honor SIGTERM
// before the group is hard-killed.
const killGracePeriod = 2 * time.Second

// readBufferSize is the stdout chunk size pushed through the decoder.
const readBufferSize = 32 * 1024

// State is the supervisor lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateStreaming
	StateSucceeded
	StateFailed
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateStreaming:
		return "streaming"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// handle owns the live external process for one session. At most one handle
// exists at a time; the supervisor is its sole owner.
type handle struct {
	cmd     *exec.Cmd
	decoder *protocol.Decoder

	mu     sync.Mutex
	reason error // first interrupt wins: ErrTimeout or ErrCanceled
}

// interrupt records the teardown reason and signals the process group.
// The first caller wins; a timeout that fired before a late exit keeps
// precedence. A hard kill follows if SIGTERM is not honored.
func (h *handle) interrupt(reason error) {
	h.mu.Lock()
	if h.reason != nil {
		h.mu.Unlock()
		return
	}
	h.reason = reason
	h.mu.Unlock()

	terminateProcess(h.cmd)
	time.AfterFunc(killGracePeriod, func() { killProcess(h.cmd) })
}

func (h *handle) interruptReason() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reason
}

// Supervisor runs at most one external CLI session at a time.
//
// State machine: Idle → Starting → Streaming → {Succeeded|Failed|TimedOut}
// → Idle. A Run call while not idle is rejected with apperror.ErrBusy and
// allocates nothing. Finalization (kill if alive, decoder reset, timer
// stop, performance sample, state back to idle) runs exactly once per
// started session and completes before Run returns, so a caller observing
// the return can start a new session immediately.
type Supervisor struct {
	builder CommandBuilder
	tracker *perf.Tracker

	state atomic.Int32

	mu      sync.Mutex
	current *handle
}

// NewSupervisor creates an idle supervisor. Completed sessions are recorded
// on tracker during finalization; no other component writes to it.
func NewSupervisor(builder CommandBuilder, tracker *perf.Tracker) *Supervisor {
	return &Supervisor{builder: builder, tracker: tracker}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Cancel forces the in-flight session, if any, into timeout-style teardown.
// The blocked Run call returns apperror.ErrCanceled. No-op when idle.
func (s *Supervisor) Cancel() {
	s.mu.Lock()
	h := s.current
	s.mu.Unlock()
	if h != nil {
		h.interrupt(apperror.ErrCanceled)
	}
}

// Run executes one session to completion. Decoded protocol messages are
// delivered to onMessage synchronously, in stream order. Run blocks until
// the process exits, the deadline fires, or the session is cancelled;
// the returned error is nil only for a zero exit status.
func (s *Supervisor) Run(ctx context.Context, opts Options, onMessage MessageHandler) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateStarting)) {
		metrics.BusyRejections.Inc()
		return apperror.ErrBusy
	}
	metrics.SessionsInProgress.Inc()

	opts = opts.withDefaults()
	start := time.Now()

	binary, args := s.builder.Build(opts)

	cmd := exec.Command(binary, args...)
	if opts.WorkingContextPath != "" {
		cmd.Dir = opts.WorkingContextPath
	}
	cmd.SysProcAttr = sysProcAttr()

	var stderrBuf strings.Builder
	cmd.Stderr = &stderrBuf

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		err = &apperror.SpawnError{Err: err}
		s.finalize(nil, nil, time.Since(start), err)
		return err
	}

	if err := cmd.Start(); err != nil {
		err = &apperror.SpawnError{Err: err}
		s.finalize(nil, nil, time.Since(start), err)
		return err
	}

	h := &handle{cmd: cmd, decoder: protocol.NewDecoder()}
	s.mu.Lock()
	s.current = h
	s.mu.Unlock()
	s.state.Store(int32(StateStreaming))

	slog.Debug("cli session started", "pid", cmd.Process.Pid, "binary", binary, "timeout", opts.Timeout)

	// Hard wall-clock deadline from session start.
	timer := time.AfterFunc(opts.Timeout, func() { h.interrupt(apperror.ErrTimeout) })

	// Propagate caller cancellation (client disconnect, Close) to the process.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			h.interrupt(apperror.ErrCanceled)
		case <-watchDone:
		}
	}()

	readErr := s.pump(h, stdout, onMessage)

	waitErr := cmd.Wait()
	duration := time.Since(start)

	runErr := terminalError(h.interruptReason(), waitErr, readErr, stderrBuf.String())
	s.finalize(h, timer, duration, runErr)
	return runErr
}

// pump reads raw stdout chunks, feeds them to the decoder, and delivers
// each decoded message before the next chunk is read.
func (s *Supervisor) pump(h *handle, stdout io.Reader, onMessage MessageHandler) error {
	buf := make([]byte, readBufferSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			for _, msg := range h.decoder.Feed(buf[:n]) {
				if onMessage != nil {
					onMessage(msg)
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// terminalError resolves the session outcome. Interrupt reasons (timeout,
// cancel) take precedence over any later exit event; a non-zero exit maps
// to ExitError with the code and captured stderr.
func terminalError(reason, waitErr, readErr error, stderr string) error {
	if reason != nil {
		return reason
	}
	if waitErr != nil {
		var ee *exec.ExitError
		if errors.As(waitErr, &ee) {
			return &apperror.ExitError{
				Code:   ee.ExitCode(),
				Stderr: strings.TrimSpace(stderr),
				Err:    ee,
			}
		}
		return fmt.Errorf("waiting for cli: %w", waitErr)
	}
	if readErr != nil {
		return fmt.Errorf("reading cli output: %w", readErr)
	}
	return nil
}

// finalize tears down a terminal session: stop the timer, reset the decoder,
// drop the handle, record the performance sample, and return to idle. Runs
// exactly once per session that passed the busy gate; the busy path itself
// allocates nothing and never reaches here.
func (s *Supervisor) finalize(h *handle, timer *time.Timer, duration time.Duration, runErr error) {
	if timer != nil {
		timer.Stop()
	}
	if h != nil {
		h.decoder.Reset()
	}

	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	status := terminalStatus(runErr)
	s.state.Store(int32(terminalState(runErr)))

	s.tracker.Record(duration, runErr == nil)
	metrics.SessionsInProgress.Dec()
	metrics.SessionsTotal.WithLabelValues(status).Inc()
	metrics.SessionDuration.WithLabelValues(status).Observe(duration.Seconds())

	s.state.Store(int32(StateIdle))
}

func terminalState(err error) State {
	switch {
	case err == nil:
		return StateSucceeded
	case errors.Is(err, apperror.ErrTimeout), errors.Is(err, apperror.ErrCanceled):
		return StateTimedOut
	default:
		return StateFailed
	}
}

func terminalStatus(err error) string {
	switch {
	case err == nil:
		return "succeeded"
	case errors.Is(err, apperror.ErrTimeout):
		return "timeout"
	case errors.Is(err, apperror.ErrCanceled):
		return "cancelled"
	default:
		return "failed"
	}
}
