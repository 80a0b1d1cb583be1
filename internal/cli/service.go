package cli

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"

	"github.com/caioniehues/clibridge/internal/apperror"
	"github.com/caioniehues/clibridge/internal/journal"
	"github.com/caioniehues/clibridge/internal/metrics"
	"github.com/caioniehues/clibridge/internal/perf"
	"github.com/caioniehues/clibridge/internal/protocol"
	"github.com/caioniehues/clibridge/internal/tracing"
)

// DefaultProbeTimeout bounds the availability probe.
const DefaultProbeTimeout = 5 * time.Second

// Service is the integration façade: availability probing, the single
// run-session operation, cancellation, and performance metrics. Construct
// with NewService and release with Close; no package-level state.
type Service struct {
	builder      *Builder
	supervisor   *Supervisor
	tracker      *perf.Tracker
	journal      *journal.Journal // nil disables journaling
	probeTimeout time.Duration
}

// NewService creates a service around the given binary name or path.
// jrnl may be nil to disable session journaling.
func NewService(binary string, probeTimeout time.Duration, jrnl *journal.Journal) *Service {
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	builder := NewBuilder(binary)
	tracker := perf.NewTracker()
	return &Service{
		builder:      builder,
		supervisor:   NewSupervisor(builder, tracker),
		tracker:      tracker,
		journal:      jrnl,
		probeTimeout: probeTimeout,
	}
}

// Close cancels any in-flight session. The journal, if any, is owned by
// the caller and closed separately.
func (s *Service) Close() error {
	s.supervisor.Cancel()
	return nil
}

// ProbeAvailability reports whether the external tool is usable: the binary
// invoked with --version must exit cleanly within the probe timeout.
// Never returns an error; any failure means "unavailable".
func (s *Service) ProbeAvailability(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.builder.Executable(), "--version")
	if err := cmd.Run(); err != nil {
		metrics.ProbeChecks.WithLabelValues("unavailable").Inc()
		slog.Warn("cli availability probe failed", "binary", s.builder.Executable(), "error", err)
		return false
	}
	metrics.ProbeChecks.WithLabelValues("available").Inc()
	return true
}

// RunSession executes one session, delivering each decoded protocol message
// to onMessage in stream order. Exactly one session may be in flight;
// concurrent calls fail fast with apperror.ErrBusy.
func (s *Service) RunSession(ctx context.Context, opts Options, onMessage MessageHandler) error {
	runID := uuid.NewString()

	ctx, span := tracing.Tracer().Start(ctx, "session.run",
		tracing.WithSessionAttributes(runID, !opts.DisableStreaming),
	)
	defer span.End()

	log := slog.With("run_id", runID)
	start := time.Now().UTC()

	var messageCount int
	err := s.supervisor.Run(ctx, opts, func(msg protocol.Message) {
		messageCount++
		if onMessage != nil {
			onMessage(msg)
		}
	})
	duration := time.Since(start)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, apperror.ErrBusy) {
			// Nothing started; nothing to journal.
			return err
		}
		log.Warn("session finished with error", "error", err, "duration_ms", duration.Milliseconds(), "messages", messageCount)
	} else {
		log.Info("session completed", "duration_ms", duration.Milliseconds(), "messages", messageCount)
	}

	s.journalSession(runID, start, duration, messageCount, err)
	return err
}

// Cancel forces the current session, if any, into timeout-style teardown.
func (s *Service) Cancel() {
	s.supervisor.Cancel()
}

// State returns the supervisor lifecycle state.
func (s *Service) State() State {
	return s.supervisor.State()
}

// Metrics returns a snapshot of the rolling performance metrics.
func (s *Service) Metrics() perf.Metrics {
	return s.tracker.Snapshot()
}

// journalSession best-effort records the completed session. Uses a fresh
// context: the request context is often already cancelled or expired here.
func (s *Service) journalSession(runID string, start time.Time, duration time.Duration, messageCount int, runErr error) {
	if s.journal == nil {
		return
	}

	exitCode := 0
	if code, ok := apperror.ExitCode(runErr); ok {
		exitCode = code
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.journal.Record(ctx, journal.Entry{
		ID:             runID,
		StartedAt:      start,
		DurationMillis: duration.Milliseconds(),
		Status:         terminalStatus(runErr),
		ExitCode:       exitCode,
		MessageCount:   messageCount,
	})
	if err != nil {
		slog.Warn("journaling session failed", "run_id", runID, "error", err)
	}
}
