//go:build !windows

package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/caioniehues/clibridge/internal/apperror"
	"github.com/caioniehues/clibridge/internal/journal"
	"github.com/caioniehues/clibridge/internal/protocol"
)

func TestProbeAvailability_MissingBinary(t *testing.T) {
	svc := NewService("/nonexistent/clibridge-test-binary", time.Second, nil)
	defer svc.Close()

	if svc.ProbeAvailability(context.Background()) {
		t.Fatal("probe reported a missing binary as available")
	}
}

func TestProbeAvailability_CleanExit(t *testing.T) {
	// true ignores --version and exits 0, which is all the probe requires.
	svc := NewService("true", time.Second, nil)
	defer svc.Close()

	if !svc.ProbeAvailability(context.Background()) {
		t.Fatal("probe reported a clean-exiting binary as unavailable")
	}
}

func TestProbeAvailability_HangingBinaryBounded(t *testing.T) {
	svc := NewService("sleep", 200*time.Millisecond, nil)
	defer svc.Close()

	start := time.Now()
	available := svc.ProbeAvailability(context.Background())
	elapsed := time.Since(start)

	if available {
		t.Error("hanging probe reported available")
	}
	if elapsed > 3*time.Second {
		t.Errorf("probe blocked for %v, want the configured bound", elapsed)
	}
}

func TestRunSession_RecordsJournalEntry(t *testing.T) {
	jrnl, err := journal.Open(":memory:")
	if err != nil {
		t.Fatalf("opening journal: %v", err)
	}
	defer jrnl.Close()

	svc := NewService("unused", time.Second, jrnl)
	defer svc.Close()
	// Swap in a scripted supervisor so no real tool is needed.
	svc.supervisor = NewSupervisor(scriptBuilder{
		script: `printf '{"type":"content","content":"ok"}\n{"type":"end"}\n'`,
	}, svc.tracker)

	var msgs []protocol.Message
	if err := svc.RunSession(context.Background(), Options{Message: "hi"}, collect(&msgs)); err != nil {
		t.Fatalf("RunSession: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}

	entries, err := jrnl.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 journal entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Status != "succeeded" || e.MessageCount != 2 || e.ExitCode != 0 {
		t.Fatalf("journal entry = %+v", e)
	}
}

func TestRunSession_BusyNotJournaled(t *testing.T) {
	jrnl, err := journal.Open(":memory:")
	if err != nil {
		t.Fatalf("opening journal: %v", err)
	}
	defer jrnl.Close()

	svc := NewService("unused", time.Second, jrnl)
	defer svc.Close()
	svc.supervisor = NewSupervisor(scriptBuilder{script: `sleep 30`}, svc.tracker)

	done := make(chan error, 1)
	go func() {
		done <- svc.RunSession(context.Background(), Options{Message: "hi"}, nil)
	}()
	waitForState(t, svc.supervisor, StateStreaming)

	if err := svc.RunSession(context.Background(), Options{Message: "again"}, nil); !errors.Is(err, apperror.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	svc.Cancel()
	<-done

	entries, err := jrnl.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	// Only the cancelled session is journaled; the busy rejection is not.
	if len(entries) != 1 {
		t.Fatalf("expected 1 journal entry, got %d: %+v", len(entries), entries)
	}
	if entries[0].Status != "cancelled" {
		t.Fatalf("journal status = %q, want cancelled", entries[0].Status)
	}
}

func TestRunSession_ExitCodeJournaled(t *testing.T) {
	jrnl, err := journal.Open(":memory:")
	if err != nil {
		t.Fatalf("opening journal: %v", err)
	}
	defer jrnl.Close()

	svc := NewService("unused", time.Second, jrnl)
	defer svc.Close()
	svc.supervisor = NewSupervisor(scriptBuilder{script: `exit 5`}, svc.tracker)

	err = svc.RunSession(context.Background(), Options{Message: "hi"}, nil)
	if code, ok := apperror.ExitCode(err); !ok || code != 5 {
		t.Fatalf("ExitCode = %d, %v; err = %v", code, ok, err)
	}

	entries, _ := jrnl.Recent(context.Background(), 1)
	if len(entries) != 1 || entries[0].Status != "failed" || entries[0].ExitCode != 5 {
		t.Fatalf("journal entries = %+v", entries)
	}
}
