package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gluk-w/firedesk/internal/procutil"
)

func testSupervisor() *Supervisor {
	return &Supervisor{
		ProbeHost:    "127.0.0.1",
		ProbeTimeout: 50 * time.Millisecond,
		Schedule:     []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 20 * time.Millisecond},
	}
}

func TestScheduleBackoff(t *testing.T) {
	b := ScheduleBackoff([]time.Duration{100 * time.Millisecond, 200 * time.Millisecond})

	d, stop := b.Next()
	if stop || d != 100*time.Millisecond {
		t.Fatalf("first interval = %v, %v", d, stop)
	}
	d, stop = b.Next()
	if stop || d != 200*time.Millisecond {
		t.Fatalf("second interval = %v, %v", d, stop)
	}
	if _, stop = b.Next(); !stop {
		t.Fatal("backoff did not stop after schedule exhausted")
	}
}

func TestSupervisorStartSuccess(t *testing.T) {
	sup := testSupervisor()

	pid, err := sup.Start(context.Background(), LaunchSpec{
		Argv: []string{"sleep", "60"},
		Port: 1, // nothing listens; the probe is advisory
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer procutil.TerminateTree(pid, time.Second)

	if procutil.Check(pid) != procutil.Alive {
		t.Errorf("backend pid %d not alive after Start", pid)
	}
}

func TestSupervisorStartEarlyExit(t *testing.T) {
	sup := testSupervisor()

	_, err := sup.Start(context.Background(), LaunchSpec{
		Argv: []string{"sh", "-c", "echo started; echo boom >&2; exit 3"},
		Port: 1,
	})
	if err == nil {
		t.Fatal("early-exiting backend reported success")
	}

	var spawnErr *ProcessSpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("error type = %T, want *ProcessSpawnError", err)
	}
	if spawnErr.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", spawnErr.ExitCode)
	}
	if !strings.Contains(spawnErr.Stderr, "boom") {
		t.Errorf("stderr = %q, want boom", spawnErr.Stderr)
	}
	if !strings.Contains(spawnErr.Stdout, "started") {
		t.Errorf("stdout = %q, want started", spawnErr.Stdout)
	}
}

func TestSupervisorStartMissingBinary(t *testing.T) {
	sup := testSupervisor()
	_, err := sup.Start(context.Background(), LaunchSpec{
		Argv: []string{"/nonexistent/backend-binary"},
		Port: 1,
	})
	if err == nil {
		t.Fatal("spawn of missing binary succeeded")
	}
}

func TestBoundedBufferTruncates(t *testing.T) {
	b := newBoundedBuffer(8)
	n, err := b.Write([]byte("0123456789abcdef"))
	if err != nil || n != 16 {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if got := b.String(); got != "01234567" {
		t.Errorf("buffer = %q, want first 8 bytes", got)
	}
	// Further writes are swallowed without error.
	if _, err := b.Write([]byte("x")); err != nil {
		t.Fatalf("post-limit Write: %v", err)
	}
	if got := b.String(); got != "01234567" {
		t.Errorf("buffer grew past limit: %q", got)
	}
}
