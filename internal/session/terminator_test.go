package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/gluk-w/firedesk/internal/procutil"
)

func mustLaunch(t *testing.T, l *Launcher) *Session {
	t.Helper()
	sess, err := l.Launch(context.Background())
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	return sess
}

func TestTerminateCleanTeardown(t *testing.T) {
	l, reg, _, term := newTestStack(t)
	sess := mustLaunch(t, l)

	if err := term.Terminate(sess); err != nil {
		t.Fatalf("Terminate: %v", err)
	}

	if sess.State() != StateTerminated {
		t.Errorf("state = %s, want terminated", sess.State())
	}
	if _, ok := reg.Lookup(sess.Port); ok {
		t.Error("registry still holds the terminated session")
	}
	if _, err := os.Stat(sess.ScratchDir); !os.IsNotExist(err) {
		t.Error("scratch dir still exists after termination")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && procutil.Check(sess.PID) != procutil.NotFound {
		time.Sleep(20 * time.Millisecond)
	}
	if procutil.Check(sess.PID) != procutil.NotFound {
		t.Errorf("backend pid %d survived termination", sess.PID)
	}
}

// Terminating one session must never touch another session's process or
// registry entry.
func TestTerminateNonInterference(t *testing.T) {
	l, reg, _, term := newTestStack(t)
	a := mustLaunch(t, l)
	b := mustLaunch(t, l)

	if err := term.Terminate(a); err != nil {
		t.Fatalf("terminate A: %v", err)
	}

	if _, ok := reg.Lookup(b.Port); !ok {
		t.Fatal("terminating A removed B's registry entry")
	}
	if procutil.Check(b.PID) != procutil.Alive {
		t.Fatal("terminating A killed B's process tree")
	}
	if b.State() != StateReady {
		t.Errorf("B state = %s, want ready", b.State())
	}
	if _, err := os.Stat(b.ScratchDir); err != nil {
		t.Errorf("B scratch dir affected: %v", err)
	}
}

func TestTerminateByPIDIdempotent(t *testing.T) {
	l, _, _, term := newTestStack(t)
	sess := mustLaunch(t, l)
	pid := sess.PID

	if err := term.TerminateByPID(pid); err != nil {
		t.Fatalf("first TerminateByPID: %v", err)
	}
	// Already-dead process is success, both for managed and unmanaged paths.
	if err := term.TerminateByPID(pid); err != nil {
		t.Fatalf("second TerminateByPID: %v", err)
	}
}

func TestResolveScopeNuclearGating(t *testing.T) {
	cases := []struct {
		opts Options
		want Scope
	}{
		{Options{}, ScopeManaged},
		{Options{Nuclear: true}, ScopeManaged},
		{Options{ConfirmNuclear: true}, ScopeManaged},
		{Options{Nuclear: true, ConfirmNuclear: true}, ScopeNuclear},
	}
	for _, c := range cases {
		if got := ResolveScope(c.opts); got != c.want {
			t.Errorf("ResolveScope(%+v) = %v, want %v", c.opts, got, c.want)
		}
	}
}

func TestCleanupAllManagedOnly(t *testing.T) {
	l, reg, _, term := newTestStack(t)
	mustLaunch(t, l)
	mustLaunch(t, l)

	// Nuclear without confirmation degrades to managed scope.
	res, err := term.CleanupAll(Options{Nuclear: true})
	if err != nil {
		t.Fatalf("CleanupAll: %v", err)
	}
	if res.Scope != ScopeManaged {
		t.Errorf("scope = %v, want managed", res.Scope)
	}
	if res.ProcessesAffected != 2 {
		t.Errorf("affected = %d, want 2", res.ProcessesAffected)
	}
	if reg.Len() != 0 || res.ActiveSessions != 0 {
		t.Errorf("sessions remain: len=%d active=%d", reg.Len(), res.ActiveSessions)
	}
}

func TestCleanupAllSweepsOrphanDirs(t *testing.T) {
	l, _, dirs, term := newTestStack(t)
	mustLaunch(t, l)

	// A leftover directory from a crashed run.
	dirs.Prepare(49999)

	res, err := term.CleanupAll(Options{CleanupDirs: true})
	if err != nil {
		t.Fatalf("CleanupAll: %v", err)
	}
	if res.ProcessesAffected != 1 {
		t.Errorf("affected = %d, want 1", res.ProcessesAffected)
	}
	if _, err := os.Stat(dirs.PathFor(49999)); !os.IsNotExist(err) {
		t.Error("orphan directory survived cleanup_dirs")
	}
}

// The end-to-end scenario: launch A and B, terminate A by pid, then cleanup
// all; only B is affected by the second step and nothing remains after.
func TestLifecycleScenario(t *testing.T) {
	l, reg, dirs, term := newTestStack(t)

	a := mustLaunch(t, l)
	b := mustLaunch(t, l)
	if a.Port == b.Port {
		t.Fatalf("duplicate ports: %d", a.Port)
	}

	if err := term.TerminateByPID(a.PID); err != nil {
		t.Fatalf("terminate A by pid: %v", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("active sessions = %d, want 1", reg.Len())
	}
	if _, ok := reg.Lookup(b.Port); !ok {
		t.Fatal("B missing after terminating A")
	}

	res, err := term.CleanupAll(Options{})
	if err != nil {
		t.Fatalf("cleanup all: %v", err)
	}
	if res.ActiveSessions != 0 {
		t.Errorf("active sessions = %d, want 0", res.ActiveSessions)
	}
	for _, sess := range []*Session{a, b} {
		if _, err := os.Stat(dirs.PathFor(sess.Port)); !os.IsNotExist(err) {
			t.Errorf("scratch dir for port %d still present", sess.Port)
		}
	}
}

func TestMatchesBackend(t *testing.T) {
	for _, comm := range []string{"xpra", "firefox", "Xvfb", "firefox-bin"} {
		if !matchesBackend(comm) {
			t.Errorf("matchesBackend(%q) = false", comm)
		}
	}
	for _, comm := range []string{"sleep", "bash", "python3"} {
		if matchesBackend(comm) {
			t.Errorf("matchesBackend(%q) = true", comm)
		}
	}
}
