package procutil

import (
	"os"
	"os/exec"
	"testing"
	"time"
)

func startSleeper(t *testing.T, args ...string) *exec.Cmd {
	t.Helper()
	cmd := exec.Command(args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		t.Fatalf("start %v: %v", args, err)
	}
	done := make(chan struct{})
	go func() {
		cmd.Wait()
		close(done)
	}()
	t.Cleanup(func() {
		cmd.Process.Kill()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	})
	return cmd
}

func TestCheckAlive(t *testing.T) {
	if got := Check(os.Getpid()); got != Alive {
		t.Errorf("Check(self) = %v, want alive", got)
	}
}

func TestCheckNotFound(t *testing.T) {
	cmd := startSleeper(t, "sleep", "60")
	pid := cmd.Process.Pid
	cmd.Process.Kill()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if Check(pid) == NotFound {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("Check(%d) still %v after kill", pid, Check(pid))
}

func TestComm(t *testing.T) {
	cmd := startSleeper(t, "sleep", "60")
	comm, err := Comm(cmd.Process.Pid)
	if err != nil {
		t.Fatalf("Comm: %v", err)
	}
	if comm != "sleep" {
		t.Errorf("Comm = %q, want sleep", comm)
	}
}

func TestChildrenFindsDescendants(t *testing.T) {
	cmd := startSleeper(t, "sh", "-c", "sleep 60 & wait")
	time.Sleep(200 * time.Millisecond)

	kids, err := Children(cmd.Process.Pid)
	if err != nil {
		t.Fatalf("Children: %v", err)
	}

	found := false
	for _, pid := range kids {
		if comm, err := Comm(pid); err == nil && comm == "sleep" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a sleep descendant under %d, got %v", cmd.Process.Pid, kids)
	}
}

func TestTerminateTree(t *testing.T) {
	cmd := startSleeper(t, "sh", "-c", "sleep 60 & wait")
	time.Sleep(200 * time.Millisecond)
	pid := cmd.Process.Pid

	kids, _ := Children(pid)

	if err := TerminateTree(pid, 3*time.Second); err != nil {
		t.Fatalf("TerminateTree: %v", err)
	}
	if got := Check(pid); got != NotFound {
		t.Errorf("root %d still %v after TerminateTree", pid, got)
	}

	// Descendants get the graceful signal too; give them a moment to exit.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		alive := false
		for _, k := range kids {
			if Check(k) == Alive {
				alive = true
			}
		}
		if !alive {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("descendants of %d still alive after TerminateTree", pid)
}

func TestTerminateTreeIdempotent(t *testing.T) {
	cmd := startSleeper(t, "sleep", "60")
	pid := cmd.Process.Pid

	if err := TerminateTree(pid, 3*time.Second); err != nil {
		t.Fatalf("first TerminateTree: %v", err)
	}
	// Already gone must be success, not an error.
	if err := TerminateTree(pid, time.Second); err != nil {
		t.Fatalf("second TerminateTree: %v", err)
	}
}

func TestScanByName(t *testing.T) {
	cmd := startSleeper(t, "sleep", "60")

	pids, err := ScanByName("sleep")
	if err != nil {
		t.Fatalf("ScanByName: %v", err)
	}
	found := false
	for _, pid := range pids {
		if pid == cmd.Process.Pid {
			found = true
		}
	}
	if !found {
		t.Errorf("ScanByName(sleep) missing pid %d", cmd.Process.Pid)
	}
}
