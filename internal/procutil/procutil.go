// Package procutil provides the process primitives the session lifecycle is
// built on: liveness checks, process-tree enumeration and graceful
// terminate-then-kill escalation.
package procutil

import (
	"errors"
	"log"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/procfs"
)

// Liveness is the result of a single liveness check. "Process is gone" is an
// explicit variant rather than an error to be caught at every call site.
type Liveness int

const (
	Alive Liveness = iota
	NotFound
	PermissionDenied
)

func (l Liveness) String() string {
	switch l {
	case Alive:
		return "alive"
	case NotFound:
		return "not-found"
	case PermissionDenied:
		return "permission-denied"
	default:
		return "unknown"
	}
}

// Check reports whether pid refers to a live process. A process we cannot
// signal (EPERM) is alive but foreign; callers must not conflate that with
// "already gone".
func Check(pid int) Liveness {
	err := syscall.Kill(pid, 0)
	switch {
	case err == nil:
		return Alive
	case errors.Is(err, syscall.ESRCH):
		return NotFound
	case errors.Is(err, syscall.EPERM):
		return PermissionDenied
	default:
		return NotFound
	}
}

// Comm returns the executable name (/proc/<pid>/comm) for a live process.
func Comm(pid int) (string, error) {
	p, err := procfs.NewProc(pid)
	if err != nil {
		return "", err
	}
	return p.Comm()
}

// Children returns the PIDs of all recursive descendants of root, from a
// single scan of the process table. A dead root yields an empty slice.
func Children(root int) ([]int, error) {
	procs, err := procfs.AllProcs()
	if err != nil {
		return nil, err
	}

	byParent := make(map[int][]int, len(procs))
	for _, p := range procs {
		stat, err := p.Stat()
		if err != nil {
			continue // process vanished mid-scan
		}
		byParent[stat.PPID] = append(byParent[stat.PPID], p.PID)
	}

	var out []int
	queue := []int{root}
	for len(queue) > 0 {
		pid := queue[0]
		queue = queue[1:]
		for _, child := range byParent[pid] {
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out, nil
}

// ScanByName returns the PIDs of every process whose executable name contains
// any of the given lowercase names. Used only by nuclear cleanup.
func ScanByName(names ...string) ([]int, error) {
	procs, err := procfs.AllProcs()
	if err != nil {
		return nil, err
	}

	var out []int
	for _, p := range procs {
		comm, err := p.Comm()
		if err != nil {
			continue
		}
		comm = strings.ToLower(comm)
		for _, name := range names {
			if strings.Contains(comm, name) {
				out = append(out, p.PID)
				break
			}
		}
	}
	return out, nil
}

// ErrPermissionDenied reports a signal refused by the OS for a process owned
// by someone else.
var ErrPermissionDenied = errors.New("permission denied signaling process")

// TerminateTree delivers SIGTERM to every descendant of pid and then to pid
// itself, waits up to timeout for pid to exit, and escalates to SIGKILL of
// the whole tree if it does not. An already-gone root is success.
func TerminateTree(pid int, timeout time.Duration) error {
	if Check(pid) == NotFound {
		return nil
	}

	children, err := Children(pid)
	if err != nil {
		log.Printf("WARNING: cannot enumerate children of %d: %v", pid, err)
	}

	for _, child := range children {
		if err := syscall.Kill(child, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
			log.Printf("WARNING: terminate child %d: %v", child, err)
		}
	}

	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		if errors.Is(err, syscall.EPERM) {
			return ErrPermissionDenied
		}
		return err
	}

	if waitGone(pid, timeout) {
		return nil
	}

	log.Printf("WARNING: process %d did not exit within %s, force killing", pid, timeout)
	syscall.Kill(pid, syscall.SIGKILL)
	for _, child := range children {
		syscall.Kill(child, syscall.SIGKILL)
	}
	waitGone(pid, time.Second)
	return nil
}

func waitGone(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if Check(pid) == NotFound {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return Check(pid) == NotFound
}
