package session

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gluk-w/firedesk/internal/database"
	"github.com/gluk-w/firedesk/internal/procutil"
)

// terminateTree is indirected for tests that exercise bookkeeping without
// signaling real processes.
var terminateTree = procutil.TerminateTree

// backendExecutables are the process names a session tree is made of. The
// nuclear scan and the reaper's identity check both match against them.
var backendExecutables = []string{"xpra", "firefox", "xvfb"}

// Scope is the blast radius of a cleanup request.
type Scope int

const (
	// ScopeManaged affects only sessions present in the registry.
	ScopeManaged Scope = iota
	// ScopeNuclear additionally terminates every process on the host whose
	// executable matches a backend name. Opt-in, double-confirmed.
	ScopeNuclear
)

// Options select the cleanup behavior. Nuclear scope requires both Nuclear
// and ConfirmNuclear; a lone Nuclear flag degrades to managed scope.
type Options struct {
	Nuclear        bool
	ConfirmNuclear bool
	CleanupDirs    bool
}

// ResolveScope applies the double-confirmation gate.
func ResolveScope(opts Options) Scope {
	if opts.Nuclear && opts.ConfirmNuclear {
		return ScopeNuclear
	}
	if opts.Nuclear {
		log.Printf("WARNING: nuclear cleanup requested without confirm_nuclear; only managed sessions will be affected")
	}
	return ScopeManaged
}

// Terminator kills session process trees and reclaims their resources.
type Terminator struct {
	registry *Registry
	dirs     *Dirs
	timeout  time.Duration
}

func NewTerminator(reg *Registry, dirs *Dirs, timeout time.Duration) *Terminator {
	return &Terminator{registry: reg, dirs: dirs, timeout: timeout}
}

// Terminate kills one managed session's process tree, removes its scratch
// directory and drops it from the registry. An already-dead process is
// success. A foreign process (EPERM) is surfaced and the entry is kept.
func (t *Terminator) Terminate(sess *Session) error {
	sess.setState(StateTerminating)

	if err := terminateTree(sess.PID, t.timeout); err != nil {
		if errors.Is(err, procutil.ErrPermissionDenied) {
			sess.setState(StateReady)
			return err
		}
		log.Printf("WARNING: terminate tree pid=%d: %v", sess.PID, err)
	}

	if err := t.dirs.Destroy(sess.ScratchDir); err != nil {
		log.Printf("WARNING: scratch cleanup for port %d: %v", sess.Port, err)
	}

	sess.setState(StateTerminated)
	t.registry.Remove(sess.Port)
	t.recordTermination(sess.Port, "terminated")
	log.Printf("Session terminated: port=%d pid=%d", sess.Port, sess.PID)
	return nil
}

// TerminateByPID terminates the managed session rooted at pid, or, for an
// unmanaged pid, best-effort kills its tree. "Already gone" is success.
func (t *Terminator) TerminateByPID(pid int) error {
	if sess, ok := t.registry.LookupByPID(pid); ok {
		return t.Terminate(sess)
	}
	// Not ours; terminate the tree but leave directories alone, the owning
	// session (if any) is tracked elsewhere.
	return terminateTree(pid, t.timeout)
}

// CleanupResult reports what a cleanup call affected.
type CleanupResult struct {
	ProcessesAffected int
	Scope             Scope
	ActiveSessions    int
}

// CleanupAll terminates every managed session and, under nuclear scope, every
// other backend-named process on the host. CleanupDirs additionally sweeps
// orphaned session directories under the root.
func (t *Terminator) CleanupAll(opts Options) (CleanupResult, error) {
	scope := ResolveScope(opts)
	res := CleanupResult{Scope: scope}

	managed := make(map[int]bool)
	for _, sess := range t.registry.Snapshot() {
		managed[sess.PID] = true
		if err := t.Terminate(sess); err != nil {
			log.Printf("WARNING: cleanup of port %d: %v", sess.Port, err)
			continue
		}
		res.ProcessesAffected++
	}

	if scope == ScopeNuclear {
		log.Printf("NUCLEAR CLEANUP: terminating all %v processes on the host", backendExecutables)
		pids, err := procutil.ScanByName(backendExecutables...)
		if err != nil {
			return res, err
		}
		self := os.Getpid()
		for _, pid := range pids {
			if managed[pid] || pid == self {
				continue
			}
			if err := terminateTree(pid, t.timeout); err != nil {
				log.Printf("WARNING: nuclear terminate pid=%d: %v", pid, err)
				continue
			}
			res.ProcessesAffected++
		}
	}

	if opts.CleanupDirs {
		active := make(map[int]bool)
		for _, sess := range t.registry.Snapshot() {
			active[sess.Port] = true
		}
		orphans, err := t.dirs.Orphans(active)
		if err != nil {
			log.Printf("WARNING: orphan directory scan: %v", err)
		}
		for _, dir := range orphans {
			if err := t.dirs.Destroy(dir); err != nil {
				log.Printf("WARNING: orphan directory cleanup %s: %v", dir, err)
			}
		}
	}

	res.ActiveSessions = t.registry.Len()
	return res, nil
}

func (t *Terminator) recordTermination(port int, note string) {
	if database.DB == nil {
		return
	}
	if err := database.RecordTermination(port, note); err != nil {
		log.Printf("WARNING: audit termination for port %d: %v", port, err)
	}
}

// matchesBackend reports whether comm looks like one of our backend
// executables.
func matchesBackend(comm string) bool {
	comm = strings.ToLower(comm)
	for _, name := range backendExecutables {
		if strings.Contains(comm, name) {
			return true
		}
	}
	return false
}
