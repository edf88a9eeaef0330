package session

import (
	"log"

	"github.com/gluk-w/firedesk/internal/database"
	"github.com/gluk-w/firedesk/internal/procutil"
)

// Reaper removes registry entries whose backing process died without going
// through normal termination, or whose PID now belongs to an unrelated
// process. It does not hold the launcher's exclusive section; the registry's
// own lock makes each removal safe.
type Reaper struct {
	registry *Registry
	dirs     *Dirs

	// MatchComm decides whether an executable name still looks like our
	// backend. Overridable so tests can track arbitrary processes.
	MatchComm func(comm string) bool
}

func NewReaper(reg *Registry, dirs *Dirs) *Reaper {
	return &Reaper{registry: reg, dirs: dirs, MatchComm: matchesBackend}
}

// Sweep checks every session in a registry snapshot and reaps the dead ones.
// Directory cleanup is best-effort. Returns the number of sessions removed.
func (r *Reaper) Sweep() int {
	reaped := 0
	for _, sess := range r.registry.Snapshot() {
		if r.shouldReap(sess) {
			r.reap(sess)
			reaped++
		}
	}
	if reaped > 0 {
		log.Printf("Reaper: removed %d dead sessions, %d remain", reaped, r.registry.Len())
	}
	return reaped
}

func (r *Reaper) shouldReap(sess *Session) bool {
	switch procutil.Check(sess.PID) {
	case procutil.NotFound:
		log.Printf("Reaper: process %d for port %d no longer exists", sess.PID, sess.Port)
		return true
	case procutil.PermissionDenied:
		// The PID was reused by a process we cannot even signal; it is
		// certainly not our child anymore.
		log.Printf("Reaper: pid %d for port %d now belongs to a foreign process", sess.PID, sess.Port)
		return true
	}

	comm, err := procutil.Comm(sess.PID)
	if err != nil {
		// Vanished between the liveness check and the comm read.
		return true
	}
	if !r.MatchComm(comm) {
		log.Printf("Reaper: pid %d for port %d is now %q, not a session backend", sess.PID, sess.Port, comm)
		return true
	}
	return false
}

func (r *Reaper) reap(sess *Session) {
	sess.setState(StateTerminated)
	r.registry.Remove(sess.Port)

	if err := r.dirs.Destroy(sess.ScratchDir); err != nil {
		log.Printf("WARNING: reaper directory cleanup for port %d: %v", sess.Port, err)
	}
	if database.DB != nil {
		if err := database.RecordTermination(sess.Port, "reaped"); err != nil {
			log.Printf("WARNING: reaper audit for port %d: %v", sess.Port, err)
		}
	}
}
