package session

import (
	"fmt"
	"sync"
)

// Registry is the in-memory table of active sessions, keyed by port. Its own
// mutex covers every mutation — inserts from the launch path, deletes from
// the terminator and the reaper — so concurrent deletes can never lose an
// insert. The Launcher additionally serializes the whole
// allocate→spawn→register sequence behind its own exclusive section.
type Registry struct {
	mu       sync.Mutex
	sessions map[int]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[int]*Session)}
}

// Insert adds a session. A live session already holding the port is a bug in
// the caller and is rejected.
func (r *Registry) Insert(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[s.Port]; exists {
		return fmt.Errorf("session already registered on port %d", s.Port)
	}
	r.sessions[s.Port] = s
	return nil
}

func (r *Registry) Lookup(port int) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[port]
	return s, ok
}

// LookupByPID scans for the session rooted at pid.
func (r *Registry) LookupByPID(pid int) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.PID == pid {
			return s, true
		}
	}
	return nil, false
}

// Remove deletes the entry for port. Removing an absent entry is fine; the
// terminator and the reaper may race on the same dying session.
func (r *Registry) Remove(port int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[port]; !ok {
		return false
	}
	delete(r.sessions, port)
	return true
}

// Snapshot returns the current sessions. Entries may be removed by others
// while the caller iterates; callers must tolerate that.
func (r *Registry) Snapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
