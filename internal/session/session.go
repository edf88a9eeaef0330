// Package session implements the lifecycle of isolated Xpra/Firefox desktop
// sessions: port allocation, serialized launch with startup verification, the
// in-memory registry, process-tree termination and stale-session reaping.
package session

import (
	"sync"
	"time"
)

type State string

const (
	StateStarting    State = "starting"
	StateReady       State = "ready"
	StateTerminating State = "terminating"
	StateTerminated  State = "terminated"
)

// Session is one launched Xpra+Firefox process tree, keyed by its port.
type Session struct {
	ID         string
	Port       int
	PID        int
	ScratchDir string
	CreatedAt  time.Time

	mu    sync.Mutex
	state State
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}
