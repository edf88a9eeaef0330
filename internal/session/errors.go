package session

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPortAllocation wraps an OS-level bind failure during port allocation.
// Fatal to the launch attempt; nothing is registered.
var ErrPortAllocation = errors.New("port allocation failed")

// DependencyMissingError reports required executables absent from the host.
type DependencyMissingError struct {
	Missing []Dependency
}

func (e *DependencyMissingError) Error() string {
	names := make([]string, len(e.Missing))
	for i, d := range e.Missing {
		names[i] = d.Name
	}
	return fmt.Sprintf("missing dependencies: %s", strings.Join(names, ", "))
}

// ProcessSpawnError reports a backend process that exited before completing
// its startup checks, with the captured output attached.
type ProcessSpawnError struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *ProcessSpawnError) Error() string {
	return fmt.Sprintf("backend process exited with code %d during startup", e.ExitCode)
}
