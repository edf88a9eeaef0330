package netutil

import (
	"fmt"
	"net"
)

// FreePort returns a TCP port that was unbound at the moment of allocation,
// by transiently binding a listener on port 0 and releasing it. The port is
// only guaranteed free at allocation time; the window between release and the
// backend binding it is an accepted hazard.
func FreePort() (int, error) {
	l, err := net.Listen("tcp", ":0")
	if err != nil {
		return 0, fmt.Errorf("allocate port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
