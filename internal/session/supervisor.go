package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/sethvargo/go-retry"
)

// captureLimit bounds how much child stdout/stderr is retained for failure
// diagnostics.
const captureLimit = 4096

// LaunchSpec is what the supervisor actually spawns: a resolved argv plus the
// port the backend is expected to bind.
type LaunchSpec struct {
	Argv []string
	Env  []string // extra KEY=VALUE entries appended to the inherited environment
	Port int
}

// Supervisor spawns the backend process tree and verifies early liveness over
// an explicit wait schedule before declaring the launch successful.
type Supervisor struct {
	ProbeHost    string
	ProbeTimeout time.Duration
	Schedule     []time.Duration
}

// ScheduleBackoff adapts an explicit interval schedule to a retry backoff:
// one retry per interval, then stop.
func ScheduleBackoff(schedule []time.Duration) retry.Backoff {
	i := 0
	return retry.BackoffFunc(func() (time.Duration, bool) {
		if i >= len(schedule) {
			return 0, true
		}
		d := schedule[i]
		i++
		return d, false
	})
}

var errStillStarting = errors.New("backend still starting")

// Start spawns the process in its own process group and polls liveness at
// each point of the wait schedule. If the process exits before the schedule
// completes, the captured output is attached to the returned
// ProcessSpawnError. On success it additionally attempts a TCP connect probe
// to the backend port; the probe is advisory since the backend may still be
// binding.
func (s *Supervisor) Start(ctx context.Context, spec LaunchSpec) (int, error) {
	if len(spec.Argv) == 0 {
		return 0, fmt.Errorf("empty launch command")
	}

	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...)
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout := newBoundedBuffer(captureLimit)
	stderr := newBoundedBuffer(captureLimit)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("spawn backend: %w", err)
	}
	pid := cmd.Process.Pid
	log.Printf("Spawned backend pid=%d port=%d", pid, spec.Port)

	// Reap the child whenever it eventually exits, so liveness checks never
	// see a lingering zombie.
	exited := make(chan struct{})
	go func() {
		cmd.Wait()
		close(exited)
	}()

	checks := 0
	err := retry.Do(ctx, ScheduleBackoff(s.Schedule), func(ctx context.Context) error {
		select {
		case <-exited:
			return &ProcessSpawnError{
				ExitCode: cmd.ProcessState.ExitCode(),
				Stdout:   stdout.String(),
				Stderr:   stderr.String(),
			}
		default:
		}
		checks++
		if checks <= len(s.Schedule) {
			return retry.RetryableError(errStillStarting)
		}
		return nil
	})
	if err != nil {
		var spawnErr *ProcessSpawnError
		if errors.As(err, &spawnErr) {
			return 0, spawnErr
		}
		// Schedule exhausted while the process kept running; treat as alive.
		if !errors.Is(err, errStillStarting) {
			return 0, err
		}
	}

	// Process survived the dwell; confirm the port is accepting. Failure here
	// is expected during a slow startup and is not an error.
	addr := net.JoinHostPort(s.ProbeHost, strconv.Itoa(spec.Port))
	conn, probeErr := net.DialTimeout("tcp", addr, s.ProbeTimeout)
	if probeErr == nil {
		conn.Close()
		log.Printf("Backend pid=%d accepting connections on port %d", pid, spec.Port)
	} else {
		log.Printf("Backend pid=%d not yet accepting on port %d (expected during startup)", pid, spec.Port)
	}

	return pid, nil
}

// boundedBuffer keeps at most limit bytes of process output. Pipe writers run
// on their own goroutines, so writes are locked.
type boundedBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func newBoundedBuffer(limit int) *boundedBuffer {
	return &boundedBuffer{limit: limit}
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.limit - len(b.buf); room > 0 {
		if len(p) > room {
			b.buf = append(b.buf, p[:room]...)
		} else {
			b.buf = append(b.buf, p...)
		}
	}
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
