package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gluk-w/firedesk/internal/database"
	"github.com/gluk-w/firedesk/internal/netutil"
	"github.com/google/uuid"
)

// LauncherConfig carries the launch-time tunables resolved from config and
// the settings store.
type LauncherConfig struct {
	BindHost        string
	Quality         string
	Compress        string
	DPI             string
	DevLauncherPath string
}

// Launcher serializes the allocate→prepare→spawn→verify→register sequence
// behind a single exclusive section. Two concurrent launches never interleave
// their spawn bookkeeping; status queries and termination are not serialized
// here.
type Launcher struct {
	mu sync.Mutex

	registry   *Registry
	dirs       *Dirs
	supervisor *Supervisor
	cfg        LauncherConfig

	// BuildSpec resolves the launch specification for a port and prepared
	// scratch area. The default builds the Xpra command; tests substitute
	// a harmless process.
	BuildSpec func(port int, scratch ScratchDir) (LaunchSpec, error)
}

func NewLauncher(reg *Registry, dirs *Dirs, sup *Supervisor, cfg LauncherConfig) *Launcher {
	l := &Launcher{
		registry:   reg,
		dirs:       dirs,
		supervisor: sup,
		cfg:        cfg,
	}
	l.BuildSpec = l.buildXpraSpec
	return l
}

func (l *Launcher) buildXpraSpec(port int, scratch ScratchDir) (LaunchSpec, error) {
	cmd := XpraCommand{
		BindHost:  l.cfg.BindHost,
		Port:      port,
		Scratch:   scratch,
		Quality:   l.quality(),
		Compress:  l.compress(),
		DPI:       l.dpi(),
		Clipboard: true,
		HTML:      true,
	}
	if err := cmd.ResolveExecutables(l.cfg.DevLauncherPath); err != nil {
		return LaunchSpec{}, err
	}
	if err := cmd.Validate(); err != nil {
		return LaunchSpec{}, fmt.Errorf("invalid launch specification: %w", err)
	}
	return LaunchSpec{
		Argv: cmd.Args(),
		Env:  []string{"XPRA_CRASH_DEBUG=1"},
		Port: port,
	}, nil
}

// Settings-table overrides win over config fallbacks.
func (l *Launcher) quality() string  { return l.tunable("xpra_quality", l.cfg.Quality) }
func (l *Launcher) compress() string { return l.tunable("xpra_compress", l.cfg.Compress) }
func (l *Launcher) dpi() string      { return l.tunable("xpra_dpi", l.cfg.DPI) }

func (l *Launcher) tunable(key, fallback string) string {
	if database.DB == nil {
		return fallback
	}
	if v, err := database.GetSetting(key); err == nil && v != "" {
		return v
	}
	return fallback
}

// Launch starts a new isolated session and registers it. On any failure
// inside the critical section, partially-created resources are rolled back
// and nothing is registered.
func (l *Launcher) Launch(ctx context.Context) (*Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	port, err := netutil.FreePort()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPortAllocation, err)
	}

	scratch, err := l.dirs.Prepare(port)
	if err != nil {
		return nil, err
	}

	spec, err := l.BuildSpec(port, scratch)
	if err != nil {
		l.rollbackDirs(scratch)
		return nil, err
	}

	pid, err := l.supervisor.Start(ctx, spec)
	if err != nil {
		l.rollbackDirs(scratch)
		return nil, err
	}

	sess := &Session{
		ID:         uuid.NewString(),
		Port:       port,
		PID:        pid,
		ScratchDir: scratch.Root,
		CreatedAt:  time.Now().UTC(),
		state:      StateStarting,
	}

	if err := l.registry.Insert(sess); err != nil {
		// Port collision inside the exclusive section should be impossible;
		// abort the half-formed session rather than leave it untracked.
		log.Printf("ERROR: registry insert for port %d: %v", port, err)
		l.abort(sess)
		return nil, err
	}
	sess.setState(StateReady)

	l.recordLaunch(sess)
	log.Printf("Session ready: port=%d pid=%d scratch=%s", sess.Port, sess.PID, sess.ScratchDir)
	return sess, nil
}

func (l *Launcher) rollbackDirs(scratch ScratchDir) {
	if err := l.dirs.Destroy(scratch.Root); err != nil {
		log.Printf("WARNING: rollback of %s failed: %v", scratch.Root, err)
	}
}

// abort tears down a session that failed between spawn and registration.
func (l *Launcher) abort(sess *Session) {
	sess.setState(StateTerminated)
	if err := terminateTree(sess.PID, 3*time.Second); err != nil {
		log.Printf("WARNING: abort of pid %d: %v", sess.PID, err)
	}
	l.rollbackDirs(ScratchDir{Root: sess.ScratchDir})
}

func (l *Launcher) recordLaunch(sess *Session) {
	if database.DB == nil {
		return
	}
	rec := &database.SessionRecord{
		ID:         sess.ID,
		Port:       sess.Port,
		PID:        sess.PID,
		Status:     "starting",
		ScratchDir: sess.ScratchDir,
	}
	if err := database.RecordLaunch(rec); err != nil {
		log.Printf("WARNING: audit record for port %d: %v", sess.Port, err)
		return
	}
	if err := database.MarkReady(sess.ID); err != nil {
		log.Printf("WARNING: audit ready mark for port %d: %v", sess.Port, err)
	}
}
