package session

import (
	"fmt"
	"os/exec"
	"path/filepath"
)

// XpraCommand is the fully-resolved launch specification for one session.
// Fields are validated before being flattened into an argument list at the
// spawn boundary; nothing builds argv strings ad hoc.
type XpraCommand struct {
	XpraPath   string
	XvfbPath   string
	StartChild string // wrapper script that execs Firefox with the session profile

	BindHost string
	Port     int

	Scratch ScratchDir

	Quality  string
	Compress string
	DPI      string

	Clipboard bool
	HTML      bool

	// Env holds extra KEY=VALUE pairs for the child, beyond the
	// session-directory variables the command itself derives.
	Env []string
}

func (c *XpraCommand) Validate() error {
	if c.XpraPath == "" {
		return fmt.Errorf("xpra path not set")
	}
	if c.XvfbPath == "" {
		return fmt.Errorf("xvfb path not set")
	}
	if c.StartChild == "" {
		return fmt.Errorf("start-child wrapper not set")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.BindHost == "" {
		return fmt.Errorf("bind host not set")
	}
	if c.Scratch.Root == "" || c.Scratch.Runtime == "" {
		return fmt.Errorf("scratch directories not prepared")
	}
	return nil
}

// Args flattens the specification into the xpra argument list. Daemon mode
// stays off so the spawned tree remains under our process management, and
// exit-with-children ties the display server's life to Firefox's.
func (c *XpraCommand) Args() []string {
	boolFlag := func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	}

	args := []string{
		c.XpraPath,
		"start",
		fmt.Sprintf("--bind-tcp=%s:%d", c.BindHost, c.Port),
		"--bind=none",
		fmt.Sprintf("--html=%s", boolFlag(c.HTML)),
		"--daemon=no",
		"--exit-with-children=yes",
		"--start-via-proxy=no",
		"--start=",
		fmt.Sprintf("--start-child=%s", c.StartChild),
		fmt.Sprintf("--xvfb=%s +extension Composite -screen 0 1280x800x24+32 -nolisten tcp -noreset +extension GLX", c.XvfbPath),
		"--mdns=no",
		"--pulseaudio=no",
		"--notifications=no",
		fmt.Sprintf("--clipboard=%s", boolFlag(c.Clipboard)),
		"--sharing=no",
		"--speaker=off",
		"--microphone=off",
		"--webcam=no",
		"--desktop-scaling=auto",
		"--resize-display=yes",
		"--cursors=yes",
		"--bell=no",
		"--system-tray=no",
		"--xsettings=yes",
		"--readonly=no",
		"--window-close=auto",
		fmt.Sprintf("--dpi=%s", c.DPI),
		fmt.Sprintf("--compressors=%s", c.Compress),
		fmt.Sprintf("--quality=%s", c.Quality),
		"--encoding=auto",
		"--min-quality=30",
		"--min-speed=30",
		"--auto-refresh-delay=0.15",
		"--fake-xinerama=auto",
		"--use-display=no",
		fmt.Sprintf("--session-name=Firefox-Session-%d", c.Port),
		"--env=PATH=/usr/local/bin:/usr/bin:/bin",
		fmt.Sprintf("--env=SESSION_DIR=%s", c.Scratch.Root),
		fmt.Sprintf("--env=XDG_RUNTIME_DIR=%s", c.Scratch.Runtime),
		fmt.Sprintf("--env=XAUTHORITY=%s", filepath.Join(c.Scratch.Runtime, ".Xauth")),
		"--dbus-launch=",
		"--dbus-proxy=no",
		"--remote-logging=no",
		"--bandwidth-detection=no",
		"--pings=yes",
	}
	if c.Clipboard {
		args = append(args, "--clipboard-direction=both",
			"--env=XPRA_CLIPBOARD_WANT_TARGETS=1",
			"--env=XPRA_CLIPBOARD_GREEDY=1")
	}
	for _, kv := range c.Env {
		args = append(args, fmt.Sprintf("--env=%s", kv))
	}
	return args
}

// ResolveExecutables fills the executable paths from PATH. The wrapper script
// lookup honors a development override.
func (c *XpraCommand) ResolveExecutables(devLauncherPath string) error {
	report := CheckDependencies()
	if !report.AllPresent {
		return &DependencyMissingError{Missing: report.Missing}
	}

	var err error
	if c.XpraPath, err = exec.LookPath("xpra"); err != nil {
		return &DependencyMissingError{Missing: []Dependency{requiredDependencies[0]}}
	}
	if c.XvfbPath, err = exec.LookPath("Xvfb"); err != nil {
		return &DependencyMissingError{Missing: []Dependency{requiredDependencies[2]}}
	}

	if devLauncherPath != "" {
		c.StartChild = devLauncherPath
		return nil
	}
	wrapper, err := exec.LookPath("firefox-xstartup")
	if err != nil {
		return fmt.Errorf("firefox-xstartup wrapper script not found in PATH")
	}
	c.StartChild = wrapper
	return nil
}
