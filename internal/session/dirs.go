package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ScratchDir is a session's exclusively-owned filesystem area.
type ScratchDir struct {
	Root    string // session-<port> directory
	Sockets string
	Runtime string // owner-only; required by D-Bus
	Profile string
	Temp    string
}

// Dirs manages per-session scratch directories under a fixed root.
type Dirs struct {
	Root string
}

func NewDirs(root string) *Dirs {
	return &Dirs{Root: root}
}

func (d *Dirs) PathFor(port int) string {
	return filepath.Join(d.Root, fmt.Sprintf("session-%d", port))
}

// Prepare creates the scratch tree for port. Safe to call more than once.
func (d *Dirs) Prepare(port int) (ScratchDir, error) {
	sd := ScratchDir{Root: d.PathFor(port)}
	sd.Sockets = filepath.Join(sd.Root, "sockets")
	sd.Runtime = filepath.Join(sd.Root, "runtime")
	sd.Profile = filepath.Join(sd.Root, "profile")
	sd.Temp = filepath.Join(sd.Root, "temp")

	for _, dir := range []string{sd.Root, sd.Sockets, sd.Runtime, sd.Profile, sd.Temp} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return ScratchDir{}, fmt.Errorf("create session directory %s: %w", dir, err)
		}
	}

	// MkdirAll permissions pass through the umask; set the bits explicitly.
	if err := os.Chmod(sd.Runtime, 0700); err != nil {
		return ScratchDir{}, fmt.Errorf("restrict runtime directory: %w", err)
	}
	for _, dir := range []string{sd.Sockets, sd.Profile, sd.Temp} {
		if err := os.Chmod(dir, 0755); err != nil {
			return ScratchDir{}, fmt.Errorf("chmod %s: %w", dir, err)
		}
	}

	return sd, nil
}

// Destroy removes a scratch tree. A missing directory is success; a path
// outside the managed root is refused.
func (d *Dirs) Destroy(dir string) error {
	if dir == "" {
		return nil
	}
	cleaned := filepath.Clean(dir)
	root := filepath.Clean(d.Root)
	if cleaned == root || !strings.HasPrefix(cleaned, root+string(filepath.Separator)) {
		return fmt.Errorf("refusing to remove %s: outside session root %s", cleaned, root)
	}
	if err := os.RemoveAll(cleaned); err != nil {
		return fmt.Errorf("remove session directory %s: %w", cleaned, err)
	}
	return nil
}

// Orphans lists session-<port> directories under the root that none of the
// given ports own. Used by cleanup when directory sweeping is requested.
func (d *Dirs) Orphans(activePorts map[int]bool) ([]string, error) {
	entries, err := os.ReadDir(d.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var orphans []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var port int
		if _, err := fmt.Sscanf(e.Name(), "session-%d", &port); err != nil {
			continue
		}
		if !activePorts[port] {
			orphans = append(orphans, filepath.Join(d.Root, e.Name()))
		}
	}
	return orphans, nil
}
