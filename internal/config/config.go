package config

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Settings struct {
	// SessionRoot holds one scratch directory per active session,
	// named session-<port>. "~" expands to the current user's home.
	SessionRoot  string `envconfig:"SESSION_ROOT" default:"~/.firefox-launcher/sessions"`
	DatabasePath string `envconfig:"DATABASE_PATH" default:"~/.firefox-launcher/firedesk.db"`
	LogPath      string `envconfig:"LOG_PATH" default:""`

	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8000"`
	BindHost   string `envconfig:"BIND_HOST" default:"0.0.0.0"`

	// Xpra tuning fallbacks. The settings table overrides these at launch time.
	XpraQuality  string `envconfig:"QUALITY" default:"100"`
	XpraCompress string `envconfig:"COMPRESS" default:"none"`
	XpraDPI      string `envconfig:"DPI" default:"96"`

	// StartupChecks is the post-spawn liveness polling schedule, as a
	// comma-separated duration list.
	StartupChecks    string        `envconfig:"STARTUP_CHECKS" default:"100ms,200ms,200ms"`
	ProbeTimeout     time.Duration `envconfig:"PROBE_TIMEOUT" default:"100ms"`
	TerminateTimeout time.Duration `envconfig:"TERMINATE_TIMEOUT" default:"3s"`

	ReaperSchedule      string        `envconfig:"REAPER_SCHEDULE" default:"@every 1m"`
	RelayConnectTimeout time.Duration `envconfig:"RELAY_CONNECT_TIMEOUT" default:"10s"`

	// RegistrarURL, when set, receives a route registration callout after each
	// successful launch. Registration failure is non-fatal.
	RegistrarURL string `envconfig:"REGISTRAR_URL" default:""`

	// DevLauncherPath overrides the firefox-xstartup wrapper lookup.
	DevLauncherPath string `envconfig:"DEV_LAUNCHER_PATH" default:""`
}

var Cfg Settings

func Load() {
	if err := envconfig.Process("FIREDESK", &Cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	Cfg.SessionRoot = expandHome(Cfg.SessionRoot)
	Cfg.DatabasePath = expandHome(Cfg.DatabasePath)
	if Cfg.LogPath != "" {
		Cfg.LogPath = expandHome(Cfg.LogPath)
	}
}

// StartupSchedule parses the StartupChecks duration list. Invalid entries are
// skipped with a warning so a misconfigured schedule never blocks launches.
func (s Settings) StartupSchedule() []time.Duration {
	var out []time.Duration
	for _, part := range strings.Split(s.StartupChecks, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := time.ParseDuration(part)
		if err != nil {
			log.Printf("WARNING: invalid startup check interval %q: %v", part, err)
			continue
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		out = []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 200 * time.Millisecond}
	}
	return out
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
