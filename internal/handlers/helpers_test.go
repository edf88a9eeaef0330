package handlers

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gluk-w/firedesk/internal/procutil"
	"github.com/gluk-w/firedesk/internal/session"
)

// newTestAPI wires the full handler stack against a launcher whose backend is
// a plain sleep process, so lifecycle endpoints are exercised without Xpra
// installed. Leftover processes are killed on cleanup.
func newTestAPI(t *testing.T) (*API, *session.Registry) {
	t.Helper()

	reg := session.NewRegistry()
	dirs := session.NewDirs(t.TempDir())
	sup := &session.Supervisor{
		ProbeHost:    "127.0.0.1",
		ProbeTimeout: 20 * time.Millisecond,
		Schedule:     []time.Duration{5 * time.Millisecond, 5 * time.Millisecond},
	}
	l := session.NewLauncher(reg, dirs, sup, session.LauncherConfig{BindHost: "127.0.0.1"})
	l.BuildSpec = func(port int, scratch session.ScratchDir) (session.LaunchSpec, error) {
		return session.LaunchSpec{Argv: []string{"sleep", "60"}, Port: port}, nil
	}

	api := &API{
		Registry:            reg,
		Launcher:            l,
		Terminator:          session.NewTerminator(reg, dirs, 3*time.Second),
		Reaper:              session.NewReaper(reg, dirs),
		RelayConnectTimeout: 2 * time.Second,
	}

	t.Cleanup(func() {
		for _, sess := range reg.Snapshot() {
			procutil.TerminateTree(sess.PID, time.Second)
		}
	})
	return api, reg
}

// newTestServer exposes the API over real TCP, which WebSocket upgrades need.
func newTestServer(t *testing.T) (*httptest.Server, *API, *session.Registry) {
	t.Helper()
	api, reg := newTestAPI(t)
	ts := httptest.NewServer(api.Routes())
	t.Cleanup(ts.Close)
	return ts, api, reg
}
