package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gluk-w/firedesk/internal/database"
	"github.com/gluk-w/firedesk/internal/session"
)

// LaunchSession starts a new isolated Firefox session and reports its port.
func (a *API) LaunchSession(w http.ResponseWriter, r *http.Request) {
	sess, err := a.Launcher.Launch(r.Context())
	if err != nil {
		var missing *session.DependencyMissingError
		if errors.As(err, &missing) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"detail":  missing.Error(),
				"missing": missing.Missing,
			})
			return
		}
		var spawn *session.ProcessSpawnError
		if errors.As(err, &spawn) {
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
				"detail":    spawn.Error(),
				"exit_code": spawn.ExitCode,
				"stdout":    spawn.Stdout,
				"stderr":    spawn.Stderr,
			})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	proxyPath := fmt.Sprintf("/proxy/%d/", sess.Port)
	if a.Registrar != nil {
		if err := a.Registrar.Register(r.Context(), proxyPath, "127.0.0.1", sess.Port); err != nil {
			// The relay endpoint still reaches the session.
			log.Printf("WARNING: route registration for port %d: %v", sess.Port, err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "success",
		"port":       sess.Port,
		"process_id": sess.PID,
		"proxy_path": proxyPath,
	})
}

// SessionsStatus reports the aggregate state of all managed sessions.
func (a *API) SessionsStatus(w http.ResponseWriter, r *http.Request) {
	sessions := a.Registry.Snapshot()

	status := "stopped"
	if len(sessions) > 0 {
		status = "running"
	}

	active := make([]map[string]interface{}, 0, len(sessions))
	for _, sess := range sessions {
		active = append(active, map[string]interface{}{
			"port":       sess.Port,
			"process_id": sess.PID,
			"state":      string(sess.State()),
			"created_at": sess.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          status,
		"active_sessions": active,
	})
}

// SessionsAlive answers HEAD probes: 200 when any session is active, 503
// otherwise. No body either way.
func (a *API) SessionsAlive(w http.ResponseWriter, r *http.Request) {
	if a.Registry.Len() > 0 {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
}

// SessionState reports the state of the session on one port.
func (a *API) SessionState(w http.ResponseWriter, r *http.Request) {
	port, err := strconv.Atoi(chi.URLParam(r, "port"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid port")
		return
	}

	sess, ok := a.Registry.Lookup(port)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"port":  port,
			"state": "not_found",
		})
		return
	}

	state := string(sess.State())
	if sess.State() == session.StateTerminated {
		state = "stopped"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"port":       sess.Port,
		"process_id": sess.PID,
		"state":      state,
	})
}

// StopAllSessions terminates every managed session.
func (a *API) StopAllSessions(w http.ResponseWriter, r *http.Request) {
	res, err := a.Terminator.CleanupAll(session.Options{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":             "success",
		"processes_affected": res.ProcessesAffected,
		"active_sessions":    res.ActiveSessions,
	})
}

// SessionHistory lists audit records for sessions that have not been marked
// terminated. The registry, not the database, is authoritative for live
// state; this is the persisted trail.
func (a *API) SessionHistory(w http.ResponseWriter, r *http.Request) {
	if database.DB == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": []database.SessionRecord{}})
		return
	}
	recs, err := database.ActiveRecords()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if recs == nil {
		recs = []database.SessionRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": recs})
}

// Dependencies reports which host executables the launcher needs and whether
// they are installed.
func (a *API) Dependencies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, session.CheckDependencies())
}

// Reap runs one stale-session sweep on demand.
func (a *API) Reap(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reaped":          a.Reaper.Sweep(),
		"active_sessions": a.Registry.Len(),
	})
}
