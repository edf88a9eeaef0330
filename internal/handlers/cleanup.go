package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gluk-w/firedesk/internal/procutil"
	"github.com/gluk-w/firedesk/internal/session"
)

type cleanupRequest struct {
	// ProcessID is either a PID (number) or the string "all".
	ProcessID      json.RawMessage `json:"process_id"`
	Nuclear        bool            `json:"nuclear"`
	ConfirmNuclear bool            `json:"confirm_nuclear"`
	CleanupDirs    bool            `json:"cleanup_dirs"`
}

// Cleanup terminates one session by PID or all of them. Nuclear scope — every
// backend-named process on the host — requires both nuclear and
// confirm_nuclear in the same request.
func (a *API) Cleanup(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.ProcessID) == 0 {
		writeError(w, http.StatusBadRequest, "process_id is required (a PID or \"all\")")
		return
	}

	opts := session.Options{
		Nuclear:        req.Nuclear,
		ConfirmNuclear: req.ConfirmNuclear,
		CleanupDirs:    req.CleanupDirs,
	}

	var all string
	if err := json.Unmarshal(req.ProcessID, &all); err == nil {
		if all != "all" {
			writeError(w, http.StatusBadRequest, "process_id must be a PID or \"all\"")
			return
		}
		res, err := a.Terminator.CleanupAll(opts)
		if err != nil {
			writeCleanupError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":             "success",
			"cleanup_type":       scopeName(res.Scope),
			"processes_affected": res.ProcessesAffected,
			"active_sessions":    res.ActiveSessions,
		})
		return
	}

	var pid int
	if err := json.Unmarshal(req.ProcessID, &pid); err != nil || pid <= 0 {
		writeError(w, http.StatusBadRequest, "process_id must be a PID or \"all\"")
		return
	}

	if err := a.Terminator.TerminateByPID(pid); err != nil {
		writeCleanupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "success",
		"cleanup_type":    scopeName(session.ResolveScope(opts)),
		"process_id":      pid,
		"active_sessions": a.Registry.Len(),
	})
}

// writeCleanupError distinguishes a process we are not allowed to signal from
// everything else.
func writeCleanupError(w http.ResponseWriter, err error) {
	if errors.Is(err, procutil.ErrPermissionDenied) {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func scopeName(s session.Scope) string {
	if s == session.ScopeNuclear {
		return "nuclear"
	}
	return "standard"
}
