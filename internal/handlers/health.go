package handlers

import (
	"net/http"

	"github.com/gluk-w/firedesk/internal/database"
)

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	dbStatus := "disconnected"
	if database.DB != nil {
		sqlDB, err := database.DB.DB()
		if err == nil {
			if err := sqlDB.Ping(); err == nil {
				dbStatus = "connected"
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "healthy",
		"database":        dbStatus,
		"active_sessions": a.Registry.Len(),
	})
}
