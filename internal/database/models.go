package database

import "time"

// SessionRecord is the persistent audit row for one launched session. The
// in-memory registry owns live state; these rows survive restarts for
// operational history.
type SessionRecord struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	Port       int        `gorm:"not null;index" json:"port"`
	PID        int        `gorm:"column:pid;not null" json:"pid"`
	Status     string     `gorm:"not null;default:starting" json:"status"`
	ScratchDir string     `json:"scratch_dir"`
	StartedAt  time.Time  `gorm:"autoCreateTime" json:"started_at"`
	EndedAt    *time.Time `json:"ended_at"`
	ExitNote   string     `json:"exit_note"`
}

type Setting struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `gorm:"not null" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
