package database

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) func() {
	t.Helper()
	var err error
	DB, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test DB: %v", err)
	}
	if err := DB.AutoMigrate(&SessionRecord{}, &Setting{}); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	if err := seedDefaults(); err != nil {
		t.Fatalf("seed defaults: %v", err)
	}
	return func() {
		sqlDB, _ := DB.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	}
}

func TestSeededSettings(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	v, err := GetSetting("xpra_quality")
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if v != "100" {
		t.Errorf("xpra_quality = %q, want 100", v)
	}
}

func TestSetSettingOverrides(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	if err := SetSetting("xpra_quality", "80"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	v, _ := GetSetting("xpra_quality")
	if v != "80" {
		t.Errorf("xpra_quality = %q, want 80", v)
	}
}

func TestSessionRecordLifecycle(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	rec := &SessionRecord{
		ID:         uuid.NewString(),
		Port:       45021,
		PID:        4242,
		Status:     "starting",
		ScratchDir: "/tmp/session-45021",
	}
	if err := RecordLaunch(rec); err != nil {
		t.Fatalf("RecordLaunch: %v", err)
	}
	if err := MarkReady(rec.ID); err != nil {
		t.Fatalf("MarkReady: %v", err)
	}

	active, err := ActiveRecords()
	if err != nil {
		t.Fatalf("ActiveRecords: %v", err)
	}
	if len(active) != 1 || active[0].Status != "ready" {
		t.Fatalf("expected 1 ready record, got %+v", active)
	}

	if err := RecordTermination(45021, "stopped by test"); err != nil {
		t.Fatalf("RecordTermination: %v", err)
	}
	active, _ = ActiveRecords()
	if len(active) != 0 {
		t.Errorf("expected no active records after termination, got %d", len(active))
	}

	var stored SessionRecord
	if err := DB.First(&stored, "id = ?", rec.ID).Error; err != nil {
		t.Fatalf("reload record: %v", err)
	}
	if stored.EndedAt == nil || stored.ExitNote != "stopped by test" {
		t.Errorf("termination not recorded: %+v", stored)
	}
}

func TestRecordTerminationMissingRowIsNoError(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	if err := RecordTermination(59999, "never launched"); err != nil {
		t.Errorf("RecordTermination on missing row: %v", err)
	}
}
