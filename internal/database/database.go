package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gluk-w/firedesk/internal/config"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func Init() error {
	dbPath := config.Cfg.DatabasePath
	dbDir := filepath.Dir(dbPath)
	if dbDir != "" {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return fmt.Errorf("create db directory: %w", err)
		}
	}

	var err error
	DB, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}

	if err := DB.AutoMigrate(&SessionRecord{}, &Setting{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	if err := seedDefaults(); err != nil {
		return fmt.Errorf("seed defaults: %w", err)
	}

	return nil
}

func seedDefaults() error {
	defaults := map[string]string{
		"xpra_quality":  "100",
		"xpra_compress": "none",
		"xpra_dpi":      "96",
	}

	for key, value := range defaults {
		var count int64
		DB.Model(&Setting{}).Where("key = ?", key).Count(&count)
		if count == 0 {
			if err := DB.Create(&Setting{Key: key, Value: value}).Error; err != nil {
				return fmt.Errorf("seed setting %s: %w", key, err)
			}
		}
	}

	return nil
}

func Close() error {
	if DB != nil {
		sqlDB, err := DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

func GetSetting(key string) (string, error) {
	var s Setting
	if err := DB.Where("key = ?", key).First(&s).Error; err != nil {
		return "", err
	}
	return s.Value, nil
}

func SetSetting(key, value string) error {
	return DB.Where("key = ?", key).Assign(Setting{Value: value}).FirstOrCreate(&Setting{Key: key}).Error
}

// Session audit helpers

func RecordLaunch(rec *SessionRecord) error {
	return DB.Create(rec).Error
}

// RecordTermination marks every non-terminated audit row for port as
// terminated. Missing rows are not an error; the registry, not the database,
// is authoritative for live state.
func RecordTermination(port int, note string) error {
	now := time.Now().UTC()
	return DB.Model(&SessionRecord{}).
		Where("port = ? AND status <> ?", port, "terminated").
		Updates(map[string]interface{}{
			"status":    "terminated",
			"ended_at":  &now,
			"exit_note": note,
		}).Error
}

func MarkReady(id string) error {
	return DB.Model(&SessionRecord{}).Where("id = ?", id).Update("status", "ready").Error
}

func ActiveRecords() ([]SessionRecord, error) {
	var recs []SessionRecord
	if err := DB.Where("status <> ?", "terminated").Order("started_at").Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}
