package db

import (
	"log/slog"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lojf/xraid/internal/models"
)

var conn *gorm.DB

// DSN appends the pragmas every connection needs to a sqlite file path.
func DSN(path string) string {
	return path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
}

// Init opens (creating if needed) the sqlite database at path.
func Init(path string) error {
	var err error
	conn, err = gorm.Open(sqlite.Open(DSN(path)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return err
	}

	// SQLite works best with a single writer; cap the pool accordingly.
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := conn.AutoMigrate(
		&models.TelegramUser{},
		&models.Sticker{},
		&models.ShareLink{},
	); err != nil {
		return err
	}

	// Share history is read per user, newest first.
	if err := conn.Exec("CREATE INDEX IF NOT EXISTS idx_share_user_created ON share_links(telegram_user_id, created_at)").Error; err != nil {
		return err
	}

	slog.Info("database ready", "driver", "sqlite", "path", path)
	return nil
}

func Conn() *gorm.DB {
	return conn
}
