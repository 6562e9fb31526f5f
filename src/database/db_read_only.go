package database

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ordersaga/src/model"
)

// ReadOnlyDB serves order lookups from a replica. The database user for this
// connection should have SELECT-only permissions.
var ReadOnlyDB *gorm.DB

// InitReadOnlyDB connects the replica when DATABASE_URL_READONLY is set. Without it
// ReadDB falls back to MainDB. No migrations run here.
func InitReadOnlyDB() error {
	config := GetConfig()
	if config.DatabaseURLReadOnly == "" {
		logrus.Info("[ReadOnlyDB] not configured, reads use MainDB")
		return nil
	}

	db, err := gorm.Open(postgres.Open(config.DatabaseURLReadOnly),
		&gorm.Config{
			PrepareStmt:    true,
			TranslateError: true,
			Logger:         logger.Default.LogMode(logger.LogLevel(config.GormLogLevel)),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to connect to read-only database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB from ReadOnlyDB: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping ReadOnlyDB: %w", err)
	}

	var count int64
	if err := db.Model(&model.Order{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to access orders on ReadOnlyDB: %w", err)
	}
	logrus.WithFields(map[string]interface{}{"orders": count}).Info("[ReadOnlyDB] orders table reachable")

	ReadOnlyDB = db
	return nil
}

// ReadDB returns the replica when configured, MainDB otherwise.
func ReadDB() *gorm.DB {
	if ReadOnlyDB != nil {
		return ReadOnlyDB
	}
	return MainDB
}
