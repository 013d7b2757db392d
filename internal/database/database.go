package database

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"storeops/internal/config"
	"storeops/internal/models"
)

// Open connects to the database selected by cfg.Type with GORM.
// postgres-sql is served by OpenSQL instead.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case "mysql":
		dialector = mysql.Open(cfg.MySQL.DSN())
	case "postgres":
		dialector = postgres.New(postgres.Config{
			DSN:                  cfg.Postgres.DSN(),
			PreferSimpleProtocol: true,
		})
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("database: unsupported gorm type %q", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(cfg.GormLogLevel()),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Type == "sqlite" {
		// one writer keeps sqlite from returning SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(cfg.Pool.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.Pool.MaxOpenConns)
		sqlDB.SetConnMaxLifetime(cfg.Pool.ConnMaxLifetime)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

// Close closes the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InitSchema creates the store tables using GORM AutoMigrate
func InitSchema(db *gorm.DB) error {
	tables := append([]interface{}{&models.Store{}, &models.StoreDeletionLog{}, &models.StoreDeletionJob{}}, models.StoreRecords()...)
	return db.AutoMigrate(tables...)
}
