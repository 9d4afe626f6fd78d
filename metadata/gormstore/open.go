package gormstore

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/gostratum/blobx"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Dialector returns the gorm dialector for the configured driver.
func Dialector(cfg blobx.MetadataConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case blobx.DriverMySQL:
		return mysql.Open(cfg.DSN), nil
	case blobx.DriverPostgres:
		return postgres.Open(cfg.DSN), nil
	case blobx.DriverSQLite:
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("%w: unsupported metadata driver %q", blobx.ErrInvalidConfig, cfg.Driver)
	}
}

// Open connects to the configured database, applies pool settings and
// migrates the schema.
func Open(cfg blobx.MetadataConfig) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("gormstore: open %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gormstore: get sql db: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := Migrate(db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return db, nil
}
