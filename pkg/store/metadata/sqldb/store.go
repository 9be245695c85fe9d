// Package sqldb implements the metadata store on a relational database via
// gorm. Supported dialects are sqlite, postgres and mysql.
package sqldb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Dialect names accepted by SQLMetadataStoreConfig.Dialect.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
)

// SQLMetadataStoreConfig contains configuration for the relational store.
type SQLMetadataStoreConfig struct {
	// Dialect selects the driver: sqlite, postgres or mysql
	Dialect string `mapstructure:"dialect"`

	// DSN is the driver-specific data source name.
	// sqlite:   "/var/lib/dittodrive/meta.db" or "file::memory:?cache=shared"
	// postgres: "host=... user=... dbname=... sslmode=disable"
	// mysql:    "user:pass@tcp(host:3306)/dittodrive?parseTime=true"
	DSN string `mapstructure:"dsn"`

	// MaxOpenConns limits the connection pool (ignored for sqlite, which
	// always uses a single connection)
	MaxOpenConns int `mapstructure:"max_open_conns"`

	// MaxIdleConns limits idle pooled connections
	MaxIdleConns int `mapstructure:"max_idle_conns"`

	// ConnMaxLifetime recycles pooled connections (0 = forever)
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`

	// SkipMigrate disables schema auto-migration on open
	SkipMigrate bool `mapstructure:"skip_migrate"`
}

// SQLMetadataStore implements metadata.MetadataStore on gorm.
//
// Concurrency model:
// Every Update runs in a database transaction. On postgres and mysql, single
// record reads inside Update use SELECT ... FOR UPDATE, so the user row
// touched by a quota reservation and the node row touched by a move or
// delete stay locked until commit. SQLite has no row locks; the store pins
// the pool to a single connection, which serializes transactions instead.
//
// Cascades are applied explicitly inside the transaction rather than through
// foreign-key actions, so behavior is identical across dialects.
type SQLMetadataStore struct {
	db       *gorm.DB
	dialect  string
	lockRows bool
}

// NewSQLMetadataStore opens the database and migrates the schema.
func NewSQLMetadataStore(ctx context.Context, config SQLMetadataStoreConfig) (*SQLMetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if config.DSN == "" {
		return nil, fmt.Errorf("sql dsn is required")
	}

	var dialector gorm.Dialector
	switch config.Dialect {
	case DialectSQLite:
		dialector = sqlite.Open(config.DSN)
	case DialectPostgres:
		dialector = postgres.Open(config.DSN)
	case DialectMySQL:
		dialector = mysql.Open(config.DSN)
	default:
		return nil, fmt.Errorf("unknown sql dialect: %q", config.Dialect)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", config.Dialect, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	if config.Dialect == DialectSQLite {
		sqlDB.SetMaxOpenConns(1)
	} else if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	if !config.SkipMigrate {
		if err := db.WithContext(ctx).AutoMigrate(allModels()...); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to migrate schema: %w", err)
		}
	}

	logger.Debug("Opened %s metadata store", config.Dialect)

	return &SQLMetadataStore{
		db:       db,
		dialect:  config.Dialect,
		lockRows: config.Dialect != DialectSQLite,
	}, nil
}

// View implements metadata.MetadataStore.
func (s *SQLMetadataStore) View(ctx context.Context, fn func(tx metadata.Transaction) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&sqlTx{db: gtx, writable: false})
	})
}

// Update implements metadata.MetadataStore.
func (s *SQLMetadataStore) Update(ctx context.Context, fn func(tx metadata.Transaction) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&sqlTx{db: gtx, writable: true, lockRows: s.lockRows})
	})
	return translateError(err)
}

// Healthcheck implements metadata.MetadataStore.
func (s *SQLMetadataStore) Healthcheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to access connection pool: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%s ping failed: %w", s.dialect, err)
	}
	return nil
}

// Close implements metadata.MetadataStore.
func (s *SQLMetadataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to access connection pool: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close %s database: %w", s.dialect, err)
	}
	return nil
}

// translateError maps a uniqueness violation that slipped past the explicit
// pre-checks (a concurrent insert) to ErrAlreadyExists.
func translateError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return metadata.NewAlreadyExistsError("record", err.Error())
	}
	return err
}
