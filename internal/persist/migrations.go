package persist

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

var gooseOnce sync.Once

// gooseLogger routes goose output through zap at debug level.
type gooseLogger struct{ log *zap.SugaredLogger }

func (l gooseLogger) Printf(format string, v ...any) {
	l.log.Debugf(strings.TrimSuffix(format, "\n"), v...)
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.log.Fatalf(strings.TrimSuffix(format, "\n"), v...)
}

// withGoose hands fn a database/sql view of the pool with goose configured
// for the embedded snapshot schema.
func (db *DB) withGoose(fn func(*sql.DB) error) error {
	var setupErr error
	gooseOnce.Do(func() {
		goose.SetBaseFS(migrations)
		setupErr = goose.SetDialect("postgres")
	})
	if setupErr != nil {
		return fmt.Errorf("set dialect: %w", setupErr)
	}
	goose.SetLogger(gooseLogger{log: db.log.Sugar()})

	sqlDB := stdlib.OpenDBFromPool(db.Pool)
	defer sqlDB.Close()
	return fn(sqlDB)
}

// Migrate applies every pending snapshot-schema migration and returns the
// resulting schema version.
func (db *DB) Migrate(ctx context.Context) (int64, error) {
	var version int64
	err := db.withGoose(func(sqlDB *sql.DB) error {
		if err := goose.UpContext(ctx, sqlDB, migrationsDir); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		v, err := goose.GetDBVersionContext(ctx, sqlDB)
		if err != nil {
			return fmt.Errorf("schema version: %w", err)
		}
		version = v
		return nil
	})
	return version, err
}

// SchemaVersion reports the applied schema version without migrating.
func (db *DB) SchemaVersion(ctx context.Context) (int64, error) {
	var version int64
	err := db.withGoose(func(sqlDB *sql.DB) error {
		v, err := goose.GetDBVersionContext(ctx, sqlDB)
		if err != nil {
			return fmt.Errorf("schema version: %w", err)
		}
		version = v
		return nil
	})
	return version, err
}

// Rollback migrates down to version. Rolling back to 0 drops every snapshot
// table.
func (db *DB) Rollback(ctx context.Context, version int64) error {
	return db.withGoose(func(sqlDB *sql.DB) error {
		if err := goose.DownToContext(ctx, sqlDB, migrationsDir, version); err != nil {
			return fmt.Errorf("roll back to %d: %w", version, err)
		}
		return nil
	})
}
