// Package critsql runs criteria against database/sql through squirrel. Leaf
// translators return squirrel.Sqlizer conditions and may extend the threaded
// squirrel.SelectBuilder with joins. Rows are scanned with scany.
package critsql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/lemmego/criteria"
)

// DB is a database/sql handle together with its dialect. It implements
// criteria.Provider.
type DB struct {
	*sql.DB
	driver  string
	dialect string
}

var _ criteria.Provider = (*DB)(nil)

// Open connects to config.Driver: sqlite3, postgres (lib/pq), pgx (pgx
// stdlib) or mysql.
func Open(config criteria.Config) (*DB, error) {
	dialectName, err := criteria.Dialect(config.Driver)
	if err != nil {
		return nil, err
	}

	var driver, dsn string
	switch dialectName {
	case criteria.DialectSQLite:
		driver, dsn = "sqlite3", criteria.SQLiteDSN(config)
	case criteria.DialectPostgres:
		if strings.EqualFold(config.Driver, "pgx") {
			driver, dsn = "pgx", criteria.PostgresURL(config)
		} else {
			driver, dsn = "postgres", criteria.PostgresDSN(config)
		}
	case criteria.DialectMySQL:
		driver, dsn = "mysql", criteria.MySQLDSN(config)
	default:
		return nil, criteria.NewError(criteria.ErrorTypeUnsupported,
			fmt.Sprintf("unsupported driver for critsql: %s", config.Driver))
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, criteria.NewErrorWithCause(criteria.ErrorTypeConnection, "failed to open database", err)
	}

	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	} else if dialectName == criteria.DialectSQLite && strings.Contains(dsn, ":memory:") {
		sqlDB.SetMaxOpenConns(1)
	}
	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	if config.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}

	return &DB{DB: sqlDB, driver: driver, dialect: dialectName}, nil
}

// Dialect returns the normalized dialect name.
func (db *DB) Dialect() string {
	return db.dialect
}

// Builder returns a squirrel builder with the placeholder format of the dialect.
func (db *DB) Builder() squirrel.StatementBuilderType {
	if db.dialect == criteria.DialectPostgres {
		return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	}
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)
}

// Health pings the database.
func (db *DB) Health(ctx context.Context) error {
	if err := db.PingContext(ctx); err != nil {
		return criteria.NewErrorWithCause(criteria.ErrorTypeConnection, "ping failed", err)
	}
	return nil
}

// ProviderInfo returns information about this provider
func (db *DB) ProviderInfo() criteria.ProviderInfo {
	return criteria.ProviderInfo{
		Name:         "sql",
		Version:      "1.0.0",
		DatabaseType: criteria.DatabaseTypeSQL,
		Dialect:      db.dialect,
	}
}
