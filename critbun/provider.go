// Package critbun provides a Bun adapter for criteria repositories. Criteria
// translate into schema.QueryAppender conditions applied to a *bun.SelectQuery.
package critbun

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/lemmego/criteria"
)

// =====================================
// Provider Implementation
// =====================================

// Provider implements criteria.Provider using Bun
type Provider struct {
	db      *bun.DB
	config  criteria.Config
	dialect string
}

var _ criteria.Provider = (*Provider)(nil)

// NewProvider opens a Bun database for config.Driver (postgres, mysql or sqlite3).
func NewProvider(config criteria.Config) (*Provider, error) {
	dialectName, err := criteria.Dialect(config.Driver)
	if err != nil {
		return nil, err
	}

	var sqlDB *sql.DB
	switch dialectName {
	case criteria.DialectPostgres:
		sqlDB = createPostgresConnection(config)
	case criteria.DialectMySQL:
		sqlDB, err = createMySQLConnection(config)
	case criteria.DialectSQLite:
		sqlDB, err = createSQLiteConnection(config)
	default:
		return nil, criteria.NewError(criteria.ErrorTypeUnsupported,
			fmt.Sprintf("unsupported driver for bun: %s", config.Driver))
	}
	if err != nil {
		return nil, criteria.NewErrorWithCause(criteria.ErrorTypeConnection, "failed to connect to database", err)
	}

	configurePool(sqlDB, config, dialectName)

	var bunDB *bun.DB
	switch dialectName {
	case criteria.DialectPostgres:
		bunDB = bun.NewDB(sqlDB, pgdialect.New())
	case criteria.DialectMySQL:
		bunDB = bun.NewDB(sqlDB, mysqldialect.New())
	case criteria.DialectSQLite:
		bunDB = bun.NewDB(sqlDB, sqlitedialect.New())
	}

	if logLevel := queryLogLevel(config); logLevel != "" && logLevel != "silent" {
		bunDB.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(logLevel == "debug"),
		))
	}

	return &Provider{db: bunDB, config: config, dialect: dialectName}, nil
}

// DB returns the underlying Bun handle, to be passed to NewRepository.
func (p *Provider) DB() *bun.DB {
	return p.db
}

// Health checks the database connection health
func (p *Provider) Health(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return criteria.NewErrorWithCause(criteria.ErrorTypeConnection, "ping failed", err)
	}
	return nil
}

// Close closes the database connection
func (p *Provider) Close() error {
	return p.db.Close()
}

// ProviderInfo returns information about this provider
func (p *Provider) ProviderInfo() criteria.ProviderInfo {
	return criteria.ProviderInfo{
		Name:         "bun",
		Version:      "1.0.0",
		DatabaseType: criteria.DatabaseTypeSQL,
		Dialect:      p.dialect,
	}
}

// =====================================
// Connection Helpers
// =====================================

// queryLogLevel prefers the "bun" option map over the general log level, so
// query logging can be silenced independently.
func queryLogLevel(config criteria.Config) string {
	if opts := config.Option("bun"); opts != nil {
		if level, ok := opts["log_level"].(string); ok {
			return strings.ToLower(level)
		}
	}
	if strings.EqualFold(config.Log.Level, "debug") {
		return "debug"
	}
	return ""
}

func configurePool(sqlDB *sql.DB, config criteria.Config, dialectName string) {
	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	} else if dialectName == criteria.DialectSQLite && strings.Contains(criteria.SQLiteDSN(config), ":memory:") {
		// every connection to :memory: is a separate database
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
}

// createPostgresConnection creates a PostgreSQL connection through pgdriver
func createPostgresConnection(config criteria.Config) *sql.DB {
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(criteria.PostgresURL(config))))
}

// createMySQLConnection creates a MySQL connection
func createMySQLConnection(config criteria.Config) (*sql.DB, error) {
	if config.ConnectionURL != "" {
		return sql.Open("mysql", config.ConnectionURL)
	}

	mysqlConfig := mysql.NewConfig()
	mysqlConfig.User = config.Username
	mysqlConfig.Passwd = config.Password
	mysqlConfig.Net = "tcp"
	mysqlConfig.Addr = fmt.Sprintf("%s:%d", config.Host, config.Port)
	mysqlConfig.DBName = config.Database
	mysqlConfig.ParseTime = true

	return sql.Open("mysql", mysqlConfig.FormatDSN())
}

// createSQLiteConnection creates a SQLite connection
func createSQLiteConnection(config criteria.Config) (*sql.DB, error) {
	return sql.Open("sqlite3", criteria.SQLiteDSN(config))
}
