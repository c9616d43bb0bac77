// Package critgorm provides a GORM adapter for criteria repositories. Criteria
// translate into clause.Expression conditions on a *gorm.DB.
package critgorm

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"github.com/lemmego/criteria"
)

// =====================================
// Provider Implementation
// =====================================

// Provider implements criteria.Provider using GORM
type Provider struct {
	db      *gorm.DB
	config  criteria.Config
	dialect string
}

var _ criteria.Provider = (*Provider)(nil)

// NewProvider opens a GORM database for config.Driver (postgres, mysql,
// sqlite3 or sqlserver).
func NewProvider(config criteria.Config) (*Provider, error) {
	dialectName, err := criteria.Dialect(config.Driver)
	if err != nil {
		return nil, err
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logMode(config)),
		NamingStrategy: schema.NamingStrategy{
			SingularTable: false,
		},
	}
	if opts := config.Option("gorm"); opts != nil {
		if singularTable, ok := opts["singular_table"].(bool); ok {
			gormConfig.NamingStrategy = schema.NamingStrategy{
				SingularTable: singularTable,
			}
		}
	}

	var dialector gorm.Dialector
	switch dialectName {
	case criteria.DialectPostgres:
		dialector = postgres.Open(criteria.PostgresDSN(config))
	case criteria.DialectMySQL:
		dialector = mysql.Open(criteria.MySQLDSN(config))
	case criteria.DialectSQLite:
		dialector = sqlite.Open(criteria.SQLiteDSN(config))
	case criteria.DialectMsSQL:
		dialector = sqlserver.Open(criteria.SQLServerDSN(config))
	default:
		return nil, criteria.NewError(criteria.ErrorTypeUnsupported,
			fmt.Sprintf("unsupported driver for gorm: %s", config.Driver))
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, criteria.NewErrorWithCause(criteria.ErrorTypeConnection, "failed to connect to database", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, criteria.NewErrorWithCause(criteria.ErrorTypeConnection, "failed to get underlying sql.DB", err)
	}

	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	} else if dialectName == criteria.DialectSQLite && strings.Contains(criteria.SQLiteDSN(config), ":memory:") {
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

	return &Provider{db: db, config: config, dialect: dialectName}, nil
}

// logMode maps the configured level to a GORM log mode. A "gorm" log_level
// option takes precedence over Log.Level.
func logMode(config criteria.Config) logger.LogLevel {
	level := config.Log.Level
	if opts := config.Option("gorm"); opts != nil {
		if l, ok := opts["log_level"].(string); ok {
			level = l
		}
	}

	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "debug", "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// DB returns the underlying GORM handle, to be passed to NewRepository.
func (p *Provider) DB() *gorm.DB {
	return p.db
}

// Health checks the database connection health
func (p *Provider) Health(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return criteria.NewErrorWithCause(criteria.ErrorTypeConnection, "failed to get underlying sql.DB", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return criteria.NewErrorWithCause(criteria.ErrorTypeConnection, "ping failed", err)
	}
	return nil
}

// Close closes the database connection
func (p *Provider) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ProviderInfo returns information about this provider
func (p *Provider) ProviderInfo() criteria.ProviderInfo {
	return criteria.ProviderInfo{
		Name:         "gorm",
		Version:      "1.0.0",
		DatabaseType: criteria.DatabaseTypeSQL,
		Dialect:      p.dialect,
	}
}
