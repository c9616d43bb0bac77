package criteria

import (
	"fmt"
	"strings"
)

// Dialect constants
const (
	DialectSQLite   = "sqlite"
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
	DialectMsSQL    = "mssql"
)

// SupportedDialects is a list of all supported SQL dialects
var SupportedDialects = []string{
	DialectSQLite,
	DialectMySQL,
	DialectPostgres,
	DialectMsSQL,
}

// Dialect normalizes a driver name from Config.Driver to one of the dialect
// constants.
func Dialect(driver string) (string, error) {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "mysql":
		return DialectMySQL, nil
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	case "sqlserver", "mssql":
		return DialectMsSQL, nil
	default:
		return "", NewError(ErrorTypeUnsupported, fmt.Sprintf("unsupported driver: %s", driver))
	}
}

// IsDialectSupported checks if the given dialect is supported
func IsDialectSupported(dialect string) bool {
	for _, d := range SupportedDialects {
		if d == dialect {
			return true
		}
	}
	return false
}

// PostgresDSN builds a key/value PostgreSQL DSN, unless ConnectionURL is set.
func PostgresDSN(config Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		config.Host, config.Port, config.Username, config.Password, config.Database)

	if config.SSL.Enabled {
		dsn += " sslmode=" + config.SSL.Mode
		if config.SSL.CertFile != "" {
			dsn += " sslcert=" + config.SSL.CertFile
		}
		if config.SSL.KeyFile != "" {
			dsn += " sslkey=" + config.SSL.KeyFile
		}
		if config.SSL.CAFile != "" {
			dsn += " sslrootcert=" + config.SSL.CAFile
		}
	} else {
		dsn += " sslmode=disable"
	}

	return dsn
}

// PostgresURL builds a postgres:// URL, unless ConnectionURL is set.
func PostgresURL(config Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}
	mode := "disable"
	if config.SSL.Enabled && config.SSL.Mode != "" {
		mode = config.SSL.Mode
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		config.Username, config.Password, config.Host, config.Port, config.Database, mode)
}

// MySQLDSN builds a go-sql-driver/mysql DSN, unless ConnectionURL is set.
func MySQLDSN(config Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		config.Username, config.Password, config.Host, config.Port, config.Database)

	if config.SSL.Enabled {
		dsn += "&tls=" + config.SSL.Mode
	}

	return dsn
}

// SQLServerDSN builds a SQL Server DSN, unless ConnectionURL is set.
func SQLServerDSN(config Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}

	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s",
		config.Username, config.Password, config.Host, config.Port, config.Database)
}

// SQLiteDSN returns the database file name, or ConnectionURL when set.
func SQLiteDSN(config Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}
	if config.Database == "" {
		return ":memory:"
	}
	return config.Database
}
