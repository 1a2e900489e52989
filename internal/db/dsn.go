package db

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/vvka-141/orderload/pkg/orderload"
)

// BuildDSN renders the driver-specific data source name for config.
func BuildDSN(config *orderload.ConnectionConfig) (string, error) {
	switch config.Driver {
	case orderload.DriverPostgres:
		return BuildPostgresURI(config), nil
	case orderload.DriverMySQL:
		return BuildMySQLDSN(config), nil
	case orderload.DriverSQLite:
		if config.Path == "" {
			return "", fmt.Errorf("sqlite driver requires a database path: %w", orderload.ErrInvalidConfig)
		}
		return BuildSQLiteDSN(config), nil
	default:
		return "", fmt.Errorf("unknown driver %q: %w", config.Driver, orderload.ErrInvalidConfig)
	}
}

// BuildPostgresURI converts a ConnectionConfig to a PostgreSQL URI for pgx.
func BuildPostgresURI(config *orderload.ConnectionConfig) string {
	u := &url.URL{
		Scheme: "postgresql",
		Host:   net.JoinHostPort(config.Host, strconv.Itoa(config.Port)),
		Path:   "/" + config.Database,
	}

	if config.Username != "" {
		if config.Password != "" {
			u.User = url.UserPassword(config.Username, config.Password)
		} else {
			u.User = url.User(config.Username)
		}
	}

	query := url.Values{}
	if config.SSLMode != "" {
		query.Set("sslmode", config.SSLMode)
	}
	if config.AppName != "" {
		query.Set("application_name", config.AppName)
	}
	if config.ConnectTimeout > 0 {
		query.Set("connect_timeout", strconv.Itoa(int(config.ConnectTimeout.Seconds())))
	}
	for key, value := range config.AdditionalParams {
		query.Set(key, value)
	}

	u.RawQuery = query.Encode()
	return u.String()
}

// BuildMySQLDSN renders a go-sql-driver DSN. A host starting with "/" is a unix socket.
func BuildMySQLDSN(config *orderload.ConnectionConfig) string {
	cfg := mysql.NewConfig()
	cfg.User = config.Username
	cfg.Passwd = config.Password
	cfg.DBName = config.Database
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(config.Host, strconv.Itoa(config.Port))
	if strings.HasPrefix(config.Host, "/") {
		cfg.Net = "unix"
		cfg.Addr = config.Host
	}
	cfg.Timeout = config.ConnectTimeout
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.TLSConfig = mysqlTLS(config.SSLMode)

	if len(config.AdditionalParams) > 0 {
		cfg.Params = make(map[string]string, len(config.AdditionalParams))
		for key, value := range config.AdditionalParams {
			cfg.Params[key] = value
		}
	}
	return cfg.FormatDSN()
}

// mysqlTLS maps PostgreSQL-style sslmode names onto go-sql-driver tls values.
func mysqlTLS(mode string) string {
	switch strings.ToLower(mode) {
	case "", "disable", "false":
		return ""
	case "prefer", "preferred":
		return "preferred"
	case "require", "skip-verify":
		return "skip-verify"
	case "verify-ca", "verify-full", "true":
		return "true"
	default:
		return mode
	}
}

// BuildSQLiteDSN renders a modernc.org/sqlite DSN with foreign keys enforced
// and a busy timeout so a concurrently open database does not fail immediately.
func BuildSQLiteDSN(config *orderload.ConnectionConfig) string {
	query := url.Values{}
	query.Add("_pragma", "foreign_keys(1)")
	query.Add("_pragma", "busy_timeout(5000)")
	for key, value := range config.AdditionalParams {
		query.Add(key, value)
	}
	return config.Path + "?" + query.Encode()
}
