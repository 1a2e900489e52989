package db

import (
	"fmt"
	"os"
	"strconv"

	"github.com/vvka-141/orderload/internal/config"
	"github.com/vvka-141/orderload/pkg/orderload"
)

// GranularConnFlags represents connection parameters from CLI flags.
//
// Password is not a flag. Use $PGPASSWORD, $MYSQL_PWD or a connection string.
type GranularConnFlags struct {
	Driver   string
	Host     string
	Port     int
	Username string
	Database string
	SSLMode  string
	Path     string
}

// IsEmpty returns true if no server-addressing flags were provided.
// Driver and Database are excluded: both may refine a connection string.
func (g *GranularConnFlags) IsEmpty() bool {
	return g.Host == "" && g.Port == 0 && g.Username == "" && g.SSLMode == "" && g.Path == ""
}

// CloudFlags carries the cloud authentication flags.
// Secrets are never flags; AZURE_CLIENT_SECRET comes from the environment.
type CloudFlags struct {
	AuthMethod     string
	AWSRegion      string
	GoogleInstance string
	AzureTenantID  string
	AzureClientID  string
}

// EnvVars represents the environment variables consulted during resolution.
type EnvVars struct {
	ORDERLOAD_CONNECTION_STRING string
	ORDERLOAD_DRIVER            string
	DATABASE_URL                string

	PGHOST     string
	PGPORT     string
	PGUSER     string
	PGPASSWORD string
	PGDATABASE string
	PGSSLMODE  string

	MYSQL_HOST     string
	MYSQL_TCP_PORT string
	MYSQL_USER     string
	MYSQL_PWD      string
	MYSQL_DATABASE string

	AWS_REGION          string
	AZURE_TENANT_ID     string
	AZURE_CLIENT_ID     string
	AZURE_CLIENT_SECRET string
}

// LoadFromEnvironment snapshots the relevant environment variables.
func LoadFromEnvironment() *EnvVars {
	return &EnvVars{
		ORDERLOAD_CONNECTION_STRING: os.Getenv("ORDERLOAD_CONNECTION_STRING"),
		ORDERLOAD_DRIVER:            os.Getenv("ORDERLOAD_DRIVER"),
		DATABASE_URL:                os.Getenv("DATABASE_URL"),
		PGHOST:                      os.Getenv("PGHOST"),
		PGPORT:                      os.Getenv("PGPORT"),
		PGUSER:                      os.Getenv("PGUSER"),
		PGPASSWORD:                  os.Getenv("PGPASSWORD"),
		PGDATABASE:                  os.Getenv("PGDATABASE"),
		PGSSLMODE:                   os.Getenv("PGSSLMODE"),
		MYSQL_HOST:                  os.Getenv("MYSQL_HOST"),
		MYSQL_TCP_PORT:              os.Getenv("MYSQL_TCP_PORT"),
		MYSQL_USER:                  os.Getenv("MYSQL_USER"),
		MYSQL_PWD:                   os.Getenv("MYSQL_PWD"),
		MYSQL_DATABASE:              os.Getenv("MYSQL_DATABASE"),
		AWS_REGION:                  os.Getenv("AWS_REGION"),
		AZURE_TENANT_ID:             os.Getenv("AZURE_TENANT_ID"),
		AZURE_CLIENT_ID:             os.Getenv("AZURE_CLIENT_ID"),
		AZURE_CLIENT_SECRET:         os.Getenv("AZURE_CLIENT_SECRET"),
	}
}

// driverEnv is the driver-specific subset of EnvVars.
type driverEnv struct {
	host, port, user, password, database, sslmode string
}

func (e *EnvVars) forDriver(driver orderload.Driver) driverEnv {
	switch driver {
	case orderload.DriverPostgres:
		return driverEnv{e.PGHOST, e.PGPORT, e.PGUSER, e.PGPASSWORD, e.PGDATABASE, e.PGSSLMODE}
	case orderload.DriverMySQL:
		return driverEnv{e.MYSQL_HOST, e.MYSQL_TCP_PORT, e.MYSQL_USER, e.MYSQL_PWD, e.MYSQL_DATABASE, ""}
	default:
		return driverEnv{}
	}
}

// ResolveConnectionParams resolves connection parameters with this precedence:
//
//  1. --connection flag
//  2. $ORDERLOAD_CONNECTION_STRING
//  3. $DATABASE_URL (only when no granular flags were given)
//  4. Granular flags (--driver, -h, -p, -U, -d, --sslmode, --sqlite-path)
//  5. Driver environment variables (PG* or MYSQL_*)
//  6. orderload.yaml
//  7. Defaults (postgres, localhost, driver port, sslmode prefer)
//
// Specifying both --connection and granular flags is an error.
func ResolveConnectionParams(
	connStringFlag string,
	granularFlags *GranularConnFlags,
	cloudFlags *CloudFlags,
	envVars *EnvVars,
	projectConfig *config.ProjectConfig,
) (*orderload.ConnectionConfig, error) {
	if granularFlags == nil {
		granularFlags = &GranularConnFlags{}
	}
	if cloudFlags == nil {
		cloudFlags = &CloudFlags{}
	}
	if envVars == nil {
		envVars = &EnvVars{}
	}

	if connStringFlag != "" && !granularFlags.IsEmpty() {
		return nil, fmt.Errorf(
			"cannot specify both --connection and granular flags (-h, -p, -U, --sslmode, --sqlite-path)\n"+
				"Choose one approach:\n"+
				"  1. Connection string: --connection \"postgresql://user@localhost:5432/shop\"\n"+
				"  2. Granular flags: --driver mysql -h localhost -p 3306 -U root -d chatdb\n"+
				"  3. Environment variables: export PGHOST=localhost PGUSER=app PGDATABASE=shop: %w",
			orderload.ErrInvalidConfig,
		)
	}

	connStr := connStringFlag
	if connStr == "" {
		connStr = envVars.ORDERLOAD_CONNECTION_STRING
	}
	if connStr == "" && granularFlags.IsEmpty() {
		connStr = envVars.DATABASE_URL
	}

	var cfg *orderload.ConnectionConfig
	var err error
	if connStr != "" {
		cfg, err = resolveFromConnectionString(connStr, granularFlags, envVars)
	} else {
		cfg, err = resolveFromGranularParams(granularFlags, envVars, projectConfig)
	}
	if err != nil {
		return nil, err
	}

	if err := applyCloudAuth(cfg, cloudFlags, envVars, projectConfig); err != nil {
		return nil, err
	}

	if err := validateResolved(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolveFromConnectionString(connStr string, flags *GranularConnFlags, envVars *EnvVars) (*orderload.ConnectionConfig, error) {
	cfg, err := ParseConnectionString(connStr)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string: %v: %w", err, orderload.ErrInvalidConfig)
	}

	if flags.Driver != "" {
		driver, err := orderload.ParseDriver(flags.Driver)
		if err != nil {
			return nil, err
		}
		if driver != cfg.Driver {
			return nil, fmt.Errorf("--driver %s conflicts with %s connection string: %w", driver, cfg.Driver, orderload.ErrInvalidConfig)
		}
	}

	// -d overrides the database named in the connection string.
	if flags.Database != "" && cfg.Driver != orderload.DriverSQLite {
		cfg.Database = flags.Database
	}

	env := envVars.forDriver(cfg.Driver)
	if cfg.Password == "" {
		cfg.Password = env.password
	}
	if cfg.Driver == orderload.DriverPostgres {
		if cfg.SSLMode == "" {
			cfg.SSLMode = env.sslmode
		}
		if cfg.SSLMode == "" {
			cfg.SSLMode = "prefer"
		}
	}
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func resolveFromGranularParams(
	flags *GranularConnFlags,
	envVars *EnvVars,
	projectConfig *config.ProjectConfig,
) (*orderload.ConnectionConfig, error) {
	var pc config.ConnectionConfig
	if projectConfig != nil {
		pc = projectConfig.Connection
	}

	// Driver: flag > $ORDERLOAD_DRIVER > orderload.yaml > postgres
	driver := orderload.DriverPostgres
	if name := firstNonEmpty(flags.Driver, envVars.ORDERLOAD_DRIVER, pc.Driver); name != "" {
		d, err := orderload.ParseDriver(name)
		if err != nil {
			return nil, err
		}
		driver = d
	}

	cfg := newConfig(driver)
	if driver == orderload.DriverSQLite {
		cfg.Host = ""
		cfg.Path = firstNonEmpty(flags.Path, pc.Path)
		cfg.Database = cfg.Path
		return cfg, nil
	}

	env := envVars.forDriver(driver)

	cfg.Host = firstNonEmpty(flags.Host, env.host, pc.Host, "localhost")

	switch {
	case flags.Port != 0:
		cfg.Port = flags.Port
	case env.port != "":
		port, err := strconv.Atoi(env.port)
		if err != nil {
			return nil, fmt.Errorf("invalid port value %q in environment: must be an integer: %w", env.port, orderload.ErrInvalidConfig)
		}
		cfg.Port = port
	case pc.Port != 0:
		cfg.Port = pc.Port
	}

	cfg.Username = firstNonEmpty(flags.Username, env.user, pc.Username)
	if cfg.Username == "" {
		if driver == orderload.DriverMySQL {
			cfg.Username = "root"
		} else {
			cfg.Username = firstNonEmpty(os.Getenv("USER"), os.Getenv("USERNAME"))
		}
	}

	cfg.Password = env.password
	cfg.Database = firstNonEmpty(flags.Database, env.database, pc.Database)
	cfg.SSLMode = firstNonEmpty(flags.SSLMode, env.sslmode, pc.SSLMode)
	if driver == orderload.DriverPostgres && cfg.SSLMode == "" {
		cfg.SSLMode = "prefer"
	}
	return cfg, nil
}

// applyCloudAuth sets the authentication method and its parameters.
// Flags take precedence over environment variables and orderload.yaml.
// Azure credentials in the environment switch a postgres target to Entra ID
// when no method was chosen explicitly.
func applyCloudAuth(cfg *orderload.ConnectionConfig, flags *CloudFlags, env *EnvVars, projectConfig *config.ProjectConfig) error {
	var pc config.ConnectionConfig
	if projectConfig != nil {
		pc = projectConfig.Connection
	}

	method := firstNonEmpty(flags.AuthMethod, pc.AuthMethod)
	auth, err := orderload.ParseAuthMethod(method)
	if err != nil {
		return err
	}

	tenantID := firstNonEmpty(flags.AzureTenantID, env.AZURE_TENANT_ID, pc.AzureTenantID)
	clientID := firstNonEmpty(flags.AzureClientID, env.AZURE_CLIENT_ID, pc.AzureClientID)
	if method == "" && cfg.Driver == orderload.DriverPostgres && (tenantID != "" || clientID != "") {
		auth = orderload.AuthMethodAzureEntraID
	}

	cfg.AuthMethod = auth
	switch auth {
	case orderload.AuthMethodAzureEntraID:
		cfg.AzureTenantID = tenantID
		cfg.AzureClientID = clientID
		cfg.AzureClientSecret = env.AZURE_CLIENT_SECRET
	case orderload.AuthMethodAWSIAM:
		cfg.AWSRegion = firstNonEmpty(flags.AWSRegion, env.AWS_REGION, pc.AWSRegion)
	case orderload.AuthMethodGoogleIAM:
		cfg.GoogleInstance = firstNonEmpty(flags.GoogleInstance, pc.GoogleInstance)
	}
	return nil
}

func validateResolved(cfg *orderload.ConnectionConfig) error {
	if cfg.Driver == orderload.DriverSQLite {
		if cfg.Path == "" {
			return fmt.Errorf("sqlite requires a database file (--sqlite-path or sqlite:///path): %w", orderload.ErrInvalidConfig)
		}
	} else if cfg.Database == "" {
		return fmt.Errorf("database name is required (use -d, a connection string, or $PGDATABASE/$MYSQL_DATABASE): %w", orderload.ErrInvalidConfig)
	}

	if cfg.AuthMethod != orderload.AuthMethodStandard && cfg.Driver != orderload.DriverPostgres {
		return fmt.Errorf("%s authentication is only available for postgres: %w", cfg.AuthMethod, orderload.ErrUnsupportedAuthMethod)
	}

	switch cfg.AuthMethod {
	case orderload.AuthMethodAWSIAM:
		if cfg.AWSRegion == "" {
			return fmt.Errorf("AWS IAM authentication requires --aws-region or $AWS_REGION: %w", orderload.ErrInvalidConfig)
		}
	case orderload.AuthMethodGoogleIAM:
		if cfg.GoogleInstance == "" {
			return fmt.Errorf("Google IAM authentication requires --google-instance (project:region:instance): %w", orderload.ErrInvalidConfig)
		}
	}
	return nil
}
