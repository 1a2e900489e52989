package orderload

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OrderRecord is one data row of the input CSV.
// Values are passed to the store verbatim.
type OrderRecord struct {
	OrderID   string
	UserEmail string
	Status    string

	// Line is the 1-based line number of the row in the CSV file.
	Line int
}

// Values returns the record fields in ColumnMapping target order.
func (r OrderRecord) Values() []any {
	return []any{r.OrderID, r.UserEmail, r.Status}
}

// ColumnMapping names the CSV header columns that feed each destination column.
type ColumnMapping struct {
	SourceOrderID string
	SourceEmail   string
	SourceStatus  string

	TargetOrderID   string
	TargetUserEmail string
	TargetStatus    string
}

// DefaultColumnMapping returns order_id->order_id, email->user_email, status->status.
func DefaultColumnMapping() ColumnMapping {
	return ColumnMapping{
		SourceOrderID:   SourceColumnOrderID,
		SourceEmail:     SourceColumnEmail,
		SourceStatus:    SourceColumnStatus,
		TargetOrderID:   TargetColumnOrderID,
		TargetUserEmail: TargetColumnUserEmail,
		TargetStatus:    TargetColumnStatus,
	}
}

// SourceColumns returns the CSV header names in record field order.
func (m ColumnMapping) SourceColumns() []string {
	return []string{m.SourceOrderID, m.SourceEmail, m.SourceStatus}
}

// TargetColumns returns the destination column names in record field order.
func (m ColumnMapping) TargetColumns() []string {
	return []string{m.TargetOrderID, m.TargetUserEmail, m.TargetStatus}
}

// Set applies one "source=target" pair.
// A known source (current or default name) gets a new destination column.
// Otherwise the target selects the field, by current or default destination
// name, and the source becomes that field's CSV header name.
func (m *ColumnMapping) Set(pair string) error {
	source, target, ok := strings.Cut(pair, "=")
	source, target = strings.TrimSpace(source), strings.TrimSpace(target)
	if !ok || source == "" || target == "" {
		return fmt.Errorf("column mapping %q must be source=target: %w", pair, ErrInvalidConfig)
	}

	switch source {
	case m.SourceOrderID, SourceColumnOrderID:
		m.TargetOrderID = target
		return nil
	case m.SourceEmail, SourceColumnEmail:
		m.TargetUserEmail = target
		return nil
	case m.SourceStatus, SourceColumnStatus:
		m.TargetStatus = target
		return nil
	}

	switch target {
	case m.TargetOrderID, TargetColumnOrderID:
		m.SourceOrderID = source
	case m.TargetUserEmail, TargetColumnUserEmail:
		m.SourceEmail = source
	case m.TargetStatus, TargetColumnStatus:
		m.SourceStatus = source
	default:
		return fmt.Errorf("column mapping %q: %q is not a known CSV column (%s, %s, %s) and %q is not a destination column (%s, %s, %s): %w",
			pair, source, m.SourceOrderID, m.SourceEmail, m.SourceStatus,
			target, m.TargetOrderID, m.TargetUserEmail, m.TargetStatus, ErrInvalidConfig)
	}
	return nil
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidIdentifier reports whether name is safe to interpolate into SQL as a
// (optionally schema-qualified) table or column name.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// Validate checks that every mapped name is present and every target is a valid identifier.
func (m ColumnMapping) Validate() error {
	var errs []error
	for _, src := range m.SourceColumns() {
		if strings.TrimSpace(src) == "" {
			errs = append(errs, fmt.Errorf("source column name cannot be empty: %w", ErrInvalidConfig))
		}
	}
	seen := make(map[string]bool)
	for _, dst := range m.TargetColumns() {
		if !ValidIdentifier(dst) || strings.Contains(dst, ".") {
			errs = append(errs, fmt.Errorf("invalid target column %q: %w", dst, ErrInvalidConfig))
			continue
		}
		key := strings.ToLower(dst)
		if seen[key] {
			errs = append(errs, fmt.Errorf("target column %q mapped twice: %w", dst, ErrInvalidConfig))
		}
		seen[key] = true
	}
	return errors.Join(errs...)
}

// InsertMode selects how records reach the store.
type InsertMode string

const (
	// InsertModeRow issues one single-row INSERT per record.
	InsertModeRow InsertMode = "row"
	// InsertModeCopy streams records with COPY FROM STDIN (PostgreSQL only).
	InsertModeCopy InsertMode = "copy"
)

// ParseInsertMode parses a mode name; empty means InsertModeRow.
func ParseInsertMode(s string) (InsertMode, error) {
	switch InsertMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", InsertModeRow:
		return InsertModeRow, nil
	case InsertModeCopy:
		return InsertModeCopy, nil
	default:
		return "", fmt.Errorf("unknown insert mode %q (expected row or copy): %w", s, ErrInvalidConfig)
	}
}

// LoadConfig contains all parameters needed for a load operation.
type LoadConfig struct {
	// CSVPath is the input file
	CSVPath string

	// Connection is the resolved destination store
	Connection *ConnectionConfig

	// Table is the destination table, optionally schema-qualified
	Table string

	// Columns maps CSV header names to destination columns
	Columns ColumnMapping

	// Mode selects single-row inserts or COPY
	Mode InsertMode

	// Truncate deletes existing rows in the same transaction before loading
	Truncate bool

	// Force skips the interactive approval prompt for Truncate
	Force bool

	// DryRun validates and counts the CSV without connecting
	DryRun bool

	// ConnectRetries is the number of connection retries on transient errors
	ConnectRetries int

	// ProgressInterval is the number of rows between progress reports (0 = default)
	ProgressInterval int

	// Timeout is the global timeout for the entire run
	Timeout time.Duration

	// Verbose enables detailed logging
	Verbose bool
}

// Validate checks if the LoadConfig has all required fields and valid values.
// It returns a multi-error if multiple validation failures occur.
func (c *LoadConfig) Validate() error {
	var errs []error

	if c.CSVPath == "" {
		errs = append(errs, fmt.Errorf("CSVPath is required: %w", ErrInvalidConfig))
	}

	if c.Connection == nil && !c.DryRun {
		errs = append(errs, fmt.Errorf("Connection is required: %w", ErrInvalidConfig))
	}

	if !ValidIdentifier(c.Table) {
		errs = append(errs, fmt.Errorf("invalid table name %q: %w", c.Table, ErrInvalidConfig))
	}

	if err := c.Columns.Validate(); err != nil {
		errs = append(errs, err)
	}

	switch c.Mode {
	case InsertModeRow:
	case InsertModeCopy:
		if c.Connection != nil && c.Connection.Driver != DriverPostgres {
			errs = append(errs, fmt.Errorf("copy mode requires the postgres driver, got %s: %w", c.Connection.Driver, ErrInvalidConfig))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown insert mode %q: %w", c.Mode, ErrInvalidConfig))
	}

	if c.Force && !c.Truncate {
		errs = append(errs, fmt.Errorf("force flag requires truncate to be enabled: %w", ErrInvalidConfig))
	}

	if c.ConnectRetries < 0 {
		errs = append(errs, fmt.Errorf("connect retries cannot be negative: %w", ErrInvalidConfig))
	}

	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout cannot be negative: %w", ErrInvalidConfig))
	}

	return errors.Join(errs...)
}

// LoadResult summarizes a finished run.
type LoadResult struct {
	RunID        uuid.UUID
	RowsRead     int64
	RowsInserted int64
	Mode         InsertMode
	DryRun       bool
	Duration     time.Duration
}

// Driver identifies the destination store dialect.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
	DriverSQLite   Driver = "sqlite"
)

// ParseDriver parses a driver name, accepting common aliases.
func ParseDriver(s string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql", "pg", "pgx":
		return DriverPostgres, nil
	case "mysql", "mariadb":
		return DriverMySQL, nil
	case "sqlite", "sqlite3":
		return DriverSQLite, nil
	default:
		return "", fmt.Errorf("unknown driver %q (expected postgres, mysql or sqlite): %w", s, ErrInvalidConfig)
	}
}

// DefaultPort returns the conventional port for the driver, or 0 for file databases.
func (d Driver) DefaultPort() int {
	switch d {
	case DriverPostgres:
		return DefaultPostgresPort
	case DriverMySQL:
		return DefaultMySQLPort
	default:
		return 0
	}
}

// ConnectionConfig represents parsed connection parameters.
type ConnectionConfig struct {
	Driver   Driver
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	// Path is the database file for the sqlite driver
	Path string

	// AuthMethod indicates the authentication mechanism to use
	AuthMethod AuthMethod

	// Additional connection parameters
	AppName          string
	ConnectTimeout   time.Duration
	AdditionalParams map[string]string

	// AWSRegion is required for AuthMethodAWSIAM
	AWSRegion string

	// GoogleInstance is the Cloud SQL instance (project:region:instance) for AuthMethodGoogleIAM
	GoogleInstance string

	// Azure Entra ID authentication parameters (used when AuthMethod is AuthMethodAzureEntraID)
	// If all three are provided, Service Principal authentication is used.
	// If none are provided, DefaultAzureCredential chain is used (env vars, managed identity, CLI, etc.)
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string
}

// Redacted returns a copy safe for logging.
func (c ConnectionConfig) Redacted() ConnectionConfig {
	if c.Password != "" {
		c.Password = "****"
	}
	if c.AzureClientSecret != "" {
		c.AzureClientSecret = "****"
	}
	return c
}

// Target describes the connection for log lines, without credentials.
func (c ConnectionConfig) Target() string {
	if c.Driver == DriverSQLite {
		return fmt.Sprintf("sqlite:%s", c.Path)
	}
	return fmt.Sprintf("%s://%s@%s:%d/%s", c.Driver, c.Username, c.Host, c.Port, c.Database)
}

// AuthMethod represents the type of authentication to use.
type AuthMethod int

const (
	AuthMethodStandard     AuthMethod = iota // Username/Password
	AuthMethodAWSIAM                         // AWS IAM Database Authentication
	AuthMethodGoogleIAM                      // Google Cloud SQL IAM
	AuthMethodAzureEntraID                   // Azure Active Directory (Entra ID)
)

// String returns a human-readable string representation of the AuthMethod.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodStandard:
		return "Standard"
	case AuthMethodAWSIAM:
		return "AWS IAM"
	case AuthMethodGoogleIAM:
		return "Google IAM"
	case AuthMethodAzureEntraID:
		return "Azure Entra ID"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

// IsValid returns true if the AuthMethod is a valid, defined value.
func (a AuthMethod) IsValid() bool {
	return a >= AuthMethodStandard && a <= AuthMethodAzureEntraID
}

// ParseAuthMethod parses the --auth flag and auth_method config values.
func ParseAuthMethod(s string) (AuthMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "password":
		return AuthMethodStandard, nil
	case "aws", "aws-iam", "awsiam":
		return AuthMethodAWSIAM, nil
	case "google", "gcp", "google-iam":
		return AuthMethodGoogleIAM, nil
	case "azure", "entra", "azure-entra-id":
		return AuthMethodAzureEntraID, nil
	default:
		return AuthMethodStandard, fmt.Errorf("unknown auth method %q: %w", s, ErrUnsupportedAuthMethod)
	}
}
