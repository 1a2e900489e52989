package testing

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vvka-141/orderload/internal/db"
	"github.com/vvka-141/orderload/internal/logging"
	"github.com/vvka-141/orderload/internal/retry"
	"github.com/vvka-141/orderload/internal/services"
	"github.com/vvka-141/orderload/internal/testinfra"
	"github.com/vvka-141/orderload/pkg/orderload"
)

var (
	testContainerOnce sync.Once
	testContainerConn string
	testContainerErr  error

	mysqlContainerOnce sync.Once
	mysqlContainerConn string
	mysqlContainerErr  error
)

func getOrStartTestContainer() (string, error) {
	testContainerOnce.Do(func() {
		ctx := context.Background()
		container, err := testinfra.StartSimplePostgres(ctx)
		if err != nil {
			testContainerErr = err
			return
		}
		testContainerConn = container.ConnString
	})
	return testContainerConn, testContainerErr
}

func getOrStartMySQLContainer() (string, error) {
	mysqlContainerOnce.Do(func() {
		container, err := testinfra.StartMySQL(context.Background())
		if err != nil {
			mysqlContainerErr = err
			return
		}
		mysqlContainerConn = container.ConnString
	})
	return mysqlContainerConn, mysqlContainerErr
}

// GetTestConnectionString returns the PostgreSQL test connection string.
// Priority: ORDERLOAD_TEST_CONN env var > auto-started testcontainer > skip test.
func GetTestConnectionString(t *testing.T) string {
	t.Helper()

	if connString := os.Getenv("ORDERLOAD_TEST_CONN"); connString != "" {
		return connString
	}

	connString, err := getOrStartTestContainer()
	if err != nil {
		t.Skipf("ORDERLOAD_TEST_CONN not set and Docker unavailable: %v", err)
	}
	return connString
}

// SkipIfShort skips the test if running in short mode (-short flag).
func SkipIfShort(t *testing.T) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// RequireDatabase combines SkipIfShort and GetTestConnectionString for convenience.
func RequireDatabase(t *testing.T) string {
	t.Helper()

	SkipIfShort(t)
	return GetTestConnectionString(t)
}

// RequireMySQL returns a mysql:// connection string for integration tests.
// Priority: ORDERLOAD_TEST_MYSQL_CONN env var > auto-started testcontainer > skip test.
func RequireMySQL(t *testing.T) string {
	t.Helper()

	SkipIfShort(t)
	if connString := os.Getenv("ORDERLOAD_TEST_MYSQL_CONN"); connString != "" {
		return connString
	}
	connString, err := getOrStartMySQLContainer()
	if err != nil {
		t.Skipf("ORDERLOAD_TEST_MYSQL_CONN not set and Docker unavailable: %v", err)
	}
	return connString
}

// ConnectorFactory is the production connector factory without log output.
func ConnectorFactory(config *orderload.ConnectionConfig, executor *retry.Executor) (orderload.Connector, error) {
	return db.NewConnector(config, executor, logging.NewNullLogger())
}

// NewTestLoader creates a Loader wired like the CLI, with an approver that
// always approves and a silent logger.
func NewTestLoader(t *testing.T) *services.LoadService {
	t.Helper()
	return services.NewLoadService(ConnectorFactory, &ForceApprover{}, logging.NewNullLogger())
}

// ForceApprover is a test approver that always approves.
type ForceApprover struct{}

func (a *ForceApprover) RequestApproval(ctx context.Context, table string) (bool, error) {
	return true, nil
}

// DenyApprover is a test approver that always denies.
type DenyApprover struct{}

func (a *DenyApprover) RequestApproval(ctx context.Context, table string) (bool, error) {
	return false, nil
}

// WriteCSV writes content to a temporary orders.csv and returns its path.
func WriteCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write CSV: %v", err)
	}
	return path
}

// CreatePostgresTable creates a uniquely named orders table and drops it when
// the test ends. It returns the resolved connection and the table name.
func CreatePostgresTable(t *testing.T, connString string) (*orderload.ConnectionConfig, string) {
	t.Helper()
	ctx := context.Background()

	config, err := db.ParseConnectionString(connString)
	if err != nil {
		t.Fatalf("parse connection string: %v", err)
	}

	table := "orders_" + uuid.NewString()[:8]
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close(ctx)

	ddl := db.OrdersDDL(orderload.DriverPostgres, table, orderload.DefaultColumnMapping().TargetColumns())
	if _, err := conn.Exec(ctx, ddl); err != nil {
		t.Fatalf("create table %s: %v", table, err)
	}

	t.Cleanup(func() {
		conn, err := pgx.Connect(ctx, connString)
		if err != nil {
			t.Logf("Warning: failed to connect for cleanup: %v", err)
			return
		}
		defer conn.Close(ctx)
		if _, err := conn.Exec(ctx, "DROP TABLE IF EXISTS "+db.QuoteIdentifier(orderload.DriverPostgres, table)); err != nil {
			t.Logf("Warning: failed to drop %s: %v", table, err)
		}
	})
	return config, table
}

// PostgresRows returns every row of table ordered by order_id.
func PostgresRows(t *testing.T, connString, table string) []orderload.OrderRecord {
	t.Helper()
	ctx := context.Background()

	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, selectOrdersSQL(orderload.DriverPostgres, table))
	if err != nil {
		t.Fatalf("query %s: %v", table, err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (orderload.OrderRecord, error) {
		var r orderload.OrderRecord
		err := row.Scan(&r.OrderID, &r.UserEmail, &r.Status)
		return r, err
	})
	if err != nil {
		t.Fatalf("scan %s: %v", table, err)
	}
	return records
}

// NewSQLiteDatabase creates a temporary SQLite database holding an empty
// orders table and returns its connection config.
func NewSQLiteDatabase(t *testing.T) *orderload.ConnectionConfig {
	t.Helper()

	path := filepath.Join(t.TempDir(), "shop.db")
	handle := openSQLite(t, path)
	defer handle.Close()

	ddl := db.OrdersDDL(orderload.DriverSQLite, orderload.DefaultTable, orderload.DefaultColumnMapping().TargetColumns())
	if _, err := handle.Exec(ddl); err != nil {
		t.Fatalf("create orders table: %v", err)
	}

	return &orderload.ConnectionConfig{Driver: orderload.DriverSQLite, Path: path, Database: path}
}

// ExecSQLite runs a statement against the SQLite database at config.Path.
func ExecSQLite(t *testing.T, config *orderload.ConnectionConfig, query string, args ...any) {
	t.Helper()
	handle := openSQLite(t, config.Path)
	defer handle.Close()
	if _, err := handle.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

// SQLiteRows returns every row of table ordered by order_id.
func SQLiteRows(t *testing.T, config *orderload.ConnectionConfig, table string) []orderload.OrderRecord {
	t.Helper()
	handle := openSQLite(t, config.Path)
	defer handle.Close()
	return scanOrders(t, handle, orderload.DriverSQLite, table)
}

func scanOrders(t *testing.T, handle *sql.DB, driver orderload.Driver, table string) []orderload.OrderRecord {
	t.Helper()
	rows, err := handle.Query(selectOrdersSQL(driver, table))
	if err != nil {
		t.Fatalf("query %s: %v", table, err)
	}
	defer rows.Close()

	var records []orderload.OrderRecord
	for rows.Next() {
		var r orderload.OrderRecord
		if err := rows.Scan(&r.OrderID, &r.UserEmail, &r.Status); err != nil {
			t.Fatalf("scan %s: %v", table, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iterate %s: %v", table, err)
	}
	return records
}

func openSQLite(t *testing.T, path string) *sql.DB {
	t.Helper()
	handle, err := sql.Open("sqlite", db.BuildSQLiteDSN(&orderload.ConnectionConfig{Path: path}))
	if err != nil {
		t.Fatalf("open sqlite %s: %v", path, err)
	}
	return handle
}

func selectOrdersSQL(driver orderload.Driver, table string) string {
	cols := orderload.DefaultColumnMapping().TargetColumns()
	q := func(s string) string { return db.QuoteIdentifier(driver, s) }
	return "SELECT " + q(cols[0]) + ", " + q(cols[1]) + ", " + q(cols[2]) +
		" FROM " + q(table) + " ORDER BY " + q(cols[0])
}

// CreateMySQLTable creates a uniquely named orders table and drops it when the
// test ends. It returns the resolved connection and the table name.
func CreateMySQLTable(t *testing.T, connString string) (*orderload.ConnectionConfig, string) {
	t.Helper()

	config, err := db.ParseConnectionString(connString)
	if err != nil {
		t.Fatalf("parse connection string: %v", err)
	}

	table := "orders_" + uuid.NewString()[:8]
	handle := openMySQL(t, config)
	defer handle.Close()

	ddl := db.OrdersDDL(orderload.DriverMySQL, table, orderload.DefaultColumnMapping().TargetColumns())
	if _, err := handle.Exec(ddl); err != nil {
		t.Fatalf("create table %s: %v", table, err)
	}

	t.Cleanup(func() {
		handle := openMySQL(t, config)
		defer handle.Close()
		if _, err := handle.Exec("DROP TABLE IF EXISTS " + db.QuoteIdentifier(orderload.DriverMySQL, table)); err != nil {
			t.Logf("Warning: failed to drop %s: %v", table, err)
		}
	})
	return config, table
}

// MySQLRows returns every row of table ordered by order_id.
func MySQLRows(t *testing.T, config *orderload.ConnectionConfig, table string) []orderload.OrderRecord {
	t.Helper()
	handle := openMySQL(t, config)
	defer handle.Close()
	return scanOrders(t, handle, orderload.DriverMySQL, table)
}

func openMySQL(t *testing.T, config *orderload.ConnectionConfig) *sql.DB {
	t.Helper()
	handle, err := sql.Open("mysql", db.BuildMySQLDSN(config))
	if err != nil {
		t.Fatalf("open mysql: %v", err)
	}
	return handle
}
