package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testhelpers "github.com/vvka-141/orderload/internal/testing"
	"github.com/vvka-141/orderload/internal/ui"
	"github.com/vvka-141/orderload/pkg/orderload"
)

// resetLoadFlags resets the package-level flag values between tests.
func resetLoadFlags() {
	loadFlags = loadFlagValues{
		connectRetries: orderload.DefaultConnectRetries,
		timeout:        orderload.DefaultTimeout,
	}
}

// isolateEnv clears every variable the resolver reads.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"ORDERLOAD_CONNECTION_STRING", "ORDERLOAD_DRIVER", "DATABASE_URL",
		"PGHOST", "PGPORT", "PGUSER", "PGPASSWORD", "PGDATABASE", "PGSSLMODE",
		"MYSQL_HOST", "MYSQL_TCP_PORT", "MYSQL_USER", "MYSQL_PWD", "MYSQL_DATABASE",
		"AWS_REGION", "AZURE_TENANT_ID", "AZURE_CLIENT_ID", "AZURE_CLIENT_SECRET",
	} {
		t.Setenv(name, "")
	}
	t.Setenv("ORDERLOAD_NON_INTERACTIVE", "1")
}

func writeProjectConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orderload.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadCmd_ArgsValidation(t *testing.T) {
	err := loadCmd.Args(loadCmd, []string{})
	require.Error(t, err)
	assert.Equal(t, orderload.ExitUsageError, orderload.ExitCodeForError(err))

	err = loadCmd.Args(loadCmd, []string{"a.csv", "b.csv"})
	require.Error(t, err)
}

func TestBuildLoadConfig(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		setupFlags  func()
		wantTable   string
		wantMode    orderload.InsertMode
		wantEmail   string
		wantTimeout time.Duration
		wantDriver  orderload.Driver
		wantErrCode int
	}{
		{
			name: "defaults with database flag",
			setupFlags: func() {
				loadFlags.database = "shop"
			},
			wantTable:   "orders",
			wantMode:    orderload.InsertModeRow,
			wantEmail:   "user_email",
			wantTimeout: 3 * time.Minute,
			wantDriver:  orderload.DriverPostgres,
		},
		{
			name: "yaml supplies table, columns, mode and timeout",
			yaml: `connection:
  driver: postgres
  database: shop
table: sales.orders
columns:
  email: customer_email
mode: copy
timeout: 10m
`,
			setupFlags:  func() {},
			wantTable:   "sales.orders",
			wantMode:    orderload.InsertModeCopy,
			wantEmail:   "customer_email",
			wantTimeout: 10 * time.Minute,
			wantDriver:  orderload.DriverPostgres,
		},
		{
			name: "flags override yaml",
			yaml: `connection:
  database: shop
table: sales.orders
columns:
  email: customer_email
mode: copy
`,
			setupFlags: func() {
				loadFlags.table = "imports"
				loadFlags.mode = "row"
				loadFlags.columns = []string{"email=contact"}
			},
			wantTable:   "imports",
			wantMode:    orderload.InsertModeRow,
			wantEmail:   "contact",
			wantTimeout: 3 * time.Minute,
			wantDriver:  orderload.DriverPostgres,
		},
		{
			name: "sqlite path flag",
			setupFlags: func() {
				loadFlags.driver = "sqlite"
				loadFlags.sqlitePath = "/tmp/shop.db"
			},
			wantTable:   "orders",
			wantMode:    orderload.InsertModeRow,
			wantEmail:   "user_email",
			wantTimeout: 3 * time.Minute,
			wantDriver:  orderload.DriverSQLite,
		},
		{
			name: "unknown column source",
			setupFlags: func() {
				loadFlags.database = "shop"
				loadFlags.columns = []string{"phone=phone"}
			},
			wantErrCode: orderload.ExitConfigError,
		},
		{
			name: "unknown mode",
			setupFlags: func() {
				loadFlags.database = "shop"
				loadFlags.mode = "bulk"
			},
			wantErrCode: orderload.ExitConfigError,
		},
		{
			name:        "invalid yaml timeout",
			yaml:        "timeout: soon\n",
			setupFlags:  func() { loadFlags.database = "shop" },
			wantErrCode: orderload.ExitConfigError,
		},
		{
			name:        "missing database",
			setupFlags:  func() {},
			wantErrCode: orderload.ExitConfigError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			resetLoadFlags()
			tt.setupFlags()
			if tt.yaml != "" {
				loadFlags.configPath = writeProjectConfig(t, tt.yaml)
			}

			cfg, err := buildLoadConfig(loadCmd, "orders.csv", testLogger(), false)
			if tt.wantErrCode != 0 {
				require.Error(t, err)
				assert.Equal(t, tt.wantErrCode, orderload.ExitCodeForError(err), "error: %v", err)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, "orders.csv", cfg.CSVPath)
			assert.Equal(t, tt.wantTable, cfg.Table)
			assert.Equal(t, tt.wantMode, cfg.Mode)
			assert.Equal(t, tt.wantEmail, cfg.Columns.TargetUserEmail)
			assert.Equal(t, tt.wantTimeout, cfg.Timeout)
			require.NotNil(t, cfg.Connection)
			assert.Equal(t, tt.wantDriver, cfg.Connection.Driver)
		})
	}
}

func TestBuildLoadConfig_RenamesSourceColumns(t *testing.T) {
	isolateEnv(t)
	resetLoadFlags()
	loadFlags.database = "shop"
	loadFlags.configPath = writeProjectConfig(t, `columns:
  mail: user_email
`)
	loadFlags.columns = []string{"id=order_id"}

	cfg, err := buildLoadConfig(loadCmd, "orders.csv", testLogger(), false)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "mail", "status"}, cfg.Columns.SourceColumns())
	assert.Equal(t, []string{"order_id", "user_email", "status"}, cfg.Columns.TargetColumns())
}

func TestBuildLoadConfig_DryRunSkipsConnection(t *testing.T) {
	isolateEnv(t)
	resetLoadFlags()
	loadFlags.dryRun = true

	cfg, err := buildLoadConfig(loadCmd, "orders.csv", testLogger(), false)
	require.NoError(t, err)
	assert.True(t, cfg.DryRun)
	assert.Nil(t, cfg.Connection)
}

func TestBuildLoadConfig_MissingExplicitConfig(t *testing.T) {
	isolateEnv(t)
	resetLoadFlags()
	loadFlags.database = "shop"
	loadFlags.configPath = filepath.Join(t.TempDir(), "absent.yaml")

	_, err := buildLoadConfig(loadCmd, "orders.csv", testLogger(), false)
	require.Error(t, err)
	assert.Equal(t, orderload.ExitConfigError, orderload.ExitCodeForError(err))
}

func TestSelectApprover(t *testing.T) {
	tests := []struct {
		name        string
		cfg         orderload.LoadConfig
		interactive bool
		wantType    any
		wantErr     bool
	}{
		{name: "force", cfg: orderload.LoadConfig{Truncate: true, Force: true}, wantType: &ui.ForcedApprover{}},
		{name: "interactive truncate", cfg: orderload.LoadConfig{Truncate: true}, interactive: true, wantType: &ui.InteractiveApprover{}},
		{name: "no truncate", cfg: orderload.LoadConfig{}, wantType: &ui.InteractiveApprover{}},
		{name: "dry run truncate", cfg: orderload.LoadConfig{Truncate: true, DryRun: true}, wantType: &ui.InteractiveApprover{}},
		{name: "truncate without terminal", cfg: orderload.LoadConfig{Truncate: true}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			approver, err := selectApprover(tt.cfg, tt.interactive, false)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, orderload.ErrApprovalDenied)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, approver)
		})
	}
}

func TestRunLoad_SQLite(t *testing.T) {
	const exampleCSV = "order_id,email,status\n1001,a@x.com,shipped\n1002,b@x.com,pending\n"

	tests := []struct {
		name     string
		csv      string
		setup    func(t *testing.T, conn *orderload.ConnectionConfig)
		flags    func()
		wantCode int
		wantRows []orderload.OrderRecord
	}{
		{
			name: "inserts every row",
			csv:  exampleCSV,
			wantRows: []orderload.OrderRecord{
				{OrderID: "1001", UserEmail: "a@x.com", Status: "shipped"},
				{OrderID: "1002", UserEmail: "b@x.com", Status: "pending"},
			},
		},
		{
			name:     "missing status column",
			csv:      "order_id,email\n1001,a@x.com\n",
			wantCode: orderload.ExitInputFormat,
			wantRows: []orderload.OrderRecord{},
		},
		{
			name: "duplicate of existing row",
			csv:  exampleCSV,
			setup: func(t *testing.T, conn *orderload.ConnectionConfig) {
				testhelpers.ExecSQLite(t, conn, `INSERT INTO orders (order_id, user_email, status) VALUES ('1002', 'old@x.com', 'new')`)
			},
			wantCode: orderload.ExitInsertionFailed,
			wantRows: []orderload.OrderRecord{
				{OrderID: "1002", UserEmail: "old@x.com", Status: "new"},
			},
		},
		{
			name: "truncate without terminal or force",
			csv:  exampleCSV,
			setup: func(t *testing.T, conn *orderload.ConnectionConfig) {
				testhelpers.ExecSQLite(t, conn, `INSERT INTO orders (order_id, user_email, status) VALUES ('1', 'x@x.com', 'old')`)
			},
			flags:    func() { loadFlags.truncate = true },
			wantCode: orderload.ExitApprovalDenied,
			wantRows: []orderload.OrderRecord{
				{OrderID: "1", UserEmail: "x@x.com", Status: "old"},
			},
		},
		{
			name:     "copy mode rejected for sqlite",
			csv:      exampleCSV,
			flags:    func() { loadFlags.mode = "copy" },
			wantCode: orderload.ExitConfigError,
			wantRows: []orderload.OrderRecord{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			resetLoadFlags()

			conn := testhelpers.NewSQLiteDatabase(t)
			if tt.setup != nil {
				tt.setup(t, conn)
			}
			loadFlags.driver = "sqlite"
			loadFlags.sqlitePath = conn.Path
			if tt.flags != nil {
				tt.flags()
			}

			err := runLoad(loadCmd, []string{testhelpers.WriteCSV(t, tt.csv)})
			assert.Equal(t, tt.wantCode, orderload.ExitCodeForError(err), "error: %v", err)

			assert.ElementsMatch(t, tt.wantRows, testhelpers.SQLiteRows(t, conn, "orders"))
		})
	}
}

func TestRunLoad_DryRun(t *testing.T) {
	isolateEnv(t)
	resetLoadFlags()
	loadFlags.dryRun = true

	err := runLoad(loadCmd, []string{testhelpers.WriteCSV(t, "order_id,email,status\n1,a@x.com,new\n")})
	require.NoError(t, err)
}
