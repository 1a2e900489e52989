package scaffold

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/orderload/internal/config"
	"github.com/vvka-141/orderload/pkg/orderload"
)

func TestCreateProject(t *testing.T) {
	tests := []struct {
		name         string
		driver       orderload.Driver
		wantQuote    string
		wantUser     string
		wantPort     int
		wantPath     string
		wantPassword string
	}{
		{name: "postgres", driver: orderload.DriverPostgres, wantQuote: `"orders"`, wantUser: "postgres", wantPort: 5432, wantPassword: "$PGPASSWORD"},
		{name: "mysql", driver: orderload.DriverMySQL, wantQuote: "`orders`", wantUser: "root", wantPort: 3306, wantPassword: "$MYSQL_PWD"},
		{name: "sqlite", driver: orderload.DriverSQLite, wantQuote: `"orders"`, wantPath: "./orders.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "project")

			written, err := NewScaffolder(false).CreateProject(tt.driver, dir)
			require.NoError(t, err)
			assert.Len(t, written, 3)

			schema, err := os.ReadFile(filepath.Join(dir, SchemaFileName))
			require.NoError(t, err)
			assert.Contains(t, string(schema), "CREATE TABLE IF NOT EXISTS "+tt.wantQuote)
			assert.Contains(t, string(schema), "PRIMARY KEY")

			raw, err := os.ReadFile(filepath.Join(dir, config.ConfigFileName))
			require.NoError(t, err)
			assert.Contains(t, string(raw), tt.wantPassword)

			cfg, err := config.Load(dir)
			require.NoError(t, err)
			assert.Equal(t, string(tt.driver), cfg.Connection.Driver)
			assert.Equal(t, tt.wantUser, cfg.Connection.Username)
			assert.Equal(t, tt.wantPort, cfg.Connection.Port)
			assert.Equal(t, tt.wantPath, cfg.Connection.Path)
			assert.Equal(t, "orders", cfg.Table)
			assert.Equal(t, "row", cfg.Mode)
			assert.Equal(t, "3m", cfg.Timeout)
			assert.Equal(t, map[string]string{
				"order_id": "order_id",
				"email":    "user_email",
				"status":   "status",
			}, cfg.Columns)

			sample, err := os.ReadFile(filepath.Join(dir, SampleFileName))
			require.NoError(t, err)
			assert.Equal(t, "order_id,email,status\n1001,a@x.com,shipped\n1002,b@x.com,pending\n", string(sample))
		})
	}
}

func TestCreateProject_RefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, SchemaFileName)
	require.NoError(t, os.WriteFile(existing, []byte("-- mine\n"), 0644))

	written, err := NewScaffolder(false).CreateProject(orderload.DriverPostgres, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	assert.Empty(t, written)

	content, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "-- mine\n", string(content))

	_, err = os.Stat(filepath.Join(dir, config.ConfigFileName))
	assert.True(t, os.IsNotExist(err), "no file should be written when any target exists")
}

func TestCreateProject_ExistingEmptyDirectory(t *testing.T) {
	dir := t.TempDir()

	_, err := NewScaffolder(true).CreateProject(orderload.DriverSQLite, dir)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}
