package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/orderload/internal/logging"
	"github.com/vvka-141/orderload/internal/services"
	testhelpers "github.com/vvka-141/orderload/internal/testing"
	"github.com/vvka-141/orderload/pkg/orderload"
)

const exampleCSV = "order_id,email,status\n1001,a@x.com,shipped\n1002,b@x.com,pending\n"

var exampleRows = []orderload.OrderRecord{
	{OrderID: "1001", UserEmail: "a@x.com", Status: "shipped"},
	{OrderID: "1002", UserEmail: "b@x.com", Status: "pending"},
}

func loadConfig(csvPath string, conn *orderload.ConnectionConfig, table string) orderload.LoadConfig {
	return orderload.LoadConfig{
		CSVPath:    csvPath,
		Connection: conn,
		Table:      table,
		Columns:    orderload.DefaultColumnMapping(),
		Mode:       orderload.InsertModeRow,
	}
}

func generateCSV(n int) string {
	var b strings.Builder
	b.WriteString("order_id,email,status\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "%05d,user%d@example.com,new\n", i, i)
	}
	return b.String()
}

func TestSQLiteLoad_ExampleRows(t *testing.T) {
	conn := testhelpers.NewSQLiteDatabase(t)
	loader := testhelpers.NewTestLoader(t)

	result, err := loader.Load(context.Background(), loadConfig(testhelpers.WriteCSV(t, exampleCSV), conn, "orders"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.RowsInserted)
	assert.Equal(t, exampleRows, testhelpers.SQLiteRows(t, conn, "orders"))
}

func TestSQLiteLoad_NRows(t *testing.T) {
	const n = 1234
	conn := testhelpers.NewSQLiteDatabase(t)

	result, err := testhelpers.NewTestLoader(t).Load(context.Background(), loadConfig(testhelpers.WriteCSV(t, generateCSV(n)), conn, "orders"))
	require.NoError(t, err)
	assert.Equal(t, int64(n), result.RowsRead)
	assert.Equal(t, int64(n), result.RowsInserted)

	rows := testhelpers.SQLiteRows(t, conn, "orders")
	require.Len(t, rows, n)
	assert.Equal(t, orderload.OrderRecord{OrderID: "00001", UserEmail: "user1@example.com", Status: "new"}, rows[0])
}

func TestSQLiteLoad_DuplicateOfExistingRowLeavesTableUnchanged(t *testing.T) {
	conn := testhelpers.NewSQLiteDatabase(t)
	testhelpers.ExecSQLite(t, conn, `INSERT INTO orders (order_id, user_email, status) VALUES ('1002', 'old@x.com', 'delivered')`)

	_, err := testhelpers.NewTestLoader(t).Load(context.Background(), loadConfig(testhelpers.WriteCSV(t, exampleCSV), conn, "orders"))
	require.Error(t, err)
	assert.ErrorIs(t, err, orderload.ErrInsertionFailed)

	var insertErr *orderload.InsertError
	require.True(t, errors.As(err, &insertErr))
	assert.True(t, insertErr.Duplicate)
	assert.Equal(t, 3, insertErr.Line)
	assert.Equal(t, "1002", insertErr.OrderID)

	assert.Equal(t, []orderload.OrderRecord{{OrderID: "1002", UserEmail: "old@x.com", Status: "delivered"}},
		testhelpers.SQLiteRows(t, conn, "orders"))
}

func TestSQLiteLoad_DuplicateWithinFileRollsBack(t *testing.T) {
	conn := testhelpers.NewSQLiteDatabase(t)
	content := exampleCSV + "1001,c@x.com,new\n"

	_, err := testhelpers.NewTestLoader(t).Load(context.Background(), loadConfig(testhelpers.WriteCSV(t, content), conn, "orders"))
	require.Error(t, err)
	assert.ErrorIs(t, err, orderload.ErrInsertionFailed)
	assert.Contains(t, err.Error(), "duplicate key")
	assert.Empty(t, testhelpers.SQLiteRows(t, conn, "orders"))
}

func TestSQLiteLoad_SecondRunFails(t *testing.T) {
	conn := testhelpers.NewSQLiteDatabase(t)
	loader := testhelpers.NewTestLoader(t)
	config := loadConfig(testhelpers.WriteCSV(t, exampleCSV), conn, "orders")

	_, err := loader.Load(context.Background(), config)
	require.NoError(t, err)

	_, err = loader.Load(context.Background(), config)
	require.Error(t, err)
	assert.ErrorIs(t, err, orderload.ErrInsertionFailed)
	assert.Equal(t, exampleRows, testhelpers.SQLiteRows(t, conn, "orders"))
}

func TestSQLiteLoad_MissingStatusColumn(t *testing.T) {
	conn := testhelpers.NewSQLiteDatabase(t)

	_, err := testhelpers.NewTestLoader(t).Load(context.Background(),
		loadConfig(testhelpers.WriteCSV(t, "order_id,email\n1001,a@x.com\n"), conn, "orders"))
	assert.ErrorIs(t, err, orderload.ErrInputFormat)
	assert.Empty(t, testhelpers.SQLiteRows(t, conn, "orders"))
}

func TestSQLiteLoad_MalformedRowMidFile(t *testing.T) {
	conn := testhelpers.NewSQLiteDatabase(t)
	content := "order_id,email,status\n1001,a@x.com,shipped\n1002,\"b@x.com,pending\n"

	_, err := testhelpers.NewTestLoader(t).Load(context.Background(), loadConfig(testhelpers.WriteCSV(t, content), conn, "orders"))
	assert.ErrorIs(t, err, orderload.ErrInputFormat)
	assert.Empty(t, testhelpers.SQLiteRows(t, conn, "orders"))
}

func TestSQLiteLoad_Truncate(t *testing.T) {
	t.Run("approved replaces existing rows", func(t *testing.T) {
		conn := testhelpers.NewSQLiteDatabase(t)
		testhelpers.ExecSQLite(t, conn, `INSERT INTO orders VALUES ('1001', 'old@x.com', 'delivered'), ('9', 'z@x.com', 'new')`)
		config := loadConfig(testhelpers.WriteCSV(t, exampleCSV), conn, "orders")
		config.Truncate = true

		_, err := testhelpers.NewTestLoader(t).Load(context.Background(), config)
		require.NoError(t, err)
		assert.Equal(t, exampleRows, testhelpers.SQLiteRows(t, conn, "orders"))
	})

	t.Run("denied keeps existing rows", func(t *testing.T) {
		conn := testhelpers.NewSQLiteDatabase(t)
		testhelpers.ExecSQLite(t, conn, `INSERT INTO orders VALUES ('9', 'z@x.com', 'new')`)
		config := loadConfig(testhelpers.WriteCSV(t, exampleCSV), conn, "orders")
		config.Truncate = true

		loader := services.NewLoadService(testhelpers.ConnectorFactory, &testhelpers.DenyApprover{}, logging.NewNullLogger())
		_, err := loader.Load(context.Background(), config)
		assert.ErrorIs(t, err, orderload.ErrApprovalDenied)
		assert.Equal(t, []orderload.OrderRecord{{OrderID: "9", UserEmail: "z@x.com", Status: "new"}},
			testhelpers.SQLiteRows(t, conn, "orders"))
	})

	t.Run("failed load restores deleted rows", func(t *testing.T) {
		conn := testhelpers.NewSQLiteDatabase(t)
		testhelpers.ExecSQLite(t, conn, `INSERT INTO orders VALUES ('9', 'z@x.com', 'new')`)
		config := loadConfig(testhelpers.WriteCSV(t, exampleCSV+"1001,dup@x.com,new\n"), conn, "orders")
		config.Truncate = true

		_, err := testhelpers.NewTestLoader(t).Load(context.Background(), config)
		assert.ErrorIs(t, err, orderload.ErrInsertionFailed)
		assert.Len(t, testhelpers.SQLiteRows(t, conn, "orders"), 1)
	})
}

func TestSQLiteLoad_CustomMapping(t *testing.T) {
	conn := testhelpers.NewSQLiteDatabase(t)
	config := loadConfig(testhelpers.WriteCSV(t, "id,mail,state\n1001,a@x.com,shipped\n"), conn, "orders")
	require.NoError(t, config.Columns.Set("id=order_id"))
	require.NoError(t, config.Columns.Set("mail=user_email"))
	require.NoError(t, config.Columns.Set("state=status"))

	_, err := testhelpers.NewTestLoader(t).Load(context.Background(), config)
	require.NoError(t, err)
	assert.Equal(t, exampleRows[:1], testhelpers.SQLiteRows(t, conn, "orders"))
}

func TestSQLiteLoad_MissingTable(t *testing.T) {
	conn := testhelpers.NewSQLiteDatabase(t)

	_, err := testhelpers.NewTestLoader(t).Load(context.Background(), loadConfig(testhelpers.WriteCSV(t, exampleCSV), conn, "archive"))
	assert.ErrorIs(t, err, orderload.ErrInsertionFailed)
}

func TestPostgresLoad(t *testing.T) {
	connString := testhelpers.RequireDatabase(t)

	for _, mode := range []orderload.InsertMode{orderload.InsertModeRow, orderload.InsertModeCopy} {
		t.Run(string(mode), func(t *testing.T) {
			conn, table := testhelpers.CreatePostgresTable(t, connString)
			config := loadConfig(testhelpers.WriteCSV(t, exampleCSV), conn, table)
			config.Mode = mode

			result, err := testhelpers.NewTestLoader(t).Load(context.Background(), config)
			require.NoError(t, err)
			assert.Equal(t, int64(2), result.RowsInserted)
			assert.Equal(t, exampleRows, testhelpers.PostgresRows(t, connString, table))
		})
	}
}

func TestPostgresLoad_DuplicateLeavesTableUnchanged(t *testing.T) {
	connString := testhelpers.RequireDatabase(t)

	for _, mode := range []orderload.InsertMode{orderload.InsertModeRow, orderload.InsertModeCopy} {
		t.Run(string(mode), func(t *testing.T) {
			conn, table := testhelpers.CreatePostgresTable(t, connString)
			loader := testhelpers.NewTestLoader(t)
			config := loadConfig(testhelpers.WriteCSV(t, exampleCSV), conn, table)
			config.Mode = mode

			_, err := loader.Load(context.Background(), config)
			require.NoError(t, err)

			_, err = loader.Load(context.Background(), config)
			require.Error(t, err)
			assert.ErrorIs(t, err, orderload.ErrInsertionFailed)
			assert.Contains(t, err.Error(), "duplicate key")
			assert.Equal(t, exampleRows, testhelpers.PostgresRows(t, connString, table))
		})
	}
}

func TestPostgresLoad_TruncateAndReload(t *testing.T) {
	connString := testhelpers.RequireDatabase(t)
	conn, table := testhelpers.CreatePostgresTable(t, connString)
	loader := testhelpers.NewTestLoader(t)

	config := loadConfig(testhelpers.WriteCSV(t, generateCSV(50)), conn, table)
	_, err := loader.Load(context.Background(), config)
	require.NoError(t, err)

	config = loadConfig(testhelpers.WriteCSV(t, exampleCSV), conn, table)
	config.Truncate = true
	_, err = loader.Load(context.Background(), config)
	require.NoError(t, err)
	assert.Equal(t, exampleRows, testhelpers.PostgresRows(t, connString, table))
}

func TestMySQLLoad(t *testing.T) {
	connString := testhelpers.RequireMySQL(t)
	conn, table := testhelpers.CreateMySQLTable(t, connString)

	result, err := testhelpers.NewTestLoader(t).Load(context.Background(), loadConfig(testhelpers.WriteCSV(t, generateCSV(250)), conn, table))
	require.NoError(t, err)
	assert.Equal(t, int64(250), result.RowsInserted)
	assert.Len(t, testhelpers.MySQLRows(t, conn, table), 250)
}

func TestMySQLLoad_DuplicateLeavesTableUnchanged(t *testing.T) {
	connString := testhelpers.RequireMySQL(t)
	conn, table := testhelpers.CreateMySQLTable(t, connString)
	loader := testhelpers.NewTestLoader(t)
	config := loadConfig(testhelpers.WriteCSV(t, exampleCSV), conn, table)

	_, err := loader.Load(context.Background(), config)
	require.NoError(t, err)

	_, err = loader.Load(context.Background(), config)
	require.Error(t, err)

	var insertErr *orderload.InsertError
	require.True(t, errors.As(err, &insertErr), "expected InsertError, got %v", err)
	assert.True(t, insertErr.Duplicate)
	assert.Equal(t, "1001", insertErr.OrderID)
	assert.Equal(t, exampleRows, testhelpers.MySQLRows(t, conn, table))
}

func TestMySQLLoad_CopyModeRejected(t *testing.T) {
	connString := testhelpers.RequireMySQL(t)
	conn, table := testhelpers.CreateMySQLTable(t, connString)
	config := loadConfig(testhelpers.WriteCSV(t, exampleCSV), conn, table)
	config.Mode = orderload.InsertModeCopy

	_, err := testhelpers.NewTestLoader(t).Load(context.Background(), config)
	assert.ErrorIs(t, err, orderload.ErrInvalidConfig)
	assert.Empty(t, testhelpers.MySQLRows(t, conn, table))
}
