package db

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vvka-141/orderload/pkg/orderload"
)

// QuoteIdentifier quotes a (possibly schema-qualified) identifier for the driver.
// Names must already satisfy orderload.ValidIdentifier.
func QuoteIdentifier(driver orderload.Driver, name string) string {
	open, close := `"`, `"`
	if driver == orderload.DriverMySQL {
		open, close = "`", "`"
	}

	parts := strings.Split(name, ".")
	for i, part := range parts {
		parts[i] = open + part + close
	}
	return strings.Join(parts, ".")
}

// Placeholder returns the bind marker for the n-th (1-based) parameter.
func Placeholder(driver orderload.Driver, n int) string {
	if driver == orderload.DriverPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// InsertSQL builds a single-row INSERT statement.
func InsertSQL(driver orderload.Driver, table string, columns []string) string {
	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = QuoteIdentifier(driver, col)
		marks[i] = Placeholder(driver, i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdentifier(driver, table), strings.Join(quoted, ", "), strings.Join(marks, ", "))
}

// DeleteAllSQL builds the statement used by --truncate. DELETE rather than
// TRUNCATE keeps the operation inside the load transaction on every driver.
func DeleteAllSQL(driver orderload.Driver, table string) string {
	return "DELETE FROM " + QuoteIdentifier(driver, table)
}

// OrdersDDL returns a CREATE TABLE statement for the destination table.
func OrdersDDL(driver orderload.Driver, table string, columns []string) string {
	q := func(s string) string { return QuoteIdentifier(driver, s) }
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    %s VARCHAR(64) NOT NULL PRIMARY KEY,
    %s VARCHAR(255) NOT NULL,
    %s VARCHAR(32) NOT NULL
);
`, q(table), q(columns[0]), q(columns[1]), q(columns[2]))
}
