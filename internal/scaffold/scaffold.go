package scaffold

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/vvka-141/orderload/internal/config"
	"github.com/vvka-141/orderload/internal/db"
	"github.com/vvka-141/orderload/pkg/orderload"
)

//go:embed templates
var templatesFS embed.FS

const (
	// SchemaFileName holds the CREATE TABLE statement for the destination table.
	SchemaFileName = "schema.sql"
	// SampleFileName is a two-row CSV matching the default column mapping.
	SampleFileName = "orders.csv"
)

// Scaffolder writes a starter project: orderload.yaml, schema.sql and a sample CSV.
type Scaffolder struct {
	verbose bool
}

// NewScaffolder creates a new Scaffolder instance
func NewScaffolder(verbose bool) *Scaffolder {
	return &Scaffolder{
		verbose: verbose,
	}
}

type column struct {
	Source string
	Target string
}

type templateData struct {
	Driver      orderload.Driver
	Postgres    bool
	SQLite      bool
	Port        int
	Username    string
	PasswordEnv string
	Table       string
	Columns     []column
}

// CreateProject writes the starter files into targetPath. Existing files are
// never overwritten.
func (s *Scaffolder) CreateProject(driver orderload.Driver, targetPath string) ([]string, error) {
	mapping := orderload.DefaultColumnMapping()
	if err := mapping.Validate(); err != nil {
		return nil, err
	}

	files := map[string][]byte{}

	cfg, err := renderConfig(driver, mapping)
	if err != nil {
		return nil, err
	}
	files[config.ConfigFileName] = cfg
	files[SchemaFileName] = []byte(db.OrdersDDL(driver, orderload.DefaultTable, mapping.TargetColumns()))

	sample, err := templatesFS.ReadFile("templates/" + SampleFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sample CSV: %w", err)
	}
	files[SampleFileName] = sample

	names := []string{config.ConfigFileName, SchemaFileName, SampleFileName}
	for _, name := range names {
		path := filepath.Join(targetPath, name)
		if _, err := os.Stat(path); err == nil {
			return nil, fmt.Errorf("%s already exists\n\norderload init never overwrites files. Remove it or choose another directory", path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to check %s: %w", path, err)
		}
	}

	if err := os.MkdirAll(targetPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create project directory: %w", err)
	}

	written := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(targetPath, name)
		s.logVerbose("Creating file: %s", path)
		if err := os.WriteFile(path, files[name], 0644); err != nil {
			return written, fmt.Errorf("failed to write file %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func renderConfig(driver orderload.Driver, mapping orderload.ColumnMapping) ([]byte, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/orderload.yaml.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse config template: %w", err)
	}

	data := templateData{
		Driver:      driver,
		Postgres:    driver == orderload.DriverPostgres,
		SQLite:      driver == orderload.DriverSQLite,
		Port:        driver.DefaultPort(),
		Username:    "postgres",
		PasswordEnv: "$PGPASSWORD",
		Table:       orderload.DefaultTable,
	}
	if driver == orderload.DriverMySQL {
		data.Username = "root"
		data.PasswordEnv = "$MYSQL_PWD"
	}
	sources := mapping.SourceColumns()
	targets := mapping.TargetColumns()
	for i := range sources {
		data.Columns = append(data.Columns, column{Source: sources[i], Target: targets[i]})
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render config template: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Scaffolder) logVerbose(format string, args ...interface{}) {
	if s.verbose {
		fmt.Fprintf(os.Stderr, "[VERBOSE] "+format+"\n", args...)
	}
}
