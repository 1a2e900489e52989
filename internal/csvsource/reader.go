// Package csvsource reads order records from a comma-separated file with a
// header row.
package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vvka-141/orderload/pkg/orderload"
)

const utf8BOM = "\ufeff"

// Reader yields one OrderRecord per data row, in file order.
// It implements orderload.RecordSource.
type Reader struct {
	file   *os.File
	csv    *csv.Reader
	header []string

	orderIdx, emailIdx, statusIdx int
	minFields                     int
	rows                          int64
}

// Open opens path and validates that its header names every source column of
// mapping. Extra columns are ignored. On error the file is already closed.
func Open(path string, mapping orderload.ColumnMapping) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}

	r, err := newReader(f, mapping)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.file = f
	return r, nil
}

func newReader(src io.Reader, mapping orderload.ColumnMapping) (*Reader, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("file is empty, expected a header row: %w", orderload.ErrInputFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid header: %v: %w", err, orderload.ErrInputFormat)
	}

	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		header[i] = name
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	var missing []string
	lookup := func(name string) int {
		i, ok := index[name]
		if !ok {
			missing = append(missing, name)
		}
		return i
	}

	r := &Reader{
		csv:       cr,
		header:    header,
		orderIdx:  lookup(mapping.SourceOrderID),
		emailIdx:  lookup(mapping.SourceEmail),
		statusIdx: lookup(mapping.SourceStatus),
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("header is missing required column(s) %s (found: %s): %w",
			quoteAll(missing), strings.Join(header, ", "), orderload.ErrInputFormat)
	}
	r.minFields = max(r.orderIdx, r.emailIdx, r.statusIdx) + 1
	return r, nil
}

// Header returns the trimmed header names.
func (r *Reader) Header() []string {
	return r.header
}

// Rows returns the number of data rows returned so far.
func (r *Reader) Rows() int64 {
	return r.rows
}

// Next returns the next record, or io.EOF after the last one.
// Blank lines are skipped. A row too short to hold every required column
// is an ErrInputFormat naming its line.
func (r *Reader) Next() (orderload.OrderRecord, error) {
	fields, err := r.csv.Read()
	if errors.Is(err, io.EOF) {
		return orderload.OrderRecord{}, io.EOF
	}
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return orderload.OrderRecord{}, fmt.Errorf("line %d: %v: %w", parseErr.StartLine, parseErr.Err, orderload.ErrInputFormat)
		}
		return orderload.OrderRecord{}, fmt.Errorf("failed to read CSV: %w", err)
	}

	line, _ := r.csv.FieldPos(0)
	if len(fields) < r.minFields {
		return orderload.OrderRecord{}, fmt.Errorf("line %d: expected at least %d fields, got %d: %w",
			line, r.minFields, len(fields), orderload.ErrInputFormat)
	}

	r.rows++
	return orderload.OrderRecord{
		OrderID:   fields[r.orderIdx],
		UserEmail: fields[r.emailIdx],
		Status:    fields[r.statusIdx],
		Line:      line,
	}, nil
}

// Close releases the file handle. Safe to call more than once.
func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return strings.Join(quoted, ", ")
}
