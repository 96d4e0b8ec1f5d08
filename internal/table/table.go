// Package table provides the tabular dataset layer: loading and saving
// delimited files with a header row, and extracting category labels from a
// designated column.
package table

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Table is an in-memory delimited dataset. The header row is kept separate
// from the data rows; every data row is normalized to the header width.
type Table struct {
	Header []string
	Rows   [][]string
}

// SchemaError reports a required column missing from a source table.
type SchemaError struct {
	Column    string
	Available []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("column %q not found (available: %s)", e.Column, strings.Join(e.Available, ", "))
}

// Load reads a delimited file into a Table. Rows shorter than the header are
// padded with empty cells; longer rows are truncated to the header width.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty table: %s", path)
	}

	t := &Table{Header: records[0]}
	width := len(t.Header)
	for _, rec := range records[1:] {
		row := make([]string, width)
		copy(row, rec)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Save writes the table to path, creating parent directories as needed.
func (t *Table) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range t.Rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Labels returns the values of the category column in row order. Duplicates
// are preserved; downstream phases handle them. Returns a *SchemaError when
// the column is absent.
func (t *Table) Labels(categoryCol string) ([]string, error) {
	ci := t.ColumnIndex(categoryCol)
	if ci < 0 {
		return nil, &SchemaError{Column: categoryCol, Available: append([]string(nil), t.Header...)}
	}
	labels := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		labels[i] = row[ci]
	}
	return labels, nil
}
