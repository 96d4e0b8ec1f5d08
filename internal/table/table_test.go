package table

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoad_PadsRaggedRows(t *testing.T) {
	path := writeTemp(t, "factor,Category,notes\ndaylight,Light\ntrees,Nature,greenery,extra\n")

	tbl, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(tbl.Rows))
	}
	for i, row := range tbl.Rows {
		if len(row) != 3 {
			t.Errorf("row %d width = %d, want 3", i, len(row))
		}
	}
	if tbl.Rows[0][2] != "" {
		t.Errorf("short row not padded: %q", tbl.Rows[0][2])
	}
	if tbl.Rows[1][2] != "greenery" {
		t.Errorf("long row truncated wrong: %q", tbl.Rows[1][2])
	}
}

func TestLabels_OrderAndDuplicates(t *testing.T) {
	path := writeTemp(t, "Category,notes\ncat,a\ndog,b\ncat,c\n")

	tbl, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	labels, err := tbl.Labels("Category")
	if err != nil {
		t.Fatalf("Labels failed: %v", err)
	}
	want := []string{"cat", "dog", "cat"}
	if len(labels) != len(want) {
		t.Fatalf("got %d labels, want %d", len(labels), len(want))
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("labels[%d] = %q, want %q", i, labels[i], want[i])
		}
	}
}

func TestLabels_MissingColumn(t *testing.T) {
	path := writeTemp(t, "factor,outcome\na,b\n")

	tbl, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	_, err = tbl.Labels("Category")
	if err == nil {
		t.Fatal("expected SchemaError, got nil")
	}
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SchemaError, got %T", err)
	}
	if se.Column != "Category" {
		t.Errorf("SchemaError.Column = %q", se.Column)
	}
	if len(se.Available) != 2 {
		t.Errorf("SchemaError.Available = %v", se.Available)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	tbl := &Table{
		Header: []string{"Category", "notes"},
		Rows:   [][]string{{"cat", "a"}, {"dog", "with, comma"}},
	}
	out := filepath.Join(dir, "nested", "out.csv")
	if err := tbl.Save(out); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	back, err := Load(out)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if back.Rows[1][1] != "with, comma" {
		t.Errorf("quoted cell lost: %q", back.Rows[1][1])
	}
}
