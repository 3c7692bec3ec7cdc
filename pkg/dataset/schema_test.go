package dataset

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeCSVFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSchemaNumericSniffing(t *testing.T) {
	path := writeCSVFile(t,
		"state_name,tested,positive,notes\n"+
			"Kano,100,40,ok\n"+
			"Lagos,200,30,\n"+
			"Kaduna,80,20,revisit\n")

	schema, err := NewSchemaCache().Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if schema.Rows != 3 {
		t.Errorf("Rows = %d, want 3", schema.Rows)
	}
	if len(schema.Columns) != 4 {
		t.Errorf("Columns = %v, want 4", schema.Columns)
	}

	want := map[string]bool{"tested": true, "positive": true}
	if len(schema.NumericColumns) != len(want) {
		t.Fatalf("NumericColumns = %v, want tested and positive only", schema.NumericColumns)
	}
	for _, c := range schema.NumericColumns {
		if !want[c] {
			t.Errorf("column %q sniffed numeric, want text", c)
		}
	}
}

func TestSchemaEmptyCellsDoNotBreakNumericColumns(t *testing.T) {
	path := writeCSVFile(t,
		"rainfall\n"+
			"210\n"+
			"\n"+
			"190\n")

	schema, err := NewSchemaCache().Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(schema.NumericColumns) != 1 || schema.NumericColumns[0] != "rainfall" {
		t.Errorf("NumericColumns = %v, want [rainfall]", schema.NumericColumns)
	}
}

func TestSchemaAllEmptyColumnIsNotNumeric(t *testing.T) {
	path := writeCSVFile(t,
		"tested,unused\n"+
			"100,\n"+
			"200,\n")

	schema, err := NewSchemaCache().Load(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range schema.NumericColumns {
		if c == "unused" {
			t.Error("a never-populated column must not count as numeric")
		}
	}
}

func TestHasColumnIsExact(t *testing.T) {
	schema := &Schema{Columns: []string{"tested", "positive"}}
	if !schema.HasColumn("tested") {
		t.Error("HasColumn(tested) = false")
	}
	if schema.HasColumn("Tested") {
		t.Error("HasColumn must be case sensitive")
	}
}

func TestClosestColumn(t *testing.T) {
	schema := &Schema{Columns: []string{"state_name", "tested", "positive"}}
	if got := schema.ClosestColumn("testd"); got != "tested" {
		t.Errorf("ClosestColumn(testd) = %q, want tested", got)
	}
	empty := &Schema{}
	if got := empty.ClosestColumn("anything"); got != "" {
		t.Errorf("ClosestColumn on empty schema = %q, want empty", got)
	}
}

func TestSchemaCacheReloadsOnModification(t *testing.T) {
	path := writeCSVFile(t, "a,b\n1,2\n")
	cache := NewSchemaCache()

	first, err := cache.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if first.Rows != 1 {
		t.Fatalf("Rows = %d, want 1", first.Rows)
	}

	if err := os.WriteFile(path, []byte("a,b\n1,2\n3,4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Force a distinct mtime; coarse filesystem clocks may otherwise collide.
	if err := os.Chtimes(path, time.Now().Add(2*time.Second), time.Now().Add(2*time.Second)); err != nil {
		t.Fatal(err)
	}

	second, err := cache.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if second.Rows != 2 {
		t.Errorf("Rows after rewrite = %d, want 2", second.Rows)
	}
}

func TestReadAllEmptyFile(t *testing.T) {
	path := writeCSVFile(t, "")
	if _, _, err := ReadAll(path); err == nil {
		t.Fatal("ReadAll on an empty file must fail")
	}
}
