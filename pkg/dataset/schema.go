package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"chatmrpt-be/pkg/workflow/slot"

	"github.com/patrickmn/go-cache"
)

// Schema is column/shape metadata for one dataset file. Raw content never
// leaves this package; collaborators receive only the metadata so they can
// answer data questions without guessing column names.
type Schema struct {
	Columns        []string
	NumericColumns []string
	Rows           int
}

// HasColumn reports whether name is an exact column of the dataset.
func (s *Schema) HasColumn(name string) bool {
	for _, c := range s.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// ClosestColumn fuzzy-suggests the nearest actual column for a name that
// does not exist. Returns "" when the dataset has no columns.
func (s *Schema) ClosestColumn(name string) string {
	if len(s.Columns) == 0 {
		return ""
	}
	best, _ := slot.Closest(name, s.Columns)
	return best
}

// SchemaCache memoizes parsed schemas keyed by path and modification time,
// so repeated handler calls do not re-scan the CSV. Safe because a changed
// file gets a new mtime and therefore a new key.
type SchemaCache struct {
	cache *cache.Cache
}

func NewSchemaCache() *SchemaCache {
	return &SchemaCache{cache: cache.New(30*time.Minute, 10*time.Minute)}
}

func (sc *SchemaCache) Load(path string) (*Schema, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: stat %s: %w", path, err)
	}
	key := path + "|" + info.ModTime().UTC().Format(time.RFC3339Nano)
	if x, found := sc.cache.Get(key); found {
		return x.(*Schema), nil
	}

	schema, err := readSchema(path)
	if err != nil {
		return nil, err
	}
	sc.cache.Set(key, schema, cache.DefaultExpiration)
	return schema, nil
}

// sampleRows bounds numeric-type sniffing; a column counts as numeric when
// every non-empty sampled cell parses as a float.
const sampleRows = 50

func readSchema(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("dataset: read header of %s: %w", path, err)
	}

	numeric := make([]bool, len(header))
	seen := make([]bool, len(header))
	for i := range numeric {
		numeric[i] = true
	}

	rows := 0
	for {
		record, err := r.Read()
		if err != nil {
			break
		}
		rows++
		if rows <= sampleRows {
			for i, cell := range record {
				if i >= len(header) || cell == "" {
					continue
				}
				seen[i] = true
				if _, err := strconv.ParseFloat(cell, 64); err != nil {
					numeric[i] = false
				}
			}
		}
	}

	schema := &Schema{Columns: header, Rows: rows}
	for i, col := range header {
		if seen[i] && numeric[i] {
			schema.NumericColumns = append(schema.NumericColumns, col)
		}
	}
	return schema, nil
}

// ReadAll loads the full CSV as header plus records. Only the analysis tools
// use it; everything else works off the schema.
func ReadAll(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("dataset: read %s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("dataset: %s is empty", path)
	}
	return all[0], all[1:], nil
}
