package table

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"forsysrank/internal/logging"
)

// projectOutputKey is the element of the engine result that carries one row
// per project. The engine also emits "stand" and "subset" outputs, which are
// not consumed here.
const projectOutputKey = "project"

// ReadJSON decodes an engine result. Two shapes are accepted:
//
//	{"stand": {...}, "project": {"proj_id": [1, 2], ...}}
//	{"proj_id": [1, 2], ...}
func ReadJSON(r io.Reader) (*Table, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc map[string]json.RawMessage
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode engine output: %w", err)
	}

	body := doc
	if raw, ok := doc[projectOutputKey]; ok {
		body = nil
		inner := json.NewDecoder(bytes.NewReader(raw))
		inner.UseNumber()
		if err := inner.Decode(&body); err != nil {
			return nil, fmt.Errorf("failed to decode %q output: %w", projectOutputKey, err)
		}
	}

	cols := make(map[string][]interface{}, len(body))
	for name, raw := range body {
		var values []interface{}
		d := json.NewDecoder(bytes.NewReader(raw))
		d.UseNumber()
		if err := d.Decode(&values); err != nil {
			return nil, fmt.Errorf("column %q is not an array: %w", name, err)
		}
		cols[name] = values
	}

	t, err := FromMap(cols)
	if err != nil {
		return nil, err
	}
	logging.TableDebug("decoded JSON table: %d columns, %d rows", len(cols), t.NumRows())
	return t, nil
}

// ReadCSV reads a CSV file whose first record is the header row.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty CSV input")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	// Strip a UTF-8 BOM left by spreadsheet exports.
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	columns := make([][]interface{}, len(header))
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		for i, cell := range record {
			columns[i] = append(columns[i], cell)
		}
	}

	t, err := New(header, columns)
	if err != nil {
		return nil, err
	}
	logging.TableDebug("decoded CSV table: %d columns, %d rows", len(header), t.NumRows())
	return t, nil
}

// LoadFile reads a table from disk, choosing the decoder by file extension.
func LoadFile(path string) (*Table, error) {
	timer := logging.StartTimer(logging.CategoryTable, "LoadFile")
	defer timer.Stop()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(f)
	case ".json":
		return ReadJSON(f)
	default:
		return nil, fmt.Errorf("unsupported input format %q (want .json or .csv)", filepath.Ext(path))
	}
}
