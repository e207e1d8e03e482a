// Package fetcher reads tabular rule and asset exports from CSV and XLSX files.
//
// Upstream exports are noisy: stray BOMs, latin-1 bytes inside nominally UTF-8
// files, ragged rows. Readers here are permissive by contract; structural
// judgments about row content belong to the rule validator, not to IO.
package fetcher

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ReadRecords reads a header-keyed tabular file, dispatching on extension.
// Each record maps header name to cell value; missing trailing cells are
// simply absent from the map.
func ReadRecords(path string) ([]map[string]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSVRecords(path)
	case ".xlsx":
		return ReadXLSXRecords(path, XLSXOptions{})
	default:
		return nil, eris.Errorf("fetcher: unsupported file extension %q", filepath.Ext(path))
	}
}

// rowsToRecords zips a header row with data rows into header-keyed records.
func rowsToRecords(header []string, rows [][]string) []map[string]string {
	records := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		rec := make(map[string]string, len(header))
		for i, key := range header {
			key = strings.TrimSpace(key)
			if key == "" || i >= len(row) {
				continue
			}
			rec[key] = row[i]
		}
		records = append(records, rec)
	}
	return records
}
