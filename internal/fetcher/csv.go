package fetcher

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeBytes strips a UTF-8 BOM and, when the payload is not valid UTF-8,
// reinterprets it as latin-1. Legacy asset-management exports mix encodings
// within a single dump, and a usable load beats a hard failure.
func decodeBytes(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, nil
	}
	decoded, _, err := transform.Bytes(charmap.ISO8859_1.NewDecoder(), data)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: decode latin-1 fallback")
	}
	return decoded, nil
}

// ReadCSVRecords reads a header-row CSV file into header-keyed records.
// Parsing is tolerant: lazy quotes, variable field counts per row.
func ReadCSVRecords(path string) ([]map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read %s", path)
	}
	decoded, err := decodeBytes(data)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read header %s", path)
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: read row %s", path)
		}
		rows = append(rows, row)
	}

	return rowsToRecords(header, rows), nil
}

// WriteCSV writes a header row plus records (in header order) to path,
// creating parent directories as needed.
func WriteCSV(path string, header []string, records []map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "fetcher: mkdir for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "fetcher: create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return eris.Wrapf(err, "fetcher: write header %s", path)
	}
	row := make([]string, len(header))
	for _, rec := range records {
		for i, key := range header {
			row[i] = rec[key]
		}
		if err := w.Write(row); err != nil {
			return eris.Wrapf(err, "fetcher: write row %s", path)
		}
	}
	w.Flush()
	return eris.Wrapf(w.Error(), "fetcher: flush %s", path)
}
