package integration

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// ImportChunkSize bounds how many rows are written per batch
const ImportChunkSize = 50

// ParseImportFile reads a CSV or XLSX file with a header row naming the columns
// field, value and optionally timestamp. Rows that cannot be parsed are reported, not fatal.
func ParseImportFile(filename string, file io.Reader, now time.Time) ([]ImportRow, []ImportError, error) {
	var records [][]string
	var err error

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		records, err = readCSV(file)
	case ".xlsx":
		records, err = readExcel(file)
	default:
		return nil, nil, fmt.Errorf("unsupported file format")
	}
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("file is empty")
	}

	cols := map[string]int{}
	for i, h := range records[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	fieldCol, hasField := cols["field"]
	valueCol, hasValue := cols["value"]
	tsCol, hasTS := cols["timestamp"]
	if !hasField || !hasValue {
		return nil, nil, fmt.Errorf("header must contain field and value columns")
	}

	rows := make([]ImportRow, 0, len(records)-1)
	var errs []ImportError

	for i, rec := range records[1:] {
		line := i + 2
		if isBlank(rec) {
			continue
		}

		field := cell(rec, fieldCol)
		if field == "" {
			errs = append(errs, ImportError{Row: line, Message: "field is required"})
			continue
		}

		ts := now
		if hasTS {
			if raw := cell(rec, tsCol); raw != "" {
				parsed, err := parseTimestamp(raw)
				if err != nil {
					errs = append(errs, ImportError{Row: line, Field: field, Message: err.Error()})
					continue
				}
				ts = parsed
			}
		}

		rows = append(rows, ImportRow{Line: line, Field: field, Timestamp: ts, Value: cell(rec, valueCol)})
	}

	return rows, errs, nil
}

// Chunk splits rows into consecutive batches of at most size
func Chunk(rows []ImportRow, size int) [][]ImportRow {
	if size <= 0 {
		size = ImportChunkSize
	}
	chunks := make([][]ImportRow, 0, (len(rows)+size-1)/size)
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, rows[start:end])
	}
	return chunks
}

func readCSV(file io.Reader) ([][]string, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	return records, nil
}

func readExcel(file io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in Excel file")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read Excel rows: %w", err)
	}
	return rows, nil
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
}

func cell(rec []string, idx int) string {
	if idx < len(rec) {
		return strings.TrimSpace(rec[idx])
	}
	return ""
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
