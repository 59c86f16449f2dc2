package integration

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var importNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestParseImportFileCSV(t *testing.T) {
	csvData := strings.Join([]string{
		"Field,Timestamp,Value",
		"revenue,2024-01-01,100000",
		"employees,,10",
		",2024-01-01,5",
		"revenue,yesterday,1",
		"",
	}, "\n")

	rows, errs, err := ParseImportFile("values.csv", strings.NewReader(csvData), importNow)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "revenue", rows[0].Field)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), rows[0].Timestamp)
	assert.Equal(t, "100000", rows[0].Value)
	assert.Equal(t, importNow, rows[1].Timestamp)

	require.Len(t, errs, 2)
	assert.Equal(t, 4, errs[0].Row)
	assert.Equal(t, 5, errs[1].Row)
}

func TestParseImportFileXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"field", "value"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"revenue", 110000}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	rows, errs, err := ParseImportFile("values.xlsx", &buf, importNow)
	require.NoError(t, err)
	assert.Empty(t, errs)
	require.Len(t, rows, 1)
	assert.Equal(t, "110000", rows[0].Value)
}

func TestParseImportFileRejectsBadInput(t *testing.T) {
	_, _, err := ParseImportFile("values.txt", strings.NewReader("x"), importNow)
	assert.Error(t, err)

	_, _, err = ParseImportFile("values.csv", strings.NewReader("name,amount\nrevenue,1"), importNow)
	assert.Error(t, err)
}

func TestChunk(t *testing.T) {
	rows := make([]ImportRow, 120)
	for i := range rows {
		rows[i] = ImportRow{Line: i + 2, Field: fmt.Sprintf("f%d", i)}
	}

	chunks := Chunk(rows, ImportChunkSize)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 50)
	assert.Len(t, chunks[1], 50)
	assert.Len(t, chunks[2], 20)
	assert.Equal(t, "f119", chunks[2][19].Field)

	assert.Empty(t, Chunk(nil, ImportChunkSize))
}
