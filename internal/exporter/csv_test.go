package exporter

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSimpleCSV(t *testing.T) {
	dir := t.TempDir()
	writer := NewCSVWriter(dir)

	err := writer.WriteSimpleCSV("out.csv",
		[]string{"entity_id", "qty"},
		[][]string{{"SKU-1", "10.00"}, {"SKU-2", "3.50"}})
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "out.csv"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(content), "\xEF\xBB\xBF"),
		"BOM prefix for Excel compatibility")

	reader := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(content), "\xEF\xBB\xBF")))
	records, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"entity_id", "qty"}, records[0])
	assert.Equal(t, []string{"SKU-2", "3.50"}, records[2])
}

func TestWriteCSVAppend(t *testing.T) {
	dir := t.TempDir()
	writer := NewCSVWriter(dir)

	require.NoError(t, writer.WriteSimpleCSV("out.csv",
		[]string{"a"}, [][]string{{"1"}}))
	require.NoError(t, writer.WriteCSV("out.csv", WriteOptions{
		Records: [][]string{{"2"}},
		Append:  true,
	}))

	content, err := os.ReadFile(filepath.Join(dir, "out.csv"))
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(content), "\n"), "header plus two rows")
}

func TestWriteCSVCreatesNestedDirectories(t *testing.T) {
	dir := t.TempDir()
	writer := NewCSVWriter(dir)

	err := writer.WriteSimpleCSV(filepath.Join("nested", "deep", "out.csv"),
		[]string{"a"}, nil)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "nested", "deep", "out.csv"))
}

func TestWriteCSVAbsolutePathPassesThrough(t *testing.T) {
	target := filepath.Join(t.TempDir(), "abs.csv")
	writer := NewCSVWriter("/somewhere/else")

	require.NoError(t, writer.WriteSimpleCSV(target, []string{"a"}, nil))
	assert.FileExists(t, target)
}

func TestStreamWriter(t *testing.T) {
	dir := t.TempDir()
	writer := NewCSVWriter(dir)

	stream, err := writer.CreateStreamWriter("stream.csv", []string{"entity_id", "week_id"})
	require.NoError(t, err)

	require.NoError(t, stream.WriteRecord([]string{"SKU-1", "2024-W01"}))
	require.NoError(t, stream.WriteRecord([]string{"SKU-1", "2024-W02"}))
	require.NoError(t, stream.Close())

	content, err := os.ReadFile(filepath.Join(dir, "stream.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "entity_id,week_id")
	assert.Contains(t, string(content), "SKU-1,2024-W02")
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "13.40", formatFloat(13.4))
	assert.Equal(t, "0.2500", formatFloat4(0.25))
	assert.Equal(t, "7", formatInt(7))
}
