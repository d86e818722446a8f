package ledger

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Ledger CSV column order. Collaborating loaders are expected to emit this
// exact header; extraction from raw source formats happens upstream.
var ledgerHeader = []string{
	"order_date", "entity_id", "order_id", "quantity", "unit_price",
	"line_revenue", "customer_id", "category_id", "region",
}

// ReadLedger loads a normalized transaction ledger from a CSV file. The week
// key of each row is derived from its order date. Malformed records are
// logged and skipped rather than failing the whole load.
func ReadLedger(path string) ([]TransactionRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read ledger records: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty ledger file %s", path)
	}

	dataStart := 0
	if isHeaderRow(records[0]) {
		dataStart = 1
	}
	if len(records) <= dataStart {
		return nil, fmt.Errorf("ledger file %s contains only a header", path)
	}

	rows := make([]TransactionRow, 0, len(records)-dataStart)
	for i := dataStart; i < len(records); i++ {
		row, err := parseLedgerRecord(records[i], i+1)
		if err != nil {
			slog.Warn("skipping malformed ledger record",
				"file", filepath.Base(path),
				"line", i+1,
				"error", err)
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no valid rows in ledger file %s", path)
	}
	return rows, nil
}

// ReadCatalog loads the optional reference-price table
// (entity_id,reference_price). A missing file is not an error; the cascade
// simply runs without its catalog strategy.
func ReadCatalog(path string) (Catalog, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("catalog file not found, continuing without reference prices", "path", path)
			return nil, nil
		}
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read catalog records: %w", err)
	}

	catalog := make(Catalog)
	for i, rec := range records {
		if len(rec) < 2 {
			continue
		}
		if i == 0 && isHeaderRow(rec) {
			continue
		}
		id := strings.TrimSpace(rec[0])
		price, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil || id == "" {
			slog.Warn("skipping malformed catalog record", "line", i+1)
			continue
		}
		if price > 0 {
			catalog[id] = price
		}
	}
	return catalog, nil
}

func parseLedgerRecord(record []string, lineNum int) (TransactionRow, error) {
	if len(record) < 6 {
		return TransactionRow{}, fmt.Errorf("insufficient columns (line %d): expected at least 6, got %d", lineNum, len(record))
	}

	date, err := parseDate(strings.TrimSpace(record[0]))
	if err != nil {
		return TransactionRow{}, fmt.Errorf("parse order_date (line %d): %w", lineNum, err)
	}

	row := TransactionRow{
		Week:     WeekOf(date),
		EntityID: strings.TrimSpace(record[1]),
		OrderID:  strings.TrimSpace(record[2]),
	}

	row.Quantity, err = parseFloat(record[3], "quantity", lineNum)
	if err != nil {
		return TransactionRow{}, err
	}
	row.UnitPrice, err = parseOptionalFloat(record[4], "unit_price", lineNum)
	if err != nil {
		return TransactionRow{}, err
	}
	row.LineRevenue, err = parseOptionalFloat(record[5], "line_revenue", lineNum)
	if err != nil {
		return TransactionRow{}, err
	}

	if len(record) > 6 {
		row.CustomerID = strings.TrimSpace(record[6])
	}
	if len(record) > 7 {
		row.CategoryID = strings.TrimSpace(record[7])
	}
	if len(record) > 8 {
		row.Region = strings.TrimSpace(record[8])
	}

	if err := row.Validate(); err != nil {
		return TransactionRow{}, err
	}
	return row, nil
}

// parseDate accepts the date formats seen across upstream exports.
func parseDate(dateStr string) (time.Time, error) {
	formats := []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
		"2006/01/02",
		"02/01/2006",
		"01/02/2006",
	}
	for _, format := range formats {
		if date, err := time.Parse(format, dateStr); err == nil {
			return date, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}

func parseFloat(str, fieldName string, lineNum int) (float64, error) {
	str = strings.TrimSpace(str)
	if str == "" {
		return 0, fmt.Errorf("empty %s (line %d)", fieldName, lineNum)
	}
	value, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s (line %d): %w", fieldName, lineNum, err)
	}
	return value, nil
}

// parseOptionalFloat treats blank economic values as zero; the enrichment
// cascade, not the loader, decides what zero means.
func parseOptionalFloat(str, fieldName string, lineNum int) (float64, error) {
	if strings.TrimSpace(str) == "" {
		return 0, nil
	}
	return parseFloat(str, fieldName, lineNum)
}

// isHeaderRow checks whether the first record is a column header.
func isHeaderRow(record []string) bool {
	if len(record) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(record[0]))
	for _, h := range []string{"date", "entity", "sku", "week"} {
		if strings.Contains(first, h) {
			return true
		}
	}
	_, err := parseDate(strings.TrimSpace(record[0]))
	return err != nil
}

// Header returns the canonical ledger CSV header, shared with the exporter.
func Header() []string {
	out := make([]string, len(ledgerHeader))
	copy(out, ledgerHeader)
	return out
}
