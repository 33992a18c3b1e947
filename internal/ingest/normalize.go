package ingest

import (
	"math"
	"strconv"
	"time"
)

// dateLayouts cover the formats seen in vendor exports. Tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	time.RFC3339,
}

// NormalizeRow maps one raw row, under a detected schema, into a canonical
// Transaction. rowNum is the 1-based data line number used for error reports.
//
// A required field fails validation when every alias is absent or holds an
// empty string; an unparseable price resolves to NaN and fails the same check.
// An unparseable transaction date is carried as a zero time, not rejected;
// downstream consumers tolerate it.
func NormalizeRow(row RawRow, rowNum int, schema VendorSchema) (Transaction, *RowError) {
	txn := Transaction{
		Row:             rowNum,
		LocationID:      firstPresent(row, schema.Fields.LocationID),
		UPC:             firstPresent(row, schema.Fields.UPC),
		ProductName:     firstPresent(row, schema.Fields.ProductName),
		QuantitySold:    1,
		UnitPrice:       parseAmount(firstPresent(row, schema.Fields.UnitPrice)),
		TotalAmount:     parseAmount(firstPresent(row, schema.Fields.TotalAmount)),
		TransactionDate: parseDate(firstPresent(row, schema.Fields.TransactionDate)),
		VendorSource:    schema.Name,
		RawData:         row,
	}

	if txn.UPC == "" || txn.LocationID == "" || !isFinite(txn.UnitPrice) {
		return Transaction{}, &RowError{Row: rowNum, Message: missingFieldsMessage, Data: row}
	}
	return txn, nil
}

// firstPresent resolves a value by first-present-wins over the alias list.
// A key mapped to an empty string counts as absent.
func firstPresent(row RawRow, aliases []string) string {
	for _, name := range aliases {
		if value, ok := row[name]; ok && value != "" {
			return value
		}
	}
	return ""
}

func parseAmount(value string) float64 {
	if value == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

func parseDate(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
