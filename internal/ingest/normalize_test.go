package ingest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func vendorASchema(t *testing.T) VendorSchema {
	t.Helper()
	for _, s := range Schemas() {
		if s.Key == "vendor_a" {
			return s
		}
	}
	t.Fatal("vendor_a schema not registered")
	return VendorSchema{}
}

func vendorBSchema(t *testing.T) VendorSchema {
	t.Helper()
	for _, s := range Schemas() {
		if s.Key == "vendor_b" {
			return s
		}
	}
	t.Fatal("vendor_b schema not registered")
	return VendorSchema{}
}

func TestNormalizeRowVendorA(t *testing.T) {
	row := RawRow{
		"Location_ID":  "L1",
		"Scancode":     "012345",
		"Product_Name": "Chips",
		"Price":        "1.50",
		"Total_Amount": "1.50",
		"Trans_Date":   "2026-08-01",
	}
	txn, rowErr := NormalizeRow(row, 3, vendorASchema(t))
	require.Nil(t, rowErr)
	require.Equal(t, 3, txn.Row)
	require.Equal(t, "L1", txn.LocationID)
	require.Equal(t, "012345", txn.UPC)
	require.Equal(t, "Chips", txn.ProductName)
	require.Equal(t, 1, txn.QuantitySold)
	require.Equal(t, 1.5, txn.UnitPrice)
	require.Equal(t, 1.5, txn.TotalAmount)
	require.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), txn.TransactionDate)
	require.Equal(t, "Vendor A", txn.VendorSource)
	require.Equal(t, row, txn.RawData)
}

func TestNormalizeRowAliasFirstPresentWins(t *testing.T) {
	// Scancode is listed before UPC for vendor_a, so it wins when both exist.
	row := RawRow{
		"Location_ID": "L1",
		"Scancode":    "first",
		"UPC":         "second",
		"Price":       "2.00",
		"Trans_Date":  "2026-08-01",
	}
	txn, rowErr := NormalizeRow(row, 1, vendorASchema(t))
	require.Nil(t, rowErr)
	require.Equal(t, "first", txn.UPC)
}

func TestNormalizeRowEmptyAliasCountsAsAbsent(t *testing.T) {
	// Scancode present but empty falls through to the UPC alias.
	row := RawRow{
		"Location_ID": "L1",
		"Scancode":    "",
		"UPC":         "99999",
		"Price":       "2.00",
		"Trans_Date":  "2026-08-01",
	}
	txn, rowErr := NormalizeRow(row, 1, vendorASchema(t))
	require.Nil(t, rowErr)
	require.Equal(t, "99999", txn.UPC)
}

func TestNormalizeRowMissingRequiredFields(t *testing.T) {
	cases := map[string]RawRow{
		"no upc": {
			"Location_ID": "L1",
			"Price":       "1.00",
			"Trans_Date":  "2026-08-01",
		},
		"no location": {
			"Scancode":   "012345",
			"Price":      "1.00",
			"Trans_Date": "2026-08-01",
		},
		"bad price": {
			"Location_ID": "L1",
			"Scancode":    "012345",
			"Price":       "free",
			"Trans_Date":  "2026-08-01",
		},
		"no price": {
			"Location_ID": "L1",
			"Scancode":    "012345",
			"Trans_Date":  "2026-08-01",
		},
	}
	for name, row := range cases {
		t.Run(name, func(t *testing.T) {
			_, rowErr := NormalizeRow(row, 5, vendorASchema(t))
			require.NotNil(t, rowErr)
			require.Equal(t, 5, rowErr.Row)
			require.Equal(t, "missing required fields", rowErr.Message)
			require.Equal(t, row, rowErr.Data)
		})
	}
}

func TestNormalizeRowInvalidDateTolerated(t *testing.T) {
	row := RawRow{
		"Site_Code":  "S7",
		"UPC":        "4567",
		"Unit_Price": "3.25",
		"Sale_Date":  "not a date",
	}
	txn, rowErr := NormalizeRow(row, 2, vendorBSchema(t))
	require.Nil(t, rowErr)
	require.True(t, txn.TransactionDate.IsZero())
	require.Equal(t, "Vendor B", txn.VendorSource)
}

func TestNormalizeRowMissingTotalAmountIsNaN(t *testing.T) {
	row := RawRow{
		"Site_Code":  "S7",
		"UPC":        "4567",
		"Unit_Price": "3.25",
		"Sale_Date":  "2026-08-01",
	}
	txn, rowErr := NormalizeRow(row, 1, vendorBSchema(t))
	require.Nil(t, rowErr)
	require.True(t, math.IsNaN(txn.TotalAmount))
}

func TestParseDateLayouts(t *testing.T) {
	cases := map[string]time.Time{
		"2026-08-01":          time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		"2026-08-01 13:45:00": time.Date(2026, 8, 1, 13, 45, 0, 0, time.UTC),
		"08/01/2026":          time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		"8/1/2026":            time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		"2026/08/01":          time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
	for input, want := range cases {
		require.Equal(t, want, parseDate(input), "layout for %q", input)
	}
	require.True(t, parseDate("").IsZero())
	require.True(t, parseDate("31-31-2026").IsZero())
}
