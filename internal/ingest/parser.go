package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ParseCSV decodes raw file bytes into a ParseResult: it tokenizes the payload
// as header-delimited CSV, detects the vendor schema from the header row, and
// normalizes every data row independently. One row's failure never aborts the
// batch; counts are derived (TotalRows = ProcessedRows + FailedRows).
//
// The only fatal outcome is a payload that cannot be tokenized as CSV at all,
// reported as ErrMalformedCSV. An undetected header set is not fatal: the
// whole file is returned as failed rows under the "unknown" format.
func ParseCSV(fileBytes []byte) (ParseResult, error) {
	headers, rows, err := readRecords(fileBytes)
	if err != nil {
		return ParseResult{}, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
	}

	schema, ok := DetectVendor(headers)
	if !ok {
		result := ParseResult{
			VendorFormat: "unknown",
			TotalRows:    len(rows),
			FailedRows:   len(rows),
		}
		for i, row := range rows {
			result.Errors = append(result.Errors, RowError{
				Row:     i + 1,
				Message: unknownFormatMessage,
				Data:    row,
			})
		}
		return result, nil
	}

	result := ParseResult{VendorFormat: schema.Key, TotalRows: len(rows)}
	for i, row := range rows {
		txn, rowErr := NormalizeRow(row, i+1, schema)
		if rowErr != nil {
			result.Errors = append(result.Errors, *rowErr)
			continue
		}
		result.Data = append(result.Data, txn)
	}
	result.ProcessedRows = len(result.Data)
	result.FailedRows = len(result.Errors)
	return result, nil
}

// readRecords tokenizes the payload as UTF-8 CSV with a leading header row.
// A byte-order mark is tolerated and stripped; fully blank lines are skipped
// by the csv reader; ragged rows are padded with empty values.
func readRecords(fileBytes []byte) ([]string, []RawRow, error) {
	decoder := unicode.UTF8BOM.NewDecoder()
	reader := csv.NewReader(transform.NewReader(bytes.NewReader(fileBytes), decoder))
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	var rows []RawRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		row := make(RawRow, len(headers))
		for i, header := range headers {
			if i < len(record) {
				row[header] = record[i]
			} else {
				row[header] = ""
			}
		}
		rows = append(rows, row)
	}
	return headers, rows, nil
}
