package ingest

import (
	"errors"
	"time"
)

// UploadStatus tracks the lifecycle of one ingested file.
type UploadStatus string

const (
	// StatusProcessing is the initial state while rows are reconciled.
	StatusProcessing UploadStatus = "processing"
	// StatusCompleted means at least one row was reconciled successfully.
	StatusCompleted UploadStatus = "completed"
	// StatusFailed means no row made it through.
	StatusFailed UploadStatus = "failed"
)

// RawRow maps a header name to the raw cell value of one CSV data line.
type RawRow map[string]string

// Transaction is one normalized vendor sale, derived from a RawRow. It is
// never persisted as-is; reconciliation consumes it into the relational facts.
type Transaction struct {
	Row             int       `json:"row"`
	LocationID      string    `json:"locationId"`
	UPC             string    `json:"upc"`
	ProductName     string    `json:"productName"`
	QuantitySold    int       `json:"quantitySold"`
	UnitPrice       float64   `json:"unitPrice"`
	TotalAmount     float64   `json:"totalAmount"`
	TransactionDate time.Time `json:"transactionDate"`
	VendorSource    string    `json:"vendorSource"`
	RawData         RawRow    `json:"rawData"`
}

// RowError reports a single failed row, at parse or reconciliation time.
// Row is the 1-based data line number, excluding the header.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
	Data    RawRow `json:"data"`
}

// ParseResult is the outcome of decoding one CSV file.
type ParseResult struct {
	VendorFormat  string
	Data          []Transaction
	TotalRows     int
	ProcessedRows int
	FailedRows    int
	Errors        []RowError
}

// Upload mirrors one csv_uploads row.
type Upload struct {
	ID               int64        `json:"id"`
	Code             string       `json:"code"`
	Filename         string       `json:"filename"`
	VendorSource     string       `json:"vendor_source"`
	TotalRecords     int          `json:"total_records"`
	ProcessedRecords int          `json:"processed_records"`
	FailedRecords    int          `json:"failed_records"`
	Status           UploadStatus `json:"status"`
	ErrorLog         []RowError   `json:"error_log"`
	UploadedBy       string       `json:"uploaded_by"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// UploadSummary is the synchronous response for one ingested file.
type UploadSummary struct {
	UploadID      int64      `json:"uploadId"`
	TotalRows     int        `json:"totalRows"`
	ProcessedRows int        `json:"processedRows"`
	FailedRows    int        `json:"failedRows"`
	VendorFormat  string     `json:"vendorFormat"`
	Errors        []RowError `json:"errors"`
}

// SalesFact is one sales_transactions insert, referencing resolved ids.
type SalesFact struct {
	LocationID      int64
	ProductID       int64
	QuantitySold    int
	UnitPrice       float64
	TotalAmount     float64
	TransactionDate time.Time
	VendorSource    string
	RawData         RawRow
}

// ErrMalformedCSV indicates the payload could not be tokenized as CSV at all.
// Per-row validation failures never produce it.
var ErrMalformedCSV = errors.New("ingest: malformed csv payload")

const (
	// unknownFormatMessage is attached to every row of an undetected file.
	unknownFormatMessage = "Unknown vendor format"
	// missingFieldsMessage is attached to rows failing required-field checks.
	missingFieldsMessage = "missing required fields"
)
