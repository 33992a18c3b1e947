package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/vendtrack/vendtrack/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service drives the ingestion pipeline: parse, reconcile, finalize.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// IngestFile parses raw file bytes and reconciles the result. The call is
// synchronous: it returns only after every row has been attempted and the
// upload record is finalized.
func (s *Service) IngestFile(ctx context.Context, fileBytes []byte, filename, uploadedBy string) (UploadSummary, error) {
	parseResult, err := ParseCSV(fileBytes)
	if err != nil {
		return UploadSummary{}, err
	}
	return s.Reconcile(ctx, parseResult, filename, uploadedBy)
}

// Reconcile consumes a parse result: it creates the upload tracking record,
// reconciles each transaction independently and in sequence, then finalizes
// the record with aggregate counts and the combined error log (parse errors
// first, reconciliation errors after, insertion order preserved).
//
// A failure to create the tracking record is fatal for the whole request.
// Everything after that point is isolated per row.
func (s *Service) Reconcile(ctx context.Context, parseResult ParseResult, filename, uploadedBy string) (UploadSummary, error) {
	upload := Upload{
		Code:          uuid.NewString(),
		Filename:      filename,
		VendorSource:  parseResult.VendorFormat,
		TotalRecords:  parseResult.TotalRows,
		FailedRecords: parseResult.FailedRows,
		Status:        StatusProcessing,
		ErrorLog:      parseResult.Errors,
		UploadedBy:    uploadedBy,
	}
	uploadID, err := s.repo.CreateUpload(ctx, upload)
	if err != nil {
		return UploadSummary{}, fmt.Errorf("ingest: create upload record: %w", err)
	}

	locationIDs, productIDs := s.prefetchKeys(ctx, parseResult.Data)

	processed := 0
	var reconcileErrors []RowError
	for _, txn := range parseResult.Data {
		if err := s.reconcileOne(ctx, txn, locationIDs, productIDs); err != nil {
			s.logger.Warn("reconcile row failed",
				slog.Int("row", txn.Row),
				slog.String("location_id", txn.LocationID),
				slog.String("upc", txn.UPC),
				slog.Any("error", err))
			reconcileErrors = append(reconcileErrors, RowError{Row: txn.Row, Message: err.Error(), Data: txn.RawData})
			continue
		}
		processed++
	}

	status := StatusFailed
	if processed > 0 {
		status = StatusCompleted
	}
	failed := parseResult.FailedRows + len(reconcileErrors)
	errorLog := make([]RowError, 0, len(parseResult.Errors)+len(reconcileErrors))
	errorLog = append(errorLog, parseResult.Errors...)
	errorLog = append(errorLog, reconcileErrors...)

	if err := s.repo.FinalizeUpload(ctx, uploadID, processed, failed, status, errorLog); err != nil {
		s.logger.Error("finalize upload", slog.Int64("upload_id", uploadID), slog.Any("error", err))
	}

	if s.audit != nil {
		actorID, _ := strconv.ParseInt(uploadedBy, 10, 64)
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "csv:ingest",
			Entity:   "csv_uploads",
			EntityID: upload.Code,
			Meta: map[string]any{
				"filename":      filename,
				"vendor_format": parseResult.VendorFormat,
				"total":         parseResult.TotalRows,
				"processed":     processed,
				"failed":        failed,
			},
		})
	}

	return UploadSummary{
		UploadID:      uploadID,
		TotalRows:     parseResult.TotalRows,
		ProcessedRows: processed,
		FailedRows:    failed,
		VendorFormat:  parseResult.VendorFormat,
		Errors:        errorLog,
	}, nil
}

// ListUploads returns recent upload records for the history view.
func (s *Service) ListUploads(ctx context.Context, limit int) ([]Upload, error) {
	return s.repo.ListUploads(ctx, limit)
}

// reconcileOne runs all four writes of a single transaction inside one
// database transaction: resolve-or-create location and product, append the
// sales fact, apply the inventory movement. Any step's failure rolls back the
// whole row. The natural-key caches are only promoted after a commit, so a
// rolled-back creation is retried by the next row that references the key.
func (s *Service) reconcileOne(ctx context.Context, txn Transaction, locationIDs, productIDs map[string]int64) error {
	locationID, locationCached := locationIDs[txn.LocationID]
	productID, productCached := productIDs[txn.UPC]

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		if !locationCached {
			locationID, err = tx.GetOrCreateLocation(ctx, txn.LocationID, "Location "+txn.LocationID)
			if err != nil {
				return fmt.Errorf("location %s: %w", txn.LocationID, err)
			}
		}
		if !productCached {
			productID, err = tx.GetOrCreateProduct(ctx, txn.UPC, txn.ProductName, txn.UnitPrice)
			if err != nil {
				return fmt.Errorf("product %s: %w", txn.UPC, err)
			}
		}
		fact := SalesFact{
			LocationID:      locationID,
			ProductID:       productID,
			QuantitySold:    txn.QuantitySold,
			UnitPrice:       txn.UnitPrice,
			TotalAmount:     txn.TotalAmount,
			TransactionDate: txn.TransactionDate,
			VendorSource:    txn.VendorSource,
			RawData:         txn.RawData,
		}
		if err := tx.InsertSalesFact(ctx, fact); err != nil {
			return fmt.Errorf("sales transaction: %w", err)
		}
		if err := tx.ApplySale(ctx, locationID, productID, txn.QuantitySold); err != nil {
			return fmt.Errorf("inventory: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	locationIDs[txn.LocationID] = locationID
	productIDs[txn.UPC] = productID
	return nil
}

// prefetchKeys resolves already-known natural keys once per file, so rows
// referencing existing locations/products skip the per-row lookup. Prefetch
// failures degrade to per-row resolution instead of failing the batch.
func (s *Service) prefetchKeys(ctx context.Context, data []Transaction) (map[string]int64, map[string]int64) {
	locationKeys := distinctKeys(data, func(t Transaction) string { return t.LocationID })
	productKeys := distinctKeys(data, func(t Transaction) string { return t.UPC })

	locationIDs, err := s.repo.LookupLocations(ctx, locationKeys)
	if err != nil {
		s.logger.Warn("prefetch locations", slog.Any("error", err))
		locationIDs = make(map[string]int64)
	}
	productIDs, err := s.repo.LookupProducts(ctx, productKeys)
	if err != nil {
		s.logger.Warn("prefetch products", slog.Any("error", err))
		productIDs = make(map[string]int64)
	}
	return locationIDs, productIDs
}

func distinctKeys(data []Transaction, key func(Transaction) string) []string {
	seen := make(map[string]struct{}, len(data))
	keys := make([]string, 0, len(data))
	for _, txn := range data {
		k := key(txn)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

var _ RepositoryPort = (*Repository)(nil)
