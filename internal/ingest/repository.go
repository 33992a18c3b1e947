package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendtrack/vendtrack/internal/platform/db"
)

// TxRepository exposes the per-row write operations executed inside one
// database transaction, so a failed row leaves no partial writes behind.
type TxRepository interface {
	GetOrCreateLocation(ctx context.Context, locationID, name string) (int64, error)
	GetOrCreateProduct(ctx context.Context, upc, name string, price float64) (int64, error)
	InsertSalesFact(ctx context.Context, fact SalesFact) error
	ApplySale(ctx context.Context, locationID, productID int64, quantity int) error
}

// RepositoryPort abstracts persistence for the reconciliation service.
type RepositoryPort interface {
	CreateUpload(ctx context.Context, upload Upload) (int64, error)
	FinalizeUpload(ctx context.Context, id int64, processed, failed int, status UploadStatus, errorLog []RowError) error
	ListUploads(ctx context.Context, limit int) ([]Upload, error)
	LookupLocations(ctx context.Context, locationIDs []string) (map[string]int64, error)
	LookupProducts(ctx context.Context, upcs []string) (map[string]int64, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Repository persists ingestion state in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx runs fn inside a read-committed transaction. All of one row's writes
// commit together or roll back together.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ingest repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// CreateUpload inserts the tracking record in processing state.
func (r *Repository) CreateUpload(ctx context.Context, upload Upload) (int64, error) {
	errorLog, err := marshalErrorLog(upload.ErrorLog)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.pool.QueryRow(ctx, `INSERT INTO csv_uploads (code, filename, vendor_source, total_records, processed_records, failed_records, status, error_log, uploaded_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW()) RETURNING id`,
		upload.Code, upload.Filename, upload.VendorSource, upload.TotalRecords, upload.ProcessedRecords, upload.FailedRecords, string(upload.Status), errorLog, upload.UploadedBy).Scan(&id)
	return id, err
}

// FinalizeUpload writes the terminal counters and status exactly once.
func (r *Repository) FinalizeUpload(ctx context.Context, id int64, processed, failed int, status UploadStatus, errorLog []RowError) error {
	payload, err := marshalErrorLog(errorLog)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE csv_uploads SET processed_records=$1, failed_records=$2, status=$3, error_log=$4, updated_at=NOW()
WHERE id=$5 AND status=$6`,
		processed, failed, string(status), payload, id, string(StatusProcessing))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ingest: upload %d not in processing state", id)
	}
	return nil
}

// ListUploads returns the most recent upload records.
func (r *Repository) ListUploads(ctx context.Context, limit int) ([]Upload, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `SELECT id, code, filename, vendor_source, total_records, processed_records, failed_records, status, error_log, uploaded_by, created_at, updated_at
FROM csv_uploads ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	uploads := []Upload{}
	for rows.Next() {
		var u Upload
		var status string
		var errorLog []byte
		if err := rows.Scan(&u.ID, &u.Code, &u.Filename, &u.VendorSource, &u.TotalRecords, &u.ProcessedRecords, &u.FailedRecords, &status, &errorLog, &u.UploadedBy, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		u.Status = UploadStatus(status)
		if len(errorLog) > 0 {
			if err := json.Unmarshal(errorLog, &u.ErrorLog); err != nil {
				return nil, err
			}
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}

// LookupLocations resolves known location natural keys to ids in one query.
func (r *Repository) LookupLocations(ctx context.Context, locationIDs []string) (map[string]int64, error) {
	return r.lookupKeys(ctx, `SELECT location_id, id FROM locations WHERE location_id = ANY($1)`, locationIDs)
}

// LookupProducts resolves known UPCs to ids in one query.
func (r *Repository) LookupProducts(ctx context.Context, upcs []string) (map[string]int64, error) {
	return r.lookupKeys(ctx, `SELECT upc, id FROM products WHERE upc = ANY($1)`, upcs)
}

func (r *Repository) lookupKeys(ctx context.Context, query string, keys []string) (map[string]int64, error) {
	result := make(map[string]int64, len(keys))
	if len(keys) == 0 {
		return result, nil
	}
	rows, err := r.pool.Query(ctx, query, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var id int64
		if err := rows.Scan(&key, &id); err != nil {
			return nil, err
		}
		result[key] = id
	}
	return result, rows.Err()
}

// GetOrCreateLocation resolves a location by natural key, creating it on first
// sight. The insert-on-conflict round trip keeps lookup-then-create atomic
// under concurrent callers.
func (r *txRepository) GetOrCreateLocation(ctx context.Context, locationID, name string) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `SELECT id FROM locations WHERE location_id=$1`, locationID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	err = r.tx.QueryRow(ctx, `INSERT INTO locations (location_id, name, active, created_at)
VALUES ($1,$2,TRUE,NOW())
ON CONFLICT (location_id) DO NOTHING
RETURNING id`, locationID, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost the race; the winner's row is visible now.
		err = r.tx.QueryRow(ctx, `SELECT id FROM locations WHERE location_id=$1`, locationID).Scan(&id)
	}
	return id, err
}

// GetOrCreateProduct resolves a product by UPC, creating it on first sight.
// Price is first-write-wins: later sightings never update it.
func (r *txRepository) GetOrCreateProduct(ctx context.Context, upc, name string, price float64) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `SELECT id FROM products WHERE upc=$1`, upc).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	err = r.tx.QueryRow(ctx, `INSERT INTO products (upc, name, price, created_at)
VALUES ($1,$2,$3,NOW())
ON CONFLICT (upc) DO NOTHING
RETURNING id`, upc, name, price).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		err = r.tx.QueryRow(ctx, `SELECT id FROM products WHERE upc=$1`, upc).Scan(&id)
	}
	return id, err
}

// InsertSalesFact appends one sales_transactions row.
func (r *txRepository) InsertSalesFact(ctx context.Context, fact SalesFact) error {
	rawData, err := json.Marshal(fact.RawData)
	if err != nil {
		return err
	}
	_, err = r.tx.Exec(ctx, `INSERT INTO sales_transactions (location_id, product_id, quantity_sold, unit_price, total_amount, transaction_date, vendor_source, raw_data, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())`,
		fact.LocationID, fact.ProductID, fact.QuantitySold, fact.UnitPrice, nullAmount(fact.TotalAmount), nullTime(fact.TransactionDate), fact.VendorSource, rawData)
	return err
}

// ApplySale seeds or decrements the inventory row for (location, product) in a
// single conditional upsert, clamping stock at zero.
func (r *txRepository) ApplySale(ctx context.Context, locationID, productID int64, quantity int) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO inventory (location_id, product_id, current_stock, min_stock, max_stock, updated_at)
VALUES ($1,$2,GREATEST(0, 20 - $3),5,50,NOW())
ON CONFLICT (location_id, product_id)
DO UPDATE SET current_stock = GREATEST(0, inventory.current_stock - $3), updated_at = NOW()`,
		locationID, productID, quantity)
	return err
}

func marshalErrorLog(errorLog []RowError) ([]byte, error) {
	if errorLog == nil {
		errorLog = []RowError{}
	}
	return json.Marshal(errorLog)
}

func nullAmount(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
