package ingest

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vendtrack/vendtrack/internal/shared"
)

type memProduct struct {
	id    int64
	name  string
	price float64
}

type invKey struct {
	locationID int64
	productID  int64
}

type invRow struct {
	currentStock int
	minStock     int
	maxStock     int
	updates      int
}

// memIngestRepo mirrors the relational semantics in memory: get-or-create by
// natural key, zero-clamped inventory, and all-or-nothing row transactions.
type memIngestRepo struct {
	nextID    int64
	uploads   map[int64]*Upload
	locations map[string]int64
	products  map[string]memProduct
	facts     []SalesFact
	inventory map[invKey]*invRow

	createUploadErr error
}

func newMemIngestRepo() *memIngestRepo {
	return &memIngestRepo{
		uploads:   map[int64]*Upload{},
		locations: map[string]int64{},
		products:  map[string]memProduct{},
		inventory: map[invKey]*invRow{},
	}
}

func (m *memIngestRepo) CreateUpload(_ context.Context, upload Upload) (int64, error) {
	if m.createUploadErr != nil {
		return 0, m.createUploadErr
	}
	m.nextID++
	upload.ID = m.nextID
	m.uploads[upload.ID] = &upload
	return upload.ID, nil
}

func (m *memIngestRepo) FinalizeUpload(_ context.Context, id int64, processed, failed int, status UploadStatus, errorLog []RowError) error {
	upload, ok := m.uploads[id]
	if !ok || upload.Status != StatusProcessing {
		return errors.New("upload not in processing state")
	}
	upload.ProcessedRecords = processed
	upload.FailedRecords = failed
	upload.Status = status
	upload.ErrorLog = errorLog
	return nil
}

func (m *memIngestRepo) ListUploads(_ context.Context, limit int) ([]Upload, error) {
	out := []Upload{}
	for _, u := range m.uploads {
		out = append(out, *u)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memIngestRepo) LookupLocations(_ context.Context, locationIDs []string) (map[string]int64, error) {
	out := map[string]int64{}
	for _, key := range locationIDs {
		if id, ok := m.locations[key]; ok {
			out[key] = id
		}
	}
	return out, nil
}

func (m *memIngestRepo) LookupProducts(_ context.Context, upcs []string) (map[string]int64, error) {
	out := map[string]int64{}
	for _, upc := range upcs {
		if p, ok := m.products[upc]; ok {
			out[upc] = p.id
		}
	}
	return out, nil
}

func (m *memIngestRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := m.snapshot()
	if err := fn(ctx, (*memIngestTx)(m)); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

func (m *memIngestRepo) snapshot() *memIngestRepo {
	s := newMemIngestRepo()
	s.nextID = m.nextID
	for k, v := range m.locations {
		s.locations[k] = v
	}
	for k, v := range m.products {
		s.products[k] = v
	}
	s.facts = append([]SalesFact(nil), m.facts...)
	for k, v := range m.inventory {
		row := *v
		s.inventory[k] = &row
	}
	return s
}

func (m *memIngestRepo) restore(s *memIngestRepo) {
	m.nextID = s.nextID
	m.locations = s.locations
	m.products = s.products
	m.facts = s.facts
	m.inventory = s.inventory
}

type memIngestTx memIngestRepo

func (t *memIngestTx) GetOrCreateLocation(_ context.Context, locationID, _ string) (int64, error) {
	if id, ok := t.locations[locationID]; ok {
		return id, nil
	}
	t.nextID++
	t.locations[locationID] = t.nextID
	return t.nextID, nil
}

func (t *memIngestTx) GetOrCreateProduct(_ context.Context, upc, name string, price float64) (int64, error) {
	if p, ok := t.products[upc]; ok {
		return p.id, nil
	}
	t.nextID++
	t.products[upc] = memProduct{id: t.nextID, name: name, price: price}
	return t.nextID, nil
}

func (t *memIngestTx) InsertSalesFact(_ context.Context, fact SalesFact) error {
	if fact.RawData["Scancode"] == "FAILME" {
		return errors.New("insert rejected")
	}
	t.facts = append(t.facts, fact)
	return nil
}

func (t *memIngestTx) ApplySale(_ context.Context, locationID, productID int64, quantity int) error {
	key := invKey{locationID: locationID, productID: productID}
	row, ok := t.inventory[key]
	if !ok {
		stock := 20 - quantity
		if stock < 0 {
			stock = 0
		}
		t.inventory[key] = &invRow{currentStock: stock, minStock: 5, maxStock: 50, updates: 1}
		return nil
	}
	row.currentStock -= quantity
	if row.currentStock < 0 {
		row.currentStock = 0
	}
	row.updates++
	return nil
}

type memIngestAudit struct {
	logs []shared.AuditLog
}

func (m *memIngestAudit) Record(_ context.Context, log shared.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func vendorAPayload(rows ...string) []byte {
	payload := "Location_ID,Scancode,Product_Name,Price,Trans_Date\n"
	for _, row := range rows {
		payload += row + "\n"
	}
	return []byte(payload)
}

func TestIngestFileReusesOneLocationPerKey(t *testing.T) {
	repo := newMemIngestRepo()
	svc := NewService(repo, nil, testLogger())

	rows := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		rows = append(rows, "L9,0001,Chips,1.50,2026-08-01")
	}
	summary, err := svc.IngestFile(context.Background(), vendorAPayload(rows...), "sales.csv", "1")
	require.NoError(t, err)

	require.Equal(t, 10, summary.TotalRows)
	require.Equal(t, 10, summary.ProcessedRows)
	require.Equal(t, 0, summary.FailedRows)
	require.Equal(t, "vendor_a", summary.VendorFormat)
	require.Empty(t, summary.Errors)

	require.Len(t, repo.locations, 1)
	require.Len(t, repo.products, 1)
	require.Len(t, repo.facts, 10)
}

func TestIngestFileSeedsAndClampsInventory(t *testing.T) {
	repo := newMemIngestRepo()
	svc := NewService(repo, nil, testLogger())

	// 22 unit sales of one product: seeded at 19, decremented 21 more times,
	// floor at zero instead of going to -2.
	rows := make([]string, 0, 22)
	for i := 0; i < 22; i++ {
		rows = append(rows, "L1,0002,Soda,2.00,2026-08-01")
	}
	summary, err := svc.IngestFile(context.Background(), vendorAPayload(rows...), "sales.csv", "1")
	require.NoError(t, err)
	require.Equal(t, 22, summary.ProcessedRows)

	require.Len(t, repo.inventory, 1)
	for _, row := range repo.inventory {
		require.Equal(t, 0, row.currentStock)
		require.Equal(t, 5, row.minStock)
		require.Equal(t, 50, row.maxStock)
		require.Equal(t, 22, row.updates)
	}
}

func TestIngestFileProductPriceFirstWriteWins(t *testing.T) {
	repo := newMemIngestRepo()
	svc := NewService(repo, nil, testLogger())

	_, err := svc.IngestFile(context.Background(), vendorAPayload(
		"L1,0003,Candy,1.00,2026-08-01",
		"L1,0003,Candy,9.99,2026-08-02",
	), "sales.csv", "1")
	require.NoError(t, err)

	require.Equal(t, 1.00, repo.products["0003"].price)
}

func TestIngestFilePerRowIsolation(t *testing.T) {
	repo := newMemIngestRepo()
	svc := NewService(repo, nil, testLogger())

	summary, err := svc.IngestFile(context.Background(), vendorAPayload(
		"L1,0004,Chips,1.50,2026-08-01",
		"L1,FAILME,Broken,1.00,2026-08-01",
		"L1,0005,Soda,2.00,2026-08-01",
	), "sales.csv", "1")
	require.NoError(t, err)

	require.Equal(t, 3, summary.TotalRows)
	require.Equal(t, 2, summary.ProcessedRows)
	require.Equal(t, 1, summary.FailedRows)
	require.Len(t, summary.Errors, 1)
	require.Equal(t, 2, summary.Errors[0].Row)

	// the failed row's product creation rolled back with the rest of it
	_, exists := repo.products["FAILME"]
	require.False(t, exists)
	require.Len(t, repo.facts, 2)
	require.Len(t, repo.inventory, 2)
	require.Equal(t, StatusCompleted, repo.uploads[summary.UploadID].Status)
}

func TestIngestFileStatusFailedWhenNothingSurvives(t *testing.T) {
	repo := newMemIngestRepo()
	svc := NewService(repo, nil, testLogger())

	summary, err := svc.IngestFile(context.Background(), vendorAPayload(
		"L1,FAILME,Broken,1.00,2026-08-01",
	), "sales.csv", "1")
	require.NoError(t, err)

	require.Zero(t, summary.ProcessedRows)
	require.Equal(t, 1, summary.FailedRows)
	require.Equal(t, StatusFailed, repo.uploads[summary.UploadID].Status)
}

func TestIngestFileErrorLogOrdering(t *testing.T) {
	repo := newMemIngestRepo()
	svc := NewService(repo, nil, testLogger())

	// row 2 fails parsing, row 3 fails reconciliation; parse errors come
	// first even though row 3 is reported later in the pipeline.
	summary, err := svc.IngestFile(context.Background(), vendorAPayload(
		"L1,0006,Chips,1.50,2026-08-01",
		",0007,Soda,2.00,2026-08-01",
		"L1,FAILME,Broken,1.00,2026-08-01",
	), "sales.csv", "1")
	require.NoError(t, err)

	require.Equal(t, 1, summary.ProcessedRows)
	require.Equal(t, 2, summary.FailedRows)
	require.Len(t, summary.Errors, 2)
	require.Equal(t, 2, summary.Errors[0].Row)
	require.Equal(t, "missing required fields", summary.Errors[0].Message)
	require.Equal(t, 3, summary.Errors[1].Row)

	stored := repo.uploads[summary.UploadID]
	require.Equal(t, summary.Errors, stored.ErrorLog)
}

func TestIngestFileExistingKeysPrefetched(t *testing.T) {
	repo := newMemIngestRepo()
	repo.nextID = 100
	repo.locations["L1"] = 100
	repo.products["0008"] = memProduct{id: 100, name: "Chips", price: 1.50}
	svc := NewService(repo, nil, testLogger())

	_, err := svc.IngestFile(context.Background(), vendorAPayload(
		"L1,0008,Chips,1.50,2026-08-01",
	), "sales.csv", "1")
	require.NoError(t, err)

	require.Len(t, repo.locations, 1)
	require.Equal(t, int64(100), repo.facts[0].LocationID)
	require.Equal(t, int64(100), repo.facts[0].ProductID)
}

func TestIngestFileDecrementsExistingInventory(t *testing.T) {
	repo := newMemIngestRepo()
	repo.nextID = 101
	repo.locations["L1"] = 100
	repo.products["0008"] = memProduct{id: 101, name: "Chips", price: 1.50}
	key := invKey{locationID: 100, productID: 101}
	repo.inventory[key] = &invRow{currentStock: 3, minStock: 5, maxStock: 50}
	svc := NewService(repo, nil, testLogger())

	_, err := svc.IngestFile(context.Background(), vendorAPayload(
		"L1,0008,Chips,1.50,2026-08-01",
		"L1,0008,Chips,1.50,2026-08-01",
	), "sales.csv", "1")
	require.NoError(t, err)

	require.Equal(t, 1, repo.inventory[key].currentStock)
	require.Equal(t, 2, repo.inventory[key].updates)

	// A second batch drains the row; the decrement clamps at zero.
	_, err = svc.IngestFile(context.Background(), vendorAPayload(
		"L1,0008,Chips,1.50,2026-08-02",
		"L1,0008,Chips,1.50,2026-08-02",
	), "sales.csv", "1")
	require.NoError(t, err)

	require.Equal(t, 0, repo.inventory[key].currentStock)
	require.Equal(t, 4, repo.inventory[key].updates)
	require.Len(t, repo.inventory, 1)
}

func TestIngestFileUnknownFormatPersisted(t *testing.T) {
	repo := newMemIngestRepo()
	svc := NewService(repo, nil, testLogger())

	summary, err := svc.IngestFile(context.Background(), []byte("Store,Barcode\nA,111\n"), "mystery.csv", "1")
	require.NoError(t, err)

	require.Equal(t, "unknown", summary.VendorFormat)
	require.Equal(t, 1, summary.FailedRows)
	require.Equal(t, "Unknown vendor format", summary.Errors[0].Message)
	require.Equal(t, StatusFailed, repo.uploads[summary.UploadID].Status)
	require.Empty(t, repo.facts)
}

func TestIngestFileMalformedPayloadHasNoUploadRecord(t *testing.T) {
	repo := newMemIngestRepo()
	svc := NewService(repo, nil, testLogger())

	_, err := svc.IngestFile(context.Background(), []byte("Location_ID,Trans_Date\n\"broken\n"), "bad.csv", "1")
	require.ErrorIs(t, err, ErrMalformedCSV)
	require.Empty(t, repo.uploads)
}

func TestReconcileCreateUploadFailureIsFatal(t *testing.T) {
	repo := newMemIngestRepo()
	repo.createUploadErr = errors.New("db down")
	svc := NewService(repo, nil, testLogger())

	_, err := svc.IngestFile(context.Background(), vendorAPayload("L1,0009,Chips,1.50,2026-08-01"), "sales.csv", "1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "create upload record")
	require.Empty(t, repo.facts)
}

func TestIngestFileRecordsAudit(t *testing.T) {
	repo := newMemIngestRepo()
	audit := &memIngestAudit{}
	svc := NewService(repo, audit, testLogger())

	_, err := svc.IngestFile(context.Background(), vendorAPayload("L1,0010,Chips,1.50,2026-08-01"), "sales.csv", "42")
	require.NoError(t, err)

	require.Len(t, audit.logs, 1)
	require.Equal(t, "csv:ingest", audit.logs[0].Action)
	require.Equal(t, int64(42), audit.logs[0].ActorID)
	require.Equal(t, "sales.csv", audit.logs[0].Meta["filename"])
}
