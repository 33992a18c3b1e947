package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/vendtrack/vendtrack/internal/inventory"
)

// LowStockLister is the slice of the inventory service the scan needs.
type LowStockLister interface {
	ListLowStock(ctx context.Context, limit int) ([]inventory.LowStockItem, error)
}

// LowStockScanJob reports inventory rows sitting at or below their minimum,
// so operators can restock before a machine sells out.
type LowStockScanJob struct {
	Lister LowStockLister
	Logger *slog.Logger
}

// NewLowStockScanJob initialises the low-stock scan handler.
func NewLowStockScanJob(lister LowStockLister, logger *slog.Logger) *LowStockScanJob {
	return &LowStockScanJob{Lister: lister, Logger: logger}
}

// Handle executes the low-stock scan.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Lister == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Limit <= 0 {
		payload.Limit = 100
	}

	start := time.Now()
	logger := j.logger().With(slog.Int("limit", payload.Limit))
	logger.Info("starting low stock scan")

	items, err := j.Lister.ListLowStock(ctx, payload.Limit)
	if err != nil {
		logger.Error("scan failed", slog.Any("error", err))
		return err
	}

	for _, item := range items {
		logger.Warn("low stock detected",
			slog.String("location", item.LocationCode),
			slog.String("product", item.ProductName),
			slog.Int("current_stock", item.CurrentStock),
			slog.Int("min_stock", item.MinStock),
		)
	}

	logger.Info("completed low stock scan",
		slog.Int("flagged", len(items)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskInventoryLowStockScan))
	}
	return slog.Default().With(slog.String("job", TaskInventoryLowStockScan))
}
