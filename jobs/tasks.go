package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInventoryLowStockScan reports inventory rows at or below minimum.
	TaskInventoryLowStockScan = "inventory:low_stock_scan"
	// TaskUploadsCleanup prunes finished csv_uploads rows past retention.
	TaskUploadsCleanup = "ingest:uploads_cleanup"
)

// LowStockScanPayload bounds the scan result size.
type LowStockScanPayload struct {
	Limit int `json:"limit"`
}

// NewLowStockScanTask constructs an Asynq task for the low-stock scan.
func NewLowStockScanTask(limit int) (*asynq.Task, error) {
	data, err := json.Marshal(LowStockScanPayload{Limit: limit})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInventoryLowStockScan, data), nil
}

// UploadsCleanupPayload carries the retention window in hours.
type UploadsCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewUploadsCleanupTask constructs an Asynq task for upload pruning.
func NewUploadsCleanupTask(retentionHours int) (*asynq.Task, error) {
	data, err := json.Marshal(UploadsCleanupPayload{RetentionHours: retentionHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskUploadsCleanup, data), nil
}
