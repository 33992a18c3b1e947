package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UploadsCleanupJob prunes finished csv_uploads rows older than the retention
// window. Rows still in processing state are never touched.
type UploadsCleanupJob struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
	clock  func() time.Time
}

// NewUploadsCleanupJob initialises the cleanup handler.
func NewUploadsCleanupJob(pool *pgxpool.Pool, logger *slog.Logger) *UploadsCleanupJob {
	return &UploadsCleanupJob{
		Pool:   pool,
		Logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the retention sweep.
func (j *UploadsCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("uploads cleanup: handler not configured")
	}
	var payload UploadsCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RetentionHours <= 0 {
		payload.RetentionHours = 24 * 90
	}

	cutoff := j.now().Add(-time.Duration(payload.RetentionHours) * time.Hour)
	logger := j.logger().With(slog.Time("cutoff", cutoff))
	logger.Info("starting uploads cleanup")

	tag, err := j.Pool.Exec(ctx, `DELETE FROM csv_uploads WHERE status IN ('completed','failed') AND updated_at < $1`, cutoff)
	if err != nil {
		logger.Error("cleanup failed", slog.Any("error", err))
		return err
	}

	logger.Info("completed uploads cleanup", slog.Int64("pruned", tag.RowsAffected()))
	return nil
}

func (j *UploadsCleanupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskUploadsCleanup))
	}
	return slog.Default().With(slog.String("job", TaskUploadsCleanup))
}

func (j *UploadsCleanupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
