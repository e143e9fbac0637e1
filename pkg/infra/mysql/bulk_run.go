package mysql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm/clause"

	"github.com/move-sure/ss-transport-sub000/internal/bulk"
	"github.com/move-sure/ss-transport-sub000/internal/entity"
)

// CreateQueuedRun 登记已入队的批量运行
func (dao *DAO) CreateQueuedRun(ctx context.Context, runID string, items int) error {
	row := &entity.EwbBulkRun{
		RunID:     runID,
		State:     entity.BulkRunStateQueued,
		Total:     items,
		CreatedAt: time.Now(),
	}
	if err := dao.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to create bulk run %s: %w", runID, err)
	}
	return nil
}

// SaveRunSummary 保存运行汇总（覆盖排队记录）
func (dao *DAO) SaveRunSummary(ctx context.Context, summary *bulk.Summary) error {
	row, err := toBulkRunEntity(summary, time.Now())
	if err != nil {
		return err
	}

	err = dao.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "run_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"state", "total", "skipped", "processed", "success_count",
				"failure_count", "summary", "started_at", "finished_at",
			}),
		}).
		Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to save bulk run %s: %w", summary.RunID, err)
	}
	return nil
}

// GetRun 查询批量运行
func (dao *DAO) GetRun(ctx context.Context, runID string) (*entity.EwbBulkRun, error) {
	var row entity.EwbBulkRun
	if err := dao.db.WithContext(ctx).Where("run_id = ?", runID).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return &row, nil
}

func toBulkRunEntity(s *bulk.Summary, now time.Time) (*entity.EwbBulkRun, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bulk summary: %w", err)
	}
	return &entity.EwbBulkRun{
		RunID:      s.RunID,
		State:      s.State.String(),
		Total:      s.Total,
		Skipped:    s.Skipped,
		Processed:  s.Processed,
		Success:    s.Success,
		Failure:    s.Failure,
		Summary:    datatypes.JSON(raw),
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		CreatedAt:  now,
	}, nil
}
