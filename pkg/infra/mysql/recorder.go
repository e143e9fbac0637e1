package mysql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm/clause"

	"github.com/move-sure/ss-transport-sub000/internal/entity"
	"github.com/move-sure/ss-transport-sub000/internal/update"
	"github.com/move-sure/ss-transport-sub000/internal/validation"
	"github.com/move-sure/ss-transport-sub000/pkg/ewbno"
)

// RecordOutcome 写入更新结果，同一 EWB 覆盖旧记录（实现 bulk.OutcomeRecorder）
func (dao *DAO) RecordOutcome(ctx context.Context, outcome *update.Outcome) error {
	row := toUpdateEntity(outcome, time.Now())

	err := dao.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert transporter update %s: %w", row.EwbNumber, err)
	}
	return nil
}

// RecordValidation 追加一条校验记录（实现 validation.Recorder）
func (dao *DAO) RecordValidation(ctx context.Context, record *validation.Record) error {
	row := toValidationEntity(record, time.Now())
	if err := dao.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to insert validation %s: %w", row.EwbNumber, err)
	}
	return nil
}

// LoadUpdatedOutcomes 读取已成功更新的记录，用于初始化状态表
// ewbIDs 为空时读取全部
func (dao *DAO) LoadUpdatedOutcomes(ctx context.Context, ewbIDs []string) ([]update.Outcome, error) {
	q := dao.db.WithContext(ctx).Where("success = ?", true)
	if len(ewbIDs) > 0 {
		clean := make([]string, 0, len(ewbIDs))
		for _, id := range ewbIDs {
			clean = append(clean, ewbno.Clean(id))
		}
		q = q.Where("ewb_number IN ?", clean)
	}

	var rows []entity.EwbTransporterUpdate
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load updated outcomes: %w", err)
	}

	outcomes := make([]update.Outcome, 0, len(rows))
	for i := range rows {
		outcomes = append(outcomes, fromUpdateEntity(&rows[i]))
	}
	return outcomes, nil
}

// GetLatestUpdate 查询单个 EWB 的最新更新结果
func (dao *DAO) GetLatestUpdate(ctx context.Context, ewbID string) (*update.Outcome, error) {
	var row entity.EwbTransporterUpdate
	err := dao.db.WithContext(ctx).Where("ewb_number = ?", ewbno.Clean(ewbID)).First(&row).Error
	if err != nil {
		return nil, notFound(err)
	}
	outcome := fromUpdateEntity(&row)
	return &outcome, nil
}

func toUpdateEntity(o *update.Outcome, now time.Time) *entity.EwbTransporterUpdate {
	processedAt := o.Timestamp
	if processedAt.IsZero() {
		processedAt = now
	}
	return &entity.EwbTransporterUpdate{
		EwbNumber:       ewbno.Clean(o.EwbID),
		Success:         o.Success,
		TransporterID:   o.TransporterID,
		TransporterName: o.TransporterName,
		UpdatedDate:     o.UpdatedDate,
		DocumentURL:     o.DocumentURL,
		ErrorReason:     o.ErrorReason,
		ErrorMessage:    o.ErrorMessage,
		ProcessedAt:     processedAt,
		UpdatedAt:       now,
	}
}

func fromUpdateEntity(row *entity.EwbTransporterUpdate) update.Outcome {
	return update.Outcome{
		EwbID:           row.EwbNumber,
		Success:         row.Success,
		TransporterID:   row.TransporterID,
		TransporterName: row.TransporterName,
		UpdatedDate:     row.UpdatedDate,
		DocumentURL:     row.DocumentURL,
		ErrorReason:     row.ErrorReason,
		ErrorMessage:    row.ErrorMessage,
		Timestamp:       row.ProcessedAt,
	}
}

func toValidationEntity(r *validation.Record, now time.Time) *entity.EwbValidation {
	row := &entity.EwbValidation{
		EwbNumber:   ewbno.Clean(r.EwbID),
		IsValid:     r.Valid,
		Reason:      string(r.Reason),
		Message:     r.Message,
		ValidatedAt: r.ValidatedAt,
		CreatedAt:   now,
	}
	if row.ValidatedAt.IsZero() {
		row.ValidatedAt = now
	}
	// 非法 JSON 不入库（json 列会拒绝写入）
	if len(r.Payload) > 0 && json.Valid(r.Payload) {
		row.Payload = datatypes.JSON(r.Payload)
	}
	return row
}
