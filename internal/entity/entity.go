package entity

import (
	"time"

	"gorm.io/datatypes"
)

// City 城市字典
type City struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name string `gorm:"column:city_name;type:varchar(128);not null"`
	Code string `gorm:"column:city_code;type:varchar(32);index:idx_city_code"`
}

// TableName 指定表名
func (City) TableName() string {
	return "cities"
}

// Transport 承运人（按目的城市登记）
type Transport struct {
	ID     int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name   string `gorm:"column:transport_name;type:varchar(255);not null"`
	GSTIN  string `gorm:"column:gst_number;type:varchar(32)"`
	CityID int64  `gorm:"column:city_id;not null;index:idx_city_id"`
	Mobile string `gorm:"column:mob_number;type:varchar(32)"`
}

// TableName 指定表名
func (Transport) TableName() string {
	return "transports"
}

// EwbValidation EWB 校验记录（每次调用上游都追加一条）
type EwbValidation struct {
	ID          int64          `gorm:"column:id;primaryKey;autoIncrement"`
	EwbNumber   string         `gorm:"column:ewb_number;type:varchar(16);not null;index:idx_ewb_number"`
	IsValid     bool           `gorm:"column:is_valid;not null"`
	Reason      string         `gorm:"column:reason;type:varchar(32)"`
	Message     string         `gorm:"column:message;type:text"`
	Payload     datatypes.JSON `gorm:"column:payload;type:json"`
	ValidatedAt time.Time      `gorm:"column:validated_at;not null"`
	CreatedAt   time.Time      `gorm:"column:created_at;not null"`
}

// TableName 指定表名
func (EwbValidation) TableName() string {
	return "ewb_validations"
}

// EwbTransporterUpdate 承运人更新结果（每个 EWB 一行，重跑时覆盖）
type EwbTransporterUpdate struct {
	EwbNumber       string    `gorm:"column:ewb_number;primaryKey;type:varchar(16)"`
	Success         bool      `gorm:"column:success;not null"`
	TransporterID   int64     `gorm:"column:transporter_id"`
	TransporterName string    `gorm:"column:transporter_name;type:varchar(255)"`
	UpdatedDate     string    `gorm:"column:updated_date;type:varchar(64)"`
	DocumentURL     string    `gorm:"column:document_url;type:varchar(512)"`
	ErrorReason     string    `gorm:"column:error_reason;type:varchar(32)"`
	ErrorMessage    string    `gorm:"column:error_message;type:text"`
	ProcessedAt     time.Time `gorm:"column:processed_at;not null"`
	UpdatedAt       time.Time `gorm:"column:updated_at;not null"`
}

// TableName 指定表名
func (EwbTransporterUpdate) TableName() string {
	return "ewb_transporter_updates"
}

// EwbBulkRun 批量运行汇总（来自回调队列）
type EwbBulkRun struct {
	RunID      string         `gorm:"column:run_id;primaryKey;type:varchar(64)"`
	State      string         `gorm:"column:state;type:varchar(16);not null"`
	Total      int            `gorm:"column:total;not null"`
	Skipped    int            `gorm:"column:skipped;not null"`
	Processed  int            `gorm:"column:processed;not null"`
	Success    int            `gorm:"column:success_count;not null"`
	Failure    int            `gorm:"column:failure_count;not null"`
	Summary    datatypes.JSON `gorm:"column:summary;type:json"`
	StartedAt  time.Time      `gorm:"column:started_at"`
	FinishedAt time.Time      `gorm:"column:finished_at"`
	CreatedAt  time.Time      `gorm:"column:created_at;not null"`
}

// TableName 指定表名
func (EwbBulkRun) TableName() string {
	return "ewb_bulk_runs"
}

// 批量运行状态常量
const (
	BulkRunStateQueued    = "QUEUED"
	BulkRunStateCompleted = "COMPLETED"
	BulkRunStateCancelled = "CANCELLED"
)
