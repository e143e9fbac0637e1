package business

import (
	"context"
	"time"

	"github.com/move-sure/ss-transport-sub000/internal/bulk"
	"github.com/move-sure/ss-transport-sub000/internal/update"
	"github.com/move-sure/ss-transport-sub000/internal/validation"
	"github.com/move-sure/ss-transport-sub000/pkg/infra/redis"
	"github.com/move-sure/ss-transport-sub000/pkg/logger"
)

// 动作类型（路由键）
const (
	ActionBulkUpdate = "ewb_bulk_update"
	ActionValidate   = "ewb_validate"
)

// Validator EWB 校验
type Validator interface {
	ValidateMany(ctx context.Context, ewbIDs []string, pacer validation.Pacer) []validation.Outcome
	Flush()
}

// UpdatedStore 已更新记录来源，用于初始化状态表
type UpdatedStore interface {
	LoadUpdatedOutcomes(ctx context.Context, ewbIDs []string) ([]update.Outcome, error)
}

// ProgressNotifier 进度推送
type ProgressNotifier interface {
	PublishProgress(ctx context.Context, channel string, notification *redis.ProgressNotification) error
}

// CallbackPublisher 回调队列
type CallbackPublisher interface {
	PublishJSON(queue string, v interface{}) (string, error)
}

// BulkSettings 批量更新参数
type BulkSettings struct {
	ItemDelay       time.Duration
	RateLimitRPS    float64
	CallTimeout     time.Duration
	ProgressChannel string
	CallbackQueue   string
}

// Deps 业务处理依赖（worker 启动时组装一次，所有 Handler 共享）
type Deps struct {
	Validator    Validator
	Resolver     bulk.Resolver
	Updater      bulk.Updater
	Recorder     bulk.OutcomeRecorder
	UpdatedStore UpdatedStore
	Notifier     ProgressNotifier
	Callback     CallbackPublisher
	Registry     *RunRegistry
	Bulk         BulkSettings
	Logger       logger.Logger
}
