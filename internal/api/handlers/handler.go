package handlers

import (
	"context"

	"github.com/move-sure/ss-transport-sub000/internal/cache"
	"github.com/move-sure/ss-transport-sub000/internal/entity"
	"github.com/move-sure/ss-transport-sub000/internal/update"
	"github.com/move-sure/ss-transport-sub000/internal/validation"
	"github.com/move-sure/ss-transport-sub000/pkg/logger"
)

// Validator 同步校验
type Validator interface {
	Validate(ctx context.Context, ewbID string) (*validation.Result, *validation.Failure)
}

// CacheAdmin 校验缓存管理
type CacheAdmin interface {
	Stats(ctx context.Context) (cache.Stats, error)
	Clear(ctx context.Context) error
}

// UpdateStore 更新结果查询
type UpdateStore interface {
	GetLatestUpdate(ctx context.Context, ewbID string) (*update.Outcome, error)
}

// RunStore 批量运行记录
type RunStore interface {
	CreateQueuedRun(ctx context.Context, runID string, items int) error
	GetRun(ctx context.Context, runID string) (*entity.EwbBulkRun, error)
}

// JobQueue 任务队列
type JobQueue interface {
	PublishJSON(queue string, v interface{}) (string, error)
}

// CancelPublisher 取消信号
type CancelPublisher interface {
	PublishCancel(ctx context.Context, channel string, runID string) error
}

// EwbHandler EWB 校验与查询接口
type EwbHandler struct {
	validator Validator
	cache     CacheAdmin
	updates   UpdateStore
	jobs      JobQueue
	queue     string
	logger    logger.Logger
}

// NewEwbHandler 创建 EWB 处理器
func NewEwbHandler(v Validator, c CacheAdmin, u UpdateStore, jobs JobQueue, queue string, log logger.Logger) *EwbHandler {
	return &EwbHandler{validator: v, cache: c, updates: u, jobs: jobs, queue: queue, logger: log}
}

// BulkHandler 批量更新接口
type BulkHandler struct {
	runs          RunStore
	jobs          JobQueue
	cancels       CancelPublisher
	queue         string
	cancelChannel string
	logger        logger.Logger
}

// NewBulkHandler 创建批量更新处理器
func NewBulkHandler(runs RunStore, jobs JobQueue, cancels CancelPublisher, queue, cancelChannel string, log logger.Logger) *BulkHandler {
	return &BulkHandler{
		runs:          runs,
		jobs:          jobs,
		cancels:       cancels,
		queue:         queue,
		cancelChannel: cancelChannel,
		logger:        log,
	}
}
