package business

import (
	"context"
	"sync"
	"time"

	"github.com/move-sure/ss-transport-sub000/pkg/logger"
)

// pendingTTL 待取消记录保留时长
const pendingTTL = time.Hour

// Canceller 可取消的运行
type Canceller interface {
	Cancel()
}

// RunRegistry 运行中的批量任务表，用于跨进程取消
type RunRegistry struct {
	mu      sync.Mutex
	runs    map[string]Canceller
	pending map[string]time.Time // 先于注册到达的取消请求
	logger  logger.Logger
}

// NewRunRegistry 创建运行表
func NewRunRegistry(log logger.Logger) *RunRegistry {
	return &RunRegistry{
		runs:    make(map[string]Canceller),
		pending: make(map[string]time.Time),
		logger:  log,
	}
}

// Register 登记运行；若取消请求已先到达则立即取消
func (r *RunRegistry) Register(runID string, c Canceller) {
	r.mu.Lock()
	r.runs[runID] = c
	_, cancelled := r.pending[runID]
	delete(r.pending, runID)
	r.mu.Unlock()

	if cancelled {
		r.logger.Infof(context.Background(), "[RunRegistry] run %s was cancelled before start", runID)
		c.Cancel()
	}
}

// Unregister 运行结束后移除
func (r *RunRegistry) Unregister(runID string) {
	r.mu.Lock()
	delete(r.runs, runID)
	r.mu.Unlock()
}

// Cancel 取消运行，返回是否命中本进程的运行
// 未命中时记录为待取消，防止取消消息先于任务到达
func (r *RunRegistry) Cancel(runID string) bool {
	now := time.Now()
	r.mu.Lock()
	c, ok := r.runs[runID]
	if !ok {
		for id, at := range r.pending {
			if now.Sub(at) > pendingTTL {
				delete(r.pending, id)
			}
		}
		r.pending[runID] = now
	}
	r.mu.Unlock()

	if !ok {
		r.logger.Debugf(context.Background(), "[RunRegistry] run %s not running here, marked pending", runID)
		return false
	}
	r.logger.Infof(context.Background(), "[RunRegistry] cancelling run %s", runID)
	c.Cancel()
	return true
}

// Running 运行中的数量
func (r *RunRegistry) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}
