package bulk

import (
	"sync"

	"github.com/move-sure/ss-transport-sub000/internal/update"
	"github.com/move-sure/ss-transport-sub000/pkg/ewbno"
)

// StatusMap 已更新状态表，供调用方并发读取
// 每次写入整体替换一条记录，读取方不会看到半更新状态
type StatusMap struct {
	mu      sync.RWMutex
	records map[string]update.Outcome
}

// NewStatusMap 创建状态表
func NewStatusMap() *StatusMap {
	return &StatusMap{records: make(map[string]update.Outcome)}
}

// Put 整体替换一条记录
func (m *StatusMap) Put(outcome update.Outcome) {
	key := ewbno.Clean(outcome.EwbID)
	m.mu.Lock()
	m.records[key] = outcome
	m.mu.Unlock()
}

// Get 读取记录
func (m *StatusMap) Get(ewbID string) (update.Outcome, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.records[ewbno.Clean(ewbID)]
	return o, ok
}

// IsUpdated 是否已成功更新
func (m *StatusMap) IsUpdated(ewbID string) bool {
	o, ok := m.Get(ewbID)
	return ok && o.Success
}

// Len 记录数
func (m *StatusMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Snapshot 复制当前全部记录
func (m *StatusMap) Snapshot() map[string]update.Outcome {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]update.Outcome, len(m.records))
	for k, v := range m.records {
		out[k] = v
	}
	return out
}
