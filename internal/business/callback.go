package business

import "github.com/move-sure/ss-transport-sub000/internal/bulk"

// RunCallback 批量运行结束后发送到回调队列的消息
type RunCallback struct {
	RequestID   string        `json:"request_id"`
	RunID       string        `json:"run_id"`
	Summary     *bulk.Summary `json:"summary"`
	ProcessedAt int64         `json:"processed_at"`
}
