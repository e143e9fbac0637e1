package bulkupdate

import "github.com/move-sure/ss-transport-sub000/internal/bulk"

// Payload Job 消息中的业务数据
type Payload struct {
	RunID string          `json:"run_id,omitempty"`
	Items []bulk.WorkItem `json:"items"`
}
