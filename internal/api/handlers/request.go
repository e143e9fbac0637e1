package handlers

import (
	"encoding/json"
	"time"

	"github.com/move-sure/ss-transport-sub000/internal/bulk"
	"github.com/move-sure/ss-transport-sub000/internal/resolver"
)

// ValidateRequest 同步校验请求
type ValidateRequest struct {
	EwbNumber string `json:"ewb_number" binding:"required,ewbno"`
}

// ValidateBatchRequest 异步批量校验请求
type ValidateBatchRequest struct {
	EwbNumbers []string `json:"ewb_numbers" binding:"required,min=1,max=500,dive,ewbno"`
}

// ValidateResponse 校验结果
type ValidateResponse struct {
	EwbNumber string          `json:"ewb_number"`
	Formatted string          `json:"formatted"`
	Valid     bool            `json:"valid"`
	FromCache bool            `json:"from_cache"`
	Reason    string          `json:"reason,omitempty"`
	Message   string          `json:"message,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// BulkItemRequest 批量更新条目
type BulkItemRequest struct {
	GroupKey    string `json:"group_key" binding:"required"`
	GroupLabel  string `json:"group_label"`
	EwbNumber   string `json:"ewb_number" binding:"required,ewbno"`
	CityID      int64  `json:"city_id"`
	Destination string `json:"destination"`
}

// BulkUpdateRequest 批量更新请求
type BulkUpdateRequest struct {
	Items []BulkItemRequest `json:"items" binding:"required,min=1,dive"`
}

// ToWorkItems 转换为编排器条目
func (r *BulkUpdateRequest) ToWorkItems() []bulk.WorkItem {
	items := make([]bulk.WorkItem, 0, len(r.Items))
	for _, it := range r.Items {
		label := it.GroupLabel
		if label == "" {
			label = it.GroupKey
		}
		items = append(items, bulk.WorkItem{
			GroupKey:    it.GroupKey,
			GroupLabel:  label,
			EwbID:       it.EwbNumber,
			Destination: resolver.Destination{CityID: it.CityID, Raw: it.Destination},
		})
	}
	return items
}

// RunResponse 批量运行状态
type RunResponse struct {
	RunID      string          `json:"run_id"`
	State      string          `json:"state"`
	Total      int             `json:"total"`
	Skipped    int             `json:"skipped"`
	Processed  int             `json:"processed"`
	Success    int             `json:"success"`
	Failure    int             `json:"failure"`
	Summary    json.RawMessage `json:"summary,omitempty"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}
