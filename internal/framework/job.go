package framework

import (
	"encoding/json"
	"fmt"
)

// Job 标准 Job 结构
// {"payload":{"data":{"request_id":"","action_type":"","id":"","data":{}}}}
type Job struct {
	Payload *JobPayload `json:"payload"`
}

// JobPayload Job 负载
type JobPayload struct {
	Data *JobPayloadData `json:"data"`
}

// JobPayloadData Job 数据
type JobPayloadData struct {
	RequestID  string          `json:"request_id"`  // 请求 ID（TraceID）
	OrgID      string          `json:"org_id"`      // 组织 ID
	ActionType string          `json:"action_type"` // 动作类型（路由键）
	ID         string          `json:"id"`          // 业务 ID
	Data       json.RawMessage `json:"data"`        // 具体业务数据

	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// JobMeta Job 元信息
type JobMeta struct {
	RequestID  string `json:"request_id"`
	ActionType string `json:"action_type"`
	OrgID      string `json:"org_id,omitempty"`
	ID         string `json:"id,omitempty"`
}

// NewJob 构造标准 Job（生产端使用）
func NewJob(requestID, actionType, id string, data interface{}) (*Job, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal job data failed: %w", err)
	}
	return &Job{
		Payload: &JobPayload{
			Data: &JobPayloadData{
				RequestID:  requestID,
				ActionType: actionType,
				ID:         id,
				Data:       raw,
			},
		},
	}, nil
}

// ParseJob 解析并校验标准 Job
func ParseJob(raw []byte) (*JobMeta, json.RawMessage, error) {
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, nil, fmt.Errorf("unmarshal job failed: %w", err)
	}

	if job.Payload == nil || job.Payload.Data == nil {
		return nil, nil, fmt.Errorf("invalid job structure: payload.data is nil")
	}

	data := job.Payload.Data
	if data.ActionType == "" {
		return nil, nil, fmt.Errorf("invalid job structure: action_type is empty")
	}

	return &JobMeta{
		RequestID:  data.RequestID,
		ActionType: data.ActionType,
		OrgID:      data.OrgID,
		ID:         data.ID,
	}, data.Data, nil
}
