package framework

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/move-sure/ss-transport-sub000/pkg/errorutil"
)

// BaseHandler 抽象基类
// 提供基础设施方法，不包含业务流程控制
type BaseHandler struct {
	meta       *JobMeta
	bizPayload json.RawMessage // job.payload.data.data 部分
	output     interface{}
}

// Response 标准响应结构
type Response struct {
	Error     *errorutil.Error `json:"error"`
	Result    interface{}      `json:"result"`
	Processed bool             `json:"processed"`
	Meta      *JobMeta         `json:"meta,omitempty"`
}

// NewBaseHandler 创建基类
func NewBaseHandler(meta *JobMeta, bizPayload json.RawMessage) *BaseHandler {
	return &BaseHandler{meta: meta, bizPayload: bizPayload}
}

// DecodePayload 将业务数据解析到 v
func (b *BaseHandler) DecodePayload(v interface{}) error {
	if len(b.bizPayload) == 0 {
		return errorutil.NonRetriable("job data is empty")
	}
	if err := json.Unmarshal(b.bizPayload, v); err != nil {
		return errorutil.NonRetriableWithDetails("job data is malformed", err.Error())
	}
	return nil
}

// WrapResponse 包装标准响应
func (b *BaseHandler) WrapResponse(ctx context.Context, output interface{}) ([]byte, error) {
	resp := &Response{
		Result:    output,
		Processed: true,
		Meta:      b.meta,
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return nil, b.WrapError(err, "marshal response failed")
	}
	return data, nil
}

// WrapErrorResponse 包装错误响应，原错误继续向上返回以决定 ACK 动作
func (b *BaseHandler) WrapErrorResponse(ctx context.Context, err error) ([]byte, error) {
	resp := &Response{
		Error:     errorutil.Wrap(err),
		Processed: false,
		Meta:      b.meta,
	}

	data, marshalErr := json.Marshal(resp)
	if marshalErr != nil {
		return nil, b.WrapError(marshalErr, "marshal error response failed")
	}
	return data, err
}

// WrapError 统一包装错误
func (b *BaseHandler) WrapError(err error, msg string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

// GetMeta 获取 meta
func (b *BaseHandler) GetMeta() *JobMeta {
	return b.meta
}

// SetOutput 设置输出
func (b *BaseHandler) SetOutput(output interface{}) {
	b.output = output
}

// GetOutput 获取输出
func (b *BaseHandler) GetOutput() interface{} {
	return b.output
}
