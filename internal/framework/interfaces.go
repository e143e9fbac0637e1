package framework

import (
	"context"
	"time"
)

// MessageSource 任务队列抽象，worker 和回调消费者共用
type MessageSource interface {
	// Consume 阻塞拉取，超时未拉到返回 (nil, nil)
	Consume(queue string, timeout time.Duration, ttr time.Duration) (*Message, error)

	// Ack 删除消息；不 ACK 的消息在 TTR 到期后重新投递
	Ack(queue string, jobID string) error
}

// StepFunc 业务处理步骤
type StepFunc func(ctx context.Context) error

// BusinessHandler 业务处理器接口，返回序列化后的 Response
type BusinessHandler interface {
	Handle(ctx context.Context) ([]byte, error)
}
