package framework

import (
	"fmt"
	"time"
)

// SubscriberConfig Subscriber 配置
type SubscriberConfig struct {
	QueueName    string        // 队列名称
	Concurrency  int           // 并发拉取数
	Timeout      time.Duration // 拉取超时
	TTR          time.Duration // Time-To-Run，需大于单个批量任务的最长耗时
	Rate         time.Duration // 拉取间隔
	ErrorBackoff time.Duration // 错误退避时间
}

// Validate 检查必填项并补齐默认值
func (c *SubscriberConfig) Validate() error {
	if c.QueueName == "" {
		return fmt.Errorf("subscriber queue name is required")
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = time.Second
	}
	return nil
}

// ProcessorConfig Processor 配置
type ProcessorConfig struct {
	Concurrency int           // 并发处理数
	BufferSize  int           // inputChan 缓冲区大小
	Timeout     time.Duration // 单个消息处理超时，0 表示不限制
}

// Validate 补齐默认值
func (c *ProcessorConfig) Validate() error {
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.BufferSize < 0 {
		return fmt.Errorf("processor buffer size must not be negative")
	}
	return nil
}
