package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/move-sure/ss-transport-sub000/internal/bulk"
	"github.com/move-sure/ss-transport-sub000/internal/business"
	"github.com/move-sure/ss-transport-sub000/internal/framework"
	"github.com/move-sure/ss-transport-sub000/pkg/logger"
)

// RunSink 运行汇总落库
type RunSink interface {
	SaveRunSummary(ctx context.Context, summary *bulk.Summary) error
}

// Config 消费者配置
type Config struct {
	QueueName    string        // 队列名称
	Timeout      time.Duration // 拉取消息超时
	TTR          time.Duration // Time-To-Run
	PollInterval time.Duration // 出错后的等待间隔
}

// CallbackConsumer 回调消费者
// 从回调队列读取批量运行汇总并落库；落库失败不 ACK，等待 TTR 重新投递
type CallbackConsumer struct {
	source framework.MessageSource
	sink   RunSink
	cfg    Config
	logger logger.Logger
}

// NewCallbackConsumer 创建回调消费者实例
func NewCallbackConsumer(source framework.MessageSource, sink RunSink, cfg Config, log logger.Logger) *CallbackConsumer {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &CallbackConsumer{source: source, sink: sink, cfg: cfg, logger: log}
}

// Start 启动消费循环，ctx 结束时返回
func (c *CallbackConsumer) Start(ctx context.Context) error {
	c.logger.Infof(ctx, "[CallbackConsumer] started: queue=%s", c.cfg.QueueName)

	for {
		select {
		case <-ctx.Done():
			c.logger.Infof(ctx, "[CallbackConsumer] stopped")
			return ctx.Err()
		default:
		}

		if err := c.consumeOne(ctx); err != nil {
			c.logger.Errorf(ctx, "[CallbackConsumer] %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(c.cfg.PollInterval):
			}
		}
	}
}

// consumeOne 消费一条消息
func (c *CallbackConsumer) consumeOne(ctx context.Context) error {
	msg, err := c.source.Consume(c.cfg.QueueName, c.cfg.Timeout, c.cfg.TTR)
	if err != nil {
		return fmt.Errorf("consume message failed: %w", err)
	}
	if msg == nil {
		return nil
	}

	var callback business.RunCallback
	if err := json.Unmarshal(msg.Data, &callback); err != nil || callback.Summary == nil {
		// 无法解析的消息直接 ACK，避免反复投递
		_ = c.source.Ack(c.cfg.QueueName, msg.ID)
		return fmt.Errorf("drop malformed callback %s: %v", msg.ID, err)
	}

	ctx = logger.WithTraceID(ctx, callback.RequestID)
	if callback.Summary.RunID == "" {
		callback.Summary.RunID = callback.RunID
	}

	if err := c.sink.SaveRunSummary(ctx, callback.Summary); err != nil {
		return fmt.Errorf("save run %s failed: %w", callback.RunID, err)
	}

	if err := c.source.Ack(c.cfg.QueueName, msg.ID); err != nil {
		return fmt.Errorf("ack callback %s failed: %w", msg.ID, err)
	}

	c.logger.Infof(ctx, "[CallbackConsumer] run %s saved: state=%s, success=%d, failure=%d",
		callback.RunID, callback.Summary.State, callback.Summary.Success, callback.Summary.Failure)
	return nil
}
