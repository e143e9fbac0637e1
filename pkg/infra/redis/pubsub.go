package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// NewClient 创建 Redis 客户端并测试连接
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// PubSub Redis 发布/订阅客户端
type PubSub struct {
	client *redis.Client
}

// NewPubSub 创建 PubSub 实例
func NewPubSub(client *redis.Client) *PubSub {
	return &PubSub{client: client}
}

// ProgressNotification 批量更新进度消息
type ProgressNotification struct {
	RunID      string `json:"run_id"`
	Current    int    `json:"current"`
	Total      int    `json:"total"`
	GroupLabel string `json:"group_label"`
	EwbNumber  string `json:"ewb_number"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// PublishProgress 发布进度通知
func (p *PubSub) PublishProgress(ctx context.Context, channel string, notification *ProgressNotification) error {
	msgJSON, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := p.client.Publish(ctx, channel, msgJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	return nil
}

// PublishCancel 发布取消信号，消息体为 run_id
func (p *PubSub) PublishCancel(ctx context.Context, channel string, runID string) error {
	if err := p.client.Publish(ctx, channel, runID).Err(); err != nil {
		return fmt.Errorf("failed to publish cancel: %w", err)
	}
	return nil
}

// ListenCancel 订阅取消频道，阻塞直到 ctx 结束
func (p *PubSub) ListenCancel(ctx context.Context, channel string, onCancel func(runID string)) error {
	sub := p.client.Subscribe(ctx, channel)
	defer sub.Close()

	// 等待订阅确认
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe %s: %w", channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			onCancel(msg.Payload)
		}
	}
}

// Close 关闭 Redis 连接
func (p *PubSub) Close() error {
	return p.client.Close()
}
