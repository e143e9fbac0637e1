package bulk

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultItemDelay 默认条目间隔（对外部服务限流友好）
const DefaultItemDelay = 1500 * time.Millisecond

// Backoff 条目之间的等待策略
type Backoff interface {
	Wait(ctx context.Context) error
}

// ConstantBackoff 固定间隔
type ConstantBackoff struct {
	Delay time.Duration
}

// Wait 等待固定时长，ctx 结束时提前返回
func (b ConstantBackoff) Wait(ctx context.Context) error {
	if b.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(b.Delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RateBackoff 令牌桶限速（每秒 rps 次）
type RateBackoff struct {
	limiter *rate.Limiter
}

// NewRateBackoff 创建令牌桶等待策略
func NewRateBackoff(rps float64) *RateBackoff {
	return &RateBackoff{limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

// Wait 等待令牌
func (b *RateBackoff) Wait(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}

// NewBackoff 根据配置选择策略：rps>0 使用令牌桶，否则使用固定间隔
func NewBackoff(delay time.Duration, rps float64) Backoff {
	if rps > 0 {
		return NewRateBackoff(rps)
	}
	return ConstantBackoff{Delay: delay}
}
