package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/move-sure/ss-transport-sub000/pkg/ewbno"
	"github.com/move-sure/ss-transport-sub000/pkg/logger"
)

// KeyPrefix 校验缓存命名空间，Clear 只删除该前缀下的 key
const KeyPrefix = "ewb_validation_"

// Store 键值存储接口（Redis / 内存）
type Store interface {
	// Get 读取 key，不存在时 ok=false
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set 覆盖写入，ttl<=0 表示不过期
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete 删除 key，不存在不报错
	Delete(ctx context.Context, keys ...string) error
	// Keys 列出指定前缀的 key
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// ErrorClassifier 判断 payload 是否为错误状态
type ErrorClassifier func(payload json.RawMessage) bool

// Entry 缓存条目
type Entry struct {
	EwbID     string          `json:"ewb_id"`
	Payload   json.RawMessage `json:"payload"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Stats 缓存统计
type Stats struct {
	Total   int `json:"total"`
	Valid   int `json:"valid"`
	Expired int `json:"expired"` // 过期、损坏或错误状态的条目（已清除）
}

// ValidationCache 校验结果缓存
// 条目仅在未过期且 payload 不匹配错误特征时可用；其余情况读取时顺带删除
type ValidationCache struct {
	store   Store
	ttl     time.Duration
	isError ErrorClassifier
	logger  logger.Logger
	now     func() time.Time
}

// NewValidationCache 创建校验缓存
func NewValidationCache(store Store, ttl time.Duration, isError ErrorClassifier, log logger.Logger) *ValidationCache {
	if isError == nil {
		isError = func(json.RawMessage) bool { return false }
	}
	return &ValidationCache{
		store:   store,
		ttl:     ttl,
		isError: isError,
		logger:  log,
		now:     time.Now,
	}
}

// Key 返回 EWB 号对应的缓存 key
func Key(ewbID string) string {
	return KeyPrefix + ewbno.Clean(ewbID)
}

// Get 读取缓存
// 不存在、过期、无法解析、错误状态均返回 false；后三种情况会删除条目
func (c *ValidationCache) Get(ctx context.Context, ewbID string) (json.RawMessage, bool) {
	key := Key(ewbID)

	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warnf(ctx, "[ValidationCache] get %s failed, treating as miss: %v", key, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	entry, usable := c.inspect(raw)
	if !usable {
		c.purge(ctx, key)
		return nil, false
	}

	return entry.Payload, true
}

// Put 写入缓存（覆盖），调用方负责不写入失败结果
func (c *ValidationCache) Put(ctx context.Context, ewbID string, payload json.RawMessage) error {
	clean := ewbno.Clean(ewbID)
	entry := Entry{
		EwbID:     clean,
		Payload:   payload,
		FetchedAt: c.now(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry failed: %w", err)
	}

	if err := c.store.Set(ctx, KeyPrefix+clean, data, c.ttl); err != nil {
		return fmt.Errorf("store cache entry failed: %w", err)
	}
	return nil
}

// Stats 遍历全部条目并清除不可用条目
func (c *ValidationCache) Stats(ctx context.Context) (Stats, error) {
	var stats Stats

	keys, err := c.store.Keys(ctx, KeyPrefix)
	if err != nil {
		return stats, fmt.Errorf("list cache keys failed: %w", err)
	}

	for _, key := range keys {
		raw, ok, err := c.store.Get(ctx, key)
		if err != nil {
			return stats, fmt.Errorf("read cache key %s failed: %w", key, err)
		}
		if !ok {
			// 并发删除
			continue
		}

		stats.Total++
		if _, usable := c.inspect(raw); usable {
			stats.Valid++
			continue
		}

		stats.Expired++
		c.purge(ctx, key)
	}

	return stats, nil
}

// Clear 删除命名空间下的全部条目
func (c *ValidationCache) Clear(ctx context.Context) error {
	keys, err := c.store.Keys(ctx, KeyPrefix)
	if err != nil {
		return fmt.Errorf("list cache keys failed: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("clear cache failed: %w", err)
	}
	return nil
}

// inspect 解析并判断条目是否可用
func (c *ValidationCache) inspect(raw []byte) (*Entry, bool) {
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false
	}
	if entry.FetchedAt.IsZero() || len(entry.Payload) == 0 {
		return nil, false
	}
	if c.now().Sub(entry.FetchedAt) >= c.ttl {
		return nil, false
	}
	if c.isError(entry.Payload) {
		return nil, false
	}
	return &entry, true
}

// purge 删除条目，失败只记录日志（删除是幂等的）
func (c *ValidationCache) purge(ctx context.Context, key string) {
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.Warnf(ctx, "[ValidationCache] purge %s failed: %v", key, err)
		return
	}
	c.logger.Debugf(ctx, "[ValidationCache] purged %s", strings.TrimPrefix(key, KeyPrefix))
}
