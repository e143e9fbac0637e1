package redis

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/move-sure/ss-transport-sub000/internal/cache"
)

// 校验缓存后端
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// NewValidationStore 按配置选择校验缓存存储，worker 与 apiserver 共用
func NewValidationStore(backend string, client *redis.Client) (cache.Store, error) {
	switch backend {
	case BackendMemory:
		return cache.NewMemoryStore(), nil
	case BackendRedis:
		if client == nil {
			return nil, fmt.Errorf("redis cache backend requires redis.addr")
		}
		return NewCacheStore(client), nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %q", backend)
	}
}
