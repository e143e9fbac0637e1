package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/move-sure/ss-transport-sub000/internal/api"
	"github.com/move-sure/ss-transport-sub000/internal/api/handlers"
	"github.com/move-sure/ss-transport-sub000/internal/cache"
	"github.com/move-sure/ss-transport-sub000/internal/consumer"
	"github.com/move-sure/ss-transport-sub000/internal/validation"
	"github.com/move-sure/ss-transport-sub000/pkg/config"
	"github.com/move-sure/ss-transport-sub000/pkg/infra/mysql"
	"github.com/move-sure/ss-transport-sub000/pkg/infra/redis"
	"github.com/move-sure/ss-transport-sub000/pkg/lmstfy"
	"github.com/move-sure/ss-transport-sub000/pkg/logger"
)

// App 应用容器
type App struct {
	Engine           *gin.Engine
	CallbackConsumer *consumer.CallbackConsumer // 未配置回调队列时为 nil
	Logger           logger.Logger
}

// InitializeApp 组装 apiserver 依赖，返回清理函数
func InitializeApp(cfg *config.Config, migrate bool) (*App, func(), error) {
	ctx := context.Background()
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// 1. Logger
	appLogger, err := logger.NewZapLogger(cfg.App.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger failed: %w", err)
	}
	cleanups = append(cleanups, func() { _ = appLogger.Sync() })

	// 2. MySQL
	dao, err := mysql.NewDAO(cfg.MySQL.DSN)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("init mysql failed: %w", err)
	}
	cleanups = append(cleanups, func() { _ = dao.Close() })
	if migrate {
		if err := dao.AutoMigrate(); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("auto migrate failed: %w", err)
		}
		appLogger.Infof(ctx, "[App] schema migrated")
	}

	// 3. Redis
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("init redis failed: %w", err)
	}
	pubsub := redis.NewPubSub(rdb)
	cleanups = append(cleanups, func() { _ = pubsub.Close() })

	store, err := redis.NewValidationStore(cfg.Validation.CacheBackend, rdb)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	// 4. 校验客户端
	validationCache := cache.NewValidationCache(store, cfg.Validation.CacheTTL, validation.IsErrorPayload, appLogger)
	validator := validation.NewClient(validation.Config{
		BaseURL:      cfg.Validation.BaseURL,
		AccountGSTIN: cfg.Validation.AccountGSTIN,
	}, &http.Client{Timeout: 30 * time.Second}, validationCache, appLogger)
	validator.SetRecorder(dao)
	cleanups = append(cleanups, validator.Flush)

	// 5. Lmstfy
	lmstfyClient, err := lmstfy.NewClient(cfg.Lmstfy.Host, cfg.Lmstfy.Port, cfg.Lmstfy.Namespace, cfg.Lmstfy.Token)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("init lmstfy failed: %w", err)
	}

	// 6. Handler 与路由
	ewbHandler := handlers.NewEwbHandler(validator, validationCache, dao, lmstfyClient, cfg.Lmstfy.Queue, appLogger)
	bulkHandler := handlers.NewBulkHandler(dao, lmstfyClient, pubsub, cfg.Lmstfy.Queue, cfg.Bulk.CancelChannel, appLogger)

	app := &App{
		Engine: api.SetupRoutes(ewbHandler, bulkHandler, appLogger),
		Logger: appLogger,
	}

	// 7. 回调消费者
	if cfg.Bulk.CallbackQueue != "" {
		app.CallbackConsumer = consumer.NewCallbackConsumer(lmstfyClient, dao, consumer.Config{
			QueueName:    cfg.Bulk.CallbackQueue,
			Timeout:      3 * time.Second,
			TTR:          30 * time.Second,
			PollInterval: 100 * time.Millisecond,
		}, appLogger)
	}

	return app, cleanup, nil
}
