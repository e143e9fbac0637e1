package worker

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/atomic"

	"github.com/move-sure/ss-transport-sub000/internal/business"
	"github.com/move-sure/ss-transport-sub000/internal/cache"
	"github.com/move-sure/ss-transport-sub000/internal/domains"
	"github.com/move-sure/ss-transport-sub000/internal/framework"
	"github.com/move-sure/ss-transport-sub000/internal/resolver"
	"github.com/move-sure/ss-transport-sub000/internal/update"
	"github.com/move-sure/ss-transport-sub000/internal/validation"
	"github.com/move-sure/ss-transport-sub000/pkg/config"
	"github.com/move-sure/ss-transport-sub000/pkg/infra/mysql"
	"github.com/move-sure/ss-transport-sub000/pkg/infra/redis"
	"github.com/move-sure/ss-transport-sub000/pkg/lmstfy"
	"github.com/move-sure/ss-transport-sub000/pkg/lmstfyx"
	"github.com/move-sure/ss-transport-sub000/pkg/logger"
)

// httpTimeout 上游 HTTP 调用的兜底超时
const httpTimeout = 30 * time.Second

// Manager 接口
type Manager interface {
	Start() error
	Shutdown()
}

// ManagerInstance Manager 实例
type ManagerInstance struct {
	ctx        context.Context
	cancel     context.CancelFunc
	cfg        *config.Config
	source     framework.MessageSource
	deps       *business.Deps
	pubsub     *redis.PubSub
	workers    []Worker
	closers    []func() error
	closing    *atomic.Bool
	shutdownCh chan struct{}
	wg         sync.WaitGroup
	logger     logger.Logger
}

// NewManagerInstance 根据配置组装基础设施和业务依赖
func NewManagerInstance(cfg *config.Config, log logger.Logger) (Manager, error) {
	ctx, cancel := context.WithCancel(context.Background())

	m := &ManagerInstance{
		ctx:        ctx,
		cancel:     cancel,
		cfg:        cfg,
		closing:    atomic.NewBool(false),
		shutdownCh: make(chan struct{}),
		workers:    make([]Worker, 0),
		logger:     log,
	}

	if err := m.init(); err != nil {
		cancel()
		m.close()
		return nil, err
	}
	return m, nil
}

// init 初始化 lmstfy / MySQL / Redis 以及业务客户端
func (m *ManagerInstance) init() error {
	cfg := m.cfg

	lmstfyClient, err := lmstfy.NewClient(cfg.Lmstfy.Host, cfg.Lmstfy.Port, cfg.Lmstfy.Namespace, cfg.Lmstfy.Token)
	if err != nil {
		return fmt.Errorf("failed to create lmstfy client: %w", err)
	}
	m.source = lmstfyClient

	dao, err := mysql.NewDAO(cfg.MySQL.DSN)
	if err != nil {
		return fmt.Errorf("failed to create mysql dao: %w", err)
	}
	m.closers = append(m.closers, dao.Close)

	var rdb *goredis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redis.NewClient(m.ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("failed to connect redis: %w", err)
		}
		m.pubsub = redis.NewPubSub(rdb)
		m.closers = append(m.closers, m.pubsub.Close)
	}

	store, err := redis.NewValidationStore(cfg.Validation.CacheBackend, rdb)
	if err != nil {
		return err
	}

	httpClient := &http.Client{Timeout: httpTimeout}
	validationCache := cache.NewValidationCache(store, cfg.Validation.CacheTTL, validation.IsErrorPayload, m.logger)

	validator := validation.NewClient(validation.Config{
		BaseURL:      cfg.Validation.BaseURL,
		AccountGSTIN: cfg.Validation.AccountGSTIN,
	}, httpClient, validationCache, m.logger)
	validator.SetRecorder(dao)

	updater := update.NewClient(update.Config{
		Endpoint:        cfg.Update.Endpoint,
		AccountGSTIN:    cfg.Update.AccountGSTIN,
		DocumentBaseURL: cfg.Update.DocumentBaseURL,
	}, httpClient, m.logger)

	m.deps = &business.Deps{
		Validator:    validator,
		Resolver:     resolver.NewResolver(dao, m.logger),
		Updater:      updater,
		Recorder:     dao,
		UpdatedStore: dao,
		Callback:     lmstfyClient,
		Registry:     business.NewRunRegistry(m.logger),
		Bulk: business.BulkSettings{
			ItemDelay:       cfg.Bulk.ItemDelay,
			RateLimitRPS:    cfg.Bulk.RateLimitRPS,
			CallTimeout:     cfg.Bulk.CallTimeout,
			ProgressChannel: cfg.Bulk.ProgressChannel,
			CallbackQueue:   cfg.Bulk.CallbackQueue,
		},
		Logger: m.logger,
	}
	if m.pubsub != nil {
		m.deps.Notifier = m.pubsub
	}

	m.logger.Infof(m.ctx, "[Manager] Initialized: cache_backend=%s, callback_queue=%s",
		cfg.Validation.CacheBackend, cfg.Bulk.CallbackQueue)
	return nil
}

// Start 启动 Manager
func (m *ManagerInstance) Start() error {
	m.logger.Infof(m.ctx, "[Manager] Starting...")

	// 1. 加载所有 Worker
	if err := m.loadWorkers(); err != nil {
		return fmt.Errorf("failed to load workers: %w", err)
	}
	m.logger.Infof(m.ctx, "[Manager] All workers loaded, count: %d", len(m.workers))

	// 2. 监听取消频道
	if m.pubsub != nil && m.cfg.Bulk.CancelChannel != "" {
		go m.listenCancel()
	}

	// 3. 启动所有 Worker（每个 Worker 在独立 goroutine）
	for _, worker := range m.workers {
		w := worker
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			w.Start()
		}()
		m.logger.Infof(m.ctx, "[Manager] Worker started: %s", w.GetName())
	}

	m.logger.Infof(m.ctx, "[Manager] Start success")

	// 4. 阻塞等待退出信号
	<-m.shutdownCh
	return nil
}

// listenCancel 订阅取消频道，断线后重连
func (m *ManagerInstance) listenCancel() {
	channel := m.cfg.Bulk.CancelChannel
	for {
		err := m.pubsub.ListenCancel(m.ctx, channel, func(runID string) {
			m.deps.Registry.Cancel(runID)
		})
		if m.ctx.Err() != nil {
			return
		}
		m.logger.Warnf(m.ctx, "[Manager] cancel listener stopped: %v, reconnecting...", err)
		select {
		case <-m.ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

// Shutdown 优雅退出
func (m *ManagerInstance) Shutdown() {
	m.logger.Infof(m.ctx, "[Manager] Began to close")

	if m.closing.CAS(false, true) {
		// 1. 所有 Worker 安全退出
		for _, worker := range m.workers {
			m.logger.Infof(m.ctx, "[Manager] Shutting down worker: %s", worker.GetName())
			worker.Shutdown()
		}
		m.wg.Wait()

		// 2. 等待异步校验记录落库，再关闭连接
		if m.deps != nil && m.deps.Validator != nil {
			m.deps.Validator.Flush()
		}
		m.cancel()
		m.close()

		close(m.shutdownCh)
		m.logger.Infof(m.ctx, "[Manager] Shutdown complete")
	}
}

func (m *ManagerInstance) close() {
	for _, c := range m.closers {
		if err := c(); err != nil {
			m.logger.Warnf(m.ctx, "[Manager] close resource failed: %v", err)
		}
	}
}

// loadWorkers 加载所有 Worker
func (m *ManagerInstance) loadWorkers() error {
	workers, err := buildWorkers(m.ctx, m.cfg.Workers, m.source, domains.GetProcess(m.logger, m.deps), m.logger)
	if err != nil {
		return err
	}
	m.workers = workers
	return nil
}

// buildWorkers 按配置创建 Worker
func buildWorkers(
	ctx context.Context,
	cfgs []config.WorkerConfig,
	source framework.MessageSource,
	proc lmstfyx.Proc,
	log logger.Logger,
) ([]Worker, error) {
	workers := make([]Worker, 0, len(cfgs))
	for _, workerCfg := range cfgs {
		subCfg := &framework.SubscriberConfig{
			QueueName:    workerCfg.QueueName,
			Concurrency:  workerCfg.Subscriber.Threads,
			Rate:         workerCfg.Subscriber.Rate,
			Timeout:      workerCfg.Subscriber.Timeout,
			TTR:          workerCfg.Subscriber.TTR,
			ErrorBackoff: workerCfg.Subscriber.ErrorBackoff,
		}

		procCfg := &framework.ProcessorConfig{
			Concurrency: workerCfg.Processor.Threads,
			BufferSize:  workerCfg.Processor.BufferSize,
			Timeout:     workerCfg.Processor.Timeout,
		}

		worker, err := NewWorkerInstance(ctx, workerCfg.Name, subCfg, procCfg, source, proc, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create worker %s: %w", workerCfg.Name, err)
		}
		workers = append(workers, worker)
	}
	return workers, nil
}
