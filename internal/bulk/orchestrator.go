package bulk

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/move-sure/ss-transport-sub000/internal/resolver"
	"github.com/move-sure/ss-transport-sub000/internal/update"
	"github.com/move-sure/ss-transport-sub000/pkg/ewbno"
	"github.com/move-sure/ss-transport-sub000/pkg/logger"
)

// Options 运行参数
type Options struct {
	RunID string
	// Backoff 条目间等待策略，nil 时使用 DefaultItemDelay 固定间隔
	Backoff Backoff
	// CallTimeout 单次外部调用超时，0 表示不限制
	CallTimeout time.Duration
}

// Orchestrator 批量承运人更新（单次运行，不可重入）
// 外部调用严格串行；取消只在每条开始前检查，进行中的调用一定会完成
type Orchestrator struct {
	resolver Resolver
	updater  Updater
	recorder OutcomeRecorder
	status   *StatusMap
	opts     Options
	logger   logger.Logger

	state     *atomic.Int32
	started   *atomic.Bool
	cancelled *atomic.Bool

	mu         sync.Mutex
	cancelWait context.CancelFunc

	persistWG sync.WaitGroup
}

// NewOrchestrator 创建 Orchestrator；recorder、status 可为 nil
func NewOrchestrator(
	res Resolver,
	upd Updater,
	rec OutcomeRecorder,
	status *StatusMap,
	log logger.Logger,
	opts Options,
) *Orchestrator {
	if opts.Backoff == nil {
		opts.Backoff = ConstantBackoff{Delay: DefaultItemDelay}
	}
	if status == nil {
		status = NewStatusMap()
	}
	return &Orchestrator{
		resolver:  res,
		updater:   upd,
		recorder:  rec,
		status:    status,
		opts:      opts,
		logger:    log,
		state:     atomic.NewInt32(int32(StateIdle)),
		started:   atomic.NewBool(false),
		cancelled: atomic.NewBool(false),
	}
}

// State 当前状态
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Status 状态表
func (o *Orchestrator) Status() *StatusMap {
	return o.status
}

// Cancel 请求取消：当前条目完成后停止，剩余条目不处理
func (o *Orchestrator) Cancel() {
	if !o.cancelled.CAS(false, true) {
		return
	}
	o.mu.Lock()
	if o.cancelWait != nil {
		o.cancelWait()
	}
	o.mu.Unlock()
}

// Start 异步运行，返回进度流和最终汇总
// 两个 channel 在运行结束后关闭
func (o *Orchestrator) Start(ctx context.Context, items []WorkItem, isAlreadyUpdated AlreadyUpdated) (<-chan Progress, <-chan *Summary, error) {
	if !o.started.CAS(false, true) {
		return nil, nil, ErrAlreadyStarted
	}

	progressCh := make(chan Progress, len(items))
	summaryCh := make(chan *Summary, 1)

	go func() {
		defer close(summaryCh)
		defer close(progressCh)
		summaryCh <- o.run(ctx, items, isAlreadyUpdated, func(p Progress) {
			progressCh <- p
		})
	}()

	return progressCh, summaryCh, nil
}

// Run 同步运行，onProgress 在每条处理后按顺序调用
func (o *Orchestrator) Run(ctx context.Context, items []WorkItem, isAlreadyUpdated AlreadyUpdated, onProgress func(Progress)) (*Summary, error) {
	if !o.started.CAS(false, true) {
		return nil, ErrAlreadyStarted
	}
	return o.run(ctx, items, isAlreadyUpdated, onProgress), nil
}

func (o *Orchestrator) run(ctx context.Context, items []WorkItem, isAlreadyUpdated AlreadyUpdated, onProgress func(Progress)) *Summary {
	if o.opts.RunID != "" {
		ctx = logger.WithRunID(ctx, o.opts.RunID)
	}
	if isAlreadyUpdated == nil {
		isAlreadyUpdated = o.status.IsUpdated
	}

	summary := &Summary{
		RunID:     o.opts.RunID,
		StartedAt: time.Now(),
		Outcomes:  make([]update.Outcome, 0),
	}

	// 1. 过滤已更新条目
	pending := make([]WorkItem, 0, len(items))
	for _, item := range items {
		if isAlreadyUpdated(ewbno.Clean(item.EwbID)) {
			summary.Skipped++
			continue
		}
		pending = append(pending, item)
	}
	summary.Total = len(pending)

	if len(pending) == 0 {
		o.state.Store(int32(StateCompleted))
		summary.State = StateCompleted
		summary.FinishedAt = time.Now()
		o.logger.Infof(ctx, "[BulkUpdate] nothing pending, %d already updated", summary.Skipped)
		return summary
	}

	o.state.Store(int32(StateRunning))
	o.logger.Infof(ctx, "[BulkUpdate] started: pending=%d, skipped=%d", len(pending), summary.Skipped)

	// 等待阶段可被 Cancel 打断；外部调用不受影响
	waitCtx, cancelWait := context.WithCancel(ctx)
	defer cancelWait()
	o.mu.Lock()
	o.cancelWait = cancelWait
	o.mu.Unlock()
	if o.cancelled.Load() {
		cancelWait()
	}

	cityCache := resolver.NewCityCache()
	final := StateCompleted

	// 2. 逐条处理
	for i, item := range pending {
		// a. 只在条目边界检查取消
		if o.cancelled.Load() || ctx.Err() != nil {
			final = StateCancelled
			o.logger.Infof(ctx, "[BulkUpdate] cancelled before item %d/%d, %d left unprocessed", i+1, len(pending), len(pending)-i)
			break
		}

		outcome := o.processItem(ctx, item, cityCache)

		summary.Processed++
		summary.Outcomes = append(summary.Outcomes, outcome)
		if outcome.Success {
			summary.Success++
		} else {
			summary.Failure++
			summary.Failures = append(summary.Failures, outcome)
		}

		// e. 进度
		if onProgress != nil {
			onProgress(Progress{
				Current:    i + 1,
				Total:      len(pending),
				GroupLabel: item.GroupLabel,
				EwbID:      outcome.EwbID,
				Outcome:    outcome,
			})
		}

		// f. 无论成功失败都等待
		if err := o.opts.Backoff.Wait(waitCtx); err != nil {
			o.logger.Debugf(ctx, "[BulkUpdate] backoff interrupted: %v", err)
		}
	}

	// 3. 等待异步持久化
	o.persistWG.Wait()

	o.state.Store(int32(final))
	summary.State = final
	summary.FinishedAt = time.Now()

	o.logger.Infof(ctx, "[BulkUpdate] finished: state=%s, processed=%d/%d, success=%d, failure=%d",
		final, summary.Processed, summary.Total, summary.Success, summary.Failure)

	return summary
}

// processItem 处理单条：解析承运人 → 更新 → 记录
func (o *Orchestrator) processItem(ctx context.Context, item WorkItem, cityCache resolver.CityCache) update.Outcome {
	ewbID := ewbno.Clean(item.EwbID)

	callCtx, cancel := o.callContext(ctx)
	defer cancel()

	// b. 解析承运人（按分组缓存）
	candidate, lerr := o.resolver.ResolveForDestination(callCtx, item.Destination, item.GroupKey, cityCache)
	if lerr != nil {
		// c. 解析失败只影响本条
		o.logger.Warnf(ctx, "[BulkUpdate] resolve failed: group=%s, ewb=%s, err=%v", item.GroupKey, ewbID, lerr)
		outcome := update.Outcome{
			EwbID:        ewbID,
			Success:      false,
			ErrorReason:  string(lerr.Reason),
			ErrorMessage: lerr.Error(),
			Timestamp:    time.Now(),
		}
		o.persist(ctx, outcome)
		return outcome
	}

	// d. 外部更新
	result, uerr := o.updater.PerformUpdate(callCtx, ewbID, candidate.ID, candidate.Name)
	if uerr != nil {
		o.logger.Warnf(ctx, "[BulkUpdate] update failed: ewb=%s, transporter=%d, err=%v", ewbID, candidate.ID, uerr)
		outcome := update.Outcome{
			EwbID:           ewbID,
			Success:         false,
			TransporterID:   candidate.ID,
			TransporterName: candidate.Name,
			ErrorReason:     uerr.ErrorReason(),
			ErrorMessage:    uerr.Message,
			Timestamp:       time.Now(),
		}
		o.persist(ctx, outcome)
		return outcome
	}

	outcome := *result
	outcome.EwbID = ewbID
	if outcome.Timestamp.IsZero() {
		outcome.Timestamp = time.Now()
	}

	o.status.Put(outcome)
	o.persist(ctx, outcome)

	o.logger.Infof(ctx, "[BulkUpdate] updated: ewb=%s, transporter=%d (%s)", ewbID, candidate.ID, candidate.Name)
	return outcome
}

// callContext 外部调用使用的 context：不随取消中断，可选超时
func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	callCtx := context.WithoutCancel(ctx)
	if o.opts.CallTimeout > 0 {
		return context.WithTimeout(callCtx, o.opts.CallTimeout)
	}
	return callCtx, func() {}
}

// persist 异步持久化，失败只记录日志
func (o *Orchestrator) persist(ctx context.Context, outcome update.Outcome) {
	if o.recorder == nil {
		return
	}
	bg := context.WithoutCancel(ctx)
	o.persistWG.Add(1)
	go func() {
		defer o.persistWG.Done()
		if err := o.recorder.RecordOutcome(bg, &outcome); err != nil {
			o.logger.Errorf(bg, "[BulkUpdate] persist outcome failed: ewb=%s, err=%v", outcome.EwbID, err)
		}
	}()
}
