package bulkupdate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/move-sure/ss-transport-sub000/internal/bulk"
	"github.com/move-sure/ss-transport-sub000/internal/business"
	"github.com/move-sure/ss-transport-sub000/pkg/errorutil"
	"github.com/move-sure/ss-transport-sub000/pkg/ewbno"
	"github.com/move-sure/ss-transport-sub000/pkg/infra/redis"
	"github.com/move-sure/ss-transport-sub000/pkg/logger"
)

// PreProcess 校验输入，确定 run id
func (h *Handler) PreProcess(ctx context.Context) error {
	if len(h.payload.Items) == 0 {
		return errorutil.NonRetriable("items is required")
	}
	for i, item := range h.payload.Items {
		if ewbno.Clean(item.EwbID) == "" {
			return errorutil.NonRetriable(fmt.Sprintf("items[%d].ewb_number is required", i))
		}
	}

	h.runID = h.payload.RunID
	if h.runID == "" {
		h.runID = h.GetMeta().ID
	}
	if h.runID == "" {
		h.runID = uuid.New().String()
	}
	return nil
}

// Process 载入已更新状态后运行编排器
func (h *Handler) Process(ctx context.Context) error {
	ctx = logger.WithRunID(ctx, h.runID)

	h.status = bulk.NewStatusMap()
	if h.deps.UpdatedStore != nil {
		ids := make([]string, 0, len(h.payload.Items))
		for _, item := range h.payload.Items {
			ids = append(ids, item.EwbID)
		}
		done, err := h.deps.UpdatedStore.LoadUpdatedOutcomes(ctx, ids)
		if err != nil {
			return errorutil.RetriableWithDetails("load updated outcomes failed", err.Error())
		}
		for _, o := range done {
			h.status.Put(o)
		}
	}

	settings := h.deps.Bulk
	orch := bulk.NewOrchestrator(h.deps.Resolver, h.deps.Updater, h.deps.Recorder, h.status, h.deps.Logger, bulk.Options{
		RunID:       h.runID,
		Backoff:     bulk.NewBackoff(settings.ItemDelay, settings.RateLimitRPS),
		CallTimeout: settings.CallTimeout,
	})

	if h.deps.Registry != nil {
		h.deps.Registry.Register(h.runID, orch)
		defer h.deps.Registry.Unregister(h.runID)
	}

	summary, err := orch.Run(ctx, h.payload.Items, h.status.IsUpdated, func(p bulk.Progress) {
		h.notify(ctx, p)
	})
	if err != nil {
		return errorutil.NonRetriable(err.Error())
	}
	h.summary = summary
	return nil
}

// PostProcess 输出汇总并发送回调
func (h *Handler) PostProcess(ctx context.Context) error {
	h.SetOutput(h.summary)

	queue := h.deps.Bulk.CallbackQueue
	if h.deps.Callback == nil || queue == "" {
		return nil
	}

	_, err := h.deps.Callback.PublishJSON(queue, &business.RunCallback{
		RequestID:   h.GetMeta().RequestID,
		RunID:       h.runID,
		Summary:     h.summary,
		ProcessedAt: time.Now().Unix(),
	})
	if err != nil {
		return errorutil.RetriableWithDetails("publish run callback failed", err.Error())
	}
	return nil
}

// notify 推送进度，失败只记录日志
func (h *Handler) notify(ctx context.Context, p bulk.Progress) {
	if h.deps.Notifier == nil || h.deps.Bulk.ProgressChannel == "" {
		return
	}
	err := h.deps.Notifier.PublishProgress(ctx, h.deps.Bulk.ProgressChannel, &redis.ProgressNotification{
		RunID:      h.runID,
		Current:    p.Current,
		Total:      p.Total,
		GroupLabel: p.GroupLabel,
		EwbNumber:  p.EwbID,
		Success:    p.Outcome.Success,
		Error:      p.Outcome.ErrorMessage,
		Timestamp:  p.Outcome.Timestamp.Unix(),
	})
	if err != nil {
		h.deps.Logger.Warnf(ctx, "[BulkUpdateHandler] publish progress failed: %v", err)
	}
}
