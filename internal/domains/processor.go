package domains

import (
	"context"
	"time"

	"github.com/bitleak/lmstfy/client"
	"github.com/google/uuid"

	"github.com/move-sure/ss-transport-sub000/internal/business"
	"github.com/move-sure/ss-transport-sub000/internal/framework"
	"github.com/move-sure/ss-transport-sub000/pkg/errorutil"
	"github.com/move-sure/ss-transport-sub000/pkg/lmstfyx"
	"github.com/move-sure/ss-transport-sub000/pkg/logger"
)

// GetProcess 返回核心处理函数（注入到 Processor）
func GetProcess(log logger.Logger, deps *business.Deps) lmstfyx.Proc {
	return getProcess(log, deps, HandlerMap)
}

func getProcess(log logger.Logger, deps *business.Deps, handlers map[string]HandlerFactory) lmstfyx.Proc {
	return func(ctx context.Context, lmstfyJob *client.Job) *lmstfyx.JobResp {
		startTime := time.Now()

		// 1. 解析 Job
		meta, bizPayload, err := framework.ParseJob(lmstfyJob.Data)
		if err != nil {
			log.Errorf(ctx, "[GetProcess] parseJob failed: job=%s, err=%v", lmstfyJob.ID, err)
			return lmstfyx.Bury(nil)
		}
		if meta.RequestID == "" {
			meta.RequestID = uuid.New().String()
		}

		// 2. 注入 TraceID 到 Context
		ctx = logger.WithTraceID(ctx, meta.RequestID)
		ctx = logger.WithActionType(ctx, meta.ActionType)

		log.Infof(ctx, "[GetProcess] Processing job: action_type=%s, request_id=%s, id=%s",
			meta.ActionType, meta.RequestID, meta.ID)

		// 3. 从 HandlerMap 获取 Handler
		factory, ok := handlers[meta.ActionType]
		if !ok {
			log.Errorf(ctx, "[GetProcess] handler not found for action_type: %s", meta.ActionType)
			return lmstfyx.Bury(nil)
		}

		// 4. 调用 Handler（捕获 panic）
		var resp *lmstfyx.JobResp
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf(ctx, "[GetProcess] handler panic: %v", r)
					resp = lmstfyx.Bury(nil)
				}
			}()

			handler, err := factory(ctx, framework.NewBaseHandler(meta, bizPayload), deps)
			if err != nil {
				log.Errorf(ctx, "[GetProcess] handler creation failed: %v", err)
				resp = doJobReport(ctx, nil, err, log)
				return
			}

			data, err := handler.Handle(ctx)
			resp = doJobReport(ctx, data, err, log)
		}()

		log.Infof(ctx, "[GetProcess] Processing complete: action=%s, duration=%v", resp.Action, time.Since(startTime))
		return resp
	}
}

// doJobReport 根据错误的可重试标记决定 ACK/Release/Bury
func doJobReport(ctx context.Context, data []byte, err error, log logger.Logger) *lmstfyx.JobResp {
	if err == nil {
		return lmstfyx.Success(data)
	}

	if errorutil.IsRetryable(err) {
		log.Warnf(ctx, "[doJobReport] retryable failure: %v", err)
		return lmstfyx.Release(data)
	}

	log.Errorf(ctx, "[doJobReport] permanent failure: %v", err)
	return lmstfyx.Bury(data)
}
