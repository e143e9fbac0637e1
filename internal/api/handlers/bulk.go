package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/move-sure/ss-transport-sub000/internal/api/ginx"
	"github.com/move-sure/ss-transport-sub000/internal/business"
	"github.com/move-sure/ss-transport-sub000/internal/framework"
	"github.com/move-sure/ss-transport-sub000/pkg/infra/mysql"
	"github.com/move-sure/ss-transport-sub000/pkg/logger"
)

// Create 提交批量承运人更新
// POST /api/v1/bulk-updates
func (h *BulkHandler) Create(c *gin.Context) {
	var req BulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ginx.BadRequestWithValidation(c, err)
		return
	}

	ctx := c.Request.Context()
	runID := uuid.New().String()
	items := req.ToWorkItems()

	if err := h.runs.CreateQueuedRun(ctx, runID, len(items)); err != nil {
		h.logger.Errorf(ctx, "[BulkHandler] create run failed: %v", err)
		ginx.InternalError(c, "create run failed")
		return
	}

	job, err := framework.NewJob(logger.TraceID(ctx), business.ActionBulkUpdate, runID, map[string]interface{}{
		"run_id": runID,
		"items":  items,
	})
	if err != nil {
		ginx.InternalError(c, err.Error())
		return
	}

	jobID, err := h.jobs.PublishJSON(h.queue, job)
	if err != nil {
		h.logger.Errorf(ctx, "[BulkHandler] enqueue run %s failed: %v", runID, err)
		ginx.InternalError(c, "enqueue failed")
		return
	}

	h.logger.Infof(ctx, "[BulkHandler] run %s queued: items=%d, job=%s", runID, len(items), jobID)
	ginx.Accepted(c, ginx.AcceptedData{
		RunID:   runID,
		JobID:   jobID,
		PollURL: "/api/v1/bulk-updates/" + runID,
	})
}

// Get 查询批量运行
// GET /api/v1/bulk-updates/:run_id
func (h *BulkHandler) Get(c *gin.Context) {
	runID := c.Param("run_id")
	run, err := h.runs.GetRun(c.Request.Context(), runID)
	if errors.Is(err, mysql.ErrNotFound) {
		ginx.NotFound(c, "run not found")
		return
	}
	if err != nil {
		h.logger.Errorf(c.Request.Context(), "[BulkHandler] get run failed: %v", err)
		ginx.InternalError(c, "query failed")
		return
	}

	resp := RunResponse{
		RunID:     run.RunID,
		State:     run.State,
		Total:     run.Total,
		Skipped:   run.Skipped,
		Processed: run.Processed,
		Success:   run.Success,
		Failure:   run.Failure,
		Summary:   []byte(run.Summary),
	}
	if !run.StartedAt.IsZero() {
		resp.StartedAt = &run.StartedAt
	}
	if !run.FinishedAt.IsZero() {
		resp.FinishedAt = &run.FinishedAt
	}
	ginx.Success(c, resp)
}

// Cancel 取消批量运行：当前条目完成后停止
// POST /api/v1/bulk-updates/:run_id/cancel
func (h *BulkHandler) Cancel(c *gin.Context) {
	runID := c.Param("run_id")
	ctx := c.Request.Context()

	_, err := h.runs.GetRun(ctx, runID)
	if errors.Is(err, mysql.ErrNotFound) {
		ginx.NotFound(c, "run not found")
		return
	}
	if err != nil {
		h.logger.Errorf(ctx, "[BulkHandler] get run %s failed: %v", runID, err)
		ginx.InternalError(c, "query failed")
		return
	}

	if err := h.cancels.PublishCancel(ctx, h.cancelChannel, runID); err != nil {
		h.logger.Errorf(ctx, "[BulkHandler] publish cancel %s failed: %v", runID, err)
		ginx.InternalError(c, "cancel failed")
		return
	}

	h.logger.Infof(ctx, "[BulkHandler] cancel requested for run %s", runID)
	ginx.Success(c, gin.H{"run_id": runID, "cancel_requested": true})
}
