package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/move-sure/ss-transport-sub000/internal/api/ginx"
	"github.com/move-sure/ss-transport-sub000/internal/business"
	"github.com/move-sure/ss-transport-sub000/internal/framework"
	"github.com/move-sure/ss-transport-sub000/internal/validation"
	"github.com/move-sure/ss-transport-sub000/pkg/ewbno"
	"github.com/move-sure/ss-transport-sub000/pkg/infra/mysql"
	"github.com/move-sure/ss-transport-sub000/pkg/logger"
)

// Validate 同步校验单个 EWB
// POST /api/v1/ewb/validate
// 不存在的 EWB 返回 200 且 valid=false；上游故障返回 502
func (h *EwbHandler) Validate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ginx.BadRequestWithValidation(c, err)
		return
	}

	id := ewbno.Clean(req.EwbNumber)
	resp := ValidateResponse{EwbNumber: id, Formatted: ewbno.Format(id)}

	result, failure := h.validator.Validate(c.Request.Context(), id)
	if failure != nil {
		resp.Reason = string(failure.Reason)
		resp.Message = failure.Message
		if failure.Reason == validation.ReasonRequestError {
			ginx.ErrorWithData(c, http.StatusBadGateway, "validation service unavailable", resp)
			return
		}
		ginx.Success(c, resp)
		return
	}

	resp.Valid = true
	resp.FromCache = result.FromCache
	resp.Payload = result.Payload
	ginx.Success(c, resp)
}

// ValidateBatch 异步批量校验，结果由 worker 写入校验记录
// POST /api/v1/ewb/validate-batch
func (h *EwbHandler) ValidateBatch(c *gin.Context) {
	var req ValidateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ginx.BadRequestWithValidation(c, err)
		return
	}

	ctx := c.Request.Context()
	job, err := framework.NewJob(logger.TraceID(ctx), business.ActionValidate, uuid.New().String(), map[string]interface{}{
		"ewb_numbers": req.EwbNumbers,
	})
	if err != nil {
		ginx.InternalError(c, err.Error())
		return
	}

	jobID, err := h.jobs.PublishJSON(h.queue, job)
	if err != nil {
		h.logger.Errorf(ctx, "[EwbHandler] enqueue validate job failed: %v", err)
		ginx.InternalError(c, "enqueue failed")
		return
	}
	ginx.Accepted(c, ginx.AcceptedData{RunID: job.Payload.Data.ID, JobID: jobID})
}

// CacheStats 缓存统计
// GET /api/v1/ewb/cache/stats
func (h *EwbHandler) CacheStats(c *gin.Context) {
	stats, err := h.cache.Stats(c.Request.Context())
	if err != nil {
		h.logger.Errorf(c.Request.Context(), "[EwbHandler] cache stats failed: %v", err)
		ginx.InternalError(c, "cache unavailable")
		return
	}
	ginx.Success(c, stats)
}

// ClearCache 清空校验缓存
// DELETE /api/v1/ewb/cache
func (h *EwbHandler) ClearCache(c *gin.Context) {
	if err := h.cache.Clear(c.Request.Context()); err != nil {
		h.logger.Errorf(c.Request.Context(), "[EwbHandler] clear cache failed: %v", err)
		ginx.InternalError(c, "cache unavailable")
		return
	}
	ginx.Success(c, gin.H{"cleared": true})
}

// GetUpdate 查询单个 EWB 最近一次承运人更新结果
// GET /api/v1/ewb/:ewb_number/update
func (h *EwbHandler) GetUpdate(c *gin.Context) {
	id := ewbno.Clean(c.Param("ewb_number"))
	if !ewbno.Valid(id) {
		ginx.BadRequest(c, "ewb_number must be a 12 digit e-way bill number")
		return
	}

	outcome, err := h.updates.GetLatestUpdate(c.Request.Context(), id)
	if errors.Is(err, mysql.ErrNotFound) {
		ginx.NotFound(c, "no transporter update recorded for "+ewbno.Format(id))
		return
	}
	if err != nil {
		h.logger.Errorf(c.Request.Context(), "[EwbHandler] get update failed: %v", err)
		ginx.InternalError(c, "query failed")
		return
	}
	ginx.Success(c, outcome)
}
