package bulkupdate

import (
	"context"

	"github.com/move-sure/ss-transport-sub000/internal/bulk"
	"github.com/move-sure/ss-transport-sub000/internal/business"
	"github.com/move-sure/ss-transport-sub000/internal/framework"
)

// Handler 批量承运人更新处理器
type Handler struct {
	*framework.BaseHandler

	deps    *business.Deps
	payload Payload
	runID   string
	status  *bulk.StatusMap
	summary *bulk.Summary
}

// NewHandler 创建批量更新处理器
func NewHandler(ctx context.Context, base *framework.BaseHandler, deps *business.Deps) (framework.BusinessHandler, error) {
	h := &Handler{
		BaseHandler: base,
		deps:        deps,
	}
	if err := base.DecodePayload(&h.payload); err != nil {
		return nil, err
	}
	return h, nil
}

// Handle 处理入口
func (h *Handler) Handle(ctx context.Context) ([]byte, error) {
	preProcessor := framework.NewPreProcessor(
		framework.Step{Name: "pre_process", Fn: h.PreProcess},
		framework.Step{Name: "process", Fn: h.Process},
		framework.Step{Name: "post_process", Fn: h.PostProcess},
	)
	if err := preProcessor.Run(ctx); err != nil {
		return h.WrapErrorResponse(ctx, err)
	}
	return h.WrapResponse(ctx, h.GetOutput())
}
