package validate

import (
	"context"
	"time"

	"github.com/move-sure/ss-transport-sub000/internal/bulk"
	"github.com/move-sure/ss-transport-sub000/internal/business"
	"github.com/move-sure/ss-transport-sub000/internal/framework"
	"github.com/move-sure/ss-transport-sub000/internal/validation"
	"github.com/move-sure/ss-transport-sub000/pkg/errorutil"
)

// Payload Job 消息中的业务数据
type Payload struct {
	EwbNumbers []string `json:"ewb_numbers"`
}

// Output 批量校验结果
type Output struct {
	Results      []validation.Outcome `json:"results"`
	Valid        int                  `json:"valid"`
	Invalid      int                  `json:"invalid"`
	RequestError int                  `json:"request_error"`
	ProcessedAt  int64                `json:"processed_at"`
}

// Handler EWB 批量校验处理器
type Handler struct {
	*framework.BaseHandler

	deps    *business.Deps
	payload Payload
}

// NewHandler 创建校验处理器
func NewHandler(ctx context.Context, base *framework.BaseHandler, deps *business.Deps) (framework.BusinessHandler, error) {
	h := &Handler{BaseHandler: base, deps: deps}
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
	)
	if err := preProcessor.Run(ctx); err != nil {
		return h.WrapErrorResponse(ctx, err)
	}
	return h.WrapResponse(ctx, h.GetOutput())
}

// PreProcess 校验输入
func (h *Handler) PreProcess(ctx context.Context) error {
	if len(h.payload.EwbNumbers) == 0 {
		return errorutil.NonRetriable("ewb_numbers is required")
	}
	return nil
}

// Process 顺序校验，真实请求之间按配置限速
func (h *Handler) Process(ctx context.Context) error {
	pacer := bulk.NewBackoff(h.deps.Bulk.ItemDelay, h.deps.Bulk.RateLimitRPS)
	results := h.deps.Validator.ValidateMany(ctx, h.payload.EwbNumbers, pacer)
	h.deps.Validator.Flush()

	out := &Output{Results: results, ProcessedAt: time.Now().Unix()}
	for _, r := range results {
		switch {
		case r.Failure == nil:
			out.Valid++
		case r.Failure.Reason == validation.ReasonInvalid:
			out.Invalid++
		default:
			out.RequestError++
		}
	}

	h.deps.Logger.Infof(ctx, "[ValidateHandler] validated %d/%d: valid=%d, invalid=%d, request_error=%d",
		len(results), len(h.payload.EwbNumbers), out.Valid, out.Invalid, out.RequestError)

	h.SetOutput(out)
	return nil
}
