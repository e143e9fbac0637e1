package domains

import (
	"context"

	"github.com/move-sure/ss-transport-sub000/internal/business"
	"github.com/move-sure/ss-transport-sub000/internal/business/bulkupdate"
	"github.com/move-sure/ss-transport-sub000/internal/business/validate"
	"github.com/move-sure/ss-transport-sub000/internal/framework"
)

// HandlerFactory Handler 构造函数类型
type HandlerFactory func(
	ctx context.Context,
	baseHandler *framework.BaseHandler,
	deps *business.Deps,
) (framework.BusinessHandler, error)

// HandlerMap 路由表（ActionType → Handler 映射）
var HandlerMap = map[string]HandlerFactory{
	business.ActionBulkUpdate: bulkupdate.NewHandler,
	business.ActionValidate:   validate.NewHandler,
}
