package ginx

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/move-sure/ss-transport-sub000/pkg/ewbno"
)

// RegisterValidators 注册自定义校验规则
// ewbno：清洗后必须是 12 位数字
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("ewbno", func(fl validator.FieldLevel) bool {
		return ewbno.Valid(ewbno.Clean(fl.Field().String()))
	})
}
