package shared

import (
	"strings"
	"sync"

	"github.com/YouHyuksoo/HANES-sub002/internal/constants"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators 向 gin 的校验引擎注册出货模块的自定义规则
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		if err = v.RegisterValidation("notblank", notBlank); err != nil {
			return
		}
		err = v.RegisterValidation("shipment_status", shipmentStatus)
	})
	return err
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func shipmentStatus(fl validator.FieldLevel) bool {
	return constants.IsShipmentStatus(strings.ToUpper(strings.TrimSpace(fl.Field().String())))
}
