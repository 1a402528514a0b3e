package httpapi

import (
	"errors"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"storefront/internal/repository"
)

var registerOnce sync.Once

// registerValidators добавляет правило objectid к валидатору gin
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
			return repository.ValidID(fl.Field().String())
		})
	})
}

// bindError текст ошибки валидации без внутренних имён структур
func bindError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Field() + " failed on " + verrs[0].Tag()
	}
	return "invalid json"
}
