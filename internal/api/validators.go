package api

import (
	"alcyxob/gym-booking/internal/domain"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators adds the custom binding tags used by request DTOs:
//
//	sessiondate  "YYYY-MM-DD"
//	clocktime    "HH:MM" (24h)
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("sessiondate", func(fl validator.FieldLevel) bool {
			_, err := domain.ParseSessionDate(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("clocktime", func(fl validator.FieldLevel) bool {
			_, _, err := domain.ParseClockTime(fl.Field().String())
			return err == nil
		})
	})
}
