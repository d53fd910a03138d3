package router

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/bugtally/notify-engine/internal/model"
)

var registerValidationsOnce sync.Once

// registerValidations extends gin's binding validator with domain value
// checks, so request structs can declare them alongside the built-in tags.
func registerValidations() {
	registerValidationsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterValidation("channel", func(fl validator.FieldLevel) bool {
			switch fl.Field().String() {
			case model.ChannelEmail, model.ChannelPush, model.ChannelChat,
				model.ChannelWebhook, model.ChannelInApp:
				return true
			}
			return false
		})

		v.RegisterValidation("event_type", func(fl validator.FieldLevel) bool {
			candidate := model.EventType(fl.Field().String())
			for _, et := range model.EventTypes {
				if et == candidate {
					return true
				}
			}
			return false
		})
	})
}
