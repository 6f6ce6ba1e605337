package handler

import (
	"milkrun/internal/stock"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators adds the custom binding tags used by request DTOs.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("delivery_status", func(fl validator.FieldLevel) bool {
		return stock.Status(fl.Field().String()).Valid()
	})
}
