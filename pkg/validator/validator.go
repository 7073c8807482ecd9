package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/missioncare/intake-api/internal/model"
)

// RegisterCustomRules installs the domain validation tags on gin's binding
// engine. Call once at startup.
func RegisterCustomRules() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}

	if err := v.RegisterValidation("priority", validPriority); err != nil {
		return err
	}
	if err := v.RegisterValidation("category", validCategory); err != nil {
		return err
	}
	return nil
}

func validPriority(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s == "" || model.VisitPriority(s).Valid()
}

func validCategory(fl validator.FieldLevel) bool {
	return model.ItemCategory(fl.Field().String()).Valid()
}
