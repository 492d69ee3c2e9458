package assignment

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/jifunze/core"
)

var (
	// due dates may be set up to a day in the past (timezones, late edits)
	dueDateGrace = 24 * time.Hour
	dueDateTag   = "duedate"
	dueDateText  = "due date cannot be more than 24 hours in the past"

	nowFunc = time.Now // mockable
)

// InitValidators registers the assignment validators on `validate`.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(dueDateTag, dueDateValidation)
	core.RegisterCustomTranslation(validate, translator, dueDateTag, dueDateText)
}

func dueDateValidation(fl validator.FieldLevel) bool {
	due, ok := fl.Field().Interface().(time.Time)
	if !ok {
		return false
	}
	return !due.Before(nowFunc().Add(-dueDateGrace))
}
