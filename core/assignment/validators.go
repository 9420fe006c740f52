package assignment

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/maendeleo/core"
)

var (
	assignmentTypeTag  = "assignmenttype"
	assignmentTypeText = "invalid assignment type"
)

func init() {
	_ = core.Validate.RegisterValidation(assignmentTypeTag, assignmentTypeValidation)
	core.RegisterCustomTranslation(assignmentTypeTag, assignmentTypeText)
}

// assignmentTypeValidation checks that the provided type is a known assignment type.
func assignmentTypeValidation(fl validator.FieldLevel) bool {
	return Type(fl.Field().String()).Valid()
}
