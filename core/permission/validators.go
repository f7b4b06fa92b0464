package permission

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/user"
)

var (
	permTag  = "perm"
	permText = "unknown permission"

	roleTag  = "role"
	roleText = "invalid role"
)

// InitValidators registers the permission validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(permTag, func(fl validator.FieldLevel) bool {
		return IsValid(fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, permTag, permText)

	_ = validate.RegisterValidation(roleTag, func(fl validator.FieldLevel) bool {
		return isValidRole(fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, roleTag, roleText)
}

func isValidRole(role string) bool {
	return user.IsValidRole(role)
}
