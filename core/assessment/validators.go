package assessment

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/academia-hq/academia/core"
)

const (
	scopeTag  = "scope"
	scopeText = "must be one of campus, program or class"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(scopeTag, scopeValidation)
	core.RegisterCustomTranslation(validate, translator, scopeTag, scopeText)
}

func scopeValidation(fl validator.FieldLevel) bool {
	return IsValidScope(fl.Field().String())
}

func IsValidScope(scope string) bool {
	for _, s := range Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
