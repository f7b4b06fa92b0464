// Package shared wires the dependencies common to the API and the admin CLI.
package shared

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/assessment"
	"github.com/academia-hq/academia/core/permission"
	"github.com/academia-hq/academia/core/user"
)

// NewValidator returns the validator with every custom tag & english translation registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	permission.InitValidators(validate, translator)
	assessment.InitValidators(validate, translator)
	return validate, translator
}
