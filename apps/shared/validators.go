package shared

import (
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/coursework"
	"github.com/trezcool/darasa/core/user"
)

// NewValidator instantiates the validator shared by the apps, with the english error messages
// & the custom validations of every domain package.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	coursework.InitValidators(validate, translator)

	return validate, translator
}
