package coursework

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

var (
	contentKindTag  = "contentkind"
	contentKindText = "kind must be one of TEXT, VIDEO or LINK"

	contentBodyTag  = "contentbody"
	contentBodyText = "text contents need a body"

	contentURLTag  = "contenturl"
	contentURLText = "video & link contents need a url"
)

// InitValidators registers the coursework validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(contentKindTag, contentKindValidation)
	core.RegisterCustomTranslation(validate, translator, contentKindTag, contentKindText)

	validate.RegisterStructValidation(contentStructValidation, NewMaterialContent{})
	core.RegisterCustomTranslation(validate, translator, contentBodyTag, contentBodyText)
	core.RegisterCustomTranslation(validate, translator, contentURLTag, contentURLText)
}

func contentKindValidation(fl validator.FieldLevel) bool {
	return core.ContainsString(AllKinds, fl.Field().String())
}

// contentStructValidation checks that each content kind carries what it displays.
func contentStructValidation(sl validator.StructLevel) {
	cnt := sl.Current().Interface().(NewMaterialContent)
	switch cnt.Kind {
	case KindText:
		if cnt.Body == "" {
			sl.ReportError(cnt.Body, "body", "Body", contentBodyTag, "")
		}
	case KindVideo, KindLink:
		if cnt.URL == "" {
			sl.ReportError(cnt.URL, "url", "URL", contentURLTag, "")
		}
	}
}
