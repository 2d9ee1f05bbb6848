package resource

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-lms/core"
)

var (
	// custom validation tags & texts
	resourceTypeTag  = "resourcetype"
	resourceTypeText = "must be one of attachment, rich_text, quiz, external"

	payloadRequiredTag  = "payload"
	payloadRequiredText = "this field is required for the chosen resource_type"

	filesRequiredTag  = "files"
	filesRequiredText = "at least one file is required"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(resourceTypeTag, resourceTypeValidation)
	core.RegisterCustomTranslation(validate, translator, resourceTypeTag, resourceTypeText)

	validate.RegisterStructValidation(newResourceStructValidation, NewResource{})
	core.RegisterCustomTranslation(validate, translator, payloadRequiredTag, payloadRequiredText)
	core.RegisterCustomTranslation(validate, translator, filesRequiredTag, filesRequiredText)
}

func resourceTypeValidation(fl validator.FieldLevel) bool {
	return Type(fl.Field().String()).Valid()
}

// newResourceStructValidation requires the payload keyed by the resource type.
func newResourceStructValidation(sl validator.StructLevel) {
	nr, ok := sl.Current().Interface().(NewResource)
	if !ok {
		return
	}
	switch nr.ResourceType {
	case TypeAttachment:
		if nr.Attachment == nil || len(nr.Attachment.Files) == 0 {
			sl.ReportError(nr.Attachment, "attachment.files", "Attachment", filesRequiredTag, "")
		}
	case TypeRichText:
		if nr.RichText == nil {
			sl.ReportError(nr.RichText, "rich_text", "RichText", payloadRequiredTag, "")
		}
	case TypeQuiz:
		if nr.Quiz == nil {
			sl.ReportError(nr.Quiz, "quiz", "Quiz", payloadRequiredTag, "")
		}
	case TypeExternal:
		if nr.External == nil {
			sl.ReportError(nr.External, "external", "External", payloadRequiredTag, "")
		}
	}
}
