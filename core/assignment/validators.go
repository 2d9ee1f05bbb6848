package assignment

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-lms/core"
)

var (
	// custom validation tags & texts
	requiredIfQuizTag  = "required_if_quiz"
	requiredIfQuizText = "a quiz assignment requires at least one question"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(requiredIfQuizTag, requiredIfQuizValidation, true)
	core.RegisterCustomTranslation(validate, translator, requiredIfQuizTag, requiredIfQuizText)
}

func requiredIfQuizValidation(fl validator.FieldLevel) bool {
	na, ok := fl.Top().Interface().(*NewAssignment)
	if !ok {
		if v, isVal := fl.Top().Interface().(NewAssignment); isVal {
			na, ok = &v, true
		}
	}
	if !ok || na.Type != TypeQuiz {
		return true
	}
	return fl.Field().Len() > 0
}
