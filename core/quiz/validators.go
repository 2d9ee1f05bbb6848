package quiz

import (
	"strconv"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-lms/core"
)

var (
	oneCorrectTag  = "onecorrect"
	oneCorrectText = ErrNotOneCorrect.Error()
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(questionStructValidation, NewQuestion{})
	core.RegisterCustomTranslation(validate, translator, oneCorrectTag, oneCorrectText)
}

// questionStructValidation checks that exactly one option of a NewQuestion is marked correct.
func questionStructValidation(sl validator.StructLevel) {
	nq, ok := sl.Current().Interface().(NewQuestion)
	if !ok || len(nq.Options) < 2 {
		return // reported by field validation
	}
	var correct int
	for _, o := range nq.Options {
		if o.IsCorrect != nil && *o.IsCorrect {
			correct++
		}
	}
	if correct != 1 {
		sl.ReportError(nq.Options, "options", "Options", oneCorrectTag, "")
	}
}

func itoa(i int) string { return strconv.Itoa(i) }
