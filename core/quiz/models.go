package quiz

import (
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core"
)

var (
	ErrNoQuestions     = errors.New("a quiz requires at least one question")
	ErrTooFewOptions   = errors.New("a question requires at least two options")
	ErrNotOneCorrect   = errors.New("exactly one option must be marked correct")
	ErrUnknownOption   = errors.New("option does not belong to question")
	ErrUnknownQuestion = errors.New("question does not belong to quiz")
)

// Question belongs to either a quiz resource or a quiz assignment.
type Question struct {
	ID           string   `json:"id"`
	ResourceID   string   `json:"-"`
	AssignmentID string   `json:"-"`
	Question     string   `json:"question"`
	Position     int      `json:"position"`
	Points       float64  `json:"points"`
	Options      []Option `json:"options"`
}

type Option struct {
	ID         string `json:"id"`
	QuestionID string `json:"-"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"is_correct"`
	Position   int    `json:"position"`
}

// CorrectOption returns the option marked correct; ok is false unless exactly one is.
func (q Question) CorrectOption() (opt Option, ok bool) {
	var n int
	for _, o := range q.Options {
		if o.IsCorrect {
			opt = o
			n++
		}
	}
	return opt, n == 1
}

// Answer is the option a student picked for a question.
type Answer struct {
	QuestionID string `json:"question_id" validate:"required"`
	OptionID   string `json:"option_id" validate:"required"`
}

// NewQuestion contains information needed to author a question.
type NewQuestion struct {
	Question string      `json:"question" validate:"required"`
	Points   float64     `json:"points" validate:"gte=0"`
	Options  []NewOption `json:"options" validate:"required,min=2,dive"`
}

type NewOption struct {
	Text      string `json:"text" validate:"required"`
	IsCorrect *bool  `json:"is_correct" validate:"required"`
}

// Clean trims question and option texts.
func Clean(nqs []NewQuestion) {
	for i := range nqs {
		nqs[i].Question = core.CleanString(nqs[i].Question)
		for j := range nqs[i].Options {
			nqs[i].Options[j].Text = core.CleanString(nqs[i].Options[j].Text)
		}
	}
}

// Build turns validated NewQuestions into Questions with 1-based positions.
func Build(nqs []NewQuestion) []Question {
	qs := make([]Question, 0, len(nqs))
	for i, nq := range nqs {
		q := Question{
			Question: nq.Question,
			Position: i + 1,
			Points:   nq.Points,
			Options:  make([]Option, 0, len(nq.Options)),
		}
		for j, no := range nq.Options {
			q.Options = append(q.Options, Option{
				Text:      no.Text,
				IsCorrect: no.IsCorrect != nil && *no.IsCorrect,
				Position:  j + 1,
			})
		}
		qs = append(qs, q)
	}
	return qs
}

// CheckInvariants re-checks the structural rules of a question set right before it is written.
func CheckInvariants(qs []Question) error {
	if len(qs) == 0 {
		return core.NewValidationError(ErrNoQuestions, core.FieldError{Field: "questions", Error: ErrNoQuestions.Error()})
	}
	for i, q := range qs {
		if len(q.Options) < 2 {
			return core.NewValidationError(ErrTooFewOptions, core.FieldError{
				Field: questionField(i, "options"), Error: ErrTooFewOptions.Error(),
			})
		}
		if _, ok := q.CorrectOption(); !ok {
			return core.NewValidationError(ErrNotOneCorrect, core.FieldError{
				Field: questionField(i, "options"), Error: ErrNotOneCorrect.Error(),
			})
		}
	}
	return nil
}

func questionField(idx int, fld string) string {
	return "questions[" + itoa(idx) + "]." + fld
}

// Redacted is the student facing view of a question, without correctness flags.
type Redacted struct {
	ID       string           `json:"id"`
	Question string           `json:"question"`
	Position int              `json:"position"`
	Points   float64          `json:"points"`
	Options  []RedactedOption `json:"options"`
}

type RedactedOption struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Position int    `json:"position"`
}

func Redact(qs []Question) []Redacted {
	out := make([]Redacted, 0, len(qs))
	for _, q := range qs {
		r := Redacted{
			ID:       q.ID,
			Question: q.Question,
			Position: q.Position,
			Points:   q.Points,
			Options:  make([]RedactedOption, 0, len(q.Options)),
		}
		for _, o := range q.Options {
			r.Options = append(r.Options, RedactedOption{ID: o.ID, Text: o.Text, Position: o.Position})
		}
		out = append(out, r)
	}
	return out
}

// CountCorrect returns how many answers picked the correct option.
// Answers to unknown questions or with unknown options are errors; unanswered questions count as wrong.
func CountCorrect(qs []Question, answers []Answer) (int, error) {
	byID := make(map[string]Question, len(qs))
	for _, q := range qs {
		byID[q.ID] = q
	}

	var correct int
	seen := make(map[string]bool, len(answers))
	for _, a := range answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			return 0, ErrUnknownQuestion
		}
		if seen[a.QuestionID] {
			continue // first answer wins
		}
		seen[a.QuestionID] = true

		var found bool
		for _, o := range q.Options {
			if o.ID == a.OptionID {
				found = true
				if o.IsCorrect {
					correct++
				}
				break
			}
		}
		if !found {
			return 0, ErrUnknownOption
		}
	}
	return correct, nil
}

// CheckAnswers validates answers against the question set without scoring them.
func CheckAnswers(qs []Question, answers []Answer) error {
	if _, err := CountCorrect(qs, answers); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "answers", Error: err.Error()})
	}
	return nil
}
