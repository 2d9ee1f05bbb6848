package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/quiz"
)

type questionRow struct {
	ID           string      `db:"id"`
	ResourceID   null.String `db:"resource_id"`
	AssignmentID null.String `db:"assignment_id"`
	Question     string      `db:"question"`
	Position     int         `db:"position"`
	Points       float64     `db:"points"`
}

type optionRow struct {
	ID         string `db:"id"`
	QuestionID string `db:"question_id"`
	Text       string `db:"text"`
	IsCorrect  bool   `db:"is_correct"`
	Position   int    `db:"position"`
}

// insertQuestions writes qs and their options, owned by either a resource or an assignment.
func insertQuestions(ctx context.Context, exec sqlx.ExtContext, qs []quiz.Question, resourceID, assignmentID string) ([]quiz.Question, error) {
	if len(qs) == 0 {
		return nil, nil
	}

	questions := psql.Insert("quiz_questions").Columns("id", "resource_id", "assignment_id", "question", "position", "points")
	options := psql.Insert("quiz_options").Columns("id", "question_id", "text", "is_correct", "position")
	out := make([]quiz.Question, 0, len(qs))
	for _, q := range qs {
		q.ID = uuid.New().String()
		q.ResourceID = resourceID
		q.AssignmentID = assignmentID
		questions = questions.Values(
			q.ID,
			null.NewString(resourceID, resourceID != ""),
			null.NewString(assignmentID, assignmentID != ""),
			q.Question, q.Position, q.Points,
		)

		opts := make([]quiz.Option, 0, len(q.Options))
		for _, o := range q.Options {
			o.ID = uuid.New().String()
			o.QuestionID = q.ID
			options = options.Values(o.ID, o.QuestionID, o.Text, o.IsCorrect, o.Position)
			opts = append(opts, o)
		}
		q.Options = opts
		out = append(out, q)
	}

	if _, err := execute(ctx, exec, questions); err != nil {
		return nil, errors.Wrap(err, "inserting quiz questions")
	}
	if _, err := execute(ctx, exec, options); err != nil {
		if pqCode(err) == uniqueViolation {
			return nil, core.NewValidationError(quiz.ErrNotOneCorrect, core.FieldError{
				Field: "questions", Error: quiz.ErrNotOneCorrect.Error(),
			})
		}
		return nil, errors.Wrap(err, "inserting quiz options")
	}
	return out, nil
}

// loadQuestions returns the questions whose ownerColumn is ownerID, with their options, in position order.
func loadQuestions(ctx context.Context, exec sqlx.ExtContext, ownerColumn, ownerID string) ([]quiz.Question, error) {
	var qrows []questionRow
	query := psql.Select("id", "resource_id", "assignment_id", "question", "position", "points").
		From("quiz_questions").
		Where(sq.Eq{ownerColumn: ownerID}).
		OrderBy("position")
	if err := selectAll(ctx, exec, &qrows, query); err != nil {
		return nil, errors.Wrap(err, "querying quiz questions")
	}
	if len(qrows) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(qrows))
	for _, qr := range qrows {
		ids = append(ids, qr.ID)
	}
	var orows []optionRow
	query = psql.Select("id", "question_id", "text", "is_correct", "position").
		From("quiz_options").
		Where(sq.Eq{"question_id": ids}).
		OrderBy("position")
	if err := selectAll(ctx, exec, &orows, query); err != nil {
		return nil, errors.Wrap(err, "querying quiz options")
	}
	byQuestion := make(map[string][]quiz.Option, len(qrows))
	for _, or := range orows {
		byQuestion[or.QuestionID] = append(byQuestion[or.QuestionID], quiz.Option{
			ID:         or.ID,
			QuestionID: or.QuestionID,
			Text:       or.Text,
			IsCorrect:  or.IsCorrect,
			Position:   or.Position,
		})
	}

	qs := make([]quiz.Question, 0, len(qrows))
	for _, qr := range qrows {
		qs = append(qs, quiz.Question{
			ID:           qr.ID,
			ResourceID:   qr.ResourceID.String,
			AssignmentID: qr.AssignmentID.String,
			Question:     qr.Question,
			Position:     qr.Position,
			Points:       qr.Points,
			Options:      byQuestion[qr.ID],
		})
	}
	return qs, nil
}
