package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"gorm.io/datatypes"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/assignment"
	"github.com/trezcool/masomo-lms/core/quiz"
	"github.com/trezcool/masomo-lms/storage/database"
)

var (
	assignmentColumns = []string{
		"id", "course_id", "title", "description", "assignment_type", "due_date", "points_possible", "published",
		"allow_late_submissions", "late_penalty_percentage", "created_at", "updated_at",
	}
	submissionColumns = []string{
		"id", "assignment_id", "user_id", "status", "is_late", "submitted_at", "grade", "raw_grade",
		"feedback", "graded_at", "answers", "created_at", "updated_at",
	}
)

type assignmentRow struct {
	ID                    string    `db:"id"`
	CourseID              string    `db:"course_id"`
	Title                 string    `db:"title"`
	Description           string    `db:"description"`
	Type                  string    `db:"assignment_type"`
	DueDate               null.Time `db:"due_date"`
	PointsPossible        int       `db:"points_possible"`
	Published             bool      `db:"published"`
	AllowLateSubmissions  bool      `db:"allow_late_submissions"`
	LatePenaltyPercentage int       `db:"late_penalty_percentage"`
	CreatedAt             time.Time `db:"created_at"`
	UpdatedAt             time.Time `db:"updated_at"`
}

func (row assignmentRow) assignment() assignment.Assignment {
	return assignment.Assignment{
		ID:                    row.ID,
		CourseID:              row.CourseID,
		Title:                 row.Title,
		Description:           row.Description,
		Type:                  assignment.Type(row.Type),
		DueDate:               utcPtr(row.DueDate),
		PointsPossible:        row.PointsPossible,
		Published:             row.Published,
		AllowLateSubmissions:  row.AllowLateSubmissions,
		LatePenaltyPercentage: row.LatePenaltyPercentage,
		CreatedAt:             row.CreatedAt.UTC(),
		UpdatedAt:             row.UpdatedAt.UTC(),
	}
}

type submissionRow struct {
	ID           string                           `db:"id"`
	AssignmentID string                           `db:"assignment_id"`
	UserID       string                           `db:"user_id"`
	Status       string                           `db:"status"`
	IsLate       bool                             `db:"is_late"`
	SubmittedAt  null.Time                        `db:"submitted_at"`
	Grade        null.Float64                     `db:"grade"`
	RawGrade     null.Float64                     `db:"raw_grade"`
	Feedback     null.String                      `db:"feedback"`
	GradedAt     null.Time                        `db:"graded_at"`
	Answers      datatypes.JSONSlice[quiz.Answer] `db:"answers"`
	CreatedAt    time.Time                        `db:"created_at"`
	UpdatedAt    time.Time                        `db:"updated_at"`
}

func (row submissionRow) submission() assignment.Submission {
	s := assignment.Submission{
		ID:           row.ID,
		AssignmentID: row.AssignmentID,
		UserID:       row.UserID,
		Status:       assignment.Status(row.Status),
		IsLate:       row.IsLate,
		SubmittedAt:  utcPtr(row.SubmittedAt),
		Grade:        row.Grade.Ptr(),
		RawGrade:     row.RawGrade.Ptr(),
		Feedback:     row.Feedback.Ptr(),
		GradedAt:     utcPtr(row.GradedAt),
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
	if len(row.Answers) > 0 {
		s.Answers = row.Answers
	}
	return s
}

func submissionValues(s assignment.Submission) map[string]interface{} {
	answers := s.Answers
	if answers == nil {
		answers = []quiz.Answer{}
	}
	return map[string]interface{}{
		"status":       string(s.Status),
		"is_late":      s.IsLate,
		"submitted_at": null.TimeFromPtr(s.SubmittedAt),
		"grade":        null.Float64FromPtr(s.Grade),
		"raw_grade":    null.Float64FromPtr(s.RawGrade),
		"feedback":     null.StringFromPtr(s.Feedback),
		"graded_at":    null.TimeFromPtr(s.GradedAt),
		"answers":      datatypes.NewJSONSlice(answers),
		"updated_at":   s.UpdatedAt.UTC(),
	}
}

func utcPtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

type assignmentRepository struct {
	repository
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *database.DB) assignment.Repository {
	return &assignmentRepository{repository{db: db}}
}

func (repo assignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment, exec ...core.DBExecutor) (assignment.Assignment, error) {
	ex := repo.getExec(exec)
	a.ID = uuid.New().String()
	query := psql.Insert("assignments").SetMap(map[string]interface{}{
		"id":                      a.ID,
		"course_id":               a.CourseID,
		"title":                   a.Title,
		"description":             a.Description,
		"assignment_type":         string(a.Type),
		"due_date":                null.TimeFromPtr(a.DueDate),
		"points_possible":         a.PointsPossible,
		"published":               a.Published,
		"allow_late_submissions":  a.AllowLateSubmissions,
		"late_penalty_percentage": a.LatePenaltyPercentage,
		"created_at":              a.CreatedAt.UTC(),
		"updated_at":              a.UpdatedAt.UTC(),
	})
	if _, err := execute(ctx, ex, query); err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "inserting assignment")
	}

	qs, err := insertQuestions(ctx, ex, a.Questions, "", a.ID)
	if err != nil {
		return assignment.Assignment{}, err
	}
	a.Questions = qs
	return a, nil
}

func (repo assignmentRepository) GetAssignment(ctx context.Context, id string, exec ...core.DBExecutor) (assignment.Assignment, error) {
	if !validID(id) {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	ex := repo.getExec(exec)

	var row assignmentRow
	query := psql.Select(assignmentColumns...).From("assignments").Where(sq.Eq{"id": id})
	if err := get(ctx, ex, &row, query); err != nil {
		return assignment.Assignment{}, trapNoRowsErr(err, assignment.ErrNotFound, "getting assignment")
	}
	a := row.assignment()
	if a.Type == assignment.TypeQuiz {
		qs, err := loadQuestions(ctx, ex, "assignment_id", a.ID)
		if err != nil {
			return assignment.Assignment{}, err
		}
		a.Questions = qs
	}
	return a, nil
}

func (repo assignmentRepository) QueryAssignments(ctx context.Context, filter assignment.QueryFilter, exec ...core.DBExecutor) ([]assignment.Assignment, error) {
	query := psql.Select(assignmentColumns...).From("assignments").OrderBy("due_date ASC NULLS LAST", "created_at")
	if filter.CourseID != "" {
		query = query.Where(sq.Eq{"course_id": filter.CourseID})
	}
	if filter.Published != nil {
		query = query.Where(sq.Eq{"published": *filter.Published})
	}

	var rows []assignmentRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	as := make([]assignment.Assignment, 0, len(rows))
	for _, row := range rows {
		as = append(as, row.assignment())
	}
	return as, nil
}

// UpdateAssignment updates the assignment row; questions are immutable.
func (repo assignmentRepository) UpdateAssignment(ctx context.Context, a assignment.Assignment, exec ...core.DBExecutor) (assignment.Assignment, error) {
	query := psql.Update("assignments").SetMap(map[string]interface{}{
		"title":                   a.Title,
		"description":             a.Description,
		"due_date":                null.TimeFromPtr(a.DueDate),
		"points_possible":         a.PointsPossible,
		"published":               a.Published,
		"allow_late_submissions":  a.AllowLateSubmissions,
		"late_penalty_percentage": a.LatePenaltyPercentage,
		"updated_at":              a.UpdatedAt.UTC(),
	}).Where(sq.Eq{"id": a.ID})
	if err := executeOne(ctx, repo.getExec(exec), query, assignment.ErrNotFound); err != nil {
		if err == assignment.ErrNotFound {
			return assignment.Assignment{}, err
		}
		return assignment.Assignment{}, errors.Wrap(err, "updating assignment")
	}
	return a, nil
}

func (repo assignmentRepository) CreateSubmission(ctx context.Context, s assignment.Submission, exec ...core.DBExecutor) (assignment.Submission, error) {
	s.ID = uuid.New().String()
	vals := submissionValues(s)
	vals["id"] = s.ID
	vals["assignment_id"] = s.AssignmentID
	vals["user_id"] = s.UserID
	vals["created_at"] = s.CreatedAt.UTC()
	if _, err := execute(ctx, repo.getExec(exec), psql.Insert("submissions").SetMap(vals)); err != nil {
		switch pqCode(err) {
		case uniqueViolation:
			return assignment.Submission{}, assignment.ErrAlreadySubmitted
		case foreignKeyViolation:
			return assignment.Submission{}, assignment.ErrNotFound
		}
		return assignment.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return s, nil
}

func (repo assignmentRepository) getSubmission(ctx context.Context, where sq.Eq, exec []core.DBExecutor) (assignment.Submission, error) {
	var row submissionRow
	query := psql.Select(submissionColumns...).From("submissions").Where(where)
	if err := get(ctx, repo.getExec(exec), &row, query); err != nil {
		return assignment.Submission{}, trapNoRowsErr(err, assignment.ErrSubmissionNotFound, "getting submission")
	}
	return row.submission(), nil
}

func (repo assignmentRepository) GetSubmission(ctx context.Context, id string, exec ...core.DBExecutor) (assignment.Submission, error) {
	if !validID(id) {
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}
	return repo.getSubmission(ctx, sq.Eq{"id": id}, exec)
}

func (repo assignmentRepository) GetUserSubmission(ctx context.Context, assignmentID, userID string, exec ...core.DBExecutor) (assignment.Submission, error) {
	if !validID(assignmentID) || !validID(userID) {
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}
	return repo.getSubmission(ctx, sq.Eq{"assignment_id": assignmentID, "user_id": userID}, exec)
}

func (repo assignmentRepository) QuerySubmissions(ctx context.Context, assignmentID string, exec ...core.DBExecutor) ([]assignment.Submission, error) {
	var rows []submissionRow
	query := psql.Select(submissionColumns...).From("submissions").
		Where(sq.Eq{"assignment_id": assignmentID}).
		OrderBy("created_at")
	if err := selectAll(ctx, repo.getExec(exec), &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	ss := make([]assignment.Submission, 0, len(rows))
	for _, row := range rows {
		ss = append(ss, row.submission())
	}
	return ss, nil
}

func (repo assignmentRepository) UpdateSubmission(ctx context.Context, s assignment.Submission, exec ...core.DBExecutor) (assignment.Submission, error) {
	query := psql.Update("submissions").SetMap(submissionValues(s)).Where(sq.Eq{"id": s.ID})
	if err := executeOne(ctx, repo.getExec(exec), query, assignment.ErrSubmissionNotFound); err != nil {
		if err == assignment.ErrSubmissionNotFound {
			return assignment.Submission{}, err
		}
		return assignment.Submission{}, errors.Wrap(err, "updating submission")
	}
	return s, nil
}
