package assignment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/attachment"
	"github.com/trezcool/masomo-lms/core/quiz"
)

type Type string

const (
	TypeFile Type = "file"
	TypeQuiz Type = "quiz"
)

type Status string

// Submission states: draft -> submitted -> graded (-> graded).
const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusGraded    Status = "graded"
)

type Assignment struct {
	ID                    string          `json:"id"`
	CourseID              string          `json:"course_id"`
	Title                 string          `json:"title"`
	Description           string          `json:"description"`
	Type                  Type            `json:"type"`
	DueDate               *time.Time      `json:"due_date"` // UTC
	PointsPossible        int             `json:"points_possible"`
	Published             bool            `json:"published"`
	AllowLateSubmissions  bool            `json:"allow_late_submissions"`
	LatePenaltyPercentage int             `json:"late_penalty_percentage"`
	Questions             []quiz.Question `json:"questions,omitempty"`
	CreatedAt             time.Time       `json:"created_at"` // UTC
	UpdatedAt             time.Time       `json:"updated_at"` // UTC
}

// StudentView is an Assignment whose quiz questions have their answers hidden.
type StudentView struct {
	ID                    string          `json:"id"`
	CourseID              string          `json:"course_id"`
	Title                 string          `json:"title"`
	Description           string          `json:"description"`
	Type                  Type            `json:"type"`
	DueDate               *time.Time      `json:"due_date"`
	PointsPossible        int             `json:"points_possible"`
	AllowLateSubmissions  bool            `json:"allow_late_submissions"`
	LatePenaltyPercentage int             `json:"late_penalty_percentage"`
	Questions             []quiz.Redacted `json:"questions,omitempty"`
}

func (a Assignment) Redacted() StudentView {
	sv := StudentView{
		ID:                    a.ID,
		CourseID:              a.CourseID,
		Title:                 a.Title,
		Description:           a.Description,
		Type:                  a.Type,
		DueDate:               a.DueDate,
		PointsPossible:        a.PointsPossible,
		AllowLateSubmissions:  a.AllowLateSubmissions,
		LatePenaltyPercentage: a.LatePenaltyPercentage,
	}
	if len(a.Questions) > 0 {
		sv.Questions = quiz.Redact(a.Questions)
	}
	return sv
}

type Submission struct {
	ID           string        `json:"id"`
	AssignmentID string        `json:"assignment_id"`
	UserID       string        `json:"user_id"`
	Status       Status        `json:"status"`
	IsLate       bool          `json:"is_late"`
	SubmittedAt  *time.Time    `json:"submitted_at"`
	Grade        *float64      `json:"grade"`     // after penalty
	RawGrade     *float64      `json:"raw_grade"` // as awarded
	Feedback     *string       `json:"feedback"`
	GradedAt     *time.Time    `json:"graded_at"`
	Answers      []quiz.Answer `json:"answers,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func (s Submission) AttachmentOwner() attachment.Owner {
	return attachment.Owner{Type: attachment.OwnerSubmission, ID: s.ID}
}

// SubmissionView is a Submission with its files.
type SubmissionView struct {
	Submission
	Files []attachment.View `json:"files"`
}

// NewAssignment contains information needed to create a new Assignment.
type NewAssignment struct {
	Title                 string             `json:"title" validate:"required,max=255"`
	Description           string             `json:"description"`
	Type                  Type               `json:"type" validate:"required,oneof=file quiz"`
	DueDate               *time.Time         `json:"due_date"`
	PointsPossible        int                `json:"points_possible" validate:"required,gt=0"`
	Published             bool               `json:"published"`
	AllowLateSubmissions  bool               `json:"allow_late_submissions"`
	LatePenaltyPercentage int                `json:"late_penalty_percentage" validate:"gte=0,lte=100"`
	Questions             []quiz.NewQuestion `json:"questions" validate:"required_if_quiz,dive"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	if na.Type != TypeQuiz {
		na.Questions = nil
	}
	quiz.Clean(na.Questions)
	if na.DueDate != nil {
		due := na.DueDate.UTC()
		na.DueDate = &due
	}
	return validate.Struct(na)
}

// Work is what a student saves or submits: quiz answers or files, depending on the assignment type.
type Work struct {
	Answers []quiz.Answer     `json:"answers" validate:"dive"`
	Files   []attachment.File `json:"-"`
}

func (w *Work) Validate(validate *validator.Validate) error {
	if err := validate.Struct(w); err != nil {
		return err
	}
	if flds := attachment.ValidateFiles("files", w.Files); len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

// NewGrade is the grading input of an instructor.
type NewGrade struct {
	Grade    *float64 `json:"grade" validate:"required"`
	Feedback *string  `json:"feedback"`
}

func (ng *NewGrade) Validate(validate *validator.Validate) error {
	if ng.Feedback != nil {
		fb := core.CleanString(*ng.Feedback)
		ng.Feedback = &fb
	}
	return validate.Struct(ng)
}

type QueryFilter struct {
	CourseID  string
	Published *bool
}
