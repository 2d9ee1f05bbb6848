package assignment

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/attachment"
	"github.com/trezcool/masomo-lms/core/quiz"
	"github.com/trezcool/masomo-lms/core/user"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("assignment")
	ErrSubmissionNotFound = core.NewNotFoundError("submission")

	ErrNotPublished     = core.NewAuthorizationError("assignment is not published")
	ErrAlreadySubmitted = errors.New("the submission was already submitted")
	ErrLateNotAllowed   = errors.New("the due date has passed and late submissions are not allowed")
	ErrNotSubmitted     = errors.New("only submitted work can be graded")
	ErrNoFiles          = errors.New("at least one file is required")
	ErrNotQuiz          = errors.New("the assignment is not a quiz")
	ErrNotScorable      = core.NewAuthorizationError("only submitted work can be scored")
)

const gradedTemplate = "submission_graded"

type (
	Repository interface {
		// CreateAssignment writes the assignment with its quiz questions.
		CreateAssignment(ctx context.Context, a Assignment, exec ...core.DBExecutor) (Assignment, error)
		// GetAssignment loads the assignment with its quiz questions.
		GetAssignment(ctx context.Context, id string, exec ...core.DBExecutor) (Assignment, error)
		// QueryAssignments returns assignments without their questions, by due date.
		QueryAssignments(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Assignment, error)
		UpdateAssignment(ctx context.Context, a Assignment, exec ...core.DBExecutor) (Assignment, error)

		// CreateSubmission writes the submission with its answers.
		CreateSubmission(ctx context.Context, s Submission, exec ...core.DBExecutor) (Submission, error)
		GetSubmission(ctx context.Context, id string, exec ...core.DBExecutor) (Submission, error)
		GetUserSubmission(ctx context.Context, assignmentID, userID string, exec ...core.DBExecutor) (Submission, error)
		QuerySubmissions(ctx context.Context, assignmentID string, exec ...core.DBExecutor) ([]Submission, error)
		// UpdateSubmission updates the submission and replaces its answers.
		UpdateSubmission(ctx context.Context, s Submission, exec ...core.DBExecutor) (Submission, error)
	}

	Service struct {
		conf        *core.Config
		db          core.Transactor
		repo        Repository
		users       user.Repository
		attachments *attachment.Service
		mail        core.EmailService
		logger      core.Logger
	}
)

func NewService(
	conf *core.Config,
	db core.Transactor,
	repo Repository,
	users user.Repository,
	attachments *attachment.Service,
	mail core.EmailService,
	logger core.Logger,
) *Service {
	return &Service{
		conf:        conf,
		db:          db,
		repo:        repo,
		users:       users,
		attachments: attachments,
		mail:        mail,
		logger:      logger,
	}
}

var now = func() time.Time { return time.Now().UTC() } // mockable

func (svc *Service) Create(ctx context.Context, courseID string, na NewAssignment) (Assignment, error) {
	t := now()
	a := Assignment{
		CourseID:              courseID,
		Title:                 na.Title,
		Description:           na.Description,
		Type:                  na.Type,
		DueDate:               na.DueDate,
		PointsPossible:        na.PointsPossible,
		Published:             na.Published,
		AllowLateSubmissions:  na.AllowLateSubmissions,
		LatePenaltyPercentage: na.LatePenaltyPercentage,
		CreatedAt:             t,
		UpdatedAt:             t,
	}
	if a.Type == TypeQuiz {
		a.Questions = quiz.Build(na.Questions)
		if err := quiz.CheckInvariants(a.Questions); err != nil {
			return Assignment{}, err
		}
	}
	if a.PointsPossible <= 0 {
		return Assignment{}, core.NewValidationError(nil, core.FieldError{Field: "points_possible", Error: "must be greater than 0"})
	}

	var created Assignment
	err := svc.db.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		created, err = svc.repo.CreateAssignment(ctx, a, exec)
		return errors.Wrap(err, "creating assignment")
	})
	return created, err
}

func (svc *Service) Get(ctx context.Context, id string) (Assignment, error) {
	return svc.repo.GetAssignment(ctx, id)
}

// List returns the course's assignments; unpublished ones only when withDrafts is set.
func (svc *Service) List(ctx context.Context, courseID string, withDrafts bool) ([]Assignment, error) {
	filter := QueryFilter{CourseID: courseID}
	if !withDrafts {
		published := true
		filter.Published = &published
	}
	return svc.repo.QueryAssignments(ctx, filter)
}

func (svc *Service) Publish(ctx context.Context, a Assignment) (Assignment, error) {
	if a.Published {
		return a, nil
	}
	a.Published = true
	a.UpdatedAt = now()
	return svc.repo.UpdateAssignment(ctx, a)
}

// SaveDraft creates or updates the student's draft submission.
func (svc *Service) SaveDraft(ctx context.Context, a Assignment, student user.User, w Work) (SubmissionView, error) {
	s, atts, err := svc.save(ctx, a, student, w, false)
	if err != nil {
		return SubmissionView{}, err
	}
	return SubmissionView{Submission: s, Files: svc.attachments.PresentAll(atts)}, nil
}

// Submit saves w and submits the student's work.
// Quiz submissions are graded in the same transaction.
func (svc *Service) Submit(ctx context.Context, a Assignment, student user.User, w Work) (SubmissionView, error) {
	s, atts, err := svc.save(ctx, a, student, w, true)
	if err != nil {
		return SubmissionView{}, err
	}
	if s.Status == StatusGraded {
		svc.notifyGraded(ctx, a, s)
	}
	return SubmissionView{Submission: s, Files: svc.attachments.PresentAll(atts)}, nil
}

// save upserts the student's submission in one transaction and returns it with all its files.
func (svc *Service) save(ctx context.Context, a Assignment, student user.User, w Work, submit bool) (Submission, []attachment.Attachment, error) {
	if !a.Published {
		return Submission{}, nil, ErrNotPublished
	}
	if a.Type == TypeQuiz {
		if len(w.Files) > 0 {
			return Submission{}, nil, core.NewValidationError(nil, core.FieldError{Field: "files", Error: "a quiz does not accept files"})
		}
		if err := quiz.CheckAnswers(a.Questions, w.Answers); err != nil {
			return Submission{}, nil, err
		}
	} else if len(w.Answers) > 0 {
		return Submission{}, nil, core.NewValidationError(nil, core.FieldError{Field: "answers", Error: ErrNotQuiz.Error()})
	}

	t := now()
	var (
		s       Submission
		newAtts []attachment.Attachment
		atts    []attachment.Attachment
	)
	err := svc.db.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		s, err = svc.repo.GetUserSubmission(ctx, a.ID, student.ID, exec)
		switch {
		case core.IsNotFound(err):
			s, err = svc.repo.CreateSubmission(ctx, Submission{
				AssignmentID: a.ID,
				UserID:       student.ID,
				Status:       StatusDraft,
				Answers:      w.Answers,
				CreatedAt:    t,
				UpdatedAt:    t,
			}, exec)
			if err != nil {
				return errors.Wrap(err, "creating submission")
			}
		case err != nil:
			return errors.Wrap(err, "getting submission")
		case s.Status != StatusDraft:
			return core.NewValidationError(ErrAlreadySubmitted, core.FieldError{Field: "status", Error: ErrAlreadySubmitted.Error()})
		default:
			if a.Type == TypeQuiz {
				s.Answers = w.Answers
			}
		}

		if len(w.Files) > 0 {
			opts := attachment.Options{Collection: attachment.CollectionSubmissions}
			if newAtts, err = svc.attachments.AttachAll(ctx, s.AttachmentOwner(), w.Files, opts, exec); err != nil {
				return err
			}
		}
		if atts, err = svc.attachments.List(ctx, s.AttachmentOwner(), attachment.CollectionSubmissions, exec); err != nil {
			return errors.Wrap(err, "listing submission files")
		}

		if submit {
			if a.Type == TypeFile && len(atts) == 0 {
				return core.NewValidationError(ErrNoFiles, core.FieldError{Field: "files", Error: ErrNoFiles.Error()})
			}
			late := IsLate(a, t)
			if late && !a.AllowLateSubmissions {
				return core.NewValidationError(ErrLateNotAllowed, core.FieldError{Field: "due_date", Error: ErrLateNotAllowed.Error()})
			}
			s.Status = StatusSubmitted
			s.SubmittedAt = &t
			s.IsLate = late

			if a.Type == TypeQuiz {
				score, err := ComputeQuizScore(a, s.Answers)
				if err != nil {
					return errors.Wrap(err, "scoring quiz")
				}
				if err = applyGrade(a, &s, score.Score, nil, t); err != nil {
					return errors.Wrap(err, "grading quiz")
				}
			}
		}
		s.UpdatedAt = t
		s, err = svc.repo.UpdateSubmission(ctx, s, exec)
		return errors.Wrap(err, "updating submission")
	})
	if err != nil {
		svc.attachments.DeleteFiles(ctx, newAtts)
		return Submission{}, nil, err
	}
	return s, atts, nil
}

// RecordGrade grades a submitted submission with the late penalty applied to rawGrade.
// Re-grading overwrites the previous grade. The student is notified by email.
func (svc *Service) RecordGrade(ctx context.Context, submissionID string, rawGrade float64, feedback *string) (Submission, error) {
	var (
		s Submission
		a Assignment
	)
	err := svc.db.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if s, err = svc.repo.GetSubmission(ctx, submissionID, exec); err != nil {
			return err
		}
		if a, err = svc.repo.GetAssignment(ctx, s.AssignmentID, exec); err != nil {
			return errors.Wrap(err, "getting submission assignment")
		}
		t := now()
		if err = applyGrade(a, &s, rawGrade, feedback, t); err != nil {
			return err
		}
		s.UpdatedAt = t
		s, err = svc.repo.UpdateSubmission(ctx, s, exec)
		return errors.Wrap(err, "updating submission")
	})
	if err != nil {
		return Submission{}, err
	}

	svc.notifyGraded(ctx, a, s)
	return s, nil
}

// applyGrade sets the grade fields of a submitted s. It does not persist s.
func applyGrade(a Assignment, s *Submission, rawGrade float64, feedback *string, t time.Time) error {
	if rawGrade < 0 || rawGrade > float64(a.PointsPossible) {
		return core.NewValidationError(nil, core.FieldError{
			Field: "grade",
			Error: fmt.Sprintf("must be between 0 and %d", a.PointsPossible),
		})
	}
	if s.Status == StatusDraft {
		return core.NewValidationError(ErrNotSubmitted, core.FieldError{Field: "status", Error: ErrNotSubmitted.Error()})
	}

	raw := rawGrade
	grade := ApplyLatePenalty(a, s.IsLate, raw)
	s.RawGrade = &raw
	s.Grade = &grade
	s.Feedback = feedback
	s.Status = StatusGraded
	s.GradedAt = &t
	return nil
}

func (svc *Service) notifyGraded(ctx context.Context, a Assignment, s Submission) {
	student, err := svc.users.GetUser(ctx, user.GetFilter{ID: s.UserID})
	if err != nil {
		svc.logger.Warn("could not notify graded submission", errors.Wrap(err, "getting student"))
		return
	}
	addr, ok := student.MailAddress()
	if !ok {
		return
	}

	data := struct {
		StudentName       string
		AssignmentTitle   string
		Grade             float64
		PointsPossible    int
		RawGrade          float64
		PenaltyApplied    bool
		PenaltyPercentage int
		Feedback          string
	}{
		StudentName:       student.Name,
		AssignmentTitle:   a.Title,
		Grade:             *s.Grade,
		PointsPossible:    a.PointsPossible,
		RawGrade:          *s.RawGrade,
		PenaltyApplied:    *s.Grade != *s.RawGrade,
		PenaltyPercentage: a.LatePenaltyPercentage,
	}
	if s.Feedback != nil {
		data.Feedback = *s.Feedback
	}

	svc.mail.SendMessages(core.NewEmailMessage(
		svc.conf,
		fmt.Sprintf("Your submission for %q was graded", a.Title),
		gradedTemplate,
		data,
		addr,
	))
}

func (svc *Service) GetSubmission(ctx context.Context, id string) (Submission, error) {
	return svc.repo.GetSubmission(ctx, id)
}

func (svc *Service) GetUserSubmission(ctx context.Context, assignmentID, userID string) (Submission, error) {
	return svc.repo.GetUserSubmission(ctx, assignmentID, userID)
}

func (svc *Service) ListSubmissions(ctx context.Context, assignmentID string) ([]Submission, error) {
	return svc.repo.QuerySubmissions(ctx, assignmentID)
}

// Present returns the submission with its files.
func (svc *Service) Present(ctx context.Context, s Submission) (SubmissionView, error) {
	atts, err := svc.attachments.List(ctx, s.AttachmentOwner(), attachment.CollectionSubmissions)
	if err != nil {
		return SubmissionView{}, errors.Wrap(err, "listing submission files")
	}
	return SubmissionView{Submission: s, Files: svc.attachments.PresentAll(atts)}, nil
}

// Score computes the quiz score of a submitted or graded submission of a quiz assignment.
func (svc *Service) Score(ctx context.Context, s Submission) (QuizScore, error) {
	if s.Status == StatusDraft {
		return QuizScore{}, ErrNotScorable
	}
	a, err := svc.repo.GetAssignment(ctx, s.AssignmentID)
	if err != nil {
		return QuizScore{}, errors.Wrap(err, "getting submission assignment")
	}
	if a.Type != TypeQuiz {
		return QuizScore{}, core.NewValidationError(ErrNotQuiz, core.FieldError{Field: "type", Error: ErrNotQuiz.Error()})
	}
	return ComputeQuizScore(a, s.Answers)
}
