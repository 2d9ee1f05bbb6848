package course

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/user"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("course")
	ErrChapterNotFound = core.NewNotFoundError("chapter")

	ErrNotInstructor = core.NewAuthorizationError("only the course instructor may do this")
	ErrNotMember     = core.NewAuthorizationError("not enrolled in this course")
	ErrNotStudent    = errors.New("only students can be enrolled")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (Course, error)
		QueryCourses(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Course, error)
		UpdateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)

		CreateChapter(ctx context.Context, ch Chapter, exec ...core.DBExecutor) (Chapter, error)
		GetChapter(ctx context.Context, id string, exec ...core.DBExecutor) (Chapter, error)
		QueryChapters(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]Chapter, error)
		MaxChapterPosition(ctx context.Context, courseID string, exec ...core.DBExecutor) (int, error)

		// CreateEnrollment is a no-op when the enrollment already exists.
		CreateEnrollment(ctx context.Context, e Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		GetEnrollment(ctx context.Context, courseID, userID string, exec ...core.DBExecutor) (Enrollment, bool, error)
		QueryEnrollments(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]Enrollment, error)
		DeleteEnrollment(ctx context.Context, courseID, userID string, exec ...core.DBExecutor) error
	}

	Service struct {
		db    core.Transactor
		repo  Repository
		users user.Repository
	}
)

func NewService(db core.Transactor, repo Repository, users user.Repository) *Service {
	return &Service{db: db, repo: repo, users: users}
}

// AuthorizeInstructor fails with an AuthorizationError unless usr is an admin or teaches c.
func AuthorizeInstructor(c Course, usr user.User) error {
	if usr.IsAdmin() || (c.InstructorID == usr.ID && usr.IsInstructor()) {
		return nil
	}
	return ErrNotInstructor
}

// AuthorizeMember fails with an AuthorizationError unless usr may read c's content.
// Unpublished courses are reported as not found to everyone but their instructor.
func (svc *Service) AuthorizeMember(ctx context.Context, c Course, usr user.User) error {
	if AuthorizeInstructor(c, usr) == nil {
		return nil
	}
	if !c.Published {
		return ErrNotFound
	}
	ok, err := svc.IsEnrolled(ctx, c.ID, usr.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotMember
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nc NewCourse, instructor user.User) (Course, error) {
	if !(instructor.IsInstructor() || instructor.IsAdmin()) {
		return Course{}, core.NewAuthorizationError("only instructors can create courses")
	}
	now := time.Now().UTC()
	c := Course{
		Title:        nc.Title,
		Description:  nc.Description,
		InstructorID: instructor.ID,
		Published:    nc.Published,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return svc.repo.CreateCourse(ctx, c)
}

func (svc *Service) Get(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

// ListFor returns the courses visible to usr: all for admins, taught for instructors, enrolled otherwise.
func (svc *Service) ListFor(ctx context.Context, usr user.User) ([]Course, error) {
	var filter QueryFilter
	switch {
	case usr.IsAdmin():
	case usr.IsInstructor():
		filter.InstructorID = usr.ID
	default:
		published := true
		filter.StudentID = usr.ID
		filter.Published = &published
	}
	return svc.repo.QueryCourses(ctx, filter)
}

func (svc *Service) Update(ctx context.Context, c Course, uc UpdateCourse, actor user.User) (Course, error) {
	if err := AuthorizeInstructor(c, actor); err != nil {
		return Course{}, err
	}
	if uc.Title != nil {
		c.Title = *uc.Title
	}
	if uc.Description != nil {
		c.Description = *uc.Description
	}
	if uc.Published != nil {
		c.Published = *uc.Published
	}
	c.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCourse(ctx, c)
}

func (svc *Service) CreateChapter(ctx context.Context, c Course, nc NewChapter, actor user.User) (Chapter, error) {
	if err := AuthorizeInstructor(c, actor); err != nil {
		return Chapter{}, err
	}

	var ch Chapter
	err := svc.db.WithinTx(ctx, func(exec core.DBExecutor) error {
		pos, err := svc.repo.MaxChapterPosition(ctx, c.ID, exec)
		if err != nil {
			return errors.Wrap(err, "getting max chapter position")
		}
		ch, err = svc.repo.CreateChapter(ctx, Chapter{
			CourseID:  c.ID,
			Title:     nc.Title,
			Position:  pos + 1,
			CreatedAt: time.Now().UTC(),
		}, exec)
		return err
	})
	return ch, err
}

func (svc *Service) GetChapter(ctx context.Context, id string) (Chapter, error) {
	return svc.repo.GetChapter(ctx, id)
}

// GetChapterWithCourse returns the chapter and its course. Fails with ErrChapterNotFound.
func (svc *Service) GetChapterWithCourse(ctx context.Context, chapterID string) (Chapter, Course, error) {
	ch, err := svc.repo.GetChapter(ctx, chapterID)
	if err != nil {
		return Chapter{}, Course{}, err
	}
	c, err := svc.repo.GetCourse(ctx, ch.CourseID)
	if err != nil {
		return Chapter{}, Course{}, errors.Wrap(err, "getting chapter course")
	}
	return ch, c, nil
}

func (svc *Service) ListChapters(ctx context.Context, courseID string) ([]Chapter, error) {
	return svc.repo.QueryChapters(ctx, courseID)
}

// Enroll enrolls a student in c. Enrolling twice is a no-op.
func (svc *Service) Enroll(ctx context.Context, c Course, userID string, actor user.User) (Enrollment, error) {
	if err := AuthorizeInstructor(c, actor); err != nil {
		return Enrollment{}, err
	}
	student, err := svc.users.GetUser(ctx, user.GetFilter{ID: userID})
	if err != nil {
		if core.IsNotFound(err) {
			return Enrollment{}, core.NewValidationError(err, core.FieldError{Field: "user_id", Error: err.Error()})
		}
		return Enrollment{}, errors.Wrap(err, "getting student")
	}
	if !student.IsStudent() {
		return Enrollment{}, core.NewValidationError(ErrNotStudent, core.FieldError{Field: "user_id", Error: ErrNotStudent.Error()})
	}
	return svc.repo.CreateEnrollment(ctx, Enrollment{
		CourseID:   c.ID,
		UserID:     student.ID,
		EnrolledAt: time.Now().UTC(),
	})
}

func (svc *Service) Unenroll(ctx context.Context, c Course, userID string, actor user.User) error {
	if err := AuthorizeInstructor(c, actor); err != nil {
		return err
	}
	return svc.repo.DeleteEnrollment(ctx, c.ID, userID)
}

func (svc *Service) ListEnrollments(ctx context.Context, c Course, actor user.User) ([]Enrollment, error) {
	if err := AuthorizeInstructor(c, actor); err != nil {
		return nil, err
	}
	return svc.repo.QueryEnrollments(ctx, c.ID)
}

func (svc *Service) IsEnrolled(ctx context.Context, courseID, userID string) (bool, error) {
	_, ok, err := svc.repo.GetEnrollment(ctx, courseID, userID)
	if err != nil {
		return false, errors.Wrap(err, "getting enrollment")
	}
	return ok, nil
}
