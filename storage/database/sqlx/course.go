package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/course"
	"github.com/trezcool/masomo-lms/storage/database"
)

var (
	courseColumns     = []string{"c.id", "c.title", "c.description", "c.instructor_id", "c.published", "c.created_at", "c.updated_at"}
	chapterColumns    = []string{"id", "course_id", "title", "position", "created_at"}
	enrollmentColumns = []string{"course_id", "user_id", "enrolled_at"}
)

type courseRow struct {
	ID           string    `db:"id"`
	Title        string    `db:"title"`
	Description  string    `db:"description"`
	InstructorID string    `db:"instructor_id"`
	Published    bool      `db:"published"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (row courseRow) course() course.Course {
	return course.Course{
		ID:           row.ID,
		Title:        row.Title,
		Description:  row.Description,
		InstructorID: row.InstructorID,
		Published:    row.Published,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}

type chapterRow struct {
	ID        string    `db:"id"`
	CourseID  string    `db:"course_id"`
	Title     string    `db:"title"`
	Position  int       `db:"position"`
	CreatedAt time.Time `db:"created_at"`
}

func (row chapterRow) chapter() course.Chapter {
	return course.Chapter{
		ID:        row.ID,
		CourseID:  row.CourseID,
		Title:     row.Title,
		Position:  row.Position,
		CreatedAt: row.CreatedAt.UTC(),
	}
}

type enrollmentRow struct {
	CourseID   string    `db:"course_id"`
	UserID     string    `db:"user_id"`
	EnrolledAt time.Time `db:"enrolled_at"`
}

type courseRepository struct {
	repository
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *database.DB) course.Repository {
	return &courseRepository{repository{db: db}}
}

func (repo courseRepository) CreateCourse(ctx context.Context, c course.Course, exec ...core.DBExecutor) (course.Course, error) {
	c.ID = uuid.New().String()
	query := psql.Insert("courses").SetMap(map[string]interface{}{
		"id":            c.ID,
		"title":         c.Title,
		"description":   c.Description,
		"instructor_id": c.InstructorID,
		"published":     c.Published,
		"created_at":    c.CreatedAt.UTC(),
		"updated_at":    c.UpdatedAt.UTC(),
	})
	if _, err := execute(ctx, repo.getExec(exec), query); err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return c, nil
}

func (repo courseRepository) GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (course.Course, error) {
	if !validID(id) {
		return course.Course{}, course.ErrNotFound
	}
	var row courseRow
	query := psql.Select(courseColumns...).From("courses c").Where(sq.Eq{"c.id": id})
	if err := get(ctx, repo.getExec(exec), &row, query); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "getting course")
	}
	return row.course(), nil
}

func (repo courseRepository) QueryCourses(ctx context.Context, filter course.QueryFilter, exec ...core.DBExecutor) ([]course.Course, error) {
	query := psql.Select(courseColumns...).From("courses c").OrderBy("c.created_at DESC")
	if filter.InstructorID != "" {
		query = query.Where(sq.Eq{"c.instructor_id": filter.InstructorID})
	}
	if filter.Published != nil {
		query = query.Where(sq.Eq{"c.published": *filter.Published})
	}
	if filter.StudentID != "" {
		query = query.Join("enrollments e ON e.course_id = c.id").Where(sq.Eq{"e.user_id": filter.StudentID})
	}

	var rows []courseRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	cs := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		cs = append(cs, row.course())
	}
	return cs, nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, c course.Course, exec ...core.DBExecutor) (course.Course, error) {
	query := psql.Update("courses").SetMap(map[string]interface{}{
		"title":       c.Title,
		"description": c.Description,
		"published":   c.Published,
		"updated_at":  c.UpdatedAt.UTC(),
	}).Where(sq.Eq{"id": c.ID})
	if err := executeOne(ctx, repo.getExec(exec), query, course.ErrNotFound); err != nil {
		if err == course.ErrNotFound {
			return course.Course{}, err
		}
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	return c, nil
}

func (repo courseRepository) CreateChapter(ctx context.Context, ch course.Chapter, exec ...core.DBExecutor) (course.Chapter, error) {
	ch.ID = uuid.New().String()
	query := psql.Insert("chapters").SetMap(map[string]interface{}{
		"id":         ch.ID,
		"course_id":  ch.CourseID,
		"title":      ch.Title,
		"position":   ch.Position,
		"created_at": ch.CreatedAt.UTC(),
	})
	if _, err := execute(ctx, repo.getExec(exec), query); err != nil {
		if pqCode(err) == foreignKeyViolation {
			return course.Chapter{}, course.ErrNotFound
		}
		return course.Chapter{}, errors.Wrap(err, "inserting chapter")
	}
	return ch, nil
}

func (repo courseRepository) GetChapter(ctx context.Context, id string, exec ...core.DBExecutor) (course.Chapter, error) {
	if !validID(id) {
		return course.Chapter{}, course.ErrChapterNotFound
	}
	var row chapterRow
	query := psql.Select(chapterColumns...).From("chapters").Where(sq.Eq{"id": id})
	if err := get(ctx, repo.getExec(exec), &row, query); err != nil {
		return course.Chapter{}, trapNoRowsErr(err, course.ErrChapterNotFound, "getting chapter")
	}
	return row.chapter(), nil
}

func (repo courseRepository) QueryChapters(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]course.Chapter, error) {
	var rows []chapterRow
	query := psql.Select(chapterColumns...).From("chapters").Where(sq.Eq{"course_id": courseID}).OrderBy("position")
	if err := selectAll(ctx, repo.getExec(exec), &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying chapters")
	}
	chs := make([]course.Chapter, 0, len(rows))
	for _, row := range rows {
		chs = append(chs, row.chapter())
	}
	return chs, nil
}

func (repo courseRepository) MaxChapterPosition(ctx context.Context, courseID string, exec ...core.DBExecutor) (int, error) {
	var max int
	query := psql.Select("COALESCE(MAX(position), 0)").From("chapters").Where(sq.Eq{"course_id": courseID})
	if err := get(ctx, repo.getExec(exec), &max, query); err != nil {
		return 0, errors.Wrap(err, "getting max chapter position")
	}
	return max, nil
}

func (repo courseRepository) CreateEnrollment(ctx context.Context, e course.Enrollment, exec ...core.DBExecutor) (course.Enrollment, error) {
	ex := repo.getExec(exec)
	query := psql.Insert("enrollments").
		Columns(enrollmentColumns...).
		Values(e.CourseID, e.UserID, e.EnrolledAt.UTC()).
		Suffix("ON CONFLICT (course_id, user_id) DO NOTHING")
	if _, err := execute(ctx, ex, query); err != nil {
		if pqCode(err) == foreignKeyViolation {
			return course.Enrollment{}, course.ErrNotFound
		}
		return course.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}

	existing, _, err := repo.GetEnrollment(ctx, e.CourseID, e.UserID, exec...)
	return existing, err
}

func (repo courseRepository) GetEnrollment(ctx context.Context, courseID, userID string, exec ...core.DBExecutor) (course.Enrollment, bool, error) {
	if !validID(courseID) || !validID(userID) {
		return course.Enrollment{}, false, nil
	}
	var row enrollmentRow
	query := psql.Select(enrollmentColumns...).From("enrollments").
		Where(sq.Eq{"course_id": courseID, "user_id": userID})
	if err := get(ctx, repo.getExec(exec), &row, query); err != nil {
		if isNoRows(err) {
			return course.Enrollment{}, false, nil
		}
		return course.Enrollment{}, false, errors.Wrap(err, "getting enrollment")
	}
	return course.Enrollment{CourseID: row.CourseID, UserID: row.UserID, EnrolledAt: row.EnrolledAt.UTC()}, true, nil
}

func (repo courseRepository) QueryEnrollments(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]course.Enrollment, error) {
	var rows []enrollmentRow
	query := psql.Select(enrollmentColumns...).From("enrollments").
		Where(sq.Eq{"course_id": courseID}).OrderBy("enrolled_at")
	if err := selectAll(ctx, repo.getExec(exec), &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	es := make([]course.Enrollment, 0, len(rows))
	for _, row := range rows {
		es = append(es, course.Enrollment{CourseID: row.CourseID, UserID: row.UserID, EnrolledAt: row.EnrolledAt.UTC()})
	}
	return es, nil
}

func (repo courseRepository) DeleteEnrollment(ctx context.Context, courseID, userID string, exec ...core.DBExecutor) error {
	query := psql.Delete("enrollments").Where(sq.Eq{"course_id": courseID, "user_id": userID})
	if _, err := execute(ctx, repo.getExec(exec), query); err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	return nil
}
