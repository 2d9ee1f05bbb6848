package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	c.ID = newID()
	repo.db.t.courses[c.ID] = c
	return c, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.t.courses[id]; ok {
		return c, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter course.QueryFilter, _ ...core.DBExecutor) ([]course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	cs := make([]course.Course, 0)
	for _, c := range repo.db.t.courses {
		if filter.InstructorID != "" && c.InstructorID != filter.InstructorID {
			continue
		}
		if filter.Published != nil && c.Published != *filter.Published {
			continue
		}
		if filter.StudentID != "" {
			if _, ok := repo.db.t.enrollments[enrollmentKey{c.ID, filter.StudentID}]; !ok {
				continue
			}
		}
		cs = append(cs, c)
	}
	sort.Slice(cs, func(i, j int) bool { return cs[i].CreatedAt.After(cs[j].CreatedAt) })
	return cs, nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, c course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.t.courses[c.ID]; !ok {
		return course.Course{}, course.ErrNotFound
	}
	repo.db.t.courses[c.ID] = c
	return c, nil
}

func (repo *courseRepository) CreateChapter(ctx context.Context, ch course.Chapter, _ ...core.DBExecutor) (course.Chapter, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.t.courses[ch.CourseID]; !ok {
		return course.Chapter{}, course.ErrNotFound
	}
	ch.ID = newID()
	repo.db.t.chapters[ch.ID] = ch
	return ch, nil
}

func (repo *courseRepository) GetChapter(ctx context.Context, id string, _ ...core.DBExecutor) (course.Chapter, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if ch, ok := repo.db.t.chapters[id]; ok {
		return ch, nil
	}
	return course.Chapter{}, course.ErrChapterNotFound
}

func (repo *courseRepository) QueryChapters(ctx context.Context, courseID string, _ ...core.DBExecutor) ([]course.Chapter, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	chs := make([]course.Chapter, 0)
	for _, ch := range repo.db.t.chapters {
		if ch.CourseID == courseID {
			chs = append(chs, ch)
		}
	}
	sort.Slice(chs, func(i, j int) bool { return chs[i].Position < chs[j].Position })
	return chs, nil
}

func (repo *courseRepository) MaxChapterPosition(ctx context.Context, courseID string, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var max int
	for _, ch := range repo.db.t.chapters {
		if ch.CourseID == courseID && ch.Position > max {
			max = ch.Position
		}
	}
	return max, nil
}

func (repo *courseRepository) CreateEnrollment(ctx context.Context, e course.Enrollment, _ ...core.DBExecutor) (course.Enrollment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	key := enrollmentKey{e.CourseID, e.UserID}
	if existing, ok := repo.db.t.enrollments[key]; ok {
		return existing, nil
	}
	repo.db.t.enrollments[key] = e
	return e, nil
}

func (repo *courseRepository) GetEnrollment(ctx context.Context, courseID, userID string, _ ...core.DBExecutor) (course.Enrollment, bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	e, ok := repo.db.t.enrollments[enrollmentKey{courseID, userID}]
	return e, ok, nil
}

func (repo *courseRepository) QueryEnrollments(ctx context.Context, courseID string, _ ...core.DBExecutor) ([]course.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	es := make([]course.Enrollment, 0)
	for _, e := range repo.db.t.enrollments {
		if e.CourseID == courseID {
			es = append(es, e)
		}
	}
	sort.Slice(es, func(i, j int) bool { return es[i].EnrolledAt.Before(es[j].EnrolledAt) })
	return es, nil
}

func (repo *courseRepository) DeleteEnrollment(ctx context.Context, courseID, userID string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	delete(repo.db.t.enrollments, enrollmentKey{courseID, userID})
	return nil
}
