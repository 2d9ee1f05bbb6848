package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/assignment"
	"github.com/trezcool/masomo-lms/core/quiz"
)

type assignmentRepository struct {
	db *DB
}

var _ assignment.Repository = (*assignmentRepository)(nil)

func NewAssignmentRepository(db *DB) assignment.Repository {
	return &assignmentRepository{db: db}
}

func (repo *assignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment, _ ...core.DBExecutor) (assignment.Assignment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	a.ID = newID()
	a.Questions = copyQuestions(a.Questions, "", a.ID)
	repo.db.t.assignments[a.ID] = a
	return a, nil
}

func (repo *assignmentRepository) GetAssignment(ctx context.Context, id string, _ ...core.DBExecutor) (assignment.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if a, ok := repo.db.t.assignments[id]; ok {
		return a, nil
	}
	return assignment.Assignment{}, assignment.ErrNotFound
}

func (repo *assignmentRepository) QueryAssignments(ctx context.Context, filter assignment.QueryFilter, _ ...core.DBExecutor) ([]assignment.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	as := make([]assignment.Assignment, 0)
	for _, a := range repo.db.t.assignments {
		if filter.CourseID != "" && a.CourseID != filter.CourseID {
			continue
		}
		if filter.Published != nil && a.Published != *filter.Published {
			continue
		}
		a.Questions = nil
		as = append(as, a)
	}
	sort.Slice(as, func(i, j int) bool {
		di, dj := as[i].DueDate, as[j].DueDate
		switch {
		case di == nil && dj == nil:
			return as[i].CreatedAt.Before(as[j].CreatedAt)
		case di == nil:
			return false
		case dj == nil:
			return true
		}
		return di.Before(*dj)
	})
	return as, nil
}

func (repo *assignmentRepository) UpdateAssignment(ctx context.Context, a assignment.Assignment, _ ...core.DBExecutor) (assignment.Assignment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.t.assignments[a.ID]
	if !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	a.Questions = orig.Questions // questions are immutable
	repo.db.t.assignments[a.ID] = a
	return a, nil
}

func (repo *assignmentRepository) CreateSubmission(ctx context.Context, s assignment.Submission, _ ...core.DBExecutor) (assignment.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.t.assignments[s.AssignmentID]; !ok {
		return assignment.Submission{}, assignment.ErrNotFound
	}
	for _, existing := range repo.db.t.submissions {
		if existing.AssignmentID == s.AssignmentID && existing.UserID == s.UserID {
			return assignment.Submission{}, assignment.ErrAlreadySubmitted
		}
	}
	s.ID = newID()
	s.Answers = append([]quiz.Answer(nil), s.Answers...)
	repo.db.t.submissions[s.ID] = s
	return s, nil
}

func (repo *assignmentRepository) GetSubmission(ctx context.Context, id string, _ ...core.DBExecutor) (assignment.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.t.submissions[id]; ok {
		return s, nil
	}
	return assignment.Submission{}, assignment.ErrSubmissionNotFound
}

func (repo *assignmentRepository) GetUserSubmission(ctx context.Context, assignmentID, userID string, _ ...core.DBExecutor) (assignment.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, s := range repo.db.t.submissions {
		if s.AssignmentID == assignmentID && s.UserID == userID {
			return s, nil
		}
	}
	return assignment.Submission{}, assignment.ErrSubmissionNotFound
}

func (repo *assignmentRepository) QuerySubmissions(ctx context.Context, assignmentID string, _ ...core.DBExecutor) ([]assignment.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	ss := make([]assignment.Submission, 0)
	for _, s := range repo.db.t.submissions {
		if s.AssignmentID == assignmentID {
			ss = append(ss, s)
		}
	}
	sort.Slice(ss, func(i, j int) bool { return ss[i].CreatedAt.Before(ss[j].CreatedAt) })
	return ss, nil
}

func (repo *assignmentRepository) UpdateSubmission(ctx context.Context, s assignment.Submission, _ ...core.DBExecutor) (assignment.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.t.submissions[s.ID]; !ok {
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}
	s.Answers = append([]quiz.Answer(nil), s.Answers...)
	repo.db.t.submissions[s.ID] = s
	return s, nil
}
