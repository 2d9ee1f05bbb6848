package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/quiz"
	"github.com/trezcool/masomo-lms/core/resource"
)

type resourceRepository struct {
	db *DB
}

var _ resource.Repository = (*resourceRepository)(nil)

func NewResourceRepository(db *DB) resource.Repository {
	return &resourceRepository{db: db}
}

func (repo *resourceRepository) CreateResource(ctx context.Context, r resource.Resource, _ ...core.DBExecutor) (resource.Resource, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	r.ID = newID()
	if r.RichText != nil {
		rt := *r.RichText
		r.RichText = &rt
	}
	if r.External != nil {
		ext := *r.External
		r.External = &ext
	}
	r.Questions = copyQuestions(r.Questions, r.ID, "")
	repo.db.t.resources[r.ID] = r
	return r, nil
}

func (repo *resourceRepository) GetResource(ctx context.Context, id string, _ ...core.DBExecutor) (resource.Resource, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if r, ok := repo.db.t.resources[id]; ok {
		return r, nil
	}
	return resource.Resource{}, resource.ErrNotFound
}

func (repo *resourceRepository) QueryResources(ctx context.Context, chapterID string, _ ...core.DBExecutor) ([]resource.Resource, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rs := make([]resource.Resource, 0)
	for _, r := range repo.db.t.resources {
		if r.ChapterID == chapterID {
			r.RichText, r.External, r.Questions = nil, nil, nil
			rs = append(rs, r)
		}
	}
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Position == rs[j].Position {
			return rs[i].CreatedAt.Before(rs[j].CreatedAt)
		}
		return rs[i].Position < rs[j].Position
	})
	return rs, nil
}

func (repo *resourceRepository) MaxPosition(ctx context.Context, chapterID string, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var max int
	for _, r := range repo.db.t.resources {
		if r.ChapterID == chapterID && r.Position > max {
			max = r.Position
		}
	}
	return max, nil
}

func (repo *resourceRepository) UpdatePositions(ctx context.Context, chapterID string, positions map[string]int, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, pos := range positions {
		r, ok := repo.db.t.resources[id]
		if !ok || r.ChapterID != chapterID {
			return resource.ErrNotFound
		}
		r.Position = pos
		repo.db.t.resources[id] = r
	}
	return nil
}

func (repo *resourceRepository) DeleteResource(ctx context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.t.resources[id]; !ok {
		return resource.ErrNotFound
	}
	delete(repo.db.t.resources, id)
	return nil
}

// copyQuestions deep copies qs, assigning ids to questions and options.
func copyQuestions(qs []quiz.Question, resourceID, assignmentID string) []quiz.Question {
	if len(qs) == 0 {
		return nil
	}
	out := make([]quiz.Question, 0, len(qs))
	for _, q := range qs {
		q.ID = newID()
		q.ResourceID = resourceID
		q.AssignmentID = assignmentID
		opts := make([]quiz.Option, 0, len(q.Options))
		for _, o := range q.Options {
			o.ID = newID()
			o.QuestionID = q.ID
			opts = append(opts, o)
		}
		q.Options = opts
		out = append(out, q)
	}
	return out
}
