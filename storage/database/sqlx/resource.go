package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"gorm.io/datatypes"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/resource"
	"github.com/trezcool/masomo-lms/storage/database"
)

var resourceColumns = []string{
	"id", "chapter_id", "title", "description", "resource_type", "position", "metadata", "created_at", "updated_at",
}

type resourceRow struct {
	ID           string            `db:"id"`
	ChapterID    string            `db:"chapter_id"`
	Title        string            `db:"title"`
	Description  string            `db:"description"`
	ResourceType string            `db:"resource_type"`
	Position     int               `db:"position"`
	Metadata     datatypes.JSONMap `db:"metadata"`
	CreatedAt    time.Time         `db:"created_at"`
	UpdatedAt    time.Time         `db:"updated_at"`
}

func (row resourceRow) resource() resource.Resource {
	r := resource.Resource{
		ID:          row.ID,
		ChapterID:   row.ChapterID,
		Title:       row.Title,
		Description: row.Description,
		Type:        resource.Type(row.ResourceType),
		Position:    row.Position,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
	if len(row.Metadata) > 0 {
		r.Metadata = row.Metadata
	}
	return r
}

type externalRow struct {
	ExternalURL     string      `db:"external_url"`
	LinkTitle       null.String `db:"link_title"`
	LinkDescription null.String `db:"link_description"`
	FaviconURL      null.String `db:"favicon_url"`
	OGImageURL      null.String `db:"og_image_url"`
}

type resourceRepository struct {
	repository
}

var _ resource.Repository = (*resourceRepository)(nil) // interface compliance check

func NewResourceRepository(db *database.DB) resource.Repository {
	return &resourceRepository{repository{db: db}}
}

func (repo resourceRepository) CreateResource(ctx context.Context, r resource.Resource, exec ...core.DBExecutor) (resource.Resource, error) {
	ex := repo.getExec(exec)
	r.ID = uuid.New().String()

	var meta datatypes.JSONMap
	if r.Metadata != nil {
		meta = r.Metadata
	}
	query := psql.Insert("resources").SetMap(map[string]interface{}{
		"id":            r.ID,
		"chapter_id":    r.ChapterID,
		"title":         r.Title,
		"description":   r.Description,
		"resource_type": string(r.Type),
		"position":      r.Position,
		"metadata":      meta,
		"created_at":    r.CreatedAt.UTC(),
		"updated_at":    r.UpdatedAt.UTC(),
	})
	if _, err := execute(ctx, ex, query); err != nil {
		if pqCode(err) == foreignKeyViolation {
			return resource.Resource{}, errors.Wrap(err, "chapter does not exist")
		}
		return resource.Resource{}, errors.Wrap(err, "inserting resource")
	}

	switch r.Type {
	case resource.TypeRichText:
		query = psql.Insert("resource_rich_texts").
			Columns("resource_id", "content", "format").
			Values(r.ID, r.RichText.Content, r.RichText.Format)
		if _, err := execute(ctx, ex, query); err != nil {
			return resource.Resource{}, errors.Wrap(err, "inserting rich text")
		}
	case resource.TypeExternal:
		ext := r.External
		query = psql.Insert("resource_externals").
			Columns("resource_id", "external_url", "link_title", "link_description", "favicon_url", "og_image_url").
			Values(
				r.ID,
				ext.ExternalURL,
				null.NewString(ext.LinkTitle, ext.LinkTitle != ""),
				null.NewString(ext.LinkDescription, ext.LinkDescription != ""),
				null.NewString(ext.FaviconURL, ext.FaviconURL != ""),
				null.NewString(ext.OGImageURL, ext.OGImageURL != ""),
			)
		if _, err := execute(ctx, ex, query); err != nil {
			return resource.Resource{}, errors.Wrap(err, "inserting external link")
		}
	case resource.TypeQuiz:
		qs, err := insertQuestions(ctx, ex, r.Questions, r.ID, "")
		if err != nil {
			return resource.Resource{}, err
		}
		r.Questions = qs
	}
	return r, nil
}

func (repo resourceRepository) GetResource(ctx context.Context, id string, exec ...core.DBExecutor) (resource.Resource, error) {
	if !validID(id) {
		return resource.Resource{}, resource.ErrNotFound
	}
	ex := repo.getExec(exec)

	var row resourceRow
	query := psql.Select(resourceColumns...).From("resources").Where(sq.Eq{"id": id})
	if err := get(ctx, ex, &row, query); err != nil {
		return resource.Resource{}, trapNoRowsErr(err, resource.ErrNotFound, "getting resource")
	}
	r := row.resource()
	if err := repo.loadVariant(ctx, ex, &r); err != nil {
		return resource.Resource{}, err
	}
	return r, nil
}

func (repo resourceRepository) loadVariant(ctx context.Context, ex sqlx.ExtContext, r *resource.Resource) error {
	switch r.Type {
	case resource.TypeRichText:
		var rt resource.RichText
		query := psql.Select("content", "format").From("resource_rich_texts").Where(sq.Eq{"resource_id": r.ID})
		q, args, err := query.ToSql()
		if err != nil {
			return errors.Wrap(err, "building query")
		}
		if err = ex.QueryRowxContext(ctx, q, args...).Scan(&rt.Content, &rt.Format); err != nil {
			return trapNoRowsErr(err, resource.ErrVariantMismatch, "getting rich text")
		}
		r.RichText = &rt
	case resource.TypeExternal:
		var row externalRow
		query := psql.Select("external_url", "link_title", "link_description", "favicon_url", "og_image_url").
			From("resource_externals").
			Where(sq.Eq{"resource_id": r.ID})
		if err := get(ctx, ex, &row, query); err != nil {
			return trapNoRowsErr(err, resource.ErrVariantMismatch, "getting external link")
		}
		r.External = &resource.External{
			ExternalURL:     row.ExternalURL,
			LinkTitle:       row.LinkTitle.String,
			LinkDescription: row.LinkDescription.String,
			FaviconURL:      row.FaviconURL.String,
			OGImageURL:      row.OGImageURL.String,
		}
	case resource.TypeQuiz:
		qs, err := loadQuestions(ctx, ex, "resource_id", r.ID)
		if err != nil {
			return err
		}
		r.Questions = qs
	}
	return nil
}

func (repo resourceRepository) QueryResources(ctx context.Context, chapterID string, exec ...core.DBExecutor) ([]resource.Resource, error) {
	var rows []resourceRow
	query := psql.Select(resourceColumns...).From("resources").
		Where(sq.Eq{"chapter_id": chapterID}).
		OrderBy("position", "created_at")
	if err := selectAll(ctx, repo.getExec(exec), &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying resources")
	}
	rs := make([]resource.Resource, 0, len(rows))
	for _, row := range rows {
		rs = append(rs, row.resource())
	}
	return rs, nil
}

func (repo resourceRepository) MaxPosition(ctx context.Context, chapterID string, exec ...core.DBExecutor) (int, error) {
	var max int
	query := psql.Select("COALESCE(MAX(position), 0)").From("resources").Where(sq.Eq{"chapter_id": chapterID})
	if err := get(ctx, repo.getExec(exec), &max, query); err != nil {
		return 0, errors.Wrap(err, "getting max resource position")
	}
	return max, nil
}

func (repo resourceRepository) UpdatePositions(ctx context.Context, chapterID string, positions map[string]int, exec ...core.DBExecutor) error {
	if len(positions) == 0 {
		return nil
	}
	ex := repo.getExec(exec)
	// UPDATE resources SET position = CASE id WHEN $1 THEN $2 ... END WHERE chapter_id = $n AND id IN (...)
	cases := sq.Case("id::text")
	ids := make([]string, 0, len(positions))
	for id, pos := range positions {
		cases = cases.When(sq.Expr("?", id), sq.Expr("?::integer", pos))
		ids = append(ids, id)
	}
	query := psql.Update("resources").
		Set("position", cases).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"chapter_id": chapterID, "id": ids})
	res, err := execute(ctx, ex, query)
	if err != nil {
		return errors.Wrap(err, "updating resource positions")
	}
	if n, err := res.RowsAffected(); err == nil && int(n) != len(positions) {
		return resource.ErrNotFound
	}
	return nil
}

// DeleteResource removes the resource row; variant and question rows cascade.
func (repo resourceRepository) DeleteResource(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validID(id) {
		return resource.ErrNotFound
	}
	query := psql.Delete("resources").Where(sq.Eq{"id": id})
	if err := executeOne(ctx, repo.getExec(exec), query, resource.ErrNotFound); err != nil {
		if err == resource.ErrNotFound {
			return err
		}
		return errors.Wrap(err, "deleting resource")
	}
	return nil
}
