package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/attachment"
	"github.com/trezcool/masomo-lms/storage/database"
)

var attachmentColumns = []string{
	"id", "owner_type", "owner_id", "original_filename", "path", "filename",
	"mime_type", "size", "extension", "collection", "created_at", "deleted_at",
}

type attachmentRow struct {
	ID               string    `db:"id"`
	OwnerType        string    `db:"owner_type"`
	OwnerID          string    `db:"owner_id"`
	OriginalFilename string    `db:"original_filename"`
	Path             string    `db:"path"`
	Filename         string    `db:"filename"`
	MimeType         string    `db:"mime_type"`
	Size             int64     `db:"size"`
	Extension        string    `db:"extension"`
	Collection       string    `db:"collection"`
	CreatedAt        time.Time `db:"created_at"`
	DeletedAt        null.Time `db:"deleted_at"`
}

func (row attachmentRow) attachment() attachment.Attachment {
	at := attachment.Attachment{
		ID:               row.ID,
		OwnerType:        attachment.OwnerType(row.OwnerType),
		OwnerID:          row.OwnerID,
		OriginalFilename: row.OriginalFilename,
		Path:             row.Path,
		Filename:         row.Filename,
		MimeType:         row.MimeType,
		Size:             row.Size,
		Extension:        row.Extension,
		Collection:       row.Collection,
		CreatedAt:        row.CreatedAt.UTC(),
	}
	if row.DeletedAt.Valid {
		deletedAt := row.DeletedAt.Time.UTC()
		at.DeletedAt = &deletedAt
	}
	return at
}

type attachmentRepository struct {
	repository
}

var _ attachment.Repository = (*attachmentRepository)(nil) // interface compliance check

func NewAttachmentRepository(db *database.DB) attachment.Repository {
	return &attachmentRepository{repository{db: db}}
}

func (repo attachmentRepository) CreateAttachment(ctx context.Context, at attachment.Attachment, exec ...core.DBExecutor) (attachment.Attachment, error) {
	at.ID = uuid.New().String()
	query := psql.Insert("attachments").SetMap(map[string]interface{}{
		"id":                at.ID,
		"owner_type":        string(at.OwnerType),
		"owner_id":          at.OwnerID,
		"original_filename": at.OriginalFilename,
		"path":              at.Path,
		"filename":          at.Filename,
		"mime_type":         at.MimeType,
		"size":              at.Size,
		"extension":         at.Extension,
		"collection":        at.Collection,
		"created_at":        at.CreatedAt.UTC(),
		"deleted_at":        null.TimeFromPtr(at.DeletedAt),
	})
	if _, err := execute(ctx, repo.getExec(exec), query); err != nil {
		return attachment.Attachment{}, errors.Wrap(err, "inserting attachment")
	}
	return at, nil
}

func (repo attachmentRepository) GetAttachment(ctx context.Context, id string, exec ...core.DBExecutor) (attachment.Attachment, error) {
	if !validID(id) {
		return attachment.Attachment{}, attachment.ErrNotFound
	}
	var row attachmentRow
	query := psql.Select(attachmentColumns...).From("attachments").
		Where(sq.Eq{"id": id, "deleted_at": nil})
	if err := get(ctx, repo.getExec(exec), &row, query); err != nil {
		return attachment.Attachment{}, trapNoRowsErr(err, attachment.ErrNotFound, "getting attachment")
	}
	return row.attachment(), nil
}

func (repo attachmentRepository) QueryAttachments(ctx context.Context, filter attachment.QueryFilter, exec ...core.DBExecutor) ([]attachment.Attachment, error) {
	if !validID(filter.OwnerID) {
		return []attachment.Attachment{}, nil
	}
	where := sq.Eq{"owner_type": string(filter.OwnerType), "owner_id": filter.OwnerID}
	if !filter.IncludeDeleted {
		where["deleted_at"] = nil
	}
	if filter.Collection != "" {
		where["collection"] = filter.Collection
	}
	var rows []attachmentRow
	query := psql.Select(attachmentColumns...).From("attachments").Where(where).OrderBy("created_at DESC")
	if err := selectAll(ctx, repo.getExec(exec), &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying attachments")
	}
	atts := make([]attachment.Attachment, 0, len(rows))
	for _, row := range rows {
		atts = append(atts, row.attachment())
	}
	return atts, nil
}

func (repo attachmentRepository) DeleteAttachments(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := execute(ctx, repo.getExec(exec), psql.Delete("attachments").Where(sq.Eq{"id": ids})); err != nil {
		return errors.Wrap(err, "deleting attachments")
	}
	return nil
}
