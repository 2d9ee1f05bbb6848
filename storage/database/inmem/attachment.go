package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/attachment"
)

type attachmentRepository struct {
	db *DB
}

var _ attachment.Repository = (*attachmentRepository)(nil)

func NewAttachmentRepository(db *DB) attachment.Repository {
	return &attachmentRepository{db: db}
}

func (repo *attachmentRepository) CreateAttachment(ctx context.Context, at attachment.Attachment, _ ...core.DBExecutor) (attachment.Attachment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	at.ID = newID()
	repo.db.t.attachments[at.ID] = at
	return at, nil
}

func (repo *attachmentRepository) GetAttachment(ctx context.Context, id string, _ ...core.DBExecutor) (attachment.Attachment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if at, ok := repo.db.t.attachments[id]; ok && at.DeletedAt == nil {
		return at, nil
	}
	return attachment.Attachment{}, attachment.ErrNotFound
}

func (repo *attachmentRepository) QueryAttachments(ctx context.Context, filter attachment.QueryFilter, _ ...core.DBExecutor) ([]attachment.Attachment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	atts := make([]attachment.Attachment, 0)
	for _, at := range repo.db.t.attachments {
		if at.OwnerType != filter.OwnerType || at.OwnerID != filter.OwnerID {
			continue
		}
		if at.DeletedAt != nil && !filter.IncludeDeleted {
			continue
		}
		if filter.Collection != "" && at.Collection != filter.Collection {
			continue
		}
		atts = append(atts, at)
	}
	sort.Slice(atts, func(i, j int) bool { return atts[i].CreatedAt.After(atts[j].CreatedAt) })
	return atts, nil
}

func (repo *attachmentRepository) DeleteAttachments(ctx context.Context, ids []string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	for _, id := range ids {
		delete(repo.db.t.attachments, id)
	}
	return nil
}
