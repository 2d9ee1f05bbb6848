package resource

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/attachment"
	"github.com/trezcool/masomo-lms/core/course"
	"github.com/trezcool/masomo-lms/core/quiz"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("resource")
	ErrVariantMismatch = errors.New("resource variant does not match its type")
	ErrReorderSet      = errors.New("ids must list every resource of the chapter exactly once")
)

type (
	Repository interface {
		// CreateResource writes the resource row and its variant rows.
		CreateResource(ctx context.Context, r Resource, exec ...core.DBExecutor) (Resource, error)
		// GetResource loads the resource with its variant.
		GetResource(ctx context.Context, id string, exec ...core.DBExecutor) (Resource, error)
		// QueryResources returns the chapter's resources without their variants, ordered by position.
		QueryResources(ctx context.Context, chapterID string, exec ...core.DBExecutor) ([]Resource, error)
		MaxPosition(ctx context.Context, chapterID string, exec ...core.DBExecutor) (int, error)
		UpdatePositions(ctx context.Context, chapterID string, positions map[string]int, exec ...core.DBExecutor) error
		// DeleteResource deletes the resource row and its variant rows.
		DeleteResource(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	// ChapterRepository is the part of course.Repository the catalog needs.
	ChapterRepository interface {
		GetChapter(ctx context.Context, id string, exec ...core.DBExecutor) (course.Chapter, error)
	}

	// Cache stores resource views. Misses are reported with ok=false.
	Cache interface {
		Get(ctx context.Context, key string, dst interface{}) (ok bool, err error)
		Set(ctx context.Context, key string, val interface{}) error
		Delete(ctx context.Context, keys ...string) error
	}

	Service struct {
		db          core.Transactor
		repo        Repository
		chapters    ChapterRepository
		attachments *attachment.Service
		cache       Cache
		logger      core.Logger
	}
)

func NewService(
	db core.Transactor,
	repo Repository,
	chapters ChapterRepository,
	attachments *attachment.Service,
	cache Cache,
	logger core.Logger,
) *Service {
	if cache == nil {
		cache = nopCache{}
	}
	return &Service{
		db:          db,
		repo:        repo,
		chapters:    chapters,
		attachments: attachments,
		cache:       cache,
		logger:      logger,
	}
}

func cacheKey(id string) string { return "resource:" + id }

// Create persists a validated NewResource with its variant in one transaction, appended to the chapter.
// Files written before a failed transaction are removed.
func (svc *Service) Create(ctx context.Context, chapterID string, nr NewResource) (View, error) {
	if !nr.ResourceType.Valid() {
		return View{}, core.NewValidationError(nil, core.FieldError{Field: "resource_type", Error: resourceTypeText})
	}

	now := time.Now().UTC()
	r := Resource{
		ChapterID:   chapterID,
		Title:       nr.Title,
		Description: nr.Description,
		Type:        nr.ResourceType,
		Metadata:    nr.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	var files []attachment.File
	switch nr.ResourceType {
	case TypeAttachment:
		if nr.Attachment != nil {
			files = nr.Attachment.Files
		}
		if len(files) == 0 {
			return View{}, core.NewValidationError(nil, core.FieldError{Field: "attachment.files", Error: filesRequiredText})
		}
	case TypeRichText:
		if nr.RichText == nil {
			return View{}, core.NewValidationError(nil, core.FieldError{Field: "rich_text", Error: payloadRequiredText})
		}
		r.RichText = &RichText{Content: nr.RichText.Content, Format: nr.RichText.Format}
		if r.RichText.Format == "" {
			r.RichText.Format = DefaultRichTextFormat
		}
	case TypeExternal:
		if nr.External == nil {
			return View{}, core.NewValidationError(nil, core.FieldError{Field: "external", Error: payloadRequiredText})
		}
		ext := External(*nr.External)
		r.External = &ext
	case TypeQuiz:
		if nr.Quiz == nil {
			return View{}, core.NewValidationError(nil, core.FieldError{Field: "quiz", Error: payloadRequiredText})
		}
		r.Questions = quiz.Build(nr.Quiz.Questions)
		if err := quiz.CheckInvariants(r.Questions); err != nil {
			return View{}, core.PrefixFields(err, "quiz")
		}
	}

	var atts []attachment.Attachment
	err := svc.db.WithinTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.chapters.GetChapter(ctx, chapterID, exec); err != nil {
			return err
		}
		pos, err := svc.repo.MaxPosition(ctx, chapterID, exec)
		if err != nil {
			return errors.Wrap(err, "getting max resource position")
		}
		r.Position = pos + 1

		if err = r.CheckVariant(); err != nil {
			return err
		}
		if r, err = svc.repo.CreateResource(ctx, r, exec); err != nil {
			return errors.Wrap(err, "creating resource")
		}

		if len(files) > 0 {
			opts := attachment.Options{Collection: attachment.CollectionFileResources}
			if atts, err = svc.attachments.AttachAll(ctx, r.AttachmentOwner(), files, opts, exec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		svc.attachments.DeleteFiles(ctx, atts)
		return View{}, err
	}
	return svc.present(r, atts), nil
}

// Get returns the resource view, served from the cache when possible.
func (svc *Service) Get(ctx context.Context, id string) (View, error) {
	var v View
	if ok, err := svc.cache.Get(ctx, cacheKey(id), &v); err != nil {
		svc.logger.Warn("could not read resource cache", err)
	} else if ok {
		return v, nil
	}

	r, err := svc.repo.GetResource(ctx, id)
	if err != nil {
		return View{}, err
	}
	var atts []attachment.Attachment
	if r.Type == TypeAttachment {
		if atts, err = svc.attachments.List(ctx, r.AttachmentOwner(), attachment.CollectionFileResources); err != nil {
			return View{}, errors.Wrap(err, "listing resource files")
		}
	}
	v = svc.present(r, atts)

	if err = svc.cache.Set(ctx, cacheKey(id), v); err != nil {
		svc.logger.Warn("could not write resource cache", err)
	}
	return v, nil
}

func (svc *Service) present(r Resource, atts []attachment.Attachment) View {
	v := View{Summary: r.Summary()}
	switch r.Type {
	case TypeAttachment:
		v.Attachment = &AttachmentView{Files: svc.attachments.PresentAll(atts)}
	case TypeRichText:
		v.RichText = r.RichText
	case TypeExternal:
		v.External = r.External
	case TypeQuiz:
		v.Quiz = &QuizView{Questions: r.Questions}
	}
	return v
}

// List returns the chapter's resources ordered by position.
func (svc *Service) List(ctx context.Context, chapterID string) ([]Summary, error) {
	rs, err := svc.repo.QueryResources(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	sums := make([]Summary, 0, len(rs))
	for _, r := range rs {
		sums = append(sums, r.Summary())
	}
	return sums, nil
}

// Reorder sets the position of every resource of the chapter to its 1-based index in ids.
// ids must be exactly the chapter's resource set.
func (svc *Service) Reorder(ctx context.Context, chapterID string, ids []string) error {
	err := svc.db.WithinTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.chapters.GetChapter(ctx, chapterID, exec); err != nil {
			return err
		}
		rs, err := svc.repo.QueryResources(ctx, chapterID, exec)
		if err != nil {
			return errors.Wrap(err, "querying chapter resources")
		}

		positions := make(map[string]int, len(ids))
		for i, id := range ids {
			if _, dup := positions[id]; dup {
				return reorderError()
			}
			positions[id] = i + 1
		}
		if len(positions) != len(rs) {
			return reorderError()
		}
		for _, r := range rs {
			if _, ok := positions[r.ID]; !ok {
				return reorderError()
			}
		}
		return svc.repo.UpdatePositions(ctx, chapterID, positions, exec)
	})
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, cacheKey(id))
	}
	svc.invalidate(ctx, keys...)
	return nil
}

func reorderError() error {
	return core.NewValidationError(ErrReorderSet, core.FieldError{Field: "ids", Error: ErrReorderSet.Error()})
}

// Delete removes the resource, its variant and its attachments. Stored bytes are removed after commit.
func (svc *Service) Delete(ctx context.Context, id string) error {
	var atts []attachment.Attachment
	err := svc.db.WithinTx(ctx, func(exec core.DBExecutor) error {
		r, err := svc.repo.GetResource(ctx, id, exec)
		if err != nil {
			return err
		}
		if atts, err = svc.attachments.DetachAll(ctx, r, exec); err != nil {
			return err
		}
		if err = svc.repo.DeleteResource(ctx, r.ID, exec); err != nil {
			return errors.Wrap(err, "deleting resource")
		}
		return nil
	})
	if err != nil {
		return err
	}

	svc.attachments.DeleteFiles(ctx, atts)
	svc.invalidate(ctx, cacheKey(id))
	return nil
}

// Invalidate drops the cached view of the resource owning a detached attachment.
func (svc *Service) Invalidate(ctx context.Context, id string) {
	svc.invalidate(ctx, cacheKey(id))
}

func (svc *Service) invalidate(ctx context.Context, keys ...string) {
	if err := svc.cache.Delete(ctx, keys...); err != nil {
		svc.logger.Warn("could not invalidate resource cache", err)
	}
}

type nopCache struct{}

func (nopCache) Get(context.Context, string, interface{}) (bool, error) { return false, nil }
func (nopCache) Set(context.Context, string, interface{}) error         { return nil }
func (nopCache) Delete(context.Context, ...string) error                { return nil }
