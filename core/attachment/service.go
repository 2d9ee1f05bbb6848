package attachment

import (
	"context"
	"io"
	"mime"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core"
)

var ErrNotFound = core.NewNotFoundError("attachment")

type (
	// Disk stores file bytes. Paths are slash separated and relative to the disk root.
	Disk interface {
		Put(ctx context.Context, path string, r io.Reader, size int64, mimeType string) error
		Delete(ctx context.Context, path string) error
		// URL returns the public URL of path; never a filesystem path.
		URL(path string) string
	}

	Repository interface {
		CreateAttachment(ctx context.Context, at Attachment, exec ...core.DBExecutor) (Attachment, error)
		GetAttachment(ctx context.Context, id string, exec ...core.DBExecutor) (Attachment, error)
		// QueryAttachments returns the attachments matching filter, newest first.
		// Soft-deleted rows are skipped unless filter.IncludeDeleted is set.
		QueryAttachments(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Attachment, error)
		DeleteAttachments(ctx context.Context, ids []string, exec ...core.DBExecutor) error
	}

	Service struct {
		repo   Repository
		disk   Disk
		logger core.Logger
	}
)

func NewService(repo Repository, disk Disk, logger core.Logger) *Service {
	return &Service{repo: repo, disk: disk, logger: logger}
}

// newFilename is collision resistant and independent of the original name.
var newFilename = func(ext string) string { // mockable
	name := uuid.New().String()
	if ext != "" {
		name += "." + ext
	}
	return name
}

// Attach writes the file bytes to the disk then records the attachment.
// Nothing is recorded when the write fails; the written bytes are removed when recording fails.
func (svc *Service) Attach(ctx context.Context, owner Owner, f File, opts Options, exec ...core.DBExecutor) (Attachment, error) {
	if !owner.Type.Valid() || owner.ID == "" {
		return Attachment{}, errors.Errorf("invalid attachment owner %q/%q", owner.Type, owner.ID)
	}

	ext := Extension(f.Name)
	at := Attachment{
		OwnerType:        owner.Type,
		OwnerID:          owner.ID,
		OriginalFilename: path.Base(f.Name),
		Filename:         newFilename(ext),
		MimeType:         f.MimeType,
		Size:             f.Size,
		Extension:        ext,
		Collection:       opts.Collection,
		CreatedAt:        time.Now().UTC(),
	}
	if at.Collection == "" {
		at.Collection = CollectionUploads
	}
	if at.MimeType == "" {
		at.MimeType = mime.TypeByExtension("." + ext)
		if at.MimeType == "" {
			at.MimeType = "application/octet-stream"
		}
	}
	dir := opts.Directory
	if dir == "" {
		dir = owner.Directory()
	}
	at.Path = path.Join(dir, at.Filename)

	if err := svc.write(ctx, at, f); err != nil {
		return Attachment{}, err
	}

	created, err := svc.repo.CreateAttachment(ctx, at, exec...)
	if err != nil {
		svc.deleteFile(ctx, at)
		return Attachment{}, errors.Wrap(err, "recording attachment")
	}
	return created, nil
}

func (svc *Service) write(ctx context.Context, at Attachment, f File) error {
	if f.Open == nil {
		return core.NewStorageError("write", at.Path, errors.New("no file content"))
	}
	rc, err := f.Open()
	if err != nil {
		return core.NewStorageError("write", at.Path, errors.Wrap(err, "opening upload"))
	}
	defer func() { _ = rc.Close() }()

	if err = svc.disk.Put(ctx, at.Path, rc, at.Size, at.MimeType); err != nil {
		return core.NewStorageError("write", at.Path, err)
	}
	return nil
}

// AttachAll attaches files in order. On failure the files already written are removed
// and the caller's transaction is expected to roll back the recorded rows.
func (svc *Service) AttachAll(ctx context.Context, owner Owner, files []File, opts Options, exec ...core.DBExecutor) ([]Attachment, error) {
	atts := make([]Attachment, 0, len(files))
	for _, f := range files {
		at, err := svc.Attach(ctx, owner, f, opts, exec...)
		if err != nil {
			svc.DeleteFiles(ctx, atts)
			return nil, err
		}
		atts = append(atts, at)
	}
	return atts, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Attachment, error) {
	return svc.repo.GetAttachment(ctx, id)
}

// Detach deletes the stored bytes, then the metadata row.
// The row is removed even when deleting the bytes fails.
func (svc *Service) Detach(ctx context.Context, id string, exec ...core.DBExecutor) error {
	at, err := svc.repo.GetAttachment(ctx, id, exec...)
	if err != nil {
		return err
	}
	svc.deleteFile(ctx, at)
	if err = svc.repo.DeleteAttachments(ctx, []string{at.ID}, exec...); err != nil {
		return errors.Wrap(err, "deleting attachment")
	}
	return nil
}

// DetachAll removes every attachment row of owner using exec, soft-deleted ones included,
// and returns the removed attachments.
// Call DeleteFiles with them once the surrounding transaction has committed.
func (svc *Service) DetachAll(ctx context.Context, owner HasAttachments, exec ...core.DBExecutor) ([]Attachment, error) {
	o := owner.AttachmentOwner()
	filter := QueryFilter{OwnerType: o.Type, OwnerID: o.ID, IncludeDeleted: true}
	atts, err := svc.repo.QueryAttachments(ctx, filter, exec...)
	if err != nil {
		return nil, errors.Wrap(err, "querying owner attachments")
	}
	if len(atts) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(atts))
	for _, at := range atts {
		ids = append(ids, at.ID)
	}
	if err = svc.repo.DeleteAttachments(ctx, ids, exec...); err != nil {
		return nil, errors.Wrap(err, "deleting owner attachments")
	}
	return atts, nil
}

// DeleteFiles removes the stored bytes of atts. Failures are logged, never returned.
func (svc *Service) DeleteFiles(ctx context.Context, atts []Attachment) {
	for _, at := range atts {
		svc.deleteFile(ctx, at)
	}
}

func (svc *Service) deleteFile(ctx context.Context, at Attachment) {
	if err := svc.disk.Delete(ctx, at.Path); err != nil {
		svc.logger.Warn("could not delete attachment file", core.NewStorageError("delete", at.Path, err))
	}
}

// List returns the owner's attachments, newest first. collection is optional.
func (svc *Service) List(ctx context.Context, owner Owner, collection string, exec ...core.DBExecutor) ([]Attachment, error) {
	filter := QueryFilter{OwnerType: owner.Type, OwnerID: owner.ID, Collection: collection}
	return svc.repo.QueryAttachments(ctx, filter, exec...)
}

func (svc *Service) Present(at Attachment) View {
	return View{
		ID:               at.ID,
		OriginalFilename: at.OriginalFilename,
		URL:              svc.disk.URL(at.Path),
		MimeType:         at.MimeType,
		Size:             at.Size,
	}
}

func (svc *Service) PresentAll(atts []Attachment) []View {
	views := make([]View, 0, len(atts))
	for _, at := range atts {
		views = append(views, svc.Present(at))
	}
	return views
}
