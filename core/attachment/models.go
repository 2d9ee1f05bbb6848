package attachment

import (
	"bytes"
	"io"
	"path"
	"time"
)

type OwnerType string

const (
	OwnerResource            OwnerType = "resource"
	OwnerAnnouncement        OwnerType = "announcement"
	OwnerAnnouncementComment OwnerType = "announcement_comment"
	OwnerCourseThread        OwnerType = "course_thread"
	OwnerThreadComment       OwnerType = "thread_comment"
	OwnerSubmission          OwnerType = "submission"
)

func (ot OwnerType) Valid() bool {
	switch ot {
	case OwnerResource, OwnerAnnouncement, OwnerAnnouncementComment, OwnerCourseThread, OwnerThreadComment, OwnerSubmission:
		return true
	}
	return false
}

// Collections
const (
	CollectionUploads       = "uploads"
	CollectionFileResources = "file_resources"
	CollectionSubmissions   = "submissions"
)

// Owner identifies the entity holding an attachment.
type Owner struct {
	Type OwnerType
	ID   string
}

// Directory is the default storage directory of the owner's files.
func (o Owner) Directory() string {
	return path.Join("attachments", string(o.Type), o.ID)
}

// HasAttachments is implemented by every entity owning attachments.
// Deleting such an entity must go through Service.DetachAll.
type HasAttachments interface {
	AttachmentOwner() Owner
}

type Attachment struct {
	ID               string
	OwnerType        OwnerType
	OwnerID          string
	OriginalFilename string
	Path             string // relative to the disk root
	Filename         string // generated
	MimeType         string
	Size             int64
	Extension        string
	Collection       string
	CreatedAt        time.Time  // UTC
	DeletedAt        *time.Time // soft-deleted rows are hidden from listings
}

func (at Attachment) Owner() Owner {
	return Owner{Type: at.OwnerType, ID: at.OwnerID}
}

// View is the client representation of an Attachment.
type View struct {
	ID               string `json:"id"`
	OriginalFilename string `json:"original_filename"`
	URL              string `json:"url"`
	MimeType         string `json:"mime_type"`
	Size             int64  `json:"size"`
}

// File is an uploaded file waiting to be attached.
type File struct {
	Name     string // original filename
	Size     int64
	MimeType string // detected from the extension when empty
	Open     func() (io.ReadCloser, error)
}

// FileFromBytes builds a File backed by data.
func FileFromBytes(name string, data []byte) File {
	return File{
		Name: name,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

type Options struct {
	Collection string // defaults to CollectionUploads
	Directory  string // defaults to Owner.Directory()
}

type QueryFilter struct {
	OwnerType      OwnerType
	OwnerID        string
	Collection     string // optional
	IncludeDeleted bool
}
