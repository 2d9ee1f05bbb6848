package attachment_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/attachment"
	testutil "github.com/trezcool/masomo-lms/tests"
)

var owner = attachment.Owner{Type: attachment.OwnerAnnouncement, ID: "ann-1"}

func TestService_Attach(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		file      attachment.File
		opts      attachment.Options
		failPuts  bool
		wantErr   bool
		wantDir   string
		wantMime  string
		wantColl  string
		wantFiles int
	}{
		{
			name:      "default directory and collection",
			file:      attachment.FileFromBytes("Notes.PDF", []byte("%PDF")),
			wantDir:   "attachments/announcement/ann-1/",
			wantMime:  "application/pdf",
			wantColl:  attachment.CollectionUploads,
			wantFiles: 1,
		},
		{
			name:      "custom directory and collection",
			file:      attachment.FileFromBytes("a.png", []byte("png")),
			opts:      attachment.Options{Collection: "misc", Directory: "custom/dir"},
			wantDir:   "custom/dir/",
			wantMime:  "image/png",
			wantColl:  "misc",
			wantFiles: 1,
		},
		{
			name:     "storage failure records nothing",
			file:     attachment.FileFromBytes("a.txt", []byte("hi")),
			failPuts: true,
			wantErr:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := testutil.NewApp()
			app.Disk.FailPuts = tt.failPuts

			at, err := app.AttachmentSvc.Attach(ctx, owner, tt.file, tt.opts)
			if tt.wantErr {
				if !core.IsStorage(err) {
					t.Fatalf("Attach() error = %v; want StorageError", err)
				}
				atts, _ := app.AttachmentSvc.List(ctx, owner, "")
				if len(atts) != 0 {
					t.Errorf("List() = %d attachments; want 0", len(atts))
				}
				return
			}
			if err != nil {
				t.Fatalf("Attach() unexpected error = %v", err)
			}

			if !strings.HasPrefix(at.Path, tt.wantDir) {
				t.Errorf("Path = %q; want prefix %q", at.Path, tt.wantDir)
			}
			if at.Filename == tt.file.Name || !strings.HasSuffix(at.Filename, "."+at.Extension) {
				t.Errorf("Filename = %q; want a generated name keeping the extension", at.Filename)
			}
			if at.MimeType != tt.wantMime {
				t.Errorf("MimeType = %q; want %q", at.MimeType, tt.wantMime)
			}
			if at.Collection != tt.wantColl {
				t.Errorf("Collection = %q; want %q", at.Collection, tt.wantColl)
			}
			if _, ok := app.Disk.Get(at.Path); !ok {
				t.Errorf("file %q not stored", at.Path)
			}
			if got := len(app.Disk.Paths()); got != tt.wantFiles {
				t.Errorf("stored files = %d; want %d", got, tt.wantFiles)
			}
		})
	}
}

func TestService_Detach(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		failDeletes bool
	}{
		{name: "removes bytes and row"},
		{name: "row removed when bytes deletion fails", failDeletes: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := testutil.NewApp()
			at, err := app.AttachmentSvc.Attach(ctx, owner, attachment.FileFromBytes("a.png", []byte("png")), attachment.Options{})
			if err != nil {
				t.Fatalf("Attach() unexpected error = %v", err)
			}
			app.Disk.FailDeletes = tt.failDeletes

			if err = app.AttachmentSvc.Detach(ctx, at.ID); err != nil {
				t.Fatalf("Detach() unexpected error = %v", err)
			}
			if _, err = app.AttachmentSvc.Get(ctx, at.ID); !core.IsNotFound(err) {
				t.Errorf("Get() error = %v; want NotFoundError", err)
			}
			_, stored := app.Disk.Get(at.Path)
			if stored != tt.failDeletes {
				t.Errorf("file stored = %v; want %v", stored, tt.failDeletes)
			}
		})
	}

	t.Run("unknown attachment", func(t *testing.T) {
		app := testutil.NewApp()
		if err := app.AttachmentSvc.Detach(ctx, "nope"); !core.IsNotFound(err) {
			t.Errorf("Detach() error = %v; want NotFoundError", err)
		}
	})
}

type announcement struct{ id string }

func (a announcement) AttachmentOwner() attachment.Owner {
	return attachment.Owner{Type: attachment.OwnerAnnouncement, ID: a.id}
}

func TestService_DetachAll(t *testing.T) {
	ctx := context.Background()
	app := testutil.NewApp()
	other := attachment.Owner{Type: attachment.OwnerAnnouncement, ID: "ann-2"}

	files := []attachment.File{
		attachment.FileFromBytes("a.txt", []byte("a")),
		attachment.FileFromBytes("b.txt", []byte("b")),
	}
	if _, err := app.AttachmentSvc.AttachAll(ctx, owner, files, attachment.Options{}); err != nil {
		t.Fatalf("AttachAll() unexpected error = %v", err)
	}
	kept, err := app.AttachmentSvc.Attach(ctx, other, attachment.FileFromBytes("c.txt", []byte("c")), attachment.Options{})
	if err != nil {
		t.Fatalf("Attach() unexpected error = %v", err)
	}

	// soft-deleted rows go with their owner too
	deletedAt := time.Now().UTC()
	trashed := attachment.Attachment{
		OwnerType: owner.Type,
		OwnerID:   owner.ID,
		Path:      "attachments/announcement/ann-1/trashed.txt",
		Filename:  "trashed.txt",
		DeletedAt: &deletedAt,
	}
	if err = app.Disk.Put(ctx, trashed.Path, strings.NewReader("d"), 1, "text/plain"); err != nil {
		t.Fatalf("Put() unexpected error = %v", err)
	}
	if _, err = app.AttachmentRepo.CreateAttachment(ctx, trashed); err != nil {
		t.Fatalf("CreateAttachment() unexpected error = %v", err)
	}

	removed, err := app.AttachmentSvc.DetachAll(ctx, announcement{id: owner.ID})
	if err != nil {
		t.Fatalf("DetachAll() unexpected error = %v", err)
	}
	if len(removed) != 3 {
		t.Fatalf("DetachAll() removed %d; want 3", len(removed))
	}
	// bytes stay until DeleteFiles
	if got := len(app.Disk.Paths()); got != 4 {
		t.Errorf("stored files = %d; want 4", got)
	}
	app.AttachmentSvc.DeleteFiles(ctx, removed)
	if paths := app.Disk.Paths(); len(paths) != 1 || paths[0] != kept.Path {
		t.Errorf("stored files = %v; want [%s]", paths, kept.Path)
	}

	atts, _ := app.AttachmentRepo.QueryAttachments(ctx, attachment.QueryFilter{OwnerType: owner.Type, OwnerID: owner.ID, IncludeDeleted: true})
	if len(atts) != 0 {
		t.Errorf("QueryAttachments() = %d attachments; want 0", len(atts))
	}
}

func TestService_AttachAll_rollsBackFiles(t *testing.T) {
	ctx := context.Background()
	app := testutil.NewApp()

	ok := attachment.FileFromBytes("a.txt", []byte("a"))
	broken := attachment.File{Name: "b.txt", Size: 1} // no content
	if _, err := app.AttachmentSvc.AttachAll(ctx, owner, []attachment.File{ok, broken}, attachment.Options{}); !core.IsStorage(err) {
		t.Fatalf("AttachAll() error = %v; want StorageError", err)
	}
	if got := len(app.Disk.Paths()); got != 0 {
		t.Errorf("stored files = %d; want 0", got)
	}
}

func TestService_Present(t *testing.T) {
	ctx := context.Background()
	app := testutil.NewApp()

	at, err := app.AttachmentSvc.Attach(ctx, owner, attachment.FileFromBytes("report.pdf", []byte("%PDF")), attachment.Options{})
	if err != nil {
		t.Fatalf("Attach() unexpected error = %v", err)
	}
	v := app.AttachmentSvc.Present(at)
	want := attachment.View{
		ID:               at.ID,
		OriginalFilename: "report.pdf",
		URL:              "http://media.test/" + at.Path,
		MimeType:         "application/pdf",
		Size:             4,
	}
	if v != want {
		t.Errorf("Present() = %+v; want %+v", v, want)
	}
}
