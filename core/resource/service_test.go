package resource_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/attachment"
	"github.com/trezcool/masomo-lms/core/course"
	"github.com/trezcool/masomo-lms/core/quiz"
	"github.com/trezcool/masomo-lms/core/resource"
	"github.com/trezcool/masomo-lms/core/user"
	testutil "github.com/trezcool/masomo-lms/tests"
)

func setup(t *testing.T) (*testutil.App, course.Chapter) {
	app := testutil.NewApp()
	ins := testutil.CreateUser(t, app.UserRepo, "Ins", "ins", "ins@masomo.test", "", []string{user.RoleInstructor}, true)
	_, ch := testutil.CreateCourse(t, app, ins, "Biology")
	return app, ch
}

func payloads() map[resource.Type]resource.NewResource {
	return map[resource.Type]resource.NewResource{
		resource.TypeAttachment: {
			Title:        "Slides",
			ResourceType: resource.TypeAttachment,
			Attachment: &resource.NewAttachment{Files: []attachment.File{
				attachment.FileFromBytes("slides.pdf", []byte("%PDF")),
				attachment.FileFromBytes("cells.png", []byte("png")),
			}},
		},
		resource.TypeRichText: {
			Title:        "Intro",
			ResourceType: resource.TypeRichText,
			RichText:     &resource.NewRichText{Content: "<p>Cells</p>"},
		},
		resource.TypeQuiz: {
			Title:        "Check",
			ResourceType: resource.TypeQuiz,
			Quiz: &resource.NewQuiz{Questions: []quiz.NewQuestion{
				testutil.NewQuestion("What is a cell?", false, true, false),
				testutil.NewQuestion("Is DNA a protein?", false, true),
			}},
		},
		resource.TypeExternal: {
			Title:        "Video",
			ResourceType: resource.TypeExternal,
			External:     &resource.NewExternal{ExternalURL: "https://example.com/cells", LinkTitle: "Cells"},
		},
	}
}

func TestService_CreateGet_variants(t *testing.T) {
	ctx := context.Background()

	for typ, nr := range payloads() {
		typ, nr := typ, nr
		t.Run(string(typ), func(t *testing.T) {
			app, ch := setup(t)

			created, err := app.ResourceSvc.Create(ctx, ch.ID, nr)
			if err != nil {
				t.Fatalf("Create() unexpected error = %v", err)
			}
			got, err := app.ResourceSvc.Get(ctx, created.ID)
			if err != nil {
				t.Fatalf("Get() unexpected error = %v", err)
			}
			if got.ResourceType != typ {
				t.Fatalf("ResourceType = %q; want %q", got.ResourceType, typ)
			}

			set := map[resource.Type]bool{
				resource.TypeAttachment: got.Attachment != nil,
				resource.TypeRichText:   got.RichText != nil,
				resource.TypeQuiz:       got.Quiz != nil,
				resource.TypeExternal:   got.External != nil,
			}
			for other, isSet := range set {
				if isSet != (other == typ) {
					t.Errorf("variant %q set = %v", other, isSet)
				}
			}

			switch typ {
			case resource.TypeAttachment:
				if len(got.Attachment.Files) != 2 {
					t.Errorf("files = %d; want 2", len(got.Attachment.Files))
				}
				for _, f := range got.Attachment.Files {
					if f.URL == "" || f.ID == "" {
						t.Errorf("file view = %+v", f)
					}
				}
			case resource.TypeRichText:
				if got.RichText.Content != "<p>Cells</p>" || got.RichText.Format != resource.DefaultRichTextFormat {
					t.Errorf("rich text = %+v", got.RichText)
				}
			case resource.TypeQuiz:
				if len(got.Quiz.Questions) != 2 {
					t.Fatalf("questions = %d; want 2", len(got.Quiz.Questions))
				}
				for _, q := range got.Quiz.Questions {
					if _, ok := q.CorrectOption(); !ok {
						t.Errorf("question %q does not have exactly one correct option", q.Question)
					}
				}
			case resource.TypeExternal:
				if got.External.ExternalURL != "https://example.com/cells" {
					t.Errorf("external = %+v", got.External)
				}
			}
		})
	}
}

func TestService_Create_errors(t *testing.T) {
	ctx := context.Background()
	yes, no := true, false

	tests := []struct {
		name      string
		chapterID string
		nr        resource.NewResource
		failPuts  bool
		wantCheck func(error) bool
	}{
		{
			name:      "unknown chapter",
			chapterID: "nope",
			nr:        payloads()[resource.TypeRichText],
			wantCheck: core.IsNotFound,
		},
		{
			name: "quiz with two correct options",
			nr: resource.NewResource{
				Title:        "Check",
				ResourceType: resource.TypeQuiz,
				Quiz: &resource.NewQuiz{Questions: []quiz.NewQuestion{{
					Question: "q",
					Options:  []quiz.NewOption{{Text: "a", IsCorrect: &yes}, {Text: "b", IsCorrect: &yes}, {Text: "c", IsCorrect: &no}},
				}}},
			},
			wantCheck: isValidation,
		},
		{
			name:      "missing payload",
			nr:        resource.NewResource{Title: "x", ResourceType: resource.TypeExternal},
			wantCheck: isValidation,
		},
		{
			name:      "storage failure",
			nr:        payloads()[resource.TypeAttachment],
			failPuts:  true,
			wantCheck: core.IsStorage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, ch := setup(t)
			app.Disk.FailPuts = tt.failPuts
			chapterID := tt.chapterID
			if chapterID == "" {
				chapterID = ch.ID
			}

			_, err := app.ResourceSvc.Create(ctx, chapterID, tt.nr)
			if !tt.wantCheck(err) {
				t.Fatalf("Create() error = %v", err)
			}
			sums, _ := app.ResourceSvc.List(ctx, ch.ID)
			if len(sums) != 0 {
				t.Errorf("List() = %d resources; want none", len(sums))
			}
			if paths := app.Disk.Paths(); len(paths) != 0 {
				t.Errorf("stored files = %v; want none", paths)
			}
		})
	}
}

func isValidation(err error) bool {
	_, ok := err.(*core.ValidationError)
	return ok
}

func createAll(t *testing.T, app *testutil.App, chapterID string) []string {
	ids := make([]string, 0, 4)
	for _, typ := range resource.AllTypes {
		v, err := app.ResourceSvc.Create(context.Background(), chapterID, payloads()[typ])
		if err != nil {
			t.Fatalf("Create(%s) unexpected error = %v", typ, err)
		}
		ids = append(ids, v.ID)
	}
	return ids
}

func TestService_Reorder(t *testing.T) {
	ctx := context.Background()
	app, ch := setup(t)
	ids := createAll(t, app, ch.ID)

	sums, _ := app.ResourceSvc.List(ctx, ch.ID)
	for i, s := range sums {
		if s.Position != i+1 || s.ID != ids[i] {
			t.Fatalf("initial order: %d = %s@%d; want %s@%d", i, s.ID, s.Position, ids[i], i+1)
		}
	}

	order := []string{ids[2], ids[0], ids[3], ids[1]}
	positions := func() map[string]int {
		sums, err := app.ResourceSvc.List(ctx, ch.ID)
		if err != nil {
			t.Fatalf("List() unexpected error = %v", err)
		}
		m := make(map[string]int, len(sums))
		for _, s := range sums {
			m[s.ID] = s.Position
		}
		return m
	}

	if err := app.ResourceSvc.Reorder(ctx, ch.ID, order); err != nil {
		t.Fatalf("Reorder() unexpected error = %v", err)
	}
	once := positions()
	if err := app.ResourceSvc.Reorder(ctx, ch.ID, order); err != nil {
		t.Fatalf("Reorder() again unexpected error = %v", err)
	}
	twice := positions()

	for i, id := range order {
		if once[id] != i+1 {
			t.Errorf("position of %s = %d; want %d", id, once[id], i+1)
		}
		if twice[id] != once[id] {
			t.Errorf("reorder not idempotent for %s: %d then %d", id, once[id], twice[id])
		}
	}

	invalid := map[string][]string{
		"missing id":   {ids[0], ids[1], ids[2]},
		"duplicate id": {ids[0], ids[0], ids[1], ids[2]},
		"foreign id":   {ids[0], ids[1], ids[2], "nope"},
	}
	for name, order := range invalid {
		if err := app.ResourceSvc.Reorder(ctx, ch.ID, order); !isValidation(err) {
			t.Errorf("Reorder(%s) error = %v; want ValidationError", name, err)
		}
	}
	if got := positions(); got[order[0]] != twice[order[0]] {
		t.Error("rejected reorder changed positions")
	}
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()

	for _, typ := range resource.AllTypes {
		typ := typ
		t.Run(string(typ), func(t *testing.T) {
			app, ch := setup(t)
			v, err := app.ResourceSvc.Create(ctx, ch.ID, payloads()[typ])
			if err != nil {
				t.Fatalf("Create() unexpected error = %v", err)
			}
			if _, err = app.ResourceSvc.Get(ctx, v.ID); err != nil { // warm the cache
				t.Fatalf("Get() unexpected error = %v", err)
			}
			owner := attachment.Owner{Type: attachment.OwnerResource, ID: v.ID}
			deletedAt := time.Now().UTC()
			trashed := attachment.Attachment{OwnerType: owner.Type, OwnerID: owner.ID, Path: "trash/old.pdf", DeletedAt: &deletedAt}
			if err = app.Disk.Put(ctx, trashed.Path, strings.NewReader("%PDF"), 4, "application/pdf"); err != nil {
				t.Fatalf("Put() unexpected error = %v", err)
			}
			if _, err = app.AttachmentRepo.CreateAttachment(ctx, trashed); err != nil {
				t.Fatalf("CreateAttachment() unexpected error = %v", err)
			}

			if err = app.ResourceSvc.Delete(ctx, v.ID); err != nil {
				t.Fatalf("Delete() unexpected error = %v", err)
			}
			if _, err = app.ResourceSvc.Get(ctx, v.ID); !core.IsNotFound(err) {
				t.Errorf("Get() error = %v; want NotFoundError", err)
			}
			if _, err = app.ResourceRepo.GetResource(ctx, v.ID); !core.IsNotFound(err) {
				t.Errorf("GetResource() error = %v; want NotFoundError", err)
			}
			filter := attachment.QueryFilter{OwnerType: owner.Type, OwnerID: owner.ID, IncludeDeleted: true}
			if atts, _ := app.AttachmentRepo.QueryAttachments(ctx, filter); len(atts) != 0 {
				t.Errorf("%d attachments survived", len(atts))
			}
			if paths := app.Disk.Paths(); len(paths) != 0 {
				t.Errorf("stored files = %v; want none", paths)
			}
		})
	}

	t.Run("unknown resource", func(t *testing.T) {
		app, _ := setup(t)
		if err := app.ResourceSvc.Delete(ctx, "nope"); !core.IsNotFound(err) {
			t.Errorf("Delete() error = %v; want NotFoundError", err)
		}
	})
}

func TestService_Get_cache(t *testing.T) {
	ctx := context.Background()
	app, ch := setup(t)
	v, err := app.ResourceSvc.Create(ctx, ch.ID, payloads()[resource.TypeQuiz])
	if err != nil {
		t.Fatalf("Create() unexpected error = %v", err)
	}

	first, _ := app.ResourceSvc.Get(ctx, v.ID)
	second, _ := app.ResourceSvc.Get(ctx, v.ID)
	if app.Cache.Hits != 1 {
		t.Errorf("cache hits = %d; want 1", app.Cache.Hits)
	}
	if len(second.Quiz.Questions) != len(first.Quiz.Questions) {
		t.Errorf("cached view differs: %+v vs %+v", second, first)
	}
	if opt, ok := second.Quiz.Questions[0].CorrectOption(); !ok || opt.ID == "" {
		t.Error("cached view lost the correct option")
	}
	if err = app.ResourceSvc.Delete(ctx, v.ID); err != nil {
		t.Fatalf("Delete() unexpected error = %v", err)
	}
	if app.Cache.Has("resource:" + v.ID) {
		t.Error("cache entry survived Delete()")
	}
}
