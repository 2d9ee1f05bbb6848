package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-lms/core/quiz"
	"github.com/trezcool/masomo-lms/core/resource"
	"github.com/trezcool/masomo-lms/core/user"
	"github.com/trezcool/masomo-lms/tests"
)

func Test_resourceApi_resourceCreate(t *testing.T) {
	app, server := setup(t)

	prof := testutil.CreateUser(t, app.UserRepo, "Prof", "prof", "prof@test.cd", "", []string{user.RoleInstructor}, true)
	student := testutil.CreateUser(t, app.UserRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	c, ch := testutil.CreateCourse(t, app, prof, "Algebra")
	if _, err := app.CourseSvc.Enroll(context.Background(), c, student.ID, prof); err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	path := "/v1/chapters/" + ch.ID + "/resources"
	profToken := getToken(t, app, prof)

	richText := resource.NewResource{
		Title:        "Notes",
		ResourceType: resource.TypeRichText,
		RichText:     &resource.NewRichText{Content: "<p>hi</p>"},
		External:     &resource.NewExternal{ExternalURL: "https://ignored.test"},
	}
	twoCorrect := resource.NewResource{
		Title:        "Quiz",
		ResourceType: resource.TypeQuiz,
		Quiz:         &resource.NewQuiz{Questions: []quiz.NewQuestion{testutil.NewQuestion("2+2?", true, true)}},
	}

	tests := []httpTest{
		{name: "Auth required", path: path, body: marchallObj(t, richText), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Unknown chapter", path: "/v1/chapters/lol/resources", body: marchallObj(t, richText), token: profToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "chapter not found"})},
		{name: "Students cannot create", path: path, body: marchallObj(t, richText), token: getToken(t, app, student), wantCode: http.StatusForbidden},
		{
			name: "Unknown type", path: path, body: []byte(`{"title": "x", "resource_type": "video"}`), token: profToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"resource_type": "must be one of attachment, rich_text, quiz, external"}),
		},
		{
			name: "Missing payload", path: path, body: []byte(`{"title": "x", "resource_type": "external"}`), token: profToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"external": "this field is required for the chosen resource_type"}),
		},
		{
			name: "Invalid external url", path: path, token: profToken,
			body:     []byte(`{"title": "x", "resource_type": "external", "external": {"external_url": "ftp://lol"}}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"external.external_url": "enter a valid http(s) URL of at most 2048 characters"}),
		},
		{
			name: "Two correct options", path: path, body: marchallObj(t, twoCorrect), token: profToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"quiz.questions[0].options": quiz.ErrNotOneCorrect.Error()}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("rich text keeps its variant only", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path, profToken, marchallObj(t, richText))
		server.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var body map[string]json.RawMessage
		decode(t, rec, &body)
		assert.Contains(t, body, "rich_text")
		for _, key := range []string{"attachment", "quiz", "external"} {
			assert.NotContains(t, body, key)
		}
		assert.JSONEq(t, `{"content": "<p>hi</p>", "format": "html"}`, string(body["rich_text"]))
		assert.JSONEq(t, `1`, string(body["position"]))
	})

	t.Run("attachment from multipart form", func(t *testing.T) {
		data := resource.NewResource{Title: "Slides", ResourceType: resource.TypeAttachment}
		req, rec := newMultipartRequest(t, http.MethodPost, path, profToken, data,
			formFile{name: "slides.pdf", content: []byte("%PDF-1.4")},
			formFile{name: "notes.txt", content: []byte("read me")},
		)
		server.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var v resource.View
		decode(t, rec, &v)
		if assert.NotNil(t, v.Attachment) && assert.Len(t, v.Attachment.Files, 2) {
			names := []string{v.Attachment.Files[0].OriginalFilename, v.Attachment.Files[1].OriginalFilename}
			assert.ElementsMatch(t, []string{"slides.pdf", "notes.txt"}, names)
		}
		assert.Len(t, app.Disk.Paths(), 2)
		assert.Equal(t, 2, v.Position)
	})

	t.Run("attachment without files", func(t *testing.T) {
		data := resource.NewResource{Title: "Slides", ResourceType: resource.TypeAttachment}
		req, rec := newMultipartRequest(t, http.MethodPost, path, profToken, data)
		server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"attachment.files": "at least one file is required"}),
		}, rec)
	})

	t.Run("attachment with a forbidden extension", func(t *testing.T) {
		data := resource.NewResource{Title: "Virus", ResourceType: resource.TypeAttachment}
		req, rec := newMultipartRequest(t, http.MethodPost, path, profToken, data, formFile{name: "setup.exe", content: []byte("MZ")})
		server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"attachment.files[0]": `"setup.exe": file type not allowed`}),
		}, rec)
		assert.Len(t, app.Disk.Paths(), 2)
	})
}

func Test_resourceApi_resourceRetrieve(t *testing.T) {
	app, server := setup(t)
	ctx := context.Background()

	prof := testutil.CreateUser(t, app.UserRepo, "Prof", "prof", "prof@test.cd", "", []string{user.RoleInstructor}, true)
	student := testutil.CreateUser(t, app.UserRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	outsider := testutil.CreateUser(t, app.UserRepo, "Out", "out", "out@test.cd", "", []string{user.RoleStudent}, true)
	c, ch := testutil.CreateCourse(t, app, prof, "Algebra")
	if _, err := app.CourseSvc.Enroll(ctx, c, student.ID, prof); err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}

	v, err := app.ResourceSvc.Create(ctx, ch.ID, resource.NewResource{
		Title:        "Quiz",
		ResourceType: resource.TypeQuiz,
		Quiz: &resource.NewQuiz{Questions: []quiz.NewQuestion{
			testutil.NewQuestion("2+2?", false, true),
			testutil.NewQuestion("3+3?", true, false),
		}},
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	path := "/v1/resources/" + v.ID

	tests := []httpTest{
		{name: "Unknown resource", path: "/v1/resources/lol", token: getToken(t, app, prof), wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "resource not found"})},
		{name: "Outsider", path: path, token: getToken(t, app, outsider), wantCode: http.StatusForbidden},
		{name: "Instructor sees answers", path: path, token: getToken(t, app, prof), wantCode: http.StatusOK, wantData: marchallObj(t, v)},
		{name: "Student does not", path: path, token: getToken(t, app, student), wantCode: http.StatusOK, wantData: marchallObj(t, v.Redacted())},
		{name: "List", path: "/v1/chapters/" + ch.ID + "/resources", token: getToken(t, app, student), wantCode: http.StatusOK, wantData: marchallList(t, v.Summary)},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("redacted quiz hides is_correct", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path, getToken(t, app, student))
		server.ServeHTTP(rec, req)
		assert.NotContains(t, rec.Body.String(), "is_correct")
	})
}

func Test_resourceApi_resourceReorder(t *testing.T) {
	app, server := setup(t)
	ctx := context.Background()

	prof := testutil.CreateUser(t, app.UserRepo, "Prof", "prof", "prof@test.cd", "", []string{user.RoleInstructor}, true)
	_, ch := testutil.CreateCourse(t, app, prof, "Algebra")

	var ids []string
	for _, title := range []string{"One", "Two", "Three"} {
		v, err := app.ResourceSvc.Create(ctx, ch.ID, resource.NewResource{
			Title:        title,
			ResourceType: resource.TypeRichText,
			RichText:     &resource.NewRichText{Content: title},
		})
		if err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
		ids = append(ids, v.ID)
	}
	path := "/v1/chapters/" + ch.ID + "/resources/order"
	token := getToken(t, app, prof)
	badSet := marchallObj(t, map[string]string{"ids": resource.ErrReorderSet.Error()})

	tests := []httpTest{
		{name: "Missing id", body: marchallObj(t, resource.ReorderRequest{IDs: ids[:2]}), wantCode: http.StatusBadRequest, wantData: badSet},
		{name: "Duplicate id", body: marchallObj(t, resource.ReorderRequest{IDs: []string{ids[0], ids[0], ids[1]}}), wantCode: http.StatusBadRequest, wantData: badSet},
		{name: "Foreign id", body: marchallObj(t, resource.ReorderRequest{IDs: []string{ids[0], ids[1], "lol"}}), wantCode: http.StatusBadRequest, wantData: badSet},
		{name: "Reversed", body: marchallObj(t, resource.ReorderRequest{IDs: []string{ids[2], ids[1], ids[0]}}), wantCode: http.StatusOK},
		{name: "Reversed again is idempotent", body: marchallObj(t, resource.ReorderRequest{IDs: []string{ids[2], ids[1], ids[0]}}), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPut
		tt.path = path
		tt.token = token

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				var sums []resource.Summary
				decode(t, rec, &sums)
				if assert.Len(t, sums, 3) {
					for i, s := range sums {
						assert.Equal(t, ids[2-i], s.ID)
						assert.Equal(t, i+1, s.Position)
					}
				}
			}
		})
	}
}

func Test_resourceApi_resourceDestroy(t *testing.T) {
	app, server := setup(t)
	ctx := context.Background()

	prof := testutil.CreateUser(t, app.UserRepo, "Prof", "prof", "prof@test.cd", "", []string{user.RoleInstructor}, true)
	other := testutil.CreateUser(t, app.UserRepo, "Other", "other", "other@test.cd", "", []string{user.RoleInstructor}, true)
	_, ch := testutil.CreateCourse(t, app, prof, "Algebra")

	nr := resource.NewResource{Title: "Slides", ResourceType: resource.TypeAttachment}
	req, rec := newMultipartRequest(t, http.MethodPost, "/v1/chapters/"+ch.ID+"/resources", getToken(t, app, prof), nr,
		formFile{name: "slides.pdf", content: []byte("%PDF-1.4")},
	)
	server.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
	}
	var v resource.View
	decode(t, rec, &v)
	path := "/v1/resources/" + v.ID

	// warm the cache
	if _, err := app.ResourceSvc.Get(ctx, v.ID); err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	tests := []httpTest{
		{name: "Other instructor", token: getToken(t, app, other), wantCode: http.StatusForbidden},
		{name: "Deleted", token: getToken(t, app, prof), wantCode: http.StatusNoContent},
		{name: "Gone", token: getToken(t, app, prof), wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "resource not found"})},
	}
	for _, tt := range tests {
		tt.method = http.MethodDelete
		tt.path = path

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	assert.Empty(t, app.Disk.Paths())
	assert.False(t, app.Cache.Has("resource:"+v.ID))
	atts, err := app.AttachmentSvc.List(ctx, resource.Resource{ID: v.ID}.AttachmentOwner(), "")
	assert.NoError(t, err)
	assert.Empty(t, atts)
}
