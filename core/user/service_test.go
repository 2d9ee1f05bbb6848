package user_test

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/user"
	testutil "github.com/trezcool/masomo-lms/tests"
)

func userIDs(users []user.User) []string {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}

func TestService_Query(t *testing.T) {
	app := testutil.NewApp()
	ctx := context.Background()
	john := testutil.CreateUser(t, app.UserRepo, "John Doe", "john", "john@masomo.test", "", []string{user.RoleStudent}, true)
	jane := testutil.CreateUser(t, app.UserRepo, "Jane", "jane", "jane@masomo.test", "", []string{user.RoleAdminOwner}, false)
	prof := testutil.CreateUser(t, app.UserRepo, "Prof", "prof", "prof@masomo.test", "", []string{user.RoleInstructor}, true)

	active := true
	tests := []struct {
		name   string
		filter user.QueryFilter
		want   []string
	}{
		{name: "all", want: []string{john.ID, jane.ID, prof.ID}},
		{name: "search is case-insensitive", filter: user.QueryFilter{Search: "doe"}, want: []string{john.ID}},
		{name: "search email", filter: user.QueryFilter{Search: "jane@"}, want: []string{jane.ID}},
		{name: "role prefix", filter: user.QueryFilter{Roles: []string{user.RoleAdmin}}, want: []string{jane.ID}},
		{name: "any role", filter: user.QueryFilter{Roles: []string{user.RoleStudent, user.RoleInstructor}}, want: []string{john.ID, prof.ID}},
		{name: "active only", filter: user.QueryFilter{IsActive: &active}, want: []string{john.ID, prof.ID}},
		{name: "no match", filter: user.QueryFilter{Search: "nobody"}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, err := app.UserSvc.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query() unexpected error = %v", err)
			}
			assert.ElementsMatch(t, tt.want, userIDs(users))
		})
	}
}

func TestService_Update(t *testing.T) {
	app := testutil.NewApp()
	ctx := context.Background()
	validate, _ := testutil.NewValidator()
	john := testutil.CreateUser(t, app.UserRepo, "John", "john", "john@masomo.test", "", []string{user.RoleStudent}, true)
	testutil.CreateUser(t, app.UserRepo, "Jane", "jane", "jane@masomo.test", "", []string{user.RoleStudent}, true)

	t.Run("taken email", func(t *testing.T) {
		uu := user.UpdateUser{Email: "Jane@masomo.test"}
		if err := uu.Validate(validate, john); err != nil {
			t.Fatalf("Validate() unexpected error = %v", err)
		}
		_, err := app.UserSvc.Update(ctx, john, uu)
		if verr, ok := err.(*core.ValidationError); !ok || verr.Fields[0].Field != "email" {
			t.Errorf("Update() error = %v; want email ValidationError", err)
		}
	})

	t.Run("weak password", func(t *testing.T) {
		uu := user.UpdateUser{Password: "lol", PasswordConfirm: "lol"}
		if err := uu.Validate(validate, john); err == nil {
			t.Error("Validate() expected an error")
		}
	})

	t.Run("updated", func(t *testing.T) {
		inactive := false
		uu := user.UpdateUser{Name: " Johnny ", IsActive: &inactive, Password: "LolC@t123", PasswordConfirm: "LolC@t123"}
		if err := uu.Validate(validate, john); err != nil {
			t.Fatalf("Validate() unexpected error = %v", err)
		}
		got, err := app.UserSvc.Update(ctx, john, uu)
		if err != nil {
			t.Fatalf("Update() unexpected error = %v", err)
		}
		assert.Equal(t, "Johnny", got.Name)
		assert.Equal(t, "john", got.Username)
		assert.Equal(t, "john@masomo.test", got.Email)
		assert.False(t, got.IsActive)
		assert.Equal(t, []string{user.RoleStudent}, got.Roles)
		assert.NoError(t, got.CheckPassword("LolC@t123"))
	})
}

func TestService_Delete(t *testing.T) {
	app := testutil.NewApp()
	ctx := context.Background()
	prof := testutil.CreateUser(t, app.UserRepo, "Prof", "prof", "prof@masomo.test", "", []string{user.RoleInstructor}, true)
	john := testutil.CreateUser(t, app.UserRepo, "John", "john", "john@masomo.test", "", []string{user.RoleStudent}, true)
	c, _ := testutil.CreateCourse(t, app, prof, "Algebra")
	if _, err := app.CourseSvc.Enroll(ctx, c, john.ID, prof); err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}

	if err := app.UserSvc.Delete(ctx, prof.ID, john.ID); !isValidation(err) {
		t.Errorf("Delete() error = %v; want ValidationError", err)
	}
	if _, err := app.UserSvc.GetByID(ctx, john.ID); err != nil {
		t.Errorf("GetByID() error = %v; nothing should be deleted", err)
	}

	if err := app.UserSvc.Delete(ctx, john.ID); err != nil {
		t.Fatalf("Delete() unexpected error = %v", err)
	}
	if _, err := app.UserSvc.GetByID(ctx, john.ID); !core.IsNotFound(err) {
		t.Errorf("GetByID() error = %v; want NotFoundError", err)
	}
	if ok, _ := app.CourseSvc.IsEnrolled(ctx, c.ID, john.ID); ok {
		t.Error("enrollment survived its user")
	}
}

func isValidation(err error) bool {
	_, ok := err.(*core.ValidationError)
	return ok
}

func TestService_RequestPasswordReset(t *testing.T) {
	app := testutil.NewApp()
	ctx := context.Background()
	john := testutil.CreateUser(t, app.UserRepo, "John", "john", "john@masomo.test", "", []string{user.RoleStudent}, true)
	testutil.CreateUser(t, app.UserRepo, "Gone", "gone", "gone@masomo.test", "", []string{user.RoleStudent}, false)
	link := regexp.MustCompile(`http://masomo\.test/password-reset/([^/\s"]+)/([^/\s"]+)`)

	for _, email := range []string{"nobody@masomo.test", "gone@masomo.test"} {
		if err := app.UserSvc.RequestPasswordReset(ctx, email); err != user.ErrNotFound {
			t.Errorf("RequestPasswordReset(%s) error = %v; want %v", email, err, user.ErrNotFound)
		}
	}
	if n := len(app.Mail.SentMessages()); n != 0 {
		t.Fatalf("sent %d messages; want none", n)
	}

	if err := app.UserSvc.RequestPasswordReset(ctx, " John@Masomo.test "); err != nil {
		t.Fatalf("RequestPasswordReset() unexpected error = %v", err)
	}
	msgs := app.Mail.SentMessages()
	if len(msgs) != 1 {
		t.Fatalf("sent %d messages; want 1", len(msgs))
	}
	msg := msgs[0]
	assert.Equal(t, john.Email, msg.To[0].Address)
	assert.True(t, strings.Contains(msg.TextContent, john.Name))
	assert.True(t, strings.Contains(msg.HTMLContent, john.Name))
	m := link.FindStringSubmatch(msg.TextContent)
	if assert.Len(t, m, 3) {
		assert.Equal(t, user.EncodeUID(john), m[1])
		assert.Regexp(t, link, msg.HTMLContent)

		// the mailed link resets the password, once
		rp := user.ResetUserPassword{UID: m[1], Token: m[2], Password: "LolC@t123", PasswordConfirm: "LolC@t123"}
		if err := app.UserSvc.ResetPassword(ctx, rp); err != nil {
			t.Fatalf("ResetPassword() unexpected error = %v", err)
		}
		if err := app.UserSvc.ResetPassword(ctx, rp); !isValidation(err) {
			t.Errorf("ResetPassword() reuse error = %v; want ValidationError", err)
		}
	}
}

func TestService_ResetPassword(t *testing.T) {
	app := testutil.NewApp()
	ctx := context.Background()
	john := testutil.CreateUser(t, app.UserRepo, "John", "john", "john@masomo.test", "old", []string{user.RoleStudent}, true)
	gone := testutil.CreateUser(t, app.UserRepo, "Gone", "gone", "gone@masomo.test", "old", []string{user.RoleStudent}, false)
	token, err := user.MakeToken(app.Conf, john)
	if err != nil {
		t.Fatalf("MakeToken() failed: %v", err)
	}
	goneToken, err := user.MakeToken(app.Conf, gone)
	if err != nil {
		t.Fatalf("MakeToken() failed: %v", err)
	}
	pwd := "LolC@t123"

	tests := []struct {
		name      string
		rp        user.ResetUserPassword
		wantField string
	}{
		{name: "malformed uid", rp: user.ResetUserPassword{UID: "%%%", Token: token}, wantField: "uid"},
		{name: "unknown user", rp: user.ResetUserPassword{UID: user.EncodeUID(user.User{ID: "nope"}), Token: token}, wantField: "uid"},
		{name: "inactive user", rp: user.ResetUserPassword{UID: user.EncodeUID(gone), Token: goneToken}, wantField: "uid"},
		{name: "token of another user", rp: user.ResetUserPassword{UID: user.EncodeUID(john), Token: goneToken}, wantField: "token"},
		{name: "valid", rp: user.ResetUserPassword{UID: user.EncodeUID(john), Token: token}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.rp.Password, tt.rp.PasswordConfirm = pwd, pwd
			err := app.UserSvc.ResetPassword(ctx, tt.rp)
			if tt.wantField != "" {
				verr, ok := err.(*core.ValidationError)
				if !ok || verr.Fields[0].Field != tt.wantField {
					t.Errorf("ResetPassword() error = %v; want %s ValidationError", err, tt.wantField)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResetPassword() unexpected error = %v", err)
			}
			got, _ := app.UserSvc.GetByID(ctx, john.ID)
			assert.NoError(t, got.CheckPassword(pwd))
		})
	}
}
