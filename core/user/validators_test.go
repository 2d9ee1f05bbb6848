package user

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-lms/core"
)

func newValidate(t *testing.T) *validator.Validate {
	t.Helper()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate
}

func TestNewUser_Validate(t *testing.T) {
	validate := newValidate(t)

	valid := NewUser{
		Name:            "Jane Doe",
		Username:        "jdoe",
		Email:           "jane@test.cd",
		Password:        "K1ng$tr0ngPass",
		PasswordConfirm: "K1ng$tr0ngPass",
		Roles:           []string{RoleStudent},
	}
	with := func(fn func(nu *NewUser)) NewUser {
		nu := valid
		fn(&nu)
		return nu
	}

	tests := []struct {
		name    string
		nu      NewUser
		wantTag map[string]string // {field: tag}
	}{
		{name: "valid", nu: valid},
		{
			name: "no username nor email",
			nu: with(func(nu *NewUser) {
				nu.Username = ""
				nu.Email = ""
			}),
			wantTag: map[string]string{"username": usernameOrEmailTag, "email": usernameOrEmailTag},
		},
		{name: "unknown role", nu: with(func(nu *NewUser) { nu.Roles = []string{"lol:"} }), wantTag: map[string]string{"roles": allRolesTag}},
		{
			name:    "password too short",
			nu:      with(func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "Ab1!", "Ab1!" }),
			wantTag: map[string]string{"password": pwdMinLenTag},
		},
		{
			name:    "password with space",
			nu:      with(func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "Ab1! cdefg", "Ab1! cdefg" }),
			wantTag: map[string]string{"password": pwdNoSpaceTag},
		},
		{
			name:    "password all numeric",
			nu:      with(func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "1234567890", "1234567890" }),
			wantTag: map[string]string{"password": pwdNotAllNumTag},
		},
		{
			name:    "password not complex",
			nu:      with(func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "abcdefghij", "abcdefghij" }),
			wantTag: map[string]string{"password": pwdComplexityTag},
		},
		{
			name:    "password similar to name",
			nu:      with(func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "Janedoe1!", "Janedoe1!" }),
			wantTag: map[string]string{"password": pwdAttrSimTag},
		},
		{
			name:    "confirmation mismatch",
			nu:      with(func(nu *NewUser) { nu.PasswordConfirm = "nope" }),
			wantTag: map[string]string{"password_confirm": "eqfield"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := tt.nu
			err := nu.Validate(validate)
			if len(tt.wantTag) == 0 {
				if err != nil {
					t.Fatalf("Validate() unexpected error = %v", err)
				}
				return
			}
			vErrs, ok := err.(validator.ValidationErrors)
			if !ok {
				t.Fatalf("Validate() error = %v; want validator.ValidationErrors", err)
			}
			got := make(map[string]string, len(vErrs))
			for _, fe := range vErrs {
				got[fe.Field()] = fe.Tag()
			}
			for fld, tag := range tt.wantTag {
				if got[fld] != tag {
					t.Errorf("Validate() %s tag = %q; want %q", fld, got[fld], tag)
				}
			}
		})
	}
}

func TestMaxRolePriority(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		want  int
	}{
		{name: "none", want: 0},
		{name: "student", roles: []string{RoleStudent}, want: 1},
		{name: "instructor & student", roles: []string{RoleStudent, RoleInstructor}, want: 11},
		{name: "owner", roles: AllRoles, want: 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaxRolePriority(tt.roles); got != tt.want {
				t.Errorf("MaxRolePriority() = %v; want %v", got, tt.want)
			}
		})
	}
}
