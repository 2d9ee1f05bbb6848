package main

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/user"
)

var roleFlags = map[string][]string{
	"admin":      {user.RoleAdminOwner},
	"instructor": {user.RoleInstructor},
	"student":    {user.RoleStudent},
}

// addUser updates or creates an active user.User with the given role.
func (cli *commandLine) addUser(name, uname, email, pwd, role string) error {
	roles, ok := roleFlags[role]
	if !ok {
		return fmt.Errorf("%q: unknown role", role)
	}

	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: uname})
	if err != nil {
		if !core.IsNotFound(err) {
			return err
		}
		now := time.Now().UTC()
		usr = user.User{Username: uname, CreatedAt: now}
	}
	usr.Email = email
	if name = core.CleanString(name); name != "" {
		usr.Name = name
	}
	usr.Roles = roles
	usr.IsActive = true
	usr.UpdatedAt = time.Now().UTC()
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	_, err = cli.usrRepo.UpdateOrCreateUser(ctx, usr)
	return err
}
