package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/jifunze/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(ctx context.Context, name, email string, role user.Role, pwd string) error {
	if _, err := cli.usrSvc.GetByEmail(ctx, email); err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		_, err = cli.usrSvc.Create(ctx, user.NewUser{Name: name, Email: email, Password: pwd, Role: role})
		return err
	}

	if err := cli.usrSvc.SetPassword(ctx, email, pwd); err != nil {
		return err
	}
	_, err := cli.usrSvc.SetRole(ctx, email, role)
	return err
}
