package main

import (
	"context"

	"github.com/trezcool/jifunze/core/user"
)

func (cli *commandLine) resetPassword(ctx context.Context, email, pwd string) error {
	return cli.usrSvc.SetPassword(ctx, email, pwd)
}

func (cli *commandLine) setRole(ctx context.Context, email string, role user.Role) error {
	_, err := cli.usrSvc.SetRole(ctx, email, role)
	return err
}
