package main

import (
	"context"

	"github.com/trezcool/darasa/core/user"
)

func (cli *commandLine) resetPassword(ctx context.Context, uname, pwd string) error {
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	uu := user.UpdateUser{Password: pwd, PasswordConfirm: pwd}
	if err = uu.Validate(ctx, usr, cli.validate, cli.usrSvc); err != nil {
		return err
	}
	if _, err = cli.usrSvc.Update(ctx, usr, uu); err != nil {
		return err
	}
	cli.printf("password updated\n")
	return nil
}
