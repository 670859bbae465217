package main

import (
	"context"

	"github.com/trezcool/darasa/core/user"
)

// addUser validates & creates a user; admins are usually created this way.
func (cli *commandLine) addUser(ctx context.Context, nu user.NewUser) error {
	if err := nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
		return err
	}
	usr, err := cli.usrSvc.Create(ctx, nu)
	if err != nil {
		return err
	}
	cli.printf("created %s %q (%s)\n", usr.Role, usr.Username, usr.ID)
	return nil
}
