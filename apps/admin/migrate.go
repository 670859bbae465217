package main

import (
	"context"
)

func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	if err := cli.migrator.Run(ctx, args[0], args[1:]...); err != nil {
		return err
	}
	version, err := cli.migrator.Version(ctx)
	if err != nil {
		return err
	}
	cli.printf("database version: %d\n", version)
	return nil
}
