package main

import (
	"context"
)

func (cli *commandLine) seed(ctx context.Context) error {
	classes, subjects, err := cli.setupSvc.SeedDemo(ctx)
	if err != nil {
		return err
	}
	cli.printf("created %d classes & %d subjects\n", len(classes), len(subjects))
	return nil
}
