package main

import (
	"context"
)

func (cli *commandLine) sweepUploads(ctx context.Context) error {
	res, err := cli.uploadSvc.Sweep(ctx)
	if err != nil {
		return err
	}
	cli.printf("removed %d of %d uploads\n", res.Removed, res.Scanned)
	return nil
}
