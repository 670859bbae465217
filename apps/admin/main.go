package main

import (
	"context"
	"fmt"
	"os"

	"github.com/trezcool/darasa/apps/shared"
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/storage/database"
)

func main() {
	conf := core.NewConfig()
	logger := shared.NewLogger("ADMIN", conf)

	// set up DB; migrations are left to the `migrate` command
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	// set up services
	store, err := shared.NewFileStore(context.Background(), conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up file store: %v", err), err)
	}
	svcs := shared.NewServices(db, store, shared.NewEmailService(conf, logger), logger, conf)
	validate, _ := shared.NewValidator()

	// start CLI
	cli := commandLine{
		migrator:  database.NewMigrator(db),
		usrSvc:    svcs.User,
		setupSvc:  svcs.Setup,
		uploadSvc: svcs.Upload,
		validate:  validate,
		out:       os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	logger.Close()
	if err != nil {
		if err != errHelp {
			fmt.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
