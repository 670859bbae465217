package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/setup"
	"github.com/trezcool/darasa/core/upload"
	"github.com/trezcool/darasa/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	migrator  core.Migrator
	usrSvc    user.Service
	setupSvc  setup.Service
	uploadSvc upload.Service
	validate  *validator.Validate
	out       io.Writer
}

func (cli *commandLine) printf(format string, a ...interface{}) {
	_, _ = fmt.Fprintf(cli.out, format, a...)
}

func (cli *commandLine) printUsage() {
	cli.printf("Usage:\n")
	cli.printf("  migrate COMMAND [ARGS] - run the goose migration COMMAND (up, down, status, version, ...)\n")
	cli.printf("  adduser -name NAME -username USERNAME [-email EMAIL] [-role ROLE] - create a user; the password is prompted next\n")
	cli.printf("  resetpassword -username USERNAME|EMAIL - reset user's password\n")
	cli.printf("  seed - create the demo classes & subjects\n")
	cli.printf("  sweepuploads - remove the stale uploads nothing refers to\n")
}

// promptPassword reads a password from the terminal, twice.
func (cli *commandLine) promptPassword() (string, error) {
	cli.printf("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	cli.printf("\n")
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		return "", nil
	}

	cli.printf("Confirm password:")
	confirm, err := readPasswordFunc(int(syscall.Stdin))
	cli.printf("\n")
	if err != nil {
		return "", err
	}
	if string(confirm) != string(pwd) {
		return "", errors.New("passwords do not match")
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserCmd.SetOutput(cli.out)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserRole := addUserCmd.String("role", user.RoleAdmin, "The user's role: ADMIN, TEACHER or STUDENT.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordCmd.SetOutput(cli.out)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserName == "" || *addUserUname == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(ctx, user.NewUser{
			Name:            *addUserName,
			Username:        *addUserUname,
			Email:           *addUserEmail,
			Role:            *addUserRole,
			Password:        pwd,
			PasswordConfirm: pwd,
		})

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(ctx, *resetPasswordUname, pwd)

	case "seed":
		return cli.seed(ctx)

	case "sweepuploads":
		return cli.sweepUploads(ctx)

	default:
		cli.printUsage()
		return errHelp
	}
}
