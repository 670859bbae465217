package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/apps/shared"
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/setup"
	"github.com/trezcool/darasa/core/upload"
	"github.com/trezcool/darasa/core/user"
	emailsvc "github.com/trezcool/darasa/services/email"
	"github.com/trezcool/darasa/services/filestore"
	logsvc "github.com/trezcool/darasa/services/logger"
	dummydb "github.com/trezcool/darasa/storage/database/dummy"
	"github.com/trezcool/darasa/testutil"
)

// fakeMigrator mimics the argument checks of goose.
type fakeMigrator struct {
	commands []string
}

func (m *fakeMigrator) Run(_ context.Context, command string, args ...string) error {
	switch command {
	case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
	case "up-to", "down-to":
		if len(args) == 0 {
			return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
		}
		if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
			return fmt.Errorf("version must be a number (got '%s')", args[0])
		}
	case "create":
		if len(args) == 0 {
			return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
		}
	default:
		return fmt.Errorf("%q: no such command", command)
	}
	m.commands = append(m.commands, command)
	return nil
}

func (m *fakeMigrator) Version(context.Context) (int64, error) {
	return int64(len(m.commands)), nil
}

type fixture struct {
	cli      *commandLine
	out      *bytes.Buffer
	usrRepo  user.Repository
	migrator *fakeMigrator
	store    *filestore.DiskStore
	conf     *core.Config
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	conf := core.NewTestConfig(dir)
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)

	db, err := dummydb.Open()
	require.NoError(t, err)
	store, err := filestore.NewDiskStore(dir, logger)
	require.NoError(t, err)
	validate, _ := shared.NewValidator()

	usrRepo := dummydb.NewUserRepository(db)
	usrSvc := user.NewServiceMock(usrRepo, emailsvc.NewConsoleServiceMock(conf), conf)
	migrator := new(fakeMigrator)

	out := new(bytes.Buffer)
	return fixture{
		cli: &commandLine{
			migrator:  migrator,
			usrSvc:    usrSvc,
			setupSvc:  setup.NewService(migrator, dummydb.NewLocker(), usrSvc, school.NewService(dummydb.NewSchoolRepository(db), usrSvc)),
			uploadSvc: upload.NewService(store, dummydb.NewUploadRepository(db), logger, conf),
			validate:  validate,
			out:       out,
		},
		out:      out,
		usrRepo:  usrRepo,
		migrator: migrator,
		store:    store,
		conf:     conf,
	}
}

// withPasswords makes the password prompts read pwds, in order.
func withPasswords(pwds ...string) {
	i := 0
	readPasswordFunc = func(int) ([]byte, error) {
		if i >= len(pwds) {
			return nil, nil
		}
		i++
		return []byte(pwds[i-1]), nil
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwds       []string
	wantErr    error
	wantErrStr string
	wantAnyErr bool
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withPasswords(tt.pwds...)
			err := cli.run(append([]string{"admin"}, tt.args...))
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				if assert.Error(t, err) {
					assert.Equal(t, tt.wantErrStr, err.Error())
				}
			case tt.wantAnyErr:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_usage(t *testing.T) {
	f := newFixture(t)
	runCLITests(t, f.cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
	})
	assert.Contains(t, f.out.String(), "Usage:")
}

func Test_commandLine_migrate(t *testing.T) {
	f := newFixture(t)
	runCLITests(t, f.cli, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
	})
	assert.Equal(t, []string{"up", "up-to", "down", "status", "create"}, f.migrator.commands)
	assert.Contains(t, f.out.String(), "database version: 5")
}

func Test_commandLine_addUser(t *testing.T) {
	f := newFixture(t)
	testutil.CreateUser(t, f.usrRepo, "Taken", "taken", "taken@test.cd", "", user.RoleStudent, true)
	pwds := []string{testutil.Password, testutil.Password}

	runCLITests(t, f.cli, []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no username", args: []string{"adduser", "-name", "Boss"}, wantErr: errHelp},
		{name: "unknown flag", args: []string{"adduser", "-lol"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-name", "Boss", "-username", "boss"}, wantErr: errHelp},
		{name: "passwords mismatch", args: []string{"adduser", "-name", "Boss", "-username", "boss"}, pwds: []string{"pwd", "lol"}, wantErrStr: "passwords do not match"},
		{name: "invalid role", args: []string{"adduser", "-name", "Boss", "-username", "boss", "-role", "JANITOR"}, pwds: pwds, wantAnyErr: true},
		{name: "username taken", args: []string{"adduser", "-name", "Boss", "-username", "Taken"}, pwds: pwds, wantAnyErr: true},
		{name: "admin", args: []string{"adduser", "-name", " The Boss ", "-username", "Boss", "-email", "boss@test.cd"}, pwds: pwds},
		{name: "teacher", args: []string{"adduser", "-name", "Teacher", "-username", "teacher", "-role", user.RoleTeacher}, pwds: pwds},
	})

	boss, err := f.usrRepo.GetUser(context.Background(), user.GetFilter{Username: "boss"})
	require.NoError(t, err)
	assert.Equal(t, "The Boss", boss.Name)
	assert.Equal(t, user.RoleAdmin, boss.Role)
	assert.True(t, boss.IsActive)
	assert.NoError(t, boss.CheckPassword(testutil.Password))

	teacher, err := f.usrRepo.GetUser(context.Background(), user.GetFilter{Username: "teacher"})
	require.NoError(t, err)
	assert.Equal(t, user.RoleTeacher, teacher.Role)
}

func Test_commandLine_resetPassword(t *testing.T) {
	f := newFixture(t)
	usr := testutil.CreateUser(t, f.usrRepo, "User", "awesome", "awesome@test.cd", "mdr", user.RoleStudent, true)

	runCLITests(t, f.cli, []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, pwds: []string{"N3w-Pa$$word", "N3w-Pa$$word"}, wantErr: user.ErrNotFound},
		{name: "weak password", args: []string{"resetpassword", "-username", usr.Username}, pwds: []string{"lol", "lol"}, wantAnyErr: true},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, pwds: []string{"N3w-Pa$$word", "N3w-Pa$$word"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", " AWESOME@test.cd "}, pwds: []string{"Th1rd#Secret", "Th1rd#Secret"}},
	})

	refreshed, err := f.usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword("Th1rd#Secret"))
}

func Test_commandLine_seed(t *testing.T) {
	f := newFixture(t)
	runCLITests(t, f.cli, []cliTest{
		{name: "seed", args: []string{"seed"}},
		{name: "seed again", args: []string{"seed"}},
	})
	assert.Contains(t, f.out.String(), "created 2 classes & 3 subjects")
	assert.Contains(t, f.out.String(), "created 0 classes & 0 subjects")
}

func Test_commandLine_sweepUploads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Save(ctx, "2020/01/old.txt", bytes.NewBufferString("old"), 3, "text/plain"))
	require.NoError(t, f.store.Save(ctx, "2020/01/new.txt", bytes.NewBufferString("new"), 3, "text/plain"))
	old := time.Now().Add(-2 * f.conf.Uploads.MaxAge)
	require.NoError(t, os.Chtimes(filepath.Join(f.conf.Uploads.Dir, "2020", "01", "old.txt"), old, old))

	runCLITests(t, f.cli, []cliTest{
		{name: "sweep", args: []string{"sweepuploads"}},
	})
	assert.Contains(t, f.out.String(), "removed 1 of 2 uploads")

	_, _, err := f.store.Open(ctx, "2020/01/old.txt")
	assert.Equal(t, upload.ErrNotFound, err)
	rc, _, err := f.store.Open(ctx, "2020/01/new.txt")
	require.NoError(t, err)
	_ = rc.Close()
}
