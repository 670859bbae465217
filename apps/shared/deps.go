package shared

import (
	"context"
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/coursework"
	"github.com/trezcool/darasa/core/report"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/setup"
	"github.com/trezcool/darasa/core/submission"
	"github.com/trezcool/darasa/core/upload"
	"github.com/trezcool/darasa/core/user"
	emailsvc "github.com/trezcool/darasa/services/email"
	"github.com/trezcool/darasa/services/filestore"
	logsvc "github.com/trezcool/darasa/services/logger"
	"github.com/trezcool/darasa/storage/database"
	boiledrepos "github.com/trezcool/darasa/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/darasa/storage/database/sqlx"
)

// Services groups the domain services the apps are built on.
type Services struct {
	User       user.Service
	School     school.Service
	Coursework coursework.Service
	Submission submission.Service
	Upload     upload.Service
	Report     report.Service
	Setup      setup.Service
}

// NewLogger returns a logger printing to stdout with prefix; errors are reported to Rollbar outside of debug mode.
func NewLogger(prefix string, conf *core.Config) *logsvc.RollbarLogger {
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, prefix+" : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	return logger
}

func NewEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// NewFileStore opens the uploads backend selected by conf.
func NewFileStore(ctx context.Context, conf *core.Config, logger core.Logger) (upload.FileStore, error) {
	switch c := conf.Uploads; c.Backend {
	case "", "disk":
		return filestore.NewDiskStore(c.Dir, logger)
	case "b2":
		return filestore.NewB2Store(ctx, c.B2AccountID, c.B2AppKey, c.B2Bucket)
	default:
		return nil, errors.Errorf("unknown uploads backend %q", c.Backend)
	}
}

// SetUpDB creates the database if needed, then opens & migrates it.
func SetUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func NewServices(db *sqlx.DB, store upload.FileStore, mailSvc core.EmailService, logger core.Logger, conf *core.Config) Services {
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, conf)
	schoolSvc := school.NewService(sqlxrepos.NewSchoolRepository(db), usrSvc)

	return Services{
		User:       usrSvc,
		School:     schoolSvc,
		Coursework: coursework.NewService(sqlxrepos.NewCourseworkRepository(db)),
		Submission: submission.NewService(sqlxrepos.NewSubmissionRepository(db), usrSvc, mailSvc, conf),
		Upload:     upload.NewService(store, sqlxrepos.NewUploadRepository(db), logger, conf),
		Report:     report.NewService(boiledrepos.NewReportRepository(db)),
		Setup:      setup.NewService(database.NewMigrator(db), database.NewLocker(db), usrSvc, schoolSvc),
	}
}
