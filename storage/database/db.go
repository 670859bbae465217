package database

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/trezcool/goose"

	"github.com/trezcool/darasa/core"
	appfs "github.com/trezcool/darasa/fs"
)

const migrationsDir = "migrations"

var gooseRunFunc = goose.RunFS // mockable

func open(dbName string, admin bool, conf *core.Config) (*sqlx.DB, error) {
	usr := url.UserPassword(conf.Database.User, conf.Database.Password)
	if admin && conf.Database.AdminUser != "" {
		usr = url.UserPassword(conf.Database.AdminUser, conf.Database.AdminPassword)
	}

	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   conf.Database.Engine,
		User:     usr,
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	db, err := sqlx.Open(conf.Database.Engine, u.String())
	if err != nil {
		return nil, err
	}
	if conf.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(conf.Database.MaxOpenConns)
		db.SetMaxIdleConns(conf.Database.MaxOpenConns)
	}
	return db, nil
}

// Open opens the app database & waits for it to be reachable.
func Open(conf *core.Config) (*sqlx.DB, error) {
	db, err := open(conf.Database.Name, false, conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sqlx.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		if err = db.Ping(); err == nil {
			return nil
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}
	return errors.Wrap(err, "DB ping timeout")
}

func exists(db *sqlx.DB, q, name string) (bool, error) {
	var found bool
	if err := db.Get(&found, q, name); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return found, nil
}

func createAppUser(db *sqlx.DB, conf *core.Config) error {
	if conf.Database.User == "" {
		return nil
	}

	found, err := exists(db, "SELECT true FROM pg_roles WHERE rolname = $1", conf.Database.User)
	if err != nil {
		return errors.Wrap(err, "checking app user")
	}
	if !found {
		q := fmt.Sprintf("CREATE USER %s CREATEDB ENCRYPTED PASSWORD '%s'", conf.Database.User, conf.Database.Password)
		if _, err = db.Exec(q); err != nil {
			return errors.Wrap(err, "creating app user")
		}
	}
	return nil
}

func createDB(db *sqlx.DB, conf *core.Config) error {
	found, err := exists(db, "SELECT true FROM pg_database WHERE datname = $1", conf.Database.Name)
	if err != nil {
		return errors.Wrap(err, "checking DB")
	}
	if !found {
		if _, err = db.Exec(fmt.Sprintf("CREATE DATABASE %s", conf.Database.Name)); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

// CreateIfNotExist creates the app user (as admin) & the app database (as app user).
func CreateIfNotExist(conf *core.Config) error {
	adminDB, err := open("postgres", true, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = adminDB.Close() }()

	if err = ping(adminDB); err != nil {
		return errors.Wrap(err, "pinging database")
	}
	if err = createAppUser(adminDB, conf); err != nil {
		return err
	}

	db, err := open("postgres", false, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()
	return createDB(db, conf)
}

// Migrate applies all the embedded migrations.
func Migrate(db *sqlx.DB) error {
	if err := gooseRunFunc("up", db.DB, appfs.FS, migrationsDir); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}

type migrator struct {
	db *sqlx.DB
}

var _ core.Migrator = (*migrator)(nil) // interface compliance check

// NewMigrator returns a core.Migrator running the embedded goose migrations on db.
func NewMigrator(db *sqlx.DB) core.Migrator {
	return &migrator{db: db}
}

func (m *migrator) Run(_ context.Context, command string, args ...string) error {
	if err := gooseRunFunc(command, m.db.DB, appfs.FS, migrationsDir, args...); err != nil {
		return errors.Wrap(err, fmt.Sprintf("running goose %s", command))
	}
	return nil
}

func (m *migrator) Version(_ context.Context) (int64, error) {
	v, err := goose.GetDBVersion(m.db.DB)
	if err != nil {
		return 0, errors.Wrap(err, "getting DB version")
	}
	return v, nil
}

type advisoryLocker struct {
	db *sqlx.DB
}

var _ core.Locker = (*advisoryLocker)(nil) // interface compliance check

// NewLocker returns a core.Locker backed by Postgres session advisory locks.
func NewLocker(db *sqlx.DB) core.Locker {
	return &advisoryLocker{db: db}
}

func lockID(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}

func (l *advisoryLocker) Lock(ctx context.Context, name string) (func(), error) {
	// session locks belong to a connection, so keep one until unlocked
	conn, err := l.db.DB.Conn(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "getting connection")
	}
	id := lockID(name)
	if _, err = conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", id); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, fmt.Sprintf("locking %s", name))
	}
	return func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", id)
		_ = conn.Close()
	}, nil
}
