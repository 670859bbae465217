package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/coursework"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/storage/database"
)

// Password satisfies the password policy.
const Password = "Pa$$w0rd!2021"

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser(): %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

func CreateClass(t *testing.T, repo school.Repository, name string) school.Class {
	t.Helper()
	now := time.Now().UTC()
	cls, err := repo.CreateClass(context.Background(), school.Class{Name: name, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("CreateClass(): %v", err)
	}
	return cls
}

func CreateSubject(t *testing.T, repo school.Repository, name, code string) school.Subject {
	t.Helper()
	now := time.Now().UTC()
	subj, err := repo.CreateSubject(context.Background(), school.Subject{Name: name, Code: code, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("CreateSubject(): %v", err)
	}
	return subj
}

func CreateCourse(t *testing.T, repo school.Repository, cls school.Class, subj school.Subject, teacher user.User) school.Course {
	t.Helper()
	now := time.Now().UTC()
	crs, err := repo.CreateCourse(context.Background(), school.Course{
		ClassID:   cls.ID,
		SubjectID: subj.ID,
		TeacherID: teacher.ID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateCourse(): %v", err)
	}
	crs, err = repo.GetCourse(context.Background(), crs.ID)
	if err != nil {
		t.Fatalf("CreateCourse(): %v", err)
	}
	return crs
}

func Enroll(t *testing.T, repo school.Repository, student user.User, cls school.Class) school.Enrollment {
	t.Helper()
	enr, err := repo.CreateEnrollment(context.Background(), school.Enrollment{
		UserID:    student.ID,
		ClassID:   cls.ID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Enroll(): %v", err)
	}
	return enr
}

func CreateAssignment(
	t *testing.T,
	repo coursework.Repository,
	crs school.Course,
	title string,
	dueAt null.Time,
	maxPoints float64,
) coursework.Assignment {
	t.Helper()
	now := time.Now().UTC()
	asg, err := repo.CreateAssignment(context.Background(), coursework.Assignment{
		CourseID:  crs.ID,
		Title:     title,
		DueAt:     dueAt,
		MaxPoints: maxPoints,
		CreatedBy: null.StringFrom(crs.TeacherID),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateAssignment(): %v", err)
	}
	return asg
}

// OpenDB opens & migrates the test Postgres database `<database.name>_test_<name>` on TEST_DATABASE_HOST.
// Packages running in parallel must use distinct names.
// Tests using it are skipped unless TEST_DATABASE_HOST is set.
func OpenDB(t *testing.T, name string) *sqlx.DB {
	t.Helper()
	host := os.Getenv("TEST_DATABASE_HOST")
	if host == "" {
		t.Skip("TEST_DATABASE_HOST is not set")
	}
	conf := core.NewTestConfig(t.TempDir())
	conf.Database.Host = host
	conf.Database.Name += "_test_" + name
	conf.Database.DisableTLS = true
	if err := database.CreateIfNotExist(conf); err != nil {
		t.Fatalf("OpenDB(): %v", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("OpenDB(): %v", err)
	}
	if err = database.Migrate(db); err != nil {
		t.Fatalf("OpenDB(): %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// ResetDB empties all the tables of db.
func ResetDB(t *testing.T, db *sqlx.DB) {
	t.Helper()
	q := `TRUNCATE "user", class, subject, course, enrollment, assignment, material, material_content, exam, submission CASCADE`
	if _, err := db.Exec(q); err != nil {
		t.Fatalf("ResetDB(): %v", err)
	}
}
