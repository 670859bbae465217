package sqlxrepos_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/coursework"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/submission"
	"github.com/trezcool/darasa/core/user"
	sqlxrepos "github.com/trezcool/darasa/storage/database/sqlx"
	"github.com/trezcool/darasa/testutil"
)

type fixture struct {
	db         *sqlx.DB
	usrRepo    user.Repository
	schoolRepo school.Repository
	cwRepo     coursework.Repository
	subRepo    submission.Repository
	teacher    user.User
	cls        school.Class
	crs        school.Course
	asg        coursework.Assignment
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.OpenDB(t, "sqlx")
	testutil.ResetDB(t, db)

	f := fixture{
		db:         db,
		usrRepo:    sqlxrepos.NewUserRepository(db),
		schoolRepo: sqlxrepos.NewSchoolRepository(db),
		cwRepo:     sqlxrepos.NewCourseworkRepository(db),
		subRepo:    sqlxrepos.NewSubmissionRepository(db),
	}
	f.teacher = testutil.CreateUser(t, f.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", user.RoleTeacher, true)
	f.cls = testutil.CreateClass(t, f.schoolRepo, "Form 1")
	f.crs = testutil.CreateCourse(t, f.schoolRepo, f.cls, testutil.CreateSubject(t, f.schoolRepo, "Biology", "BIO"), f.teacher)
	f.asg = testutil.CreateAssignment(t, f.cwRepo, f.crs, "Cells", null.Time{}, 20)
	return f
}

func (f fixture) student(t *testing.T, name string) user.User {
	t.Helper()
	std := testutil.CreateUser(t, f.usrRepo, name, core.CleanString(name, true)+"_std", "", "", user.RoleStudent, true)
	testutil.Enroll(t, f.schoolRepo, std, f.cls)
	return std
}

func (f fixture) save(t *testing.T, std user.User, status, content, fileURL string) (submission.Submission, error) {
	t.Helper()
	now := time.Now().UTC()
	sub := submission.Submission{
		AssignmentID: f.asg.ID,
		StudentID:    std.ID,
		Status:       status,
		Content:      content,
		FileURL:      null.NewString(fileURL, fileURL != ""),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if status != submission.StatusDraft {
		sub.SubmittedAt = null.TimeFrom(now)
	}
	return f.subRepo.UpsertSubmission(context.Background(), sub)
}

func isConflict(err error) bool {
	var cErr *core.ConflictError
	return errors.As(err, &cErr)
}

func TestRepositories_constraints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := f.usrRepo.CreateUser(ctx, user.User{Name: "Copy", Username: "teacher", Role: user.RoleTeacher, CreatedAt: now, UpdatedAt: now})
	assert.Equal(t, user.ErrUsernameExists, err)
	_, err = f.usrRepo.CreateUser(ctx, user.User{Name: "Copy", Email: "teacher@test.cd", Role: user.RoleTeacher, CreatedAt: now, UpdatedAt: now})
	assert.Equal(t, user.ErrEmailExists, err)
	assert.Equal(t, user.ErrUsernameExists, f.usrRepo.CheckUniqueness(ctx, "teacher", "", nil))
	assert.NoError(t, f.usrRepo.CheckUniqueness(ctx, "teacher", "", []user.User{f.teacher}))

	_, err = f.schoolRepo.CreateClass(ctx, school.Class{Name: "Form 1", CreatedAt: now, UpdatedAt: now})
	assert.Equal(t, school.ErrClassExists, err)
	_, err = f.schoolRepo.CreateSubject(ctx, school.Subject{Name: "Biology", Code: "BIO2", CreatedAt: now, UpdatedAt: now})
	assert.Equal(t, school.ErrSubjectNameExists, err)
	_, err = f.schoolRepo.CreateSubject(ctx, school.Subject{Name: "Life Sciences", Code: "BIO", CreatedAt: now, UpdatedAt: now})
	assert.Equal(t, school.ErrSubjectCodeExists, err)
	_, err = f.schoolRepo.CreateCourse(ctx, school.Course{
		ClassID: f.cls.ID, SubjectID: f.crs.SubjectID, TeacherID: f.teacher.ID, CreatedAt: now, UpdatedAt: now,
	})
	assert.Equal(t, school.ErrCourseExists, err)

	std := f.student(t, "Ann")
	_, err = f.schoolRepo.CreateEnrollment(ctx, school.Enrollment{UserID: std.ID, ClassID: f.cls.ID, CreatedAt: now})
	assert.Equal(t, school.ErrAlreadyEnrolled, err)

	// foreign keys
	_, err = f.usrRepo.DeleteUsersByID(ctx, []string{f.teacher.ID})
	assert.Equal(t, school.ErrTeacherHasCourses, err)
	_, err = f.cwRepo.CreateMaterial(ctx, coursework.Material{CourseID: uuid.New().String(), Title: "Orphan", CreatedAt: now, UpdatedAt: now})
	assert.True(t, isConflict(err), "%v", err)

	n, err := f.usrRepo.DeleteUsersByID(ctx, []string{std.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSubmissionRepository_UpsertSubmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ann, bob := f.student(t, "Ann"), f.student(t, "Bob")

	draft, err := f.save(t, ann, submission.StatusDraft, "first try", "")
	require.NoError(t, err)
	assert.Equal(t, "Ann", draft.StudentName)
	assert.Equal(t, "Cells", draft.AssignmentTitle)

	again, err := f.save(t, ann, submission.StatusDraft, "second try", "")
	require.NoError(t, err)
	assert.Equal(t, draft.ID, again.ID)
	assert.Equal(t, "second try", again.Content)

	submitted, err := f.save(t, ann, submission.StatusSubmitted, "final", "/v1/uploads/2021/04/work.pdf")
	require.NoError(t, err)
	assert.Equal(t, draft.ID, submitted.ID)
	assert.Equal(t, submission.StatusSubmitted, submitted.Status)
	assert.True(t, submitted.SubmittedAt.Valid)

	// the conflict clause only updates drafts
	_, err = f.save(t, ann, submission.StatusDraft, "too late", "")
	assert.Equal(t, submission.ErrAlreadySubmitted, err)
	stored, err := f.subRepo.GetStudentSubmission(ctx, ann.ID, f.asg.ID)
	require.NoError(t, err)
	assert.Equal(t, "final", stored.Content)

	bobDraft, err := f.save(t, bob, submission.StatusDraft, "wip", "")
	require.NoError(t, err)
	bobDraft.Grade = null.Float64From(10)
	_, err = f.subRepo.GradeSubmission(ctx, bobDraft)
	assert.Equal(t, submission.ErrNotGradable, err)

	submitted.Grade = null.Float64From(15)
	submitted.Feedback = null.StringFrom("good")
	submitted.GradedAt = null.TimeFrom(time.Now().UTC())
	submitted.GradedBy = null.StringFrom(f.teacher.ID)
	graded, err := f.subRepo.GradeSubmission(ctx, submitted)
	require.NoError(t, err)
	assert.Equal(t, submission.StatusGraded, graded.Status)
	assert.Equal(t, null.Float64From(15), graded.Grade)

	_, err = f.subRepo.GetSubmission(ctx, "not-a-uuid")
	assert.Equal(t, submission.ErrNotFound, err)

	byGrade, err := f.subRepo.QuerySubmissions(ctx, &submission.QueryFilter{AssignmentID: f.asg.ID}, []core.DBOrdering{{Field: "grade"}})
	require.NoError(t, err)
	require.Len(t, byGrade, 2)
	// nulls first on descending orderings
	assert.Equal(t, []string{"Bob", "Ann"}, []string{byGrade[0].StudentName, byGrade[1].StudentName})

	gradedOnly, err := f.subRepo.QuerySubmissions(ctx, &submission.QueryFilter{Statuses: []string{submission.StatusGraded}}, nil)
	require.NoError(t, err)
	require.Len(t, gradedOnly, 1)
	assert.Equal(t, ann.ID, gradedOnly[0].StudentID)
}

func TestUploadRepository_ReferencedKeys(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	repo := sqlxrepos.NewUploadRepository(f.db)

	submitted := "2021/04/" + uuid.New().String() + ".pdf"
	linked := "2021/04/" + uuid.New().String() + ".png"
	_, err := f.save(t, f.student(t, "Ann"), submission.StatusSubmitted, "", "https://api.darasa.test/v1/uploads/"+submitted)
	require.NoError(t, err)
	_, err = f.cwRepo.CreateMaterial(ctx, coursework.Material{
		CourseID:  f.crs.ID,
		Title:     "Diagrams",
		CreatedAt: now,
		UpdatedAt: now,
		Contents: []coursework.MaterialContent{
			{Kind: coursework.KindLink, URL: "/v1/uploads/" + linked + "?inline=1"},
		},
	})
	require.NoError(t, err)

	// more keys than a statement can hold bind parameters
	keys := []string{submitted, linked}
	for i := 0; i < 70000; i++ {
		keys = append(keys, fmt.Sprintf("2021/04/orphan-%d.txt", i))
	}
	refs, err := repo.ReferencedKeys(ctx, keys)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{submitted, linked}, refs)
}
