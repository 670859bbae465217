package submission_test

import (
	"context"
	"encoding/base64"
	"io"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/coursework"
	"github.com/trezcool/darasa/core/submission"
	"github.com/trezcool/darasa/core/user"
	emailsvc "github.com/trezcool/darasa/services/email"
	logsvc "github.com/trezcool/darasa/services/logger"
	dummydb "github.com/trezcool/darasa/storage/database/dummy"
	"github.com/trezcool/darasa/testutil"
)

func TestMain(m *testing.M) {
	conf := core.NewTestConfig(os.TempDir())
	core.ParseEmailTemplates(logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf))
	os.Exit(m.Run())
}

type userGetter struct {
	repo user.Repository
}

func (g userGetter) GetByID(ctx context.Context, id string) (user.User, error) {
	return g.repo.GetUser(ctx, user.GetFilter{ID: id})
}

type fixture struct {
	svc     submission.Service
	teacher user.User
	student user.User
	asg     coursework.Assignment
}

func newFixture(t *testing.T, maxBackupSize int64) fixture {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)
	usrRepo := dummydb.NewUserRepository(db)
	schoolRepo := dummydb.NewSchoolRepository(db)

	conf := core.NewTestConfig(t.TempDir())
	conf.Submissions.MaxBackupSize = maxBackupSize

	var f fixture
	f.svc = submission.NewService(dummydb.NewSubmissionRepository(db), &userGetter{repo: usrRepo}, emailsvc.NewConsoleServiceMock(conf), conf)
	f.teacher = testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", user.RoleTeacher, true)
	f.student = testutil.CreateUser(t, usrRepo, "Student", "student", "student@test.cd", "", user.RoleStudent, true)

	cls := testutil.CreateClass(t, schoolRepo, "Form 1")
	crs := testutil.CreateCourse(t, schoolRepo, cls, testutil.CreateSubject(t, schoolRepo, "Physics", "PHY"), f.teacher)
	testutil.Enroll(t, schoolRepo, f.student, cls)
	due := time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC)
	f.asg = testutil.CreateAssignment(t, dummydb.NewCourseworkRepository(db), crs, "Optics", null.TimeFrom(due), 20)
	return f
}

func at(tstamp time.Time) func() {
	submission.NowFunc = func() time.Time { return tstamp }
	return func() { submission.NowFunc = time.Now }
}

func content(s string) *string { return &s }

func TestService_Save(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	defer at(f.asg.DueAt.Time.Add(-time.Hour))()

	// nothing to hand in yet
	_, err := f.svc.Save(ctx, f.student, f.asg, submission.SaveSubmission{Submit: true})
	assert.Equal(t, submission.ErrNothingToSubmit, err)

	sub, err := f.svc.Save(ctx, f.student, f.asg, submission.SaveSubmission{
		Content: content("draft"),
		FileURL: "https://files.test.cd/optics.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, submission.StatusDraft, sub.Status)
	assert.Equal(t, "draft", sub.Content)
	assert.Equal(t, null.StringFrom("https://files.test.cd/optics.pdf"), sub.FileURL)

	// omitted values are kept, cleared ones dropped
	sub, err = f.svc.Save(ctx, f.student, f.asg, submission.SaveSubmission{ClearFile: true})
	require.NoError(t, err)
	assert.Equal(t, "draft", sub.Content)
	assert.False(t, sub.FileURL.Valid)
	assert.False(t, sub.FileName.Valid)

	sub, err = f.svc.Save(ctx, f.student, f.asg, submission.SaveSubmission{Submit: true})
	require.NoError(t, err)
	assert.Equal(t, submission.StatusSubmitted, sub.Status)
	assert.False(t, sub.IsLate)
	assert.Equal(t, null.TimeFrom(submission.NowFunc().UTC()), sub.SubmittedAt)

	_, err = f.svc.Save(ctx, f.student, f.asg, submission.SaveSubmission{Content: content("too late")})
	assert.Equal(t, submission.ErrAlreadySubmitted, err)

	got, err := f.svc.GetForStudent(ctx, f.student.ID, f.asg.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, got.ID)
	assert.Equal(t, "draft", got.Content)
}

func TestService_Save_late(t *testing.T) {
	f := newFixture(t, 0)
	defer at(f.asg.DueAt.Time.Add(time.Second))()

	sub, err := f.svc.Save(context.Background(), f.student, f.asg, submission.SaveSubmission{Content: content("sorry"), Submit: true})
	require.NoError(t, err)
	assert.True(t, sub.IsLate)
}

func TestService_Save_backup(t *testing.T) {
	f := newFixture(t, 16)
	ctx := context.Background()

	tests := []struct {
		name      string
		data      string
		wantErr   string
		wantBytes []byte
	}{
		{name: "invalid base64", data: "@@@", wantErr: "invalid base64 content"},
		{name: "too large", data: base64.StdEncoding.EncodeToString([]byte(strings.Repeat("x", 17))), wantErr: "file is too large (17 B), the maximum size is 16 B"},
		{name: "way too large", data: base64.StdEncoding.EncodeToString([]byte(strings.Repeat("x", 1024))), wantErr: "file is too large"},
		{name: "fits", data: base64.StdEncoding.EncodeToString([]byte("hello, world")), wantBytes: []byte("hello, world")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := f.svc.Save(ctx, f.student, f.asg, submission.SaveSubmission{BackupFile: tt.data, BackupFileName: "notes.txt"})
			if tt.wantErr != "" {
				var vErr *core.ValidationError
				require.True(t, errors.As(err, &vErr), err)
				assert.Equal(t, "backup_file", vErr.Fields[0].Field)
				assert.Contains(t, vErr.Fields[0].Error, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.wantBytes), sub.BackupFileSize)

			backup, err := f.svc.GetBackup(ctx, sub.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBytes, backup.Data)
			assert.Equal(t, "notes.txt", backup.Name)
			assert.True(t, strings.HasPrefix(backup.Type, "text/plain"), backup.Type)
		})
	}

	sub, err := f.svc.Save(ctx, f.student, f.asg, submission.SaveSubmission{ClearBackup: true})
	require.NoError(t, err)
	_, err = f.svc.GetBackup(ctx, sub.ID)
	assert.Equal(t, submission.ErrNoBackup, err)
}

func TestService_Grade(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	emailsvc.ResetSentMessages()

	sub, err := f.svc.Save(ctx, f.student, f.asg, submission.SaveSubmission{Content: content("work")})
	require.NoError(t, err)

	grade := func(g float64) submission.GradeSubmission {
		return submission.GradeSubmission{Grade: &g, Feedback: "Good"}
	}

	_, err = f.svc.Grade(ctx, f.teacher, sub, f.asg, grade(10))
	assert.Equal(t, submission.ErrNotGradable, err)

	sub, err = f.svc.Save(ctx, f.student, f.asg, submission.SaveSubmission{Submit: true})
	require.NoError(t, err)

	for _, g := range []float64{-0.5, 20.5} {
		_, err = f.svc.Grade(ctx, f.teacher, sub, f.asg, grade(g))
		var vErr *core.ValidationError
		assert.True(t, errors.As(err, &vErr), g)
	}

	for _, g := range []float64{0, 20, 17.5} {
		sub, err = f.svc.Grade(ctx, f.teacher, sub, f.asg, grade(g))
		require.NoError(t, err)
		assert.Equal(t, submission.StatusGraded, sub.Status)
		assert.Equal(t, null.Float64From(g), sub.Grade)
		assert.Equal(t, null.StringFrom(f.teacher.ID), sub.GradedBy)
	}

	sent := emailsvc.SentMessages()
	require.Len(t, sent, 3)
	assert.Equal(t, "student@test.cd", sent[2].To[0].Address)
	assert.Contains(t, sent[2].TextContent, "17.5 / 20")
}
