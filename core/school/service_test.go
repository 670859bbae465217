package school_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/user"
	dummydb "github.com/trezcool/darasa/storage/database/dummy"
	"github.com/trezcool/darasa/testutil"
)

type userGetter struct {
	repo user.Repository
}

func (g userGetter) GetByID(ctx context.Context, id string) (user.User, error) {
	return g.repo.GetUser(ctx, user.GetFilter{ID: id})
}

type fixture struct {
	svc      school.Service
	repo     school.Repository
	usrRepo  user.Repository
	admin    user.User
	teacher  user.User
	other    user.User
	student  user.User
	outsider user.User
	cls      school.Class
	subj     school.Subject
	crs      school.Course
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)

	f := fixture{
		repo:    dummydb.NewSchoolRepository(db),
		usrRepo: dummydb.NewUserRepository(db),
	}
	f.svc = school.NewService(f.repo, &userGetter{repo: f.usrRepo})

	f.admin = testutil.CreateUser(t, f.usrRepo, "Admin", "admin", "", "", user.RoleAdmin, true)
	f.teacher = testutil.CreateUser(t, f.usrRepo, "Teacher", "teacher", "", "", user.RoleTeacher, true)
	f.other = testutil.CreateUser(t, f.usrRepo, "Other", "other", "", "", user.RoleTeacher, true)
	f.student = testutil.CreateUser(t, f.usrRepo, "Student", "student", "", "", user.RoleStudent, true)
	f.outsider = testutil.CreateUser(t, f.usrRepo, "Outsider", "outsider", "", "", user.RoleStudent, true)

	f.cls = testutil.CreateClass(t, f.repo, "Form 1")
	f.subj = testutil.CreateSubject(t, f.repo, "Mathematics", "MATH")
	f.crs = testutil.CreateCourse(t, f.repo, f.cls, f.subj, f.teacher)
	testutil.Enroll(t, f.repo, f.student, f.cls)
	return f
}

func TestService_AuthorizeCourse(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		usr     user.User
		write   bool
		wantErr error
	}{
		{name: "admin reads", usr: f.admin},
		{name: "admin writes", usr: f.admin, write: true},
		{name: "course teacher reads", usr: f.teacher},
		{name: "course teacher writes", usr: f.teacher, write: true},
		{name: "other teacher reads", usr: f.other, wantErr: core.ErrPermissionDenied},
		{name: "other teacher writes", usr: f.other, write: true, wantErr: core.ErrPermissionDenied},
		{name: "enrolled student reads", usr: f.student},
		{name: "enrolled student writes", usr: f.student, write: true, wantErr: core.ErrPermissionDenied},
		{name: "outsider reads", usr: f.outsider, wantErr: core.ErrPermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crs, err := f.svc.AuthorizeCourse(context.Background(), tt.usr, f.crs.ID, tt.write)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, f.crs.ID, crs.ID)
		})
	}

	_, err := f.svc.AuthorizeCourse(context.Background(), f.admin, "unknown", false)
	assert.Equal(t, school.ErrCourseNotFound, err)
}

func TestService_CreateCourse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inactive := testutil.CreateUser(t, f.usrRepo, "Retired", "retired", "", "", user.RoleTeacher, false)
	cls2 := testutil.CreateClass(t, f.repo, "Form 2")

	tests := []struct {
		name      string
		nc        school.NewCourse
		wantField string
		wantErr   error
	}{
		{name: "unknown class", nc: school.NewCourse{ClassID: "unknown", SubjectID: f.subj.ID, TeacherID: f.teacher.ID}, wantField: "class_id"},
		{name: "unknown subject", nc: school.NewCourse{ClassID: cls2.ID, SubjectID: "unknown", TeacherID: f.teacher.ID}, wantField: "subject_id"},
		{name: "unknown teacher", nc: school.NewCourse{ClassID: cls2.ID, SubjectID: f.subj.ID, TeacherID: "unknown"}, wantField: "teacher_id"},
		{name: "not a teacher", nc: school.NewCourse{ClassID: cls2.ID, SubjectID: f.subj.ID, TeacherID: f.student.ID}, wantField: "teacher_id"},
		{name: "inactive teacher", nc: school.NewCourse{ClassID: cls2.ID, SubjectID: f.subj.ID, TeacherID: inactive.ID}, wantField: "teacher_id"},
		{name: "duplicate", nc: school.NewCourse{ClassID: f.cls.ID, SubjectID: f.subj.ID, TeacherID: f.other.ID}, wantErr: school.ErrCourseExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateCourse(ctx, tt.nc)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			var vErr *core.ValidationError
			require.True(t, errors.As(err, &vErr), err)
			assert.Equal(t, tt.wantField, vErr.Fields[0].Field)
		})
	}

	crs, err := f.svc.CreateCourse(ctx, school.NewCourse{ClassID: cls2.ID, SubjectID: f.subj.ID, TeacherID: f.other.ID})
	require.NoError(t, err)
	assert.Equal(t, "Form 2", crs.ClassName)
	assert.Equal(t, "Mathematics", crs.SubjectName)
	assert.Equal(t, "Other", crs.TeacherName)

	crs, err = f.svc.UpdateCourse(ctx, crs, school.UpdateCourse{TeacherID: f.teacher.ID})
	require.NoError(t, err)
	assert.Equal(t, f.teacher.ID, crs.TeacherID)
	assert.Equal(t, "Teacher", crs.TeacherName)

	_, err = f.svc.UpdateCourse(ctx, crs, school.UpdateCourse{TeacherID: f.student.ID})
	assert.Error(t, err)
}

func TestService_Enroll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, ne := range []school.NewEnrollment{
		{UserID: f.teacher.ID, ClassID: f.cls.ID},
		{UserID: "unknown", ClassID: f.cls.ID},
		{UserID: f.outsider.ID, ClassID: "unknown"},
	} {
		_, err := f.svc.Enroll(ctx, ne)
		var vErr *core.ValidationError
		assert.True(t, errors.As(err, &vErr), ne)
	}

	_, err := f.svc.Enroll(ctx, school.NewEnrollment{UserID: f.student.ID, ClassID: f.cls.ID})
	assert.Equal(t, school.ErrAlreadyEnrolled, err)

	enr, err := f.svc.Enroll(ctx, school.NewEnrollment{UserID: f.outsider.ID, ClassID: f.cls.ID})
	require.NoError(t, err)
	assert.Equal(t, "Outsider", enr.StudentName)
	assert.Equal(t, "Form 1", enr.ClassName)

	// enrollment opens the class courses
	_, err = f.svc.AuthorizeCourse(ctx, f.outsider, f.crs.ID, false)
	assert.NoError(t, err)

	require.NoError(t, f.svc.Unenroll(ctx, enr.ID))
	_, err = f.svc.AuthorizeCourse(ctx, f.outsider, f.crs.ID, false)
	assert.Equal(t, core.ErrPermissionDenied, err)
	assert.Equal(t, school.ErrEnrollmentNotFound, f.svc.Unenroll(ctx, enr.ID))
}
