package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/report"
	"github.com/trezcool/darasa/core/submission"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/testutil"
)

func Test_reportApi_dashboard(t *testing.T) {
	f := setUpCoursework(t)
	testutil.CreateAssignment(t, cwRepo, f.crs, "Open", null.TimeFrom(time.Now().Add(24*time.Hour)), 20)
	testutil.CreateAssignment(t, cwRepo, f.crs, "Overdue", null.TimeFrom(time.Now().Add(-24*time.Hour)), 20)
	graded := testutil.CreateAssignment(t, cwRepo, f.crs, "Graded", null.Time{}, 10)

	rec := serve(http.MethodPut, "/v1/assignments/"+graded.ID+"/submission", getToken(t, f.student), marshallObj(t, submission.SaveSubmission{Content: strPtr("done"), Submit: true}))
	if rec.Code != http.StatusOK {
		t.Fatalf("submitting: %d %s", rec.Code, rec.Body.String())
	}
	var sub submission.Submission
	unmarshallData(t, rec.Body.Bytes(), &sub)

	runHTTPTests(t, []httpTest{
		{name: "Auth required", path: "/v1/dashboard", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{
			name: "Teacher, before grading", path: "/v1/dashboard", token: getToken(t, f.teacher),
			wantData: marshallObj(t, report.Dashboard{Role: user.RoleTeacher, Courses: 1, Assignments: 3, AwaitingGrading: 1}),
		},
		{
			name: "Student, before grading", path: "/v1/dashboard", token: getToken(t, f.student),
			wantData: marshallObj(t, report.Dashboard{Role: user.RoleStudent, Courses: 1, OpenAssignments: 1}),
		},
	})

	rec = serve(http.MethodPost, "/v1/submissions/"+sub.ID+"/grade", getToken(t, f.teacher), marshallObj(t, submission.GradeSubmission{Grade: fPtr(8)}))
	if rec.Code != http.StatusOK {
		t.Fatalf("grading: %d %s", rec.Code, rec.Body.String())
	}

	runHTTPTests(t, []httpTest{
		{
			name: "Admin", path: "/v1/dashboard", token: getToken(t, f.admin),
			wantData: marshallObj(t, report.Dashboard{
				Role:     user.RoleAdmin,
				Users:    map[string]int{user.RoleAdmin: 1, user.RoleTeacher: 2, user.RoleStudent: 2},
				Classes:  1,
				Subjects: 1,
				Courses:  1,
			}),
		},
		{
			name: "Teacher", path: "/v1/dashboard", token: getToken(t, f.teacher),
			wantData: marshallObj(t, report.Dashboard{Role: user.RoleTeacher, Courses: 1, Assignments: 3}),
		},
		{
			name: "Other teacher", path: "/v1/dashboard", token: getToken(t, f.otherTeacher),
			wantData: marshallObj(t, report.Dashboard{Role: user.RoleTeacher}),
		},
		{
			name: "Student", path: "/v1/dashboard", token: getToken(t, f.student),
			wantData: marshallObj(t, report.Dashboard{Role: user.RoleStudent, Courses: 1, OpenAssignments: 1, Graded: 1, AverageGrade: null.Float64From(80)}),
		},
		{
			name: "Student of no class", path: "/v1/dashboard", token: getToken(t, f.outsider),
			wantData: marshallObj(t, report.Dashboard{Role: user.RoleStudent}),
		},
	})
}
