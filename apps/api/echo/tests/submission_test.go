package tests

import (
	"encoding/base64"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/submission"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/services/email"
	"github.com/trezcool/darasa/testutil"
)

func strPtr(s string) *string { return &s }

func fPtr(f float64) *float64 { return &f }

func Test_submissionApi_lifecycle(t *testing.T) {
	f := setUpCoursework(t)
	emailsvc.ResetSentMessages()

	classmate := testutil.CreateUser(t, usrRepo, "Classmate", "classmate", "classmate@test.cd", "", user.RoleStudent, true)
	testutil.Enroll(t, schoolRepo, classmate, f.cls)
	asg := testutil.CreateAssignment(t, cwRepo, f.crs, "Algebra", null.TimeFrom(time.Now().Add(24*time.Hour)), 20)

	studentToken := getToken(t, f.student)
	teacherToken := getToken(t, f.teacher)
	savePath := "/v1/assignments/" + asg.ID + "/submission"

	save := func(ss submission.SaveSubmission) []byte { return marshallObj(t, ss) }

	runHTTPTests(t, []httpTest{
		{name: "Students only", method: http.MethodPut, path: savePath, token: teacherToken, body: save(submission.SaveSubmission{Content: strPtr("x")}), wantCode: http.StatusForbidden},
		{name: "Enrolled students only", method: http.MethodPut, path: savePath, token: getToken(t, f.outsider), body: save(submission.SaveSubmission{Content: strPtr("x")}), wantCode: http.StatusForbidden},
		{
			name: "Nothing to submit", method: http.MethodPut, path: savePath, token: studentToken,
			body: save(submission.SaveSubmission{Submit: true}), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{Error: submission.ErrNothingToSubmit.Error()}),
		},
		{
			name: "Invalid file url", method: http.MethodPut, path: savePath, token: studentToken,
			body: save(submission.SaveSubmission{FileURL: "ftp://files.test.cd/work.pdf"}), wantCode: http.StatusBadRequest,
		},
	})

	// drafts can be overwritten
	rec := serve(http.MethodPut, savePath, studentToken, save(submission.SaveSubmission{Content: strPtr("first draft")}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var draft submission.Submission
	unmarshallData(t, rec.Body.Bytes(), &draft)
	assert.Equal(t, submission.StatusDraft, draft.Status)
	assert.False(t, draft.SubmittedAt.Valid)

	rec = serve(http.MethodPut, savePath, studentToken, save(submission.SaveSubmission{Content: strPtr("second draft")}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var draft2 submission.Submission
	unmarshallData(t, rec.Body.Bytes(), &draft2)
	assert.Equal(t, draft.ID, draft2.ID)
	assert.Equal(t, "second draft", draft2.Content)

	// drafts cannot be graded
	gradePath := "/v1/submissions/" + draft.ID + "/grade"
	rec = serve(http.MethodPost, gradePath, teacherToken, marshallObj(t, submission.GradeSubmission{Grade: fPtr(10)}))
	assert.Equal(t, http.StatusConflict, rec.Code)

	// hand in, keeping the draft content
	rec = serve(http.MethodPut, savePath, studentToken, save(submission.SaveSubmission{Submit: true}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sub submission.Submission
	unmarshallData(t, rec.Body.Bytes(), &sub)
	assert.Equal(t, submission.StatusSubmitted, sub.Status)
	assert.Equal(t, "second draft", sub.Content)
	assert.True(t, sub.SubmittedAt.Valid)
	assert.False(t, sub.IsLate)

	// submitted work is final
	rec = serve(http.MethodPut, savePath, studentToken, save(submission.SaveSubmission{Content: strPtr("changed my mind")}))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, string(marshallObj(t, httpErr{Error: submission.ErrAlreadySubmitted.Error()})), rec.Body.String())

	runHTTPTests(t, []httpTest{
		{name: "Student reads their own", path: "/v1/submissions/" + sub.ID, token: studentToken},
		{name: "Classmates cannot read it", path: "/v1/submissions/" + sub.ID, token: getToken(t, classmate), wantCode: http.StatusForbidden},
		{name: "Other teachers cannot read it", path: "/v1/submissions/" + sub.ID, token: getToken(t, f.otherTeacher), wantCode: http.StatusForbidden},
		{
			name: "Grade above max points", method: http.MethodPost, path: gradePath, token: teacherToken,
			body: marshallObj(t, submission.GradeSubmission{Grade: fPtr(21)}), wantCode: http.StatusBadRequest,
		},
		{
			name: "Negative grade", method: http.MethodPost, path: gradePath, token: teacherToken,
			body: marshallObj(t, submission.GradeSubmission{Grade: fPtr(-1)}), wantCode: http.StatusBadRequest,
		},
		{
			name: "Grade required", method: http.MethodPost, path: gradePath, token: teacherToken,
			body: []byte(`{"feedback":"?"}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "Other teachers cannot grade", method: http.MethodPost, path: gradePath, token: getToken(t, f.otherTeacher),
			body: marshallObj(t, submission.GradeSubmission{Grade: fPtr(20)}), wantCode: http.StatusForbidden,
		},
		{
			name: "Students cannot grade", method: http.MethodPost, path: gradePath, token: studentToken,
			body: marshallObj(t, submission.GradeSubmission{Grade: fPtr(20)}), wantCode: http.StatusForbidden,
		},
	})

	rec = serve(http.MethodPost, gradePath, teacherToken, marshallObj(t, submission.GradeSubmission{Grade: fPtr(18), Feedback: " Well done "}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshallData(t, rec.Body.Bytes(), &sub)
	assert.Equal(t, submission.StatusGraded, sub.Status)
	assert.Equal(t, null.Float64From(18), sub.Grade)
	assert.Equal(t, null.StringFrom("Well done"), sub.Feedback)
	assert.Equal(t, null.StringFrom(f.teacher.ID), sub.GradedBy)

	// the student is notified
	sent := emailsvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, f.student.Email, sent[0].To[0].Address)
	assert.Contains(t, sent[0].TextContent, "Algebra")

	// grades can be revised
	rec = serve(http.MethodPost, gradePath, getToken(t, f.admin), marshallObj(t, submission.GradeSubmission{Grade: fPtr(19)}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshallData(t, rec.Body.Bytes(), &sub)
	assert.Equal(t, null.Float64From(19), sub.Grade)
}

func Test_submissionApi_queries(t *testing.T) {
	f := setUpCoursework(t)

	classmate := testutil.CreateUser(t, usrRepo, "Classmate", "classmate", "classmate@test.cd", "", user.RoleStudent, true)
	testutil.Enroll(t, schoolRepo, classmate, f.cls)
	asg := testutil.CreateAssignment(t, cwRepo, f.crs, "Algebra", null.Time{}, 20)
	savePath := "/v1/assignments/" + asg.ID + "/submission"

	var mine, theirs submission.Submission
	rec := serve(http.MethodPut, savePath, getToken(t, f.student), marshallObj(t, submission.SaveSubmission{Content: strPtr("mine"), Submit: true}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshallData(t, rec.Body.Bytes(), &mine)
	rec = serve(http.MethodPut, savePath, getToken(t, classmate), marshallObj(t, submission.SaveSubmission{Content: strPtr("theirs")}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshallData(t, rec.Body.Bytes(), &theirs)

	listPath := "/v1/assignments/" + asg.ID + "/submissions"
	runHTTPTests(t, []httpTest{
		{name: "Students see their own", path: listPath, token: getToken(t, f.student), wantData: marshallList(t, mine)},
		{name: "Teacher sees all", path: listPath, token: getToken(t, f.teacher), wantData: marshallList(t, theirs, mine)},
		{name: "Other teachers see none", path: listPath, token: getToken(t, f.otherTeacher), wantCode: http.StatusForbidden},
		{name: "All of a student", path: "/v1/submissions", token: getToken(t, classmate), wantData: marshallList(t, theirs)},
		{name: "All of a teacher", path: "/v1/submissions?status=submitted", token: getToken(t, f.teacher), wantData: marshallList(t, mine)},
		{name: "Nothing for other teachers", path: "/v1/submissions", token: getToken(t, f.otherTeacher), wantData: marshallList(t)},
		{name: "All for admins", path: "/v1/submissions", token: getToken(t, f.admin), wantData: marshallList(t, theirs, mine)},
	})
}

func Test_submissionApi_lateAndBackup(t *testing.T) {
	f := setUpCoursework(t)
	asg := testutil.CreateAssignment(t, cwRepo, f.crs, "Overdue", null.TimeFrom(time.Now().Add(-time.Hour)), 10)

	backup := []byte("%PDF-1.4 my work")
	rec := serve(http.MethodPut, "/v1/assignments/"+asg.ID+"/submission", getToken(t, f.student), marshallObj(t, submission.SaveSubmission{
		BackupFile:     base64.StdEncoding.EncodeToString(backup),
		BackupFileName: "work.pdf",
		Submit:         true,
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sub submission.Submission
	unmarshallData(t, rec.Body.Bytes(), &sub)
	assert.True(t, sub.IsLate)
	assert.Equal(t, len(backup), sub.BackupFileSize)
	assert.Equal(t, null.StringFrom("work.pdf"), sub.BackupFileName)

	rec = serve(http.MethodGet, "/v1/submissions/"+sub.ID+"/backup", getToken(t, f.teacher))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, backup, rec.Body.Bytes())
	assert.Equal(t, `attachment; filename="work.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusForbidden, serve(http.MethodGet, "/v1/submissions/"+sub.ID+"/backup", getToken(t, f.outsider)).Code)

	// invalid backups are rejected
	asg2 := testutil.CreateAssignment(t, cwRepo, f.crs, "Another", null.Time{}, 10)
	rec = serve(http.MethodPut, "/v1/assignments/"+asg2.ID+"/submission", getToken(t, f.student), marshallObj(t, submission.SaveSubmission{BackupFile: "not base64!"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// no backup
	rec = serve(http.MethodPut, "/v1/assignments/"+asg2.ID+"/submission", getToken(t, f.student), marshallObj(t, submission.SaveSubmission{Content: strPtr("text")}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshallData(t, rec.Body.Bytes(), &sub)
	rec = serve(http.MethodGet, "/v1/submissions/"+sub.ID+"/backup", getToken(t, f.student))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
