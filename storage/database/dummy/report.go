package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/coursework"
	"github.com/trezcool/darasa/core/report"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/submission"
	"github.com/trezcool/darasa/core/user"
)

type reportRepository struct {
	db *DB
}

var _ report.Repository = (*reportRepository)(nil) // interface compliance check

func NewReportRepository(db *DB) report.Repository {
	return &reportRepository{db: db}
}

// studentsOf returns the students enrolled in classID; it must be called with the lock held.
func (repo *reportRepository) studentsOf(classID string) []user.User {
	students := make([]user.User, 0)
	for _, e := range repo.db.enrollments {
		if e.ClassID == classID {
			students = append(students, repo.db.users[e.UserID])
		}
	}
	return students
}

func (repo *reportRepository) submissionOf(studentID, assignmentID string) (submission.Submission, bool) {
	for _, s := range repo.db.submissions {
		if s.StudentID == studentID && s.AssignmentID == assignmentID {
			return s, true
		}
	}
	return submission.Submission{}, false
}

func (repo *reportRepository) Gradebook(_ context.Context, courseID string) ([]report.GradebookEntry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	entries := make([]report.GradebookEntry, 0)
	crs, ok := repo.db.courses[courseID]
	if !ok {
		return entries, nil
	}

	students := repo.studentsOf(crs.ClassID)
	sort.SliceStable(students, func(i, j int) bool { return students[i].Name < students[j].Name })
	assignments := repo.assignmentsOf(func(c school.Course) bool { return c.ID == courseID })
	sort.SliceStable(assignments, func(i, j int) bool {
		ai, aj := assignments[i], assignments[j]
		if ai.DueAt.Valid != aj.DueAt.Valid {
			return ai.DueAt.Valid // nulls last
		}
		if ai.DueAt.Valid && !ai.DueAt.Time.Equal(aj.DueAt.Time) {
			return ai.DueAt.Time.Before(aj.DueAt.Time)
		}
		return ai.CreatedAt.Before(aj.CreatedAt)
	})

	for _, std := range students {
		for _, asg := range assignments {
			entry := report.GradebookEntry{
				StudentID:       std.ID,
				StudentName:     std.Name,
				AssignmentID:    asg.ID,
				AssignmentTitle: asg.Title,
				MaxPoints:       asg.MaxPoints,
				Status:          report.StatusMissing,
			}
			if sub, ok := repo.submissionOf(std.ID, asg.ID); ok {
				entry.SubmissionID = null.StringFrom(sub.ID)
				entry.Status = sub.Status
				entry.Grade = sub.Grade
				entry.IsLate = sub.IsLate
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// assignmentsOf returns the assignments of the courses matching keep; it must be called with the lock held.
func (repo *reportRepository) assignmentsOf(keep func(c school.Course) bool) []coursework.Assignment {
	assignments := make([]coursework.Assignment, 0)
	for _, a := range repo.db.assignments {
		if keep(repo.db.courses[a.CourseID]) {
			assignments = append(assignments, a)
		}
	}
	return assignments
}

func (repo *reportRepository) AdminDashboard(_ context.Context) (report.Dashboard, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := make(map[string]int, len(user.AllRoles))
	for _, r := range user.AllRoles {
		users[r] = 0
	}
	for _, u := range repo.db.users {
		if u.IsActive {
			users[u.Role]++
		}
	}
	return report.Dashboard{
		Users:    users,
		Classes:  len(repo.db.classes),
		Subjects: len(repo.db.subjects),
		Courses:  len(repo.db.courses),
	}, nil
}

func (repo *reportRepository) TeacherDashboard(_ context.Context, teacherID string) (report.Dashboard, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var dash report.Dashboard
	for _, c := range repo.db.courses {
		if c.TeacherID == teacherID {
			dash.Courses++
		}
	}
	taught := make(map[string]bool)
	for _, a := range repo.assignmentsOf(func(c school.Course) bool { return c.TeacherID == teacherID }) {
		taught[a.ID] = true
	}
	dash.Assignments = len(taught)
	for _, s := range repo.db.submissions {
		if taught[s.AssignmentID] && s.Status == submission.StatusSubmitted {
			dash.AwaitingGrading++
		}
	}
	return dash, nil
}

func (repo *reportRepository) StudentDashboard(_ context.Context, studentID string, now time.Time) (report.Dashboard, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	classes := make(map[string]bool)
	for _, e := range repo.db.enrollments {
		if e.UserID == studentID {
			classes[e.ClassID] = true
		}
	}

	var dash report.Dashboard
	for _, c := range repo.db.courses {
		if classes[c.ClassID] {
			dash.Courses++
		}
	}
	for _, a := range repo.assignmentsOf(func(c school.Course) bool { return classes[c.ClassID] }) {
		if a.DueAt.Valid && a.DueAt.Time.Before(now) {
			continue
		}
		if sub, ok := repo.submissionOf(studentID, a.ID); ok && !sub.IsDraft() {
			continue
		}
		dash.OpenAssignments++
	}

	var total float64
	for _, s := range repo.db.submissions {
		if s.StudentID != studentID || s.Status != submission.StatusGraded {
			continue
		}
		dash.Graded++
		if asg, ok := repo.db.assignments[s.AssignmentID]; ok && asg.MaxPoints > 0 {
			total += s.Grade.Float64 * 100 / asg.MaxPoints
		}
	}
	if dash.Graded > 0 {
		dash.AverageGrade = null.Float64From(total / float64(dash.Graded))
	}
	return dash, nil
}
