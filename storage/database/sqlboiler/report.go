package boiledrepos

import (
	"context"
	"time"

	"github.com/friendsofgo/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/boil"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/darasa/core/report"
	"github.com/trezcool/darasa/core/user"
)

const (
	gradebookQuery = `SELECT u.id AS student_id, u.name AS student_name,
			a.id AS assignment_id, a.title AS assignment_title, a.max_points,
			s.id AS submission_id, COALESCE(s.status, 'MISSING') AS status, s.grade, COALESCE(s.is_late, false) AS is_late
		FROM course c
			JOIN enrollment e ON e.class_id = c.class_id
			JOIN "user" u ON u.id = e.user_id
			JOIN assignment a ON a.course_id = c.id
			LEFT JOIN submission s ON s.assignment_id = a.id AND s.student_id = u.id
		WHERE c.id = $1
		ORDER BY u.name, a.due_at NULLS LAST, a.created_at`

	adminUsersQuery = `SELECT role, COUNT(*) AS count FROM "user" WHERE is_active GROUP BY role`

	adminCountsQuery = `SELECT
			(SELECT COUNT(*) FROM class) AS classes,
			(SELECT COUNT(*) FROM subject) AS subjects,
			(SELECT COUNT(*) FROM course) AS courses`

	teacherCountsQuery = `SELECT
			(SELECT COUNT(*) FROM course WHERE teacher_id = $1) AS courses,
			(SELECT COUNT(*) FROM assignment a JOIN course c ON c.id = a.course_id WHERE c.teacher_id = $1) AS assignments,
			(SELECT COUNT(*) FROM submission s
				JOIN assignment a ON a.id = s.assignment_id
				JOIN course c ON c.id = a.course_id
				WHERE c.teacher_id = $1 AND s.status = 'SUBMITTED') AS awaiting_grading`

	studentCountsQuery = `SELECT
			(SELECT COUNT(*) FROM course c JOIN enrollment e ON e.class_id = c.class_id WHERE e.user_id = $1) AS courses,
			(SELECT COUNT(*) FROM assignment a
				JOIN course c ON c.id = a.course_id
				JOIN enrollment e ON e.class_id = c.class_id
				WHERE e.user_id = $1 AND (a.due_at IS NULL OR a.due_at >= $2)
					AND NOT EXISTS (SELECT 1 FROM submission s
						WHERE s.assignment_id = a.id AND s.student_id = $1 AND s.status <> 'DRAFT')) AS open_assignments,
			(SELECT COUNT(*) FROM submission WHERE student_id = $1 AND status = 'GRADED') AS graded,
			(SELECT AVG(s.grade * 100 / a.max_points) FROM submission s
				JOIN assignment a ON a.id = s.assignment_id
				WHERE s.student_id = $1 AND s.status = 'GRADED') AS average_grade`
)

type (
	roleCount struct {
		Role  string `boil:"role"`
		Count int    `boil:"count"`
	}

	adminCounts struct {
		Classes  int `boil:"classes"`
		Subjects int `boil:"subjects"`
		Courses  int `boil:"courses"`
	}

	teacherCounts struct {
		Courses         int `boil:"courses"`
		Assignments     int `boil:"assignments"`
		AwaitingGrading int `boil:"awaiting_grading"`
	}

	studentCounts struct {
		Courses         int          `boil:"courses"`
		OpenAssignments int          `boil:"open_assignments"`
		Graded          int          `boil:"graded"`
		AverageGrade    null.Float64 `boil:"average_grade"`
	}
)

type reportRepository struct {
	exec boil.ContextExecutor
}

var _ report.Repository = (*reportRepository)(nil) // interface compliance check

// NewReportRepository runs the report queries on exec (a *sql.DB or *sqlx.DB).
func NewReportRepository(exec boil.ContextExecutor) *reportRepository {
	return &reportRepository{exec: exec}
}

func (repo *reportRepository) Gradebook(ctx context.Context, courseID string) ([]report.GradebookEntry, error) {
	entries := make([]report.GradebookEntry, 0)
	if err := queries.Raw(gradebookQuery, courseID).Bind(ctx, repo.exec, &entries); err != nil {
		return nil, errors.Wrap(err, "querying gradebook")
	}
	return entries, nil
}

func (repo *reportRepository) AdminDashboard(ctx context.Context) (report.Dashboard, error) {
	var roles []*roleCount
	if err := queries.Raw(adminUsersQuery).Bind(ctx, repo.exec, &roles); err != nil {
		return report.Dashboard{}, errors.Wrap(err, "counting users")
	}
	var counts adminCounts
	if err := queries.Raw(adminCountsQuery).Bind(ctx, repo.exec, &counts); err != nil {
		return report.Dashboard{}, errors.Wrap(err, "counting catalogue")
	}

	users := make(map[string]int, len(user.AllRoles))
	for _, r := range user.AllRoles {
		users[r] = 0
	}
	for _, rc := range roles {
		users[rc.Role] = rc.Count
	}
	return report.Dashboard{
		Users:    users,
		Classes:  counts.Classes,
		Subjects: counts.Subjects,
		Courses:  counts.Courses,
	}, nil
}

func (repo *reportRepository) TeacherDashboard(ctx context.Context, teacherID string) (report.Dashboard, error) {
	var counts teacherCounts
	if err := queries.Raw(teacherCountsQuery, teacherID).Bind(ctx, repo.exec, &counts); err != nil {
		return report.Dashboard{}, errors.Wrap(err, "counting teacher work")
	}
	return report.Dashboard{
		Courses:         counts.Courses,
		Assignments:     counts.Assignments,
		AwaitingGrading: counts.AwaitingGrading,
	}, nil
}

func (repo *reportRepository) StudentDashboard(ctx context.Context, studentID string, now time.Time) (report.Dashboard, error) {
	var counts studentCounts
	if err := queries.Raw(studentCountsQuery, studentID, now).Bind(ctx, repo.exec, &counts); err != nil {
		return report.Dashboard{}, errors.Wrap(err, "counting student work")
	}
	return report.Dashboard{
		Courses:         counts.Courses,
		OpenAssignments: counts.OpenAssignments,
		Graded:          counts.Graded,
		AverageGrade:    counts.AverageGrade,
	}, nil
}
