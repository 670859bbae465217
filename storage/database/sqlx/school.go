package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/school"
)

const (
	courseSelect = `SELECT c.id, c.class_id, c.subject_id, c.teacher_id, c.created_at, c.updated_at,
		cl.name AS class_name, s.name AS subject_name, s.code AS subject_code, u.name AS teacher_name
	FROM course c
		JOIN class cl ON cl.id = c.class_id
		JOIN subject s ON s.id = c.subject_id
		JOIN "user" u ON u.id = c.teacher_id`

	enrollmentSelect = `SELECT e.id, e.user_id, e.class_id, e.created_at, u.name AS student_name, cl.name AS class_name
	FROM enrollment e
		JOIN "user" u ON u.id = e.user_id
		JOIN class cl ON cl.id = e.class_id`
)

var (
	schoolConstraints = map[string]error{
		"class_name_key":            school.ErrClassExists,
		"subject_name_key":          school.ErrSubjectNameExists,
		"subject_code_key":          school.ErrSubjectCodeExists,
		"course_class_subject_key":  school.ErrCourseExists,
		"course_teacher_fkey":       school.ErrTeacherHasCourses,
		"enrollment_user_class_key": school.ErrAlreadyEnrolled,
	}

	catalogOrderingFields = map[string]string{
		"name":       "name",
		"created_at": "created_at",
	}
	subjectOrderingFields = map[string]string{
		"name":       "name",
		"code":       "code",
		"created_at": "created_at",
	}
	courseOrderingFields = map[string]string{
		"class_name":   "cl.name",
		"subject_name": "s.name",
		"subject_code": "s.code",
		"teacher_name": "u.name",
		"created_at":   "c.created_at",
	}
)

type courseRow struct {
	ID          string    `db:"id"`
	ClassID     string    `db:"class_id"`
	SubjectID   string    `db:"subject_id"`
	TeacherID   string    `db:"teacher_id"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
	ClassName   string    `db:"class_name"`
	SubjectName string    `db:"subject_name"`
	SubjectCode string    `db:"subject_code"`
	TeacherName string    `db:"teacher_name"`
}

func (r courseRow) toCourse() school.Course {
	return school.Course{
		ID:          r.ID,
		ClassID:     r.ClassID,
		SubjectID:   r.SubjectID,
		TeacherID:   r.TeacherID,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
		ClassName:   r.ClassName,
		SubjectName: r.SubjectName,
		SubjectCode: r.SubjectCode,
		TeacherName: r.TeacherName,
	}
}

type enrollmentRow struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	ClassID     string    `db:"class_id"`
	CreatedAt   time.Time `db:"created_at"`
	StudentName string    `db:"student_name"`
	ClassName   string    `db:"class_name"`
}

func (r enrollmentRow) toEnrollment() school.Enrollment {
	return school.Enrollment{
		ID:          r.ID,
		UserID:      r.UserID,
		ClassID:     r.ClassID,
		CreatedAt:   r.CreatedAt.UTC(),
		StudentName: r.StudentName,
		ClassName:   r.ClassName,
	}
}

type schoolRepository struct {
	db *sqlx.DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *sqlx.DB) *schoolRepository {
	return &schoolRepository{db: db}
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Classes

func (repo *schoolRepository) CreateClass(ctx context.Context, cls school.Class) (school.Class, error) {
	cls.ID = uuid.New().String()
	q := `INSERT INTO class (id, name, description, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := repo.db.ExecContext(ctx, q, cls.ID, cls.Name, cls.Description, cls.CreatedAt, cls.UpdatedAt); err != nil {
		return school.Class{}, translateErr(err, schoolConstraints)
	}
	return cls, nil
}

func (repo *schoolRepository) QueryClasses(ctx context.Context, filter *school.CatalogFilter, ordering []core.DBOrdering) ([]school.Class, error) {
	w := new(where)
	if filter != nil && filter.Search != "" {
		pattern := likePattern(filter.Search)
		w.add("(name ILIKE ? OR description ILIKE ?)", pattern, pattern)
	}
	q, args, err := w.build(repo.db, "SELECT id, name, description, created_at, updated_at FROM class"+w.String()+
		orderBy(ordering, catalogOrderingFields, "name ASC"))
	if err != nil {
		return nil, err
	}
	classes := make([]school.Class, 0)
	if err = repo.db.SelectContext(ctx, &classes, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	return classes, nil
}

func (repo *schoolRepository) GetClass(ctx context.Context, id string) (school.Class, error) {
	if !isUUID(id) {
		return school.Class{}, school.ErrClassNotFound
	}
	var cls school.Class
	q := "SELECT id, name, description, created_at, updated_at FROM class WHERE id = $1"
	if err := repo.db.GetContext(ctx, &cls, q, id); err != nil {
		return school.Class{}, trapNoRowsErr(err, school.ErrClassNotFound)
	}
	return cls, nil
}

func (repo *schoolRepository) UpdateClass(ctx context.Context, cls school.Class) (school.Class, error) {
	q := "UPDATE class SET name = $2, description = $3, updated_at = $4 WHERE id = $1"
	res, err := repo.db.ExecContext(ctx, q, cls.ID, cls.Name, cls.Description, cls.UpdatedAt)
	if err != nil {
		return school.Class{}, translateErr(err, schoolConstraints)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return school.Class{}, school.ErrClassNotFound
	}
	return cls, nil
}

func (repo *schoolRepository) DeleteClass(ctx context.Context, id string) error {
	if !isUUID(id) {
		return school.ErrClassNotFound
	}
	return deleteByID(ctx, repo.db, "class", id, school.ErrClassNotFound, schoolConstraints)
}

// Subjects

func (repo *schoolRepository) CreateSubject(ctx context.Context, subj school.Subject) (school.Subject, error) {
	subj.ID = uuid.New().String()
	q := `INSERT INTO subject (id, name, code, description, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := repo.db.ExecContext(ctx, q, subj.ID, subj.Name, subj.Code, subj.Description, subj.CreatedAt, subj.UpdatedAt)
	if err != nil {
		return school.Subject{}, translateErr(err, schoolConstraints)
	}
	return subj, nil
}

func (repo *schoolRepository) QuerySubjects(ctx context.Context, filter *school.CatalogFilter, ordering []core.DBOrdering) ([]school.Subject, error) {
	w := new(where)
	if filter != nil && filter.Search != "" {
		pattern := likePattern(filter.Search)
		w.add("(name ILIKE ? OR code ILIKE ?)", pattern, pattern)
	}
	q, args, err := w.build(repo.db, "SELECT id, name, code, description, created_at, updated_at FROM subject"+w.String()+
		orderBy(ordering, subjectOrderingFields, "name ASC"))
	if err != nil {
		return nil, err
	}
	subjects := make([]school.Subject, 0)
	if err = repo.db.SelectContext(ctx, &subjects, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	return subjects, nil
}

func (repo *schoolRepository) GetSubject(ctx context.Context, id string) (school.Subject, error) {
	if !isUUID(id) {
		return school.Subject{}, school.ErrSubjectNotFound
	}
	var subj school.Subject
	q := "SELECT id, name, code, description, created_at, updated_at FROM subject WHERE id = $1"
	if err := repo.db.GetContext(ctx, &subj, q, id); err != nil {
		return school.Subject{}, trapNoRowsErr(err, school.ErrSubjectNotFound)
	}
	return subj, nil
}

func (repo *schoolRepository) UpdateSubject(ctx context.Context, subj school.Subject) (school.Subject, error) {
	q := "UPDATE subject SET name = $2, code = $3, description = $4, updated_at = $5 WHERE id = $1"
	res, err := repo.db.ExecContext(ctx, q, subj.ID, subj.Name, subj.Code, subj.Description, subj.UpdatedAt)
	if err != nil {
		return school.Subject{}, translateErr(err, schoolConstraints)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return school.Subject{}, school.ErrSubjectNotFound
	}
	return subj, nil
}

func (repo *schoolRepository) DeleteSubject(ctx context.Context, id string) error {
	if !isUUID(id) {
		return school.ErrSubjectNotFound
	}
	return deleteByID(ctx, repo.db, "subject", id, school.ErrSubjectNotFound, schoolConstraints)
}

// Courses

func (repo *schoolRepository) CreateCourse(ctx context.Context, crs school.Course) (school.Course, error) {
	crs.ID = uuid.New().String()
	q := `INSERT INTO course (id, class_id, subject_id, teacher_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := repo.db.ExecContext(ctx, q, crs.ID, crs.ClassID, crs.SubjectID, crs.TeacherID, crs.CreatedAt, crs.UpdatedAt)
	if err != nil {
		return school.Course{}, translateErr(err, schoolConstraints)
	}
	return crs, nil
}

func (repo *schoolRepository) QueryCourses(ctx context.Context, filter *school.CourseFilter, ordering []core.DBOrdering) ([]school.Course, error) {
	w := new(where)
	if filter != nil {
		if filter.ClassID != "" {
			w.add("c.class_id = ?", filter.ClassID)
		}
		if filter.SubjectID != "" {
			w.add("c.subject_id = ?", filter.SubjectID)
		}
		if filter.TeacherID != "" {
			w.add("c.teacher_id = ?", filter.TeacherID)
		}
		if filter.StudentID != "" {
			w.add("EXISTS (SELECT 1 FROM enrollment e WHERE e.class_id = c.class_id AND e.user_id = ?)", filter.StudentID)
		}
	}
	q, args, err := w.build(repo.db, courseSelect+w.String()+
		orderBy(ordering, courseOrderingFields, "cl.name ASC, s.name ASC"))
	if err != nil {
		return nil, err
	}
	rows := make([]courseRow, 0)
	if err = repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]school.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, r.toCourse())
	}
	return courses, nil
}

func (repo *schoolRepository) GetCourse(ctx context.Context, id string) (school.Course, error) {
	if !isUUID(id) {
		return school.Course{}, school.ErrCourseNotFound
	}
	var row courseRow
	if err := repo.db.GetContext(ctx, &row, courseSelect+" WHERE c.id = $1", id); err != nil {
		return school.Course{}, trapNoRowsErr(err, school.ErrCourseNotFound)
	}
	return row.toCourse(), nil
}

func (repo *schoolRepository) UpdateCourse(ctx context.Context, crs school.Course) (school.Course, error) {
	q := "UPDATE course SET teacher_id = $2, updated_at = $3 WHERE id = $1"
	res, err := repo.db.ExecContext(ctx, q, crs.ID, crs.TeacherID, crs.UpdatedAt)
	if err != nil {
		return school.Course{}, translateErr(err, schoolConstraints)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return school.Course{}, school.ErrCourseNotFound
	}
	return crs, nil
}

func (repo *schoolRepository) DeleteCourse(ctx context.Context, id string) error {
	if !isUUID(id) {
		return school.ErrCourseNotFound
	}
	return deleteByID(ctx, repo.db, "course", id, school.ErrCourseNotFound, schoolConstraints)
}

// Enrollments

func (repo *schoolRepository) CreateEnrollment(ctx context.Context, enr school.Enrollment) (school.Enrollment, error) {
	enr.ID = uuid.New().String()
	q := `INSERT INTO enrollment (id, user_id, class_id, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := repo.db.ExecContext(ctx, q, enr.ID, enr.UserID, enr.ClassID, enr.CreatedAt); err != nil {
		return school.Enrollment{}, translateErr(err, schoolConstraints)
	}
	return enr, nil
}

func (repo *schoolRepository) QueryEnrollments(ctx context.Context, filter *school.EnrollmentFilter) ([]school.Enrollment, error) {
	w := new(where)
	if filter != nil {
		if filter.ClassID != "" {
			w.add("e.class_id = ?", filter.ClassID)
		}
		if filter.UserID != "" {
			w.add("e.user_id = ?", filter.UserID)
		}
	}
	q, args, err := w.build(repo.db, enrollmentSelect+w.String()+" ORDER BY cl.name ASC, u.name ASC")
	if err != nil {
		return nil, err
	}
	rows := make([]enrollmentRow, 0)
	if err = repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrollments := make([]school.Enrollment, 0, len(rows))
	for _, r := range rows {
		enrollments = append(enrollments, r.toEnrollment())
	}
	return enrollments, nil
}

func (repo *schoolRepository) GetEnrollment(ctx context.Context, id string) (school.Enrollment, error) {
	if !isUUID(id) {
		return school.Enrollment{}, school.ErrEnrollmentNotFound
	}
	var row enrollmentRow
	if err := repo.db.GetContext(ctx, &row, enrollmentSelect+" WHERE e.id = $1", id); err != nil {
		return school.Enrollment{}, trapNoRowsErr(err, school.ErrEnrollmentNotFound)
	}
	return row.toEnrollment(), nil
}

func (repo *schoolRepository) DeleteEnrollment(ctx context.Context, id string) error {
	if !isUUID(id) {
		return school.ErrEnrollmentNotFound
	}
	return deleteByID(ctx, repo.db, "enrollment", id, school.ErrEnrollmentNotFound, schoolConstraints)
}

func (repo *schoolRepository) IsEnrolled(ctx context.Context, userID, classID string) (bool, error) {
	var enrolled bool
	q := "SELECT EXISTS (SELECT 1 FROM enrollment WHERE user_id = $1 AND class_id = $2)"
	if err := repo.db.GetContext(ctx, &enrolled, q, userID, classID); err != nil {
		return false, errors.Wrap(err, "checking enrollment")
	}
	return enrolled, nil
}
