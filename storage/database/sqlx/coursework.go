package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/coursework"
)

const (
	assignmentColumns = "id, course_id, title, description, due_at, max_points, created_by, created_at, updated_at"
	materialColumns   = "id, course_id, title, description, created_by, created_at, updated_at"
	contentColumns    = "id, material_id, position, kind, title, body, url"
	examColumns       = `id, course_id, title, description, scheduled_at, duration_minutes, max_points, location,
		created_by, created_at, updated_at`
)

var (
	assignmentOrderingFields = map[string]string{
		"title":      "title",
		"due_at":     "due_at",
		"created_at": "created_at",
	}
	materialOrderingFields = map[string]string{
		"title":      "title",
		"created_at": "created_at",
	}
	examOrderingFields = map[string]string{
		"title":        "title",
		"scheduled_at": "scheduled_at",
		"created_at":   "created_at",
	}
)

type assignmentRow struct {
	ID          string      `db:"id"`
	CourseID    string      `db:"course_id"`
	Title       string      `db:"title"`
	Description string      `db:"description"`
	DueAt       null.Time   `db:"due_at"`
	MaxPoints   float64     `db:"max_points"`
	CreatedBy   null.String `db:"created_by"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func toAssignmentRow(a coursework.Assignment) assignmentRow {
	return assignmentRow(a)
}

func (r assignmentRow) toAssignment() coursework.Assignment {
	a := coursework.Assignment(r)
	a.CreatedAt, a.UpdatedAt = a.CreatedAt.UTC(), a.UpdatedAt.UTC()
	if a.DueAt.Valid {
		a.DueAt.Time = a.DueAt.Time.UTC()
	}
	return a
}

type materialRow struct {
	ID          string      `db:"id"`
	CourseID    string      `db:"course_id"`
	Title       string      `db:"title"`
	Description string      `db:"description"`
	CreatedBy   null.String `db:"created_by"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func (r materialRow) toMaterial() coursework.Material {
	return coursework.Material{
		ID:          r.ID,
		CourseID:    r.CourseID,
		Title:       r.Title,
		Description: r.Description,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
		Contents:    make([]coursework.MaterialContent, 0),
	}
}

type contentRow struct {
	ID         string `db:"id"`
	MaterialID string `db:"material_id"`
	Position   int    `db:"position"`
	Kind       string `db:"kind"`
	Title      string `db:"title"`
	Body       string `db:"body"`
	URL        string `db:"url"`
}

type examRow struct {
	ID              string      `db:"id"`
	CourseID        string      `db:"course_id"`
	Title           string      `db:"title"`
	Description     string      `db:"description"`
	ScheduledAt     time.Time   `db:"scheduled_at"`
	DurationMinutes int         `db:"duration_minutes"`
	MaxPoints       float64     `db:"max_points"`
	Location        string      `db:"location"`
	CreatedBy       null.String `db:"created_by"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

func (r examRow) toExam() coursework.Exam {
	e := coursework.Exam(r)
	e.ScheduledAt, e.CreatedAt, e.UpdatedAt = e.ScheduledAt.UTC(), e.CreatedAt.UTC(), e.UpdatedAt.UTC()
	return e
}

type courseworkRepository struct {
	db *sqlx.DB
}

var _ coursework.Repository = (*courseworkRepository)(nil) // interface compliance check

func NewCourseworkRepository(db *sqlx.DB) *courseworkRepository {
	return &courseworkRepository{db: db}
}

// courseWhere filters on courses, and on the [From, To] window of col when set.
func courseWhere(filter *coursework.QueryFilter, col string) *where {
	w := new(where)
	if filter == nil {
		return w
	}
	if len(filter.CourseIDs) > 0 {
		w.addIn("course_id", filter.CourseIDs)
	}
	if col != "" {
		if !filter.From.IsZero() {
			w.add(col+" >= ?", filter.From.UTC())
		}
		if !filter.To.IsZero() {
			w.add(col+" <= ?", filter.To.UTC())
		}
	}
	return w
}

// Assignments

func (repo *courseworkRepository) CreateAssignment(ctx context.Context, asg coursework.Assignment) (coursework.Assignment, error) {
	asg.ID = uuid.New().String()
	q := "INSERT INTO assignment (" + assignmentColumns + `)
		VALUES (:id, :course_id, :title, :description, :due_at, :max_points, :created_by, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, toAssignmentRow(asg)); err != nil {
		return coursework.Assignment{}, translateErr(err, nil)
	}
	return asg, nil
}

func (repo *courseworkRepository) QueryAssignments(ctx context.Context, filter *coursework.QueryFilter, ordering []core.DBOrdering) ([]coursework.Assignment, error) {
	w := courseWhere(filter, "due_at")
	q, args, err := w.build(repo.db, "SELECT "+assignmentColumns+" FROM assignment"+w.String()+
		orderBy(ordering, assignmentOrderingFields, "due_at ASC NULLS LAST, created_at ASC"))
	if err != nil {
		return nil, err
	}
	rows := make([]assignmentRow, 0)
	if err = repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	assignments := make([]coursework.Assignment, 0, len(rows))
	for _, r := range rows {
		assignments = append(assignments, r.toAssignment())
	}
	return assignments, nil
}

func (repo *courseworkRepository) GetAssignment(ctx context.Context, id string) (coursework.Assignment, error) {
	if !isUUID(id) {
		return coursework.Assignment{}, coursework.ErrAssignmentNotFound
	}
	var row assignmentRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+assignmentColumns+" FROM assignment WHERE id = $1", id); err != nil {
		return coursework.Assignment{}, trapNoRowsErr(err, coursework.ErrAssignmentNotFound)
	}
	return row.toAssignment(), nil
}

func (repo *courseworkRepository) UpdateAssignment(ctx context.Context, asg coursework.Assignment) (coursework.Assignment, error) {
	q := `UPDATE assignment SET title = :title, description = :description, due_at = :due_at,
		max_points = :max_points, updated_at = :updated_at WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toAssignmentRow(asg))
	if err != nil {
		return coursework.Assignment{}, translateErr(err, nil)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return coursework.Assignment{}, coursework.ErrAssignmentNotFound
	}
	return asg, nil
}

func (repo *courseworkRepository) DeleteAssignment(ctx context.Context, id string) error {
	if !isUUID(id) {
		return coursework.ErrAssignmentNotFound
	}
	return deleteByID(ctx, repo.db, "assignment", id, coursework.ErrAssignmentNotFound, nil)
}

// Materials

func insertContents(ctx context.Context, tx *sqlx.Tx, mat *coursework.Material) error {
	for i := range mat.Contents {
		cnt := &mat.Contents[i]
		cnt.ID = uuid.New().String()
		cnt.MaterialID = mat.ID
		cnt.Position = i
		q := "INSERT INTO material_content (" + contentColumns + ") VALUES ($1, $2, $3, $4, $5, $6, $7)"
		if _, err := tx.ExecContext(ctx, q, cnt.ID, cnt.MaterialID, cnt.Position, cnt.Kind, cnt.Title, cnt.Body, cnt.URL); err != nil {
			return errors.Wrap(err, "inserting material content")
		}
	}
	return nil
}

// loadContents fills the contents of materials, in position order.
func (repo *courseworkRepository) loadContents(ctx context.Context, materials []coursework.Material) error {
	if len(materials) == 0 {
		return nil
	}
	idx := make(map[string]int, len(materials))
	ids := make([]string, 0, len(materials))
	for i, m := range materials {
		idx[m.ID] = i
		ids = append(ids, m.ID)
	}

	q, args, err := sqlx.In("SELECT "+contentColumns+" FROM material_content WHERE material_id IN (?) ORDER BY material_id, position", ids)
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	rows := make([]contentRow, 0)
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "querying material contents")
	}
	for _, r := range rows {
		m := &materials[idx[r.MaterialID]]
		m.Contents = append(m.Contents, coursework.MaterialContent(r))
	}
	return nil
}

func (repo *courseworkRepository) CreateMaterial(ctx context.Context, mat coursework.Material) (coursework.Material, error) {
	mat.ID = uuid.New().String()
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := "INSERT INTO material (" + materialColumns + ") VALUES ($1, $2, $3, $4, $5, $6, $7)"
		_, err := tx.ExecContext(ctx, q, mat.ID, mat.CourseID, mat.Title, mat.Description, mat.CreatedBy, mat.CreatedAt, mat.UpdatedAt)
		if err != nil {
			return translateErr(err, nil)
		}
		return insertContents(ctx, tx, &mat)
	})
	if err != nil {
		return coursework.Material{}, err
	}
	if mat.Contents == nil {
		mat.Contents = make([]coursework.MaterialContent, 0)
	}
	return mat, nil
}

func (repo *courseworkRepository) QueryMaterials(ctx context.Context, filter *coursework.QueryFilter, ordering []core.DBOrdering) ([]coursework.Material, error) {
	w := courseWhere(filter, "")
	q, args, err := w.build(repo.db, "SELECT "+materialColumns+" FROM material"+w.String()+
		orderBy(ordering, materialOrderingFields, "created_at ASC"))
	if err != nil {
		return nil, err
	}
	rows := make([]materialRow, 0)
	if err = repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying materials")
	}
	materials := make([]coursework.Material, 0, len(rows))
	for _, r := range rows {
		materials = append(materials, r.toMaterial())
	}
	if err = repo.loadContents(ctx, materials); err != nil {
		return nil, err
	}
	return materials, nil
}

func (repo *courseworkRepository) GetMaterial(ctx context.Context, id string) (coursework.Material, error) {
	if !isUUID(id) {
		return coursework.Material{}, coursework.ErrMaterialNotFound
	}
	var row materialRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+materialColumns+" FROM material WHERE id = $1", id); err != nil {
		return coursework.Material{}, trapNoRowsErr(err, coursework.ErrMaterialNotFound)
	}
	materials := []coursework.Material{row.toMaterial()}
	if err := repo.loadContents(ctx, materials); err != nil {
		return coursework.Material{}, err
	}
	return materials[0], nil
}

func (repo *courseworkRepository) UpdateMaterial(ctx context.Context, mat coursework.Material) (coursework.Material, error) {
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := "UPDATE material SET title = $2, description = $3, updated_at = $4 WHERE id = $1"
		res, err := tx.ExecContext(ctx, q, mat.ID, mat.Title, mat.Description, mat.UpdatedAt)
		if err != nil {
			return translateErr(err, nil)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return coursework.ErrMaterialNotFound
		}
		if _, err = tx.ExecContext(ctx, "DELETE FROM material_content WHERE material_id = $1", mat.ID); err != nil {
			return errors.Wrap(err, "deleting material contents")
		}
		return insertContents(ctx, tx, &mat)
	})
	if err != nil {
		return coursework.Material{}, err
	}
	return mat, nil
}

func (repo *courseworkRepository) DeleteMaterial(ctx context.Context, id string) error {
	if !isUUID(id) {
		return coursework.ErrMaterialNotFound
	}
	return deleteByID(ctx, repo.db, "material", id, coursework.ErrMaterialNotFound, nil)
}

// Exams

func (repo *courseworkRepository) CreateExam(ctx context.Context, exam coursework.Exam) (coursework.Exam, error) {
	exam.ID = uuid.New().String()
	q := "INSERT INTO exam (" + examColumns + `) VALUES (:id, :course_id, :title, :description, :scheduled_at,
		:duration_minutes, :max_points, :location, :created_by, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, examRow(exam)); err != nil {
		return coursework.Exam{}, translateErr(err, nil)
	}
	return exam, nil
}

func (repo *courseworkRepository) QueryExams(ctx context.Context, filter *coursework.QueryFilter, ordering []core.DBOrdering) ([]coursework.Exam, error) {
	w := courseWhere(filter, "scheduled_at")
	q, args, err := w.build(repo.db, "SELECT "+examColumns+" FROM exam"+w.String()+
		orderBy(ordering, examOrderingFields, "scheduled_at ASC"))
	if err != nil {
		return nil, err
	}
	rows := make([]examRow, 0)
	if err = repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying exams")
	}
	exams := make([]coursework.Exam, 0, len(rows))
	for _, r := range rows {
		exams = append(exams, r.toExam())
	}
	return exams, nil
}

func (repo *courseworkRepository) GetExam(ctx context.Context, id string) (coursework.Exam, error) {
	if !isUUID(id) {
		return coursework.Exam{}, coursework.ErrExamNotFound
	}
	var row examRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+examColumns+" FROM exam WHERE id = $1", id); err != nil {
		return coursework.Exam{}, trapNoRowsErr(err, coursework.ErrExamNotFound)
	}
	return row.toExam(), nil
}

func (repo *courseworkRepository) UpdateExam(ctx context.Context, exam coursework.Exam) (coursework.Exam, error) {
	q := `UPDATE exam SET title = :title, description = :description, scheduled_at = :scheduled_at,
		duration_minutes = :duration_minutes, max_points = :max_points, location = :location, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, examRow(exam))
	if err != nil {
		return coursework.Exam{}, translateErr(err, nil)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return coursework.Exam{}, coursework.ErrExamNotFound
	}
	return exam, nil
}

func (repo *courseworkRepository) DeleteExam(ctx context.Context, id string) error {
	if !isUUID(id) {
		return coursework.ErrExamNotFound
	}
	return deleteByID(ctx, repo.db, "exam", id, coursework.ErrExamNotFound, nil)
}
