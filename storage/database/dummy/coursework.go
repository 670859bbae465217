package dummydb

import (
	"context"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/coursework"
)

type courseworkRepository struct {
	db *DB
}

var _ coursework.Repository = (*courseworkRepository)(nil) // interface compliance check

func NewCourseworkRepository(db *DB) coursework.Repository {
	return &courseworkRepository{db: db}
}

func inCourses(filter *coursework.QueryFilter, courseID string) bool {
	return filter == nil || len(filter.CourseIDs) == 0 || core.ContainsString(filter.CourseIDs, courseID)
}

func inWindow(filter *coursework.QueryFilter, at string) bool {
	if filter == nil {
		return true
	}
	if !filter.From.IsZero() && (at == "" || at < timeKey(filter.From)) {
		return false
	}
	if !filter.To.IsZero() && (at == "" || at > timeKey(filter.To)) {
		return false
	}
	return true
}

// Assignments

func (repo *courseworkRepository) CreateAssignment(_ context.Context, asg coursework.Assignment) (coursework.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.courses[asg.CourseID]; !ok {
		return coursework.Assignment{}, core.NewConflictError("course does not exist")
	}
	asg.ID = newID()
	repo.db.assignments[asg.ID] = asg
	return asg, nil
}

func (repo *courseworkRepository) QueryAssignments(_ context.Context, filter *coursework.QueryFilter, ordering []core.DBOrdering) ([]coursework.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	assignments := make([]coursework.Assignment, 0)
	for _, a := range repo.db.assignments {
		due := ""
		if a.DueAt.Valid {
			due = timeKey(a.DueAt.Time)
		}
		if !inCourses(filter, a.CourseID) || !inWindow(filter, due) {
			continue
		}
		assignments = append(assignments, a)
	}
	sortSlice(assignments, ordering, "created_at", map[string]func(i int) string{
		"title":      func(i int) string { return lower(assignments[i].Title) },
		"due_at":     func(i int) string { return nullTimeKey(assignments[i].DueAt) },
		"created_at": func(i int) string { return timeKey(assignments[i].CreatedAt) },
	})
	return assignments, nil
}

func (repo *courseworkRepository) GetAssignment(_ context.Context, id string) (coursework.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if asg, ok := repo.db.assignments[id]; ok {
		return asg, nil
	}
	return coursework.Assignment{}, coursework.ErrAssignmentNotFound
}

func (repo *courseworkRepository) UpdateAssignment(_ context.Context, asg coursework.Assignment) (coursework.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.assignments[asg.ID]; !ok {
		return coursework.Assignment{}, coursework.ErrAssignmentNotFound
	}
	repo.db.assignments[asg.ID] = asg
	return asg, nil
}

func (repo *courseworkRepository) DeleteAssignment(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.assignments[id]; !ok {
		return coursework.ErrAssignmentNotFound
	}
	delete(repo.db.assignments, id)
	for sID, s := range repo.db.submissions {
		if s.AssignmentID == id {
			delete(repo.db.submissions, sID)
		}
	}
	return nil
}

// Materials

func copyMaterial(mat coursework.Material) coursework.Material {
	contents := make([]coursework.MaterialContent, len(mat.Contents))
	copy(contents, mat.Contents)
	mat.Contents = contents
	return mat
}

func (repo *courseworkRepository) setContents(mat *coursework.Material) {
	for i := range mat.Contents {
		mat.Contents[i].ID = newID()
		mat.Contents[i].MaterialID = mat.ID
		mat.Contents[i].Position = i
	}
}

func (repo *courseworkRepository) CreateMaterial(_ context.Context, mat coursework.Material) (coursework.Material, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.courses[mat.CourseID]; !ok {
		return coursework.Material{}, core.NewConflictError("course does not exist")
	}
	mat = copyMaterial(mat)
	mat.ID = newID()
	repo.setContents(&mat)
	repo.db.materials[mat.ID] = mat
	return copyMaterial(mat), nil
}

func (repo *courseworkRepository) QueryMaterials(_ context.Context, filter *coursework.QueryFilter, ordering []core.DBOrdering) ([]coursework.Material, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	materials := make([]coursework.Material, 0)
	for _, m := range repo.db.materials {
		if inCourses(filter, m.CourseID) {
			materials = append(materials, copyMaterial(m))
		}
	}
	sortSlice(materials, ordering, "created_at", map[string]func(i int) string{
		"title":      func(i int) string { return lower(materials[i].Title) },
		"created_at": func(i int) string { return timeKey(materials[i].CreatedAt) },
	})
	return materials, nil
}

func (repo *courseworkRepository) GetMaterial(_ context.Context, id string) (coursework.Material, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if mat, ok := repo.db.materials[id]; ok {
		return copyMaterial(mat), nil
	}
	return coursework.Material{}, coursework.ErrMaterialNotFound
}

func (repo *courseworkRepository) UpdateMaterial(_ context.Context, mat coursework.Material) (coursework.Material, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.materials[mat.ID]; !ok {
		return coursework.Material{}, coursework.ErrMaterialNotFound
	}
	mat = copyMaterial(mat)
	repo.setContents(&mat)
	repo.db.materials[mat.ID] = mat
	return copyMaterial(mat), nil
}

func (repo *courseworkRepository) DeleteMaterial(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.materials[id]; !ok {
		return coursework.ErrMaterialNotFound
	}
	delete(repo.db.materials, id)
	return nil
}

// Exams

func (repo *courseworkRepository) CreateExam(_ context.Context, exam coursework.Exam) (coursework.Exam, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.courses[exam.CourseID]; !ok {
		return coursework.Exam{}, core.NewConflictError("course does not exist")
	}
	exam.ID = newID()
	repo.db.exams[exam.ID] = exam
	return exam, nil
}

func (repo *courseworkRepository) QueryExams(_ context.Context, filter *coursework.QueryFilter, ordering []core.DBOrdering) ([]coursework.Exam, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	exams := make([]coursework.Exam, 0)
	for _, e := range repo.db.exams {
		if inCourses(filter, e.CourseID) && inWindow(filter, timeKey(e.ScheduledAt)) {
			exams = append(exams, e)
		}
	}
	sortSlice(exams, ordering, "scheduled_at", map[string]func(i int) string{
		"title":        func(i int) string { return lower(exams[i].Title) },
		"scheduled_at": func(i int) string { return timeKey(exams[i].ScheduledAt) },
		"created_at":   func(i int) string { return timeKey(exams[i].CreatedAt) },
	})
	return exams, nil
}

func (repo *courseworkRepository) GetExam(_ context.Context, id string) (coursework.Exam, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if exam, ok := repo.db.exams[id]; ok {
		return exam, nil
	}
	return coursework.Exam{}, coursework.ErrExamNotFound
}

func (repo *courseworkRepository) UpdateExam(_ context.Context, exam coursework.Exam) (coursework.Exam, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.exams[exam.ID]; !ok {
		return coursework.Exam{}, coursework.ErrExamNotFound
	}
	repo.db.exams[exam.ID] = exam
	return exam, nil
}

func (repo *courseworkRepository) DeleteExam(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.exams[id]; !ok {
		return coursework.ErrExamNotFound
	}
	delete(repo.db.exams, id)
	return nil
}
