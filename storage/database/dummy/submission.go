package dummydb

import (
	"context"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/submission"
	"github.com/trezcool/darasa/core/upload"
)

type submissionRepository struct {
	db *DB
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db *DB) submission.Repository {
	return &submissionRepository{db: db}
}

// view fills the read-only fields of sub; it must be called with the lock held.
func (repo *submissionRepository) view(sub submission.Submission) submission.Submission {
	sub.StudentName = repo.db.users[sub.StudentID].Name
	sub.AssignmentTitle = repo.db.assignments[sub.AssignmentID].Title
	sub.BackupFileSize = len(sub.BackupFile)
	return sub
}

func (repo *submissionRepository) GetSubmission(_ context.Context, id string) (submission.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sub, ok := repo.db.submissions[id]; ok {
		return repo.view(sub), nil
	}
	return submission.Submission{}, submission.ErrNotFound
}

func (repo *submissionRepository) find(studentID, assignmentID string) (submission.Submission, bool) {
	for _, s := range repo.db.submissions {
		if s.StudentID == studentID && s.AssignmentID == assignmentID {
			return s, true
		}
	}
	return submission.Submission{}, false
}

func (repo *submissionRepository) GetStudentSubmission(_ context.Context, studentID, assignmentID string) (submission.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sub, ok := repo.find(studentID, assignmentID); ok {
		return repo.view(sub), nil
	}
	return submission.Submission{}, submission.ErrNotFound
}

func (repo *submissionRepository) QuerySubmissions(_ context.Context, filter *submission.QueryFilter, ordering []core.DBOrdering) ([]submission.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	subs := make([]submission.Submission, 0)
	for _, s := range repo.db.submissions {
		if filter != nil {
			if filter.AssignmentID != "" && s.AssignmentID != filter.AssignmentID {
				continue
			}
			if filter.StudentID != "" && s.StudentID != filter.StudentID {
				continue
			}
			courseID := repo.db.assignments[s.AssignmentID].CourseID
			if filter.CourseID != "" && courseID != filter.CourseID {
				continue
			}
			if filter.TeacherID != "" && repo.db.courses[courseID].TeacherID != filter.TeacherID {
				continue
			}
			if len(filter.Statuses) > 0 && !core.ContainsString(filter.Statuses, s.Status) {
				continue
			}
		}
		s = repo.view(s)
		s.BackupFile = nil
		subs = append(subs, s)
	}
	sortSlice(subs, ordering, "student_name", map[string]func(i int) string{
		"student_name": func(i int) string { return lower(subs[i].StudentName) },
		"status":       func(i int) string { return subs[i].Status },
		"grade":        func(i int) string { return nullFloatKey(subs[i].Grade) },
		"submitted_at": func(i int) string { return nullTimeKey(subs[i].SubmittedAt) },
		"created_at":   func(i int) string { return timeKey(subs[i].CreatedAt) },
		"updated_at":   func(i int) string { return timeKey(subs[i].UpdatedAt) },
	})
	return subs, nil
}

func (repo *submissionRepository) UpsertSubmission(_ context.Context, sub submission.Submission) (submission.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.assignments[sub.AssignmentID]; !ok {
		return submission.Submission{}, core.NewConflictError("assignment does not exist")
	}
	if existing, ok := repo.find(sub.StudentID, sub.AssignmentID); ok {
		if !existing.IsDraft() {
			return submission.Submission{}, submission.ErrAlreadySubmitted
		}
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
	} else {
		sub.ID = newID()
	}
	repo.db.submissions[sub.ID] = sub
	return repo.view(sub), nil
}

func (repo *submissionRepository) GradeSubmission(_ context.Context, sub submission.Submission) (submission.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	existing, ok := repo.db.submissions[sub.ID]
	if !ok {
		return submission.Submission{}, submission.ErrNotFound
	}
	if existing.IsDraft() {
		return submission.Submission{}, submission.ErrNotGradable
	}
	existing.Status = submission.StatusGraded
	existing.Grade = sub.Grade
	existing.Feedback = sub.Feedback
	existing.GradedAt = sub.GradedAt
	existing.GradedBy = sub.GradedBy
	existing.UpdatedAt = sub.UpdatedAt
	repo.db.submissions[sub.ID] = existing
	return repo.view(existing), nil
}

type uploadRepository struct {
	db *DB
}

var _ upload.Repository = (*uploadRepository)(nil) // interface compliance check

func NewUploadRepository(db *DB) *uploadRepository {
	return &uploadRepository{db: db}
}

func (repo *uploadRepository) ReferencedKeys(_ context.Context, keys []string) ([]string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	referenced := make([]string, 0)
	for _, key := range keys {
		if repo.isReferenced(key) {
			referenced = append(referenced, key)
		}
	}
	return referenced, nil
}

// isReferenced must be called with the lock held.
func (repo *uploadRepository) isReferenced(key string) bool {
	for _, s := range repo.db.submissions {
		if s.FileURL.Valid && upload.RefersTo(s.FileURL.String, key) {
			return true
		}
	}
	for _, m := range repo.db.materials {
		for _, c := range m.Contents {
			if upload.RefersTo(c.URL, key) {
				return true
			}
		}
	}
	return false
}
