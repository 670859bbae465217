package dummydb

import (
	"context"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/school"
)

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db}
}

// Classes

func (repo *schoolRepository) classNameTaken(cls school.Class) bool {
	for _, c := range repo.db.classes {
		if c.ID != cls.ID && c.Name == cls.Name {
			return true
		}
	}
	return false
}

func (repo *schoolRepository) CreateClass(_ context.Context, cls school.Class) (school.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.classNameTaken(cls) {
		return school.Class{}, school.ErrClassExists
	}
	cls.ID = newID()
	repo.db.classes[cls.ID] = cls
	return cls, nil
}

func (repo *schoolRepository) QueryClasses(_ context.Context, filter *school.CatalogFilter, ordering []core.DBOrdering) ([]school.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	classes := make([]school.Class, 0, len(repo.db.classes))
	for _, c := range repo.db.classes {
		if filter != nil && filter.Search != "" && !containsFold(c.Name, filter.Search) && !containsFold(c.Description, filter.Search) {
			continue
		}
		classes = append(classes, c)
	}
	sortSlice(classes, ordering, "name", map[string]func(i int) string{
		"name":       func(i int) string { return lower(classes[i].Name) },
		"created_at": func(i int) string { return timeKey(classes[i].CreatedAt) },
	})
	return classes, nil
}

func (repo *schoolRepository) GetClass(_ context.Context, id string) (school.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if cls, ok := repo.db.classes[id]; ok {
		return cls, nil
	}
	return school.Class{}, school.ErrClassNotFound
}

func (repo *schoolRepository) UpdateClass(_ context.Context, cls school.Class) (school.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.classes[cls.ID]; !ok {
		return school.Class{}, school.ErrClassNotFound
	}
	if repo.classNameTaken(cls) {
		return school.Class{}, school.ErrClassExists
	}
	repo.db.classes[cls.ID] = cls
	return cls, nil
}

func (repo *schoolRepository) DeleteClass(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.classes[id]; !ok {
		return school.ErrClassNotFound
	}
	delete(repo.db.classes, id)
	for crsID, crs := range repo.db.courses {
		if crs.ClassID == id {
			repo.db.deleteCourse(crsID)
		}
	}
	for eID, e := range repo.db.enrollments {
		if e.ClassID == id {
			delete(repo.db.enrollments, eID)
		}
	}
	return nil
}

// Subjects

func (repo *schoolRepository) subjectConflict(subj school.Subject) error {
	for _, s := range repo.db.subjects {
		if s.ID == subj.ID {
			continue
		}
		if s.Name == subj.Name {
			return school.ErrSubjectNameExists
		}
		if s.Code == subj.Code {
			return school.ErrSubjectCodeExists
		}
	}
	return nil
}

func (repo *schoolRepository) CreateSubject(_ context.Context, subj school.Subject) (school.Subject, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if err := repo.subjectConflict(subj); err != nil {
		return school.Subject{}, err
	}
	subj.ID = newID()
	repo.db.subjects[subj.ID] = subj
	return subj, nil
}

func (repo *schoolRepository) QuerySubjects(_ context.Context, filter *school.CatalogFilter, ordering []core.DBOrdering) ([]school.Subject, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	subjects := make([]school.Subject, 0, len(repo.db.subjects))
	for _, s := range repo.db.subjects {
		if filter != nil && filter.Search != "" && !containsFold(s.Name, filter.Search) && !containsFold(s.Code, filter.Search) {
			continue
		}
		subjects = append(subjects, s)
	}
	sortSlice(subjects, ordering, "name", map[string]func(i int) string{
		"name":       func(i int) string { return lower(subjects[i].Name) },
		"code":       func(i int) string { return subjects[i].Code },
		"created_at": func(i int) string { return timeKey(subjects[i].CreatedAt) },
	})
	return subjects, nil
}

func (repo *schoolRepository) GetSubject(_ context.Context, id string) (school.Subject, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if subj, ok := repo.db.subjects[id]; ok {
		return subj, nil
	}
	return school.Subject{}, school.ErrSubjectNotFound
}

func (repo *schoolRepository) UpdateSubject(_ context.Context, subj school.Subject) (school.Subject, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.subjects[subj.ID]; !ok {
		return school.Subject{}, school.ErrSubjectNotFound
	}
	if err := repo.subjectConflict(subj); err != nil {
		return school.Subject{}, err
	}
	repo.db.subjects[subj.ID] = subj
	return subj, nil
}

func (repo *schoolRepository) DeleteSubject(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.subjects[id]; !ok {
		return school.ErrSubjectNotFound
	}
	delete(repo.db.subjects, id)
	for crsID, crs := range repo.db.courses {
		if crs.SubjectID == id {
			repo.db.deleteCourse(crsID)
		}
	}
	return nil
}

// Courses

// withNames fills the read-only fields of crs; it must be called with the lock held.
func (db *DB) withNames(crs school.Course) school.Course {
	crs.ClassName = db.classes[crs.ClassID].Name
	subj := db.subjects[crs.SubjectID]
	crs.SubjectName, crs.SubjectCode = subj.Name, subj.Code
	crs.TeacherName = db.users[crs.TeacherID].Name
	return crs
}

// deleteCourse cascades to the coursework; it must be called with the lock held.
func (db *DB) deleteCourse(id string) {
	delete(db.courses, id)
	for aID, a := range db.assignments {
		if a.CourseID == id {
			delete(db.assignments, aID)
			for sID, s := range db.submissions {
				if s.AssignmentID == aID {
					delete(db.submissions, sID)
				}
			}
		}
	}
	for mID, m := range db.materials {
		if m.CourseID == id {
			delete(db.materials, mID)
		}
	}
	for eID, e := range db.exams {
		if e.CourseID == id {
			delete(db.exams, eID)
		}
	}
}

func (repo *schoolRepository) CreateCourse(_ context.Context, crs school.Course) (school.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, c := range repo.db.courses {
		if c.ClassID == crs.ClassID && c.SubjectID == crs.SubjectID {
			return school.Course{}, school.ErrCourseExists
		}
	}
	crs.ID = newID()
	repo.db.courses[crs.ID] = crs
	return repo.db.withNames(crs), nil
}

func (repo *schoolRepository) QueryCourses(_ context.Context, filter *school.CourseFilter, ordering []core.DBOrdering) ([]school.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	courses := make([]school.Course, 0, len(repo.db.courses))
	for _, c := range repo.db.courses {
		if filter != nil {
			if filter.ClassID != "" && c.ClassID != filter.ClassID {
				continue
			}
			if filter.SubjectID != "" && c.SubjectID != filter.SubjectID {
				continue
			}
			if filter.TeacherID != "" && c.TeacherID != filter.TeacherID {
				continue
			}
			if filter.StudentID != "" && !repo.isEnrolled(filter.StudentID, c.ClassID) {
				continue
			}
		}
		courses = append(courses, repo.db.withNames(c))
	}
	sortSlice(courses, ordering, "name", map[string]func(i int) string{
		"name":         func(i int) string { return lower(courses[i].ClassName + "\x00" + courses[i].SubjectName) },
		"class_name":   func(i int) string { return lower(courses[i].ClassName) },
		"subject_name": func(i int) string { return lower(courses[i].SubjectName) },
		"subject_code": func(i int) string { return courses[i].SubjectCode },
		"teacher_name": func(i int) string { return lower(courses[i].TeacherName) },
		"created_at":   func(i int) string { return timeKey(courses[i].CreatedAt) },
	})
	return courses, nil
}

func (repo *schoolRepository) GetCourse(_ context.Context, id string) (school.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return repo.db.withNames(crs), nil
	}
	return school.Course{}, school.ErrCourseNotFound
}

func (repo *schoolRepository) UpdateCourse(_ context.Context, crs school.Course) (school.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.courses[crs.ID]
	if !ok {
		return school.Course{}, school.ErrCourseNotFound
	}
	orig.TeacherID = crs.TeacherID
	orig.UpdatedAt = crs.UpdatedAt
	repo.db.courses[crs.ID] = orig
	return repo.db.withNames(orig), nil
}

func (repo *schoolRepository) DeleteCourse(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.courses[id]; !ok {
		return school.ErrCourseNotFound
	}
	repo.db.deleteCourse(id)
	return nil
}

// Enrollments

func (repo *schoolRepository) isEnrolled(userID, classID string) bool {
	for _, e := range repo.db.enrollments {
		if e.UserID == userID && e.ClassID == classID {
			return true
		}
	}
	return false
}

func (repo *schoolRepository) withEnrollmentNames(enr school.Enrollment) school.Enrollment {
	enr.StudentName = repo.db.users[enr.UserID].Name
	enr.ClassName = repo.db.classes[enr.ClassID].Name
	return enr
}

func (repo *schoolRepository) CreateEnrollment(_ context.Context, enr school.Enrollment) (school.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.isEnrolled(enr.UserID, enr.ClassID) {
		return school.Enrollment{}, school.ErrAlreadyEnrolled
	}
	enr.ID = newID()
	repo.db.enrollments[enr.ID] = enr
	return repo.withEnrollmentNames(enr), nil
}

func (repo *schoolRepository) QueryEnrollments(_ context.Context, filter *school.EnrollmentFilter) ([]school.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	enrollments := make([]school.Enrollment, 0)
	for _, e := range repo.db.enrollments {
		if filter != nil {
			if filter.ClassID != "" && e.ClassID != filter.ClassID {
				continue
			}
			if filter.UserID != "" && e.UserID != filter.UserID {
				continue
			}
		}
		enrollments = append(enrollments, repo.withEnrollmentNames(e))
	}
	sortSlice(enrollments, nil, "name", map[string]func(i int) string{
		"name": func(i int) string { return lower(enrollments[i].ClassName + "\x00" + enrollments[i].StudentName) },
	})
	return enrollments, nil
}

func (repo *schoolRepository) GetEnrollment(_ context.Context, id string) (school.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if enr, ok := repo.db.enrollments[id]; ok {
		return repo.withEnrollmentNames(enr), nil
	}
	return school.Enrollment{}, school.ErrEnrollmentNotFound
}

func (repo *schoolRepository) DeleteEnrollment(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.enrollments[id]; !ok {
		return school.ErrEnrollmentNotFound
	}
	delete(repo.db.enrollments, id)
	return nil
}

func (repo *schoolRepository) IsEnrolled(_ context.Context, userID, classID string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.isEnrolled(userID, classID), nil
}
