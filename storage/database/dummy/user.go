package dummydb

import (
	"context"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func isExcluded(usr user.User, excludedUsers []user.User) bool {
	for _, u := range excludedUsers {
		if u.ID == usr.ID {
			return true
		}
	}
	return false
}

// uniquenessErr must be called with the lock held.
func (repo *userRepository) uniquenessErr(username, email string, excludedUsers []user.User) error {
	for _, usr := range repo.db.users {
		if isExcluded(usr, excludedUsers) {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CheckUniqueness(_ context.Context, username, email string, excludedUsers []user.User) error {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.uniquenessErr(username, email, excludedUsers)
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if err := repo.uniquenessErr(usr.Username, usr.Email, nil); err != nil {
		return user.User{}, err
	}
	if usr.ID == "" {
		usr.ID = newID()
	}
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := make([]user.User, 0, len(repo.db.users))
	for _, u := range repo.db.users {
		if filter != nil {
			if filter.Search != "" &&
				!containsFold(u.Name, filter.Search) &&
				!containsFold(u.Username, filter.Search) &&
				!containsFold(u.Email, filter.Search) {
				continue
			}
			if len(filter.Roles) > 0 && !u.HasRole(filter.Roles...) {
				continue
			}
			if filter.IsActive != nil && u.IsActive != *filter.IsActive {
				continue
			}
			if filter.ClassID != "" && !repo.isEnrolled(u.ID, filter.ClassID) {
				continue
			}
			if !filter.CreatedFrom.IsZero() && u.CreatedAt.Before(filter.CreatedFrom.UTC()) {
				continue
			}
			if !filter.CreatedTo.IsZero() && u.CreatedAt.After(filter.CreatedTo.UTC()) {
				continue
			}
		}
		users = append(users, u)
	}

	sortSlice(users, ordering, "name", map[string]func(i int) string{
		"name":       func(i int) string { return lower(users[i].Name) },
		"username":   func(i int) string { return users[i].Username },
		"email":      func(i int) string { return users[i].Email },
		"role":       func(i int) string { return users[i].Role },
		"created_at": func(i int) string { return timeKey(users[i].CreatedAt) },
		"last_login": func(i int) string { return nullTimeKey(users[i].LastLogin) },
	})
	return users, nil
}

func (repo *userRepository) isEnrolled(userID, classID string) bool {
	for _, e := range repo.db.enrollments {
		if e.UserID == userID && e.ClassID == classID {
			return true
		}
	}
	return false
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.users[filter.ID]; ok {
			return usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	for _, usr := range repo.db.users {
		switch {
		case filter.Username != "":
			if usr.Username == filter.Username {
				return usr, nil
			}
		case filter.Email != "":
			if usr.Email == filter.Email {
				return usr, nil
			}
		case len(filter.UsernameOrEmail) > 0:
			for _, v := range filter.UsernameOrEmail {
				if v != "" && (usr.Username == v || usr.Email == v) {
					return usr, nil
				}
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	if err := repo.uniquenessErr(usr.Username, usr.Email, []user.User{usr}); err != nil {
		return user.User{}, err
	}
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids []string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// teachers keep their courses
	for _, id := range ids {
		for _, crs := range repo.db.courses {
			if crs.TeacherID == id {
				return 0, school.ErrTeacherHasCourses
			}
		}
	}

	deleted := 0
	for _, id := range ids {
		if _, ok := repo.db.users[id]; !ok {
			continue
		}
		delete(repo.db.users, id)
		deleted++

		for eID, e := range repo.db.enrollments {
			if e.UserID == id {
				delete(repo.db.enrollments, eID)
			}
		}
		for sID, s := range repo.db.submissions {
			if s.StudentID == id {
				delete(repo.db.submissions, sID)
			}
		}
		repo.db.nullifyAuthor(id)
	}
	return deleted, nil
}

// nullifyAuthor must be called with the lock held.
func (db *DB) nullifyAuthor(userID string) {
	for id, a := range db.assignments {
		if a.CreatedBy.String == userID {
			a.CreatedBy.Valid, a.CreatedBy.String = false, ""
			db.assignments[id] = a
		}
	}
	for id, m := range db.materials {
		if m.CreatedBy.String == userID {
			m.CreatedBy.Valid, m.CreatedBy.String = false, ""
			db.materials[id] = m
		}
	}
	for id, e := range db.exams {
		if e.CreatedBy.String == userID {
			e.CreatedBy.Valid, e.CreatedBy.String = false, ""
			db.exams[id] = e
		}
	}
	for id, s := range db.submissions {
		if s.GradedBy.String == userID {
			s.GradedBy.Valid, s.GradedBy.String = false, ""
			db.submissions[id] = s
		}
	}
}

func (repo *userRepository) CountUsers(_ context.Context, role string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	cnt := 0
	for _, u := range repo.db.users {
		if role == "" || u.Role == role {
			cnt++
		}
	}
	return cnt, nil
}
