package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/user"
)

const userColumns = `u.id, u.name, u.username, u.email, u.role, u.is_active, u.password_hash,
	u.created_at, u.updated_at, u.last_login`

var (
	userConstraints = map[string]error{
		"user_username_key": user.ErrUsernameExists,
		"user_email_key":    user.ErrEmailExists,
		// teachers keep their courses
		"course_teacher_fkey": school.ErrTeacherHasCourses,
	}

	userOrderingFields = map[string]string{
		"name":       "u.name",
		"username":   "u.username",
		"email":      "u.email",
		"role":       "u.role",
		"created_at": "u.created_at",
		"last_login": "u.last_login",
	}
)

type userRow struct {
	ID           string      `db:"id"`
	Name         string      `db:"name"`
	Username     null.String `db:"username"`
	Email        null.String `db:"email"`
	Role         string      `db:"role"`
	IsActive     bool        `db:"is_active"`
	PasswordHash []byte      `db:"password_hash"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		Role:         usr.Role,
		IsActive:     usr.IsActive,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    usr.LastLogin,
	}
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username.String,
		Email:        r.Email.String,
		Role:         r.Role,
		IsActive:     r.IsActive,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin,
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, username, email string, excludedUsers []user.User) error {
	w := new(where)
	switch {
	case username != "" && email != "":
		w.add("(u.username = ? OR u.email = ?)", username, email)
	case username != "":
		w.add("u.username = ?", username)
	case email != "":
		w.add("u.email = ?", email)
	default:
		return nil
	}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		w.add("u.id NOT IN (?)", ids)
	}

	q, args, err := w.build(repo.db, `SELECT u.username, u.email FROM "user" u`+w.String()+" LIMIT 1")
	if err != nil {
		return err
	}
	var row struct {
		Username null.String `db:"username"`
		Email    null.String `db:"email"`
	}
	if err = repo.db.GetContext(ctx, &row, q, args...); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return nil
		}
		return err
	}
	if username != "" && row.Username.String == username {
		return user.ErrUsernameExists
	}
	return user.ErrEmailExists
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}
	row := toUserRow(usr)
	q := `INSERT INTO "user" (id, name, username, email, role, is_active, password_hash, created_at, updated_at, last_login)
		VALUES (:id, :name, :username, :email, :role, :is_active, :password_hash, :created_at, :updated_at, :last_login)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return user.User{}, translateErr(err, userConstraints)
	}
	return row.toUser(), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	w := new(where)
	if filter != nil {
		if filter.Search != "" {
			pattern := likePattern(filter.Search)
			w.add("(u.name ILIKE ? OR u.username ILIKE ? OR u.email ILIKE ?)", pattern, pattern, pattern)
		}
		if len(filter.Roles) > 0 {
			w.addIn("u.role", filter.Roles)
		}
		if filter.IsActive != nil {
			w.add("u.is_active = ?", *filter.IsActive)
		}
		if filter.ClassID != "" {
			w.add("EXISTS (SELECT 1 FROM enrollment e WHERE e.user_id = u.id AND e.class_id = ?)", filter.ClassID)
		}
		if !filter.CreatedFrom.IsZero() {
			w.add("u.created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			w.add("u.created_at <= ?", filter.CreatedTo.UTC())
		}
	}

	q, args, err := w.build(repo.db, `SELECT `+userColumns+` FROM "user" u`+w.String()+
		orderBy(ordering, userOrderingFields, "u.name ASC"))
	if err != nil {
		return nil, err
	}
	rows := make([]userRow, 0)
	if err = repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	w := new(where)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		w.add("u.id = ?", filter.ID)
	case filter.Username != "":
		w.add("u.username = ?", filter.Username)
	case filter.Email != "":
		w.add("u.email = ?", filter.Email)
	case len(filter.UsernameOrEmail) > 0:
		w.add("(u.username IN (?) OR u.email IN (?))", filter.UsernameOrEmail, filter.UsernameOrEmail)
	default:
		return user.User{}, user.ErrNotFound
	}

	q, args, err := w.build(repo.db, `SELECT `+userColumns+` FROM "user" u`+w.String()+" LIMIT 1")
	if err != nil {
		return user.User{}, err
	}
	var row userRow
	if err = repo.db.GetContext(ctx, &row, q, args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound)
	}
	return row.toUser(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := toUserRow(usr)
	q := `UPDATE "user" SET name = :name, username = :username, email = :email, role = :role,
		is_active = :is_active, password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return user.User{}, translateErr(err, userConstraints)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return row.toUser(), nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q, args, err := sqlx.In(`DELETE FROM "user" WHERE id IN (?)`, ids)
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(q), args...)
	if err != nil {
		return 0, translateErr(err, userConstraints)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (repo *userRepository) CountUsers(ctx context.Context, role string) (int, error) {
	var cnt int
	q := `SELECT COUNT(*) FROM "user"`
	args := make([]interface{}, 0, 1)
	if role != "" {
		q += " WHERE role = $1"
		args = append(args, role)
	}
	if err := repo.db.GetContext(ctx, &cnt, q, args...); err != nil {
		return 0, errors.Wrap(err, "counting users")
	}
	return cnt, nil
}
