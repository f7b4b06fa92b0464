package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/user"
)

const userColumns = `id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login`

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     string         `db:"username"`
	Email        string         `db:"email"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func newUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     usr.Username,
		Email:        usr.Email,
		IsActive:     usr.IsActive,
		Roles:        pq.StringArray(usr.Roles),
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (r userRow) user() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username,
		Email:        r.Email,
		IsActive:     r.IsActive,
		Roles:        []string(r.Roles),
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	ids := make([]string, 0, len(excludedUsers))
	for _, u := range excludedUsers {
		ids = append(ids, u.ID)
	}
	var clashes []struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	err := repo.db.SelectContext(ctx, &clashes, `
		SELECT username, email FROM users
		WHERE (username = $1 OR email = $2) AND NOT (id::text = ANY($3))`,
		username, email, pq.StringArray(ids))
	if err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, c := range clashes {
		if c.Username == username {
			return user.ErrUsernameExists
		}
	}
	if len(clashes) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.ID = core.NewID()
	}
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (:id, :name, :username, :email, :is_active, :roles, :password_hash, :created_at, :updated_at, :last_login)`,
		newUserRow(usr))
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, f *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	conds := new(conditions)
	if f != nil {
		conds.search(f.Search, "name", "username", "email")
		// users with any role that starts with any of the provided roles
		if len(f.Roles) > 0 {
			patterns := make([]string, 0, len(f.Roles))
			for _, role := range f.Roles {
				patterns = append(patterns, escapeLike(role)+"%")
			}
			conds.add("EXISTS (SELECT 1 FROM UNNEST(roles) user_role WHERE user_role LIKE ANY(?))", pq.StringArray(patterns))
		}
		if f.IsActive != nil {
			conds.add("is_active = ?", *f.IsActive)
		}
		if !f.CreatedFrom.IsZero() {
			conds.add("created_at >= ?", f.CreatedFrom.UTC())
		}
		if !f.CreatedTo.IsZero() {
			conds.add("created_at <= ?", f.CreatedTo.UTC())
		}
	}

	var rows []userRow
	if err := selectWhere(ctx, repo.db, &rows, "SELECT "+userColumns+" FROM users", conds, ordering, "name ASC"); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, f user.GetFilter) (user.User, error) {
	var (
		where string
		args  []interface{}
	)
	switch {
	case f.ID != "":
		if !core.IsValidID(f.ID) {
			return user.User{}, user.ErrNotFound
		}
		where, args = "id = $1", []interface{}{f.ID}
	case f.Username != "":
		where, args = "username = $1", []interface{}{f.Username}
	case f.Email != "":
		where, args = "email = $1", []interface{}{f.Email}
	case len(f.UsernameOrEmail) > 0:
		uname := f.UsernameOrEmail[0]
		email := uname
		if len(f.UsernameOrEmail) == 2 && f.UsernameOrEmail[1] != "" {
			email = f.UsernameOrEmail[1]
			if uname == "" {
				uname = email
			}
		}
		if uname == "" {
			return user.User{}, user.ErrNotFound
		}
		where, args = "username = $1 OR email = $2", []interface{}{uname, email}
	default:
		return user.User{}, user.ErrNotFound
	}

	var r userRow
	if err := repo.db.GetContext(ctx, &r, "SELECT "+userColumns+" FROM users WHERE "+where+" LIMIT 1", args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return r.user(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE users SET name = :name, username = :username, email = :email, is_active = :is_active,
			roles = :roles, password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`,
		newUserRow(usr))
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if err = expectRows(res, user.ErrNotFound); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

// UpdateOrCreateUser matches an existing user on username or email.
func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	existing, err := repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{usr.Username, usr.Email}})
	switch {
	case err == nil:
		usr.ID = existing.ID
		usr.CreatedAt = existing.CreatedAt
		return repo.UpdateUser(ctx, usr)
	case core.IsNotFound(err):
		return repo.CreateUser(ctx, usr)
	default:
		return user.User{}, err
	}
}

// DeleteUsersByID also drops the teacher & student profiles of the users (ON DELETE CASCADE).
func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := repo.db.ExecContext(ctx, "DELETE FROM users WHERE id::text = ANY($1)", pq.StringArray(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "counting deleted users")
}
