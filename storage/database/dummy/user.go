package dummydb

import (
	"context"
	"strings"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

var userColumns = map[string]comparer[user.User]{
	"name":       func(a, b user.User) int { return cmpString(a.Name, b.Name) },
	"username":   func(a, b user.User) int { return cmpString(a.Username, b.Username) },
	"email":      func(a, b user.User) int { return cmpString(a.Email, b.Email) },
	"is_active":  func(a, b user.User) int { return cmpBool(a.IsActive, b.IsActive) },
	"created_at": func(a, b user.User) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
	"updated_at": func(a, b user.User) int { return cmpTime(a.UpdatedAt, b.UpdatedAt) },
	"last_login": func(a, b user.User) int { return cmpTime(a.LastLogin, b.LastLogin) },
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	excluded := make(map[string]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}
	for _, usr := range repo.db.users {
		if excluded[usr.ID] {
			continue
		}
		if usr.Username == username {
			return user.ErrUsernameExists
		}
		if usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if usr.ID == "" {
		usr.ID = core.NewID()
	}
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, f *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := values(repo.db.users)
	if f != nil {
		users = filter(users, func(u user.User) bool {
			// Name, Username or Email matching the search keyword
			if f.Search != "" && !containsFold(u.Name, f.Search) && !containsFold(u.Username, f.Search) && !containsFold(u.Email, f.Search) {
				return false
			}
			// any role that starts with any of the provided roles
			if len(f.Roles) > 0 {
				matched := false
				for _, r := range f.Roles {
					if u.RoleStartsWith(r) {
						matched = true
						break
					}
				}
				if !matched {
					return false
				}
			}
			if f.IsActive != nil && u.IsActive != *f.IsActive {
				return false
			}
			if !f.CreatedFrom.IsZero() && u.CreatedAt.Before(f.CreatedFrom.UTC()) {
				return false
			}
			if !f.CreatedTo.IsZero() && u.CreatedAt.After(f.CreatedTo.UTC()) {
				return false
			}
			return true
		})
	}
	order(users, ordering, userColumns, userColumns["name"])
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, f user.GetFilter) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if f.ID != "" {
		if usr, ok := repo.db.users[f.ID]; ok {
			return usr, nil
		}
		return user.User{}, user.ErrNotFound
	}

	var uname, email string
	switch {
	case f.Username != "":
		uname = f.Username
	case f.Email != "":
		email = f.Email
	case len(f.UsernameOrEmail) > 0:
		uname = f.UsernameOrEmail[0]
		if len(f.UsernameOrEmail) == 2 {
			email = f.UsernameOrEmail[1]
		}
		if email == "" {
			email = uname
		} else if uname == "" {
			uname = email
		}
	default:
		return user.User{}, user.ErrNotFound
	}
	for _, usr := range repo.db.users {
		if (uname != "" && usr.Username == uname) || (email != "" && strings.EqualFold(usr.Email, email)) {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, u := range repo.db.users {
		if u.Username == usr.Username || u.Email == usr.Email {
			usr.ID = u.ID
			usr.CreatedAt = u.CreatedAt
			break
		}
	}
	if usr.ID == "" {
		usr.ID = core.NewID()
	}
	repo.db.users[usr.ID] = usr
	return usr, nil
}

// DeleteUsersByID also drops the teacher & student profiles of the users.
func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	n := 0
	for _, id := range ids {
		if _, ok := repo.db.users[id]; !ok {
			continue
		}
		delete(repo.db.users, id)
		n++
		for tid, t := range repo.db.teachers {
			if t.UserID == id {
				repo.db.deleteTeacher(tid)
			}
		}
		for sid, s := range repo.db.students {
			if s.UserID == id {
				repo.db.deleteStudent(sid)
			}
		}
	}
	return n, nil
}
