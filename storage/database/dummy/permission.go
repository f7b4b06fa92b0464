package dummydb

import (
	"context"

	"github.com/academia-hq/academia/core/permission"
)

type permissionRepository struct {
	db *DB
}

var _ permission.Repository = (*permissionRepository)(nil) // interface compliance check

func NewPermissionRepository(db *DB) *permissionRepository {
	return &permissionRepository{db: db}
}

func (repo *permissionRepository) CreateTemplate(ctx context.Context, t permission.Template) (permission.Template, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.templates[t.ID] = t
	return t, nil
}

func (repo *permissionRepository) GetTemplate(ctx context.Context, id string) (permission.Template, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if t, ok := repo.db.templates[id]; ok {
		return t, nil
	}
	return permission.Template{}, permission.ErrNotFound
}

func (repo *permissionRepository) getBy(match func(permission.Template) bool) (permission.Template, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, t := range repo.db.templates {
		if match(t) {
			return t, nil
		}
	}
	return permission.Template{}, permission.ErrNotFound
}

func (repo *permissionRepository) GetTemplateByName(ctx context.Context, name string) (permission.Template, error) {
	return repo.getBy(func(t permission.Template) bool { return t.Name == name })
}

func (repo *permissionRepository) GetTemplateByRole(ctx context.Context, role string) (permission.Template, error) {
	return repo.getBy(func(t permission.Template) bool { return role != "" && t.Role == role })
}

func (repo *permissionRepository) QueryTemplates(ctx context.Context) ([]permission.Template, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	templates := values(repo.db.templates)
	order(templates, nil, nil, func(a, b permission.Template) int { return cmpString(a.Name, b.Name) })
	return templates, nil
}

func (repo *permissionRepository) UpdateTemplate(ctx context.Context, t permission.Template) (permission.Template, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.templates[t.ID]; !ok {
		return permission.Template{}, permission.ErrNotFound
	}
	repo.db.templates[t.ID] = t
	return t, nil
}

func (repo *permissionRepository) DeleteTemplate(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.templates[id]; !ok {
		return permission.ErrNotFound
	}
	delete(repo.db.templates, id)
	return nil
}
