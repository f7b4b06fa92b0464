package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/academia-hq/academia/core/permission"
)

const templateColumns = `id, name, description, role, parent_id, grants, denies, created_at, updated_at`

type templateRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	Role        null.String    `db:"role"`
	ParentID    null.String    `db:"parent_id"`
	Grants      pq.StringArray `db:"grants"`
	Denies      pq.StringArray `db:"denies"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func newTemplateRow(t permission.Template) templateRow {
	return templateRow{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Role:        null.NewString(t.Role, t.Role != ""),
		ParentID:    null.NewString(t.ParentID, t.ParentID != ""),
		Grants:      pq.StringArray(t.Grants),
		Denies:      pq.StringArray(t.Denies),
		CreatedAt:   t.CreatedAt.UTC(),
		UpdatedAt:   t.UpdatedAt.UTC(),
	}
}

func (r templateRow) template() permission.Template {
	return permission.Template{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Role:        r.Role.String,
		ParentID:    r.ParentID.String,
		Grants:      []string(r.Grants),
		Denies:      []string(r.Denies),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type permissionRepository struct {
	db *sqlx.DB
}

var _ permission.Repository = (*permissionRepository)(nil) // interface compliance check

func NewPermissionRepository(db *sqlx.DB) *permissionRepository {
	return &permissionRepository{db: db}
}

func (repo *permissionRepository) CreateTemplate(ctx context.Context, t permission.Template) (permission.Template, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO permission_templates (`+templateColumns+`)
		VALUES (:id, :name, :description, :role, :parent_id, :grants, :denies, :created_at, :updated_at)`,
		newTemplateRow(t))
	if err != nil {
		return permission.Template{}, errors.Wrap(err, "inserting permission template")
	}
	return t, nil
}

func (repo *permissionRepository) getBy(ctx context.Context, where string, arg interface{}) (permission.Template, error) {
	var r templateRow
	err := repo.db.GetContext(ctx, &r, "SELECT "+templateColumns+" FROM permission_templates WHERE "+where, arg)
	if err != nil {
		return permission.Template{}, trapNoRowsErr(err, permission.ErrNotFound, "finding permission template")
	}
	return r.template(), nil
}

func (repo *permissionRepository) GetTemplate(ctx context.Context, id string) (permission.Template, error) {
	return repo.getBy(ctx, "id = $1", id)
}

func (repo *permissionRepository) GetTemplateByName(ctx context.Context, name string) (permission.Template, error) {
	return repo.getBy(ctx, "name = $1", name)
}

func (repo *permissionRepository) GetTemplateByRole(ctx context.Context, role string) (permission.Template, error) {
	if role == "" {
		return permission.Template{}, permission.ErrNotFound
	}
	return repo.getBy(ctx, "role = $1", role)
}

func (repo *permissionRepository) QueryTemplates(ctx context.Context) ([]permission.Template, error) {
	var rows []templateRow
	if err := repo.db.SelectContext(ctx, &rows, "SELECT "+templateColumns+" FROM permission_templates ORDER BY name"); err != nil {
		return nil, errors.Wrap(err, "querying permission templates")
	}
	templates := make([]permission.Template, 0, len(rows))
	for _, r := range rows {
		templates = append(templates, r.template())
	}
	return templates, nil
}

func (repo *permissionRepository) UpdateTemplate(ctx context.Context, t permission.Template) (permission.Template, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE permission_templates SET name = :name, description = :description, role = :role,
			parent_id = :parent_id, grants = :grants, denies = :denies, updated_at = :updated_at
		WHERE id = :id`,
		newTemplateRow(t))
	if err != nil {
		return permission.Template{}, errors.Wrap(err, "updating permission template")
	}
	return t, expectRows(res, permission.ErrNotFound)
}

func (repo *permissionRepository) DeleteTemplate(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM permission_templates WHERE id = $1", id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return permission.ErrHasChildren
		}
		return errors.Wrap(err, "deleting permission template")
	}
	return expectRows(res, permission.ErrNotFound)
}
