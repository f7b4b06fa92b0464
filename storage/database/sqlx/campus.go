package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/campus"
	"github.com/academia-hq/academia/core/class"
)

const campusColumns = `id, name, code, address, timezone, working_days, is_active, created_at, updated_at`

type campusRow struct {
	ID          string        `db:"id"`
	Name        string        `db:"name"`
	Code        string        `db:"code"`
	Address     string        `db:"address"`
	Timezone    string        `db:"timezone"`
	WorkingDays pq.Int64Array `db:"working_days"`
	IsActive    bool          `db:"is_active"`
	CreatedAt   time.Time     `db:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at"`
}

func newCampusRow(c campus.Campus) campusRow {
	days := make(pq.Int64Array, 0, len(c.WorkingDays))
	for _, d := range c.WorkingDays {
		days = append(days, int64(d))
	}
	return campusRow{
		ID:          c.ID,
		Name:        c.Name,
		Code:        c.Code,
		Address:     c.Address,
		Timezone:    c.Timezone,
		WorkingDays: days,
		IsActive:    c.IsActive,
		CreatedAt:   c.CreatedAt.UTC(),
		UpdatedAt:   c.UpdatedAt.UTC(),
	}
}

func (r campusRow) campus() campus.Campus {
	days := make([]core.Weekday, 0, len(r.WorkingDays))
	for _, d := range r.WorkingDays {
		days = append(days, core.Weekday(d))
	}
	return campus.Campus{
		ID:          r.ID,
		Name:        r.Name,
		Code:        r.Code,
		Address:     r.Address,
		Timezone:    r.Timezone,
		WorkingDays: days,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type campusRepository struct {
	db *sqlx.DB
}

var _ campus.Repository = (*campusRepository)(nil) // interface compliance check

func NewCampusRepository(db *sqlx.DB) *campusRepository {
	return &campusRepository{db: db}
}

func (repo *campusRepository) CreateCampus(ctx context.Context, c campus.Campus) (campus.Campus, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO campuses (`+campusColumns+`)
		VALUES (:id, :name, :code, :address, :timezone, :working_days, :is_active, :created_at, :updated_at)`,
		newCampusRow(c))
	if err != nil {
		return campus.Campus{}, errors.Wrap(err, "inserting campus")
	}
	return c, nil
}

func (repo *campusRepository) getBy(ctx context.Context, where string, arg interface{}) (campus.Campus, error) {
	var r campusRow
	if err := repo.db.GetContext(ctx, &r, "SELECT "+campusColumns+" FROM campuses WHERE "+where, arg); err != nil {
		return campus.Campus{}, trapNoRowsErr(err, campus.ErrNotFound, "finding campus")
	}
	return r.campus(), nil
}

func (repo *campusRepository) GetCampus(ctx context.Context, id string) (campus.Campus, error) {
	return repo.getBy(ctx, "id = $1", id)
}

func (repo *campusRepository) GetCampusByCode(ctx context.Context, code string) (campus.Campus, error) {
	return repo.getBy(ctx, "code = $1", code)
}

func (repo *campusRepository) QueryCampuses(ctx context.Context, f *campus.QueryFilter, ordering []core.DBOrdering) ([]campus.Campus, error) {
	conds := new(conditions)
	if f != nil {
		conds.search(f.Search, "name", "code")
		if f.IsActive != nil {
			conds.add("is_active = ?", *f.IsActive)
		}
	}
	var rows []campusRow
	if err := selectWhere(ctx, repo.db, &rows, "SELECT "+campusColumns+" FROM campuses", conds, ordering, "name ASC"); err != nil {
		return nil, errors.Wrap(err, "querying campuses")
	}
	campuses := make([]campus.Campus, 0, len(rows))
	for _, r := range rows {
		campuses = append(campuses, r.campus())
	}
	return campuses, nil
}

func (repo *campusRepository) UpdateCampus(ctx context.Context, c campus.Campus) (campus.Campus, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE campuses SET name = :name, code = :code, address = :address, timezone = :timezone,
			working_days = :working_days, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`,
		newCampusRow(c))
	if err != nil {
		return campus.Campus{}, errors.Wrap(err, "updating campus")
	}
	return c, expectRows(res, campus.ErrNotFound)
}

// DeleteCampus cascades to the campus calendar; documents of the campus become shared.
func (repo *campusRepository) DeleteCampus(ctx context.Context, id string) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var inUse bool
		err := tx.GetContext(ctx, &inUse, `
			SELECT EXISTS (SELECT 1 FROM programs WHERE campus_id = $1)
				OR EXISTS (SELECT 1 FROM teachers WHERE campus_id = $1)
				OR EXISTS (SELECT 1 FROM students WHERE campus_id = $1)`, id)
		if err != nil {
			return errors.Wrap(err, "checking campus references")
		}
		if inUse {
			return campus.ErrInUse
		}
		if err = deleteSystem(ctx, tx, class.ScopeCampus, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM campuses WHERE id = $1", id)
		if err != nil {
			if isForeignKeyViolation(err) {
				return campus.ErrInUse
			}
			return errors.Wrap(err, "deleting campus")
		}
		return expectRows(res, campus.ErrNotFound)
	})
}
