package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/teacher"
)

const teacherColumns = `t.id, t.user_id, t.campus_id, t.employee_no, t.specialties, t.hired_on, t.is_active, t.created_at, t.updated_at`

type teacherRow struct {
	ID          string         `db:"id"`
	UserID      string         `db:"user_id"`
	CampusID    string         `db:"campus_id"`
	EmployeeNo  string         `db:"employee_no"`
	Specialties pq.StringArray `db:"specialties"`
	HiredOn     core.Date      `db:"hired_on"`
	IsActive    bool           `db:"is_active"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func newTeacherRow(t teacher.Teacher) teacherRow {
	return teacherRow{
		ID:          t.ID,
		UserID:      t.UserID,
		CampusID:    t.CampusID,
		EmployeeNo:  t.EmployeeNo,
		Specialties: pq.StringArray(t.Specialties),
		HiredOn:     t.HiredOn,
		IsActive:    t.IsActive,
		CreatedAt:   t.CreatedAt.UTC(),
		UpdatedAt:   t.UpdatedAt.UTC(),
	}
}

func (r teacherRow) teacher() teacher.Teacher {
	specialties := []string(r.Specialties)
	if specialties == nil {
		specialties = []string{}
	}
	return teacher.Teacher{
		ID:          r.ID,
		UserID:      r.UserID,
		CampusID:    r.CampusID,
		EmployeeNo:  r.EmployeeNo,
		Specialties: specialties,
		HiredOn:     r.HiredOn,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type teacherRepository struct {
	db *sqlx.DB
}

var _ teacher.Repository = (*teacherRepository)(nil) // interface compliance check

func NewTeacherRepository(db *sqlx.DB) *teacherRepository {
	return &teacherRepository{db: db}
}

func (repo *teacherRepository) CreateTeacher(ctx context.Context, t teacher.Teacher) (teacher.Teacher, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO teachers (id, user_id, campus_id, employee_no, specialties, hired_on, is_active, created_at, updated_at)
		VALUES (:id, :user_id, :campus_id, :employee_no, :specialties, :hired_on, :is_active, :created_at, :updated_at)`,
		newTeacherRow(t))
	if err != nil {
		return teacher.Teacher{}, errors.Wrap(err, "inserting teacher")
	}
	return t, nil
}

func (repo *teacherRepository) getBy(ctx context.Context, where string, arg interface{}) (teacher.Teacher, error) {
	var r teacherRow
	if err := repo.db.GetContext(ctx, &r, "SELECT "+teacherColumns+" FROM teachers t WHERE "+where, arg); err != nil {
		return teacher.Teacher{}, trapNoRowsErr(err, teacher.ErrNotFound, "finding teacher")
	}
	return r.teacher(), nil
}

func (repo *teacherRepository) GetTeacher(ctx context.Context, id string) (teacher.Teacher, error) {
	return repo.getBy(ctx, "t.id = $1", id)
}

func (repo *teacherRepository) GetTeacherByUser(ctx context.Context, userID string) (teacher.Teacher, error) {
	return repo.getBy(ctx, "t.user_id = $1", userID)
}

func (repo *teacherRepository) GetTeacherByEmployeeNo(ctx context.Context, employeeNo string) (teacher.Teacher, error) {
	return repo.getBy(ctx, "t.employee_no = $1", employeeNo)
}

func (repo *teacherRepository) QueryTeachers(ctx context.Context, f *teacher.QueryFilter, ordering []core.DBOrdering) ([]teacher.Teacher, error) {
	conds := new(conditions)
	if f != nil {
		if f.CampusID != "" {
			conds.add("t.campus_id = ?", f.CampusID)
		}
		if f.IsActive != nil {
			conds.add("t.is_active = ?", *f.IsActive)
		}
		if f.Specialty != "" {
			conds.add("EXISTS (SELECT 1 FROM UNNEST(t.specialties) specialty WHERE specialty ILIKE ?)", "%"+escapeLike(f.Specialty)+"%")
		}
		conds.search(f.Search, "t.employee_no", "u.name", "u.email")
	}
	var rows []teacherRow
	err := selectWhere(ctx, repo.db, &rows, "SELECT "+teacherColumns+" FROM teachers t JOIN users u ON u.id = t.user_id",
		conds, qualify(ordering, "t"), "t.employee_no ASC")
	if err != nil {
		return nil, errors.Wrap(err, "querying teachers")
	}
	teachers := make([]teacher.Teacher, 0, len(rows))
	for _, r := range rows {
		teachers = append(teachers, r.teacher())
	}
	return teachers, nil
}

func (repo *teacherRepository) UpdateTeacher(ctx context.Context, t teacher.Teacher) (teacher.Teacher, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE teachers SET employee_no = :employee_no, specialties = :specialties, hired_on = :hired_on,
			is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`,
		newTeacherRow(t))
	if err != nil {
		return teacher.Teacher{}, errors.Wrap(err, "updating teacher")
	}
	return t, expectRows(res, teacher.ErrNotFound)
}

// DeleteTeacher unassigns the teacher from classes, class subjects & slots (ON DELETE SET NULL).
func (repo *teacherRepository) DeleteTeacher(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM teachers WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting teacher")
	}
	return expectRows(res, teacher.ErrNotFound)
}
