package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/student"
)

const studentColumns = `s.id, s.user_id, s.campus_id, s.registration_no, s.date_of_birth, s.guardian_name,
	s.guardian_email, s.guardian_phone, s.created_at, s.updated_at`

func studentDest(s *student.Student) []interface{} {
	return []interface{}{
		&s.ID, &s.UserID, &s.CampusID, &s.RegistrationNo, &s.DateOfBirth, &s.GuardianName,
		&s.GuardianEmail, &s.GuardianPhone, &s.CreatedAt, &s.UpdatedAt,
	}
}

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) *studentRepository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CreateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO students (id, user_id, campus_id, registration_no, date_of_birth, guardian_name,
			guardian_email, guardian_phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.UserID, s.CampusID, s.RegistrationNo, s.DateOfBirth, s.GuardianName,
		s.GuardianEmail, s.GuardianPhone, s.CreatedAt.UTC(), s.UpdatedAt.UTC())
	if err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return s, nil
}

func (repo *studentRepository) getBy(ctx context.Context, where string, arg interface{}) (student.Student, error) {
	var s student.Student
	err := repo.db.QueryRowxContext(ctx, "SELECT "+studentColumns+" FROM students s WHERE "+where, arg).Scan(studentDest(&s)...)
	if err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "finding student")
	}
	return s, nil
}

func (repo *studentRepository) GetStudent(ctx context.Context, id string) (student.Student, error) {
	return repo.getBy(ctx, "s.id = $1", id)
}

func (repo *studentRepository) GetStudentByUser(ctx context.Context, userID string) (student.Student, error) {
	return repo.getBy(ctx, "s.user_id = $1", userID)
}

func (repo *studentRepository) GetStudentByRegistrationNo(ctx context.Context, registrationNo string) (student.Student, error) {
	return repo.getBy(ctx, "s.registration_no = $1", registrationNo)
}

func (repo *studentRepository) QueryStudents(ctx context.Context, f *student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	conds := new(conditions)
	if f != nil {
		if f.CampusID != "" {
			conds.add("s.campus_id = ?", f.CampusID)
		}
		conds.search(f.Search, "s.registration_no", "u.name", "u.email")
	}
	q := repo.db.Rebind("SELECT " + studentColumns + " FROM students s JOIN users u ON u.id = s.user_id" +
		conds.String() + core.OrderByClause(qualify(ordering, "s"), "s.registration_no ASC"))
	rows, err := repo.db.QueryxContext(ctx, q, conds.args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	defer func() { _ = rows.Close() }()

	students := make([]student.Student, 0)
	for rows.Next() {
		var s student.Student
		if err = rows.Scan(studentDest(&s)...); err != nil {
			return nil, errors.Wrap(err, "scanning student")
		}
		students = append(students, s)
	}
	return students, errors.Wrap(rows.Err(), "querying students")
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE students SET registration_no = $2, date_of_birth = $3, guardian_name = $4, guardian_email = $5,
			guardian_phone = $6, updated_at = $7
		WHERE id = $1`,
		s.ID, s.RegistrationNo, s.DateOfBirth, s.GuardianName, s.GuardianEmail, s.GuardianPhone, s.UpdatedAt.UTC())
	if err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	return s, expectRows(res, student.ErrNotFound)
}

// DeleteStudent drops the student enrollments & grades (ON DELETE CASCADE); the grade history stays.
func (repo *studentRepository) DeleteStudent(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM students WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return expectRows(res, student.ErrNotFound)
}
