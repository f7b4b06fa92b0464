package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/class"
	"github.com/academia-hq/academia/core/program"
)

const (
	programColumns = `id, campus_id, name, code, levels, description, created_at, updated_at`
	subjectColumns = `id, program_id, code, name, coefficient, level, hours_per_week, created_at, updated_at`
)

type programRepository struct {
	db *sqlx.DB
}

var _ program.Repository = (*programRepository)(nil) // interface compliance check

func NewProgramRepository(db *sqlx.DB) *programRepository {
	return &programRepository{db: db}
}

func (repo *programRepository) CreateProgram(ctx context.Context, p program.Program) (program.Program, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO programs (`+programColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.CampusID, p.Name, p.Code, p.Levels, p.Description, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	if err != nil {
		return program.Program{}, errors.Wrap(err, "inserting program")
	}
	return p, nil
}

func (repo *programRepository) getProgram(ctx context.Context, where string, args ...interface{}) (program.Program, error) {
	var p program.Program
	if err := repo.db.QueryRowxContext(ctx, "SELECT "+programColumns+" FROM programs WHERE "+where, args...).Scan(programDest(&p)...); err != nil {
		return program.Program{}, trapNoRowsErr(err, program.ErrNotFound, "finding program")
	}
	return p, nil
}

// programs & subjects have no nullable column: they scan straight into the core types
func programDest(p *program.Program) []interface{} {
	return []interface{}{&p.ID, &p.CampusID, &p.Name, &p.Code, &p.Levels, &p.Description, &p.CreatedAt, &p.UpdatedAt}
}

func subjectDest(s *program.Subject) []interface{} {
	return []interface{}{&s.ID, &s.ProgramID, &s.Code, &s.Name, &s.Coefficient, &s.Level, &s.HoursPerWeek, &s.CreatedAt, &s.UpdatedAt}
}

func (repo *programRepository) GetProgram(ctx context.Context, id string) (program.Program, error) {
	return repo.getProgram(ctx, "id = $1", id)
}

func (repo *programRepository) GetProgramByCode(ctx context.Context, campusID, code string) (program.Program, error) {
	return repo.getProgram(ctx, "campus_id = $1 AND code = $2", campusID, code)
}

func (repo *programRepository) QueryPrograms(ctx context.Context, f *program.QueryFilter, ordering []core.DBOrdering) ([]program.Program, error) {
	conds := new(conditions)
	if f != nil {
		if f.CampusID != "" {
			conds.add("campus_id = ?", f.CampusID)
		}
		conds.search(f.Search, "name", "code")
	}
	q := repo.db.Rebind("SELECT " + programColumns + " FROM programs" + conds.String() + core.OrderByClause(ordering, "name ASC"))
	rows, err := repo.db.QueryxContext(ctx, q, conds.args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying programs")
	}
	defer func() { _ = rows.Close() }()

	programs := make([]program.Program, 0)
	for rows.Next() {
		var p program.Program
		if err = rows.Scan(programDest(&p)...); err != nil {
			return nil, errors.Wrap(err, "scanning program")
		}
		programs = append(programs, p)
	}
	return programs, errors.Wrap(rows.Err(), "querying programs")
}

func (repo *programRepository) UpdateProgram(ctx context.Context, p program.Program) (program.Program, error) {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE programs SET name = $2, code = $3, levels = $4, description = $5, updated_at = $6 WHERE id = $1`,
		p.ID, p.Name, p.Code, p.Levels, p.Description, p.UpdatedAt.UTC())
	if err != nil {
		return program.Program{}, errors.Wrap(err, "updating program")
	}
	return p, expectRows(res, program.ErrNotFound)
}

func (repo *programRepository) DeleteProgram(ctx context.Context, id string) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var inUse bool
		if err := tx.GetContext(ctx, &inUse, "SELECT EXISTS (SELECT 1 FROM classes WHERE program_id = $1)", id); err != nil {
			return errors.Wrap(err, "checking program classes")
		}
		if inUse {
			return program.ErrInUse
		}
		if err := deleteSystem(ctx, tx, class.ScopeProgram, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM programs WHERE id = $1", id)
		if err != nil {
			if isForeignKeyViolation(err) {
				return program.ErrInUse
			}
			return errors.Wrap(err, "deleting program")
		}
		return expectRows(res, program.ErrNotFound)
	})
}

func (repo *programRepository) CreateSubject(ctx context.Context, s program.Subject) (program.Subject, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO subjects (`+subjectColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.ProgramID, s.Code, s.Name, s.Coefficient, s.Level, s.HoursPerWeek, s.CreatedAt.UTC(), s.UpdatedAt.UTC())
	if err != nil {
		if isForeignKeyViolation(err) {
			return program.Subject{}, program.ErrNotFound
		}
		return program.Subject{}, errors.Wrap(err, "inserting subject")
	}
	return s, nil
}

func (repo *programRepository) getSubject(ctx context.Context, where string, args ...interface{}) (program.Subject, error) {
	var s program.Subject
	if err := repo.db.QueryRowxContext(ctx, "SELECT "+subjectColumns+" FROM subjects WHERE "+where, args...).Scan(subjectDest(&s)...); err != nil {
		return program.Subject{}, trapNoRowsErr(err, program.ErrSubjectNotFound, "finding subject")
	}
	return s, nil
}

func (repo *programRepository) GetSubject(ctx context.Context, id string) (program.Subject, error) {
	return repo.getSubject(ctx, "id = $1", id)
}

func (repo *programRepository) GetSubjectByCode(ctx context.Context, programID, code string) (program.Subject, error) {
	return repo.getSubject(ctx, "program_id = $1 AND code = $2", programID, code)
}

func (repo *programRepository) QuerySubjects(ctx context.Context, programID string) ([]program.Subject, error) {
	rows, err := repo.db.QueryxContext(ctx, "SELECT "+subjectColumns+" FROM subjects WHERE program_id = $1 ORDER BY level, code", programID)
	if err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	defer func() { _ = rows.Close() }()

	subjects := make([]program.Subject, 0)
	for rows.Next() {
		var s program.Subject
		if err = rows.Scan(subjectDest(&s)...); err != nil {
			return nil, errors.Wrap(err, "scanning subject")
		}
		subjects = append(subjects, s)
	}
	return subjects, errors.Wrap(rows.Err(), "querying subjects")
}

func (repo *programRepository) UpdateSubject(ctx context.Context, s program.Subject) (program.Subject, error) {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE subjects SET code = $2, name = $3, coefficient = $4, level = $5, hours_per_week = $6, updated_at = $7
		WHERE id = $1`,
		s.ID, s.Code, s.Name, s.Coefficient, s.Level, s.HoursPerWeek, s.UpdatedAt.UTC())
	if err != nil {
		return program.Subject{}, errors.Wrap(err, "updating subject")
	}
	return s, expectRows(res, program.ErrSubjectNotFound)
}

// DeleteSubject detaches the class subjects following the subject (ON DELETE SET NULL).
func (repo *programRepository) DeleteSubject(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM subjects WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	return expectRows(res, program.ErrSubjectNotFound)
}
