package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/class"
)

const (
	classColumns        = `c.id, c.program_id, c.campus_id, c.academic_year_id, c.name, c.level, c.capacity, c.homeroom_teacher_id, c.created_at, c.updated_at`
	enrollmentColumns   = `id, class_id, student_id, academic_year_id, status, enrolled_at, withdrawn_at`
	classSubjectColumns = `id, class_id, subject_id, subject_code, subject_name, teacher_id, coefficient, created_at, updated_at`
)

type classRow struct {
	ID                string      `db:"id"`
	ProgramID         string      `db:"program_id"`
	CampusID          string      `db:"campus_id"`
	AcademicYearID    string      `db:"academic_year_id"`
	Name              string      `db:"name"`
	Level             int         `db:"level"`
	Capacity          int         `db:"capacity"`
	HomeroomTeacherID null.String `db:"homeroom_teacher_id"`
	CreatedAt         time.Time   `db:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at"`
}

func newClassRow(c class.Class) classRow {
	return classRow{
		ID:                c.ID,
		ProgramID:         c.ProgramID,
		CampusID:          c.CampusID,
		AcademicYearID:    c.AcademicYearID,
		Name:              c.Name,
		Level:             c.Level,
		Capacity:          c.Capacity,
		HomeroomTeacherID: null.NewString(c.HomeroomTeacherID, c.HomeroomTeacherID != ""),
		CreatedAt:         c.CreatedAt.UTC(),
		UpdatedAt:         c.UpdatedAt.UTC(),
	}
}

func (r classRow) class() class.Class {
	return class.Class{
		ID:                r.ID,
		ProgramID:         r.ProgramID,
		CampusID:          r.CampusID,
		AcademicYearID:    r.AcademicYearID,
		Name:              r.Name,
		Level:             r.Level,
		Capacity:          r.Capacity,
		HomeroomTeacherID: r.HomeroomTeacherID.String,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

type enrollmentRow struct {
	ID             string    `db:"id"`
	ClassID        string    `db:"class_id"`
	StudentID      string    `db:"student_id"`
	AcademicYearID string    `db:"academic_year_id"`
	Status         string    `db:"status"`
	EnrolledAt     time.Time `db:"enrolled_at"`
	WithdrawnAt    null.Time `db:"withdrawn_at"`
}

func newEnrollmentRow(e class.Enrollment) enrollmentRow {
	r := enrollmentRow{
		ID:             e.ID,
		ClassID:        e.ClassID,
		StudentID:      e.StudentID,
		AcademicYearID: e.AcademicYearID,
		Status:         e.Status,
		EnrolledAt:     e.EnrolledAt.UTC(),
	}
	if e.WithdrawnAt != nil {
		r.WithdrawnAt = null.TimeFrom(e.WithdrawnAt.UTC())
	}
	return r
}

func (r enrollmentRow) enrollment() class.Enrollment {
	e := class.Enrollment{
		ID:             r.ID,
		ClassID:        r.ClassID,
		StudentID:      r.StudentID,
		AcademicYearID: r.AcademicYearID,
		Status:         r.Status,
		EnrolledAt:     r.EnrolledAt.UTC(),
	}
	if r.WithdrawnAt.Valid {
		at := r.WithdrawnAt.Time.UTC()
		e.WithdrawnAt = &at
	}
	return e
}

type classSubjectRow struct {
	ID          string      `db:"id"`
	ClassID     string      `db:"class_id"`
	SubjectID   null.String `db:"subject_id"`
	SubjectCode string      `db:"subject_code"`
	SubjectName string      `db:"subject_name"`
	TeacherID   null.String `db:"teacher_id"`
	Coefficient float64     `db:"coefficient"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func newClassSubjectRow(cs class.ClassSubject) classSubjectRow {
	return classSubjectRow{
		ID:          cs.ID,
		ClassID:     cs.ClassID,
		SubjectID:   null.NewString(cs.SubjectID, cs.SubjectID != ""),
		SubjectCode: cs.SubjectCode,
		SubjectName: cs.SubjectName,
		TeacherID:   null.NewString(cs.TeacherID, cs.TeacherID != ""),
		Coefficient: cs.Coefficient,
		CreatedAt:   cs.CreatedAt.UTC(),
		UpdatedAt:   cs.UpdatedAt.UTC(),
	}
}

func (r classSubjectRow) classSubject() class.ClassSubject {
	return class.ClassSubject{
		ID:          r.ID,
		ClassID:     r.ClassID,
		SubjectID:   r.SubjectID.String,
		SubjectCode: r.SubjectCode,
		SubjectName: r.SubjectName,
		TeacherID:   r.TeacherID.String,
		Coefficient: r.Coefficient,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type classRepository struct {
	db *sqlx.DB
}

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *sqlx.DB) *classRepository {
	return &classRepository{db: db}
}

func (repo *classRepository) CreateClass(ctx context.Context, c class.Class) (class.Class, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO classes (id, program_id, campus_id, academic_year_id, name, level, capacity, homeroom_teacher_id, created_at, updated_at)
		VALUES (:id, :program_id, :campus_id, :academic_year_id, :name, :level, :capacity, :homeroom_teacher_id, :created_at, :updated_at)`,
		newClassRow(c))
	if err != nil {
		return class.Class{}, errors.Wrap(err, "inserting class")
	}
	return c, nil
}

func (repo *classRepository) GetClass(ctx context.Context, id string) (class.Class, error) {
	var r classRow
	if err := repo.db.GetContext(ctx, &r, "SELECT "+classColumns+" FROM classes c WHERE c.id = $1", id); err != nil {
		return class.Class{}, trapNoRowsErr(err, class.ErrNotFound, "finding class")
	}
	return r.class(), nil
}

func (repo *classRepository) QueryClasses(ctx context.Context, f *class.QueryFilter, ordering []core.DBOrdering) ([]class.Class, error) {
	conds := new(conditions)
	if f != nil {
		if f.CampusID != "" {
			conds.add("c.campus_id = ?", f.CampusID)
		}
		if f.ProgramID != "" {
			conds.add("c.program_id = ?", f.ProgramID)
		}
		if f.AcademicYearID != "" {
			conds.add("c.academic_year_id = ?", f.AcademicYearID)
		}
		if f.Level != 0 {
			conds.add("c.level = ?", f.Level)
		}
		if f.TeacherID != "" {
			conds.add("(c.homeroom_teacher_id = ? OR EXISTS (SELECT 1 FROM class_subjects cs WHERE cs.class_id = c.id AND cs.teacher_id = ?))",
				f.TeacherID, f.TeacherID)
		}
		conds.search(f.Search, "c.name")
	}
	var rows []classRow
	if err := selectWhere(ctx, repo.db, &rows, "SELECT "+classColumns+" FROM classes c", conds, qualify(ordering, "c"), "c.name ASC"); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	classes := make([]class.Class, 0, len(rows))
	for _, r := range rows {
		classes = append(classes, r.class())
	}
	return classes, nil
}

func (repo *classRepository) UpdateClass(ctx context.Context, c class.Class) (class.Class, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE classes SET name = :name, level = :level, capacity = :capacity,
			homeroom_teacher_id = :homeroom_teacher_id, updated_at = :updated_at
		WHERE id = :id`,
		newClassRow(c))
	if err != nil {
		return class.Class{}, errors.Wrap(err, "updating class")
	}
	return c, expectRows(res, class.ErrNotFound)
}

// DeleteClass cascades to enrollments, class subjects, slots, events & publications.
func (repo *classRepository) DeleteClass(ctx context.Context, id string) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var inUse bool
		err := tx.GetContext(ctx, &inUse, `
			SELECT EXISTS (SELECT 1 FROM enrollments WHERE class_id = $1 AND status = $2)
				OR EXISTS (SELECT 1 FROM grades WHERE class_id = $1)`, id, class.StatusActive)
		if err != nil {
			return errors.Wrap(err, "checking class references")
		}
		if inUse {
			return class.ErrInUse
		}
		if err = deleteSystem(ctx, tx, class.ScopeClass, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM classes WHERE id = $1", id)
		if err != nil {
			if isForeignKeyViolation(err) {
				return class.ErrInUse
			}
			return errors.Wrap(err, "deleting class")
		}
		return expectRows(res, class.ErrNotFound)
	})
}

func (repo *classRepository) Enroll(ctx context.Context, e class.Enrollment, capacity int) (class.Enrollment, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		// the class row lock serializes the enrollments of the class
		var locked string
		if err := tx.GetContext(ctx, &locked, "SELECT id FROM classes WHERE id = $1 FOR UPDATE", e.ClassID); err != nil {
			return trapNoRowsErr(err, class.ErrNotFound, "locking class")
		}
		var enrolled bool
		err := tx.GetContext(ctx, &enrolled, `
			SELECT EXISTS (SELECT 1 FROM enrollments WHERE student_id = $1 AND academic_year_id = $2 AND status = $3)`,
			e.StudentID, e.AcademicYearID, class.StatusActive)
		if err != nil {
			return errors.Wrap(err, "checking enrollment")
		}
		if enrolled {
			return class.ErrAlreadyEnrolled
		}
		var active int
		if err = tx.GetContext(ctx, &active, "SELECT COUNT(*) FROM enrollments WHERE class_id = $1 AND status = $2", e.ClassID, class.StatusActive); err != nil {
			return errors.Wrap(err, "counting enrollments")
		}
		if active >= capacity {
			return class.ErrClassFull
		}
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO enrollments (`+enrollmentColumns+`)
			VALUES (:id, :class_id, :student_id, :academic_year_id, :status, :enrolled_at, :withdrawn_at)`,
			newEnrollmentRow(e))
		if err != nil {
			if isUniqueViolation(err) {
				return class.ErrAlreadyEnrolled
			}
			return errors.Wrap(err, "inserting enrollment")
		}
		return nil
	})
	if err != nil {
		return class.Enrollment{}, err
	}
	return e, nil
}

func (repo *classRepository) selectEnrollments(ctx context.Context, query string, args ...interface{}) ([]class.Enrollment, error) {
	var rows []enrollmentRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrollments := make([]class.Enrollment, 0, len(rows))
	for _, r := range rows {
		enrollments = append(enrollments, r.enrollment())
	}
	return enrollments, nil
}

func (repo *classRepository) QueryEnrollments(ctx context.Context, classID string, activeOnly bool) ([]class.Enrollment, error) {
	q := "SELECT " + enrollmentColumns + " FROM enrollments WHERE class_id = $1"
	if activeOnly {
		return repo.selectEnrollments(ctx, q+" AND status = $2 ORDER BY enrolled_at", classID, class.StatusActive)
	}
	return repo.selectEnrollments(ctx, q+" ORDER BY enrolled_at", classID)
}

func (repo *classRepository) GetActiveEnrollment(ctx context.Context, classID, studentID string) (class.Enrollment, error) {
	var r enrollmentRow
	err := repo.db.GetContext(ctx, &r, "SELECT "+enrollmentColumns+" FROM enrollments WHERE class_id = $1 AND student_id = $2 AND status = $3",
		classID, studentID, class.StatusActive)
	if err != nil {
		return class.Enrollment{}, trapNoRowsErr(err, class.ErrEnrollmentNotFound, "finding enrollment")
	}
	return r.enrollment(), nil
}

func (repo *classRepository) QueryStudentEnrollments(ctx context.Context, studentID string) ([]class.Enrollment, error) {
	return repo.selectEnrollments(ctx, "SELECT "+enrollmentColumns+" FROM enrollments WHERE student_id = $1 ORDER BY enrolled_at DESC", studentID)
}

func (repo *classRepository) UpdateEnrollment(ctx context.Context, e class.Enrollment) (class.Enrollment, error) {
	res, err := repo.db.NamedExecContext(ctx, "UPDATE enrollments SET status = :status, withdrawn_at = :withdrawn_at WHERE id = :id", newEnrollmentRow(e))
	if err != nil {
		return class.Enrollment{}, errors.Wrap(err, "updating enrollment")
	}
	return e, expectRows(res, class.ErrEnrollmentNotFound)
}

func (repo *classRepository) GetClassSubject(ctx context.Context, id string) (class.ClassSubject, error) {
	var r classSubjectRow
	if err := repo.db.GetContext(ctx, &r, "SELECT "+classSubjectColumns+" FROM class_subjects WHERE id = $1", id); err != nil {
		return class.ClassSubject{}, trapNoRowsErr(err, class.ErrClassSubjectNotFound, "finding class subject")
	}
	return r.classSubject(), nil
}

func (repo *classRepository) QueryClassSubjects(ctx context.Context, classID string) ([]class.ClassSubject, error) {
	var rows []classSubjectRow
	if err := repo.db.SelectContext(ctx, &rows, "SELECT "+classSubjectColumns+" FROM class_subjects WHERE class_id = $1 ORDER BY subject_code", classID); err != nil {
		return nil, errors.Wrap(err, "querying class subjects")
	}
	subjects := make([]class.ClassSubject, 0, len(rows))
	for _, r := range rows {
		subjects = append(subjects, r.classSubject())
	}
	return subjects, nil
}

const updateClassSubject = `
	UPDATE class_subjects SET subject_id = :subject_id, subject_code = :subject_code, subject_name = :subject_name,
		teacher_id = :teacher_id, coefficient = :coefficient, updated_at = :updated_at
	WHERE id = :id`

func (repo *classRepository) UpdateClassSubject(ctx context.Context, cs class.ClassSubject) (class.ClassSubject, error) {
	res, err := repo.db.NamedExecContext(ctx, updateClassSubject, newClassSubjectRow(cs))
	if err != nil {
		return class.ClassSubject{}, errors.Wrap(err, "updating class subject")
	}
	return cs, expectRows(res, class.ErrClassSubjectNotFound)
}

// ApplySubjectSync deletes the removed class subjects with their slots (ON DELETE CASCADE).
func (repo *classRepository) ApplySubjectSync(ctx context.Context, add, update []class.ClassSubject, removeIDs []string) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		for _, cs := range add {
			_, err := tx.NamedExecContext(ctx, `
				INSERT INTO class_subjects (`+classSubjectColumns+`)
				VALUES (:id, :class_id, :subject_id, :subject_code, :subject_name, :teacher_id, :coefficient, :created_at, :updated_at)`,
				newClassSubjectRow(cs))
			if err != nil {
				return errors.Wrap(err, "inserting class subject")
			}
		}
		for _, cs := range update {
			res, err := tx.NamedExecContext(ctx, updateClassSubject, newClassSubjectRow(cs))
			if err != nil {
				return errors.Wrap(err, "updating class subject")
			}
			if err = expectRows(res, class.ErrClassSubjectNotFound); err != nil {
				return err
			}
		}
		if len(removeIDs) > 0 {
			if _, err := tx.ExecContext(ctx, "DELETE FROM class_subjects WHERE id::text = ANY($1)", pq.StringArray(removeIDs)); err != nil {
				return errors.Wrap(err, "deleting class subjects")
			}
		}
		return nil
	})
}
