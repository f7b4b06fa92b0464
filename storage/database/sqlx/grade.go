package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/academia-hq/academia/core/grade"
)

const (
	gradeColumns       = `g.id, g.student_id, g.class_id, g.class_subject_id, g.term_id, g.component, g.score, g.comment, g.recorded_by, g.created_at, g.updated_at`
	historyColumns     = `id, grade_id, action, old_score, new_score, changed_by, reason, changed_at`
	publicationColumns = `id, class_id, term_id, published_at, published_by`
)

type gradeRow struct {
	ID             string      `db:"id"`
	StudentID      string      `db:"student_id"`
	ClassID        string      `db:"class_id"`
	ClassSubjectID string      `db:"class_subject_id"`
	TermID         string      `db:"term_id"`
	Component      string      `db:"component"`
	Score          float64     `db:"score"`
	Comment        string      `db:"comment"`
	RecordedBy     null.String `db:"recorded_by"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

func newGradeRow(g grade.Grade) gradeRow {
	return gradeRow{
		ID:             g.ID,
		StudentID:      g.StudentID,
		ClassID:        g.ClassID,
		ClassSubjectID: g.ClassSubjectID,
		TermID:         g.TermID,
		Component:      g.Component,
		Score:          g.Score,
		Comment:        g.Comment,
		RecordedBy:     null.NewString(g.RecordedBy, g.RecordedBy != ""),
		CreatedAt:      g.CreatedAt.UTC(),
		UpdatedAt:      g.UpdatedAt.UTC(),
	}
}

func (r gradeRow) grade() grade.Grade {
	return grade.Grade{
		ID:             r.ID,
		StudentID:      r.StudentID,
		ClassID:        r.ClassID,
		ClassSubjectID: r.ClassSubjectID,
		TermID:         r.TermID,
		Component:      r.Component,
		Score:          r.Score,
		Comment:        r.Comment,
		RecordedBy:     r.RecordedBy.String,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

type historyRow struct {
	ID        string       `db:"id"`
	GradeID   string       `db:"grade_id"`
	Action    string       `db:"action"`
	OldScore  null.Float64 `db:"old_score"`
	NewScore  null.Float64 `db:"new_score"`
	ChangedBy null.String  `db:"changed_by"`
	Reason    string       `db:"reason"`
	ChangedAt time.Time    `db:"changed_at"`
}

func newHistoryRow(h grade.History) historyRow {
	return historyRow{
		ID:        h.ID,
		GradeID:   h.GradeID,
		Action:    h.Action,
		OldScore:  null.Float64FromPtr(h.OldScore),
		NewScore:  null.Float64FromPtr(h.NewScore),
		ChangedBy: null.NewString(h.ChangedBy, h.ChangedBy != ""),
		Reason:    h.Reason,
		ChangedAt: h.ChangedAt.UTC(),
	}
}

func (r historyRow) history() grade.History {
	return grade.History{
		ID:        r.ID,
		GradeID:   r.GradeID,
		Action:    r.Action,
		OldScore:  r.OldScore.Ptr(),
		NewScore:  r.NewScore.Ptr(),
		ChangedBy: r.ChangedBy.String,
		Reason:    r.Reason,
		ChangedAt: r.ChangedAt.UTC(),
	}
}

type publicationRow struct {
	ID          string      `db:"id"`
	ClassID     string      `db:"class_id"`
	TermID      string      `db:"term_id"`
	PublishedAt time.Time   `db:"published_at"`
	PublishedBy null.String `db:"published_by"`
}

func insertHistory(ctx context.Context, tx *sqlx.Tx, h grade.History) error {
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO grade_history (`+historyColumns+`)
		VALUES (:id, :grade_id, :action, :old_score, :new_score, :changed_by, :reason, :changed_at)`,
		newHistoryRow(h))
	return errors.Wrap(err, "inserting grade history")
}

type gradeRepository struct {
	db *sqlx.DB
}

var _ grade.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(db *sqlx.DB) *gradeRepository {
	return &gradeRepository{db: db}
}

func (repo *gradeRepository) GetGrade(ctx context.Context, id string) (grade.Grade, error) {
	var r gradeRow
	if err := repo.db.GetContext(ctx, &r, "SELECT "+gradeColumns+" FROM grades g WHERE g.id = $1", id); err != nil {
		return grade.Grade{}, trapNoRowsErr(err, grade.ErrNotFound, "finding grade")
	}
	return r.grade(), nil
}

func (repo *gradeRepository) QueryGrades(ctx context.Context, f *grade.QueryFilter) ([]grade.Grade, error) {
	conds := new(conditions)
	if f != nil {
		if f.StudentID != "" {
			conds.add("g.student_id = ?", f.StudentID)
		}
		if f.ClassID != "" {
			conds.add("g.class_id = ?", f.ClassID)
		}
		if f.ClassSubjectID != "" {
			conds.add("g.class_subject_id = ?", f.ClassSubjectID)
		}
		if f.TermID != "" {
			conds.add("g.term_id = ?", f.TermID)
		}
		if f.Component != "" {
			conds.add("g.component = ?", f.Component)
		}
		if f.PublishedOnly {
			conds.add("EXISTS (SELECT 1 FROM grade_publications p WHERE p.class_id = g.class_id AND p.term_id = g.term_id)")
		}
	}
	var rows []gradeRow
	if err := selectWhere(ctx, repo.db, &rows, "SELECT "+gradeColumns+" FROM grades g", conds, nil, "g.created_at ASC, g.component ASC"); err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	grades := make([]grade.Grade, 0, len(rows))
	for _, r := range rows {
		grades = append(grades, r.grade())
	}
	return grades, nil
}

// RecordGrade serialises recordings of the same key with a transaction-level advisory lock,
// which also covers the first recording when there is no row to lock yet.
func (repo *gradeRepository) RecordGrade(ctx context.Context, key grade.Key, apply grade.RecordFunc) (grade.Grade, error) {
	var g grade.Grade
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		lockKey := "grade:" + key.StudentID + ":" + key.ClassSubjectID + ":" + key.TermID + ":" + key.Component
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", lockKey); err != nil {
			return errors.Wrap(err, "locking grade")
		}

		var (
			cur *grade.Grade
			r   gradeRow
		)
		err := tx.GetContext(ctx, &r, `
			SELECT `+gradeColumns+` FROM grades g
			WHERE g.student_id = $1 AND g.class_subject_id = $2 AND g.term_id = $3 AND g.component = $4
			FOR UPDATE`,
			key.StudentID, key.ClassSubjectID, key.TermID, key.Component)
		switch {
		case err == nil:
			found := r.grade()
			cur = &found
		case !errors.Is(err, sql.ErrNoRows):
			return errors.Wrap(err, "finding grade")
		}

		next, h := apply(cur)
		if next == nil {
			if cur == nil {
				return grade.ErrNotFound
			}
			g = *cur
			return nil
		}

		q, args, err := tx.BindNamed(`
			INSERT INTO grades AS g (id, student_id, class_id, class_subject_id, term_id, component, score, comment, recorded_by, created_at, updated_at)
			VALUES (:id, :student_id, :class_id, :class_subject_id, :term_id, :component, :score, :comment, :recorded_by, :created_at, :updated_at)
			ON CONFLICT (id) DO UPDATE SET score = EXCLUDED.score,
				comment = EXCLUDED.comment, recorded_by = EXCLUDED.recorded_by, updated_at = EXCLUDED.updated_at
			RETURNING `+gradeColumns, newGradeRow(*next))
		if err != nil {
			return errors.Wrap(err, "binding grade")
		}
		if err = tx.GetContext(ctx, &r, q, args...); err != nil {
			return errors.Wrap(err, "saving grade")
		}
		g = r.grade()
		if h == nil {
			return nil
		}
		h.GradeID = g.ID
		return insertHistory(ctx, tx, *h)
	})
	if err != nil {
		return grade.Grade{}, err
	}
	return g, nil
}

func (repo *gradeRepository) DeleteGrade(ctx context.Context, id string, h grade.History) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM grades WHERE id = $1", id)
		if err != nil {
			return errors.Wrap(err, "deleting grade")
		}
		if err = expectRows(res, grade.ErrNotFound); err != nil {
			return err
		}
		return insertHistory(ctx, tx, h)
	})
}

func (repo *gradeRepository) QueryHistory(ctx context.Context, gradeID string) ([]grade.History, error) {
	var rows []historyRow
	if err := repo.db.SelectContext(ctx, &rows, "SELECT "+historyColumns+" FROM grade_history WHERE grade_id = $1 ORDER BY changed_at, id", gradeID); err != nil {
		return nil, errors.Wrap(err, "querying grade history")
	}
	trail := make([]grade.History, 0, len(rows))
	for _, r := range rows {
		trail = append(trail, r.history())
	}
	return trail, nil
}

func (repo *gradeRepository) CountGradesByClassSubject(ctx context.Context, classSubjectID string) (int, error) {
	var n int
	if err := repo.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM grades WHERE class_subject_id = $1", classSubjectID); err != nil {
		return 0, errors.Wrap(err, "counting grades")
	}
	return n, nil
}

func (repo *gradeRepository) CreatePublication(ctx context.Context, p grade.Publication) (grade.Publication, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO grade_publications (`+publicationColumns+`)
		VALUES (:id, :class_id, :term_id, :published_at, :published_by)`,
		publicationRow{
			ID:          p.ID,
			ClassID:     p.ClassID,
			TermID:      p.TermID,
			PublishedAt: p.PublishedAt.UTC(),
			PublishedBy: null.NewString(p.PublishedBy, p.PublishedBy != ""),
		})
	if err != nil {
		if isUniqueViolation(err) {
			return grade.Publication{}, grade.ErrAlreadyPublished
		}
		return grade.Publication{}, errors.Wrap(err, "inserting grade publication")
	}
	return p, nil
}

func (repo *gradeRepository) GetPublication(ctx context.Context, classID, termID string) (grade.Publication, error) {
	var r publicationRow
	err := repo.db.GetContext(ctx, &r, "SELECT "+publicationColumns+" FROM grade_publications WHERE class_id = $1 AND term_id = $2", classID, termID)
	if err != nil {
		return grade.Publication{}, trapNoRowsErr(err, grade.ErrPublicationNotFound, "finding grade publication")
	}
	return grade.Publication{
		ID:          r.ID,
		ClassID:     r.ClassID,
		TermID:      r.TermID,
		PublishedAt: r.PublishedAt.UTC(),
		PublishedBy: r.PublishedBy.String,
	}, nil
}
