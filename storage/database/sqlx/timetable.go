package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/timetable"
)

const slotColumns = `id, campus_id, class_id, class_subject_id, teacher_id, room, weekday, start_time, end_time, created_at, updated_at`

type slotRow struct {
	ID             string      `db:"id"`
	CampusID       string      `db:"campus_id"`
	ClassID        string      `db:"class_id"`
	ClassSubjectID string      `db:"class_subject_id"`
	TeacherID      null.String `db:"teacher_id"`
	Room           string      `db:"room"`
	Weekday        int         `db:"weekday"`
	StartTime      string      `db:"start_time"`
	EndTime        string      `db:"end_time"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

func newSlotRow(s timetable.Slot) slotRow {
	return slotRow{
		ID:             s.ID,
		CampusID:       s.CampusID,
		ClassID:        s.ClassID,
		ClassSubjectID: s.ClassSubjectID,
		TeacherID:      null.NewString(s.TeacherID, s.TeacherID != ""),
		Room:           s.Room,
		Weekday:        int(s.Weekday),
		StartTime:      s.Start,
		EndTime:        s.End,
		CreatedAt:      s.CreatedAt.UTC(),
		UpdatedAt:      s.UpdatedAt.UTC(),
	}
}

func (r slotRow) slot() timetable.Slot {
	return timetable.Slot{
		ID:             r.ID,
		CampusID:       r.CampusID,
		ClassID:        r.ClassID,
		ClassSubjectID: r.ClassSubjectID,
		TeacherID:      r.TeacherID.String,
		Room:           r.Room,
		Weekday:        core.Weekday(r.Weekday),
		Start:          strings.TrimSpace(r.StartTime),
		End:            strings.TrimSpace(r.EndTime),
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

type timetableRepository struct {
	db *sqlx.DB
}

var _ timetable.Repository = (*timetableRepository)(nil) // interface compliance check

func NewTimetableRepository(db *sqlx.DB) *timetableRepository {
	return &timetableRepository{db: db}
}

func (repo *timetableRepository) CreateSlot(ctx context.Context, s timetable.Slot) (timetable.Slot, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO timetable_slots (`+slotColumns+`)
		VALUES (:id, :campus_id, :class_id, :class_subject_id, :teacher_id, :room, :weekday, :start_time, :end_time, :created_at, :updated_at)`,
		newSlotRow(s))
	if err != nil {
		return timetable.Slot{}, errors.Wrap(err, "inserting timetable slot")
	}
	return s, nil
}

func (repo *timetableRepository) GetSlot(ctx context.Context, id string) (timetable.Slot, error) {
	var r slotRow
	if err := repo.db.GetContext(ctx, &r, "SELECT "+slotColumns+" FROM timetable_slots WHERE id = $1", id); err != nil {
		return timetable.Slot{}, trapNoRowsErr(err, timetable.ErrNotFound, "finding timetable slot")
	}
	return r.slot(), nil
}

func (repo *timetableRepository) QuerySlots(ctx context.Context, f timetable.SlotFilter) ([]timetable.Slot, error) {
	conds := new(conditions)
	if f.CampusID != "" {
		conds.add("campus_id = ?", f.CampusID)
	}
	if f.ClassID != "" {
		conds.add("class_id = ?", f.ClassID)
	}
	if f.TeacherID != "" {
		conds.add("teacher_id = ?", f.TeacherID)
	}
	if f.Weekday != 0 {
		conds.add("weekday = ?", int(f.Weekday))
	}
	var rows []slotRow
	if err := selectWhere(ctx, repo.db, &rows, "SELECT "+slotColumns+" FROM timetable_slots", conds, nil, "weekday ASC, start_time ASC"); err != nil {
		return nil, errors.Wrap(err, "querying timetable slots")
	}
	slots := make([]timetable.Slot, 0, len(rows))
	for _, r := range rows {
		slots = append(slots, r.slot())
	}
	return slots, nil
}

func (repo *timetableRepository) UpdateSlot(ctx context.Context, s timetable.Slot) (timetable.Slot, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE timetable_slots SET teacher_id = :teacher_id, room = :room, weekday = :weekday,
			start_time = :start_time, end_time = :end_time, updated_at = :updated_at
		WHERE id = :id`,
		newSlotRow(s))
	if err != nil {
		return timetable.Slot{}, errors.Wrap(err, "updating timetable slot")
	}
	return s, expectRows(res, timetable.ErrNotFound)
}

func (repo *timetableRepository) DeleteSlot(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM timetable_slots WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting timetable slot")
	}
	return expectRows(res, timetable.ErrNotFound)
}
