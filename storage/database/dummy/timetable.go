package dummydb

import (
	"context"

	"github.com/academia-hq/academia/core/timetable"
)

type timetableRepository struct {
	db *DB
}

var _ timetable.Repository = (*timetableRepository)(nil) // interface compliance check

func NewTimetableRepository(db *DB) *timetableRepository {
	return &timetableRepository{db: db}
}

func (repo *timetableRepository) CreateSlot(ctx context.Context, s timetable.Slot) (timetable.Slot, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.slots[s.ID] = s
	return s, nil
}

func (repo *timetableRepository) GetSlot(ctx context.Context, id string) (timetable.Slot, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.slots[id]; ok {
		return s, nil
	}
	return timetable.Slot{}, timetable.ErrNotFound
}

func (repo *timetableRepository) QuerySlots(ctx context.Context, f timetable.SlotFilter) ([]timetable.Slot, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	slots := filter(values(repo.db.slots), func(s timetable.Slot) bool {
		switch {
		case f.CampusID != "" && s.CampusID != f.CampusID,
			f.ClassID != "" && s.ClassID != f.ClassID,
			f.TeacherID != "" && s.TeacherID != f.TeacherID,
			f.Weekday != 0 && s.Weekday != f.Weekday:
			return false
		}
		return true
	})
	order(slots, nil, nil, func(a, b timetable.Slot) int {
		if c := cmpInt(int(a.Weekday), int(b.Weekday)); c != 0 {
			return c
		}
		return cmpString(a.Start, b.Start)
	})
	return slots, nil
}

func (repo *timetableRepository) UpdateSlot(ctx context.Context, s timetable.Slot) (timetable.Slot, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.slots[s.ID]; !ok {
		return timetable.Slot{}, timetable.ErrNotFound
	}
	repo.db.slots[s.ID] = s
	return s, nil
}

func (repo *timetableRepository) DeleteSlot(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.slots[id]; !ok {
		return timetable.ErrNotFound
	}
	delete(repo.db.slots, id)
	return nil
}
