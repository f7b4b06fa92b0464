package dummydb

import (
	"context"

	"github.com/academia-hq/academia/core/calendar"
)

type calendarRepository struct {
	db *DB
}

var _ calendar.Repository = (*calendarRepository)(nil) // interface compliance check

func NewCalendarRepository(db *DB) *calendarRepository {
	return &calendarRepository{db: db}
}

// unsetCurrent clears the current flag of the other years of a campus. The lock must be held.
func (db *DB) unsetCurrent(campusID, keepID string) {
	for id, y := range db.years {
		if y.CampusID == campusID && id != keepID && y.IsCurrent {
			y.IsCurrent = false
			db.years[id] = y
		}
	}
}

// deleteYear cascades to the year terms. The lock must be held.
func (db *DB) deleteYear(id string) {
	delete(db.years, id)
	for tid, t := range db.terms {
		if t.AcademicYearID == id {
			delete(db.terms, tid)
		}
	}
}

func (repo *calendarRepository) CreateAcademicYear(ctx context.Context, y calendar.AcademicYear) (calendar.AcademicYear, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if y.IsCurrent {
		repo.db.unsetCurrent(y.CampusID, y.ID)
	}
	repo.db.years[y.ID] = y
	return y, nil
}

func (repo *calendarRepository) GetAcademicYear(ctx context.Context, id string) (calendar.AcademicYear, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if y, ok := repo.db.years[id]; ok {
		return y, nil
	}
	return calendar.AcademicYear{}, calendar.ErrYearNotFound
}

func (repo *calendarRepository) GetCurrentAcademicYear(ctx context.Context, campusID string) (calendar.AcademicYear, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, y := range repo.db.years {
		if y.CampusID == campusID && y.IsCurrent {
			return y, nil
		}
	}
	return calendar.AcademicYear{}, calendar.ErrNoCurrentYear
}

func (repo *calendarRepository) QueryAcademicYears(ctx context.Context, campusID string) ([]calendar.AcademicYear, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	years := filter(values(repo.db.years), func(y calendar.AcademicYear) bool {
		return campusID == "" || y.CampusID == campusID
	})
	order(years, nil, nil, func(a, b calendar.AcademicYear) int { return -cmpTime(a.StartsOn.Time, b.StartsOn.Time) })
	return years, nil
}

func (repo *calendarRepository) SetCurrentAcademicYear(ctx context.Context, id string) (calendar.AcademicYear, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	y, ok := repo.db.years[id]
	if !ok {
		return calendar.AcademicYear{}, calendar.ErrYearNotFound
	}
	repo.db.unsetCurrent(y.CampusID, y.ID)
	y.IsCurrent = true
	repo.db.years[id] = y
	return y, nil
}

func (repo *calendarRepository) CreateTerm(ctx context.Context, t calendar.Term) (calendar.Term, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.years[t.AcademicYearID]; !ok {
		return calendar.Term{}, calendar.ErrYearNotFound
	}
	repo.db.terms[t.ID] = t
	return t, nil
}

func (repo *calendarRepository) GetTerm(ctx context.Context, id string) (calendar.Term, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if t, ok := repo.db.terms[id]; ok {
		return t, nil
	}
	return calendar.Term{}, calendar.ErrTermNotFound
}

func (repo *calendarRepository) QueryTerms(ctx context.Context, yearID string) ([]calendar.Term, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	terms := filter(values(repo.db.terms), func(t calendar.Term) bool { return t.AcademicYearID == yearID })
	order(terms, nil, nil, func(a, b calendar.Term) int { return cmpInt(a.Sequence, b.Sequence) })
	return terms, nil
}

func (repo *calendarRepository) CreateEvent(ctx context.Context, e calendar.Event) (calendar.Event, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.events[e.ID] = e
	return e, nil
}

func (repo *calendarRepository) GetEvent(ctx context.Context, id string) (calendar.Event, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if e, ok := repo.db.events[id]; ok {
		return e, nil
	}
	return calendar.Event{}, calendar.ErrEventNotFound
}

func (repo *calendarRepository) QueryEvents(ctx context.Context, f calendar.EventFilter) ([]calendar.Event, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	events := filter(values(repo.db.events), func(e calendar.Event) bool {
		if f.CampusID != "" && e.CampusID != f.CampusID {
			return false
		}
		if f.ClassID != "" && e.ClassID != "" && e.ClassID != f.ClassID {
			return false
		}
		if f.Kind != "" && e.Kind != f.Kind {
			return false
		}
		if !f.To.IsZero() && !e.StartsAt.Before(f.To) {
			return false
		}
		return f.From.IsZero() || !e.EndsAt.Before(f.From)
	})
	order(events, nil, nil, func(a, b calendar.Event) int { return cmpTime(a.StartsAt, b.StartsAt) })
	return events, nil
}

func (repo *calendarRepository) DeleteEvent(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.events[id]; !ok {
		return calendar.ErrEventNotFound
	}
	delete(repo.db.events, id)
	return nil
}
