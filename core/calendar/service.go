package calendar

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/campus"
)

var (
	// errors
	ErrYearNotFound   = core.NewNotFoundError("academic year not found")
	ErrTermNotFound   = core.NewNotFoundError("term not found")
	ErrEventNotFound  = core.NewNotFoundError("event not found")
	ErrNoCurrentYear  = core.NewNotFoundError("campus has no current academic year")
	ErrYearNameExists = errors.New("an academic year with this name already exists in the campus")
)

type (
	Repository interface {
		// CreateAcademicYear unsets the previous current year of the campus when y.IsCurrent.
		CreateAcademicYear(ctx context.Context, y AcademicYear) (AcademicYear, error)
		GetAcademicYear(ctx context.Context, id string) (AcademicYear, error)
		GetCurrentAcademicYear(ctx context.Context, campusID string) (AcademicYear, error)
		// QueryAcademicYears returns the years of a campus (every campus when empty), latest first.
		QueryAcademicYears(ctx context.Context, campusID string) ([]AcademicYear, error)
		// SetCurrentAcademicYear atomically makes the year the only current one of its campus.
		SetCurrentAcademicYear(ctx context.Context, id string) (AcademicYear, error)

		CreateTerm(ctx context.Context, t Term) (Term, error)
		GetTerm(ctx context.Context, id string) (Term, error)
		// QueryTerms returns the terms of a year ordered by sequence.
		QueryTerms(ctx context.Context, yearID string) ([]Term, error)

		CreateEvent(ctx context.Context, e Event) (Event, error)
		GetEvent(ctx context.Context, id string) (Event, error)
		// QueryEvents returns the events matching the filter ordered by start.
		QueryEvents(ctx context.Context, filter EventFilter) ([]Event, error)
		DeleteEvent(ctx context.Context, id string) error
	}

	CampusGetter interface {
		Get(ctx context.Context, id string) (campus.Campus, error)
	}

	// ClassLookup resolves the campus of a class.
	ClassLookup interface {
		ClassCampus(ctx context.Context, classID string) (string, error)
	}

	Service struct {
		repo     Repository
		campuses CampusGetter
		classes  ClassLookup
	}
)

func NewService(repo Repository, campuses CampusGetter, classes ClassLookup) *Service {
	return &Service{repo: repo, campuses: campuses, classes: classes}
}

func (svc *Service) CreateAcademicYear(ctx context.Context, ny NewAcademicYear) (AcademicYear, error) {
	now := core.Now()
	return svc.repo.CreateAcademicYear(ctx, AcademicYear{
		ID:        core.NewID(),
		CampusID:  ny.CampusID,
		Name:      ny.Name,
		StartsOn:  ny.StartsOn,
		EndsOn:    ny.EndsOn,
		IsCurrent: ny.IsCurrent,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *Service) GetAcademicYear(ctx context.Context, id string) (AcademicYear, error) {
	if !core.IsValidID(id) {
		return AcademicYear{}, ErrYearNotFound
	}
	return svc.repo.GetAcademicYear(ctx, id)
}

func (svc *Service) CurrentAcademicYear(ctx context.Context, campusID string) (AcademicYear, error) {
	return svc.repo.GetCurrentAcademicYear(ctx, campusID)
}

func (svc *Service) AcademicYears(ctx context.Context, campusID string) ([]AcademicYear, error) {
	return svc.repo.QueryAcademicYears(ctx, campusID)
}

func (svc *Service) SetCurrentAcademicYear(ctx context.Context, id string) (AcademicYear, error) {
	if !core.IsValidID(id) {
		return AcademicYear{}, ErrYearNotFound
	}
	return svc.repo.SetCurrentAcademicYear(ctx, id)
}

func (svc *Service) AddTerm(ctx context.Context, year AcademicYear, nt NewTerm) (Term, error) {
	now := core.Now()
	return svc.repo.CreateTerm(ctx, Term{
		ID:             core.NewID(),
		AcademicYearID: year.ID,
		Name:           nt.Name,
		Sequence:       nt.Sequence,
		StartsOn:       nt.StartsOn,
		EndsOn:         nt.EndsOn,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
}

func (svc *Service) GetTerm(ctx context.Context, id string) (Term, error) {
	if !core.IsValidID(id) {
		return Term{}, ErrTermNotFound
	}
	return svc.repo.GetTerm(ctx, id)
}

func (svc *Service) Terms(ctx context.Context, yearID string) ([]Term, error) {
	return svc.repo.QueryTerms(ctx, yearID)
}

func (svc *Service) CreateEvent(ctx context.Context, ne NewEvent) (Event, error) {
	now := core.Now()
	return svc.repo.CreateEvent(ctx, Event{
		ID:          core.NewID(),
		CampusID:    ne.CampusID,
		ClassID:     ne.ClassID,
		Title:       ne.Title,
		Description: ne.Description,
		Kind:        ne.Kind,
		StartsAt:    ne.StartsAt,
		EndsAt:      ne.EndsAt,
		AllDay:      ne.AllDay,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *Service) GetEvent(ctx context.Context, id string) (Event, error) {
	if !core.IsValidID(id) {
		return Event{}, ErrEventNotFound
	}
	return svc.repo.GetEvent(ctx, id)
}

// Events returns the events in range. A zero To defaults to 31 days after From, a zero From to now.
func (svc *Service) Events(ctx context.Context, filter EventFilter) ([]Event, error) {
	if filter.From.IsZero() {
		filter.From = core.Now()
	}
	if filter.To.IsZero() {
		filter.To = filter.From.AddDate(0, 0, 31)
	}
	if !filter.To.After(filter.From) {
		return nil, core.NewFieldError("to", "must be after from")
	}
	return svc.repo.QueryEvents(ctx, filter)
}

func (svc *Service) DeleteEvent(ctx context.Context, id string) error {
	return svc.repo.DeleteEvent(ctx, id)
}

// IsSchoolDay reports whether classes are held on d at the campus: a working day, inside a term of
// the academic year containing it, and not covered by a campus-wide holiday.
func (svc *Service) IsSchoolDay(ctx context.Context, campusID string, d core.Date) (SchoolDay, error) {
	res := SchoolDay{Date: d}
	cmp, err := svc.campuses.Get(ctx, campusID)
	if err != nil {
		return res, err
	}
	if !cmp.IsWorkingDay(core.WeekdayOf(d)) {
		res.Reason = "not a working day"
		return res, nil
	}

	years, err := svc.repo.QueryAcademicYears(ctx, campusID)
	if err != nil {
		return res, err
	}
	inTerm := false
	for _, y := range years {
		if !y.Contains(d) {
			continue
		}
		terms, err := svc.repo.QueryTerms(ctx, y.ID)
		if err != nil {
			return res, err
		}
		for _, t := range terms {
			if t.Contains(d) {
				inTerm = true
				break
			}
		}
		break
	}
	if !inTerm {
		res.Reason = "outside of terms"
		return res, nil
	}

	loc := cmp.Location()
	dayStart := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	holidays, err := svc.repo.QueryEvents(ctx, EventFilter{
		CampusID: campusID,
		Kind:     KindHoliday,
		From:     dayStart.UTC(),
		To:       dayStart.AddDate(0, 0, 1).UTC(),
	})
	if err != nil {
		return res, err
	}
	for _, h := range holidays {
		if h.ClassID == "" {
			res.Reason = "holiday: " + h.Title
			return res, nil
		}
	}
	res.IsSchoolDay = true
	return res, nil
}

