package calendar

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/academia-hq/academia/core"
)

// Event kinds
const (
	KindHoliday  = "holiday"
	KindExam     = "exam"
	KindMeeting  = "meeting"
	KindActivity = "activity"
)

var EventKinds = []string{KindHoliday, KindExam, KindMeeting, KindActivity}

type AcademicYear struct {
	ID        string    `json:"id"`
	CampusID  string    `json:"campus_id"`
	Name      string    `json:"name"`
	StartsOn  core.Date `json:"starts_on"`
	EndsOn    core.Date `json:"ends_on"`
	IsCurrent bool      `json:"is_current"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (y AcademicYear) Contains(d core.Date) bool {
	return d.Within(y.StartsOn, y.EndsOn)
}

type Term struct {
	ID             string    `json:"id"`
	AcademicYearID string    `json:"academic_year_id"`
	Name           string    `json:"name"`
	Sequence       int       `json:"sequence"`
	StartsOn       core.Date `json:"starts_on"`
	EndsOn         core.Date `json:"ends_on"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (t Term) Contains(d core.Date) bool {
	return d.Within(t.StartsOn, t.EndsOn)
}

// Event is campus-wide unless ClassID is set.
type Event struct {
	ID          string    `json:"id"`
	CampusID    string    `json:"campus_id"`
	ClassID     string    `json:"class_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Kind        string    `json:"kind"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	AllDay      bool      `json:"all_day"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewAcademicYear contains information needed to create a new AcademicYear.
type NewAcademicYear struct {
	CampusID  string    `json:"campus_id" validate:"required,uuid"`
	Name      string    `json:"name" validate:"required,notblank,max=64"`
	StartsOn  core.Date `json:"starts_on" validate:"required"`
	EndsOn    core.Date `json:"ends_on" validate:"required"`
	IsCurrent bool      `json:"is_current"`
}

func (ny *NewAcademicYear) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	ny.Name = core.CleanString(ny.Name)
	if err := validate.Struct(ny); err != nil {
		return err
	}
	if !ny.StartsOn.Before(ny.EndsOn) {
		return core.NewFieldError("ends_on", "must be after starts_on")
	}
	if _, err := svc.campuses.Get(ctx, ny.CampusID); err != nil {
		if core.IsNotFound(err) {
			return core.NewFieldError("campus_id", "campus not found")
		}
		return err
	}
	years, err := svc.repo.QueryAcademicYears(ctx, ny.CampusID)
	if err != nil {
		return err
	}
	for _, y := range years {
		if y.Name == ny.Name {
			return core.NewFieldError("name", ErrYearNameExists.Error())
		}
		if ny.StartsOn.Within(y.StartsOn, y.EndsOn) || y.StartsOn.Within(ny.StartsOn, ny.EndsOn) {
			return core.NewFieldError("starts_on", "overlaps academic year "+y.Name)
		}
	}
	return nil
}

// NewTerm contains information needed to add a Term to an AcademicYear.
type NewTerm struct {
	Name     string    `json:"name" validate:"required,notblank,max=64"`
	Sequence int       `json:"sequence" validate:"required,min=1,max=12"`
	StartsOn core.Date `json:"starts_on" validate:"required"`
	EndsOn   core.Date `json:"ends_on" validate:"required"`
}

func (nt *NewTerm) Validate(ctx context.Context, year AcademicYear, validate *validator.Validate, svc *Service) error {
	nt.Name = core.CleanString(nt.Name)
	if err := validate.Struct(nt); err != nil {
		return err
	}
	if !nt.StartsOn.Before(nt.EndsOn) {
		return core.NewFieldError("ends_on", "must be after starts_on")
	}
	if !year.Contains(nt.StartsOn) || !year.Contains(nt.EndsOn) {
		return core.NewFieldError("starts_on", "term must lie inside the academic year")
	}
	terms, err := svc.repo.QueryTerms(ctx, year.ID)
	if err != nil {
		return err
	}
	for _, t := range terms {
		if t.Sequence == nt.Sequence {
			return core.NewFieldError("sequence", "another term has this sequence")
		}
		if nt.StartsOn.Within(t.StartsOn, t.EndsOn) || t.StartsOn.Within(nt.StartsOn, nt.EndsOn) {
			return core.NewFieldError("starts_on", "overlaps term "+t.Name)
		}
	}
	return nil
}

// NewEvent contains information needed to schedule an Event.
type NewEvent struct {
	CampusID    string    `json:"campus_id" validate:"required,uuid"`
	ClassID     string    `json:"class_id" validate:"omitempty,uuid"`
	Title       string    `json:"title" validate:"required,notblank,max=128"`
	Description string    `json:"description" validate:"max=2048"`
	Kind        string    `json:"kind" validate:"required,oneof=holiday exam meeting activity"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at" validate:"required"`
	AllDay      bool      `json:"all_day"`
}

func (ne *NewEvent) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	ne.Title = core.CleanString(ne.Title)
	ne.Description = core.CleanString(ne.Description)
	ne.Kind = core.CleanString(ne.Kind, true)
	if err := validate.Struct(ne); err != nil {
		return err
	}
	if ne.EndsAt.Before(ne.StartsAt) {
		return core.NewFieldError("ends_at", "must not be before starts_at")
	}
	cmp, err := svc.campuses.Get(ctx, ne.CampusID)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewFieldError("campus_id", "campus not found")
		}
		return err
	}
	if ne.ClassID != "" {
		campusID, err := svc.classes.ClassCampus(ctx, ne.ClassID)
		if err != nil {
			if core.IsNotFound(err) {
				return core.NewFieldError("class_id", "class not found")
			}
			return err
		}
		if campusID != ne.CampusID {
			return core.NewFieldError("class_id", "class belongs to another campus")
		}
	}
	if ne.AllDay {
		loc := cmp.Location()
		start := ne.StartsAt.In(loc)
		end := ne.EndsAt.In(loc)
		ne.StartsAt = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
		ne.EndsAt = time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, loc)
	}
	ne.StartsAt = ne.StartsAt.UTC()
	ne.EndsAt = ne.EndsAt.UTC()
	return nil
}

// EventFilter selects the events overlapping [From, To).
// With ClassID set, campus-wide events are included.
type EventFilter struct {
	CampusID string    `query:"campus_id"`
	ClassID  string    `query:"class_id"`
	Kind     string    `query:"kind"`
	From     time.Time `query:"from"`
	To       time.Time `query:"to"`
}

func (ef *EventFilter) Clean() {
	ef.Kind = core.CleanString(ef.Kind, true)
}

// SchoolDay answers IsSchoolDay; Reason explains a day off.
type SchoolDay struct {
	Date        core.Date `json:"date"`
	IsSchoolDay bool      `json:"is_school_day"`
	Reason      string    `json:"reason,omitempty"`
}
