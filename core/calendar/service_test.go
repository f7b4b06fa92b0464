package calendar_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/calendar"
	testutil "github.com/academia-hq/academia/tests"
)

func fieldErrors(t *testing.T, err error) []core.FieldError {
	t.Helper()

	verr, ok := err.(*core.ValidationError)
	require.True(t, ok, "want a validation error, got %v", err)
	return verr.Fields
}

func TestService_AcademicYears(t *testing.T) {
	env := testutil.NewEnv(t)
	school := testutil.NewSchool(t, env, "KIN")
	svc := env.Svcs.Calendar
	ctx := context.Background()

	tests := []struct {
		name string
		ny   calendar.NewAcademicYear
		want core.FieldError
	}{
		{
			name: "name exists",
			ny:   calendar.NewAcademicYear{Name: "2025-2026", StartsOn: core.NewDate(2026, time.September, 1), EndsOn: core.NewDate(2027, time.July, 1)},
			want: core.FieldError{Field: "name", Error: calendar.ErrYearNameExists.Error()},
		},
		{
			name: "overlap",
			ny:   calendar.NewAcademicYear{Name: "Next", StartsOn: core.NewDate(2026, time.July, 1), EndsOn: core.NewDate(2027, time.July, 1)},
			want: core.FieldError{Field: "starts_on", Error: "overlaps academic year 2025-2026"},
		},
		{
			name: "ends before it starts",
			ny:   calendar.NewAcademicYear{Name: "Next", StartsOn: core.NewDate(2027, time.July, 1), EndsOn: core.NewDate(2026, time.September, 1)},
			want: core.FieldError{Field: "ends_on", Error: "must be after starts_on"},
		},
		{
			name: "unknown campus",
			ny:   calendar.NewAcademicYear{CampusID: core.NewID(), Name: "Next", StartsOn: core.NewDate(2026, time.September, 1), EndsOn: core.NewDate(2027, time.July, 1)},
			want: core.FieldError{Field: "campus_id", Error: "campus not found"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.ny.CampusID == "" {
				tt.ny.CampusID = school.Campus.ID
			}
			err := tt.ny.Validate(ctx, env.Validate, svc)
			assert.Equal(t, []core.FieldError{tt.want}, fieldErrors(t, err))
		})
	}

	ny := calendar.NewAcademicYear{
		CampusID: school.Campus.ID,
		Name:     " 2026-2027 ",
		StartsOn: core.NewDate(2026, time.September, 1),
		EndsOn:   core.NewDate(2027, time.July, 15),
	}
	require.NoError(t, ny.Validate(ctx, env.Validate, svc))
	next, err := svc.CreateAcademicYear(ctx, ny)
	require.NoError(t, err)
	assert.Equal(t, "2026-2027", next.Name)
	assert.False(t, next.IsCurrent)

	years, err := svc.AcademicYears(ctx, school.Campus.ID)
	require.NoError(t, err)
	require.Len(t, years, 2)
	assert.Equal(t, next.ID, years[0].ID, "latest first")

	current, err := svc.CurrentAcademicYear(ctx, school.Campus.ID)
	require.NoError(t, err)
	assert.Equal(t, school.Year.ID, current.ID)

	// a campus has a single current year
	_, err = svc.SetCurrentAcademicYear(ctx, next.ID)
	require.NoError(t, err)
	current, err = svc.CurrentAcademicYear(ctx, school.Campus.ID)
	require.NoError(t, err)
	assert.Equal(t, next.ID, current.ID)
	prev, err := svc.GetAcademicYear(ctx, school.Year.ID)
	require.NoError(t, err)
	assert.False(t, prev.IsCurrent)

	_, err = svc.SetCurrentAcademicYear(ctx, "lol")
	assert.Equal(t, calendar.ErrYearNotFound, err)

	other := testutil.NewSchool(t, env, "GOM")
	current, err = svc.CurrentAcademicYear(ctx, school.Campus.ID)
	require.NoError(t, err)
	assert.Equal(t, next.ID, current.ID, "other campuses keep their own current year")
	assert.True(t, other.Year.IsCurrent)
}

func TestService_Terms(t *testing.T) {
	env := testutil.NewEnv(t)
	school := testutil.NewSchool(t, env, "KIN")
	svc := env.Svcs.Calendar
	ctx := context.Background()

	tests := []struct {
		name string
		nt   calendar.NewTerm
		want core.FieldError
	}{
		{
			name: "sequence taken",
			nt:   calendar.NewTerm{Name: "Term 2", Sequence: 1, StartsOn: core.NewDate(2026, time.January, 5), EndsOn: core.NewDate(2026, time.March, 27)},
			want: core.FieldError{Field: "sequence", Error: "another term has this sequence"},
		},
		{
			name: "overlap",
			nt:   calendar.NewTerm{Name: "Term 2", Sequence: 2, StartsOn: core.NewDate(2025, time.December, 1), EndsOn: core.NewDate(2026, time.March, 27)},
			want: core.FieldError{Field: "starts_on", Error: "overlaps term Term 1"},
		},
		{
			name: "outside the year",
			nt:   calendar.NewTerm{Name: "Term 4", Sequence: 4, StartsOn: core.NewDate(2026, time.July, 1), EndsOn: core.NewDate(2026, time.August, 20)},
			want: core.FieldError{Field: "starts_on", Error: "term must lie inside the academic year"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nt.Validate(ctx, school.Year, env.Validate, svc)
			assert.Equal(t, []core.FieldError{tt.want}, fieldErrors(t, err))
		})
	}

	nt := calendar.NewTerm{Name: "Term 2", Sequence: 2, StartsOn: core.NewDate(2026, time.January, 5), EndsOn: core.NewDate(2026, time.March, 27)}
	require.NoError(t, nt.Validate(ctx, school.Year, env.Validate, svc))
	term2, err := svc.AddTerm(ctx, school.Year, nt)
	require.NoError(t, err)

	terms, err := svc.Terms(ctx, school.Year.ID)
	require.NoError(t, err)
	require.Len(t, terms, 2)
	assert.Equal(t, school.Term.ID, terms[0].ID)
	assert.Equal(t, term2.ID, terms[1].ID)

	day, err := svc.IsSchoolDay(ctx, school.Campus.ID, core.NewDate(2026, time.January, 5))
	require.NoError(t, err)
	assert.True(t, day.IsSchoolDay)

	// christmas break, between terms
	day, err = svc.IsSchoolDay(ctx, school.Campus.ID, core.NewDate(2025, time.December, 29))
	require.NoError(t, err)
	assert.Equal(t, "outside of terms", day.Reason)
}

func TestService_Events(t *testing.T) {
	env := testutil.NewEnv(t)
	school := testutil.NewSchool(t, env, "KIN")
	svc := env.Svcs.Calendar
	ctx := context.Background()
	loc, err := time.LoadLocation("Africa/Kinshasa")
	require.NoError(t, err)

	create := func(ne calendar.NewEvent) calendar.Event {
		t.Helper()
		require.NoError(t, ne.Validate(ctx, env.Validate, svc))
		e, err := svc.CreateEvent(ctx, ne)
		require.NoError(t, err)
		return e
	}

	// all-day events span the whole local day
	holiday := create(calendar.NewEvent{
		CampusID: school.Campus.ID,
		Title:    "Independence day",
		Kind:     "HOLIDAY",
		StartsAt: time.Date(2025, time.October, 8, 15, 0, 0, 0, loc),
		EndsAt:   time.Date(2025, time.October, 8, 16, 0, 0, 0, loc),
		AllDay:   true,
	})
	assert.Equal(t, calendar.KindHoliday, holiday.Kind)
	assert.True(t, time.Date(2025, time.October, 7, 23, 0, 0, 0, time.UTC).Equal(holiday.StartsAt), holiday.StartsAt)
	assert.True(t, time.Date(2025, time.October, 8, 22, 59, 59, 0, time.UTC).Equal(holiday.EndsAt), holiday.EndsAt)

	// a class trip does not close the school
	create(calendar.NewEvent{
		CampusID: school.Campus.ID,
		ClassID:  school.Class.ID,
		Title:    "Museum",
		Kind:     calendar.KindHoliday,
		StartsAt: time.Date(2025, time.October, 9, 8, 0, 0, 0, loc),
		EndsAt:   time.Date(2025, time.October, 9, 12, 0, 0, 0, loc),
	})
	day, err := svc.IsSchoolDay(ctx, school.Campus.ID, core.NewDate(2025, time.October, 9))
	require.NoError(t, err)
	assert.True(t, day.IsSchoolDay)

	day, err = svc.IsSchoolDay(ctx, school.Campus.ID, core.NewDate(2025, time.October, 8))
	require.NoError(t, err)
	assert.Equal(t, "holiday: Independence day", day.Reason)

	events, err := svc.Events(ctx, calendar.EventFilter{
		CampusID: school.Campus.ID,
		From:     time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, holiday.ID, events[0].ID)

	events, err = svc.Events(ctx, calendar.EventFilter{
		CampusID: school.Campus.ID,
		From:     time.Date(2025, time.November, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Empty(t, events, "the default range is 31 days")

	_, err = svc.Events(ctx, calendar.EventFilter{
		From: time.Date(2025, time.November, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.Equal(t, []core.FieldError{{Field: "to", Error: "must be after from"}}, fieldErrors(t, err))

	other := testutil.NewSchool(t, env, "GOM")
	ne := calendar.NewEvent{
		CampusID: other.Campus.ID,
		ClassID:  school.Class.ID,
		Title:    "Trip",
		Kind:     calendar.KindActivity,
		StartsAt: time.Date(2025, time.October, 9, 8, 0, 0, 0, loc),
		EndsAt:   time.Date(2025, time.October, 9, 7, 0, 0, 0, loc),
	}
	assert.Equal(t, []core.FieldError{{Field: "ends_at", Error: "must not be before starts_at"}}, fieldErrors(t, ne.Validate(ctx, env.Validate, svc)))
	ne.EndsAt = ne.StartsAt.Add(time.Hour)
	assert.Equal(t, []core.FieldError{{Field: "class_id", Error: "class belongs to another campus"}}, fieldErrors(t, ne.Validate(ctx, env.Validate, svc)))

	require.NoError(t, svc.DeleteEvent(ctx, holiday.ID))
	_, err = svc.GetEvent(ctx, holiday.ID)
	assert.True(t, core.IsNotFound(err))
}
