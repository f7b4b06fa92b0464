package timetable_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/class"
	"github.com/academia-hq/academia/core/timetable"
	testutil "github.com/academia-hq/academia/tests"
)

var (
	monday  = core.Weekday(time.Monday)
	tuesday = core.Weekday(time.Tuesday)
)

func TestSlot_Overlaps(t *testing.T) {
	s := timetable.Slot{Weekday: monday, Start: "08:00", End: "09:00"}
	tests := []struct {
		name string
		o    timetable.Slot
		want bool
	}{
		{"same", s, true},
		{"inside", timetable.Slot{Weekday: monday, Start: "08:15", End: "08:45"}, true},
		{"straddles start", timetable.Slot{Weekday: monday, Start: "07:30", End: "08:01"}, true},
		{"back to back", timetable.Slot{Weekday: monday, Start: "09:00", End: "10:00"}, false},
		{"ends at start", timetable.Slot{Weekday: monday, Start: "07:00", End: "08:00"}, false},
		{"other day", timetable.Slot{Weekday: tuesday, Start: "08:00", End: "09:00"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Overlaps(tt.o))
			assert.Equal(t, tt.want, tt.o.Overlaps(s))
		})
	}
}

func TestUpdateSlot_Validate(t *testing.T) {
	env := testutil.NewEnv(t)
	orig := timetable.Slot{Weekday: monday, Start: "08:00", End: "09:00"}

	start, end, room := " 08:15", "08:45 ", "  r2 "
	us := timetable.UpdateSlot{Start: &start, End: &end, Room: &room}
	require.NoError(t, us.Validate(orig, env.Validate))
	assert.Equal(t, "08:15", *us.Start)
	assert.Equal(t, "08:45", *us.End)
	assert.Equal(t, "r2", *us.Room)

	bad := "8h15"
	us = timetable.UpdateSlot{Start: &bad}
	assert.Error(t, us.Validate(orig, env.Validate))
}

func TestService_Create(t *testing.T) {
	env := testutil.NewEnv(t)
	school := testutil.NewSchool(t, env, "KIN")
	svc := env.Svcs.Timetable
	ctx := context.Background()

	ncl := class.NewClass{ProgramID: school.Program.ID, AcademicYearID: school.Year.ID, Name: "1B", Level: 1, Capacity: 30}
	require.NoError(t, ncl.Validate(ctx, env.Validate, env.Svcs.Class))
	c1b, err := env.Svcs.Class.Create(ctx, ncl)
	require.NoError(t, err)
	subjects1b, err := env.Svcs.Class.Subjects(ctx, c1b.ID)
	require.NoError(t, err)
	bySubject1b := make(map[string]class.ClassSubject, len(subjects1b))
	for _, cs := range subjects1b {
		bySubject1b[cs.SubjectCode] = cs
	}

	// the same teacher teaches maths to both classes
	for _, cs := range []class.ClassSubject{school.Subjects["MATH"], bySubject1b["MATH"]} {
		_, err = env.Svcs.Class.AssignTeacher(ctx, cs, class.AssignTeacher{TeacherID: school.Teacher.ID})
		require.NoError(t, err)
	}

	create := func(cs class.ClassSubject, room string, day core.Weekday, start, end string) (timetable.Slot, error) {
		t.Helper()
		ns := timetable.NewSlot{ClassSubjectID: cs.ID, Room: room, Weekday: day, Start: start, End: end}
		require.NoError(t, ns.Validate(env.Validate))
		return svc.Create(ctx, ns)
	}

	first, err := create(school.Subjects["MATH"], "R1", monday, "08:00", "09:00")
	require.NoError(t, err)
	assert.Equal(t, school.Teacher.ID, first.TeacherID, "the class subject teacher is the default")
	assert.Equal(t, school.Campus.ID, first.CampusID)

	tests := []struct {
		name   string
		cs     class.ClassSubject
		room   string
		start  string
		end    string
		detail string
	}{
		{"class", school.Subjects["PHYS"], "", "08:30", "09:30", "class already has a lesson on mon 08:00-09:00"},
		{"teacher", bySubject1b["MATH"], "R2", "08:45", "09:15", "teacher already teaches on mon 08:00-09:00"},
		{"room", bySubject1b["PHYS"], "r1", "07:30", "08:30", "room R1 is taken on mon 08:00-09:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name+" clash", func(t *testing.T) {
			_, err := create(tt.cs, tt.room, monday, tt.start, tt.end)
			require.Error(t, err)
			cerr, ok := err.(*core.ConflictError)
			require.True(t, ok, "want a conflict, got %v", err)
			assert.Equal(t, "timetable clash", cerr.Message)
			assert.Equal(t, []string{tt.detail}, cerr.Details)
		})
	}

	t.Run("back to back", func(t *testing.T) {
		_, err := create(bySubject1b["MATH"], "R1", monday, "09:00", "10:00")
		assert.NoError(t, err)
		_, err = create(school.Subjects["PHYS"], "", monday, "07:00", "08:00")
		assert.NoError(t, err)
	})

	t.Run("move", func(t *testing.T) {
		start := "09:30"
		us := timetable.UpdateSlot{Start: &start}
		assert.Error(t, us.Validate(first, env.Validate), "start after end")

		day := tuesday
		us = timetable.UpdateSlot{Weekday: &day}
		require.NoError(t, us.Validate(first, env.Validate))
		moved, err := svc.Update(ctx, first, us)
		require.NoError(t, err)
		assert.Equal(t, tuesday, moved.Weekday)

		// the freed monday hour can be booked
		_, err = create(school.Subjects["PHYS"], "", monday, "08:00", "09:00")
		assert.NoError(t, err)
	})

	t.Run("teacher of another campus", func(t *testing.T) {
		other := testutil.NewSchool(t, env, "GOM")
		ns := timetable.NewSlot{
			ClassSubjectID: school.Subjects["PHYS"].ID,
			TeacherID:      other.Teacher.ID,
			Weekday:        core.Weekday(time.Friday),
			Start:          "10:00",
			End:            "11:00",
		}
		require.NoError(t, ns.Validate(env.Validate))
		_, err := svc.Create(ctx, ns)
		verr, ok := err.(*core.ValidationError)
		require.True(t, ok, "want a validation error, got %v", err)
		assert.Equal(t, []core.FieldError{{Field: "teacher_id", Error: "teacher belongs to another campus"}}, verr.Fields)
	})

	week, err := svc.ClassWeek(ctx, school.Class.ID)
	require.NoError(t, err)
	require.Len(t, week, 3)
	assert.Equal(t, "07:00", week[0].Start)
	assert.Equal(t, "08:00", week[1].Start)
	assert.Equal(t, tuesday, week[2].Weekday)

	week, err = svc.TeacherWeek(ctx, school.Teacher.ID)
	require.NoError(t, err)
	require.Len(t, week, 2)
	assert.Equal(t, c1b.ID, week[0].ClassID)
	assert.Equal(t, school.Class.ID, week[1].ClassID)
}
