package sqlxrepos_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/assessment"
	"github.com/academia-hq/academia/core/calendar"
	"github.com/academia-hq/academia/core/campus"
	"github.com/academia-hq/academia/core/grade"
	"github.com/academia-hq/academia/core/knowledge"
	"github.com/academia-hq/academia/core/permission"
	"github.com/academia-hq/academia/core/timetable"
	"github.com/academia-hq/academia/core/user"
	testutil "github.com/academia-hq/academia/tests"
)

// These tests run the services on postgres; see testutil.NewSQLEnv.

func TestSchool(t *testing.T) {
	env := testutil.NewSQLEnv(t)
	school := testutil.NewSchool(t, env, "KIN")
	ctx := context.Background()

	got, err := env.Svcs.Campus.Get(ctx, school.Campus.ID)
	require.NoError(t, err)
	assert.Equal(t, core.DefaultWorkingDays, got.WorkingDays)

	nc := campus.NewCampus{Name: "Other", Code: "kin", Timezone: "UTC"}
	assert.Error(t, nc.Validate(ctx, env.Validate, env.Svcs.Campus), "campus codes are unique")

	years, err := env.Svcs.Calendar.AcademicYears(ctx, school.Campus.ID)
	require.NoError(t, err)
	require.Len(t, years, 1)
	assert.True(t, years[0].StartsOn.Equal(core.NewDate(2025, time.September, 1)))

	assert.Len(t, school.Subjects, 2)
	_, pupil := testutil.EnrollStudent(t, env, school, "pupil")
	enrolled, err := env.Svcs.Class.IsEnrolled(ctx, school.Class.ID, pupil.ID)
	require.NoError(t, err)
	assert.True(t, enrolled)

	testutil.AddSubject(t, env, school.Program, "BIO", 1, 1)
	res, err := env.Svcs.Class.SyncSubjects(ctx, school.Class)
	require.NoError(t, err)
	assert.Equal(t, []string{"BIO"}, res.Added)

	ne := calendar.NewEvent{
		CampusID: school.Campus.ID,
		Title:    "Independence day",
		Kind:     calendar.KindHoliday,
		StartsAt: time.Date(2025, time.October, 8, 0, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2025, time.October, 8, 1, 0, 0, 0, time.UTC),
		AllDay:   true,
	}
	require.NoError(t, ne.Validate(ctx, env.Validate, env.Svcs.Calendar))
	_, err = env.Svcs.Calendar.CreateEvent(ctx, ne)
	require.NoError(t, err)
	day, err := env.Svcs.Calendar.IsSchoolDay(ctx, school.Campus.ID, core.NewDate(2025, time.October, 8))
	require.NoError(t, err)
	assert.False(t, day.IsSchoolDay)
}

func TestTimetable(t *testing.T) {
	env := testutil.NewSQLEnv(t)
	school := testutil.NewSchool(t, env, "KIN")
	ctx := context.Background()

	create := func(code, start, end string) error {
		ns := timetable.NewSlot{
			ClassSubjectID: school.Subjects[code].ID,
			TeacherID:      school.Teacher.ID,
			Room:           "R1",
			Weekday:        core.Weekday(time.Monday),
			Start:          start,
			End:            end,
		}
		require.NoError(t, ns.Validate(env.Validate))
		_, err := env.Svcs.Timetable.Create(ctx, ns)
		return err
	}
	require.NoError(t, create("MATH", "08:00", "09:00"))
	require.NoError(t, create("PHYS", "09:00", "10:00"))

	err := create("PHYS", "08:30", "09:30")
	cerr, ok := err.(*core.ConflictError)
	require.True(t, ok, "want a conflict, got %v", err)
	assert.NotEmpty(t, cerr.Details)

	week, err := env.Svcs.Timetable.TeacherWeek(ctx, school.Teacher.ID)
	require.NoError(t, err)
	require.Len(t, week, 2)
	assert.Equal(t, "08:00", week[0].Start)
}

func TestGrades(t *testing.T) {
	env := testutil.NewSQLEnv(t)
	school := testutil.NewSchool(t, env, "KIN")
	svc := env.Svcs.Grade
	ctx := context.Background()

	ss := assessment.SaveSystem{Components: []assessment.Component{
		{Code: "exam", Name: "Exam", Weight: 60},
		{Code: "homework", Name: "Homework", Weight: 40},
	}}
	require.NoError(t, ss.Validate(env.Validate))
	_, err := env.Svcs.Assessment.Save(ctx, assessment.ScopeProgram, school.Program.ID, ss)
	require.NoError(t, err)

	admin := testutil.CreateUser(t, env.Repos.User, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	_, pupil := testutil.EnrollStudent(t, env, school, "pupil")

	record := func(component string, score float64) grade.Grade {
		t.Helper()
		ng := grade.NewGrade{
			StudentID:      pupil.ID,
			ClassSubjectID: school.Subjects["MATH"].ID,
			TermID:         school.Term.ID,
			Component:      component,
			Score:          testutil.FloatPtr(score),
		}
		require.NoError(t, ng.Validate(env.Validate))
		g, err := svc.Record(ctx, ng, admin)
		require.NoError(t, err)
		return g
	}
	record("exam", 10)
	exam := record("exam", 16)
	record("homework", 12)

	history, err := svc.History(ctx, exam.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	_, err = svc.Publish(ctx, school.Class, school.Term.ID, admin)
	require.NoError(t, err)
	_, err = svc.Publish(ctx, school.Class, school.Term.ID, admin)
	assert.Equal(t, grade.ErrAlreadyPublished, err)

	rep, err := svc.Report(ctx, pupil.ID, school.Class.ID, school.Term.ID, true)
	require.NoError(t, err)
	assert.True(t, rep.Published)
	require.NotEmpty(t, rep.Subjects)
	for _, res := range rep.Subjects {
		if res.SubjectCode == "MATH" {
			require.NotNil(t, res.Score)
			assert.Equal(t, 14.4, *res.Score)
		}
	}

	// deleting a student removes their grades
	require.NoError(t, env.Svcs.Student.Delete(ctx, pupil.ID))
	grades, err := svc.Query(ctx, &grade.QueryFilter{ClassSubjectID: school.Subjects["MATH"].ID})
	require.NoError(t, err)
	assert.Empty(t, grades)
}

func TestGrades_concurrentRecord(t *testing.T) {
	env := testutil.NewSQLEnv(t)
	school := testutil.NewSchool(t, env, "KIN")
	ctx := context.Background()

	admin := testutil.CreateUser(t, env.Repos.User, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	_, pupil := testutil.EnrollStudent(t, env, school, "pupil")

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 1; i <= n; i++ {
		ng := grade.NewGrade{
			StudentID:      pupil.ID,
			ClassSubjectID: school.Subjects["MATH"].ID,
			TermID:         school.Term.ID,
			Component:      assessment.DefaultComponent,
			Score:          testutil.FloatPtr(float64(i)),
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.Svcs.Grade.Record(ctx, ng, admin)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	grades, err := env.Svcs.Grade.Query(ctx, &grade.QueryFilter{StudentID: pupil.ID})
	require.NoError(t, err)
	require.Len(t, grades, 1)
	history, err := env.Svcs.Grade.History(ctx, grades[0].ID)
	require.NoError(t, err)
	require.Len(t, history, n)

	created, overwritten := 0, map[float64]bool{}
	for _, h := range history {
		if h.Action == grade.ActionCreated {
			created++
			continue
		}
		require.NotNil(t, h.OldScore)
		overwritten[*h.OldScore] = true
	}
	assert.Equal(t, 1, created)
	assert.Len(t, overwritten, n-1, "every overwritten score is in the trail")
	assert.False(t, overwritten[grades[0].Score])
}

func TestPermissions(t *testing.T) {
	env := testutil.NewSQLEnv(t)
	svc := env.Svcs.Permission
	ctx := context.Background()

	n, err := svc.EnsureDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	teacher := testutil.CreateUser(t, env.Repos.User, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	ok, err := svc.Can(ctx, teacher, permission.GradeWrite)
	require.NoError(t, err)
	assert.True(t, ok)

	templates, err := svc.Query(ctx)
	require.NoError(t, err)
	assert.Len(t, templates, 4)
}

func TestKnowledge(t *testing.T) {
	env := testutil.NewSQLEnv(t)
	svc := env.Svcs.Knowledge
	ctx := context.Background()

	nd := knowledge.NewDocument{Title: "Handbook"}
	require.NoError(t, nd.Validate(env.Validate))
	d, created, err := svc.Upload(ctx, nd, strings.NewReader("# Homework\nHomework is due every Monday.\n"), "handbook.md", "")
	require.NoError(t, err)
	require.True(t, created)
	require.NoError(t, svc.Process(ctx, d.ID))

	hits, err := svc.Search(ctx, knowledge.SearchQuery{Q: "homework monday"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, d.ID, hits[0].DocumentID)

	require.NoError(t, svc.Delete(ctx, d))
	hits, err = svc.Search(ctx, knowledge.SearchQuery{Q: "homework"})
	require.NoError(t, err)
	assert.Empty(t, hits)
}
