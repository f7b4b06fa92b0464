// Package testutil builds service environments & school fixtures for tests.
package testutil

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/academia-hq/academia/apps/shared"
	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/calendar"
	"github.com/academia-hq/academia/core/campus"
	"github.com/academia-hq/academia/core/class"
	"github.com/academia-hq/academia/core/program"
	"github.com/academia-hq/academia/core/student"
	"github.com/academia-hq/academia/core/teacher"
	"github.com/academia-hq/academia/core/user"
	blobsvc "github.com/academia-hq/academia/services/blob"
	emailsvc "github.com/academia-hq/academia/services/email"
	"github.com/academia-hq/academia/storage/database"
)

// Env wires every service over a storage engine, in-memory unless built by NewSQLEnv.
type Env struct {
	Conf       *core.Config
	Validate   *validator.Validate
	Translator ut.Translator
	Registry   *prometheus.Registry
	Repos      *shared.Repositories
	Svcs       *shared.Services
	Mail       *emailsvc.ConsoleServiceMock
}

func NewEnv(t *testing.T) *Env {
	t.Helper()
	return newEnv(t, shared.MemoryRepositories())
}

// NewSQLEnv runs the services on the postgres database at TEST_DATABASE_URL, migrated and emptied.
// The test is skipped when the variable is unset.
func NewSQLEnv(t *testing.T) *Env {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}
	ctx := context.Background()
	db, err := sqlx.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.PingContext(ctx))
	require.NoError(t, database.Migrate(ctx, db.DB))

	_, err = db.ExecContext(ctx, "TRUNCATE "+strings.Join(sqlTables, ", ")+" CASCADE")
	require.NoError(t, err)
	return newEnv(t, shared.SQLRepositories(db))
}

var sqlTables = []string{
	"document_chunks", "documents",
	"grade_publications", "grade_history", "grades",
	"assessment_systems", "calendar_events", "timetable_slots", "class_subjects", "enrollments", "classes",
	"terms", "academic_years", "students", "teachers", "subjects", "programs", "campuses",
	"permission_templates", "users",
}

func newEnv(t *testing.T, repos *shared.Repositories) *Env {
	conf := core.NewTestConfig()
	conf.Knowledge.BlobDir = t.TempDir()
	core.ParseEmailTemplates(conf.WorkDir, true, core.NewNopLogger())

	blobs, err := blobsvc.NewLocalStore(conf.Knowledge.BlobDir)
	require.NoError(t, err)

	env := &Env{
		Conf:     conf,
		Registry: prometheus.NewRegistry(),
		Repos:    repos,
		Mail:     emailsvc.NewConsoleServiceMock(conf),
	}
	env.Validate, env.Translator = shared.NewValidator()
	env.Svcs, err = shared.NewServices(shared.ServicesDeps{
		Conf:     conf,
		Logger:   core.NewNopLogger(),
		Validate: env.Validate,
		Repos:    env.Repos,
		MailSvc:  env.Mail,
		Blobs:    blobs,
		Registry: env.Registry,
	})
	require.NoError(t, err)
	return env
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := core.Now()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC().Truncate(time.Microsecond)
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// School is a campus with one program (MATH x2, PHYS x1 at every level, CHEM x1 at level 2),
// the current academic year 2025/2026 with its first term, a teacher and a level 1 class.
type School struct {
	Campus      campus.Campus
	Program     program.Program
	Math        program.Subject
	Physics     program.Subject
	Chemistry   program.Subject
	Year        calendar.AcademicYear
	Term        calendar.Term
	TeacherUser user.User
	Teacher     teacher.Teacher
	Class       class.Class
	Subjects    map[string]class.ClassSubject // by subject code
}

func NewSchool(t *testing.T, env *Env, code string) School {
	t.Helper()
	ctx := context.Background()
	svcs := env.Svcs
	var (
		s   School
		err error
	)

	nc := campus.NewCampus{Name: "Campus " + code, Code: code, Timezone: "Africa/Kinshasa"}
	require.NoError(t, nc.Validate(ctx, env.Validate, svcs.Campus))
	s.Campus, err = svcs.Campus.Create(ctx, nc)
	require.NoError(t, err)

	np := program.NewProgram{CampusID: s.Campus.ID, Name: "Sciences", Code: "SCI", Levels: 3}
	require.NoError(t, np.Validate(ctx, env.Validate, svcs.Program))
	s.Program, err = svcs.Program.Create(ctx, np)
	require.NoError(t, err)
	s.Math = AddSubject(t, env, s.Program, "MATH", 2, 0)
	s.Physics = AddSubject(t, env, s.Program, "PHYS", 1, 0)
	s.Chemistry = AddSubject(t, env, s.Program, "CHEM", 1, 2)

	ny := calendar.NewAcademicYear{
		CampusID:  s.Campus.ID,
		Name:      "2025-2026",
		StartsOn:  core.NewDate(2025, time.September, 1),
		EndsOn:    core.NewDate(2026, time.July, 15),
		IsCurrent: true,
	}
	require.NoError(t, ny.Validate(ctx, env.Validate, svcs.Calendar))
	s.Year, err = svcs.Calendar.CreateAcademicYear(ctx, ny)
	require.NoError(t, err)

	nt := calendar.NewTerm{
		Name:     "Term 1",
		Sequence: 1,
		StartsOn: core.NewDate(2025, time.September, 1),
		EndsOn:   core.NewDate(2025, time.December, 19),
	}
	require.NoError(t, nt.Validate(ctx, s.Year, env.Validate, svcs.Calendar))
	s.Term, err = svcs.Calendar.AddTerm(ctx, s.Year, nt)
	require.NoError(t, err)

	s.TeacherUser, s.Teacher = CreateTeacher(t, env, s.Campus, "t"+code)

	ncl := class.NewClass{
		ProgramID:         s.Program.ID,
		AcademicYearID:    s.Year.ID,
		Name:              "1A",
		Level:             1,
		Capacity:          30,
		HomeroomTeacherID: s.Teacher.ID,
	}
	require.NoError(t, ncl.Validate(ctx, env.Validate, svcs.Class))
	s.Class, err = svcs.Class.Create(ctx, ncl)
	require.NoError(t, err)

	subjects, err := svcs.Class.Subjects(ctx, s.Class.ID)
	require.NoError(t, err)
	s.Subjects = make(map[string]class.ClassSubject, len(subjects))
	for _, cs := range subjects {
		s.Subjects[cs.SubjectCode] = cs
	}
	return s
}

func AddSubject(t *testing.T, env *Env, prog program.Program, code string, coef float64, level int) program.Subject {
	t.Helper()
	ctx := context.Background()

	ns := program.NewSubject{Code: code, Name: "Subject " + code, Coefficient: coef, Level: level, HoursPerWeek: 4}
	require.NoError(t, ns.Validate(ctx, prog, env.Validate, env.Svcs.Program))
	subj, err := env.Svcs.Program.AddSubject(ctx, prog, ns)
	require.NoError(t, err)
	return subj
}

func CreateTeacher(t *testing.T, env *Env, cmp campus.Campus, uname string) (user.User, teacher.Teacher) {
	t.Helper()
	ctx := context.Background()

	usr := CreateUser(t, env.Repos.User, "Teacher "+uname, uname, uname+"@test.cd", "", []string{user.RoleTeacher}, true)
	nt := teacher.NewTeacher{UserID: usr.ID, CampusID: cmp.ID, EmployeeNo: "E" + uname}
	require.NoError(t, nt.Validate(ctx, env.Validate, env.Svcs.Teacher))
	tchr, err := env.Svcs.Teacher.Create(ctx, nt)
	require.NoError(t, err)
	return usr, tchr
}

func CreateStudent(t *testing.T, env *Env, cmp campus.Campus, uname string) (user.User, student.Student) {
	t.Helper()
	ctx := context.Background()

	usr := CreateUser(t, env.Repos.User, "Student "+uname, uname, uname+"@test.cd", "", []string{user.RoleStudent}, true)
	ns := student.NewStudent{
		UserID:         usr.ID,
		CampusID:       cmp.ID,
		RegistrationNo: "R" + uname,
		DateOfBirth:    core.NewDate(2012, time.March, 14),
		GuardianName:   "Guardian " + uname,
	}
	require.NoError(t, ns.Validate(ctx, env.Validate, env.Svcs.Student))
	s, err := env.Svcs.Student.Create(ctx, ns)
	require.NoError(t, err)
	return usr, s
}

// EnrollStudent creates a student of the class campus and enrolls them.
func EnrollStudent(t *testing.T, env *Env, school School, uname string) (user.User, student.Student) {
	t.Helper()

	usr, s := CreateStudent(t, env, school.Campus, uname)
	_, err := env.Svcs.Class.Enroll(context.Background(), school.Class, class.NewEnrollment{StudentID: s.ID})
	require.NoError(t, err)
	return usr, s
}

func FloatPtr(f float64) *float64 { return &f }

func StrPtr(s string) *string { return &s }
