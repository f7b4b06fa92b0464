package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/calendar"
	"github.com/academia-hq/academia/core/campus"
	"github.com/academia-hq/academia/core/class"
	"github.com/academia-hq/academia/core/program"
	"github.com/academia-hq/academia/core/user"
	testutil "github.com/academia-hq/academia/tests"
)

func Test_campusApi(t *testing.T) {
	app := newTestApp(t)
	school := testutil.NewSchool(t, app.Env, "KIN")

	admin := testutil.CreateUser(t, app.Repos.User, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	adminToken := app.token(t, admin)
	teacherToken := app.token(t, school.TeacherUser)

	var created campus.Campus
	t.Run("create", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/api/campuses", adminToken, campus.NewCampus{Name: " Gombe ", Code: "gom", Timezone: "Africa/Kinshasa"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		created = decode[campus.Campus](t, rec)
		assert.Equal(t, "Gombe", created.Name)
		assert.Equal(t, "GOM", created.Code)
		assert.Equal(t, core.DefaultWorkingDays, created.WorkingDays)
		assert.True(t, created.IsActive)
	})

	tests := []httpTest{
		{
			name: "duplicate code", method: http.MethodPost, path: "/api/campuses", token: adminToken,
			body: marchallObj(t, campus.NewCampus{Name: "Other", Code: "KIN", Timezone: "UTC"}), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"code":"a campus with this code already exists"}`),
		},
		{
			name: "invalid timezone", method: http.MethodPost, path: "/api/campuses", token: adminToken,
			body: marchallObj(t, campus.NewCampus{Name: "Other", Code: "OTH", Timezone: "Mars/Olympus"}), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"timezone":"must be a valid IANA time zone"}`),
		},
		{
			name: "teacher cannot create", method: http.MethodPost, path: "/api/campuses", token: teacherToken,
			body: marchallObj(t, campus.NewCampus{Name: "Other", Code: "OTH", Timezone: "UTC"}), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied: campus:write"}),
		},
		{
			name: "unknown campus", method: http.MethodGet, path: "/api/campuses/" + core.NewID(), token: teacherToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "campus not found"}),
		},
		{
			name: "campus in use", method: http.MethodDelete, path: "/api/campuses/" + school.Campus.ID, token: adminToken,
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "campus still has programs, teachers or students"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("teacher lists campuses", func(t *testing.T) {
		rec := app.do(t, http.MethodGet, "/api/campuses?ordering=code", teacherToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		campuses := decode[[]campus.Campus](t, rec)
		require.Len(t, campuses, 2)
		assert.Equal(t, "GOM", campuses[0].Code)
		assert.Equal(t, "KIN", campuses[1].Code)
	})

	t.Run("delete unused campus", func(t *testing.T) {
		rec := app.do(t, http.MethodDelete, "/api/campuses/"+created.ID, adminToken, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	})
}

func Test_campusApi_schoolDay(t *testing.T) {
	app := newTestApp(t)
	school := testutil.NewSchool(t, app.Env, "KIN")

	admin := testutil.CreateUser(t, app.Repos.User, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	adminToken := app.token(t, admin)

	loc, err := time.LoadLocation("Africa/Kinshasa")
	require.NoError(t, err)
	rec := app.do(t, http.MethodPost, "/api/events", adminToken, calendar.NewEvent{
		CampusID: school.Campus.ID,
		Title:    "Heroes day",
		Kind:     calendar.KindHoliday,
		StartsAt: time.Date(2025, time.October, 7, 10, 0, 0, 0, loc),
		EndsAt:   time.Date(2025, time.October, 7, 12, 0, 0, 0, loc),
		AllDay:   true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	tests := []struct {
		date       string
		want       bool
		wantReason string
	}{
		{date: "2025-10-06", want: true},
		{date: "2025-10-04", wantReason: "not a working day"},
		{date: "2025-10-07", wantReason: "holiday: Heroes day"},
		{date: "2026-01-05", wantReason: "outside of terms"},
		{date: "2027-01-04", wantReason: "outside of terms"},
	}
	path := "/api/campuses/" + school.Campus.ID + "/school-day?date="
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			rec := app.do(t, http.MethodGet, path+tt.date, app.token(t, school.TeacherUser), nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			day := decode[calendar.SchoolDay](t, rec)
			assert.Equal(t, tt.date, day.Date.String())
			assert.Equal(t, tt.want, day.IsSchoolDay)
			assert.Equal(t, tt.wantReason, day.Reason)
		})
	}

	rec = app.do(t, http.MethodGet, path+"06/10/2025", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"date":"date must be formatted as YYYY-MM-DD"}`, rec.Body.String())
}

func Test_programApi_subjects(t *testing.T) {
	app := newTestApp(t)
	school := testutil.NewSchool(t, app.Env, "KIN")

	admin := testutil.CreateUser(t, app.Repos.User, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	adminToken := app.token(t, admin)
	progPath := "/api/programs/" + school.Program.ID

	rec := app.do(t, http.MethodGet, progPath+"/subjects", app.token(t, school.TeacherUser), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[[]program.Subject](t, rec), 3)

	rec = app.do(t, http.MethodPost, progPath+"/subjects", adminToken, program.NewSubject{Code: "math", Name: "Maths again", Coefficient: 1, HoursPerWeek: 2})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"code":"a subject with this code already exists in the program"}`, rec.Body.String())

	rec = app.do(t, http.MethodPost, progPath+"/subjects", adminToken, program.NewSubject{Code: "bio", Name: "Biology", Coefficient: 1.5, HoursPerWeek: 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	bio := decode[program.Subject](t, rec)
	assert.Equal(t, "BIO", bio.Code)

	// the class picks the new subject up on sync
	rec = app.do(t, http.MethodPost, "/api/classes/"+school.Class.ID+"/sync-subjects", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[class.SyncResult](t, rec)
	assert.Equal(t, []string{"BIO"}, res.Added)

	rec = app.do(t, http.MethodGet, "/api/classes/"+school.Class.ID+"/subjects", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[[]class.ClassSubject](t, rec), 3) // MATH, PHYS and BIO; CHEM is taught at level 2

	rec = app.do(t, http.MethodDelete, progPath, adminToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"error":"program still has classes"}`, rec.Body.String())
}

func Test_classApi_enrollments(t *testing.T) {
	app := newTestApp(t)
	school := testutil.NewSchool(t, app.Env, "KIN")

	admin := testutil.CreateUser(t, app.Repos.User, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	adminToken := app.token(t, admin)

	rec := app.do(t, http.MethodPost, "/api/classes", adminToken, class.NewClass{
		ProgramID:      school.Program.ID,
		AcademicYearID: school.Year.ID,
		Name:           "1B",
		Level:          1,
		Capacity:       1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	small := decode[class.Class](t, rec)
	enrollPath := "/api/classes/" + small.ID + "/enrollments"

	_, s1 := testutil.CreateStudent(t, app.Env, school.Campus, "s1")
	_, s2 := testutil.CreateStudent(t, app.Env, school.Campus, "s2")

	rec = app.do(t, http.MethodPost, enrollPath, adminToken, class.NewEnrollment{StudentID: s1.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	e := decode[class.Enrollment](t, rec)
	assert.Equal(t, class.StatusActive, e.Status)
	assert.Equal(t, school.Year.ID, e.AcademicYearID)

	rec = app.do(t, http.MethodPost, enrollPath, adminToken, class.NewEnrollment{StudentID: s2.ID})
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"error":"class is full"}`, rec.Body.String())

	// a student has one active enrollment per academic year
	rec = app.do(t, http.MethodPost, "/api/classes/"+school.Class.ID+"/enrollments", adminToken, class.NewEnrollment{StudentID: s1.ID})
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodDelete, enrollPath+"/"+s1.ID, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, class.StatusWithdrawn, decode[class.Enrollment](t, rec).Status)

	// the seat is free again
	rec = app.do(t, http.MethodPost, enrollPath, adminToken, class.NewEnrollment{StudentID: s2.ID})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodGet, enrollPath+"?active=true", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	active := decode[[]class.Enrollment](t, rec)
	require.Len(t, active, 1)
	assert.Equal(t, s2.ID, active[0].StudentID)

	rec = app.do(t, http.MethodDelete, "/api/classes/"+small.ID, adminToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
}
