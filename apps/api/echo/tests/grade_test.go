package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/class"
	"github.com/academia-hq/academia/core/grade"
	"github.com/academia-hq/academia/core/user"
	testutil "github.com/academia-hq/academia/tests"
)

func Test_gradeApi(t *testing.T) {
	app := newTestApp(t)
	school := testutil.NewSchool(t, app.Env, "KIN")

	admin := testutil.CreateUser(t, app.Repos.User, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	adminToken := app.token(t, admin)
	teacherToken := app.token(t, school.TeacherUser)
	otherUsr, _ := testutil.CreateTeacher(t, app.Env, school.Campus, "other")
	otherToken := app.token(t, otherUsr)

	math := school.Subjects["MATH"]
	phys := school.Subjects["PHYS"]
	rec := app.do(t, http.MethodPut, "/api/class-subjects/"+math.ID+"/teacher", adminToken, class.AssignTeacher{TeacherID: school.Teacher.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	pupilUsr, pupil := testutil.EnrollStudent(t, app.Env, school, "pupil")
	pupilToken := app.token(t, pupilUsr)
	strangerUsr, stranger := testutil.CreateStudent(t, app.Env, school.Campus, "stranger")
	strangerToken := app.token(t, strangerUsr)

	newGrade := func(studentID string, cs class.ClassSubject, component string, score float64) grade.NewGrade {
		return grade.NewGrade{
			StudentID:      studentID,
			ClassSubjectID: cs.ID,
			TermID:         school.Term.ID,
			Component:      component,
			Score:          testutil.FloatPtr(score),
		}
	}

	tests := []httpTest{
		{
			name: "required fields", token: teacherToken, wantCode: http.StatusBadRequest,
			wantData: []byte(`{"student_id":"this field is required","class_subject_id":"this field is required",` +
				`"term_id":"this field is required","component":"this field is required","score":"this field is required"}`),
		},
		{
			name: "student cannot record", token: pupilToken, body: marchallObj(t, newGrade(pupil.ID, math, "exam", 15)),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied: grade:write"}),
		},
		{
			name: "teacher of another subject", token: otherToken, body: marchallObj(t, newGrade(pupil.ID, math, "exam", 15)),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied: grade:write"}),
		},
		{
			name: "subject without teacher", token: teacherToken, body: marchallObj(t, newGrade(pupil.ID, phys, "exam", 15)),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied: grade:write"}),
		},
		{
			name: "student not enrolled", token: teacherToken, body: marchallObj(t, newGrade(stranger.ID, math, "exam", 15)),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"student_id":"student is not enrolled in the class"}`),
		},
		{
			name: "unknown component", token: teacherToken, body: marchallObj(t, newGrade(pupil.ID, math, "quiz", 15)),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"component":"unknown assessment component"}`),
		},
		{
			name: "score above max", token: teacherToken, body: marchallObj(t, newGrade(pupil.ID, math, "exam", 21)),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"score":"must be at most the max score"}`),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/grades"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	// record then correct
	rec = app.do(t, http.MethodPost, "/api/grades", teacherToken, newGrade(pupil.ID, math, "EXAM", 15))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	g := decode[grade.Grade](t, rec)
	assert.Equal(t, "exam", g.Component)
	assert.Equal(t, 15.0, g.Score)
	assert.Equal(t, school.TeacherUser.ID, g.RecordedBy)

	correction := newGrade(pupil.ID, math, "exam", 17)
	correction.Reason = "Re-marked"
	rec = app.do(t, http.MethodPost, "/api/grades", adminToken, correction)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	corrected := decode[grade.Grade](t, rec)
	assert.Equal(t, g.ID, corrected.ID)
	assert.Equal(t, 17.0, corrected.Score)

	rec = app.do(t, http.MethodGet, "/api/grades/"+g.ID+"/history", teacherToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	history := decode[[]grade.History](t, rec)
	require.Len(t, history, 2)
	actions := []string{history[0].Action, history[1].Action}
	assert.ElementsMatch(t, []string{grade.ActionCreated, grade.ActionUpdated}, actions)
	for _, h := range history {
		if h.Action == grade.ActionUpdated {
			assert.Equal(t, 15.0, *h.OldScore)
			assert.Equal(t, 17.0, *h.NewScore)
			assert.Equal(t, "Re-marked", h.Reason)
			assert.Equal(t, admin.ID, h.ChangedBy)
		}
	}

	reportPath := "/api/students/" + pupil.ID + "/report?class_id=" + school.Class.ID + "&term_id=" + school.Term.ID

	t.Run("unpublished grades are hidden from students", func(t *testing.T) {
		rec := app.do(t, http.MethodGet, "/api/grades", pupilToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `[]`, rec.Body.String())

		rec = app.do(t, http.MethodGet, "/api/grades/"+g.ID+"/history", pupilToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

		rec = app.do(t, http.MethodGet, reportPath, pupilToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"error":"grades not published"}`, rec.Body.String())

		// staff see the draft
		rec = app.do(t, http.MethodGet, reportPath, teacherToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.False(t, decode[grade.Report](t, rec).Published)
	})

	publishPath := "/api/classes/" + school.Class.ID + "/terms/" + school.Term.ID + "/publish"

	t.Run("publish", func(t *testing.T) {
		app.Mail.Reset()

		rec := app.do(t, http.MethodPost, publishPath, teacherToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"error":"permission denied: grade:publish"}`, rec.Body.String())

		rec = app.do(t, http.MethodPost, "/api/classes/"+school.Class.ID+"/terms/lol/publish", adminToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

		rec = app.do(t, http.MethodPost, publishPath, adminToken, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		p := decode[grade.Publication](t, rec)
		assert.Equal(t, school.Class.ID, p.ClassID)
		assert.Equal(t, school.Term.ID, p.TermID)
		assert.Equal(t, admin.ID, p.PublishedBy)

		sent := app.Mail.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, pupilUsr.Email, sent[0].To[0].Address)
		assert.Contains(t, sent[0].TextContent, school.Term.Name)

		rec = app.do(t, http.MethodPost, publishPath, adminToken, nil)
		assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	})

	t.Run("published grades are visible to their student", func(t *testing.T) {
		rec := app.do(t, http.MethodGet, "/api/grades", pupilToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		grades := decode[[]grade.Grade](t, rec)
		require.Len(t, grades, 1)
		assert.Equal(t, g.ID, grades[0].ID)

		rec = app.do(t, http.MethodGet, "/api/grades/"+g.ID+"/history", pupilToken, nil)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = app.do(t, http.MethodGet, reportPath, pupilToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		rep := decode[grade.Report](t, rec)
		assert.True(t, rep.Published)
		assert.Equal(t, 20.0, rep.MaxScore)
		require.NotNil(t, rep.Average)
		assert.Equal(t, 17.0, *rep.Average)
		assert.Equal(t, "A", rep.Letter)
		assert.True(t, rep.Passed)
		require.Len(t, rep.Subjects, 2)
		for _, res := range rep.Subjects {
			switch res.SubjectCode {
			case "MATH":
				require.NotNil(t, res.Percentage)
				assert.Equal(t, 85.0, *res.Percentage)
				assert.True(t, res.Complete)
			case "PHYS":
				assert.Nil(t, res.Score)
				assert.Empty(t, res.Letter)
			}
		}

		// another student
		rec = app.do(t, http.MethodGet, reportPath, strangerToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
		rec = app.do(t, http.MethodGet, "/api/grades/"+g.ID+"/history", strangerToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	})

	t.Run("report query is validated", func(t *testing.T) {
		rec := app.do(t, http.MethodGet, "/api/students/"+pupil.ID+"/report", adminToken, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"class_id":"this field is required","term_id":"this field is required"}`, rec.Body.String())

		rec = app.do(t, http.MethodGet, "/api/students/"+pupil.ID+"/report?class_id="+school.Class.ID+"&term_id="+core.NewID(), adminToken, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"term_id":"term not found"}`, rec.Body.String())
	})

	t.Run("delete keeps the history", func(t *testing.T) {
		rec := app.do(t, http.MethodDelete, "/api/grades/"+g.ID, otherToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

		rec = app.do(t, http.MethodDelete, "/api/grades/"+g.ID+"?reason=duplicate", teacherToken, nil)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		_, err := app.Svcs.Grade.Get(t.Context(), g.ID)
		assert.True(t, core.IsNotFound(err))

		history, err := app.Svcs.Grade.History(t.Context(), g.ID)
		require.NoError(t, err)
		require.Len(t, history, 3)
		var deleted *grade.History
		for i := range history {
			if history[i].Action == grade.ActionDeleted {
				deleted = &history[i]
			}
		}
		require.NotNil(t, deleted)
		assert.Equal(t, 17.0, *deleted.OldScore)
		assert.Nil(t, deleted.NewScore)
		assert.Equal(t, "duplicate", deleted.Reason)
	})
}
