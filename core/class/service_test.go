package class_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/class"
	"github.com/academia-hq/academia/core/grade"
	"github.com/academia-hq/academia/core/program"
	"github.com/academia-hq/academia/core/user"
	testutil "github.com/academia-hq/academia/tests"
)

func TestService_SyncSubjects(t *testing.T) {
	env := testutil.NewEnv(t)
	school := testutil.NewSchool(t, env, "KIN")
	svc := env.Svcs.Class
	ctx := context.Background()

	res, err := svc.SyncSubjects(ctx, school.Class)
	require.NoError(t, err)
	assert.False(t, res.Changed(), "a new class starts in sync")

	art := testutil.AddSubject(t, env, school.Program, "ART", 1, 0)
	res, err = svc.SyncSubjects(ctx, school.Class)
	require.NoError(t, err)
	assert.Equal(t, []string{"ART"}, res.Added)

	// a graded subject survives its removal from the program
	admin := testutil.CreateUser(t, env.Repos.User, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	_, pupil := testutil.EnrollStudent(t, env, school, "pupil")
	_, err = env.Svcs.Grade.Record(ctx, grade.NewGrade{
		StudentID:      pupil.ID,
		ClassSubjectID: school.Subjects["PHYS"].ID,
		TermID:         school.Term.ID,
		Component:      "exam",
		Score:          testutil.FloatPtr(12),
	}, admin)
	require.NoError(t, err)
	require.NoError(t, env.Svcs.Program.DeleteSubject(ctx, school.Physics.ID))

	require.NoError(t, env.Svcs.Program.DeleteSubject(ctx, art.ID))

	coef := 3.0
	us := program.UpdateSubject{Coefficient: &coef}
	require.NoError(t, us.Validate(ctx, school.Math, env.Validate, env.Svcs.Program))
	_, err = env.Svcs.Program.UpdateSubject(ctx, school.Math, us)
	require.NoError(t, err)

	level := 1
	us = program.UpdateSubject{Level: &level}
	require.NoError(t, us.Validate(ctx, school.Chemistry, env.Validate, env.Svcs.Program))
	_, err = env.Svcs.Program.UpdateSubject(ctx, school.Chemistry, us)
	require.NoError(t, err)

	testutil.AddSubject(t, env, school.Program, "BIO", 1, 3)

	res, err = svc.SyncSubjects(ctx, school.Class)
	require.NoError(t, err)
	assert.Equal(t, class.SyncResult{
		ClassID:  school.Class.ID,
		Added:    []string{"CHEM"},
		Updated:  []string{"MATH"},
		Removed:  []string{"ART"},
		Retained: []string{"PHYS"},
	}, res)

	subjects, err := svc.Subjects(ctx, school.Class.ID)
	require.NoError(t, err)
	coefs := make(map[string]float64, len(subjects))
	for _, cs := range subjects {
		coefs[cs.SubjectCode] = cs.Coefficient
	}
	assert.Equal(t, map[string]float64{"MATH": 3, "PHYS": 1, "CHEM": 1}, coefs)

	results, err := svc.SyncProgram(ctx, school.Program.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Changed())
	assert.Equal(t, []string{"PHYS"}, results[0].Retained)
}

func TestService_ScopeChain(t *testing.T) {
	env := testutil.NewEnv(t)
	school := testutil.NewSchool(t, env, "KIN")
	other := testutil.NewSchool(t, env, "GOM")
	svc := env.Svcs.Class
	ctx := context.Background()

	campusID, programID, err := svc.ScopeChain(ctx, class.ScopeClass, school.Class.ID)
	require.NoError(t, err)
	assert.Equal(t, school.Campus.ID, campusID)
	assert.Equal(t, school.Program.ID, programID)

	campusID, programID, err = svc.ScopeChain(ctx, class.ScopeCampus, school.Campus.ID)
	require.NoError(t, err)
	assert.Equal(t, school.Campus.ID, campusID)
	assert.Empty(t, programID)

	_, _, err = svc.ScopeChain(ctx, class.ScopeProgram, core.NewID())
	assert.True(t, core.IsNotFound(err))

	_, _, err = svc.ScopeChain(ctx, "galaxy", school.Campus.ID)
	assert.Equal(t, class.ErrUnknownScope, err)

	ids, err := svc.ClassIDsInScope(ctx, class.ScopeCampus, school.Campus.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{school.Class.ID}, ids)

	ids, err = svc.ClassIDsInScope(ctx, class.ScopeProgram, other.Program.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{other.Class.ID}, ids)
}
