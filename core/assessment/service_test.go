package assessment_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/assessment"
	testutil "github.com/academia-hq/academia/tests"
)

func TestService_Save(t *testing.T) {
	env := testutil.NewEnv(t)
	school := testutil.NewSchool(t, env, "KIN")
	svc := env.Svcs.Assessment
	ctx := context.Background()

	save := func(scope, id string, ss assessment.SaveSystem) (assessment.System, error) {
		t.Helper()
		require.NoError(t, ss.Validate(env.Validate))
		return svc.Save(ctx, scope, id, ss)
	}

	eff, err := svc.Effective(ctx, school.Class.ID)
	require.NoError(t, err)
	assert.Equal(t, assessment.Resolve().Bands, eff.Bands)
	assert.Equal(t, school.Class.ID, eff.ClassID)

	_, err = save(assessment.ScopeCampus, school.Campus.ID, assessment.SaveSystem{
		MaxScore: testutil.FloatPtr(100),
		PassMark: testutil.FloatPtr(50),
	})
	require.NoError(t, err)

	first, err := save(assessment.ScopeProgram, school.Program.ID, assessment.SaveSystem{
		Components: []assessment.Component{
			{Code: " EXAM ", Name: "Exam", Weight: 70},
			{Code: "homework", Name: "Homework", Weight: 30},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "exam", first.Components[0].Code)

	eff, err = svc.Effective(ctx, school.Class.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, eff.MaxScore)
	assert.Equal(t, 80.0, eff.Bands[0].Min)
	assert.Len(t, eff.Components, 2)
	assert.Equal(t, assessment.ScopeCampus, eff.Origin["max_score"])
	assert.Equal(t, assessment.ScopeProgram, eff.Origin["components"])

	t.Run("saving again replaces", func(t *testing.T) {
		again, err := save(assessment.ScopeProgram, school.Program.ID, assessment.SaveSystem{Name: testutil.StrPtr("Sciences")})
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)
		assert.Nil(t, again.Components)

		eff, err := svc.Effective(ctx, school.Class.ID)
		require.NoError(t, err)
		assert.Equal(t, "Sciences", eff.Name)
		assert.Len(t, eff.Components, 1)
	})

	t.Run("invalid scope system", func(t *testing.T) {
		_, err := save(assessment.ScopeClass, school.Class.ID, assessment.SaveSystem{PassMark: testutil.FloatPtr(120)})
		require.Error(t, err)
		verr, ok := err.(*core.ValidationError)
		require.True(t, ok)
		assert.Equal(t, "pass_mark", verr.Fields[0].Field)
	})

	t.Run("dependent classes are checked", func(t *testing.T) {
		_, err := save(assessment.ScopeClass, school.Class.ID, assessment.SaveSystem{PassMark: testutil.FloatPtr(60)})
		require.NoError(t, err)

		// the class pass mark would exceed the campus max score
		_, err = save(assessment.ScopeCampus, school.Campus.ID, assessment.SaveSystem{MaxScore: testutil.FloatPtr(40)})
		require.Error(t, err)
		verr, ok := err.(*core.ValidationError)
		require.True(t, ok)
		assert.Contains(t, verr.Error(), school.Class.ID)

		// dropping the campus system brings the max back to 20
		err = svc.Delete(ctx, assessment.ScopeCampus, school.Campus.ID)
		require.Error(t, err)

		require.NoError(t, svc.Delete(ctx, assessment.ScopeClass, school.Class.ID))
		require.NoError(t, svc.Delete(ctx, assessment.ScopeCampus, school.Campus.ID))

		eff, err := svc.Effective(ctx, school.Class.ID)
		require.NoError(t, err)
		assert.Equal(t, assessment.DefaultMaxScore, eff.MaxScore)
	})

	t.Run("unknown scope", func(t *testing.T) {
		_, err := svc.Get(ctx, "galaxy", school.Campus.ID)
		assert.True(t, core.IsNotFound(err))

		_, err = svc.Save(ctx, assessment.ScopeProgram, core.NewID(), assessment.SaveSystem{})
		assert.True(t, core.IsNotFound(err))

		_, err = svc.Get(ctx, assessment.ScopeClass, school.Class.ID)
		assert.True(t, core.IsNotFound(err))
	})
}
