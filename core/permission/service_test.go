package permission_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/permission"
	"github.com/academia-hq/academia/core/user"
	testutil "github.com/academia-hq/academia/tests"
)

func createTemplate(t *testing.T, env *testutil.Env, nt permission.NewTemplate) permission.Template {
	t.Helper()

	require.NoError(t, nt.Validate(env.Validate))
	tmpl, err := env.Svcs.Permission.Create(context.Background(), nt)
	require.NoError(t, err)
	return tmpl
}

func fieldOf(t *testing.T, err error) core.FieldError {
	t.Helper()

	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr), "want a validation error, got %v", err)
	require.Len(t, verr.Fields, 1)
	return verr.Fields[0]
}

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern, perm string
		want          bool
	}{
		{"*", permission.GradeWrite, true},
		{"grade:*", permission.GradeWrite, true},
		{"grade:*", permission.GradePublish, true},
		{"grade:*", permission.ReportRead, false},
		{"grade:write", permission.GradeWrite, true},
		{"grade:write", permission.GradeRead, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s~%s", tt.pattern, tt.perm), func(t *testing.T) {
			assert.Equal(t, tt.want, permission.Match(tt.pattern, tt.perm))
		})
	}

	assert.True(t, permission.IsValid("document:*"))
	assert.False(t, permission.IsValid("spaceship:*"))
	assert.False(t, permission.IsValid("grade:erase"))
}

func TestService_Effective(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := env.Svcs.Permission
	ctx := context.Background()

	base := createTemplate(t, env, permission.NewTemplate{
		Name:   "Base",
		Grants: []string{permission.GradeRead, permission.ReportRead},
	})
	child := createTemplate(t, env, permission.NewTemplate{
		Name:     "Child",
		ParentID: base.ID,
		Grants:   []string{"grade:*"},
		Denies:   []string{permission.ReportRead},
	})
	grandchild := createTemplate(t, env, permission.NewTemplate{
		Name:     "Grandchild",
		ParentID: child.ID,
		Grants:   []string{permission.ReportRead},
		Denies:   []string{permission.GradePublish},
	})

	perms, err := svc.Effective(ctx, base.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{permission.GradeRead, permission.ReportRead}, perms)

	perms, err = svc.Effective(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{permission.GradePublish, permission.GradeRead, permission.GradeWrite}, perms)

	perms, err = svc.Effective(ctx, grandchild.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{permission.GradeRead, permission.GradeWrite, permission.ReportRead}, perms)

	// a grant and a deny on the same template: the deny wins
	both := createTemplate(t, env, permission.NewTemplate{
		Name:   "Both",
		Grants: []string{"*"},
		Denies: []string{"permission:*"},
	})
	perms, err = svc.Effective(ctx, both.ID)
	require.NoError(t, err)
	assert.Len(t, perms, len(permission.Catalog)-2)
	assert.NotContains(t, perms, permission.PermissionRead)
	assert.NotContains(t, perms, permission.PermissionWrite)

	// updates invalidate cached results
	name := "Base"
	_, err = svc.Update(ctx, base, permission.UpdateTemplate{Name: &name, Grants: []string{permission.CampusRead}})
	require.NoError(t, err)
	perms, err = svc.Effective(ctx, child.ID)
	require.NoError(t, err)
	assert.Contains(t, perms, permission.CampusRead)
	assert.NotContains(t, perms, permission.ReportRead)

	_, err = svc.Effective(ctx, core.NewID())
	assert.True(t, core.IsNotFound(err))
}

func TestService_Create_Update(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := env.Svcs.Permission
	ctx := context.Background()

	a := createTemplate(t, env, permission.NewTemplate{Name: "A", Role: user.RoleTeacher})
	b := createTemplate(t, env, permission.NewTemplate{Name: "B", ParentID: a.ID})
	c := createTemplate(t, env, permission.NewTemplate{Name: "C", ParentID: b.ID})

	t.Run("name exists", func(t *testing.T) {
		_, err := svc.Create(ctx, permission.NewTemplate{Name: "A"})
		assert.Equal(t, core.FieldError{Field: "name", Error: permission.ErrNameExists.Error()}, fieldOf(t, err))
	})

	t.Run("role already bound", func(t *testing.T) {
		_, err := svc.Create(ctx, permission.NewTemplate{Name: "D", Role: user.RoleTeacher})
		assert.Equal(t, core.FieldError{Field: "role", Error: permission.ErrRoleBound.Error()}, fieldOf(t, err))

		// a template may keep its own role
		role := user.RoleTeacher
		_, err = svc.Update(ctx, a, permission.UpdateTemplate{Role: &role})
		assert.NoError(t, err)
	})

	t.Run("missing parent", func(t *testing.T) {
		_, err := svc.Create(ctx, permission.NewTemplate{Name: "D", ParentID: core.NewID()})
		assert.Equal(t, "parent_id", fieldOf(t, err).Field)
		assert.Equal(t, "parent template not found", fieldOf(t, err).Error)
	})

	t.Run("cycles", func(t *testing.T) {
		parent := c.ID
		_, err := svc.Update(ctx, a, permission.UpdateTemplate{ParentID: &parent})
		assert.Equal(t, permission.ErrCycle.Error(), fieldOf(t, err).Error)

		parent = a.ID
		_, err = svc.Update(ctx, a, permission.UpdateTemplate{ParentID: &parent})
		assert.Equal(t, permission.ErrCycle.Error(), fieldOf(t, err).Error)
	})

	t.Run("chain too deep", func(t *testing.T) {
		parent := c
		for i := 4; i <= permission.MaxDepth; i++ {
			parent = createTemplate(t, env, permission.NewTemplate{Name: fmt.Sprintf("T%d", i), ParentID: parent.ID})
		}
		_, err := svc.Create(ctx, permission.NewTemplate{Name: "Too deep", ParentID: parent.ID})
		assert.Equal(t, permission.ErrTooDeep.Error(), fieldOf(t, err).Error)

		// moving a subtree under another chain counts its own levels
		lone := createTemplate(t, env, permission.NewTemplate{Name: "Lone"})
		pid := lone.ID
		_, err = svc.Update(ctx, a, permission.UpdateTemplate{ParentID: &pid})
		assert.Equal(t, permission.ErrTooDeep.Error(), fieldOf(t, err).Error)
	})

	t.Run("clear parent", func(t *testing.T) {
		empty := ""
		updated, err := svc.Update(ctx, c, permission.UpdateTemplate{ParentID: &empty})
		require.NoError(t, err)
		assert.Empty(t, updated.ParentID)
	})

	t.Run("validation", func(t *testing.T) {
		nt := permission.NewTemplate{Name: "X", Role: "janitor", Grants: []string{"grade:erase"}}
		err := nt.Validate(env.Validate)
		require.Error(t, err)

		ut := permission.UpdateTemplate{Role: testutil.StrPtr("janitor")}
		assert.Equal(t, "role", fieldOf(t, ut.Validate(env.Validate)).Field)

		ut = permission.UpdateTemplate{ParentID: testutil.StrPtr("lol")}
		assert.Equal(t, "parent_id", fieldOf(t, ut.Validate(env.Validate)).Field)

		nt = permission.NewTemplate{Name: "X", Grants: []string{" Grade:Read ", "grade:read", ""}}
		require.NoError(t, nt.Validate(env.Validate))
		assert.Equal(t, []string{permission.GradeRead}, nt.Grants)
	})
}

func TestService_Delete(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := env.Svcs.Permission
	ctx := context.Background()

	parent := createTemplate(t, env, permission.NewTemplate{Name: "Parent"})
	child := createTemplate(t, env, permission.NewTemplate{Name: "Child", ParentID: parent.ID})

	err := svc.Delete(ctx, parent.ID)
	assert.Equal(t, permission.ErrHasChildren, err)

	require.NoError(t, svc.Delete(ctx, child.ID))
	require.NoError(t, svc.Delete(ctx, parent.ID))

	_, err = svc.Get(ctx, parent.ID)
	assert.True(t, core.IsNotFound(err))
}

func TestService_Can(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := env.Svcs.Permission
	ctx := context.Background()

	n, err := svc.EnsureDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = svc.EnsureDefaults(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "defaults are seeded once")

	newUser := func(uname string, active bool, roles ...string) user.User {
		return testutil.CreateUser(t, env.Repos.User, uname, uname, uname+"@test.cd", "", roles, active)
	}
	owner := newUser("owner", true, user.RoleAdminOwner)
	principal := newUser("principal", true, user.RoleAdminPrincipal)
	admin := newUser("admin", true, user.RoleAdmin)
	tchr := newUser("teacher", true, user.RoleTeacher)
	pupil := newUser("pupil", true, user.RoleStudent)
	inactive := newUser("inactive", false, user.RoleAdminOwner)
	nobody := newUser("nobody", true)

	tests := []struct {
		usr  user.User
		perm string
		want bool
	}{
		{owner, permission.PermissionWrite, true},
		{principal, permission.PermissionWrite, true},
		{principal, permission.GradePublish, true},
		{admin, permission.PermissionRead, true},
		{admin, permission.PermissionWrite, false},
		{admin, permission.GradePublish, true},
		{tchr, permission.GradeWrite, true},
		{tchr, permission.GradePublish, false},
		{tchr, permission.ReportRead, true},
		{tchr, permission.StudentWrite, false},
		{pupil, permission.GradeRead, true},
		{pupil, permission.GradeWrite, false},
		{pupil, permission.StudentRead, false},
		{inactive, permission.CampusRead, false},
		{nobody, permission.CampusRead, false},
	}
	for _, tt := range tests {
		t.Run(tt.usr.Username+" "+tt.perm, func(t *testing.T) {
			got, err := svc.Can(ctx, tt.usr, tt.perm)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	perms, err := svc.Permissions(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, perms, len(permission.Catalog))

	perms, err = svc.Permissions(ctx, pupil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		permission.CalendarRead, permission.CampusRead, permission.ClassRead, permission.DocumentRead,
		permission.GradeRead, permission.ProgramRead, permission.ReportRead, permission.TimetableRead,
	}, perms)

	// a deny on the teacher template is inherited down the chain
	teacherTmpl, err := env.Repos.Permission.GetTemplateByRole(ctx, user.RoleTeacher)
	require.NoError(t, err)
	_, err = svc.Update(ctx, teacherTmpl, permission.UpdateTemplate{Denies: []string{permission.DocumentWrite}})
	require.NoError(t, err)

	got, err := svc.Can(ctx, tchr, permission.DocumentWrite)
	require.NoError(t, err)
	assert.False(t, got)
	got, err = svc.Can(ctx, admin, permission.DocumentWrite)
	require.NoError(t, err)
	assert.True(t, got, "admin re-grants document:*")
}
