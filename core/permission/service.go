package permission

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/user"
)

// MaxDepth bounds template inheritance chains.
const MaxDepth = 16

var (
	// errors
	ErrNotFound      = core.NewNotFoundError("permission template not found")
	ErrNameExists    = errors.New("a template with this name already exists")
	ErrRoleBound     = errors.New("another template is already bound to this role")
	ErrCycle         = errors.New("parent would create an inheritance cycle")
	ErrTooDeep       = fmt.Errorf("inheritance chain cannot be deeper than %d templates", MaxDepth)
	ErrHasChildren   = core.NewConflictError("template is inherited by other templates")
	errParentMissing = "parent template not found"
)

type (
	Repository interface {
		CreateTemplate(ctx context.Context, t Template) (Template, error)
		GetTemplate(ctx context.Context, id string) (Template, error)
		GetTemplateByName(ctx context.Context, name string) (Template, error)
		GetTemplateByRole(ctx context.Context, role string) (Template, error)
		QueryTemplates(ctx context.Context) ([]Template, error)
		UpdateTemplate(ctx context.Context, t Template) (Template, error)
		DeleteTemplate(ctx context.Context, id string) error
	}

	Service struct {
		repo  Repository
		cache *core.Cache[[]string]
	}
)

func NewService(repo Repository, conf *core.Config) (*Service, error) {
	cache, err := core.NewCache[[]string](conf.Cache.MaxEntries, conf.Cache.TTL)
	if err != nil {
		return nil, err
	}
	return &Service{repo: repo, cache: cache}, nil
}

func (svc *Service) Catalog() []Permission {
	return Catalog
}

func (svc *Service) Get(ctx context.Context, id string) (Template, error) {
	if !core.IsValidID(id) {
		return Template{}, ErrNotFound
	}
	return svc.repo.GetTemplate(ctx, id)
}

func (svc *Service) Query(ctx context.Context) ([]Template, error) {
	return svc.repo.QueryTemplates(ctx)
}

func (svc *Service) Create(ctx context.Context, nt NewTemplate) (Template, error) {
	if err := svc.checkName(ctx, nt.Name, ""); err != nil {
		return Template{}, err
	}
	if err := svc.checkRole(ctx, nt.Role, ""); err != nil {
		return Template{}, err
	}
	if nt.ParentID != "" {
		if err := svc.checkParent(ctx, "", nt.ParentID); err != nil {
			return Template{}, err
		}
	}

	now := core.Now()
	t, err := svc.repo.CreateTemplate(ctx, Template{
		ID:          core.NewID(),
		Name:        nt.Name,
		Description: nt.Description,
		Role:        nt.Role,
		ParentID:    nt.ParentID,
		Grants:      nt.Grants,
		Denies:      nt.Denies,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Template{}, errors.Wrap(err, "creating template")
	}
	svc.cache.Clear()
	return t, nil
}

func (svc *Service) Update(ctx context.Context, t Template, ut UpdateTemplate) (Template, error) {
	if ut.Name != nil && *ut.Name != t.Name {
		if err := svc.checkName(ctx, *ut.Name, t.ID); err != nil {
			return Template{}, err
		}
		t.Name = *ut.Name
	}
	if ut.Description != nil {
		t.Description = core.CleanString(*ut.Description)
	}
	if ut.Role != nil && *ut.Role != t.Role {
		if err := svc.checkRole(ctx, *ut.Role, t.ID); err != nil {
			return Template{}, err
		}
		t.Role = *ut.Role
	}
	if ut.ParentID != nil && *ut.ParentID != t.ParentID {
		if *ut.ParentID != "" {
			if err := svc.checkParent(ctx, t.ID, *ut.ParentID); err != nil {
				return Template{}, err
			}
		}
		t.ParentID = *ut.ParentID
	}
	if ut.Grants != nil {
		t.Grants = ut.Grants
	}
	if ut.Denies != nil {
		t.Denies = ut.Denies
	}
	t.UpdatedAt = core.Now()

	t, err := svc.repo.UpdateTemplate(ctx, t)
	if err != nil {
		return Template{}, errors.Wrap(err, "updating template")
	}
	svc.cache.Clear()
	return t, nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	templates, err := svc.repo.QueryTemplates(ctx)
	if err != nil {
		return errors.Wrap(err, "querying templates")
	}
	for _, t := range templates {
		if t.ParentID == id {
			return ErrHasChildren
		}
	}
	if err = svc.repo.DeleteTemplate(ctx, id); err != nil {
		return errors.Wrap(err, "deleting template")
	}
	svc.cache.Clear()
	return nil
}

func (svc *Service) checkName(ctx context.Context, name, selfID string) error {
	t, err := svc.repo.GetTemplateByName(ctx, name)
	if err == nil && t.ID != selfID {
		return core.NewValidationError(ErrNameExists, core.FieldError{Field: "name", Error: ErrNameExists.Error()})
	}
	if err != nil && !core.IsNotFound(err) {
		return errors.Wrap(err, "finding template by name")
	}
	return nil
}

func (svc *Service) checkRole(ctx context.Context, role, selfID string) error {
	if role == "" {
		return nil
	}
	t, err := svc.repo.GetTemplateByRole(ctx, role)
	if err == nil && t.ID != selfID {
		return core.NewValidationError(ErrRoleBound, core.FieldError{Field: "role", Error: ErrRoleBound.Error()})
	}
	if err != nil && !core.IsNotFound(err) {
		return errors.Wrap(err, "finding template by role")
	}
	return nil
}

// checkParent verifies that parentID exists and that making it the parent of selfID keeps the
// inheritance chain acyclic and within MaxDepth.
func (svc *Service) checkParent(ctx context.Context, selfID, parentID string) error {
	fieldErr := func(err error) error {
		return core.NewValidationError(err, core.FieldError{Field: "parent_id", Error: err.Error()})
	}

	if parentID == selfID {
		return fieldErr(ErrCycle)
	}
	depth := 1 // self
	for id := parentID; id != ""; {
		if id == selfID {
			return fieldErr(ErrCycle)
		}
		depth++
		if depth > MaxDepth {
			return fieldErr(ErrTooDeep)
		}
		t, err := svc.repo.GetTemplate(ctx, id)
		if err != nil {
			if core.IsNotFound(err) {
				if id == parentID {
					return core.NewFieldError("parent_id", errParentMissing)
				}
				break
			}
			return errors.Wrap(err, "finding parent template")
		}
		id = t.ParentID
	}

	// children of self move along with it
	if selfID != "" {
		sub, err := svc.subtreeDepth(ctx, selfID)
		if err != nil {
			return err
		}
		if depth+sub-1 > MaxDepth {
			return fieldErr(ErrTooDeep)
		}
	}
	return nil
}

// subtreeDepth returns the number of levels from id (1) down to its deepest descendant.
func (svc *Service) subtreeDepth(ctx context.Context, id string) (int, error) {
	templates, err := svc.repo.QueryTemplates(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "querying templates")
	}
	children := make(map[string][]string, len(templates))
	for _, t := range templates {
		if t.ParentID != "" {
			children[t.ParentID] = append(children[t.ParentID], t.ID)
		}
	}

	var walk func(id string, level int) int
	walk = func(id string, level int) int {
		if level > MaxDepth+1 {
			return level
		}
		max := level
		for _, child := range children[id] {
			if d := walk(child, level+1); d > max {
				max = d
			}
		}
		return max
	}
	return walk(id, 1), nil
}

// Effective returns the permissions granted by a template: effective(parent) ∪ grants − denies,
// resolved from the root of its chain.
func (svc *Service) Effective(ctx context.Context, id string) ([]string, error) {
	return svc.cache.GetOrLoad(ctx, "tmpl:"+id, func(ctx context.Context) ([]string, error) {
		chain := make([]Template, 0, 4)
		seen := make(map[string]bool, 4)
		for next := id; next != ""; {
			if seen[next] {
				return nil, ErrCycle
			}
			if len(chain) == MaxDepth {
				return nil, ErrTooDeep
			}
			seen[next] = true

			t, err := svc.Get(ctx, next)
			if err != nil {
				return nil, err
			}
			chain = append(chain, t)
			next = t.ParentID
		}

		perms := make([]string, 0)
		for i := len(chain) - 1; i >= 0; i-- {
			perms = apply(perms, chain[i])
		}
		return perms, nil
	})
}

// Permissions returns the catalog permissions held by usr: the union of the effective permissions
// of the templates bound to each of their roles. Owners hold every permission.
func (svc *Service) Permissions(ctx context.Context, usr user.User) ([]string, error) {
	if usr.IsOwner() {
		perms := expand([]string{Wildcard})
		sort.Strings(perms)
		return perms, nil
	}

	set := make(map[string]bool)
	for _, role := range usr.Roles {
		perms, err := svc.rolePermissions(ctx, role)
		if err != nil {
			return nil, err
		}
		for _, p := range perms {
			set[p] = true
		}
	}

	perms := make([]string, 0, len(set))
	for p := range set {
		perms = append(perms, p)
	}
	sort.Strings(perms)
	return perms, nil
}

func (svc *Service) rolePermissions(ctx context.Context, role string) ([]string, error) {
	return svc.cache.GetOrLoad(ctx, "role:"+role, func(ctx context.Context) ([]string, error) {
		t, err := svc.repo.GetTemplateByRole(ctx, role)
		if err != nil {
			if core.IsNotFound(err) {
				return []string{}, nil
			}
			return nil, errors.Wrap(err, "finding template by role")
		}
		return svc.Effective(ctx, t.ID)
	})
}

// Can reports whether usr holds perm.
func (svc *Service) Can(ctx context.Context, usr user.User, perm string) (bool, error) {
	if !usr.IsActive {
		return false, nil
	}
	if usr.IsOwner() {
		return true, nil
	}
	for _, role := range usr.Roles {
		perms, err := svc.rolePermissions(ctx, role)
		if err != nil {
			return false, err
		}
		if contains(perms, perm) {
			return true, nil
		}
	}
	return false, nil
}

// defaultTemplates is the seeded chain, root first.
var defaultTemplates = []NewTemplate{
	{
		Name:        "Student",
		Description: "Default permissions of students",
		Role:        user.RoleStudent,
		Grants: []string{
			CampusRead, ProgramRead, ClassRead, TimetableRead, CalendarRead, GradeRead, ReportRead, DocumentRead,
		},
	},
	{
		Name:        "Teacher",
		Description: "Default permissions of teachers",
		Role:        user.RoleTeacher,
		Grants:      []string{TeacherRead, StudentRead, AssessmentRead, GradeWrite, DocumentWrite},
	},
	{
		Name:        "Admin",
		Description: "Default permissions of administrators",
		Role:        user.RoleAdmin,
		Grants: []string{
			"campus:*", "program:*", "class:*", "teacher:*", "student:*", "timetable:*", "assessment:*",
			"grade:*", "calendar:*", "document:*", "user:*", PermissionRead,
		},
	},
	{
		Name:        "Principal",
		Description: "Default permissions of principals",
		Role:        user.RoleAdminPrincipal,
		Grants:      []string{PermissionWrite},
	},
}

// EnsureDefaults seeds the Student -> Teacher -> Admin -> Principal chain, skipping templates that
// already exist by name. It returns the number of templates created.
func (svc *Service) EnsureDefaults(ctx context.Context) (int, error) {
	var created int
	var parentID string
	for _, nt := range defaultTemplates {
		t, err := svc.repo.GetTemplateByName(ctx, nt.Name)
		if err == nil {
			parentID = t.ID
			continue
		}
		if !core.IsNotFound(err) {
			return created, errors.Wrap(err, "finding template by name")
		}

		nt.ParentID = parentID
		if _, err = svc.repo.GetTemplateByRole(ctx, nt.Role); err == nil {
			nt.Role = "" // keep an existing binding
		}
		t, err = svc.Create(ctx, nt)
		if err != nil {
			return created, errors.Wrapf(err, "creating %s template", nt.Name)
		}
		parentID = t.ID
		created++
	}
	return created, nil
}
