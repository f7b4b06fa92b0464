package permission

import (
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/academia-hq/academia/core"
)

// Wildcard grants every permission.
const Wildcard = "*"

// Permissions
const (
	CampusRead      = "campus:read"
	CampusWrite     = "campus:write"
	ProgramRead     = "program:read"
	ProgramWrite    = "program:write"
	ClassRead       = "class:read"
	ClassWrite      = "class:write"
	TeacherRead     = "teacher:read"
	TeacherWrite    = "teacher:write"
	StudentRead     = "student:read"
	StudentWrite    = "student:write"
	TimetableRead   = "timetable:read"
	TimetableWrite  = "timetable:write"
	AssessmentRead  = "assessment:read"
	AssessmentWrite = "assessment:write"
	GradeRead       = "grade:read"
	GradeWrite      = "grade:write"
	GradePublish    = "grade:publish"
	ReportRead      = "report:read"
	CalendarRead    = "calendar:read"
	CalendarWrite   = "calendar:write"
	DocumentRead    = "document:read"
	DocumentWrite   = "document:write"
	PermissionRead  = "permission:read"
	PermissionWrite = "permission:write"
	UserRead        = "user:read"
	UserWrite       = "user:write"
)

type Permission struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Catalog lists every permission known to the app.
var Catalog = []Permission{
	{Code: CampusRead, Description: "View campuses"},
	{Code: CampusWrite, Description: "Create, update and delete campuses"},
	{Code: ProgramRead, Description: "View programs and their subjects"},
	{Code: ProgramWrite, Description: "Manage programs and subjects"},
	{Code: ClassRead, Description: "View classes, enrollments and class subjects"},
	{Code: ClassWrite, Description: "Manage classes, enrollments and class subjects"},
	{Code: TeacherRead, Description: "View teachers"},
	{Code: TeacherWrite, Description: "Manage teachers"},
	{Code: StudentRead, Description: "View students"},
	{Code: StudentWrite, Description: "Manage students"},
	{Code: TimetableRead, Description: "View timetables"},
	{Code: TimetableWrite, Description: "Manage timetable slots"},
	{Code: AssessmentRead, Description: "View assessment systems"},
	{Code: AssessmentWrite, Description: "Manage assessment systems"},
	{Code: GradeRead, Description: "View grades"},
	{Code: GradeWrite, Description: "Record and delete grades"},
	{Code: GradePublish, Description: "Publish grades"},
	{Code: ReportRead, Description: "View report cards"},
	{Code: CalendarRead, Description: "View academic years, terms and events"},
	{Code: CalendarWrite, Description: "Manage academic years, terms and events"},
	{Code: DocumentRead, Description: "Search and view documents"},
	{Code: DocumentWrite, Description: "Upload and delete documents"},
	{Code: PermissionRead, Description: "View permission templates"},
	{Code: PermissionWrite, Description: "Manage permission templates"},
	{Code: UserRead, Description: "View users"},
	{Code: UserWrite, Description: "Manage users"},
}

var catalogIndex = func() map[string]bool {
	idx := make(map[string]bool, len(Catalog))
	for _, p := range Catalog {
		idx[p.Code] = true
	}
	return idx
}()

// IsValid reports whether perm is a catalog permission, a resource wildcard ("grade:*") or Wildcard.
func IsValid(perm string) bool {
	if perm == Wildcard || catalogIndex[perm] {
		return true
	}
	if strings.HasSuffix(perm, ":*") {
		prefix := strings.TrimSuffix(perm, "*")
		for code := range catalogIndex {
			if strings.HasPrefix(code, prefix) {
				return true
			}
		}
	}
	return false
}

// Match reports whether pattern covers perm.
func Match(pattern, perm string) bool {
	if pattern == Wildcard || pattern == perm {
		return true
	}
	if strings.HasSuffix(pattern, ":*") {
		return strings.HasPrefix(perm, strings.TrimSuffix(pattern, "*"))
	}
	return false
}

// Template is a named set of granted and denied permissions, optionally inheriting from a parent
// and optionally bound to a user role.
type Template struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Role        string    `json:"role,omitempty"`
	ParentID    string    `json:"parent_id,omitempty"`
	Grants      []string  `json:"grants"`
	Denies      []string  `json:"denies"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// expand lists the catalog permissions covered by any of patterns.
func expand(patterns []string) []string {
	perms := make([]string, 0, len(patterns))
	for _, p := range Catalog {
		for _, pattern := range patterns {
			if Match(pattern, p.Code) {
				perms = append(perms, p.Code)
				break
			}
		}
	}
	return perms
}

// apply returns inherited ∪ grants − denies, wildcards being expanded against the Catalog.
func apply(inherited []string, t Template) []string {
	set := make(map[string]bool, len(Catalog))
	for _, p := range inherited {
		set[p] = true
	}
	for _, p := range expand(t.Grants) {
		set[p] = true
	}
	for _, p := range expand(t.Denies) {
		delete(set, p)
	}

	perms := make([]string, 0, len(set))
	for p := range set {
		perms = append(perms, p)
	}
	sort.Strings(perms)
	return perms
}

func contains(perms []string, perm string) bool {
	idx := sort.SearchStrings(perms, perm)
	return idx < len(perms) && perms[idx] == perm
}

// NewTemplate contains information needed to create a new Template.
type NewTemplate struct {
	Name        string   `json:"name" validate:"required,notblank,max=64"`
	Description string   `json:"description" validate:"max=255"`
	Role        string   `json:"role" validate:"omitempty,role"`
	ParentID    string   `json:"parent_id" validate:"omitempty,uuid"`
	Grants      []string `json:"grants" validate:"dive,perm"`
	Denies      []string `json:"denies" validate:"dive,perm"`
}

func (nt *NewTemplate) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Description = core.CleanString(nt.Description)
	nt.Role = core.CleanString(nt.Role, true /* lower */)
	nt.Grants = cleanPerms(nt.Grants)
	nt.Denies = cleanPerms(nt.Denies)
	return validate.Struct(nt)
}

// UpdateTemplate defines what information may be provided to modify an existing Template.
// nil fields are left unchanged; an empty Role or ParentID clears it.
type UpdateTemplate struct {
	Name        *string  `json:"name" validate:"omitempty,notblank,max=64"`
	Description *string  `json:"description" validate:"omitempty,max=255"`
	Role        *string  `json:"role" validate:"omitempty"`
	ParentID    *string  `json:"parent_id" validate:"omitempty"`
	Grants      []string `json:"grants" validate:"omitempty,dive,perm"`
	Denies      []string `json:"denies" validate:"omitempty,dive,perm"`
}

func (ut *UpdateTemplate) Validate(validate *validator.Validate) error {
	if ut.Name != nil {
		name := core.CleanString(*ut.Name)
		ut.Name = &name
	}
	if ut.Role != nil {
		role := core.CleanString(*ut.Role, true /* lower */)
		ut.Role = &role
	}
	if ut.Grants != nil {
		ut.Grants = cleanPerms(ut.Grants)
	}
	if ut.Denies != nil {
		ut.Denies = cleanPerms(ut.Denies)
	}
	if err := validate.Struct(ut); err != nil {
		return err
	}
	if ut.Role != nil && *ut.Role != "" && !isValidRole(*ut.Role) {
		return core.NewFieldError("role", roleText)
	}
	if ut.ParentID != nil && *ut.ParentID != "" && !core.IsValidID(*ut.ParentID) {
		return core.NewFieldError("parent_id", "parent_id must be a valid UUID")
	}
	return nil
}

func cleanPerms(perms []string) []string {
	seen := make(map[string]bool, len(perms))
	cleaned := make([]string, 0, len(perms))
	for _, p := range perms {
		p = core.CleanString(p, true /* lower */)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		cleaned = append(cleaned, p)
	}
	sort.Strings(cleaned)
	return cleaned
}
