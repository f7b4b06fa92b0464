package program

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/academia-hq/academia/core"
)

// MaxLevels is the highest number of levels (years) a program may span.
const MaxLevels = 12

type Program struct {
	ID          string    `json:"id"`
	CampusID    string    `json:"campus_id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Levels      int       `json:"levels"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Subject is taught in a program, at one level or at every level (Level 0).
type Subject struct {
	ID           string    `json:"id"`
	ProgramID    string    `json:"program_id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	Coefficient  float64   `json:"coefficient"`
	Level        int       `json:"level"`
	HoursPerWeek float64   `json:"hours_per_week"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AppliesTo reports whether the subject is taught at level.
func (s Subject) AppliesTo(level int) bool {
	return s.Level == 0 || s.Level == level
}

// NewProgram contains information needed to create a new Program.
type NewProgram struct {
	CampusID    string `json:"campus_id" validate:"required,uuid"`
	Name        string `json:"name" validate:"required,notblank,max=128"`
	Code        string `json:"code" validate:"required,alphanum_,max=16"`
	Levels      int    `json:"levels" validate:"required,min=1,max=12"`
	Description string `json:"description" validate:"max=1024"`
}

func (np *NewProgram) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	np.Name = core.CleanString(np.Name)
	np.Code = strings.ToUpper(core.CleanString(np.Code))
	np.Description = core.CleanString(np.Description)
	if err := validate.Struct(np); err != nil {
		return err
	}
	if _, err := svc.campuses.Get(ctx, np.CampusID); err != nil {
		if core.IsNotFound(err) {
			return core.NewFieldError("campus_id", "campus not found")
		}
		return err
	}
	return svc.checkProgramCode(ctx, np.CampusID, np.Code, "")
}

// UpdateProgram defines what information may be provided to modify an existing Program.
// The campus of a program cannot change.
type UpdateProgram struct {
	Name        *string `json:"name" validate:"omitempty,notblank,max=128"`
	Code        *string `json:"code" validate:"omitempty,alphanum_,max=16"`
	Levels      *int    `json:"levels" validate:"omitempty,min=1,max=12"`
	Description *string `json:"description" validate:"omitempty,max=1024"`
}

func (up *UpdateProgram) Validate(ctx context.Context, orig Program, validate *validator.Validate, svc *Service) error {
	if up.Name != nil {
		name := core.CleanString(*up.Name)
		up.Name = &name
	}
	if up.Code != nil {
		code := strings.ToUpper(core.CleanString(*up.Code))
		up.Code = &code
	}
	if err := validate.Struct(up); err != nil {
		return err
	}
	if up.Code != nil && *up.Code != orig.Code {
		if err := svc.checkProgramCode(ctx, orig.CampusID, *up.Code, orig.ID); err != nil {
			return err
		}
	}
	if up.Levels != nil && *up.Levels < orig.Levels {
		subjects, err := svc.repo.QuerySubjects(ctx, orig.ID)
		if err != nil {
			return err
		}
		for _, s := range subjects {
			if s.Level > *up.Levels {
				return core.NewFieldError("levels", "some subjects are taught at a higher level")
			}
		}
	}
	return nil
}

// NewSubject contains information needed to add a Subject to a Program.
type NewSubject struct {
	Code         string  `json:"code" validate:"required,alphanum_,max=16"`
	Name         string  `json:"name" validate:"required,notblank,max=128"`
	Coefficient  float64 `json:"coefficient" validate:"required,gt=0"`
	Level        int     `json:"level" validate:"min=0,max=12"`
	HoursPerWeek float64 `json:"hours_per_week" validate:"min=0,max=60"`
}

func (ns *NewSubject) Validate(ctx context.Context, prog Program, validate *validator.Validate, svc *Service) error {
	ns.Code = strings.ToUpper(core.CleanString(ns.Code))
	ns.Name = core.CleanString(ns.Name)
	if err := validate.Struct(ns); err != nil {
		return err
	}
	if ns.Level > prog.Levels {
		return core.NewFieldError("level", "level exceeds the program levels")
	}
	return svc.checkSubjectCode(ctx, prog.ID, ns.Code, "")
}

// UpdateSubject defines what information may be provided to modify an existing Subject.
type UpdateSubject struct {
	Code         *string  `json:"code" validate:"omitempty,alphanum_,max=16"`
	Name         *string  `json:"name" validate:"omitempty,notblank,max=128"`
	Coefficient  *float64 `json:"coefficient" validate:"omitempty,gt=0"`
	Level        *int     `json:"level" validate:"omitempty,min=0,max=12"`
	HoursPerWeek *float64 `json:"hours_per_week" validate:"omitempty,min=0,max=60"`
}

func (us *UpdateSubject) Validate(ctx context.Context, orig Subject, validate *validator.Validate, svc *Service) error {
	if us.Code != nil {
		code := strings.ToUpper(core.CleanString(*us.Code))
		us.Code = &code
	}
	if us.Name != nil {
		name := core.CleanString(*us.Name)
		us.Name = &name
	}
	if err := validate.Struct(us); err != nil {
		return err
	}
	if us.Level != nil {
		prog, err := svc.Get(ctx, orig.ProgramID)
		if err != nil {
			return err
		}
		if *us.Level > prog.Levels {
			return core.NewFieldError("level", "level exceeds the program levels")
		}
	}
	if us.Code != nil && *us.Code != orig.Code {
		return svc.checkSubjectCode(ctx, orig.ProgramID, *us.Code, orig.ID)
	}
	return nil
}

type QueryFilter struct {
	CampusID string `query:"campus_id"`
	Search   string `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// OrderingFields maps the sortable JSON fields to their columns.
var OrderingFields = map[string]string{
	"name":       "name",
	"code":       "code",
	"levels":     "levels",
	"created_at": "created_at",
}
