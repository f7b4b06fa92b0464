package campus

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/academia-hq/academia/core"
)

type Campus struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Code        string         `json:"code"`
	Address     string         `json:"address"`
	Timezone    string         `json:"timezone"`
	WorkingDays []core.Weekday `json:"working_days"`
	IsActive    bool           `json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Location returns the campus time zone, UTC when it cannot be loaded.
func (c Campus) Location() *time.Location {
	if loc, err := time.LoadLocation(c.Timezone); err == nil {
		return loc
	}
	return time.UTC
}

func (c Campus) IsWorkingDay(d core.Weekday) bool {
	return core.ContainsWeekday(c.WorkingDays, d)
}

// NewCampus contains information needed to create a new Campus.
type NewCampus struct {
	Name        string         `json:"name" validate:"required,notblank,max=128"`
	Code        string         `json:"code" validate:"required,alphanum_,max=16"`
	Address     string         `json:"address" validate:"max=255"`
	Timezone    string         `json:"timezone" validate:"required,timezone"`
	WorkingDays []core.Weekday `json:"working_days" validate:"omitempty,unique,dive,min=0,max=6"`
	IsActive    *bool          `json:"is_active"`
}

func (nc *NewCampus) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Code = strings.ToUpper(core.CleanString(nc.Code))
	nc.Address = core.CleanString(nc.Address)
	nc.Timezone = core.CleanString(nc.Timezone)
	if err := validate.Struct(nc); err != nil {
		return err
	}
	return svc.checkCode(ctx, nc.Code, "")
}

// UpdateCampus defines what information may be provided to modify an existing Campus.
type UpdateCampus struct {
	Name        *string        `json:"name" validate:"omitempty,notblank,max=128"`
	Code        *string        `json:"code" validate:"omitempty,alphanum_,max=16"`
	Address     *string        `json:"address" validate:"omitempty,max=255"`
	Timezone    *string        `json:"timezone" validate:"omitempty,timezone"`
	WorkingDays []core.Weekday `json:"working_days" validate:"omitempty,unique,dive,min=0,max=6"`
	IsActive    *bool          `json:"is_active"`
}

func (uc *UpdateCampus) Validate(ctx context.Context, orig Campus, validate *validator.Validate, svc *Service) error {
	if uc.Name != nil {
		name := core.CleanString(*uc.Name)
		uc.Name = &name
	}
	if uc.Code != nil {
		code := strings.ToUpper(core.CleanString(*uc.Code))
		uc.Code = &code
	}
	if uc.Timezone != nil {
		tz := core.CleanString(*uc.Timezone)
		uc.Timezone = &tz
	}
	if err := validate.Struct(uc); err != nil {
		return err
	}
	if uc.Code != nil && *uc.Code != orig.Code {
		return svc.checkCode(ctx, *uc.Code, orig.ID)
	}
	return nil
}

type QueryFilter struct {
	Search   string `query:"search"`
	IsActive *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// OrderingFields maps the sortable JSON fields to their columns.
var OrderingFields = map[string]string{
	"name":       "name",
	"code":       "code",
	"is_active":  "is_active",
	"created_at": "created_at",
}
