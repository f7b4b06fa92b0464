package teacher

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/academia-hq/academia/core"
)

type Teacher struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	CampusID    string    `json:"campus_id"`
	EmployeeNo  string    `json:"employee_no"`
	Specialties []string  `json:"specialties"`
	HiredOn     core.Date `json:"hired_on"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewTeacher contains information needed to register a user as a Teacher.
type NewTeacher struct {
	UserID      string    `json:"user_id" validate:"required,uuid"`
	CampusID    string    `json:"campus_id" validate:"required,uuid"`
	EmployeeNo  string    `json:"employee_no" validate:"required,alphanum_,max=32"`
	Specialties []string  `json:"specialties" validate:"omitempty,unique,dive,notblank,max=64"`
	HiredOn     core.Date `json:"hired_on"`
}

func (nt *NewTeacher) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nt.EmployeeNo = strings.ToUpper(core.CleanString(nt.EmployeeNo))
	nt.Specialties = cleanSpecialties(nt.Specialties)
	if err := validate.Struct(nt); err != nil {
		return err
	}
	if err := svc.checkCampus(ctx, nt.CampusID); err != nil {
		return err
	}
	if err := svc.checkUser(ctx, nt.UserID); err != nil {
		return err
	}
	return svc.checkEmployeeNo(ctx, nt.EmployeeNo, "")
}

// UpdateTeacher defines what information may be provided to modify an existing Teacher.
type UpdateTeacher struct {
	CampusID    *string    `json:"campus_id" validate:"omitempty,uuid"`
	EmployeeNo  *string    `json:"employee_no" validate:"omitempty,alphanum_,max=32"`
	Specialties []string   `json:"specialties" validate:"omitempty,unique,dive,notblank,max=64"`
	HiredOn     *core.Date `json:"hired_on"`
	IsActive    *bool      `json:"is_active"`
}

func (ut *UpdateTeacher) Validate(ctx context.Context, orig Teacher, validate *validator.Validate, svc *Service) error {
	if ut.EmployeeNo != nil {
		no := strings.ToUpper(core.CleanString(*ut.EmployeeNo))
		ut.EmployeeNo = &no
	}
	if ut.Specialties != nil {
		ut.Specialties = cleanSpecialties(ut.Specialties)
	}
	if err := validate.Struct(ut); err != nil {
		return err
	}
	if ut.CampusID != nil && *ut.CampusID != orig.CampusID {
		if err := svc.checkCampus(ctx, *ut.CampusID); err != nil {
			return err
		}
	}
	if ut.EmployeeNo != nil && *ut.EmployeeNo != orig.EmployeeNo {
		return svc.checkEmployeeNo(ctx, *ut.EmployeeNo, orig.ID)
	}
	return nil
}

func cleanSpecialties(specs []string) []string {
	cleaned := make([]string, 0, len(specs))
	for _, s := range specs {
		cleaned = append(cleaned, core.CleanString(s))
	}
	return cleaned
}

type QueryFilter struct {
	CampusID  string `query:"campus_id"`
	Search    string `query:"search"`
	Specialty string `query:"specialty"`
	IsActive  *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Specialty = core.CleanString(qf.Specialty)
}

// OrderingFields maps the sortable JSON fields to their columns.
var OrderingFields = map[string]string{
	"employee_no": "employee_no",
	"hired_on":    "hired_on",
	"created_at":  "created_at",
}
