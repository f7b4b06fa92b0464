package student

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/academia-hq/academia/core"
)

type Student struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	CampusID       string    `json:"campus_id"`
	RegistrationNo string    `json:"registration_no"`
	DateOfBirth    core.Date `json:"date_of_birth"`
	GuardianName   string    `json:"guardian_name"`
	GuardianEmail  string    `json:"guardian_email"`
	GuardianPhone  string    `json:"guardian_phone"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Recipient is who gets notified about a student: the student's own account.
type Recipient struct {
	StudentID string
	Name      string
	Email     string
}

// NewStudent contains information needed to register a user as a Student.
type NewStudent struct {
	UserID         string    `json:"user_id" validate:"required,uuid"`
	CampusID       string    `json:"campus_id" validate:"required,uuid"`
	RegistrationNo string    `json:"registration_no" validate:"required,alphanum_,max=32"`
	DateOfBirth    core.Date `json:"date_of_birth" validate:"required"`
	GuardianName   string    `json:"guardian_name" validate:"max=128"`
	GuardianEmail  string    `json:"guardian_email" validate:"omitempty,email"`
	GuardianPhone  string    `json:"guardian_phone" validate:"omitempty,e164"`
}

func (ns *NewStudent) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	ns.RegistrationNo = strings.ToUpper(core.CleanString(ns.RegistrationNo))
	ns.GuardianName = core.CleanString(ns.GuardianName)
	ns.GuardianEmail = core.CleanString(ns.GuardianEmail, true)
	ns.GuardianPhone = core.CleanString(ns.GuardianPhone)
	if err := validate.Struct(ns); err != nil {
		return err
	}
	if !ns.DateOfBirth.Before(core.DateOf(core.Now())) {
		return core.NewFieldError("date_of_birth", "must be in the past")
	}
	if err := svc.checkCampus(ctx, ns.CampusID); err != nil {
		return err
	}
	if err := svc.checkUser(ctx, ns.UserID); err != nil {
		return err
	}
	return svc.checkRegistrationNo(ctx, ns.RegistrationNo, "")
}

// UpdateStudent defines what information may be provided to modify an existing Student.
type UpdateStudent struct {
	CampusID       *string    `json:"campus_id" validate:"omitempty,uuid"`
	RegistrationNo *string    `json:"registration_no" validate:"omitempty,alphanum_,max=32"`
	DateOfBirth    *core.Date `json:"date_of_birth"`
	GuardianName   *string    `json:"guardian_name" validate:"omitempty,max=128"`
	GuardianEmail  *string    `json:"guardian_email" validate:"omitempty,email"`
	GuardianPhone  *string    `json:"guardian_phone" validate:"omitempty,e164"`
}

func (us *UpdateStudent) Validate(ctx context.Context, orig Student, validate *validator.Validate, svc *Service) error {
	if us.RegistrationNo != nil {
		no := strings.ToUpper(core.CleanString(*us.RegistrationNo))
		us.RegistrationNo = &no
	}
	if us.GuardianEmail != nil {
		email := core.CleanString(*us.GuardianEmail, true)
		us.GuardianEmail = &email
	}
	if err := validate.Struct(us); err != nil {
		return err
	}
	if us.DateOfBirth != nil && !us.DateOfBirth.IsZero() && !us.DateOfBirth.Before(core.DateOf(core.Now())) {
		return core.NewFieldError("date_of_birth", "must be in the past")
	}
	if us.CampusID != nil && *us.CampusID != orig.CampusID {
		if err := svc.checkCampus(ctx, *us.CampusID); err != nil {
			return err
		}
	}
	if us.RegistrationNo != nil && *us.RegistrationNo != orig.RegistrationNo {
		return svc.checkRegistrationNo(ctx, *us.RegistrationNo, orig.ID)
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
	"registration_no": "registration_no",
	"date_of_birth":   "date_of_birth",
	"created_at":      "created_at",
}
