package teacher

import (
	"context"

	"github.com/pkg/errors"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/campus"
	"github.com/academia-hq/academia/core/user"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("teacher not found")
	ErrEmployeeNoExists = errors.New("a teacher with this employee number already exists")
	ErrUserIsTeacher    = errors.New("this user is already registered as a teacher")
	ErrNotTeacherRole   = errors.New("user does not hold the teacher role")
)

type (
	Repository interface {
		CreateTeacher(ctx context.Context, t Teacher) (Teacher, error)
		GetTeacher(ctx context.Context, id string) (Teacher, error)
		GetTeacherByUser(ctx context.Context, userID string) (Teacher, error)
		GetTeacherByEmployeeNo(ctx context.Context, employeeNo string) (Teacher, error)
		// QueryTeachers matches QueryFilter.Search against the employee number and the user's name or email.
		QueryTeachers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Teacher, error)
		UpdateTeacher(ctx context.Context, t Teacher) (Teacher, error)
		DeleteTeacher(ctx context.Context, id string) error
	}

	CampusGetter interface {
		Get(ctx context.Context, id string) (campus.Campus, error)
	}

	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		repo     Repository
		campuses CampusGetter
		users    UserGetter
	}
)

func NewService(repo Repository, campuses CampusGetter, users UserGetter) *Service {
	return &Service{repo: repo, campuses: campuses, users: users}
}

func (svc *Service) checkCampus(ctx context.Context, campusID string) error {
	if _, err := svc.campuses.Get(ctx, campusID); err != nil {
		if core.IsNotFound(err) {
			return core.NewFieldError("campus_id", "campus not found")
		}
		return err
	}
	return nil
}

func (svc *Service) checkUser(ctx context.Context, userID string) error {
	usr, err := svc.users.GetByID(ctx, userID)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewFieldError("user_id", "user not found")
		}
		return err
	}
	if !usr.IsTeacher() {
		return core.NewFieldError("user_id", ErrNotTeacherRole.Error())
	}
	if _, err = svc.repo.GetTeacherByUser(ctx, userID); err == nil {
		return core.NewFieldError("user_id", ErrUserIsTeacher.Error())
	} else if !core.IsNotFound(err) {
		return errors.Wrap(err, "finding teacher by user")
	}
	return nil
}

func (svc *Service) checkEmployeeNo(ctx context.Context, no, selfID string) error {
	t, err := svc.repo.GetTeacherByEmployeeNo(ctx, no)
	if err == nil && t.ID != selfID {
		return core.NewValidationError(ErrEmployeeNoExists, core.FieldError{Field: "employee_no", Error: ErrEmployeeNoExists.Error()})
	}
	if err != nil && !core.IsNotFound(err) {
		return errors.Wrap(err, "finding teacher by employee number")
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nt NewTeacher) (Teacher, error) {
	now := core.Now()
	if nt.HiredOn.IsZero() {
		nt.HiredOn = core.DateOf(now)
	}
	return svc.repo.CreateTeacher(ctx, Teacher{
		ID:          core.NewID(),
		UserID:      nt.UserID,
		CampusID:    nt.CampusID,
		EmployeeNo:  nt.EmployeeNo,
		Specialties: nt.Specialties,
		HiredOn:     nt.HiredOn,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *Service) Get(ctx context.Context, id string) (Teacher, error) {
	if !core.IsValidID(id) {
		return Teacher{}, ErrNotFound
	}
	return svc.repo.GetTeacher(ctx, id)
}

// GetByUser returns the teacher profile of a user.
func (svc *Service) GetByUser(ctx context.Context, userID string) (Teacher, error) {
	return svc.repo.GetTeacherByUser(ctx, userID)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Teacher, error) {
	return svc.repo.QueryTeachers(ctx, filter, core.FilterOrderings(ordering, OrderingFields))
}

func (svc *Service) Update(ctx context.Context, t Teacher, ut UpdateTeacher) (Teacher, error) {
	if ut.CampusID != nil {
		t.CampusID = *ut.CampusID
	}
	if ut.EmployeeNo != nil {
		t.EmployeeNo = *ut.EmployeeNo
	}
	if ut.Specialties != nil {
		t.Specialties = ut.Specialties
	}
	if ut.HiredOn != nil && !ut.HiredOn.IsZero() {
		t.HiredOn = *ut.HiredOn
	}
	if ut.IsActive != nil {
		t.IsActive = *ut.IsActive
	}
	t.UpdatedAt = core.Now()
	return svc.repo.UpdateTeacher(ctx, t)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteTeacher(ctx, id)
}
