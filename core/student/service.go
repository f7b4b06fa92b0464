package student

import (
	"context"

	"github.com/pkg/errors"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/campus"
	"github.com/academia-hq/academia/core/user"
)

var (
	// errors
	ErrNotFound             = core.NewNotFoundError("student not found")
	ErrRegistrationNoExists = errors.New("a student with this registration number already exists")
	ErrUserIsStudent        = errors.New("this user is already registered as a student")
	ErrNotStudentRole       = errors.New("user does not hold the student role")
)

type (
	Repository interface {
		CreateStudent(ctx context.Context, s Student) (Student, error)
		GetStudent(ctx context.Context, id string) (Student, error)
		GetStudentByUser(ctx context.Context, userID string) (Student, error)
		GetStudentByRegistrationNo(ctx context.Context, registrationNo string) (Student, error)
		// QueryStudents matches QueryFilter.Search against the registration number and the user's name or email.
		QueryStudents(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		UpdateStudent(ctx context.Context, s Student) (Student, error)
		DeleteStudent(ctx context.Context, id string) error
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
	if !usr.IsStudent() {
		return core.NewFieldError("user_id", ErrNotStudentRole.Error())
	}
	if _, err = svc.repo.GetStudentByUser(ctx, userID); err == nil {
		return core.NewFieldError("user_id", ErrUserIsStudent.Error())
	} else if !core.IsNotFound(err) {
		return errors.Wrap(err, "finding student by user")
	}
	return nil
}

func (svc *Service) checkRegistrationNo(ctx context.Context, no, selfID string) error {
	s, err := svc.repo.GetStudentByRegistrationNo(ctx, no)
	if err == nil && s.ID != selfID {
		return core.NewValidationError(ErrRegistrationNoExists, core.FieldError{Field: "registration_no", Error: ErrRegistrationNoExists.Error()})
	}
	if err != nil && !core.IsNotFound(err) {
		return errors.Wrap(err, "finding student by registration number")
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	now := core.Now()
	return svc.repo.CreateStudent(ctx, Student{
		ID:             core.NewID(),
		UserID:         ns.UserID,
		CampusID:       ns.CampusID,
		RegistrationNo: ns.RegistrationNo,
		DateOfBirth:    ns.DateOfBirth,
		GuardianName:   ns.GuardianName,
		GuardianEmail:  ns.GuardianEmail,
		GuardianPhone:  ns.GuardianPhone,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
}

func (svc *Service) Get(ctx context.Context, id string) (Student, error) {
	if !core.IsValidID(id) {
		return Student{}, ErrNotFound
	}
	return svc.repo.GetStudent(ctx, id)
}

// GetByUser returns the student profile of a user.
func (svc *Service) GetByUser(ctx context.Context, userID string) (Student, error) {
	return svc.repo.GetStudentByUser(ctx, userID)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, filter, core.FilterOrderings(ordering, OrderingFields))
}

func (svc *Service) Update(ctx context.Context, s Student, us UpdateStudent) (Student, error) {
	if us.CampusID != nil {
		s.CampusID = *us.CampusID
	}
	if us.RegistrationNo != nil {
		s.RegistrationNo = *us.RegistrationNo
	}
	if us.DateOfBirth != nil && !us.DateOfBirth.IsZero() {
		s.DateOfBirth = *us.DateOfBirth
	}
	if us.GuardianName != nil {
		s.GuardianName = core.CleanString(*us.GuardianName)
	}
	if us.GuardianEmail != nil {
		s.GuardianEmail = *us.GuardianEmail
	}
	if us.GuardianPhone != nil {
		s.GuardianPhone = core.CleanString(*us.GuardianPhone)
	}
	s.UpdatedAt = core.Now()
	return svc.repo.UpdateStudent(ctx, s)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteStudent(ctx, id)
}

// Recipient resolves the account to notify about a student. Inactive accounts yield an empty email.
func (svc *Service) Recipient(ctx context.Context, studentID string) (Recipient, error) {
	s, err := svc.repo.GetStudent(ctx, studentID)
	if err != nil {
		return Recipient{}, err
	}
	usr, err := svc.users.GetByID(ctx, s.UserID)
	if err != nil {
		return Recipient{}, errors.Wrap(err, "getting student user")
	}
	rcp := Recipient{StudentID: s.ID, Name: usr.Name}
	if usr.IsActive {
		rcp.Email = usr.Email
	}
	return rcp, nil
}
