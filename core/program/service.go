package program

import (
	"context"

	"github.com/pkg/errors"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/campus"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("program not found")
	ErrSubjectNotFound   = core.NewNotFoundError("subject not found")
	ErrCodeExists        = errors.New("a program with this code already exists in the campus")
	ErrSubjectCodeExists = errors.New("a subject with this code already exists in the program")
	ErrInUse             = core.NewConflictError("program still has classes")
)

type (
	Repository interface {
		CreateProgram(ctx context.Context, p Program) (Program, error)
		GetProgram(ctx context.Context, id string) (Program, error)
		GetProgramByCode(ctx context.Context, campusID, code string) (Program, error)
		QueryPrograms(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Program, error)
		UpdateProgram(ctx context.Context, p Program) (Program, error)
		// DeleteProgram removes the program & its subjects; it returns ErrInUse when classes follow the program.
		DeleteProgram(ctx context.Context, id string) error

		CreateSubject(ctx context.Context, s Subject) (Subject, error)
		GetSubject(ctx context.Context, id string) (Subject, error)
		GetSubjectByCode(ctx context.Context, programID, code string) (Subject, error)
		// QuerySubjects returns the subjects of a program ordered by level then code.
		QuerySubjects(ctx context.Context, programID string) ([]Subject, error)
		UpdateSubject(ctx context.Context, s Subject) (Subject, error)
		DeleteSubject(ctx context.Context, id string) error
	}

	// CampusGetter finds campuses.
	CampusGetter interface {
		Get(ctx context.Context, id string) (campus.Campus, error)
	}

	Service struct {
		repo     Repository
		campuses CampusGetter
	}
)

func NewService(repo Repository, campuses CampusGetter) *Service {
	return &Service{repo: repo, campuses: campuses}
}

func (svc *Service) checkProgramCode(ctx context.Context, campusID, code, selfID string) error {
	p, err := svc.repo.GetProgramByCode(ctx, campusID, code)
	if err == nil && p.ID != selfID {
		return core.NewValidationError(ErrCodeExists, core.FieldError{Field: "code", Error: ErrCodeExists.Error()})
	}
	if err != nil && !core.IsNotFound(err) {
		return errors.Wrap(err, "finding program by code")
	}
	return nil
}

func (svc *Service) checkSubjectCode(ctx context.Context, programID, code, selfID string) error {
	s, err := svc.repo.GetSubjectByCode(ctx, programID, code)
	if err == nil && s.ID != selfID {
		return core.NewValidationError(ErrSubjectCodeExists, core.FieldError{Field: "code", Error: ErrSubjectCodeExists.Error()})
	}
	if err != nil && !core.IsNotFound(err) {
		return errors.Wrap(err, "finding subject by code")
	}
	return nil
}

// Campus returns the campus a program belongs to.
func (svc *Service) Campus(ctx context.Context, campusID string) (campus.Campus, error) {
	return svc.campuses.Get(ctx, campusID)
}

func (svc *Service) Create(ctx context.Context, np NewProgram) (Program, error) {
	now := core.Now()
	return svc.repo.CreateProgram(ctx, Program{
		ID:          core.NewID(),
		CampusID:    np.CampusID,
		Name:        np.Name,
		Code:        np.Code,
		Levels:      np.Levels,
		Description: np.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *Service) Get(ctx context.Context, id string) (Program, error) {
	if !core.IsValidID(id) {
		return Program{}, ErrNotFound
	}
	return svc.repo.GetProgram(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Program, error) {
	return svc.repo.QueryPrograms(ctx, filter, core.FilterOrderings(ordering, OrderingFields))
}

func (svc *Service) Update(ctx context.Context, p Program, up UpdateProgram) (Program, error) {
	if up.Name != nil {
		p.Name = *up.Name
	}
	if up.Code != nil {
		p.Code = *up.Code
	}
	if up.Levels != nil {
		p.Levels = *up.Levels
	}
	if up.Description != nil {
		p.Description = core.CleanString(*up.Description)
	}
	p.UpdatedAt = core.Now()
	return svc.repo.UpdateProgram(ctx, p)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteProgram(ctx, id)
}

func (svc *Service) AddSubject(ctx context.Context, prog Program, ns NewSubject) (Subject, error) {
	now := core.Now()
	return svc.repo.CreateSubject(ctx, Subject{
		ID:           core.NewID(),
		ProgramID:    prog.ID,
		Code:         ns.Code,
		Name:         ns.Name,
		Coefficient:  ns.Coefficient,
		Level:        ns.Level,
		HoursPerWeek: ns.HoursPerWeek,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

func (svc *Service) GetSubject(ctx context.Context, id string) (Subject, error) {
	if !core.IsValidID(id) {
		return Subject{}, ErrSubjectNotFound
	}
	return svc.repo.GetSubject(ctx, id)
}

func (svc *Service) Subjects(ctx context.Context, programID string) ([]Subject, error) {
	return svc.repo.QuerySubjects(ctx, programID)
}

func (svc *Service) UpdateSubject(ctx context.Context, s Subject, us UpdateSubject) (Subject, error) {
	if us.Code != nil {
		s.Code = *us.Code
	}
	if us.Name != nil {
		s.Name = *us.Name
	}
	if us.Coefficient != nil {
		s.Coefficient = *us.Coefficient
	}
	if us.Level != nil {
		s.Level = *us.Level
	}
	if us.HoursPerWeek != nil {
		s.HoursPerWeek = *us.HoursPerWeek
	}
	s.UpdatedAt = core.Now()
	return svc.repo.UpdateSubject(ctx, s)
}

// DeleteSubject removes a subject from its program. Class subjects following it are reconciled by
// the next subject sync.
func (svc *Service) DeleteSubject(ctx context.Context, id string) error {
	return svc.repo.DeleteSubject(ctx, id)
}
