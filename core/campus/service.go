package campus

import (
	"context"

	"github.com/pkg/errors"

	"github.com/academia-hq/academia/core"
)

var (
	// errors
	ErrNotFound   = core.NewNotFoundError("campus not found")
	ErrCodeExists = errors.New("a campus with this code already exists")
	ErrInUse      = core.NewConflictError("campus still has programs, teachers or students")
)

type (
	Repository interface {
		CreateCampus(ctx context.Context, c Campus) (Campus, error)
		GetCampus(ctx context.Context, id string) (Campus, error)
		GetCampusByCode(ctx context.Context, code string) (Campus, error)
		QueryCampuses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Campus, error)
		UpdateCampus(ctx context.Context, c Campus) (Campus, error)
		// DeleteCampus returns ErrInUse when other records still reference the campus.
		DeleteCampus(ctx context.Context, id string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) checkCode(ctx context.Context, code, selfID string) error {
	c, err := svc.repo.GetCampusByCode(ctx, code)
	if err == nil && c.ID != selfID {
		return core.NewValidationError(ErrCodeExists, core.FieldError{Field: "code", Error: ErrCodeExists.Error()})
	}
	if err != nil && !core.IsNotFound(err) {
		return errors.Wrap(err, "finding campus by code")
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nc NewCampus) (Campus, error) {
	now := core.Now()
	c := Campus{
		ID:          core.NewID(),
		Name:        nc.Name,
		Code:        nc.Code,
		Address:     nc.Address,
		Timezone:    nc.Timezone,
		WorkingDays: nc.WorkingDays,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if len(c.WorkingDays) == 0 {
		c.WorkingDays = core.DefaultWorkingDays
	}
	if nc.IsActive != nil {
		c.IsActive = *nc.IsActive
	}
	return svc.repo.CreateCampus(ctx, c)
}

func (svc *Service) Get(ctx context.Context, id string) (Campus, error) {
	if !core.IsValidID(id) {
		return Campus{}, ErrNotFound
	}
	return svc.repo.GetCampus(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Campus, error) {
	return svc.repo.QueryCampuses(ctx, filter, core.FilterOrderings(ordering, OrderingFields))
}

func (svc *Service) Update(ctx context.Context, c Campus, uc UpdateCampus) (Campus, error) {
	if uc.Name != nil {
		c.Name = *uc.Name
	}
	if uc.Code != nil {
		c.Code = *uc.Code
	}
	if uc.Address != nil {
		c.Address = core.CleanString(*uc.Address)
	}
	if uc.Timezone != nil {
		c.Timezone = *uc.Timezone
	}
	if uc.WorkingDays != nil {
		c.WorkingDays = uc.WorkingDays
	}
	if uc.IsActive != nil {
		c.IsActive = *uc.IsActive
	}
	c.UpdatedAt = core.Now()
	return svc.repo.UpdateCampus(ctx, c)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteCampus(ctx, id)
}
