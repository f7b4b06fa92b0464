package assessment

import (
	"context"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/academia-hq/academia/core"
)

var (
	// errors
	ErrNotFound      = core.NewNotFoundError("assessment system not found")
	ErrInvalidSystem = errors.New("invalid assessment system")
)

type (
	Repository interface {
		GetSystem(ctx context.Context, scope, scopeID string) (System, error)
		// SaveSystem creates or replaces the system of s.Scope & s.ScopeID.
		SaveSystem(ctx context.Context, s System) (System, error)
		DeleteSystem(ctx context.Context, scope, scopeID string) error
	}

	// ScopeResolver knows how scopes nest.
	ScopeResolver interface {
		// ScopeChain returns the campus and program above a scope (program empty for a campus).
		ScopeChain(ctx context.Context, scope, id string) (campusID, programID string, err error)
		ClassIDsInScope(ctx context.Context, scope, id string) ([]string, error)
	}

	Service struct {
		repo     Repository
		scopes   ScopeResolver
		validate *validator.Validate
		cache    *core.Cache[Effective]

		mu sync.Mutex
	}

	scopeRef struct {
		Scope   string `json:"scope" validate:"required,scope"`
		ScopeID string `json:"scope_id" validate:"required,uuid"`
	}
)

func NewService(repo Repository, scopes ScopeResolver, validate *validator.Validate, conf *core.Config) (*Service, error) {
	cache, err := core.NewCache[Effective](conf.Cache.MaxEntries, conf.Cache.TTL)
	if err != nil {
		return nil, err
	}
	return &Service{repo: repo, scopes: scopes, validate: validate, cache: cache}, nil
}

func (svc *Service) checkScope(ctx context.Context, scope, id string) (campusID, programID string, err error) {
	if err = svc.validate.Struct(scopeRef{Scope: scope, ScopeID: id}); err != nil {
		return "", "", err
	}
	return svc.scopes.ScopeChain(ctx, scope, id)
}

// Get returns the overrides saved for a scope.
func (svc *Service) Get(ctx context.Context, scope, id string) (System, error) {
	if !IsValidScope(scope) || !core.IsValidID(id) {
		return System{}, ErrNotFound
	}
	return svc.repo.GetSystem(ctx, scope, id)
}

// systemOf returns the system saved for a scope, nil when there is none.
func (svc *Service) systemOf(ctx context.Context, scope, id string) (*System, error) {
	if id == "" {
		return nil, nil
	}
	s, err := svc.repo.GetSystem(ctx, scope, id)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// resolve merges the chain of a class; override replaces the stored system of its scope.
// With an empty classID the chain stops at the program (or campus).
func (svc *Service) resolve(ctx context.Context, campusID, programID, classID string, override *System, deleted string) (Effective, error) {
	chain := []struct{ scope, id string }{{ScopeCampus, campusID}, {ScopeProgram, programID}, {ScopeClass, classID}}
	systems := make([]*System, 0, len(chain))
	for _, link := range chain {
		if link.id == "" {
			continue
		}
		if override != nil && override.Scope == link.scope && override.ScopeID == link.id {
			systems = append(systems, override)
			continue
		}
		if deleted == link.scope+":"+link.id {
			continue
		}
		s, err := svc.systemOf(ctx, link.scope, link.id)
		if err != nil {
			return Effective{}, err
		}
		systems = append(systems, s)
	}
	e := Resolve(systems...)
	e.ClassID = classID
	return e, nil
}

// Effective returns the merged campus, program & class system of a class.
func (svc *Service) Effective(ctx context.Context, classID string) (Effective, error) {
	return svc.cache.GetOrLoad(ctx, classID, func(ctx context.Context) (Effective, error) {
		campusID, programID, err := svc.scopes.ScopeChain(ctx, ScopeClass, classID)
		if err != nil {
			return Effective{}, err
		}
		return svc.resolve(ctx, campusID, programID, classID, nil, "")
	})
}

// checkDependents validates the effective system of the scope itself and of every class under it
// as if override were saved (or the scope's system deleted when override is nil).
func (svc *Service) checkDependents(ctx context.Context, scope, id, campusID, programID string, override *System) error {
	deleted := ""
	if override == nil {
		deleted = scope + ":" + id
	}
	classID := ""
	if scope == ScopeClass {
		classID = id
	}
	e, err := svc.resolve(ctx, campusID, programID, classID, override, deleted)
	if err != nil {
		return err
	}
	if err = e.Validate(); err != nil {
		return err
	}
	if scope == ScopeClass {
		return nil
	}

	classIDs, err := svc.scopes.ClassIDsInScope(ctx, scope, id)
	if err != nil {
		return errors.Wrap(err, "listing dependent classes")
	}
	for _, cid := range classIDs {
		cCampusID, cProgramID, err := svc.scopes.ScopeChain(ctx, ScopeClass, cid)
		if err != nil {
			return err
		}
		e, err := svc.resolve(ctx, cCampusID, cProgramID, cid, override, deleted)
		if err != nil {
			return err
		}
		if err = e.Validate(); err != nil {
			verr := err.(*core.ValidationError)
			verr.Err = errors.Errorf("class %s would get an invalid assessment system", cid)
			return verr
		}
	}
	return nil
}

// Save stores the overrides of a scope, refusing any that would make the scope or a class under it
// grade with an invalid system.
func (svc *Service) Save(ctx context.Context, scope, id string, ss SaveSystem) (System, error) {
	campusID, programID, err := svc.checkScope(ctx, scope, id)
	if err != nil {
		return System{}, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	now := core.Now()
	s := System{
		ID:         core.NewID(),
		Scope:      scope,
		ScopeID:    id,
		Name:       ss.Name,
		MaxScore:   ss.MaxScore,
		PassMark:   ss.PassMark,
		Components: ss.Components,
		Bands:      ss.Bands,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if existing, err := svc.systemOf(ctx, scope, id); err != nil {
		return System{}, err
	} else if existing != nil {
		s.ID = existing.ID
		s.CreatedAt = existing.CreatedAt
	}

	if err = svc.checkDependents(ctx, scope, id, campusID, programID, &s); err != nil {
		return System{}, err
	}
	s, err = svc.repo.SaveSystem(ctx, s)
	if err != nil {
		return System{}, err
	}
	svc.cache.Clear()
	return s, nil
}

// Delete drops the overrides of a scope so it inherits everything again.
func (svc *Service) Delete(ctx context.Context, scope, id string) error {
	if !IsValidScope(scope) || !core.IsValidID(id) {
		return ErrNotFound
	}
	campusID, programID, err := svc.scopes.ScopeChain(ctx, scope, id)
	if err != nil {
		return err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	if err = svc.checkDependents(ctx, scope, id, campusID, programID, nil); err != nil {
		return err
	}
	if err = svc.repo.DeleteSystem(ctx, scope, id); err != nil {
		return err
	}
	svc.cache.Clear()
	return nil
}

