package dummydb

import (
	"context"

	"github.com/academia-hq/academia/core/assessment"
)

type assessmentRepository struct {
	db *DB
}

var _ assessment.Repository = (*assessmentRepository)(nil) // interface compliance check

func NewAssessmentRepository(db *DB) *assessmentRepository {
	return &assessmentRepository{db: db}
}

func systemKey(scope, id string) string {
	return scope + ":" + id
}

func (repo *assessmentRepository) GetSystem(ctx context.Context, scope, scopeID string) (assessment.System, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.systems[systemKey(scope, scopeID)]; ok {
		return s, nil
	}
	return assessment.System{}, assessment.ErrNotFound
}

func (repo *assessmentRepository) SaveSystem(ctx context.Context, s assessment.System) (assessment.System, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.systems[systemKey(s.Scope, s.ScopeID)] = s
	return s, nil
}

func (repo *assessmentRepository) DeleteSystem(ctx context.Context, scope, scopeID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := systemKey(scope, scopeID)
	if _, ok := repo.db.systems[key]; !ok {
		return assessment.ErrNotFound
	}
	delete(repo.db.systems, key)
	return nil
}
