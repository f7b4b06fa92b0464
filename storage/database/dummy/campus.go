package dummydb

import (
	"context"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/campus"
)

type campusRepository struct {
	db *DB
}

var _ campus.Repository = (*campusRepository)(nil) // interface compliance check

func NewCampusRepository(db *DB) *campusRepository {
	return &campusRepository{db: db}
}

var campusColumns = map[string]comparer[campus.Campus]{
	"name":       func(a, b campus.Campus) int { return cmpString(a.Name, b.Name) },
	"code":       func(a, b campus.Campus) int { return cmpString(a.Code, b.Code) },
	"is_active":  func(a, b campus.Campus) int { return cmpBool(a.IsActive, b.IsActive) },
	"created_at": func(a, b campus.Campus) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
}

func (repo *campusRepository) CreateCampus(ctx context.Context, c campus.Campus) (campus.Campus, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.campuses[c.ID] = c
	return c, nil
}

func (repo *campusRepository) GetCampus(ctx context.Context, id string) (campus.Campus, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if c, ok := repo.db.campuses[id]; ok {
		return c, nil
	}
	return campus.Campus{}, campus.ErrNotFound
}

func (repo *campusRepository) GetCampusByCode(ctx context.Context, code string) (campus.Campus, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, c := range repo.db.campuses {
		if c.Code == code {
			return c, nil
		}
	}
	return campus.Campus{}, campus.ErrNotFound
}

func (repo *campusRepository) QueryCampuses(ctx context.Context, f *campus.QueryFilter, ordering []core.DBOrdering) ([]campus.Campus, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	campuses := values(repo.db.campuses)
	if f != nil {
		campuses = filter(campuses, func(c campus.Campus) bool {
			if f.Search != "" && !containsFold(c.Name, f.Search) && !containsFold(c.Code, f.Search) {
				return false
			}
			return f.IsActive == nil || c.IsActive == *f.IsActive
		})
	}
	order(campuses, ordering, campusColumns, campusColumns["name"])
	return campuses, nil
}

func (repo *campusRepository) UpdateCampus(ctx context.Context, c campus.Campus) (campus.Campus, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.campuses[c.ID]; !ok {
		return campus.Campus{}, campus.ErrNotFound
	}
	repo.db.campuses[c.ID] = c
	return c, nil
}

func (repo *campusRepository) DeleteCampus(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.campuses[id]; !ok {
		return campus.ErrNotFound
	}
	for _, p := range repo.db.programs {
		if p.CampusID == id {
			return campus.ErrInUse
		}
	}
	for _, t := range repo.db.teachers {
		if t.CampusID == id {
			return campus.ErrInUse
		}
	}
	for _, s := range repo.db.students {
		if s.CampusID == id {
			return campus.ErrInUse
		}
	}
	delete(repo.db.campuses, id)
	for yid, y := range repo.db.years {
		if y.CampusID == id {
			repo.db.deleteYear(yid)
		}
	}
	for eid, e := range repo.db.events {
		if e.CampusID == id {
			delete(repo.db.events, eid)
		}
	}
	for did, d := range repo.db.documents {
		if d.CampusID == id {
			d.CampusID = ""
			repo.db.documents[did] = d
		}
	}
	delete(repo.db.systems, systemKey("campus", id))
	return nil
}
