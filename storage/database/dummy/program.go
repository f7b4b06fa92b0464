package dummydb

import (
	"context"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/program"
)

type programRepository struct {
	db *DB
}

var _ program.Repository = (*programRepository)(nil) // interface compliance check

func NewProgramRepository(db *DB) *programRepository {
	return &programRepository{db: db}
}

var programColumns = map[string]comparer[program.Program]{
	"name":       func(a, b program.Program) int { return cmpString(a.Name, b.Name) },
	"code":       func(a, b program.Program) int { return cmpString(a.Code, b.Code) },
	"levels":     func(a, b program.Program) int { return cmpInt(a.Levels, b.Levels) },
	"created_at": func(a, b program.Program) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
}

func (repo *programRepository) CreateProgram(ctx context.Context, p program.Program) (program.Program, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.programs[p.ID] = p
	return p, nil
}

func (repo *programRepository) GetProgram(ctx context.Context, id string) (program.Program, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.programs[id]; ok {
		return p, nil
	}
	return program.Program{}, program.ErrNotFound
}

func (repo *programRepository) GetProgramByCode(ctx context.Context, campusID, code string) (program.Program, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, p := range repo.db.programs {
		if p.CampusID == campusID && p.Code == code {
			return p, nil
		}
	}
	return program.Program{}, program.ErrNotFound
}

func (repo *programRepository) QueryPrograms(ctx context.Context, f *program.QueryFilter, ordering []core.DBOrdering) ([]program.Program, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	programs := values(repo.db.programs)
	if f != nil {
		programs = filter(programs, func(p program.Program) bool {
			if f.CampusID != "" && p.CampusID != f.CampusID {
				return false
			}
			return f.Search == "" || containsFold(p.Name, f.Search) || containsFold(p.Code, f.Search)
		})
	}
	order(programs, ordering, programColumns, programColumns["name"])
	return programs, nil
}

func (repo *programRepository) UpdateProgram(ctx context.Context, p program.Program) (program.Program, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.programs[p.ID]; !ok {
		return program.Program{}, program.ErrNotFound
	}
	repo.db.programs[p.ID] = p
	return p, nil
}

func (repo *programRepository) DeleteProgram(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.programs[id]; !ok {
		return program.ErrNotFound
	}
	for _, c := range repo.db.classes {
		if c.ProgramID == id {
			return program.ErrInUse
		}
	}
	delete(repo.db.programs, id)
	for sid, s := range repo.db.subjects {
		if s.ProgramID == id {
			delete(repo.db.subjects, sid)
		}
	}
	delete(repo.db.systems, systemKey("program", id))
	return nil
}

func (repo *programRepository) CreateSubject(ctx context.Context, s program.Subject) (program.Subject, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.programs[s.ProgramID]; !ok {
		return program.Subject{}, program.ErrNotFound
	}
	repo.db.subjects[s.ID] = s
	return s, nil
}

func (repo *programRepository) GetSubject(ctx context.Context, id string) (program.Subject, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.subjects[id]; ok {
		return s, nil
	}
	return program.Subject{}, program.ErrSubjectNotFound
}

func (repo *programRepository) GetSubjectByCode(ctx context.Context, programID, code string) (program.Subject, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, s := range repo.db.subjects {
		if s.ProgramID == programID && s.Code == code {
			return s, nil
		}
	}
	return program.Subject{}, program.ErrSubjectNotFound
}

func (repo *programRepository) QuerySubjects(ctx context.Context, programID string) ([]program.Subject, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	subjects := filter(values(repo.db.subjects), func(s program.Subject) bool { return s.ProgramID == programID })
	order(subjects, nil, nil, func(a, b program.Subject) int {
		if c := cmpInt(a.Level, b.Level); c != 0 {
			return c
		}
		return cmpString(a.Code, b.Code)
	})
	return subjects, nil
}

func (repo *programRepository) UpdateSubject(ctx context.Context, s program.Subject) (program.Subject, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.subjects[s.ID]; !ok {
		return program.Subject{}, program.ErrSubjectNotFound
	}
	repo.db.subjects[s.ID] = s
	return s, nil
}

// DeleteSubject detaches the class subjects following the subject (ON DELETE SET NULL).
func (repo *programRepository) DeleteSubject(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.subjects[id]; !ok {
		return program.ErrSubjectNotFound
	}
	delete(repo.db.subjects, id)
	for csid, cs := range repo.db.classSubjects {
		if cs.SubjectID == id {
			cs.SubjectID = ""
			repo.db.classSubjects[csid] = cs
		}
	}
	return nil
}
