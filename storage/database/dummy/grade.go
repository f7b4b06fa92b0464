package dummydb

import (
	"context"

	"github.com/academia-hq/academia/core/grade"
)

type gradeRepository struct {
	db *DB
}

var _ grade.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(db *DB) *gradeRepository {
	return &gradeRepository{db: db}
}

func publicationKey(classID, termID string) string {
	return classID + ":" + termID
}

func (repo *gradeRepository) GetGrade(ctx context.Context, id string) (grade.Grade, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if g, ok := repo.db.grades[id]; ok {
		return g, nil
	}
	return grade.Grade{}, grade.ErrNotFound
}

func (repo *gradeRepository) QueryGrades(ctx context.Context, f *grade.QueryFilter) ([]grade.Grade, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	grades := values(repo.db.grades)
	if f != nil {
		grades = filter(grades, func(g grade.Grade) bool {
			switch {
			case f.StudentID != "" && g.StudentID != f.StudentID,
				f.ClassID != "" && g.ClassID != f.ClassID,
				f.ClassSubjectID != "" && g.ClassSubjectID != f.ClassSubjectID,
				f.TermID != "" && g.TermID != f.TermID,
				f.Component != "" && g.Component != f.Component:
				return false
			}
			if f.PublishedOnly {
				_, ok := repo.db.publications[publicationKey(g.ClassID, g.TermID)]
				return ok
			}
			return true
		})
	}
	order(grades, nil, nil, func(a, b grade.Grade) int {
		if c := cmpTime(a.CreatedAt, b.CreatedAt); c != 0 {
			return c
		}
		return cmpString(a.Component, b.Component)
	})
	return grades, nil
}

func (repo *gradeRepository) RecordGrade(ctx context.Context, key grade.Key, apply grade.RecordFunc) (grade.Grade, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var cur *grade.Grade
	for _, g := range repo.db.grades {
		if g.StudentID == key.StudentID && g.ClassSubjectID == key.ClassSubjectID &&
			g.TermID == key.TermID && g.Component == key.Component {
			g := g
			cur = &g
			break
		}
	}
	next, h := apply(cur)
	if next == nil {
		if cur == nil {
			return grade.Grade{}, grade.ErrNotFound
		}
		return *cur, nil
	}
	repo.db.grades[next.ID] = *next
	if h != nil {
		repo.db.history = append(repo.db.history, *h)
	}
	return *next, nil
}

func (repo *gradeRepository) DeleteGrade(ctx context.Context, id string, h grade.History) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.grades[id]; !ok {
		return grade.ErrNotFound
	}
	delete(repo.db.grades, id)
	repo.db.history = append(repo.db.history, h)
	return nil
}

func (repo *gradeRepository) QueryHistory(ctx context.Context, gradeID string) ([]grade.History, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var trail []grade.History
	for _, h := range repo.db.history {
		if h.GradeID == gradeID {
			trail = append(trail, h)
		}
	}
	return trail, nil
}

func (repo *gradeRepository) CountGradesByClassSubject(ctx context.Context, classSubjectID string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	n := 0
	for _, g := range repo.db.grades {
		if g.ClassSubjectID == classSubjectID {
			n++
		}
	}
	return n, nil
}

func (repo *gradeRepository) CreatePublication(ctx context.Context, p grade.Publication) (grade.Publication, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := publicationKey(p.ClassID, p.TermID)
	if _, ok := repo.db.publications[key]; ok {
		return grade.Publication{}, grade.ErrAlreadyPublished
	}
	repo.db.publications[key] = p
	return p, nil
}

func (repo *gradeRepository) GetPublication(ctx context.Context, classID, termID string) (grade.Publication, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.publications[publicationKey(classID, termID)]; ok {
		return p, nil
	}
	return grade.Publication{}, grade.ErrPublicationNotFound
}
