package dummydb

import (
	"context"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/class"
)

type classRepository struct {
	db *DB
}

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *DB) *classRepository {
	return &classRepository{db: db}
}

var classColumns = map[string]comparer[class.Class]{
	"name":       func(a, b class.Class) int { return cmpString(a.Name, b.Name) },
	"level":      func(a, b class.Class) int { return cmpInt(a.Level, b.Level) },
	"capacity":   func(a, b class.Class) int { return cmpInt(a.Capacity, b.Capacity) },
	"created_at": func(a, b class.Class) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
}

func (repo *classRepository) CreateClass(ctx context.Context, c class.Class) (class.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.classes[c.ID] = c
	return c, nil
}

func (repo *classRepository) GetClass(ctx context.Context, id string) (class.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if c, ok := repo.db.classes[id]; ok {
		return c, nil
	}
	return class.Class{}, class.ErrNotFound
}

// teaches reports whether a teacher is the homeroom teacher of a class or teaches one of its subjects.
func (db *DB) teaches(c class.Class, teacherID string) bool {
	if c.HomeroomTeacherID == teacherID {
		return true
	}
	for _, cs := range db.classSubjects {
		if cs.ClassID == c.ID && cs.TeacherID == teacherID {
			return true
		}
	}
	return false
}

func (repo *classRepository) QueryClasses(ctx context.Context, f *class.QueryFilter, ordering []core.DBOrdering) ([]class.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	classes := values(repo.db.classes)
	if f != nil {
		classes = filter(classes, func(c class.Class) bool {
			switch {
			case f.CampusID != "" && c.CampusID != f.CampusID,
				f.ProgramID != "" && c.ProgramID != f.ProgramID,
				f.AcademicYearID != "" && c.AcademicYearID != f.AcademicYearID,
				f.Level != 0 && c.Level != f.Level,
				f.Search != "" && !containsFold(c.Name, f.Search):
				return false
			}
			return f.TeacherID == "" || repo.db.teaches(c, f.TeacherID)
		})
	}
	order(classes, ordering, classColumns, classColumns["name"])
	return classes, nil
}

func (repo *classRepository) UpdateClass(ctx context.Context, c class.Class) (class.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.classes[c.ID]; !ok {
		return class.Class{}, class.ErrNotFound
	}
	repo.db.classes[c.ID] = c
	return c, nil
}

func (repo *classRepository) DeleteClass(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.classes[id]; !ok {
		return class.ErrNotFound
	}
	for _, e := range repo.db.enrollments {
		if e.ClassID == id && e.IsActive() {
			return class.ErrInUse
		}
	}
	for _, g := range repo.db.grades {
		if g.ClassID == id {
			return class.ErrInUse
		}
	}

	delete(repo.db.classes, id)
	for eid, e := range repo.db.enrollments {
		if e.ClassID == id {
			delete(repo.db.enrollments, eid)
		}
	}
	for csid, cs := range repo.db.classSubjects {
		if cs.ClassID == id {
			repo.db.deleteClassSubject(csid)
		}
	}
	for eid, e := range repo.db.events {
		if e.ClassID == id {
			delete(repo.db.events, eid)
		}
	}
	for key, p := range repo.db.publications {
		if p.ClassID == id {
			delete(repo.db.publications, key)
		}
	}
	delete(repo.db.systems, systemKey(class.ScopeClass, id))
	return nil
}

// deleteClassSubject cascades to the timetable slots of the class subject. The lock must be held.
func (db *DB) deleteClassSubject(id string) {
	delete(db.classSubjects, id)
	for sid, s := range db.slots {
		if s.ClassSubjectID == id {
			delete(db.slots, sid)
		}
	}
}

func (repo *classRepository) Enroll(ctx context.Context, e class.Enrollment, capacity int) (class.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.classes[e.ClassID]; !ok {
		return class.Enrollment{}, class.ErrNotFound
	}
	active := 0
	for _, other := range repo.db.enrollments {
		if !other.IsActive() {
			continue
		}
		if other.StudentID == e.StudentID && other.AcademicYearID == e.AcademicYearID {
			return class.Enrollment{}, class.ErrAlreadyEnrolled
		}
		if other.ClassID == e.ClassID {
			active++
		}
	}
	if active >= capacity {
		return class.Enrollment{}, class.ErrClassFull
	}
	repo.db.enrollments[e.ID] = e
	return e, nil
}

func (repo *classRepository) QueryEnrollments(ctx context.Context, classID string, activeOnly bool) ([]class.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	enrollments := filter(values(repo.db.enrollments), func(e class.Enrollment) bool {
		return e.ClassID == classID && (!activeOnly || e.IsActive())
	})
	order(enrollments, nil, nil, func(a, b class.Enrollment) int { return cmpTime(a.EnrolledAt, b.EnrolledAt) })
	return enrollments, nil
}

func (repo *classRepository) GetActiveEnrollment(ctx context.Context, classID, studentID string) (class.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, e := range repo.db.enrollments {
		if e.ClassID == classID && e.StudentID == studentID && e.IsActive() {
			return e, nil
		}
	}
	return class.Enrollment{}, class.ErrEnrollmentNotFound
}

func (repo *classRepository) QueryStudentEnrollments(ctx context.Context, studentID string) ([]class.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	enrollments := filter(values(repo.db.enrollments), func(e class.Enrollment) bool { return e.StudentID == studentID })
	order(enrollments, nil, nil, func(a, b class.Enrollment) int { return -cmpTime(a.EnrolledAt, b.EnrolledAt) })
	return enrollments, nil
}

func (repo *classRepository) UpdateEnrollment(ctx context.Context, e class.Enrollment) (class.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.enrollments[e.ID]; !ok {
		return class.Enrollment{}, class.ErrEnrollmentNotFound
	}
	repo.db.enrollments[e.ID] = e
	return e, nil
}

func (repo *classRepository) GetClassSubject(ctx context.Context, id string) (class.ClassSubject, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if cs, ok := repo.db.classSubjects[id]; ok {
		return cs, nil
	}
	return class.ClassSubject{}, class.ErrClassSubjectNotFound
}

func (repo *classRepository) QueryClassSubjects(ctx context.Context, classID string) ([]class.ClassSubject, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	subjects := filter(values(repo.db.classSubjects), func(cs class.ClassSubject) bool { return cs.ClassID == classID })
	order(subjects, nil, nil, func(a, b class.ClassSubject) int { return cmpString(a.SubjectCode, b.SubjectCode) })
	return subjects, nil
}

func (repo *classRepository) UpdateClassSubject(ctx context.Context, cs class.ClassSubject) (class.ClassSubject, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.classSubjects[cs.ID]; !ok {
		return class.ClassSubject{}, class.ErrClassSubjectNotFound
	}
	repo.db.classSubjects[cs.ID] = cs
	return cs, nil
}

func (repo *classRepository) ApplySubjectSync(ctx context.Context, add, update []class.ClassSubject, removeIDs []string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, cs := range update {
		if _, ok := repo.db.classSubjects[cs.ID]; !ok {
			return class.ErrClassSubjectNotFound
		}
	}
	for _, cs := range add {
		repo.db.classSubjects[cs.ID] = cs
	}
	for _, cs := range update {
		repo.db.classSubjects[cs.ID] = cs
	}
	for _, id := range removeIDs {
		repo.db.deleteClassSubject(id)
	}
	return nil
}
