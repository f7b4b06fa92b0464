package dummydb

import (
	"context"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/teacher"
)

type teacherRepository struct {
	db *DB
}

var _ teacher.Repository = (*teacherRepository)(nil) // interface compliance check

func NewTeacherRepository(db *DB) *teacherRepository {
	return &teacherRepository{db: db}
}

var teacherColumns = map[string]comparer[teacher.Teacher]{
	"employee_no": func(a, b teacher.Teacher) int { return cmpString(a.EmployeeNo, b.EmployeeNo) },
	"hired_on":    func(a, b teacher.Teacher) int { return cmpTime(a.HiredOn.Time, b.HiredOn.Time) },
	"created_at":  func(a, b teacher.Teacher) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
}

func (repo *teacherRepository) CreateTeacher(ctx context.Context, t teacher.Teacher) (teacher.Teacher, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.teachers[t.ID] = t
	return t, nil
}

func (repo *teacherRepository) GetTeacher(ctx context.Context, id string) (teacher.Teacher, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if t, ok := repo.db.teachers[id]; ok {
		return t, nil
	}
	return teacher.Teacher{}, teacher.ErrNotFound
}

func (repo *teacherRepository) getBy(match func(teacher.Teacher) bool) (teacher.Teacher, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, t := range repo.db.teachers {
		if match(t) {
			return t, nil
		}
	}
	return teacher.Teacher{}, teacher.ErrNotFound
}

func (repo *teacherRepository) GetTeacherByUser(ctx context.Context, userID string) (teacher.Teacher, error) {
	return repo.getBy(func(t teacher.Teacher) bool { return t.UserID == userID })
}

func (repo *teacherRepository) GetTeacherByEmployeeNo(ctx context.Context, employeeNo string) (teacher.Teacher, error) {
	return repo.getBy(func(t teacher.Teacher) bool { return t.EmployeeNo == employeeNo })
}

func (repo *teacherRepository) QueryTeachers(ctx context.Context, f *teacher.QueryFilter, ordering []core.DBOrdering) ([]teacher.Teacher, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	teachers := values(repo.db.teachers)
	if f != nil {
		teachers = filter(teachers, func(t teacher.Teacher) bool {
			if f.CampusID != "" && t.CampusID != f.CampusID {
				return false
			}
			if f.IsActive != nil && t.IsActive != *f.IsActive {
				return false
			}
			if f.Specialty != "" {
				found := false
				for _, s := range t.Specialties {
					if containsFold(s, f.Specialty) {
						found = true
						break
					}
				}
				if !found {
					return false
				}
			}
			if f.Search != "" {
				usr := repo.db.users[t.UserID]
				return containsFold(t.EmployeeNo, f.Search) || containsFold(usr.Name, f.Search) || containsFold(usr.Email, f.Search)
			}
			return true
		})
	}
	order(teachers, ordering, teacherColumns, teacherColumns["employee_no"])
	return teachers, nil
}

func (repo *teacherRepository) UpdateTeacher(ctx context.Context, t teacher.Teacher) (teacher.Teacher, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.teachers[t.ID]; !ok {
		return teacher.Teacher{}, teacher.ErrNotFound
	}
	repo.db.teachers[t.ID] = t
	return t, nil
}

func (repo *teacherRepository) DeleteTeacher(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.teachers[id]; !ok {
		return teacher.ErrNotFound
	}
	repo.db.deleteTeacher(id)
	return nil
}

// deleteTeacher unassigns the teacher everywhere (ON DELETE SET NULL). The lock must be held.
func (db *DB) deleteTeacher(id string) {
	delete(db.teachers, id)
	for cid, c := range db.classes {
		if c.HomeroomTeacherID == id {
			c.HomeroomTeacherID = ""
			db.classes[cid] = c
		}
	}
	for csid, cs := range db.classSubjects {
		if cs.TeacherID == id {
			cs.TeacherID = ""
			db.classSubjects[csid] = cs
		}
	}
	for sid, s := range db.slots {
		if s.TeacherID == id {
			s.TeacherID = ""
			db.slots[sid] = s
		}
	}
}
