package dummydb

import (
	"context"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/student"
)

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db}
}

var studentColumns = map[string]comparer[student.Student]{
	"registration_no": func(a, b student.Student) int { return cmpString(a.RegistrationNo, b.RegistrationNo) },
	"date_of_birth":   func(a, b student.Student) int { return cmpTime(a.DateOfBirth.Time, b.DateOfBirth.Time) },
	"created_at":      func(a, b student.Student) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
}

func (repo *studentRepository) CreateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.students[s.ID] = s
	return s, nil
}

func (repo *studentRepository) GetStudent(ctx context.Context, id string) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.students[id]; ok {
		return s, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) getBy(match func(student.Student) bool) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, s := range repo.db.students {
		if match(s) {
			return s, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) GetStudentByUser(ctx context.Context, userID string) (student.Student, error) {
	return repo.getBy(func(s student.Student) bool { return s.UserID == userID })
}

func (repo *studentRepository) GetStudentByRegistrationNo(ctx context.Context, registrationNo string) (student.Student, error) {
	return repo.getBy(func(s student.Student) bool { return s.RegistrationNo == registrationNo })
}

func (repo *studentRepository) QueryStudents(ctx context.Context, f *student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	students := values(repo.db.students)
	if f != nil {
		students = filter(students, func(s student.Student) bool {
			if f.CampusID != "" && s.CampusID != f.CampusID {
				return false
			}
			if f.Search != "" {
				usr := repo.db.users[s.UserID]
				return containsFold(s.RegistrationNo, f.Search) || containsFold(usr.Name, f.Search) || containsFold(usr.Email, f.Search)
			}
			return true
		})
	}
	order(students, ordering, studentColumns, studentColumns["registration_no"])
	return students, nil
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.students[s.ID]; !ok {
		return student.Student{}, student.ErrNotFound
	}
	repo.db.students[s.ID] = s
	return s, nil
}

func (repo *studentRepository) DeleteStudent(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.students[id]; !ok {
		return student.ErrNotFound
	}
	repo.db.deleteStudent(id)
	return nil
}

// deleteStudent cascades to the student's enrollments and grades. The lock must be held.
func (db *DB) deleteStudent(id string) {
	delete(db.students, id)
	for eid, e := range db.enrollments {
		if e.StudentID == id {
			delete(db.enrollments, eid)
		}
	}
	for gid, g := range db.grades {
		if g.StudentID == id {
			delete(db.grades, gid)
		}
	}
}
