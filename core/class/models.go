package class

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/academia-hq/academia/core"
)

// Enrollment statuses
const (
	StatusActive    = "active"
	StatusWithdrawn = "withdrawn"
)

// Class is a group of students following a program level during an academic year.
// CampusID is derived from the program.
type Class struct {
	ID                string    `json:"id"`
	ProgramID         string    `json:"program_id"`
	CampusID          string    `json:"campus_id"`
	AcademicYearID    string    `json:"academic_year_id"`
	Name              string    `json:"name"`
	Level             int       `json:"level"`
	Capacity          int       `json:"capacity"`
	HomeroomTeacherID string    `json:"homeroom_teacher_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type Enrollment struct {
	ID             string     `json:"id"`
	ClassID        string     `json:"class_id"`
	StudentID      string     `json:"student_id"`
	AcademicYearID string     `json:"academic_year_id"`
	Status         string     `json:"status"`
	EnrolledAt     time.Time  `json:"enrolled_at"`
	WithdrawnAt    *time.Time `json:"withdrawn_at,omitempty"`
}

func (e Enrollment) IsActive() bool { return e.Status == StatusActive }

// ClassSubject is a program subject as taught in a class. SubjectCode and SubjectName are copied
// from the subject so the class subject survives the subject's deletion (SubjectID is then empty).
type ClassSubject struct {
	ID          string    `json:"id"`
	ClassID     string    `json:"class_id"`
	SubjectID   string    `json:"subject_id"`
	SubjectCode string    `json:"subject_code"`
	SubjectName string    `json:"subject_name"`
	TeacherID   string    `json:"teacher_id,omitempty"`
	Coefficient float64   `json:"coefficient"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SyncResult reports what a subject synchronization changed, by subject code.
type SyncResult struct {
	ClassID  string   `json:"class_id"`
	Added    []string `json:"added"`
	Updated  []string `json:"updated"`
	Removed  []string `json:"removed"`
	Retained []string `json:"retained"`
}

// Changed reports whether the synchronization modified the class.
func (sr SyncResult) Changed() bool {
	return len(sr.Added)+len(sr.Updated)+len(sr.Removed) > 0
}

// NewClass contains information needed to open a new Class.
type NewClass struct {
	ProgramID         string `json:"program_id" validate:"required,uuid"`
	AcademicYearID    string `json:"academic_year_id" validate:"required,uuid"`
	Name              string `json:"name" validate:"required,notblank,max=64"`
	Level             int    `json:"level" validate:"required,min=1,max=12"`
	Capacity          int    `json:"capacity" validate:"required,min=1,max=500"`
	HomeroomTeacherID string `json:"homeroom_teacher_id" validate:"omitempty,uuid"`
}

func (nc *NewClass) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nc.Name = core.CleanString(nc.Name)
	if err := validate.Struct(nc); err != nil {
		return err
	}
	prog, err := svc.programs.Get(ctx, nc.ProgramID)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewFieldError("program_id", "program not found")
		}
		return err
	}
	if nc.Level > prog.Levels {
		return core.NewFieldError("level", "level exceeds the program levels")
	}
	year, err := svc.years.GetAcademicYear(ctx, nc.AcademicYearID)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewFieldError("academic_year_id", "academic year not found")
		}
		return err
	}
	if year.CampusID != prog.CampusID {
		return core.NewFieldError("academic_year_id", "academic year belongs to another campus")
	}
	if err = svc.checkName(ctx, prog.CampusID, nc.AcademicYearID, nc.Name, ""); err != nil {
		return err
	}
	if nc.HomeroomTeacherID != "" {
		return svc.checkTeacher(ctx, "homeroom_teacher_id", nc.HomeroomTeacherID, prog.CampusID)
	}
	return nil
}

// UpdateClass defines what information may be provided to modify an existing Class.
// An empty HomeroomTeacherID removes the homeroom teacher.
type UpdateClass struct {
	Name              *string `json:"name" validate:"omitempty,notblank,max=64"`
	Level             *int    `json:"level" validate:"omitempty,min=1,max=12"`
	Capacity          *int    `json:"capacity" validate:"omitempty,min=1,max=500"`
	HomeroomTeacherID *string `json:"homeroom_teacher_id" validate:"omitempty,uuid"`
}

func (uc *UpdateClass) Validate(ctx context.Context, orig Class, validate *validator.Validate, svc *Service) error {
	if uc.Name != nil {
		name := core.CleanString(*uc.Name)
		uc.Name = &name
	}
	if err := validate.Struct(uc); err != nil {
		return err
	}
	if uc.Name != nil && *uc.Name != orig.Name {
		if err := svc.checkName(ctx, orig.CampusID, orig.AcademicYearID, *uc.Name, orig.ID); err != nil {
			return err
		}
	}
	if uc.Level != nil && *uc.Level != orig.Level {
		prog, err := svc.programs.Get(ctx, orig.ProgramID)
		if err != nil {
			return err
		}
		if *uc.Level > prog.Levels {
			return core.NewFieldError("level", "level exceeds the program levels")
		}
	}
	if uc.Capacity != nil && *uc.Capacity < orig.Capacity {
		enrolled, err := svc.repo.QueryEnrollments(ctx, orig.ID, true)
		if err != nil {
			return err
		}
		if *uc.Capacity < len(enrolled) {
			return core.NewFieldError("capacity", "fewer than the enrolled students")
		}
	}
	if uc.HomeroomTeacherID != nil && *uc.HomeroomTeacherID != "" && *uc.HomeroomTeacherID != orig.HomeroomTeacherID {
		return svc.checkTeacher(ctx, "homeroom_teacher_id", *uc.HomeroomTeacherID, orig.CampusID)
	}
	return nil
}

// NewEnrollment enrolls a student in a class.
type NewEnrollment struct {
	StudentID string `json:"student_id" validate:"required,uuid"`
}

// AssignTeacher sets (or, when empty, removes) the teacher of a ClassSubject.
type AssignTeacher struct {
	TeacherID string `json:"teacher_id" validate:"omitempty,uuid"`
}

type QueryFilter struct {
	CampusID       string `query:"campus_id"`
	ProgramID      string `query:"program_id"`
	AcademicYearID string `query:"academic_year_id"`
	Level          int    `query:"level"`
	TeacherID      string `query:"teacher_id"`
	Search         string `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// OrderingFields maps the sortable JSON fields to their columns.
var OrderingFields = map[string]string{
	"name":       "name",
	"level":      "level",
	"capacity":   "capacity",
	"created_at": "created_at",
}
