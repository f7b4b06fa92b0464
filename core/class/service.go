package class

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/calendar"
	"github.com/academia-hq/academia/core/campus"
	"github.com/academia-hq/academia/core/program"
	"github.com/academia-hq/academia/core/student"
	"github.com/academia-hq/academia/core/teacher"
)

// Assessment scopes a class belongs to.
const (
	ScopeCampus  = "campus"
	ScopeProgram = "program"
	ScopeClass   = "class"
)

var (
	// errors
	ErrNotFound             = core.NewNotFoundError("class not found")
	ErrClassSubjectNotFound = core.NewNotFoundError("class subject not found")
	ErrEnrollmentNotFound   = core.NewNotFoundError("enrollment not found")
	ErrNameExists           = errors.New("a class with this name already exists for the academic year")
	ErrClassFull            = core.NewConflictError("class is full")
	ErrAlreadyEnrolled      = core.NewConflictError("student already has an active enrollment for this academic year")
	ErrInUse                = core.NewConflictError("class still has enrolled students or grades")
	ErrUnknownScope         = errors.New("unknown scope")
)

type (
	Repository interface {
		CreateClass(ctx context.Context, c Class) (Class, error)
		GetClass(ctx context.Context, id string) (Class, error)
		QueryClasses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Class, error)
		UpdateClass(ctx context.Context, c Class) (Class, error)
		// DeleteClass returns ErrInUse when the class has active enrollments or grades.
		DeleteClass(ctx context.Context, id string) error

		// Enroll atomically checks capacity & the one active enrollment per academic year rule.
		Enroll(ctx context.Context, e Enrollment, capacity int) (Enrollment, error)
		// QueryEnrollments returns the enrollments of a class ordered by enrollment time.
		QueryEnrollments(ctx context.Context, classID string, activeOnly bool) ([]Enrollment, error)
		GetActiveEnrollment(ctx context.Context, classID, studentID string) (Enrollment, error)
		// QueryStudentEnrollments returns every enrollment of a student, latest first.
		QueryStudentEnrollments(ctx context.Context, studentID string) ([]Enrollment, error)
		UpdateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)

		GetClassSubject(ctx context.Context, id string) (ClassSubject, error)
		// QueryClassSubjects returns the subjects of a class ordered by code.
		QueryClassSubjects(ctx context.Context, classID string) ([]ClassSubject, error)
		UpdateClassSubject(ctx context.Context, cs ClassSubject) (ClassSubject, error)
		// ApplySubjectSync inserts, updates & deletes class subjects in a single transaction.
		ApplySubjectSync(ctx context.Context, add, update []ClassSubject, removeIDs []string) error
	}

	ProgramFinder interface {
		Get(ctx context.Context, id string) (program.Program, error)
		Subjects(ctx context.Context, programID string) ([]program.Subject, error)
	}

	CampusGetter interface {
		Get(ctx context.Context, id string) (campus.Campus, error)
	}

	AcademicYearGetter interface {
		GetAcademicYear(ctx context.Context, id string) (calendar.AcademicYear, error)
	}

	TeacherGetter interface {
		Get(ctx context.Context, id string) (teacher.Teacher, error)
	}

	StudentFinder interface {
		Get(ctx context.Context, id string) (student.Student, error)
		Recipient(ctx context.Context, studentID string) (student.Recipient, error)
	}

	// GradeCounter tells whether a class subject has recorded grades.
	GradeCounter interface {
		CountGradesByClassSubject(ctx context.Context, classSubjectID string) (int, error)
	}

	Service struct {
		repo     Repository
		programs ProgramFinder
		campuses CampusGetter
		years    AcademicYearGetter
		teachers TeacherGetter
		students StudentFinder
		grades   GradeCounter
		logger   core.Logger

		syncMu sync.Mutex
	}
)

func NewService(
	repo Repository,
	programs ProgramFinder,
	campuses CampusGetter,
	years AcademicYearGetter,
	teachers TeacherGetter,
	students StudentFinder,
	grades GradeCounter,
	logger core.Logger,
) *Service {
	return &Service{
		repo:     repo,
		programs: programs,
		campuses: campuses,
		years:    years,
		teachers: teachers,
		students: students,
		grades:   grades,
		logger:   logger,
	}
}

func (svc *Service) checkName(ctx context.Context, campusID, yearID, name, selfID string) error {
	classes, err := svc.repo.QueryClasses(ctx, &QueryFilter{CampusID: campusID, AcademicYearID: yearID}, nil)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	for _, c := range classes {
		if c.ID != selfID && c.Name == name {
			return core.NewValidationError(ErrNameExists, core.FieldError{Field: "name", Error: ErrNameExists.Error()})
		}
	}
	return nil
}

func (svc *Service) checkTeacher(ctx context.Context, field, teacherID, campusID string) error {
	t, err := svc.teachers.Get(ctx, teacherID)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewFieldError(field, "teacher not found")
		}
		return err
	}
	if !t.IsActive {
		return core.NewFieldError(field, "teacher is not active")
	}
	if t.CampusID != campusID {
		return core.NewFieldError(field, "teacher belongs to another campus")
	}
	return nil
}

// Create opens the class and fills its subjects from the program.
func (svc *Service) Create(ctx context.Context, nc NewClass) (Class, error) {
	prog, err := svc.programs.Get(ctx, nc.ProgramID)
	if err != nil {
		return Class{}, err
	}
	now := core.Now()
	c, err := svc.repo.CreateClass(ctx, Class{
		ID:                core.NewID(),
		ProgramID:         prog.ID,
		CampusID:          prog.CampusID,
		AcademicYearID:    nc.AcademicYearID,
		Name:              nc.Name,
		Level:             nc.Level,
		Capacity:          nc.Capacity,
		HomeroomTeacherID: nc.HomeroomTeacherID,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		return Class{}, err
	}
	if _, err = svc.SyncSubjects(ctx, c); err != nil {
		return c, errors.Wrap(err, "syncing class subjects")
	}
	return c, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Class, error) {
	if !core.IsValidID(id) {
		return Class{}, ErrNotFound
	}
	return svc.repo.GetClass(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Class, error) {
	return svc.repo.QueryClasses(ctx, filter, core.FilterOrderings(ordering, OrderingFields))
}

// Update modifies the class; a level change resynchronizes its subjects.
func (svc *Service) Update(ctx context.Context, c Class, uc UpdateClass) (Class, error) {
	levelChanged := uc.Level != nil && *uc.Level != c.Level
	if uc.Name != nil {
		c.Name = *uc.Name
	}
	if uc.Level != nil {
		c.Level = *uc.Level
	}
	if uc.Capacity != nil {
		c.Capacity = *uc.Capacity
	}
	if uc.HomeroomTeacherID != nil {
		c.HomeroomTeacherID = *uc.HomeroomTeacherID
	}
	c.UpdatedAt = core.Now()
	c, err := svc.repo.UpdateClass(ctx, c)
	if err != nil {
		return Class{}, err
	}
	if levelChanged {
		if _, err = svc.SyncSubjects(ctx, c); err != nil {
			return c, errors.Wrap(err, "syncing class subjects")
		}
	}
	return c, nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteClass(ctx, id)
}

// Enroll adds a student of the class campus to the class.
func (svc *Service) Enroll(ctx context.Context, c Class, ne NewEnrollment) (Enrollment, error) {
	s, err := svc.students.Get(ctx, ne.StudentID)
	if err != nil {
		if core.IsNotFound(err) {
			return Enrollment{}, core.NewFieldError("student_id", "student not found")
		}
		return Enrollment{}, err
	}
	if s.CampusID != c.CampusID {
		return Enrollment{}, core.NewFieldError("student_id", "student belongs to another campus")
	}
	return svc.repo.Enroll(ctx, Enrollment{
		ID:             core.NewID(),
		ClassID:        c.ID,
		StudentID:      s.ID,
		AcademicYearID: c.AcademicYearID,
		Status:         StatusActive,
		EnrolledAt:     core.Now(),
	}, c.Capacity)
}

// Withdraw ends the active enrollment of a student. Grades are kept.
func (svc *Service) Withdraw(ctx context.Context, classID, studentID string) (Enrollment, error) {
	e, err := svc.repo.GetActiveEnrollment(ctx, classID, studentID)
	if err != nil {
		return Enrollment{}, err
	}
	now := core.Now()
	e.Status = StatusWithdrawn
	e.WithdrawnAt = &now
	return svc.repo.UpdateEnrollment(ctx, e)
}

func (svc *Service) Enrollments(ctx context.Context, classID string, activeOnly bool) ([]Enrollment, error) {
	return svc.repo.QueryEnrollments(ctx, classID, activeOnly)
}

func (svc *Service) StudentEnrollments(ctx context.Context, studentID string) ([]Enrollment, error) {
	return svc.repo.QueryStudentEnrollments(ctx, studentID)
}

// IsEnrolled reports whether the student is actively enrolled in the class.
func (svc *Service) IsEnrolled(ctx context.Context, classID, studentID string) (bool, error) {
	_, err := svc.repo.GetActiveEnrollment(ctx, classID, studentID)
	if err == nil {
		return true, nil
	}
	if core.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// WasEnrolled reports whether the student has ever been enrolled in the class.
func (svc *Service) WasEnrolled(ctx context.Context, classID, studentID string) (bool, error) {
	enrollments, err := svc.repo.QueryStudentEnrollments(ctx, studentID)
	if err != nil {
		return false, err
	}
	for _, e := range enrollments {
		if e.ClassID == classID {
			return true, nil
		}
	}
	return false, nil
}

// EnrolledRecipients resolves who to notify for every active student of the class.
func (svc *Service) EnrolledRecipients(ctx context.Context, classID string) ([]student.Recipient, error) {
	enrollments, err := svc.repo.QueryEnrollments(ctx, classID, true)
	if err != nil {
		return nil, err
	}
	rcps := make([]student.Recipient, 0, len(enrollments))
	for _, e := range enrollments {
		rcp, err := svc.students.Recipient(ctx, e.StudentID)
		if err != nil {
			svc.logger.Error("resolving recipient", err, map[string]interface{}{"student_id": e.StudentID})
			continue
		}
		rcps = append(rcps, rcp)
	}
	return rcps, nil
}

func (svc *Service) GetClassSubject(ctx context.Context, id string) (ClassSubject, error) {
	if !core.IsValidID(id) {
		return ClassSubject{}, ErrClassSubjectNotFound
	}
	return svc.repo.GetClassSubject(ctx, id)
}

func (svc *Service) Subjects(ctx context.Context, classID string) ([]ClassSubject, error) {
	return svc.repo.QueryClassSubjects(ctx, classID)
}

// AssignTeacher sets the teacher of a class subject; the teacher must work at the class campus.
func (svc *Service) AssignTeacher(ctx context.Context, cs ClassSubject, at AssignTeacher) (ClassSubject, error) {
	if at.TeacherID != "" {
		c, err := svc.repo.GetClass(ctx, cs.ClassID)
		if err != nil {
			return ClassSubject{}, err
		}
		if err = svc.checkTeacher(ctx, "teacher_id", at.TeacherID, c.CampusID); err != nil {
			return ClassSubject{}, err
		}
	}
	cs.TeacherID = at.TeacherID
	cs.UpdatedAt = core.Now()
	return svc.repo.UpdateClassSubject(ctx, cs)
}

// SyncSubjects reconciles the class subjects with the program subjects taught at the class level.
// Missing subjects are added and drifted ones updated. Class subjects whose subject left the
// program are removed, unless grades were recorded for them, in which case they are retained.
func (svc *Service) SyncSubjects(ctx context.Context, c Class) (SyncResult, error) {
	svc.syncMu.Lock()
	defer svc.syncMu.Unlock()

	res := SyncResult{ClassID: c.ID, Added: []string{}, Updated: []string{}, Removed: []string{}, Retained: []string{}}
	subjects, err := svc.programs.Subjects(ctx, c.ProgramID)
	if err != nil {
		return res, errors.Wrap(err, "querying program subjects")
	}
	current, err := svc.repo.QueryClassSubjects(ctx, c.ID)
	if err != nil {
		return res, errors.Wrap(err, "querying class subjects")
	}

	bySubject := make(map[string]ClassSubject, len(current))
	for _, cs := range current {
		if cs.SubjectID != "" {
			bySubject[cs.SubjectID] = cs
		}
	}

	now := core.Now()
	desired := make(map[string]bool)
	var add, update []ClassSubject
	for _, s := range subjects {
		if !s.AppliesTo(c.Level) {
			continue
		}
		desired[s.ID] = true
		cs, ok := bySubject[s.ID]
		if !ok {
			add = append(add, ClassSubject{
				ID:          core.NewID(),
				ClassID:     c.ID,
				SubjectID:   s.ID,
				SubjectCode: s.Code,
				SubjectName: s.Name,
				Coefficient: s.Coefficient,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
			res.Added = append(res.Added, s.Code)
			continue
		}
		if cs.Coefficient != s.Coefficient || cs.SubjectCode != s.Code || cs.SubjectName != s.Name {
			cs.Coefficient = s.Coefficient
			cs.SubjectCode = s.Code
			cs.SubjectName = s.Name
			cs.UpdatedAt = now
			update = append(update, cs)
			res.Updated = append(res.Updated, s.Code)
		}
	}

	var removeIDs []string
	for _, cs := range current {
		if cs.SubjectID != "" && desired[cs.SubjectID] {
			continue
		}
		n, err := svc.grades.CountGradesByClassSubject(ctx, cs.ID)
		if err != nil {
			return res, errors.Wrap(err, "counting grades")
		}
		if n > 0 {
			res.Retained = append(res.Retained, cs.SubjectCode)
			continue
		}
		removeIDs = append(removeIDs, cs.ID)
		res.Removed = append(res.Removed, cs.SubjectCode)
	}

	if err = svc.repo.ApplySubjectSync(ctx, add, update, removeIDs); err != nil {
		return SyncResult{ClassID: c.ID}, errors.Wrap(err, "applying subject sync")
	}
	for _, codes := range [][]string{res.Added, res.Updated, res.Removed, res.Retained} {
		sort.Strings(codes)
	}
	if res.Changed() {
		svc.logger.Info("class subjects synced", map[string]interface{}{
			"class_id": c.ID,
			"added":    len(res.Added),
			"updated":  len(res.Updated),
			"removed":  len(res.Removed),
		})
	}
	return res, nil
}

// SyncProgram runs SyncSubjects for every class of the program.
func (svc *Service) SyncProgram(ctx context.Context, programID string) ([]SyncResult, error) {
	classes, err := svc.repo.QueryClasses(ctx, &QueryFilter{ProgramID: programID}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying program classes")
	}
	results := make([]SyncResult, 0, len(classes))
	for _, c := range classes {
		res, err := svc.SyncSubjects(ctx, c)
		if err != nil {
			return results, errors.Wrapf(err, "syncing class %s", c.Name)
		}
		results = append(results, res)
	}
	return results, nil
}

// ClassCampus returns the campus of a class.
func (svc *Service) ClassCampus(ctx context.Context, classID string) (string, error) {
	c, err := svc.Get(ctx, classID)
	if err != nil {
		return "", err
	}
	return c.CampusID, nil
}

// ScopeChain returns the campus and program a scope inherits its settings from. The program is
// empty for a campus scope. It fails with a not found error when the scope entity is missing.
func (svc *Service) ScopeChain(ctx context.Context, scope, id string) (campusID, programID string, err error) {
	switch scope {
	case ScopeCampus:
		if !core.IsValidID(id) {
			return "", "", campus.ErrNotFound
		}
		if _, err = svc.campuses.Get(ctx, id); err != nil {
			return "", "", err
		}
		return id, "", nil
	case ScopeProgram:
		if !core.IsValidID(id) {
			return "", "", program.ErrNotFound
		}
		prog, err := svc.programs.Get(ctx, id)
		if err != nil {
			return "", "", err
		}
		return prog.CampusID, prog.ID, nil
	case ScopeClass:
		c, err := svc.Get(ctx, id)
		if err != nil {
			return "", "", err
		}
		return c.CampusID, c.ProgramID, nil
	}
	return "", "", ErrUnknownScope
}

// ClassIDsInScope lists the classes inheriting from a scope.
func (svc *Service) ClassIDsInScope(ctx context.Context, scope, id string) ([]string, error) {
	filter := &QueryFilter{}
	switch scope {
	case ScopeCampus:
		filter.CampusID = id
	case ScopeProgram:
		filter.ProgramID = id
	case ScopeClass:
		return []string{id}, nil
	default:
		return nil, ErrUnknownScope
	}
	classes, err := svc.repo.QueryClasses(ctx, filter, nil)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(classes))
	for _, c := range classes {
		ids = append(ids, c.ID)
	}
	return ids, nil
}
