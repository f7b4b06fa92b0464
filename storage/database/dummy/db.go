package dummydb

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/assessment"
	"github.com/academia-hq/academia/core/calendar"
	"github.com/academia-hq/academia/core/campus"
	"github.com/academia-hq/academia/core/class"
	"github.com/academia-hq/academia/core/grade"
	"github.com/academia-hq/academia/core/knowledge"
	"github.com/academia-hq/academia/core/permission"
	"github.com/academia-hq/academia/core/program"
	"github.com/academia-hq/academia/core/student"
	"github.com/academia-hq/academia/core/teacher"
	"github.com/academia-hq/academia/core/timetable"
	"github.com/academia-hq/academia/core/user"
)

// DB is an in-memory database. A single lock guards every table so repositories can enforce
// cross-table rules (foreign keys, cascades) atomically.
type DB struct {
	sync.RWMutex

	users         map[string]user.User
	templates     map[string]permission.Template
	campuses      map[string]campus.Campus
	programs      map[string]program.Program
	subjects      map[string]program.Subject
	teachers      map[string]teacher.Teacher
	students      map[string]student.Student
	years         map[string]calendar.AcademicYear
	terms         map[string]calendar.Term
	events        map[string]calendar.Event
	classes       map[string]class.Class
	enrollments   map[string]class.Enrollment
	classSubjects map[string]class.ClassSubject
	slots         map[string]timetable.Slot
	systems       map[string]assessment.System // key: scope:scopeID
	grades        map[string]grade.Grade
	history       []grade.History
	publications  map[string]grade.Publication // key: classID:termID
	documents     map[string]knowledge.Document
	chunks        map[string][]knowledge.Chunk // key: documentID
}

func Open() *DB {
	return &DB{
		users:         make(map[string]user.User),
		templates:     make(map[string]permission.Template),
		campuses:      make(map[string]campus.Campus),
		programs:      make(map[string]program.Program),
		subjects:      make(map[string]program.Subject),
		teachers:      make(map[string]teacher.Teacher),
		students:      make(map[string]student.Student),
		years:         make(map[string]calendar.AcademicYear),
		terms:         make(map[string]calendar.Term),
		events:        make(map[string]calendar.Event),
		classes:       make(map[string]class.Class),
		enrollments:   make(map[string]class.Enrollment),
		classSubjects: make(map[string]class.ClassSubject),
		slots:         make(map[string]timetable.Slot),
		systems:       make(map[string]assessment.System),
		grades:        make(map[string]grade.Grade),
		publications:  make(map[string]grade.Publication),
		documents:     make(map[string]knowledge.Document),
		chunks:        make(map[string][]knowledge.Chunk),
	}
}

// Repositories groups every repository over one DB.
type Repositories struct {
	User       *userRepository
	Permission *permissionRepository
	Campus     *campusRepository
	Program    *programRepository
	Teacher    *teacherRepository
	Student    *studentRepository
	Calendar   *calendarRepository
	Class      *classRepository
	Timetable  *timetableRepository
	Assessment *assessmentRepository
	Grade      *gradeRepository
	Knowledge  *knowledgeRepository
}

func NewRepositories(db *DB) *Repositories {
	return &Repositories{
		User:       NewUserRepository(db),
		Permission: NewPermissionRepository(db),
		Campus:     NewCampusRepository(db),
		Program:    NewProgramRepository(db),
		Teacher:    NewTeacherRepository(db),
		Student:    NewStudentRepository(db),
		Calendar:   NewCalendarRepository(db),
		Class:      NewClassRepository(db),
		Timetable:  NewTimetableRepository(db),
		Assessment: NewAssessmentRepository(db),
		Grade:      NewGradeRepository(db),
		Knowledge:  NewKnowledgeRepository(db),
	}
}

func values[V any](table map[string]V) []V {
	vals := make([]V, 0, len(table))
	for _, v := range table {
		vals = append(vals, v)
	}
	return vals
}

func filter[V any](vals []V, keep func(V) bool) []V {
	kept := vals[:0]
	for _, v := range vals {
		if keep(v) {
			kept = append(kept, v)
		}
	}
	return kept
}

// comparer compares two rows on a column: negative when a sorts first.
type comparer[V any] func(a, b V) int

// order sorts rows by the given orderings, then by def.
func order[V any](vals []V, ordering []core.DBOrdering, columns map[string]comparer[V], def comparer[V]) {
	sort.SliceStable(vals, func(i, j int) bool {
		for _, ord := range ordering {
			cmp, ok := columns[ord.Field]
			if !ok {
				continue
			}
			c := cmp(vals[i], vals[j])
			if !ord.Ascending {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return def(vals[i], vals[j]) < 0
	})
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func cmpString(a, b string) int { return strings.Compare(a, b) }

func cmpInt(a, b int) int { return a - b }

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

func cmpTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
