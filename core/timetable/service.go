package timetable

import (
	"context"
	"sort"
	"sync"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/class"
	"github.com/academia-hq/academia/core/teacher"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("timetable slot not found")
)

type (
	Repository interface {
		CreateSlot(ctx context.Context, s Slot) (Slot, error)
		GetSlot(ctx context.Context, id string) (Slot, error)
		QuerySlots(ctx context.Context, filter SlotFilter) ([]Slot, error)
		UpdateSlot(ctx context.Context, s Slot) (Slot, error)
		DeleteSlot(ctx context.Context, id string) error
	}

	ClassFinder interface {
		Get(ctx context.Context, id string) (class.Class, error)
		GetClassSubject(ctx context.Context, id string) (class.ClassSubject, error)
	}

	TeacherGetter interface {
		Get(ctx context.Context, id string) (teacher.Teacher, error)
	}

	Service struct {
		repo     Repository
		classes  ClassFinder
		teachers TeacherGetter

		// writes are serialized so two concurrent bookings cannot both pass the clash check
		mu sync.Mutex
	}
)

func NewService(repo Repository, classes ClassFinder, teachers TeacherGetter) *Service {
	return &Service{repo: repo, classes: classes, teachers: teachers}
}

func (svc *Service) checkTeacher(ctx context.Context, teacherID, campusID string) error {
	t, err := svc.teachers.Get(ctx, teacherID)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewFieldError("teacher_id", "teacher not found")
		}
		return err
	}
	if t.CampusID != campusID {
		return core.NewFieldError("teacher_id", "teacher belongs to another campus")
	}
	return nil
}

// clashes returns a ConflictError describing every slot s would overlap with.
func (svc *Service) clashes(ctx context.Context, s Slot) error {
	sameDay, err := svc.repo.QuerySlots(ctx, SlotFilter{CampusID: s.CampusID, Weekday: s.Weekday})
	if err != nil {
		return err
	}
	var details []string
	for _, o := range sameDay {
		if o.ID == s.ID || !s.Overlaps(o) {
			continue
		}
		switch {
		case o.ClassID == s.ClassID:
			details = append(details, "class already has a lesson on "+o.String())
		case s.TeacherID != "" && o.TeacherID == s.TeacherID:
			details = append(details, "teacher already teaches on "+o.String())
		case sameRoom(s, o):
			details = append(details, "room "+o.Room+" is taken on "+o.String())
		}
	}
	if len(details) > 0 {
		return core.NewConflictError("timetable clash", details...)
	}
	return nil
}

// Create schedules a slot, rejecting any overlap with the class, the teacher or the room.
func (svc *Service) Create(ctx context.Context, ns NewSlot) (Slot, error) {
	cs, err := svc.classes.GetClassSubject(ctx, ns.ClassSubjectID)
	if err != nil {
		if core.IsNotFound(err) {
			return Slot{}, core.NewFieldError("class_subject_id", "class subject not found")
		}
		return Slot{}, err
	}
	c, err := svc.classes.Get(ctx, cs.ClassID)
	if err != nil {
		return Slot{}, err
	}
	if ns.TeacherID == "" {
		ns.TeacherID = cs.TeacherID
	} else if err = svc.checkTeacher(ctx, ns.TeacherID, c.CampusID); err != nil {
		return Slot{}, err
	}

	now := core.Now()
	s := Slot{
		ID:             core.NewID(),
		CampusID:       c.CampusID,
		ClassID:        c.ID,
		ClassSubjectID: cs.ID,
		TeacherID:      ns.TeacherID,
		Room:           ns.Room,
		Weekday:        ns.Weekday,
		Start:          ns.Start,
		End:            ns.End,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if err = svc.clashes(ctx, s); err != nil {
		return Slot{}, err
	}
	return svc.repo.CreateSlot(ctx, s)
}

func (svc *Service) Get(ctx context.Context, id string) (Slot, error) {
	if !core.IsValidID(id) {
		return Slot{}, ErrNotFound
	}
	return svc.repo.GetSlot(ctx, id)
}

func (svc *Service) Update(ctx context.Context, s Slot, us UpdateSlot) (Slot, error) {
	if us.TeacherID != nil {
		if *us.TeacherID != "" && *us.TeacherID != s.TeacherID {
			if err := svc.checkTeacher(ctx, *us.TeacherID, s.CampusID); err != nil {
				return Slot{}, err
			}
		}
		s.TeacherID = *us.TeacherID
	}
	if us.Room != nil {
		s.Room = *us.Room
	}
	if us.Weekday != nil {
		s.Weekday = *us.Weekday
	}
	if us.Start != nil {
		s.Start = *us.Start
	}
	if us.End != nil {
		s.End = *us.End
	}
	s.UpdatedAt = core.Now()

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if err := svc.clashes(ctx, s); err != nil {
		return Slot{}, err
	}
	return svc.repo.UpdateSlot(ctx, s)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteSlot(ctx, id)
}

// ClassWeek returns the week of a class ordered by weekday then start.
func (svc *Service) ClassWeek(ctx context.Context, classID string) ([]Slot, error) {
	return svc.week(ctx, SlotFilter{ClassID: classID})
}

// TeacherWeek returns the week of a teacher ordered by weekday then start.
func (svc *Service) TeacherWeek(ctx context.Context, teacherID string) ([]Slot, error) {
	return svc.week(ctx, SlotFilter{TeacherID: teacherID})
}

func (svc *Service) week(ctx context.Context, filter SlotFilter) ([]Slot, error) {
	slots, err := svc.repo.QuerySlots(ctx, filter)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Weekday != slots[j].Weekday {
			return slots[i].Weekday < slots[j].Weekday
		}
		return slots[i].Start < slots[j].Start
	})
	return slots, nil
}
