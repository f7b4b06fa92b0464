package timetable

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/academia-hq/academia/core"
)

// Slot is a weekly recurring lesson of a class subject. Start and End are "HH:MM" in the campus
// time zone; CampusID and ClassID are derived from the class subject.
type Slot struct {
	ID             string       `json:"id"`
	CampusID       string       `json:"campus_id"`
	ClassID        string       `json:"class_id"`
	ClassSubjectID string       `json:"class_subject_id"`
	TeacherID      string       `json:"teacher_id,omitempty"`
	Room           string       `json:"room"`
	Weekday        core.Weekday `json:"weekday"`
	Start          string       `json:"start"`
	End            string       `json:"end"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Overlaps reports whether both slots share part of the same weekday.
func (s Slot) Overlaps(o Slot) bool {
	return s.Weekday == o.Weekday && s.Start < o.End && o.Start < s.End
}

func (s Slot) String() string {
	return fmt.Sprintf("%s %s-%s", s.Weekday, s.Start, s.End)
}

func sameRoom(a, b Slot) bool {
	return a.Room != "" && a.CampusID == b.CampusID && strings.EqualFold(a.Room, b.Room)
}

// NewSlot contains information needed to schedule a Slot. TeacherID defaults to the class
// subject's teacher.
type NewSlot struct {
	ClassSubjectID string       `json:"class_subject_id" validate:"required,uuid"`
	TeacherID      string       `json:"teacher_id" validate:"omitempty,uuid"`
	Room           string       `json:"room" validate:"max=32"`
	Weekday        core.Weekday `json:"weekday" validate:"min=1,max=6"`
	Start          string       `json:"start" validate:"required,hhmm"`
	End            string       `json:"end" validate:"required,hhmm"`
}

func (ns *NewSlot) Validate(validate *validator.Validate) error {
	ns.Room = core.CleanString(ns.Room)
	ns.Start = core.CleanString(ns.Start)
	ns.End = core.CleanString(ns.End)
	if err := validate.Struct(ns); err != nil {
		return err
	}
	if ns.Start >= ns.End {
		return core.NewFieldError("end", "must be after start")
	}
	return nil
}

// UpdateSlot defines what information may be provided to move an existing Slot.
type UpdateSlot struct {
	TeacherID *string       `json:"teacher_id" validate:"omitempty,uuid"`
	Room      *string       `json:"room" validate:"omitempty,max=32"`
	Weekday   *core.Weekday `json:"weekday" validate:"omitempty,min=1,max=6"`
	Start     *string       `json:"start" validate:"omitempty,hhmm"`
	End       *string       `json:"end" validate:"omitempty,hhmm"`
}

func (us *UpdateSlot) Validate(orig Slot, validate *validator.Validate) error {
	for _, field := range []**string{&us.Room, &us.Start, &us.End} {
		if *field != nil {
			v := core.CleanString(**field)
			*field = &v
		}
	}
	if err := validate.Struct(us); err != nil {
		return err
	}
	start, end := orig.Start, orig.End
	if us.Start != nil {
		start = *us.Start
	}
	if us.End != nil {
		end = *us.End
	}
	if start >= end {
		return core.NewFieldError("end", "must be after start")
	}
	return nil
}

// SlotFilter selects slots; empty fields match everything. Slots never fall on sunday, so a zero
// Weekday matches every day.
type SlotFilter struct {
	CampusID  string
	ClassID   string
	TeacherID string
	Weekday   core.Weekday
}
