package core

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Weekday is a time.Weekday marshalled as its lower-case three-letter abbreviation ("mon").
type Weekday int

var (
	weekdayNames = [...]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

	// DefaultWorkingDays is Monday to Friday.
	DefaultWorkingDays = []Weekday{
		Weekday(time.Monday), Weekday(time.Tuesday), Weekday(time.Wednesday), Weekday(time.Thursday), Weekday(time.Friday),
	}
)

func WeekdayOf(d Date) Weekday { return Weekday(d.Weekday()) }

func ParseWeekday(s string) (Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) >= 3 {
		for i, name := range weekdayNames {
			if strings.HasPrefix(s, name) && strings.HasPrefix(strings.ToLower(time.Weekday(i).String()), s) {
				return Weekday(i), nil
			}
		}
	}
	return 0, errors.Errorf("invalid weekday %q", s)
}

func (w Weekday) IsValid() bool { return w >= 0 && int(w) < len(weekdayNames) }

func (w Weekday) String() string {
	if !w.IsValid() {
		return ""
	}
	return weekdayNames[w]
}

func (w Weekday) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.String())
}

func (w *Weekday) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var i int
		if err2 := json.Unmarshal(data, &i); err2 != nil {
			return err
		}
		*w = Weekday(i)
		if !w.IsValid() {
			return errors.Errorf("invalid weekday %d", i)
		}
		return nil
	}
	return w.UnmarshalText([]byte(s))
}

func (w *Weekday) UnmarshalText(text []byte) error {
	parsed, err := ParseWeekday(string(text))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// ContainsWeekday reports whether days holds d.
func ContainsWeekday(days []Weekday, d Weekday) bool {
	for _, day := range days {
		if day == d {
			return true
		}
	}
	return false
}
