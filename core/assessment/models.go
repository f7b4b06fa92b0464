package assessment

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/academia-hq/academia/core"
)

// Scopes, from the most general to the most specific.
const (
	ScopeCampus  = "campus"
	ScopeProgram = "program"
	ScopeClass   = "class"

	scopeDefault = "default"
)

var Scopes = []string{ScopeCampus, ScopeProgram, ScopeClass}

// default system
const (
	DefaultName      = "Standard"
	DefaultMaxScore  = 20.0
	DefaultPassMark  = 10.0
	DefaultComponent = "exam"
)

// defaultBands are expressed as fractions of the max score.
var defaultBands = []struct {
	letter string
	ratio  float64
}{{"A", .8}, {"B", .7}, {"C", .6}, {"D", .5}, {"F", 0}}

type Component struct {
	Code   string  `json:"code" validate:"required,alphanum_,max=16"`
	Name   string  `json:"name" validate:"required,notblank,max=64"`
	Weight float64 `json:"weight" validate:"gt=0,max=100"`
}

// Band maps scores from Min (inclusive) up to the next band to Letter.
type Band struct {
	Letter string  `json:"letter" validate:"required,notblank,max=3"`
	Min    float64 `json:"min" validate:"min=0"`
}

// System overrides the inherited assessment settings of a scope. Nil fields are inherited;
// lists replace the inherited ones whole.
type System struct {
	ID         string      `json:"id"`
	Scope      string      `json:"scope"`
	ScopeID    string      `json:"scope_id"`
	Name       *string     `json:"name"`
	MaxScore   *float64    `json:"max_score"`
	PassMark   *float64    `json:"pass_mark"`
	Components []Component `json:"components"`
	Bands      []Band      `json:"bands"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Effective is the assessment system a class grades with. Origin tells which scope each field comes from.
type Effective struct {
	ClassID    string            `json:"class_id,omitempty"`
	Name       string            `json:"name"`
	MaxScore   float64           `json:"max_score"`
	PassMark   float64           `json:"pass_mark"`
	Components []Component       `json:"components"`
	Bands      []Band            `json:"bands"`
	Origin     map[string]string `json:"origin"`
}

// Defaults returns the built-in base every scope inherits from. Bands are filled by finish.
func Defaults() Effective {
	return Effective{
		Name:       DefaultName,
		MaxScore:   DefaultMaxScore,
		PassMark:   DefaultPassMark,
		Components: []Component{{Code: DefaultComponent, Name: "Exam", Weight: 100}},
		Origin: map[string]string{
			"name":       scopeDefault,
			"max_score":  scopeDefault,
			"pass_mark":  scopeDefault,
			"components": scopeDefault,
			"bands":      scopeDefault,
		},
	}
}

// merge applies the non-nil fields of s over e.
func (e Effective) merge(s *System) Effective {
	if s == nil {
		return e
	}
	origin := make(map[string]string, len(e.Origin))
	for k, v := range e.Origin {
		origin[k] = v
	}
	e.Origin = origin
	if s.Name != nil {
		e.Name = *s.Name
		e.Origin["name"] = s.Scope
	}
	if s.MaxScore != nil {
		e.MaxScore = *s.MaxScore
		e.Origin["max_score"] = s.Scope
	}
	if s.PassMark != nil {
		e.PassMark = *s.PassMark
		e.Origin["pass_mark"] = s.Scope
	}
	if s.Components != nil {
		e.Components = append([]Component(nil), s.Components...)
		e.Origin["components"] = s.Scope
	}
	if s.Bands != nil {
		e.Bands = append([]Band(nil), s.Bands...)
		e.Origin["bands"] = s.Scope
	}
	return e
}

// finish scales the default bands to the effective max score when no scope set bands.
func (e Effective) finish() Effective {
	if e.Bands == nil {
		e.Bands = make([]Band, 0, len(defaultBands))
		for _, b := range defaultBands {
			e.Bands = append(e.Bands, Band{Letter: b.letter, Min: math.Round(e.MaxScore*b.ratio*100) / 100})
		}
	}
	return e
}

// Resolve merges the given systems, most general first, over the defaults.
func Resolve(systems ...*System) Effective {
	e := Defaults()
	for _, s := range systems {
		e = e.merge(s)
	}
	return e.finish()
}

// Validate checks the consistency of a merged system.
func (e Effective) Validate() error {
	var flds []core.FieldError
	if e.MaxScore <= 0 {
		flds = append(flds, core.FieldError{Field: "max_score", Error: "must be greater than 0"})
	}
	if e.PassMark <= 0 || e.PassMark > e.MaxScore {
		flds = append(flds, core.FieldError{Field: "pass_mark", Error: "must be greater than 0 and at most the max score"})
	}

	if len(e.Components) == 0 {
		flds = append(flds, core.FieldError{Field: "components", Error: "at least one component is required"})
	} else {
		total := 0.0
		seen := make(map[string]bool, len(e.Components))
		for _, c := range e.Components {
			if seen[c.Code] {
				flds = append(flds, core.FieldError{Field: "components", Error: fmt.Sprintf("duplicate component %q", c.Code)})
			}
			seen[c.Code] = true
			total += c.Weight
		}
		if math.Abs(total-100) > 1e-6 {
			flds = append(flds, core.FieldError{Field: "components", Error: fmt.Sprintf("weights must sum to 100, got %g", total)})
		}
	}

	if len(e.Bands) == 0 {
		flds = append(flds, core.FieldError{Field: "bands", Error: "at least one band is required"})
	}
	for i, b := range e.Bands {
		if b.Min < 0 || b.Min > e.MaxScore {
			flds = append(flds, core.FieldError{Field: "bands", Error: fmt.Sprintf("band %s minimum must be within [0, max score]", b.Letter)})
			break
		}
		if i > 0 && b.Min >= e.Bands[i-1].Min {
			flds = append(flds, core.FieldError{Field: "bands", Error: "band minimums must be strictly descending"})
			break
		}
	}

	if len(flds) > 0 {
		return core.NewValidationError(ErrInvalidSystem, flds...)
	}
	return nil
}

// Component returns the component with the given code.
func (e Effective) Component(code string) (Component, bool) {
	for _, c := range e.Components {
		if c.Code == code {
			return c, true
		}
	}
	return Component{}, false
}

// Letter returns the band letter of a score on the max score scale, empty below every band.
func (e Effective) Letter(score float64) string {
	for _, b := range e.Bands {
		if score >= b.Min {
			return b.Letter
		}
	}
	return ""
}

// Passed reports whether a score on the max score scale reaches the pass mark.
func (e Effective) Passed(score float64) bool {
	return score >= e.PassMark
}

// SaveSystem contains the overrides of a scope. Absent fields are inherited.
type SaveSystem struct {
	Name       *string     `json:"name" validate:"omitempty,notblank,max=64"`
	MaxScore   *float64    `json:"max_score" validate:"omitempty,gt=0,max=1000"`
	PassMark   *float64    `json:"pass_mark" validate:"omitempty,gt=0,max=1000"`
	Components []Component `json:"components" validate:"omitempty,dive"`
	Bands      []Band      `json:"bands" validate:"omitempty,dive"`
}

func (ss *SaveSystem) Validate(validate *validator.Validate) error {
	if ss.Name != nil {
		name := core.CleanString(*ss.Name)
		ss.Name = &name
	}
	for i := range ss.Components {
		ss.Components[i].Code = core.CleanString(ss.Components[i].Code, true)
		ss.Components[i].Name = core.CleanString(ss.Components[i].Name)
	}
	for i := range ss.Bands {
		ss.Bands[i].Letter = strings.ToUpper(core.CleanString(ss.Bands[i].Letter))
	}
	return validate.Struct(ss)
}
