package assessment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academia-hq/academia/core"
)

func ptr[T any](v T) *T { return &v }

func TestResolve(t *testing.T) {
	e := Resolve()
	assert.Equal(t, DefaultMaxScore, e.MaxScore)
	assert.Equal(t, []Band{{"A", 16}, {"B", 14}, {"C", 12}, {"D", 10}, {"F", 0}}, e.Bands)
	assert.NoError(t, e.Validate())

	campus := &System{Scope: ScopeCampus, MaxScore: ptr(100.0), PassMark: ptr(50.0)}
	program := &System{Scope: ScopeProgram, Components: []Component{
		{Code: "exam", Name: "Exam", Weight: 60},
		{Code: "homework", Name: "Homework", Weight: 40},
	}}
	class := &System{Scope: ScopeClass, Name: ptr("Lab"), PassMark: ptr(40.0)}

	e = Resolve(campus, nil, class)
	assert.Equal(t, "Lab", e.Name)
	assert.Equal(t, 100.0, e.MaxScore)
	assert.Equal(t, 40.0, e.PassMark)
	assert.Equal(t, 80.0, e.Bands[0].Min, "default bands follow the max score")
	assert.Equal(t, map[string]string{
		"name":       ScopeClass,
		"max_score":  ScopeCampus,
		"pass_mark":  ScopeClass,
		"components": scopeDefault,
		"bands":      scopeDefault,
	}, e.Origin)

	e = Resolve(campus, program, class)
	require.Len(t, e.Components, 2)
	assert.Equal(t, ScopeProgram, e.Origin["components"])
	assert.NoError(t, e.Validate())

	// merging never touches the inputs
	assert.Nil(t, campus.Components)
	assert.Equal(t, scopeDefault, Defaults().Origin["max_score"])
}

func TestEffective_Validate(t *testing.T) {
	tests := []struct {
		name    string
		systems []*System
		want    []core.FieldError
	}{
		{
			name:    "pass mark above max",
			systems: []*System{{MaxScore: ptr(10.0), PassMark: ptr(12.0)}},
			want:    []core.FieldError{{Field: "pass_mark", Error: "must be greater than 0 and at most the max score"}},
		},
		{
			name: "weights",
			systems: []*System{{Components: []Component{
				{Code: "exam", Name: "Exam", Weight: 50},
				{Code: "exam", Name: "Exam again", Weight: 20},
			}}},
			want: []core.FieldError{
				{Field: "components", Error: `duplicate component "exam"`},
				{Field: "components", Error: "weights must sum to 100, got 70"},
			},
		},
		{
			name:    "no components",
			systems: []*System{{Components: []Component{}}},
			want:    []core.FieldError{{Field: "components", Error: "at least one component is required"}},
		},
		{
			name:    "bands not descending",
			systems: []*System{{Bands: []Band{{"A", 10}, {"B", 12}}}},
			want:    []core.FieldError{{Field: "bands", Error: "band minimums must be strictly descending"}},
		},
		{
			name:    "band above max",
			systems: []*System{{Bands: []Band{{"A", 25}, {"B", 0}}}},
			want:    []core.FieldError{{Field: "bands", Error: "band A minimum must be within [0, max score]"}},
		},
		{
			name:    "custom bands scale is kept when max changes",
			systems: []*System{{Bands: []Band{{"P", 15}, {"F", 0}}}, {MaxScore: ptr(10.0), PassMark: ptr(5.0)}},
			want:    []core.FieldError{{Field: "bands", Error: "band P minimum must be within [0, max score]"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Resolve(tt.systems...).Validate()
			require.Error(t, err)
			verr, ok := err.(*core.ValidationError)
			require.True(t, ok)
			assert.Equal(t, ErrInvalidSystem, verr.Err)
			assert.Equal(t, tt.want, verr.Fields)
		})
	}
}

func TestEffective_Letter(t *testing.T) {
	e := Resolve(&System{Bands: []Band{{"A", 16}, {"B", 12}, {"C", 8}}})
	tests := []struct {
		score float64
		want  string
	}{
		{20, "A"},
		{16, "A"},
		{15.99, "B"},
		{8, "C"},
		{7.5, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.Letter(tt.score), "Letter(%v)", tt.score)
	}
	assert.True(t, e.Passed(10))
	assert.False(t, e.Passed(9.99))

	c, ok := e.Component("exam")
	assert.True(t, ok)
	assert.Equal(t, 100.0, c.Weight)
	_, ok = e.Component("quiz")
	assert.False(t, ok)
}
