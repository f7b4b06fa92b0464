package grade

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/academia-hq/academia/core"
)

// History actions
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Grade is the score of a student in one component of a class subject for a term.
// It is unique on (StudentID, ClassSubjectID, TermID, Component).
type Grade struct {
	ID             string    `json:"id"`
	StudentID      string    `json:"student_id"`
	ClassID        string    `json:"class_id"`
	ClassSubjectID string    `json:"class_subject_id"`
	TermID         string    `json:"term_id"`
	Component      string    `json:"component"`
	Score          float64   `json:"score"`
	Comment        string    `json:"comment"`
	RecordedBy     string    `json:"recorded_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// History is an entry of the score trail of a grade. It outlives the grade.
type History struct {
	ID        string    `json:"id"`
	GradeID   string    `json:"grade_id"`
	Action    string    `json:"action"`
	OldScore  *float64  `json:"old_score"`
	NewScore  *float64  `json:"new_score"`
	ChangedBy string    `json:"changed_by"`
	Reason    string    `json:"reason"`
	ChangedAt time.Time `json:"changed_at"`
}

// Publication makes the grades of a class for a term visible to its students.
type Publication struct {
	ID          string    `json:"id"`
	ClassID     string    `json:"class_id"`
	TermID      string    `json:"term_id"`
	PublishedAt time.Time `json:"published_at"`
	PublishedBy string    `json:"published_by"`
}

// NewGrade contains information needed to record (create or correct) a Grade.
type NewGrade struct {
	StudentID      string   `json:"student_id" validate:"required,uuid"`
	ClassSubjectID string   `json:"class_subject_id" validate:"required,uuid"`
	TermID         string   `json:"term_id" validate:"required,uuid"`
	Component      string   `json:"component" validate:"required,alphanum_,max=16"`
	Score          *float64 `json:"score" validate:"required,min=0"`
	Comment        string   `json:"comment" validate:"max=512"`
	Reason         string   `json:"reason" validate:"max=255"`
}

func (ng *NewGrade) Validate(validate *validator.Validate) error {
	ng.Component = core.CleanString(ng.Component, true)
	ng.Comment = core.CleanString(ng.Comment)
	ng.Reason = core.CleanString(ng.Reason)
	return validate.Struct(ng)
}

// DeleteGrade explains a grade removal.
type DeleteGrade struct {
	Reason string `json:"reason" query:"reason" validate:"max=255"`
}

type QueryFilter struct {
	StudentID      string `query:"student_id"`
	ClassID        string `query:"class_id"`
	ClassSubjectID string `query:"class_subject_id"`
	TermID         string `query:"term_id"`
	Component      string `query:"component"`
	// PublishedOnly keeps the grades of published class terms.
	PublishedOnly bool `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Component = core.CleanString(qf.Component, true)
}

// ComponentScore is a graded component in a report.
type ComponentScore struct {
	Component string  `json:"component"`
	Weight    float64 `json:"weight"`
	Score     float64 `json:"score"`
}

// SubjectResult is the term result of a class subject. Score is on the max score scale and nil
// when nothing was graded.
type SubjectResult struct {
	ClassSubjectID string           `json:"class_subject_id"`
	SubjectCode    string           `json:"subject_code"`
	SubjectName    string           `json:"subject_name"`
	Coefficient    float64          `json:"coefficient"`
	Components     []ComponentScore `json:"components"`
	Percentage     *float64         `json:"percentage"`
	Score          *float64         `json:"score"`
	Letter         string           `json:"letter"`
	Passed         bool             `json:"passed"`
	Complete       bool             `json:"complete"`
}

// Report is the term report card of a student in a class.
type Report struct {
	StudentID string          `json:"student_id"`
	ClassID   string          `json:"class_id"`
	TermID    string          `json:"term_id"`
	Published bool            `json:"published"`
	MaxScore  float64         `json:"max_score"`
	PassMark  float64         `json:"pass_mark"`
	Subjects  []SubjectResult `json:"subjects"`
	Average   *float64        `json:"average"`
	Letter    string          `json:"letter"`
	Passed    bool            `json:"passed"`
}
