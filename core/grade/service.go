package grade

import (
	"context"
	"math"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/assessment"
	"github.com/academia-hq/academia/core/calendar"
	"github.com/academia-hq/academia/core/class"
	"github.com/academia-hq/academia/core/student"
	"github.com/academia-hq/academia/core/user"
)

var (
	// errors
	ErrNotFound            = core.NewNotFoundError("grade not found")
	ErrPublicationNotFound = core.NewNotFoundError("grades not published")
	ErrAlreadyPublished    = core.NewConflictError("grades of this class are already published for the term")
)

type (
	// Key identifies a grade: one score per student, class subject, term and component.
	Key struct {
		StudentID      string
		ClassSubjectID string
		TermID         string
		Component      string
	}

	RecordFunc func(cur *Grade) (*Grade, *History)

	Repository interface {
		GetGrade(ctx context.Context, id string) (Grade, error)
		QueryGrades(ctx context.Context, filter *QueryFilter) ([]Grade, error)
		// RecordGrade locks the grade under key, passes it to apply (nil when there is none yet)
		// and stores the grade and history apply returns, in a single transaction.
		// A nil grade from apply leaves the current one untouched.
		RecordGrade(ctx context.Context, key Key, apply RecordFunc) (Grade, error)
		// DeleteGrade removes the grade and appends h in a single transaction.
		DeleteGrade(ctx context.Context, id string, h History) error
		// QueryHistory returns the trail of a grade, oldest first.
		QueryHistory(ctx context.Context, gradeID string) ([]History, error)
		CountGradesByClassSubject(ctx context.Context, classSubjectID string) (int, error)

		// CreatePublication returns ErrAlreadyPublished when the class term is already published.
		CreatePublication(ctx context.Context, p Publication) (Publication, error)
		GetPublication(ctx context.Context, classID, termID string) (Publication, error)
	}

	ClassFinder interface {
		Get(ctx context.Context, id string) (class.Class, error)
		GetClassSubject(ctx context.Context, id string) (class.ClassSubject, error)
		Subjects(ctx context.Context, classID string) ([]class.ClassSubject, error)
		IsEnrolled(ctx context.Context, classID, studentID string) (bool, error)
		WasEnrolled(ctx context.Context, classID, studentID string) (bool, error)
		EnrolledRecipients(ctx context.Context, classID string) ([]student.Recipient, error)
	}

	TermGetter interface {
		GetTerm(ctx context.Context, id string) (calendar.Term, error)
	}

	AssessmentResolver interface {
		Effective(ctx context.Context, classID string) (assessment.Effective, error)
	}

	Service struct {
		repo        Repository
		classes     ClassFinder
		terms       TermGetter
		assessments AssessmentResolver
		mailSvc     core.EmailService
		logger      core.Logger
	}
)

func NewService(
	repo Repository,
	classes ClassFinder,
	terms TermGetter,
	assessments AssessmentResolver,
	mailSvc core.EmailService,
	logger core.Logger,
) *Service {
	return &Service{
		repo:        repo,
		classes:     classes,
		terms:       terms,
		assessments: assessments,
		mailSvc:     mailSvc,
		logger:      logger,
	}
}

// termOf checks that a term belongs to the academic year of the class.
func (svc *Service) termOf(ctx context.Context, c class.Class, termID string) (calendar.Term, error) {
	t, err := svc.terms.GetTerm(ctx, termID)
	if err != nil {
		if core.IsNotFound(err) {
			return t, core.NewFieldError("term_id", "term not found")
		}
		return t, err
	}
	if t.AcademicYearID != c.AcademicYearID {
		return t, core.NewFieldError("term_id", "term is not in the academic year of the class")
	}
	return t, nil
}

// Record creates or corrects a grade. A score change is appended to the grade history.
func (svc *Service) Record(ctx context.Context, ng NewGrade, by user.User) (Grade, error) {
	cs, err := svc.classes.GetClassSubject(ctx, ng.ClassSubjectID)
	if err != nil {
		if core.IsNotFound(err) {
			return Grade{}, core.NewFieldError("class_subject_id", "class subject not found")
		}
		return Grade{}, err
	}
	c, err := svc.classes.Get(ctx, cs.ClassID)
	if err != nil {
		return Grade{}, err
	}
	if _, err = svc.termOf(ctx, c, ng.TermID); err != nil {
		return Grade{}, err
	}
	enrolled, err := svc.classes.IsEnrolled(ctx, c.ID, ng.StudentID)
	if err != nil {
		return Grade{}, err
	}
	if !enrolled {
		return Grade{}, core.NewFieldError("student_id", "student is not enrolled in the class")
	}
	sys, err := svc.assessments.Effective(ctx, c.ID)
	if err != nil {
		return Grade{}, errors.Wrap(err, "resolving assessment system")
	}
	if _, ok := sys.Component(ng.Component); !ok {
		return Grade{}, core.NewFieldError("component", "unknown assessment component")
	}
	if *ng.Score > sys.MaxScore {
		return Grade{}, core.NewFieldError("score", "must be at most the max score")
	}

	key := Key{StudentID: ng.StudentID, ClassSubjectID: cs.ID, TermID: ng.TermID, Component: ng.Component}
	return svc.repo.RecordGrade(ctx, key, func(cur *Grade) (*Grade, *History) {
		now := core.Now()
		if cur == nil {
			g := Grade{
				ID:             core.NewID(),
				StudentID:      ng.StudentID,
				ClassID:        c.ID,
				ClassSubjectID: cs.ID,
				TermID:         ng.TermID,
				Component:      ng.Component,
				Score:          *ng.Score,
				Comment:        ng.Comment,
				RecordedBy:     by.ID,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			return &g, &History{
				ID:        core.NewID(),
				GradeID:   g.ID,
				Action:    ActionCreated,
				NewScore:  floatPtr(g.Score),
				ChangedBy: by.ID,
				Reason:    ng.Reason,
				ChangedAt: now,
			}
		}

		if cur.Score == *ng.Score && cur.Comment == ng.Comment {
			return nil, nil
		}
		var h *History
		if cur.Score != *ng.Score {
			h = &History{
				ID:        core.NewID(),
				GradeID:   cur.ID,
				Action:    ActionUpdated,
				OldScore:  floatPtr(cur.Score),
				NewScore:  floatPtr(*ng.Score),
				ChangedBy: by.ID,
				Reason:    ng.Reason,
				ChangedAt: now,
			}
		}
		g := *cur
		g.Score = *ng.Score
		g.Comment = ng.Comment
		g.RecordedBy = by.ID
		g.UpdatedAt = now
		return &g, h
	})
}

func (svc *Service) Get(ctx context.Context, id string) (Grade, error) {
	if !core.IsValidID(id) {
		return Grade{}, ErrNotFound
	}
	return svc.repo.GetGrade(ctx, id)
}

func (svc *Service) Delete(ctx context.Context, g Grade, dg DeleteGrade, by user.User) error {
	return svc.repo.DeleteGrade(ctx, g.ID, History{
		ID:        core.NewID(),
		GradeID:   g.ID,
		Action:    ActionDeleted,
		OldScore:  floatPtr(g.Score),
		ChangedBy: by.ID,
		Reason:    core.CleanString(dg.Reason),
		ChangedAt: core.Now(),
	})
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]Grade, error) {
	return svc.repo.QueryGrades(ctx, filter)
}

func (svc *Service) History(ctx context.Context, gradeID string) ([]History, error) {
	return svc.repo.QueryHistory(ctx, gradeID)
}

// IsPublished reports whether the grades of a class term are visible to students.
func (svc *Service) IsPublished(ctx context.Context, classID, termID string) (bool, error) {
	_, err := svc.repo.GetPublication(ctx, classID, termID)
	if err == nil {
		return true, nil
	}
	if core.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// Publish makes the grades of a class term visible to its students and notifies them by email.
func (svc *Service) Publish(ctx context.Context, c class.Class, termID string, by user.User) (Publication, error) {
	t, err := svc.termOf(ctx, c, termID)
	if err != nil {
		return Publication{}, err
	}
	p, err := svc.repo.CreatePublication(ctx, Publication{
		ID:          core.NewID(),
		ClassID:     c.ID,
		TermID:      t.ID,
		PublishedAt: core.Now(),
		PublishedBy: by.ID,
	})
	if err != nil {
		return Publication{}, err
	}

	rcps, err := svc.classes.EnrolledRecipients(ctx, c.ID)
	if err != nil {
		svc.logger.Error("listing grade publication recipients", err, map[string]interface{}{"class_id": c.ID})
		return p, nil
	}
	msgs := make([]*core.EmailMessage, 0, len(rcps))
	for _, rcp := range rcps {
		if rcp.Email == "" {
			continue
		}
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: rcp.Name, Address: rcp.Email}},
			Subject:      "Grades published: " + t.Name,
			TemplateName: "grades_published",
			TemplateData: map[string]interface{}{
				"Name":      rcp.Name,
				"ClassName": c.Name,
				"TermName":  t.Name,
				"ClassID":   c.ID,
				"TermID":    t.ID,
			},
		})
	}
	if len(msgs) > 0 {
		svc.mailSvc.SendMessages(msgs...)
	}
	return p, nil
}

// Report computes the term report card of a student. Each subject result is the weighted mean of
// its graded components; the overall average is weighted by subject coefficients.
// With publishedOnly, an unpublished term yields ErrPublicationNotFound.
func (svc *Service) Report(ctx context.Context, studentID, classID, termID string, publishedOnly bool) (Report, error) {
	c, err := svc.classes.Get(ctx, classID)
	if err != nil {
		return Report{}, err
	}
	if _, err = svc.termOf(ctx, c, termID); err != nil {
		return Report{}, err
	}
	enrolled, err := svc.classes.WasEnrolled(ctx, c.ID, studentID)
	if err != nil {
		return Report{}, err
	}
	if !enrolled {
		return Report{}, core.NewFieldError("student_id", "student is not enrolled in the class")
	}
	published, err := svc.IsPublished(ctx, c.ID, termID)
	if err != nil {
		return Report{}, err
	}
	if publishedOnly && !published {
		return Report{}, ErrPublicationNotFound
	}

	sys, err := svc.assessments.Effective(ctx, c.ID)
	if err != nil {
		return Report{}, errors.Wrap(err, "resolving assessment system")
	}
	subjects, err := svc.classes.Subjects(ctx, c.ID)
	if err != nil {
		return Report{}, err
	}
	grades, err := svc.repo.QueryGrades(ctx, &QueryFilter{StudentID: studentID, ClassID: c.ID, TermID: termID})
	if err != nil {
		return Report{}, err
	}
	byClassSubject := make(map[string][]Grade)
	for _, g := range grades {
		byClassSubject[g.ClassSubjectID] = append(byClassSubject[g.ClassSubjectID], g)
	}

	rep := Report{
		StudentID: studentID,
		ClassID:   c.ID,
		TermID:    termID,
		Published: published,
		MaxScore:  sys.MaxScore,
		PassMark:  sys.PassMark,
		Subjects:  make([]SubjectResult, 0, len(subjects)),
	}
	var weighted, coefs float64
	for _, cs := range subjects {
		res := subjectResult(cs, byClassSubject[cs.ID], sys)
		if res.Score != nil {
			weighted += *res.Score * cs.Coefficient
			coefs += cs.Coefficient
		}
		rep.Subjects = append(rep.Subjects, res)
	}
	if coefs > 0 {
		avg := round2(weighted / coefs)
		rep.Average = &avg
		rep.Letter = sys.Letter(avg)
		rep.Passed = sys.Passed(avg)
	}
	return rep, nil
}

func subjectResult(cs class.ClassSubject, grades []Grade, sys assessment.Effective) SubjectResult {
	res := SubjectResult{
		ClassSubjectID: cs.ID,
		SubjectCode:    cs.SubjectCode,
		SubjectName:    cs.SubjectName,
		Coefficient:    cs.Coefficient,
		Components:     []ComponentScore{},
	}
	var weighted, weights float64
	graded := 0
	for _, comp := range sys.Components {
		for _, g := range grades {
			if g.Component != comp.Code {
				continue
			}
			res.Components = append(res.Components, ComponentScore{Component: comp.Code, Weight: comp.Weight, Score: g.Score})
			weighted += comp.Weight * g.Score / sys.MaxScore
			weights += comp.Weight
			graded++
		}
	}
	if weights == 0 {
		return res
	}
	pct := round2(weighted / weights * 100)
	score := round2(pct / 100 * sys.MaxScore)
	res.Percentage = &pct
	res.Score = &score
	res.Letter = sys.Letter(score)
	res.Passed = sys.Passed(score)
	res.Complete = graded == len(sys.Components)
	return res
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func floatPtr(f float64) *float64 {
	return &f
}
