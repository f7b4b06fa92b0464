package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/academia-hq/academia/core/calendar"
)

const (
	yearColumns  = `id, campus_id, name, starts_on, ends_on, is_current, created_at, updated_at`
	termColumns  = `id, academic_year_id, name, sequence, starts_on, ends_on, created_at, updated_at`
	eventColumns = `id, campus_id, class_id, title, description, kind, starts_at, ends_at, all_day, created_at, updated_at`
)

func yearDest(y *calendar.AcademicYear) []interface{} {
	return []interface{}{&y.ID, &y.CampusID, &y.Name, &y.StartsOn, &y.EndsOn, &y.IsCurrent, &y.CreatedAt, &y.UpdatedAt}
}

func termDest(t *calendar.Term) []interface{} {
	return []interface{}{&t.ID, &t.AcademicYearID, &t.Name, &t.Sequence, &t.StartsOn, &t.EndsOn, &t.CreatedAt, &t.UpdatedAt}
}

type eventRow struct {
	ID          string      `db:"id"`
	CampusID    string      `db:"campus_id"`
	ClassID     null.String `db:"class_id"`
	Title       string      `db:"title"`
	Description string      `db:"description"`
	Kind        string      `db:"kind"`
	StartsAt    time.Time   `db:"starts_at"`
	EndsAt      time.Time   `db:"ends_at"`
	AllDay      bool        `db:"all_day"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func newEventRow(e calendar.Event) eventRow {
	return eventRow{
		ID:          e.ID,
		CampusID:    e.CampusID,
		ClassID:     null.NewString(e.ClassID, e.ClassID != ""),
		Title:       e.Title,
		Description: e.Description,
		Kind:        e.Kind,
		StartsAt:    e.StartsAt.UTC(),
		EndsAt:      e.EndsAt.UTC(),
		AllDay:      e.AllDay,
		CreatedAt:   e.CreatedAt.UTC(),
		UpdatedAt:   e.UpdatedAt.UTC(),
	}
}

func (r eventRow) event() calendar.Event {
	return calendar.Event{
		ID:          r.ID,
		CampusID:    r.CampusID,
		ClassID:     r.ClassID.String,
		Title:       r.Title,
		Description: r.Description,
		Kind:        r.Kind,
		StartsAt:    r.StartsAt.UTC(),
		EndsAt:      r.EndsAt.UTC(),
		AllDay:      r.AllDay,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type calendarRepository struct {
	db *sqlx.DB
}

var _ calendar.Repository = (*calendarRepository)(nil) // interface compliance check

func NewCalendarRepository(db *sqlx.DB) *calendarRepository {
	return &calendarRepository{db: db}
}

func (repo *calendarRepository) CreateAcademicYear(ctx context.Context, y calendar.AcademicYear) (calendar.AcademicYear, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if y.IsCurrent {
			if _, err := tx.ExecContext(ctx, "UPDATE academic_years SET is_current = FALSE WHERE campus_id = $1 AND is_current", y.CampusID); err != nil {
				return errors.Wrap(err, "unsetting current academic year")
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO academic_years (`+yearColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			y.ID, y.CampusID, y.Name, y.StartsOn, y.EndsOn, y.IsCurrent, y.CreatedAt.UTC(), y.UpdatedAt.UTC())
		return errors.Wrap(err, "inserting academic year")
	})
	if err != nil {
		return calendar.AcademicYear{}, err
	}
	return y, nil
}

func (repo *calendarRepository) getYear(ctx context.Context, q sqlx.QueryerContext, notFound error, where string, arg interface{}) (calendar.AcademicYear, error) {
	var y calendar.AcademicYear
	if err := q.QueryRowxContext(ctx, "SELECT "+yearColumns+" FROM academic_years WHERE "+where, arg).Scan(yearDest(&y)...); err != nil {
		return calendar.AcademicYear{}, trapNoRowsErr(err, notFound, "finding academic year")
	}
	return y, nil
}

func (repo *calendarRepository) GetAcademicYear(ctx context.Context, id string) (calendar.AcademicYear, error) {
	return repo.getYear(ctx, repo.db, calendar.ErrYearNotFound, "id = $1", id)
}

func (repo *calendarRepository) GetCurrentAcademicYear(ctx context.Context, campusID string) (calendar.AcademicYear, error) {
	return repo.getYear(ctx, repo.db, calendar.ErrNoCurrentYear, "campus_id = $1 AND is_current", campusID)
}

func (repo *calendarRepository) QueryAcademicYears(ctx context.Context, campusID string) ([]calendar.AcademicYear, error) {
	q, args := "SELECT "+yearColumns+" FROM academic_years", []interface{}{}
	if campusID != "" {
		q, args = q+" WHERE campus_id = $1", append(args, campusID)
	}
	rows, err := repo.db.QueryxContext(ctx, q+" ORDER BY starts_on DESC", args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying academic years")
	}
	defer func() { _ = rows.Close() }()

	years := make([]calendar.AcademicYear, 0)
	for rows.Next() {
		var y calendar.AcademicYear
		if err = rows.Scan(yearDest(&y)...); err != nil {
			return nil, errors.Wrap(err, "scanning academic year")
		}
		years = append(years, y)
	}
	return years, errors.Wrap(rows.Err(), "querying academic years")
}

func (repo *calendarRepository) SetCurrentAcademicYear(ctx context.Context, id string) (calendar.AcademicYear, error) {
	var y calendar.AcademicYear
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var err error
		if y, err = repo.getYear(ctx, tx, calendar.ErrYearNotFound, "id = $1 FOR UPDATE", id); err != nil {
			return err
		}
		// the partial unique index is checked row by row: unset first
		if _, err = tx.ExecContext(ctx, "UPDATE academic_years SET is_current = FALSE WHERE campus_id = $1 AND is_current", y.CampusID); err != nil {
			return errors.Wrap(err, "unsetting current academic year")
		}
		if _, err = tx.ExecContext(ctx, "UPDATE academic_years SET is_current = TRUE WHERE id = $1", y.ID); err != nil {
			return errors.Wrap(err, "setting current academic year")
		}
		y.IsCurrent = true
		return nil
	})
	return y, err
}

func (repo *calendarRepository) CreateTerm(ctx context.Context, t calendar.Term) (calendar.Term, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO terms (`+termColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.AcademicYearID, t.Name, t.Sequence, t.StartsOn, t.EndsOn, t.CreatedAt.UTC(), t.UpdatedAt.UTC())
	if err != nil {
		if isForeignKeyViolation(err) {
			return calendar.Term{}, calendar.ErrYearNotFound
		}
		return calendar.Term{}, errors.Wrap(err, "inserting term")
	}
	return t, nil
}

func (repo *calendarRepository) GetTerm(ctx context.Context, id string) (calendar.Term, error) {
	var t calendar.Term
	if err := repo.db.QueryRowxContext(ctx, "SELECT "+termColumns+" FROM terms WHERE id = $1", id).Scan(termDest(&t)...); err != nil {
		return calendar.Term{}, trapNoRowsErr(err, calendar.ErrTermNotFound, "finding term")
	}
	return t, nil
}

func (repo *calendarRepository) QueryTerms(ctx context.Context, yearID string) ([]calendar.Term, error) {
	rows, err := repo.db.QueryxContext(ctx, "SELECT "+termColumns+" FROM terms WHERE academic_year_id = $1 ORDER BY sequence", yearID)
	if err != nil {
		return nil, errors.Wrap(err, "querying terms")
	}
	defer func() { _ = rows.Close() }()

	terms := make([]calendar.Term, 0)
	for rows.Next() {
		var t calendar.Term
		if err = rows.Scan(termDest(&t)...); err != nil {
			return nil, errors.Wrap(err, "scanning term")
		}
		terms = append(terms, t)
	}
	return terms, errors.Wrap(rows.Err(), "querying terms")
}

func (repo *calendarRepository) CreateEvent(ctx context.Context, e calendar.Event) (calendar.Event, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO calendar_events (`+eventColumns+`)
		VALUES (:id, :campus_id, :class_id, :title, :description, :kind, :starts_at, :ends_at, :all_day, :created_at, :updated_at)`,
		newEventRow(e))
	if err != nil {
		return calendar.Event{}, errors.Wrap(err, "inserting event")
	}
	return e, nil
}

func (repo *calendarRepository) GetEvent(ctx context.Context, id string) (calendar.Event, error) {
	var r eventRow
	if err := repo.db.GetContext(ctx, &r, "SELECT "+eventColumns+" FROM calendar_events WHERE id = $1", id); err != nil {
		return calendar.Event{}, trapNoRowsErr(err, calendar.ErrEventNotFound, "finding event")
	}
	return r.event(), nil
}

// QueryEvents returns the events overlapping [From, To); a class filter keeps the campus-wide events.
func (repo *calendarRepository) QueryEvents(ctx context.Context, f calendar.EventFilter) ([]calendar.Event, error) {
	conds := new(conditions)
	if f.CampusID != "" {
		conds.add("campus_id = ?", f.CampusID)
	}
	if f.ClassID != "" {
		conds.add("(class_id IS NULL OR class_id = ?)", f.ClassID)
	}
	if f.Kind != "" {
		conds.add("kind = ?", f.Kind)
	}
	if !f.To.IsZero() {
		conds.add("starts_at < ?", f.To.UTC())
	}
	if !f.From.IsZero() {
		conds.add("ends_at >= ?", f.From.UTC())
	}
	var rows []eventRow
	if err := selectWhere(ctx, repo.db, &rows, "SELECT "+eventColumns+" FROM calendar_events", conds, nil, "starts_at ASC"); err != nil {
		return nil, errors.Wrap(err, "querying events")
	}
	events := make([]calendar.Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, r.event())
	}
	return events, nil
}

func (repo *calendarRepository) DeleteEvent(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM calendar_events WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting event")
	}
	return expectRows(res, calendar.ErrEventNotFound)
}
