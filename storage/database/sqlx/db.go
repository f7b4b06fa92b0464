// Package sqlxrepos implements the core repositories on PostgreSQL with sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/academia-hq/academia/core"
)

// postgres error codes
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Repositories groups every repository over one connection pool.
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

func NewRepositories(db *sqlx.DB) *Repositories {
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

// trapNoRowsErr maps psql "no rows" err to notFound.
func trapNoRowsErr(err, notFound error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isUniqueViolation(err error) bool { return pqCode(err) == uniqueViolation }

func isForeignKeyViolation(err error) bool { return pqCode(err) == foreignKeyViolation }

// withTx runs fn in a transaction, committed when fn returns nil.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// expectRows returns notFound when res affected no row.
func expectRows(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "counting affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// conditions builds a WHERE clause with ? placeholders, rebound by the caller.
type conditions struct {
	clauses []string
	args    []interface{}
}

func (c *conditions) add(clause string, args ...interface{}) {
	c.clauses = append(c.clauses, clause)
	c.args = append(c.args, args...)
}

// search matches a case-insensitive keyword on any of columns.
func (c *conditions) search(keyword string, columns ...string) {
	if keyword == "" {
		return
	}
	pattern := "%" + escapeLike(keyword) + "%"
	ors := make([]string, 0, len(columns))
	for _, col := range columns {
		ors = append(ors, col+" ILIKE ?")
		c.args = append(c.args, pattern)
	}
	c.clauses = append(c.clauses, "("+strings.Join(ors, " OR ")+")")
}

func (c *conditions) String() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}

// selectWhere runs "query + conditions + order by" into dest.
func selectWhere(ctx context.Context, db *sqlx.DB, dest interface{}, query string, conds *conditions, ordering []core.DBOrdering, def string) error {
	q := db.Rebind(query + conds.String() + core.OrderByClause(ordering, def))
	return db.SelectContext(ctx, dest, q, conds.args...)
}

// qualify prefixes the ordering columns with a table alias.
func qualify(ordering []core.DBOrdering, alias string) []core.DBOrdering {
	qualified := make([]core.DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		qualified = append(qualified, core.DBOrdering{Field: alias + "." + ord.Field, Ascending: ord.Ascending})
	}
	return qualified
}
