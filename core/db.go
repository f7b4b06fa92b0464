package core

import (
	"context"
	"database/sql"
	"strings"
)

type (
	DBExecutor interface {
		Exec(query string, args ...interface{}) (sql.Result, error)
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		Query(query string, args ...interface{}) (*sql.Rows, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		QueryRow(query string, args ...interface{}) *sql.Row
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}

	DB interface {
		DBExecutor

		Begin() (*sql.Tx, error)
		BeginTx(context.Context, *sql.TxOptions) (*sql.Tx, error)
	}

	DBTransactor interface {
		DBExecutor

		Commit() error
		Rollback() error
	}
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// FilterOrderings drops orderings on fields not in allowed (json field name -> column).
// The kept orderings have their Field replaced with the column name.
func FilterOrderings(ordering []DBOrdering, allowed map[string]string) []DBOrdering {
	if len(ordering) == 0 {
		return nil
	}
	kept := make([]DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		if col, ok := allowed[strings.ToLower(ord.Field)]; ok {
			kept = append(kept, DBOrdering{Field: col, Ascending: ord.Ascending})
		}
	}
	return kept
}

// OrderByClause renders orderings as a SQL ORDER BY clause, falling back to def.
func OrderByClause(ordering []DBOrdering, def string) string {
	if len(ordering) == 0 {
		return " ORDER BY " + def
	}
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		parts = append(parts, ord.String())
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}
