package shared

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/assessment"
	"github.com/academia-hq/academia/core/calendar"
	"github.com/academia-hq/academia/core/campus"
	"github.com/academia-hq/academia/core/class"
	"github.com/academia-hq/academia/core/grade"
	"github.com/academia-hq/academia/core/knowledge"
	"github.com/academia-hq/academia/core/permission"
	"github.com/academia-hq/academia/core/program"
	"github.com/academia-hq/academia/core/student"
	"github.com/academia-hq/academia/core/teacher"
	"github.com/academia-hq/academia/core/timetable"
	"github.com/academia-hq/academia/core/user"
	"github.com/academia-hq/academia/storage/database"
	dummydb "github.com/academia-hq/academia/storage/database/dummy"
	sqlxrepos "github.com/academia-hq/academia/storage/database/sqlx"
)

const (
	EnginePostgres = "postgres"
	EngineMemory   = "memory"
)

// Repositories holds one repository per domain, whatever the storage engine.
type Repositories struct {
	User       user.Repository
	Permission permission.Repository
	Campus     campus.Repository
	Program    program.Repository
	Teacher    teacher.Repository
	Student    student.Repository
	Calendar   calendar.Repository
	Class      class.Repository
	Timetable  timetable.Repository
	Assessment assessment.Repository
	Grade      grade.Repository
	Knowledge  knowledge.Repository
}

// MemoryRepositories returns repositories over a fresh in-memory database.
func MemoryRepositories() *Repositories {
	r := dummydb.NewRepositories(dummydb.Open())
	return &Repositories{
		User:       r.User,
		Permission: r.Permission,
		Campus:     r.Campus,
		Program:    r.Program,
		Teacher:    r.Teacher,
		Student:    r.Student,
		Calendar:   r.Calendar,
		Class:      r.Class,
		Timetable:  r.Timetable,
		Assessment: r.Assessment,
		Grade:      r.Grade,
		Knowledge:  r.Knowledge,
	}
}

// OpenRepositories sets up the configured storage engine. For postgres, the database is created when
// missing and migrated before use. The returned func releases the storage.
func OpenRepositories(ctx context.Context, conf *core.Config, logger core.Logger) (*Repositories, func() error, error) {
	switch conf.Database.Engine {
	case EngineMemory:
		logger.Warn("using the in-memory storage engine: data is lost on exit")
		return MemoryRepositories(), func() error { return nil }, nil
	case EnginePostgres:
	default:
		return nil, nil, errors.Errorf("unknown database engine %q", conf.Database.Engine)
	}

	db, err := OpenDatabase(ctx, conf, logger)
	if err != nil {
		return nil, nil, err
	}
	if err = database.Migrate(ctx, db.DB); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return SQLRepositories(db), db.Close, nil
}

// OpenDatabase creates the postgres database when missing and connects to it, without migrating.
func OpenDatabase(ctx context.Context, conf *core.Config, logger core.Logger) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, errors.Wrap(err, "creating database")
	}
	db, err := database.Open(ctx, conf)
	if err != nil {
		return nil, err
	}
	logger.Info("database ready", map[string]interface{}{"host": conf.Database.Address(), "name": conf.Database.Name})
	return db, nil
}

// SQLRepositories returns repositories over a postgres connection.
func SQLRepositories(db *sqlx.DB) *Repositories {
	r := sqlxrepos.NewRepositories(db)
	return &Repositories{
		User:       r.User,
		Permission: r.Permission,
		Campus:     r.Campus,
		Program:    r.Program,
		Teacher:    r.Teacher,
		Student:    r.Student,
		Calendar:   r.Calendar,
		Class:      r.Class,
		Timetable:  r.Timetable,
		Assessment: r.Assessment,
		Grade:      r.Grade,
		Knowledge:  r.Knowledge,
	}
}
