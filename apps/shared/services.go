package shared

import (
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

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
)

// Services holds every domain service.
type Services struct {
	User       *user.Service
	Permission *permission.Service
	Campus     *campus.Service
	Program    *program.Service
	Teacher    *teacher.Service
	Student    *student.Service
	Calendar   *calendar.Service
	Class      *class.Service
	Timetable  *timetable.Service
	Assessment *assessment.Service
	Grade      *grade.Service
	Knowledge  *knowledge.Service
}

type ServicesDeps struct {
	Conf     *core.Config
	Logger   core.Logger
	Validate *validator.Validate
	Repos    *Repositories
	MailSvc  core.EmailService
	Blobs    knowledge.BlobStore
	Registry prometheus.Registerer
}

// NewServices builds the services in dependency order. Classes read academic years straight from the
// calendar repository since the calendar service itself looks classes up.
func NewServices(deps ServicesDeps) (*Services, error) {
	repos := deps.Repos
	svcs := new(Services)

	svcs.User = user.NewService(repos.User, deps.MailSvc, deps.Conf)
	perms, err := permission.NewService(repos.Permission, deps.Conf)
	if err != nil {
		return nil, errors.Wrap(err, "creating permission service")
	}
	svcs.Permission = perms

	svcs.Campus = campus.NewService(repos.Campus)
	svcs.Program = program.NewService(repos.Program, svcs.Campus)
	svcs.Teacher = teacher.NewService(repos.Teacher, svcs.Campus, svcs.User)
	svcs.Student = student.NewService(repos.Student, svcs.Campus, svcs.User)
	svcs.Class = class.NewService(
		repos.Class, svcs.Program, svcs.Campus, repos.Calendar, svcs.Teacher, svcs.Student, repos.Grade, deps.Logger,
	)
	svcs.Calendar = calendar.NewService(repos.Calendar, svcs.Campus, svcs.Class)
	svcs.Timetable = timetable.NewService(repos.Timetable, svcs.Class, svcs.Teacher)

	assessments, err := assessment.NewService(repos.Assessment, svcs.Class, deps.Validate, deps.Conf)
	if err != nil {
		return nil, errors.Wrap(err, "creating assessment service")
	}
	svcs.Assessment = assessments

	svcs.Grade = grade.NewService(repos.Grade, svcs.Class, svcs.Calendar, svcs.Assessment, deps.MailSvc, deps.Logger)
	svcs.Knowledge = knowledge.NewService(
		repos.Knowledge, deps.Blobs, deps.Conf, knowledge.NewMetrics(deps.Registry), deps.Logger,
	)
	return svcs, nil
}
