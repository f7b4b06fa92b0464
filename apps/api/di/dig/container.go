package dig_container

import (
	"context"
	"log"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/dig"

	echoapi "github.com/academia-hq/academia/apps/api/echo"
	"github.com/academia-hq/academia/apps/shared"
	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/knowledge"
	blobsvc "github.com/academia-hq/academia/services/blob"
	logsvc "github.com/academia-hq/academia/services/logger"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// StorageCloser releases the database once the app stops.
type StorageCloser func() error

func newLogger(root *logsvc.RollbarLogger) core.Logger {
	return root.Named("API")
}

func newDBLogger(root *logsvc.RollbarLogger) core.Logger {
	return root.Named("DB")
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) (*shared.Repositories, StorageCloser, error) {
	repos, closer, err := shared.OpenRepositories(context.Background(), conf, loggerParam.Logger)
	if err != nil {
		return nil, nil, errors.Wrap(err, "setting up storage")
	}
	return repos, closer, nil
}

func newBlobStore(conf *core.Config) (knowledge.BlobStore, error) {
	return blobsvc.NewStore(context.Background(), conf)
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newRegisterer(reg *prometheus.Registry) prometheus.Registerer {
	return reg
}

type servicesParam struct {
	dig.In

	Conf     *core.Config
	Logger   core.Logger
	Validate *validator.Validate
	Repos    *shared.Repositories
	MailSvc  core.EmailService
	Blobs    knowledge.BlobStore
	Registry prometheus.Registerer
}

func newServices(p servicesParam) (*shared.Services, error) {
	return shared.NewServices(shared.ServicesDeps{
		Conf:     p.Conf,
		Logger:   p.Logger,
		Validate: p.Validate,
		Repos:    p.Repos,
		MailSvc:  p.MailSvc,
		Blobs:    p.Blobs,
		Registry: p.Registry,
	})
}

func newValidator() (*validator.Validate, ut.Translator) {
	return shared.NewValidator()
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(shared.NewLogger))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(newBlobStore))
	must(c.Provide(shared.NewEmailService))
	must(c.Provide(newValidator))
	must(c.Provide(newRegistry))
	must(c.Provide(newRegisterer))
	must(c.Provide(newServices))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
