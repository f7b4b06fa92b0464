package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/academia-hq/academia/apps/shared"
	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/user"
	"github.com/academia-hq/academia/storage/database"
	blobsvc "github.com/academia-hq/academia/services/blob"
)

var errNoDatabase = errors.New("migrations need the postgres engine")

type commandLine struct {
	conf         *core.Config
	logger       core.Logger
	validate     *validator.Validate
	translator   ut.Translator
	svcs         *shared.Services
	db           *sql.DB
	migrator     *database.Migrator
	readPassword func(fd int) ([]byte, error) // mockable
	closers      []func() error
}

func newCommandLine(conf *core.Config, logger core.Logger) *commandLine {
	return &commandLine{
		conf:         conf,
		logger:       logger,
		readPassword: term.ReadPassword,
	}
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Administration tasks for the academia backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cli.setup(cmd.Context(), cmd.Name() == "migrate")
		},
	}
	root.AddCommand(
		cli.migrateCmd(),
		cli.addUserCmd(),
		cli.resetPasswordCmd(),
		cli.seedPermissionsCmd(),
		cli.syncSubjectsCmd(),
		cli.ingestCmd(),
	)
	return root
}

// setup wires storage and services on first use. Pending migrations are applied
// unless the command manages migrations itself.
func (cli *commandLine) setup(ctx context.Context, migrating bool) error {
	if cli.svcs != nil {
		return nil
	}
	user.LoadCommonPasswords(cli.conf.WorkDir, cli.logger)
	cli.validate, cli.translator = shared.NewValidator()

	var repos *shared.Repositories
	switch cli.conf.Database.Engine {
	case shared.EnginePostgres:
		db, err := shared.OpenDatabase(ctx, cli.conf, cli.logger)
		if err != nil {
			return err
		}
		cli.closers = append(cli.closers, db.Close)
		cli.db = db.DB
		if cli.migrator, err = database.NewMigrator(nil); err != nil {
			return err
		}
		if !migrating {
			if err = cli.migrator.Run(ctx, cli.db, "up"); err != nil {
				return err
			}
		}
		repos = shared.SQLRepositories(db)
	default:
		r, closer, err := shared.OpenRepositories(ctx, cli.conf, cli.logger)
		if err != nil {
			return err
		}
		cli.closers = append(cli.closers, closer)
		repos = r
	}

	blobs, err := blobsvc.NewStore(ctx, cli.conf)
	if err != nil {
		return errors.Wrap(err, "opening blob store")
	}
	cli.svcs, err = shared.NewServices(shared.ServicesDeps{
		Conf:     cli.conf,
		Logger:   cli.logger,
		Validate: cli.validate,
		Repos:    repos,
		MailSvc:  shared.NewEmailService(cli.conf, cli.logger),
		Blobs:    blobs,
		Registry: prometheus.NewRegistry(),
	})
	return err
}

func (cli *commandLine) close() {
	for i := len(cli.closers) - 1; i >= 0; i-- {
		if err := cli.closers[i](); err != nil {
			cli.logger.Error("failed to release storage", err)
		}
	}
}

// promptPassword reads a password from the terminal, twice.
func (cli *commandLine) promptPassword(out io.Writer) (string, error) {
	read := func(label string) (string, error) {
		fmt.Fprint(out, label)
		pwd, err := cli.readPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(out)
		return string(pwd), err
	}

	pwd, err := read("Enter password: ")
	if err != nil {
		return "", err
	}
	if pwd == "" {
		return "", errors.New("password is required")
	}
	confirm, err := read("Confirm password: ")
	if err != nil {
		return "", err
	}
	if confirm != pwd {
		return "", errors.New("passwords do not match")
	}
	return pwd, nil
}

// describe flattens validation errors into a single line.
func (cli *commandLine) describe(err error) error {
	var msgs []string
	switch verr := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		for _, fe := range verr {
			msgs = append(msgs, fe.Field()+": "+fe.Translate(cli.translator))
		}
	case *core.ValidationError:
		for _, f := range verr.Fields {
			msgs = append(msgs, f.Field+": "+f.Error)
		}
	}
	if len(msgs) == 0 {
		return err
	}
	return errors.New(strings.Join(msgs, "; "))
}
