package shared

import (
	"github.com/pkg/errors"

	"github.com/academia-hq/academia/core"
	emailsvc "github.com/academia-hq/academia/services/email"
	logsvc "github.com/academia-hq/academia/services/logger"
)

// NewLogger returns the root logger; components log through Named sub-loggers.
// Rollbar reporting is off in debug mode.
func NewLogger(conf *core.Config) (*logsvc.RollbarLogger, error) {
	zl, err := logsvc.NewZap(conf)
	if err != nil {
		return nil, errors.Wrap(err, "building zap logger")
	}
	logger := logsvc.NewRollbarLogger(zl, conf)
	logger.Enable(!conf.Debug)
	return logger, nil
}

func NewEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}
