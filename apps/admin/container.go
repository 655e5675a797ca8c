package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/ledger"
	"github.com/trezcool/bursar/services/email"
	"github.com/trezcool/bursar/services/logger"
	"github.com/trezcool/bursar/storage/database"
	"github.com/trezcool/bursar/storage/database/sqlx"
)

func newLogger(conf *core.Config) *logsvc.RollbarLogger {
	std := log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(std, conf)
}

func newDB(conf *core.Config) (*sqlx.DB, error) {
	db, err := database.OpenX(conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	return db, nil
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// newContainer provides every dependency of the admin commands.
func newContainer() (*dig.Container, error) {
	c := dig.New()

	providers := []struct {
		constructor interface{}
		opts        []dig.ProvideOption
	}{
		{constructor: core.NewConfig},
		{constructor: newLogger},
		{constructor: func(l *logsvc.RollbarLogger) core.Logger { return l }},
		{constructor: newDB},
		{constructor: newEmailService},
		{constructor: func(db *sqlx.DB) ledger.Repository { return sqlxrepos.NewLedgerRepository(db) }},
		{constructor: ledger.NewService},
	}
	for _, p := range providers {
		if err := c.Provide(p.constructor, p.opts...); err != nil {
			return nil, errors.Wrap(err, "failed to provide dependency")
		}
	}
	return c, nil
}
