package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/ledger"
	"github.com/trezcool/bursar/services/logger"
	"github.com/trezcool/bursar/storage/database"
)

func main() {
	c, err := newContainer()
	if err != nil {
		log.Fatal(err)
	}

	var code int
	err = c.Invoke(func(
		conf *core.Config,
		logger *logsvc.RollbarLogger,
		db *sqlx.DB,
		mailSvc core.EmailService,
		ledgerSvc *ledger.Service,
	) {
		code = run(conf, logger, db, mailSvc, ledgerSvc)
	})
	if err != nil {
		log.Fatal(err)
	}
	os.Exit(code)
}

func run(conf *core.Config, logger *logsvc.RollbarLogger, db *sqlx.DB, mailSvc core.EmailService, ledgerSvc *ledger.Service) int {
	defer logger.Close()
	defer func() { _ = db.Close() }()

	// createdb runs before the app database exists
	if len(os.Args) < 2 || os.Args[1] != "createdb" {
		if err := database.Ping(db.DB); err != nil {
			logger.Error("pinging database", err)
			return 1
		}
	}
	if err := core.ParseEmailTemplates(logger, conf.Debug); err != nil {
		logger.Error("parsing email templates", err)
		return 1
	}

	// start CLI
	cli := commandLine{
		db:        db.DB,
		conf:      conf,
		ledgerSvc: ledgerSvc,
		out:       os.Stdout,
	}
	err := cli.run(os.Args)

	// let pending emails go out
	if w, ok := mailSvc.(interface{ Wait() }); ok {
		w.Wait()
	}

	if err != nil {
		if err != errHelp {
			logger.Error("error: "+err.Error(), err)
		}
		return 1
	}
	return 0
}
