package main

import (
	"log"
	"os"

	"github.com/trezcool/cheo/core"
	"github.com/trezcool/cheo/services/email"
	"github.com/trezcool/cheo/services/logger"
)

var logger core.Logger

func main() {
	defer os.Exit(0)

	conf := core.NewConfig()

	// set up logger
	rollbarLogger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	defer rollbarLogger.Close()
	logger = rollbarLogger

	core.ParseEmailTemplates(logger)

	// start CLI
	cli := commandLine{
		conf:    conf,
		logger:  logger,
		mailSvc: emailsvc.NewService(logger, conf),
		out:     os.Stdout,
	}
	defer cli.close()

	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("error: "+err.Error(), err)
		}
		cli.close()
		rollbarLogger.Close()
		os.Exit(1)
	}
}
