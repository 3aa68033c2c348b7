package main

import (
	"github.com/trezcool/goose"

	"github.com/trezcool/cheo/fs"
)

var gooseRunFunc = goose.RunFS // mockable

func (cli *commandLine) migrate(args []string) error {
	store, err := cli.openStore()
	if err != nil {
		return err
	}
	if store.DB == nil {
		return errNoSQLDatabase
	}

	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], store.DB, appfs.FS, "migrations", arguments...)
}
