package main

import (
	"errors"
	"flag"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/maendeleo/core"
	"github.com/trezcool/maendeleo/core/milestone"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db           *sqlx.DB
	conf         *core.Config
	milestoneSvc *milestone.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate up|down|status [ARGS...] - run database migrations")
	fmt.Println("  seedtemplates                    - load the default milestone template catalog")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	seedTemplatesCmd := flag.NewFlagSet("seedtemplates", flag.ExitOnError)

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "seedtemplates":
		if err := seedTemplatesCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.seedTemplates()
	default:
		cli.printUsage()
		return errHelp
	}
}
