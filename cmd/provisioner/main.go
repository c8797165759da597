package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/stacksync/internal/common"
	"github.com/dmitrijs2005/stacksync/internal/flagx"
	"github.com/dmitrijs2005/stacksync/internal/manager"
	"github.com/dmitrijs2005/stacksync/internal/manager/cli"
	"github.com/dmitrijs2005/stacksync/internal/manager/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx := context.Background()

	cmd, args := flagx.SplitCommand(os.Args[1:], cli.Commands)
	if cmd == "" {
		cli.Usage(os.Stderr)
		return 2
	}

	cfg := config.LoadConfig()

	if cfg.AdminPassword == "" && cli.StdinIsTerminal() {
		pw, err := cli.GetPassword(os.Stderr, "identity admin password")
		if err != nil {
			log.Printf("%v", err)
			return 1
		}
		cfg.AdminPassword = string(pw)
		common.WipeByteArray(pw)
	}

	app, err := manager.NewApp(ctx, cfg, os.Stderr)
	if err != nil {
		log.Printf("%v", err)
		return cli.ExitCode(err)
	}
	defer app.Close()

	if err := app.Run(ctx, cmd, args, os.Stdout); err != nil {
		log.Printf("%v", err)
		return cli.ExitCode(err)
	}
	return 0
}
