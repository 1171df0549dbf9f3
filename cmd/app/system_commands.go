package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/docencrypt/cmd/app/commands"
	"github.com/allisson/docencrypt/internal/app"
	"github.com/allisson/docencrypt/internal/config"
)

func getCommands(version string) []*cli.Command {
	cmds := getSystemCommands(version)
	cmds = append(cmds, getKeyCommands()...)
	return append(cmds, getDocumentCommands()...)
}

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the HTTP API, the metrics listener and the DEK refresh loop",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
		{
			Name:  "migrate",
			Usage: "Create or drop the client encryption key schema",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "dir",
					Value:   "migrations",
					Usage:   "Directory holding the postgresql and mysql migration folders",
					Sources: cli.EnvVars("MIGRATIONS_DIR"),
				},
				&cli.BoolFlag{
					Name:  "down",
					Usage: "Revert every applied migration",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				if err := cfg.Validate(); err != nil {
					return err
				}
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunMigrations(
					container.Logger(),
					cfg.DBDriver,
					cfg.DBConnectionString,
					commands.MigrationOptions{Dir: cmd.String("dir"), Down: cmd.Bool("down")},
				)
			},
		},
	}
}
