package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/allisson/docencrypt/cmd/app/commands"
	"github.com/allisson/docencrypt/internal/app"
	"github.com/allisson/docencrypt/internal/config"
)

func documentFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "container",
			Aliases:  []string{"c"},
			Required: true,
			Usage:    "Container file (YAML, or JSON when it ends in .json) with rid, database_rid and client_encryption_policy",
		},
		&cli.StringFlag{
			Name:    "input",
			Aliases: []string{"in"},
			Usage:   "Input JSON file; reads stdin when omitted or '-'",
		},
	}
}

func getDocumentCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "encrypt",
			Usage: "Encrypt the policy paths of a JSON document",
			Flags: documentFlags(),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg, app.WithLogWriter(os.Stderr))
				defer func() { _ = container.Shutdown(ctx) }()

				useCase, err := container.EncryptionUseCase()
				if err != nil {
					return err
				}

				return commands.RunEncryptDocument(
					ctx,
					useCase,
					container.Logger(),
					commands.DefaultIO(),
					cmd.String("container"),
					cmd.String("input"),
				)
			},
		},
		{
			Name:  "decrypt",
			Usage: "Decrypt a JSON document or a query feed response",
			Flags: append(documentFlags(), &cli.BoolFlag{
				Name:  "feed",
				Value: false,
				Usage: "Treat input as a query feed response with a Documents array",
			}),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg, app.WithLogWriter(os.Stderr))
				defer func() { _ = container.Shutdown(ctx) }()

				useCase, err := container.EncryptionUseCase()
				if err != nil {
					return err
				}

				return commands.RunDecryptDocument(
					ctx,
					useCase,
					container.Logger(),
					commands.DefaultIO(),
					cmd.String("container"),
					cmd.String("input"),
					cmd.Bool("feed"),
				)
			},
		},
	}
}
