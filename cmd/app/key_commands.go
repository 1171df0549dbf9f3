package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/docencrypt/cmd/app/commands"
	"github.com/allisson/docencrypt/internal/app"
	"github.com/allisson/docencrypt/internal/config"
)

func kekFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "kek-uri",
			Aliases: []string{"k"},
			Usage:   "KEK keeper URL (e.g., awskms:///alias/my-kek); defaults to KMS_KEY_URI",
		},
		&cli.StringFlag{
			Name:  "kek-name",
			Usage: "Human friendly KEK name; defaults to the KEK URL",
		},
		&cli.StringFlag{
			Name:  "wrap-algorithm",
			Value: "RSA-OAEP",
			Usage: "Key wrap algorithm (RSA-OAEP or RSA-OAEP-256)",
		},
	}
}

func keyWrapFlags(cmd *cli.Command, cfg *config.Config) commands.KeyWrapFlags {
	kekURI := cmd.String("kek-uri")
	if kekURI == "" {
		kekURI = cfg.KMSKeyURI
	}
	return commands.KeyWrapFlags{
		KekURI:    kekURI,
		KekName:   cmd.String("kek-name"),
		Algorithm: cmd.String("wrap-algorithm"),
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "text",
		Usage:   "Output format: 'text' or 'json'",
	}
}

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "import-key",
			Usage: "Import a DEK already wrapped by the key custodian as a client encryption key",
			Flags: append([]cli.Flag{
				&cli.StringFlag{
					Name:     "id",
					Aliases:  []string{"i"},
					Required: true,
					Usage:    "Client encryption key ID",
				},
				&cli.StringFlag{
					Name:    "algorithm",
					Aliases: []string{"alg"},
					Value:   "aes-gcm",
					Usage:   "Encryption algorithm to use (aes-gcm or chacha20-poly1305)",
				},
				&cli.StringFlag{
					Name:     "wrapped-key",
					Aliases:  []string{"w"},
					Required: true,
					Usage:    "Base64 encoded wrapped DEK",
				},
				formatFlag(),
			}, kekFlags()...),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				keyUseCase, err := container.ClientEncryptionKeyUseCase()
				if err != nil {
					return err
				}

				return commands.RunImportKey(
					ctx,
					keyUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("id"),
					cmd.String("algorithm"),
					cmd.String("wrapped-key"),
					keyWrapFlags(cmd, cfg),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "rewrap-key",
			Usage: "Rewrap a client encryption key with another KEK",
			Flags: append([]cli.Flag{
				&cli.StringFlag{
					Name:     "id",
					Aliases:  []string{"i"},
					Required: true,
					Usage:    "Client encryption key ID",
				},
				formatFlag(),
			}, kekFlags()...),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				keyUseCase, err := container.ClientEncryptionKeyUseCase()
				if err != nil {
					return err
				}

				return commands.RunRewrapKey(
					ctx,
					keyUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("id"),
					keyWrapFlags(cmd, cfg),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "list-keys",
			Usage: "List client encryption keys",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  "offset",
					Value: 0,
					Usage: "Number of keys to skip",
				},
				&cli.IntFlag{
					Name:  "limit",
					Value: 50,
					Usage: "Maximum number of keys to list (1-1000)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				keyUseCase, err := container.ClientEncryptionKeyUseCase()
				if err != nil {
					return err
				}

				return commands.RunListKeys(
					ctx,
					keyUseCase,
					commands.DefaultIO().Writer,
					int(cmd.Int("offset")),
					int(cmd.Int("limit")),
					cmd.String("format"),
				)
			},
		},
	}
}
