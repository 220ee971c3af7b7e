package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "affiliate-blog",
		Usage: "Marketing blog and affiliate program API",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start the HTTP server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runServe(ctx)
				},
			},
			{
				Name:  "migrate",
				Usage: "Apply database migrations",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "down",
						Value: 0,
						Usage: "Roll back this many migrations instead of applying",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runMigrate(int(cmd.Int("down")))
				},
			},
			{
				Name:  "create-user",
				Usage: "Create an account and its profile",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "email",
						Aliases:  []string{"e"},
						Required: true,
						Usage:    "Account email",
					},
					&cli.StringFlag{
						Name:     "password",
						Aliases:  []string{"p"},
						Required: true,
						Usage:    "Account password",
					},
					&cli.BoolFlag{
						Name:  "admin",
						Value: false,
						Usage: "Grant the admin role",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runCreateUser(ctx, cmd.String("email"), cmd.String("password"), cmd.Bool("admin"))
				},
			},
			{
				Name:  "seed",
				Usage: "Load demo posts and affiliate programs into empty tables",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "email",
						Aliases:  []string{"e"},
						Required: true,
						Usage:    "Email of the account that owns the seeded rows",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runSeed(ctx, cmd.String("email"))
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}
