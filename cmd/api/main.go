package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"github.com/vaidashi/backoffice-api/internal/config"
	"github.com/vaidashi/backoffice-api/internal/database"
	"github.com/vaidashi/backoffice-api/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:   "backoffice-api",
		Usage:  "Storefront back-office status service",
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, outbox processor and status event consumer",
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "Apply or roll back database migrations",
				Subcommands: []*cli.Command{
					{
						Name:   "up",
						Usage:  "Apply all pending migrations",
						Action: migrateUp,
					},
					{
						Name:  "down",
						Usage: "Roll back migrations",
						Flags: []cli.Flag{
							&cli.IntFlag{
								Name:  "steps",
								Usage: "Number of migrations to roll back",
								Value: 1,
							},
						},
						Action: migrateDown,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// bootstrap loads configuration and builds the logger every command needs
func bootstrap() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	l, err := logger.NewLogger(cfg.LogLevel, cfg.Env)
	if err != nil {
		return nil, nil, err
	}
	return cfg, l, nil
}

func migrateUp(c *cli.Context) error {
	cfg, l, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync(l)

	db, err := database.New(cfg, l)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.RunMigrations()
}

func migrateDown(c *cli.Context) error {
	cfg, l, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync(l)

	db, err := database.New(cfg, l)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.RollbackMigrations(c.Int("steps"))
}
