package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"paginasamarelas/internal/util"
	"paginasamarelas/pkg/store"
	"paginasamarelas/services/api/internal/config"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "paginasctl",
		Usage: "Operational tasks for the Páginas Amarelas database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the API config file",
				Value:   config.ConfigPath,
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database URL (overrides the config file)",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "seed",
				Usage:  "Create a demo reader with sample books in every status",
				Action: seedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "username",
						Usage: "Demo reader username",
						Value: "leitor",
					},
					&cli.StringFlag{
						Name:  "password",
						Usage: "Demo reader password",
						Value: "senha123",
					},
				},
			},
			{
				Name:   "clean",
				Usage:  "Delete every book and then every user",
				Action: cleanCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Skip the confirmation check",
					},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	level := strings.ToLower(c.String("log-level"))
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", level)
	}
	util.InitLogger(level)
	return nil
}

// openStore resolves the database from --database-url or the config file.
func openStore(c *cli.Context) (store.Store, func(), error) {
	dsn := strings.TrimSpace(c.String("database-url"))
	if dsn == "" {
		cfg, err := config.Load(c.String("config"))
		if err != nil {
			return nil, nil, err
		}
		dsn = cfg.DatabaseURL
	}
	if strings.HasPrefix(dsn, "memory:") {
		return store.NewMemoryStore(), func() {}, nil
	}
	st, err := store.NewGormStore(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return st, func() { _ = st.Close() }, nil
}

func seedCommand(c *cli.Context) error {
	st, closeStore, err := openStore(c)
	if err != nil {
		return err
	}
	defer closeStore()

	report, err := seed(c.Context, st, seedOptions{
		Username: c.String("username"),
		Password: c.String("password"),
	}, rand.IntN)
	if err != nil {
		return err
	}
	printSeedReport(c.App.Writer, report)
	return nil
}

func cleanCommand(c *cli.Context) error {
	if !c.Bool("yes") {
		return fmt.Errorf("refusing to delete all data without --yes")
	}
	st, closeStore, err := openStore(c)
	if err != nil {
		return err
	}
	defer closeStore()
	return clean(c.Context, st, c.App.Writer)
}

func clean(ctx context.Context, st store.Store, out io.Writer) error {
	books, users, err := st.Purge(ctx)
	if err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	slog.Info("database cleaned", "books", books, "users", users)
	fmt.Fprintf(out, "%d livros deletados\n%d usuários deletados\n", books, users)
	return nil
}
