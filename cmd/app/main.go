package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/atvirokodosprendimai/gmpledger/internal/app"
	"github.com/atvirokodosprendimai/gmpledger/internal/config"
	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"github.com/atvirokodosprendimai/gmpledger/internal/logger"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func main() {
	cmd := &cli.Command{
		Name:  "gmpledger",
		Usage: "Audit-trailed GMP record store with electronic signatures",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Sources: cli.EnvVars("GMP_CONFIG"),
				Usage:   "Path to a YAML/TOML/JSON config file",
			},
			&cli.StringFlag{
				Name:  "db-path",
				Usage: "SQLite file path (overrides database.path)",
			},
		},
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the HTTP API and outbox dispatcher",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "HTTP listen address (overrides server.addr)"},
				},
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "Apply database migrations and exit",
				Action: migrate,
			},
			{
				Name:   "verify",
				Usage:  "Check audit coverage and signature hashes",
				Action: verify,
			},
			{
				Name:  "user",
				Usage: "Manage signers",
				Commands: []*cli.Command{
					{
						Name:  "add",
						Usage: "Create a user with an API key",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "username", Required: true},
							&cli.StringFlag{Name: "full-name", Required: true},
							&cli.StringFlag{Name: "api-key", Usage: "Generated when empty"},
						},
						Action: addUser,
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(c *cli.Command) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return config.Config{}, nil, err
	}
	if p := c.String("db-path"); p != "" {
		cfg.Database.Path = p
	}
	lg, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return config.Config{}, nil, err
	}
	zap.ReplaceGlobals(lg)
	return cfg, lg, nil
}

func serve(ctx context.Context, c *cli.Command) error {
	cfg, lg, err := loadConfig(c)
	if err != nil {
		return err
	}
	defer func() { _ = lg.Sync() }()
	if addr := c.String("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			lg.Error("close resources", zap.Error(closeErr))
		}
	}()
	return a.Serve(ctx, cfg.Server.Addr)
}

func migrate(ctx context.Context, c *cli.Command) error {
	cfg, lg, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := app.OpenDatabase(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := app.Migrate(ctx, db); err != nil {
		return err
	}
	lg.Info("migrations applied", zap.String("dialect", db.Dialect()))
	return nil
}

func verify(ctx context.Context, c *cli.Command) error {
	cfg, lg, err := loadConfig(c)
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.Integrity.Verify(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if !report.Clean() {
		return cli.Exit(fmt.Sprintf("integrity check found %d issue(s)", len(report.Issues)), 2)
	}
	return nil
}

func addUser(ctx context.Context, c *cli.Command) error {
	cfg, lg, err := loadConfig(c)
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer a.Close()

	user, token, err := a.Users.Create(ctx, c.String("username"), c.String("full-name"), c.String("api-key"),
		domain.SystemActor, domain.Origin{Device: "cli"})
	if err != nil {
		return err
	}
	fmt.Printf("user %d (%s) created\napi key: %s\n", user.ID, user.Username, token)
	return nil
}
