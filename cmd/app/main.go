package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/jotter/internal"
	pkgconfig "github.com/starford/jotter/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if dir := cmd.String("data"); dir != "" {
		cfg.Store.Path = dir
	}
	if cmd.String("password") != "" {
		cfg.Store.Encryption = true
	}
	if cmd.Bool("no-encryption") {
		cfg.Store.Encryption = false
	}
	return cfg, nil
}

func options(cmd *cli.Command, cfg *internal.Config) []internal.Option {
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithPassword(cmd.String("password")),
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := internal.Run(ctx, options(cmd, cfg)...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

// withRuntime opens the store for a one-shot command. Logs go to stderr so
// command output on stdout stays clean.
func withRuntime(ctx context.Context, cmd *cli.Command, fn func(context.Context, *internal.Runtime) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !cmd.Bool("verbose") {
		cfg.App.LogLevel = slog.LevelWarn
	}
	rt, err := internal.Open(ctx, append(options(cmd, cfg), internal.WithLogOutput(os.Stderr))...)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

func main() {
	cmd := &cli.Command{
		Name:    "jotter",
		Usage:   "Personal record store with tags, day stamps and optional encryption at rest",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "data",
				Usage:   "Data directory (overrides store.path)",
				Sources: cli.EnvVars("JOTTER_DATA"),
			},
			&cli.StringFlag{
				Name:    "password",
				Usage:   "Password for the encrypted store",
				Sources: cli.EnvVars("JOTTER_PASSWORD"),
			},
			&cli.BoolFlag{
				Name:  "no-encryption",
				Usage: "Open the store without encryption even if configured",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log at the configured level in one-shot commands instead of warn",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, the framed TCP ingress and the file watcher",
				Action: serve,
			},
			addCommand(),
			findCommand(),
			showCommand(),
			editCommand(),
			tagCommand(),
			untagCommand(),
			deleteCommand(),
			restoreCommand(),
			purgeCommand(),
			mcpCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
