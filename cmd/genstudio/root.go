package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"genstudio/config"
	"genstudio/internal/app"
	"genstudio/internal/logging"
)

// shutdownTimeout bounds App.Shutdown for both the server and one-shot commands.
const shutdownTimeout = 30 * time.Second

// cliContext carries global flags and the loaded configuration to subcommands.
type cliContext struct {
	configPath string
	logFormat  string
	logLevel   string
	jsonOutput bool

	cfg *config.Config

	out    io.Writer
	errOut io.Writer

	// newApp is swapped in tests.
	newApp func(ctx context.Context, cfg app.Config) (*app.App, error)
}

func rootCommand(cli *cliContext) *cobra.Command {
	if cli.newApp == nil {
		cli.newApp = app.New
	}

	rootCmd := &cobra.Command{
		Use:           "genstudio",
		Short:         "Image generation with a local cache and history",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(cli.out)
	rootCmd.SetErr(cli.errOut)

	rootCmd.PersistentFlags().StringVarP(&cli.configPath, "config", "c", "", "Path to config.yaml (default: ./config.yaml or ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&cli.logFormat, "log-format", "", "Log format: json, pretty, auto")
	rootCmd.PersistentFlags().StringVar(&cli.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&cli.jsonOutput, "json", false, "Print results as JSON")

	rootCmd.AddCommand(
		serveCommand(cli),
		generateCommand(cli),
		historyCommand(cli),
		cacheCommand(cli),
		configCommand(cli),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return cli.initialize()
	}

	return rootCmd
}

// initialize loads configuration and installs the default logger.
func (cli *cliContext) initialize() error {
	cfg, err := config.Load(cli.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cli.logFormat != "" {
		cfg.Logging.Format = cli.logFormat
	}
	if cli.logLevel != "" {
		cfg.Logging.Level = cli.logLevel
	}
	cli.cfg = cfg

	slog.SetDefault(logging.New(cli.errOut, logging.Options{
		Format: cfg.Logging.Format,
		Level:  cfg.Logging.Level,
	}))
	return nil
}

// withApp builds the application, runs fn and shuts the application down.
func (cli *cliContext) withApp(ctx context.Context, fn func(*app.App) error) error {
	a, err := cli.newApp(ctx, app.Config{AppConfig: cli.cfg})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := a.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()
	return fn(a)
}

// printJSON writes v as indented JSON.
func (cli *cliContext) printJSON(v any) error {
	enc := json.NewEncoder(cli.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
