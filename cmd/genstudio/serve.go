package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"genstudio/internal/app"
)

func serveCommand(cli *cliContext) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				cli.cfg.Server.Port = port
			}
			return serve(cmd.Context(), cli)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Listen port (overrides PORT)")
	return cmd
}

func serve(ctx context.Context, cli *cliContext) error {
	a, err := cli.newApp(ctx, app.Config{AppConfig: cli.cfg, Sweep: true})
	if err != nil {
		return err
	}

	// Handle graceful shutdown
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-sigCtx.Done()

		slog.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := a.Shutdown(shutdownCtx); err != nil {
			slog.Error("application shutdown error", "error", err)
		}
	}()

	err = a.Start(":" + cli.cfg.Server.Port)
	if err != nil {
		stop()
		<-done
		return err
	}
	<-done
	return nil
}
