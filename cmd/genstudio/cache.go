package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"genstudio/internal/app"
)

func cacheCommand(cli *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the image cache",
	}

	cmd.AddCommand(
		cacheStatsCommand(cli),
		cacheCleanupCommand(cli),
		cacheClearCommand(cli),
		cacheConfigCommand(cli),
	)
	return cmd
}

func cacheStatsCommand(cli *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show image count and total size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withApp(cmd.Context(), func(a *app.App) error {
				stats := a.Images().Stats(cmd.Context())
				if cli.jsonOutput {
					return cli.printJSON(stats)
				}
				limits := a.CacheConfig().Get(cmd.Context())
				return renderTable(cli.out, []string{"", "USAGE", "LIMIT"}, [][]string{
					{"images", fmt.Sprintf("%d", stats.Count), fmt.Sprintf("%d", limits.MaxCount)},
					{"size", formatBytes(stats.TotalSizeBytes), formatBytes(limits.MaxSizeBytes)},
					{"oldest", stats.OldestCreatedAt.Local().Format(time.DateTime), limits.MaxAge().String()},
				})
			})
		},
	}
}

func cacheCleanupCommand(cli *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Evict images that exceed the cache limits now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withApp(cmd.Context(), func(a *app.App) error {
				evicted, err := a.Evictor().Run(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cli.out, "evicted %d image(s)\n", evicted)
				return nil
			})
		},
	}
}

func cacheClearCommand(cli *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached image (history records are kept)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withApp(cmd.Context(), func(a *app.App) error {
				if !a.Images().Clear(cmd.Context()) {
					return fmt.Errorf("failed to clear image cache")
				}
				fmt.Fprintln(cli.out, "image cache cleared")
				return nil
			})
		},
	}
}

func cacheConfigCommand(cli *cliContext) *cobra.Command {
	var (
		maxAge   time.Duration
		maxCount int
		maxSize  int64
		reset    bool
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the eviction limits",
		Long: `Show the eviction limits, or change them with --max-age, --max-count and --max-size.
Changing a limit runs an eviction pass immediately.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withApp(cmd.Context(), func(a *app.App) error {
				ctx := cmd.Context()
				manager := a.CacheConfig()
				cfg := manager.Get(ctx)

				changed := false
				if reset {
					var err error
					if cfg, err = manager.Reset(ctx); err != nil {
						return err
					}
					changed = true
				}
				if cmd.Flags().Changed("max-age") {
					cfg.MaxAgeMs = maxAge.Milliseconds()
					changed = true
				}
				if cmd.Flags().Changed("max-count") {
					cfg.MaxCount = maxCount
					changed = true
				}
				if cmd.Flags().Changed("max-size") {
					cfg.MaxSizeBytes = maxSize
					changed = true
				}

				if changed {
					if err := cfg.Validate(); err != nil {
						return err
					}
					if err := manager.Set(ctx, cfg); err != nil {
						return err
					}
					evicted, err := a.Evictor().Run(ctx)
					if err != nil {
						return err
					}
					if !cli.jsonOutput {
						fmt.Fprintf(cli.out, "saved; evicted %d image(s)\n", evicted)
					}
				}

				if cli.jsonOutput {
					return cli.printJSON(cfg)
				}
				fmt.Fprintf(cli.out, "max age:   %s\nmax count: %d\nmax size:  %s\n",
					cfg.MaxAge(), cfg.MaxCount, formatBytes(cfg.MaxSizeBytes))
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "Maximum image age, e.g. 168h")
	cmd.Flags().IntVar(&maxCount, "max-count", 0, "Maximum number of cached images")
	cmd.Flags().Int64Var(&maxSize, "max-size", 0, "Maximum total size in bytes")
	cmd.Flags().BoolVar(&reset, "reset", false, "Restore the default limits first")
	return cmd
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
