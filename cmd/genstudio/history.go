package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"genstudio/internal/app"
	"genstudio/internal/gallery"
)

func historyCommand(cli *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse and manage generation history",
	}

	cmd.AddCommand(
		historyListCommand(cli),
		historySearchCommand(cli),
		historyDeleteCommand(cli),
		historyClearCommand(cli),
	)
	return cmd
}

func historyListCommand(cli *cliContext) *cobra.Command {
	var page, size int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List history, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withApp(cmd.Context(), func(a *app.App) error {
				result := a.Gallery().Page(cmd.Context(), page, size)
				if cli.jsonOutput {
					return cli.printJSON(result)
				}
				if err := cli.printRecords(result.Records); err != nil {
					return err
				}
				fmt.Fprintf(cli.out, "page %d, %d of %d record(s)", result.Page, len(result.Records), result.Total)
				if result.HasMore {
					fmt.Fprint(cli.out, ", more available")
				}
				fmt.Fprintln(cli.out)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number (1-based)")
	cmd.Flags().IntVar(&size, "size", 0, "Page size (default 20, max 100)")
	return cmd
}

func historySearchCommand(cli *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search prompts (case-insensitive substring)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return cli.withApp(cmd.Context(), func(a *app.App) error {
				records := a.Gallery().Search(cmd.Context(), query)
				if cli.jsonOutput {
					return cli.printJSON(records)
				}
				return cli.printRecords(records)
			})
		},
	}
}

func historyDeleteCommand(cli *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete records and their images",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withApp(cmd.Context(), func(a *app.App) error {
				deleted := a.Gallery().DeleteRecords(cmd.Context(), args)
				fmt.Fprintf(cli.out, "deleted %d of %d record(s)\n", deleted, len(args))
				if deleted < len(args) {
					return fmt.Errorf("%d record(s) could not be deleted", len(args)-deleted)
				}
				return nil
			})
		},
	}
}

func historyClearCommand(cli *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all history and cached images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withApp(cmd.Context(), func(a *app.App) error {
				if !a.Gallery().ClearAll(cmd.Context()) {
					return fmt.Errorf("failed to clear history")
				}
				fmt.Fprintln(cli.out, "history cleared")
				return nil
			})
		},
	}
}

func (cli *cliContext) printRecords(records []*gallery.ResolvedRecord) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.ID,
			r.Timestamp.Local().Format(time.DateTime),
			r.Model,
			fmt.Sprintf("%d/%d", len(r.Images), len(r.ImageIDs)),
			truncate(r.Prompt, 60),
		})
	}
	return renderTable(cli.out, []string{"ID", "TIME", "MODEL", "IMAGES", "PROMPT"}, rows)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
