package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"genstudio/config"
)

func configCommand(cli *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML (secrets redacted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := config.Dump(cli.cfg)
			if err != nil {
				return err
			}
			fmt.Fprint(cli.out, out)
			return nil
		},
	})
	return cmd
}
