package main

import (
	"github.com/spf13/cobra"
)

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run a goose command (up, up-to, down, down-to, redo, reset, status, version) on the database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cli.migrator == nil {
				return errNoDatabase
			}
			return cli.migrator.Run(cmd.Context(), cli.db, args[0], args[1:]...)
		},
	}
}
