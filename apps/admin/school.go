package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/academia-hq/academia/core/class"
)

func (cli *commandLine) seedPermissionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seedpermissions",
		Short: "Create the default permission templates that are missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := cli.svcs.Permission.EnsureDefaults(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d permission template(s) created\n", n)
			return nil
		},
	}
}

func (cli *commandLine) syncSubjectsCmd() *cobra.Command {
	var programID, classID string
	cmd := &cobra.Command{
		Use:   "syncsubjects",
		Short: "Align class subjects with their program's subjects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var results []class.SyncResult
			switch {
			case programID != "" && classID != "":
				return fmt.Errorf("--program and --class are mutually exclusive")
			case classID != "":
				c, err := cli.svcs.Class.Get(ctx, classID)
				if err != nil {
					return err
				}
				res, err := cli.svcs.Class.SyncSubjects(ctx, c)
				if err != nil {
					return err
				}
				results = append(results, res)
			case programID != "":
				res, err := cli.svcs.Class.SyncProgram(ctx, programID)
				if err != nil {
					return err
				}
				results = res
			default:
				return fmt.Errorf("one of --program or --class is required")
			}

			out := cmd.OutOrStdout()
			for _, res := range results {
				printSync(out, res)
			}
			if len(results) == 0 {
				fmt.Fprintln(out, "no class to synchronize")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&programID, "program", "", "synchronize every class of the program")
	cmd.Flags().StringVar(&classID, "class", "", "synchronize a single class")
	return cmd
}

func printSync(w io.Writer, res class.SyncResult) {
	if !res.Changed() && len(res.Retained) == 0 {
		fmt.Fprintf(w, "%s: up to date\n", res.ClassID)
		return
	}
	fmt.Fprintf(w, "%s: added [%s] updated [%s] removed [%s] retained [%s]\n", res.ClassID,
		strings.Join(res.Added, " "), strings.Join(res.Updated, " "),
		strings.Join(res.Removed, " "), strings.Join(res.Retained, " "))
}
