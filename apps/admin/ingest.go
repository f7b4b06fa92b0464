package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (cli *commandLine) ingestCmd() *cobra.Command {
	var campusID string
	cmd := &cobra.Command{
		Use:   "ingest PATH...",
		Short: "Upload and index documents; directories are walked recursively",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := expandPaths(args)
			if err != nil {
				return err
			}
			results, err := cli.svcs.Knowledge.IngestFiles(cmd.Context(), paths, campusID)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PATH\tDOCUMENT\tSTATUS")
			failed := 0
			for _, res := range results {
				status := res.Status
				switch {
				case res.Error != "":
					failed++
					status = "error: " + res.Error
				case res.Duplicate:
					status = "duplicate"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", res.Path, res.DocumentID, status)
			}
			if err = tw.Flush(); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d file(s) failed", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&campusID, "campus", "", "campus owning the documents (shared when empty)")
	return cmd
}

// expandPaths replaces directories by the regular files they contain.
func expandPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			// missing files are reported per file
			paths = append(paths, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return paths, nil
}
