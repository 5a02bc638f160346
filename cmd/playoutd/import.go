package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nerrad567/playout-core/internal/ingest"
	"github.com/nerrad567/playout-core/internal/playout"
)

func importCmd(configPath func() string) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import YAML running orders into the document store",
		Long: `Import one or more running orders. Each file replaces the stored
contents of its rundown; parts, segments and pieces missing from the file
are removed. A rundown cannot be moved to another playlist by re-import.

Locks are per process. While a server is running, import through
POST /api/v1/rundowns instead so the import is serialised with playout jobs.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orders := make([]*ingest.RunningOrder, 0, len(args))
			for _, path := range args {
				ro, err := ingest.ParseFile(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				orders = append(orders, ro)
			}

			out := cmd.OutOrStdout()
			if dryRun {
				for i, ro := range orders {
					fmt.Fprintf(out, "%s: rundown %s for playlist %s is valid\n", args[i], ro.Rundown.ID, ro.Playlist.ID)
				}
				return nil
			}

			cfg, log, err := loadConfig(configPath(), true)
			if err != nil {
				return err
			}
			c, err := openCore(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer c.Close()

			runner := c.newRunner(playout.Deps{}, nil)
			for i, ro := range orders {
				res, err := runner.ImportRundown(cmd.Context(), ro)
				if err != nil {
					return fmt.Errorf("%s: %w", args[i], err)
				}
				verb := "updated"
				if res.PlaylistCreated {
					verb = "created"
				}
				fmt.Fprintf(out, "%s rundown %s into playlist %s (%s): %d segments, %d parts, %d pieces, %d removed\n",
					color.New(color.FgGreen).Sprint("imported"),
					res.RundownID, res.PlaylistID, verb,
					res.Segments, res.Parts, res.Pieces, res.Removed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the files without writing")

	return cmd
}
