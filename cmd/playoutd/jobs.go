package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nerrad567/playout-core/internal/audit"
	"github.com/nerrad567/playout-core/internal/infrastructure/database"
)

func jobsCmd(configPath func() string) *cobra.Command {
	var (
		filter audit.Filter
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List the job log, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(configPath(), true)
			if err != nil {
				return err
			}
			db, err := database.Open(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}

			res, err := audit.NewSQLiteRepository(db.DB).List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, res)
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tKIND\tPLAYLIST\tOUTCOME\tDURATION\tDETAIL")
			for _, e := range res.Entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.CreatedAt.Local().Format(time.DateTime),
					e.Kind,
					e.PlaylistID,
					outcomeLabel(e.Outcome),
					e.Duration.Round(time.Millisecond),
					detail(e),
				)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "%d of %d\n", len(res.Entries), res.Total)
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.Kind, "kind", "", "job kind (take, activate, import, ...)")
	cmd.Flags().StringVar(&filter.PlaylistID, "playlist", "", "playlist id")
	cmd.Flags().StringVar((*string)(&filter.Outcome), "outcome", "", "ok, user_error or failed")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "maximum entries")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "entries to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	return cmd
}

func outcomeLabel(o audit.Outcome) string {
	switch o {
	case audit.OutcomeOK:
		return color.New(color.FgGreen).Sprint(string(o))
	case audit.OutcomeUserError:
		return color.New(color.FgYellow).Sprint(string(o))
	default:
		return color.New(color.FgRed).Sprint(string(o))
	}
}

func detail(e audit.Entry) string {
	if e.ErrorCode != "" {
		return e.ErrorCode + ": " + e.Message
	}
	return e.Message
}
