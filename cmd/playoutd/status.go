package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nerrad567/playout-core/internal/jobs"
	"github.com/nerrad567/playout-core/internal/model"
	"github.com/nerrad567/playout-core/internal/playout"
)

func statusCmd(configPath func() string) *cobra.Command {
	var (
		studioID string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "status [PLAYLIST]",
		Short: "Show the on-air state of a playlist, or list the studio's playlists",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				if studioID == "" {
					studioID = cfg.Studio.ID
				}
				pls, err := runner.StudioPlaylists(cmd.Context(), studioID)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(out, pls)
				}
				if len(pls) == 0 {
					fmt.Fprintf(out, "no playlists in studio %s\n", studioID)
				}
				for _, pl := range pls {
					fmt.Fprintf(out, "%-10s %s (%s)\n", stateLabel(pl), pl.Name, pl.ID)
				}
				return nil
			}

			st, err := runner.PlaylistStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(out, st)
			}
			printStatus(out, st)
			return nil
		},
	}

	cmd.Flags().StringVar(&studioID, "studio", "", "studio to list (default studio.id from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of text")

	return cmd
}

func stateLabel(pl model.RundownPlaylist) string {
	switch pl.State() {
	case "active":
		return color.New(color.FgRed, color.Bold).Sprint("ON AIR")
	case "rehearsal":
		return color.New(color.FgYellow).Sprint("REHEARSAL")
	default:
		return color.New(color.Faint).Sprint("inactive")
	}
}

func printStatus(out io.Writer, st jobs.Status) {
	pl := st.Playlist
	fmt.Fprintf(out, "%s (%s)  studio %s  %s\n", pl.Name, pl.ID, pl.StudioID, stateLabel(pl))

	printInstance(out, "previous", st.Previous)
	printInstance(out, "current", st.Current)
	printInstance(out, "next", st.Next)

	if st.QueuedSegment != nil {
		fmt.Fprintf(out, "  %-9s %s (%s)\n", "queued", st.QueuedSegment.Name, st.QueuedSegment.ID)
	}
	if pl.QuickLoop != nil {
		fmt.Fprintf(out, "  %-9s %s\n", "loop", color.New(color.FgCyan).Sprint("quick loop running"))
	}
}

func printInstance(out io.Writer, label string, pi *model.PartInstance) {
	if pi == nil {
		fmt.Fprintf(out, "  %-9s %s\n", label, color.New(color.Faint).Sprint("-"))
		return
	}
	title := pi.Part.Title
	if title == "" {
		title = pi.Part.ID
	}
	line := fmt.Sprintf("%s (%s, instance %s)", title, pi.Part.ID, pi.ID)
	if label == "current" {
		line = color.New(color.FgRed).Sprint(line)
	}
	if pi.Part.AutoNext {
		line += " " + color.New(color.FgCyan).Sprint("[autonext]")
	}
	fmt.Fprintf(out, "  %-9s %s\n", label, line)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
