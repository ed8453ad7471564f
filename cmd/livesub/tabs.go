package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/livesub/internal/persistence"
	"github.com/MimeLyc/livesub/internal/session"
)

func newTabsCommand(ctx *commandContext) *cobra.Command {
	var prune bool

	cmd := &cobra.Command{
		Use:   "tabs",
		Short: "List the tab sessions stored in the data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := persistence.NewSQLiteStore(cfg.DBPath())
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if prune {
				ttl := time.Duration(cfg.Session.TTLHours) * time.Hour
				n, err := store.DeleteTabsUpdatedBefore(cmd.Context(), time.Now().Add(-ttl))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed %d sessions idle for more than %s\n", n, ttl)
			}

			tabs, err := store.ListTabs(cmd.Context())
			if err != nil {
				return err
			}
			if len(tabs) == 0 {
				fmt.Fprintln(out, "No stored tab sessions")
				return nil
			}
			fmt.Fprintln(out, renderTabs(tabs, time.Now(), isTerminal(out)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&prune, "prune", false, "Remove sessions idle longer than SESSION_TTL_HOURS first")
	return cmd
}

func renderTabs(tabs []session.Meta, now time.Time, rounded bool) string {
	rows := make([][]string, 0, len(tabs))
	for _, tab := range tabs {
		video := tab.VideoID
		if video == "" {
			video = "-"
		}
		rows = append(rows, []string{
			strconv.Itoa(tab.TabID),
			video,
			tab.TargetLanguage,
			strconv.Itoa(tab.LanguageVersion),
			truncate(tab.SubtitleURL, 48),
			now.Sub(tab.UpdatedAt).Round(time.Second).String(),
		})
	}
	return renderTable(
		[]string{"Tab", "Video", "Language", "Version", "Subtitle", "Idle"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignRight},
		rounded,
	)
}
