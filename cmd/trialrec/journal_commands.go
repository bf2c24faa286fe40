package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"trialrec/internal/journal"
)

func newJournalCommand(ctx *commandContext) *cobra.Command {
	var (
		sessionID  string
		failedOnly bool
		limit      int
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List file command outcomes recorded by the I/O worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJournal(func(store *journal.Store) error {
				entries, err := store.List(cmd.Context(), journal.Filter{
					SessionID:  sessionID,
					FailedOnly: failedOnly,
					Limit:      limit,
				})
				if err != nil {
					return err
				}
				if asJSON {
					if entries == nil {
						entries = []journal.Entry{}
					}
					return writeJSON(cmd, entries)
				}

				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "No journal entries")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					rows = append(rows, []string{
						entry.SessionID,
						strconv.FormatInt(entry.Seq, 10),
						displayLabel(entry.Kind),
						displayLabel(string(entry.Status)),
						entry.Target,
						entry.Duration.String(),
						entry.ErrorMessage,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Session", "Seq", "Command", "Status", "Target", "Duration", "Error"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Only show this session")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Only show failed commands")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of entries (0 = all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Summarise journaled sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJournal(func(store *journal.Store) error {
				summaries, err := store.Sessions(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					if summaries == nil {
						summaries = []journal.SessionSummary{}
					}
					return writeJSON(cmd, summaries)
				}

				out := cmd.OutOrStdout()
				if len(summaries) == 0 {
					fmt.Fprintln(out, "No sessions recorded")
					return nil
				}
				rows := make([][]string, 0, len(summaries))
				for _, s := range summaries {
					rows = append(rows, []string{
						s.SessionID,
						strconv.Itoa(s.Commands),
						strconv.Itoa(s.Failed),
						s.FirstAt.Local().Format(time.DateTime),
						humanize.Time(s.LastAt),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Session", "Commands", "Failed", "Started", "Last Write"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
