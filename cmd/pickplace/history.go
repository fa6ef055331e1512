// History command: list recorded pick-and-place outcomes.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pickplace/pkg/types"
)

var (
	flagOutcome string
	flagLimit   int
	flagJSON    bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded pick-and-place outcomes, most recent first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		outcome := types.Outcome(flagOutcome)
		if outcome != "" && !outcome.Valid() {
			return userError(fmt.Errorf("%w: %q (want succeeded, failed or skipped)", types.ErrInvalidOutcome, flagOutcome))
		}

		dataDir, err := resolveDataDir()
		if err != nil {
			return sysError(fmt.Errorf("resolve data dir: %w", err))
		}
		jr, err := attachJournal(dataDir)
		if err != nil {
			return sysError(err)
		}
		defer jr.Detach()

		recs, err := jr.List(types.JournalFilter{Outcome: outcome, Limit: flagLimit})
		if err != nil {
			return sysError(err)
		}
		if flagJSON {
			return printHistoryJSON(cmd.OutOrStdout(), recs)
		}
		printHistory(cmd.OutOrStdout(), recs)
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVar(&flagOutcome, "outcome", "", "only show succeeded, failed or skipped tasks")
	historyCmd.Flags().IntVar(&flagLimit, "limit", 20, "maximum number of tasks (0 for all)")
	historyCmd.Flags().BoolVar(&flagJSON, "json", false, "output as JSON")
}

func printHistoryJSON(w io.Writer, recs []types.TaskRecord) error {
	if recs == nil {
		recs = []types.TaskRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(recs)
}

func printHistory(w io.Writer, recs []types.TaskRecord) {
	r := lipgloss.NewRenderer(w)
	header := r.NewStyle().Bold(true)
	dim := r.NewStyle().Foreground(lipgloss.Color("#7f849c"))
	outcomeStyle := map[types.Outcome]lipgloss.Style{
		types.OutcomeSucceeded: r.NewStyle().Foreground(lipgloss.Color("#a6e3a1")),
		types.OutcomeFailed:    r.NewStyle().Foreground(lipgloss.Color("#f38ba8")),
		types.OutcomeSkipped:   r.NewStyle().Foreground(lipgloss.Color("#fab387")),
	}

	if len(recs) == 0 {
		fmt.Fprintln(w, dim.Render("no tasks recorded"))
		return
	}
	fmt.Fprintln(w, header.Render(fmt.Sprintf("%-20s %-10s %-16s %-10s %s", "STARTED", "OUTCOME", "ITEM", "LOCATION", "STEP")))
	for _, rec := range recs {
		outcome := outcomeStyle[rec.Outcome].Render(fmt.Sprintf("%-10s", rec.Outcome))
		fmt.Fprintf(w, "%-20s %s %-16s %-10s %s\n",
			rec.StartedAt.Local().Format(time.DateTime), outcome, rec.Item, rec.Location, rec.Step)
		if rec.Error != "" {
			fmt.Fprintln(w, dim.Render("    "+rec.Error))
		}
	}
}
