package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"signprep/internal/history"
)

type itemView struct {
	Key     string `json:"key"`
	Outcome string `json:"outcome"`
	Count   int    `json:"count"`
	Detail  string `json:"detail,omitempty"`
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded stage runs or show the items of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				runs, err := store.Recent(cmd.Context(), limit)
				if err != nil {
					return err
				}
				views := runViews(runs)
				if jsonOutput {
					return writeJSON(cmd, views)
				}
				if len(views) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				fmt.Fprint(out, renderTable(runHeaders, runRows(views), runAligns))
				return nil
			}

			run, err := findRun(cmd, store, args[0])
			if err != nil {
				return err
			}
			items, err := store.Items(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			itemViews := make([]itemView, 0, len(items))
			for _, item := range items {
				itemViews = append(itemViews, itemView{Key: item.Key, Outcome: item.Outcome, Count: item.Count, Detail: item.Detail})
			}
			if jsonOutput {
				return writeJSON(cmd, struct {
					Run   runView    `json:"run"`
					Items []itemView `json:"items"`
				}{Run: runViews([]history.Run{*run})[0], Items: itemViews})
			}

			fmt.Fprintf(out, "Run %s (%s, %s)\n", run.ID, run.Stage, run.Status)
			if run.Summary != "" {
				fmt.Fprintln(out, run.Summary)
			}
			if run.ErrorMessage != "" {
				fmt.Fprintf(out, "Error: %s\n", run.ErrorMessage)
			}
			if len(itemViews) == 0 {
				fmt.Fprintln(out, "No items recorded")
				return nil
			}
			rows := make([][]string, 0, len(itemViews))
			for _, item := range itemViews {
				rows = append(rows, []string{item.Key, item.Outcome, strconv.Itoa(item.Count), item.Detail})
			}
			fmt.Fprint(out, renderTable([]string{"Item", "Outcome", "Count", "Detail"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
			return nil
		},
	}

	addJSONFlag(cmd, &jsonOutput)
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list (0 for all)")
	return cmd
}

// findRun resolves a full run id or a unique prefix of one.
func findRun(cmd *cobra.Command, store *history.Store, idOrPrefix string) (*history.Run, error) {
	if run, err := store.Get(cmd.Context(), idOrPrefix); err == nil {
		return run, nil
	}
	runs, err := store.Recent(cmd.Context(), 0)
	if err != nil {
		return nil, err
	}
	var match *history.Run
	for i := range runs {
		if !strings.HasPrefix(runs[i].ID, idOrPrefix) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("run id prefix %q is ambiguous", idOrPrefix)
		}
		match = &runs[i]
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", history.ErrRunNotFound, idOrPrefix)
	}
	return match, nil
}
