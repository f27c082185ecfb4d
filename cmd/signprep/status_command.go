package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"signprep/internal/config"
	"signprep/internal/frames"
	"signprep/internal/history"
	"signprep/internal/keypoints"
	"signprep/internal/preflight"
)

type checkView struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

type toolView struct {
	Name      string `json:"name"`
	Command   string `json:"command"`
	Available bool   `json:"available"`
	Optional  bool   `json:"optional"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

type datasetView struct {
	Videos        int `json:"videos"`
	FrameDirs     int `json:"frame_dirs"`
	KeypointFiles int `json:"keypoint_files"`
}

type runView struct {
	ID        string    `json:"id"`
	Stage     string    `json:"stage"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration,omitempty"`
	Items     int       `json:"items"`
	Summary   string    `json:"summary,omitempty"`
	Error     string    `json:"error,omitempty"`
}

type statusReport struct {
	Checks  []checkView `json:"checks"`
	Tools   []toolView  `json:"tools"`
	Ready   bool        `json:"ready"`
	Dataset datasetView `json:"dataset"`
	Runs    []runView   `json:"recent_runs"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var runLimit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show dependency, directory and dataset status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := buildStatusReport(cmd.Context(), cfg, runLimit)
			if jsonOutput {
				return writeJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			colorize := isTerminal(out)

			checkLines := make([]string, 0, len(report.Checks))
			for _, check := range report.Checks {
				kind := statusOK
				if !check.Passed {
					kind = statusWarn
				}
				checkLines = append(checkLines, renderStatusLine(check.Name, kind, check.Detail, colorize))
			}
			writeSection(out, "System Checks", checkLines, colorize)
			writeSection(out, "Dependencies", toolLines(report.Tools, report.Ready, colorize), colorize)
			writeSection(out, "Dataset", []string{
				renderStatusLine("Videos", statusInfo, strconv.Itoa(report.Dataset.Videos), colorize),
				renderStatusLine("Frame directories", statusInfo, strconv.Itoa(report.Dataset.FrameDirs), colorize),
				renderStatusLine("Keypoint files", statusInfo, strconv.Itoa(report.Dataset.KeypointFiles), colorize),
			}, colorize)

			for _, line := range renderSectionHeader("Recent Runs", colorize) {
				fmt.Fprintln(out, line)
			}
			if len(report.Runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			fmt.Fprint(out, renderTable(runHeaders, runRows(report.Runs), runAligns))
			return nil
		},
	}

	addJSONFlag(cmd, &jsonOutput)
	cmd.Flags().IntVar(&runLimit, "runs", 5, "Number of recent runs to show")
	return cmd
}

func buildStatusReport(ctx context.Context, cfg *config.Config, runLimit int) statusReport {
	if ctx == nil {
		ctx = context.Background()
	}
	var report statusReport
	for _, result := range preflight.RunAll(ctx, cfg) {
		report.Checks = append(report.Checks, checkView{Name: result.Name, Passed: result.Passed, Detail: result.Detail})
	}

	tools := preflight.CollectToolStatus(ctx, cfg)
	report.Ready = preflight.Ready(tools)
	for _, tool := range tools {
		report.Tools = append(report.Tools, toolView{
			Name:      tool.Name,
			Command:   tool.Command,
			Available: tool.Available,
			Optional:  tool.Optional,
			Path:      tool.Path,
			Version:   tool.Version,
			Detail:    tool.Detail,
		})
	}

	if videos, err := frames.Discover(cfg.Paths.VideosDir); err == nil {
		report.Dataset.Videos = len(videos)
	}
	if dirs, err := keypoints.DiscoverFrameDirs(cfg.Paths.FramesDir); err == nil {
		report.Dataset.FrameDirs = len(dirs)
	}
	if matches, err := filepath.Glob(filepath.Join(cfg.Paths.KeypointsDir, "*", "*", keypoints.NPYFile)); err == nil {
		report.Dataset.KeypointFiles = len(matches)
	}

	if store, err := history.Open(cfg); err == nil {
		defer store.Close()
		if runs, err := store.Recent(ctx, runLimit); err == nil {
			report.Runs = runViews(runs)
		}
	}
	return report
}

func toolLines(tools []toolView, ready bool, colorize bool) []string {
	lines := make([]string, 0, len(tools)+1)
	if ready {
		lines = append(lines, renderStatusLine("Summary", statusOK, "All required tools available", colorize))
	} else {
		lines = append(lines, renderStatusLine("Summary", statusError, "Required tools missing", colorize))
	}
	for _, tool := range tools {
		if tool.Available {
			message := "Ready"
			if tool.Version != "" {
				message = fmt.Sprintf("Ready (%s %s)", tool.Path, tool.Version)
			} else if tool.Path != "" {
				message = fmt.Sprintf("Ready (%s)", tool.Path)
			}
			lines = append(lines, renderStatusLine(tool.Name, statusOK, message, colorize))
			continue
		}
		kind := statusError
		if tool.Optional {
			kind = statusWarn
		}
		detail := tool.Detail
		if detail == "" {
			detail = "not available"
		}
		lines = append(lines, renderStatusLine(tool.Name, kind, detail, colorize))
	}
	return lines
}

var (
	runHeaders = []string{"Run", "Stage", "Status", "Started", "Duration", "Items", "Summary"}
	runAligns  = []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft}
)

func runViews(runs []history.Run) []runView {
	views := make([]runView, 0, len(runs))
	for _, run := range runs {
		view := runView{
			ID:        run.ID,
			Stage:     run.Stage,
			Status:    string(run.Status),
			StartedAt: run.StartedAt,
			Items:     run.ItemCount,
			Summary:   run.Summary,
			Error:     run.ErrorMessage,
		}
		if run.FinishedAt != nil {
			view.Duration = run.Duration().Round(time.Millisecond).String()
		}
		views = append(views, view)
	}
	return views
}

func runRows(runs []runView) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		summary := run.Summary
		if run.Error != "" {
			summary = run.Error
		}
		rows = append(rows, []string{
			shortID(run.ID),
			run.Stage,
			run.Status,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Duration,
			strconv.Itoa(run.Items),
			summary,
		})
	}
	return rows
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
