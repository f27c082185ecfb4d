package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"signprep/internal/keypoints"
	"signprep/internal/services"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var showAnomalies bool

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Check keypoint outputs against their frame directories",
		Long: "For every keypoint directory, confirms that keypoints.npy, keypoints.json and the\n" +
			"JPEG count agree, that undetected frames are all zero, and reports landmark values\n" +
			"outside their plausible range. Exits non-zero when any directory is inconsistent.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			reports, err := keypoints.Inspect(cfg.Paths.KeypointsDir, cfg.Paths.FramesDir)
			if err != nil {
				return err
			}

			failed := 0
			for _, report := range reports {
				if !report.OK() {
					failed++
				}
			}

			if jsonOutput {
				if err := writeJSON(cmd, reports); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				if len(reports) == 0 {
					fmt.Fprintf(out, "No keypoint directories under %s\n", cfg.Paths.KeypointsDir)
					return nil
				}
				rows := make([][]string, 0, len(reports))
				for _, report := range reports {
					status := "ok"
					if !report.OK() {
						status = "FAILED"
					}
					rows = append(rows, []string{
						report.Key,
						strconv.Itoa(report.NPYFrames),
						strconv.Itoa(report.JPEGFrames),
						strconv.Itoa(report.Detected),
						strconv.Itoa(len(report.Anomalies)),
						status,
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"Directory", "Frames", "JPEGs", "Detected", "Anomalies", "Status"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
				))
				for _, report := range reports {
					for _, problem := range report.Errors {
						fmt.Fprintf(out, "%s: %s\n", report.Key, problem)
					}
					if !showAnomalies {
						continue
					}
					for _, a := range report.Anomalies {
						fmt.Fprintf(out, "%s: frame %d %s.%s = %.3f\n", report.Key, a.FrameIndex, a.Landmark, a.Field, a.Value)
					}
				}
			}

			if failed > 0 {
				return services.Wrap(services.ErrValidation, services.StageKeypoints, "inspect",
					fmt.Sprintf("%d of %d directories inconsistent", failed, len(reports)), nil)
			}
			return nil
		},
	}

	addJSONFlag(cmd, &jsonOutput)
	cmd.Flags().BoolVar(&showAnomalies, "anomalies", false, "List every out-of-range landmark value")
	return cmd
}
