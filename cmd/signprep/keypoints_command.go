package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"signprep/internal/history"
	"signprep/internal/keypoints"
	"signprep/internal/logging"
	"signprep/internal/pose"
	"signprep/internal/preflight"
	"signprep/internal/services"
)

func newKeypointsCommand(ctx *commandContext) *cobra.Command {
	var staticMode bool

	cmd := &cobra.Command{
		Use:   "keypoints",
		Short: "Extract 33 body landmarks per frame",
		Long: "Runs the pose model over every paths.frames_dir/<category>/<name> directory and\n" +
			"writes keypoints.npy (N x 33 x 4 float32) and keypoints.json to paths.keypoints_dir.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if _, err := preflight.CheckSystemDeps(cfg, services.StageKeypoints); err != nil {
				return err
			}
			opts := pose.OptionsFromConfig(cfg.Pose)
			if cmd.Flags().Changed("static-mode") {
				opts.StaticImageMode = staticMode
			}

			return ctx.runStage(cmd, services.StageKeypoints, func(runCtx context.Context, logger *slog.Logger, rec *history.Recorder) (string, error) {
				detector, err := pose.New(runCtx, cfg, opts, logger)
				if err != nil {
					return "pose backend unavailable", err
				}
				defer func() {
					if err := detector.Close(); err != nil {
						logger.Warn("pose backend did not shut down cleanly", logging.Error(err))
					}
				}()

				progressOut := cmd.ErrOrStderr()
				extractor := keypoints.NewExtractor(cfg, detector, logger,
					keypoints.WithProgressOutput(progressOut, isTerminal(progressOut)),
					keypoints.WithObserver(func(itemCtx context.Context, result keypoints.DirResult) {
						if result.Skipped {
							rec.Outcome(itemCtx, result.Dir.Key(), "skipped", "no frames", 0)
							return
						}
						rec.Outcome(itemCtx, result.Dir.Key(), services.Outcome(nil),
							fmt.Sprintf("%d detected", result.Detected), result.Frames)
					}),
				)
				summary, err := extractor.Run(runCtx)
				line := fmt.Sprintf("Extracted keypoints for %d of %d directories (%d frames, %d with a pose, %d skipped)",
					summary.Processed, summary.Found, summary.Frames, summary.Detected, summary.Skipped)
				fmt.Fprintln(cmd.OutOrStdout(), line)
				return line, err
			})
		},
	}

	cmd.Flags().BoolVar(&staticMode, "static-mode", true, "Treat every frame as an independent image (no cross-frame tracking)")
	return cmd
}
