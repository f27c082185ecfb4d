package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"signprep/internal/frames"
	"signprep/internal/history"
	"signprep/internal/preflight"
	"signprep/internal/services"
)

func newFramesCommand(ctx *commandContext) *cobra.Command {
	var skipExisting bool

	cmd := &cobra.Command{
		Use:   "frames",
		Short: "Sample 256x256 JPEG frames from every video",
		Long: "Walks paths.videos_dir for <category>/<name>.mp4 files and writes\n" +
			"paths.frames_dir/<category>/<name>/0001.jpg.. at 12 frames every 4 seconds.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("skip-existing") {
				cfg.Sampler.SkipExisting = skipExisting
			}
			if _, err := preflight.CheckSystemDeps(cfg, services.StageFrames); err != nil {
				return err
			}

			return ctx.runStage(cmd, services.StageFrames, func(runCtx context.Context, logger *slog.Logger, rec *history.Recorder) (string, error) {
				stage := frames.NewStage(cfg, logger, frames.WithObserver(func(itemCtx context.Context, result frames.VideoResult) {
					if result.Skipped {
						rec.Outcome(itemCtx, result.Video.Key(), "skipped", "frames already present", result.Frames)
						return
					}
					rec.Item(itemCtx, result.Video.Key(), result.Err, result.Frames)
				}))
				summary, err := stage.Run(runCtx)
				line := fmt.Sprintf("Sampled %d frames from %d of %d videos (%d failed, %d skipped)",
					summary.TotalFrames(), summary.Succeeded, summary.Found, summary.Failed, summary.Skipped)
				fmt.Fprintln(cmd.OutOrStdout(), line)
				return line, err
			})
		},
	}

	cmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "Skip videos whose frame directory already holds JPEGs")
	return cmd
}
