package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"signprep/internal/config"
	"signprep/internal/history"
	"signprep/internal/services"
	"signprep/internal/verify"
)

func newVerifyCommand(ctx *commandContext) *cobra.Command {
	var input string
	var output string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Resolve YouTube video ids to titles",
		Long: "Reads one id or watch URL per line from verify.input, looks them up through the\n" +
			"YouTube Data API in batches of up to 50 and writes verify.output as CSV.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := overridePath(&cfg.Verify.Input, input); err != nil {
				return err
			}
			if err := overridePath(&cfg.Verify.Output, output); err != nil {
				return err
			}
			if err := cfg.RequireYouTubeKey(); err != nil {
				return services.Wrap(services.ErrConfiguration, services.StageVerify, "credentials", "", err)
			}

			return ctx.runStage(cmd, services.StageVerify, func(runCtx context.Context, logger *slog.Logger, rec *history.Recorder) (string, error) {
				resolver, err := verify.NewYouTubeResolver(runCtx, cfg.YouTube)
				if err != nil {
					return "youtube client unavailable", err
				}
				verifier := verify.NewVerifier(cfg, resolver, logger,
					verify.WithBatchObserver(func(batchCtx context.Context, index int, ids []string, videos []verify.Video) {
						rec.Outcome(batchCtx, fmt.Sprintf("batch-%d", index+1), services.Outcome(nil),
							fmt.Sprintf("%d of %d resolved", len(videos), len(ids)), len(videos))
					}),
				)
				report, err := verifier.Run(runCtx)
				if err != nil {
					return fmt.Sprintf("failed after %d batches", report.Batches), err
				}
				for _, id := range report.Missing {
					rec.Outcome(runCtx, id, "not_found", "not returned by youtube", 0)
				}
				line := fmt.Sprintf("Wrote %d of %d videos to %s (%d unresolved)",
					len(report.Videos), report.Requested, report.Output, len(report.Missing))
				fmt.Fprintln(cmd.OutOrStdout(), line)
				return line, nil
			})
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "Override verify.input")
	cmd.Flags().StringVar(&output, "output", "", "Override verify.output")
	return cmd
}

// overridePath replaces *target with the expanded flag value when one was given.
func overridePath(target *string, value string) error {
	if value == "" {
		return nil
	}
	expanded, err := config.ExpandPath(value)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", value, err)
	}
	*target = expanded
	return nil
}
