package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"signprep/internal/config"
	"signprep/internal/history"
	"signprep/internal/logging"
	"signprep/internal/services"
	"signprep/internal/stagelock"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.TrimSpace(*c.logLevelFlag)
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// ensureLogger builds the process logger. Console output goes to the
// command's stderr so stdout carries only command results.
func (c *commandContext) ensureLogger(cmd *cobra.Command) (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		opts, err := logging.OptionsFromConfig(cfg)
		if err != nil {
			c.loggerErr = err
			return
		}
		opts.Console = cmd.ErrOrStderr()
		c.logger, c.loggerErr = logging.New(opts)
	})
	return c.logger, c.loggerErr
}

// stageFunc performs one stage run and returns a one-line summary for the
// run history.
type stageFunc func(ctx context.Context, logger *slog.Logger, rec *history.Recorder) (string, error)

// runStage takes the stage lock, opens a history run and invokes fn with a
// context carrying the run id and stage name. Per-item loggers pick those up
// through logging.WithContext.
func (c *commandContext) runStage(cmd *cobra.Command, stage string, fn stageFunc) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.ensureLogger(cmd)
	if err != nil {
		return err
	}

	lock, err := stagelock.Acquire(cfg, stage)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("failed to release stage lock", logging.String("lock", lock.Path()), logging.Error(err))
		}
	}()

	store, err := history.Open(cfg)
	if err != nil {
		logger.Warn("run history unavailable",
			logging.Event("history_open_failed"),
			logging.Error(err),
		)
	}
	defer store.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = services.WithStage(ctx, stage)
	rec := history.StartRecorder(ctx, store, stage, logger)
	runID := rec.RunID()
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx = services.WithRunID(ctx, runID)

	summary, runErr := fn(ctx, logger, rec)
	rec.Finish(ctx, summary, runErr)
	return runErr
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

