package verify

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"

	"signprep/internal/config"
	"signprep/internal/fileutil"
	"signprep/internal/logging"
	"signprep/internal/services"
)

// CSVHeader is the first row of the output file.
var CSVHeader = []string{"Video URL", "Title"}

// Report summarizes a verification run.
type Report struct {
	Requested int
	Batches   int
	Videos    []Video
	// Missing lists requested ids absent from every reply, in input order.
	Missing []string
	Output  string
}

// Verifier reads identifiers, resolves them in batches and writes the CSV.
type Verifier struct {
	cfg      *config.Config
	resolver Resolver
	logger   *slog.Logger
	limiter  *rate.Limiter
	observe  func(context.Context, int, []string, []Video)
}

// Option customizes a Verifier.
type Option func(*Verifier)

// WithLimiter overrides the request pacing limiter. Nil disables pacing.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(v *Verifier) {
		v.limiter = limiter
	}
}

// WithBatchObserver registers a callback invoked after every resolved batch.
func WithBatchObserver(fn func(ctx context.Context, index int, ids []string, videos []Video)) Option {
	return func(v *Verifier) {
		v.observe = fn
	}
}

// NewVerifier builds a verifier. Requests are paced at
// youtube.requests_per_second unless that is zero.
func NewVerifier(cfg *config.Config, resolver Resolver, logger *slog.Logger, opts ...Option) *Verifier {
	v := &Verifier{
		cfg:      cfg,
		resolver: resolver,
		logger:   logging.NewComponentLogger(logger, services.StageVerify),
	}
	if rps := cfg.YouTube.RequestsPerSecond; rps > 0 {
		v.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Run resolves every identifier in verify.input and writes verify.output.
// Any failed request aborts the run before the CSV is written.
func (v *Verifier) Run(ctx context.Context) (Report, error) {
	report := Report{Output: v.cfg.Verify.Output}

	ids, err := ReadIDs(v.cfg.Verify.Input)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return report, services.Wrap(services.ErrNotFound, services.StageVerify, "read ids", v.cfg.Verify.Input, err)
		}
		return report, services.Wrap(services.ErrValidation, services.StageVerify, "read ids", v.cfg.Verify.Input, err)
	}
	report.Requested = len(ids)

	batchSize := min(max(v.cfg.YouTube.BatchSize, 1), config.MaxYouTubeBatchSize)
	batches := Batches(ids, batchSize)
	v.logger.Info(fmt.Sprintf("verifying %d video ids", len(ids)),
		logging.String("input", v.cfg.Verify.Input),
		logging.Int("batches", len(batches)),
	)

	for i, batch := range batches {
		videos, err := v.resolveBatch(ctx, batch)
		if err != nil {
			return report, err
		}
		report.Batches++
		for _, video := range videos {
			video.Title = norm.NFC.String(video.Title)
			if video.URL == "" {
				video.URL = WatchURL(video.ID)
			}
			report.Videos = append(report.Videos, video)
		}
		v.logger.Debug("resolved batch",
			logging.Int("batch", i+1),
			logging.Int("requested", len(batch)),
			logging.Int("resolved", len(videos)),
		)
		if v.observe != nil {
			v.observe(ctx, i, batch, videos)
		}
	}

	report.Missing = missingIDs(ids, report.Videos)
	for _, id := range report.Missing {
		v.logger.Warn("video id not returned by youtube",
			logging.Event("video_unresolved"),
			logging.String("id", id),
		)
	}

	if err := writeCSV(v.cfg.Verify.Output, report.Videos); err != nil {
		return report, services.Wrap(services.ErrValidation, services.StageVerify, "write csv", v.cfg.Verify.Output, err)
	}
	if path := v.cfg.Verify.MissingOutput; path != "" {
		if err := writeMissing(path, report.Missing); err != nil {
			return report, services.Wrap(services.ErrValidation, services.StageVerify, "write missing ids", path, err)
		}
	}

	v.logger.Info(fmt.Sprintf("data written to %s", v.cfg.Verify.Output),
		logging.Int("rows", len(report.Videos)),
		logging.Int("missing", len(report.Missing)),
	)
	return report, nil
}

func (v *Verifier) resolveBatch(ctx context.Context, batch []string) ([]Video, error) {
	if v.limiter != nil {
		if err := v.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if seconds := v.cfg.YouTube.TimeoutSeconds; seconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
		defer cancel()
	}
	return v.resolver.Resolve(ctx, batch)
}

func missingIDs(ids []string, videos []Video) []string {
	seen := make(map[string]struct{}, len(videos))
	for _, video := range videos {
		seen[video.ID] = struct{}{}
	}
	var missing []string
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		missing = append(missing, id)
	}
	return missing
}

func writeCSV(path string, videos []Video) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		cw.UseCRLF = true
		if err := cw.Write(CSVHeader); err != nil {
			return err
		}
		for _, video := range videos {
			if err := cw.Write([]string{video.URL, video.Title}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

func writeMissing(path string, ids []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var b strings.Builder
	for _, id := range ids {
		b.WriteString(id)
		b.WriteByte('\n')
	}
	return fileutil.WriteFileAtomic(path, []byte(b.String()), 0o644)
}
