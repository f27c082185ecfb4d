package keypoints

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"signprep/internal/logging"
)

type progressReporter interface {
	Advance(item string, frames int)
	Finish()
}

// newProgress returns a terminal bar when out is a TTY and a sampled log
// reporter otherwise.
func newProgress(total int, out io.Writer, tty bool, logger *slog.Logger) progressReporter {
	if tty && out != nil {
		bar := progressbar.NewOptions(total,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription("keypoints"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("frames"),
			progressbar.OptionShowIts(),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
		return &barProgress{bar: bar}
	}
	return &logProgress{
		total:   total,
		sampler: logging.NewProgressSampler(10),
		logger:  logger,
	}
}

func stderrIsTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

type barProgress struct {
	bar *progressbar.ProgressBar
}

func (p *barProgress) Advance(item string, frames int) {
	p.bar.Describe(item)
	_ = p.bar.Add(frames)
}

func (p *barProgress) Finish() {
	_ = p.bar.Finish()
}

type logProgress struct {
	total   int
	done    int
	sampler *logging.ProgressSampler
	logger  *slog.Logger
}

func (p *logProgress) Advance(item string, frames int) {
	p.done += frames
	// The item is not passed to the sampler so that buckets span the whole run.
	if p.sampler.ShouldLog("", p.done, p.total) {
		p.logger.Info("keypoint progress",
			logging.String("last", item),
			logging.Int("frames_done", p.done),
			logging.Int("frames_total", p.total),
			logging.Float64("percent", logging.Percent(p.done, p.total)),
		)
	}
}

func (p *logProgress) Finish() {}
