package downloader

import (
	"fmt"
	"io"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// TerminalReporter renders job progress to a terminal with one bar per
// in-flight job. Safe for concurrent use: workers emit events from their
// own goroutines.
type TerminalReporter struct {
	mu   sync.Mutex
	out  io.Writer
	bars map[string]*progressbar.ProgressBar
}

// NewTerminalReporter creates a TerminalReporter writing to out.
func NewTerminalReporter(out io.Writer) *TerminalReporter {
	return &TerminalReporter{
		out:  out,
		bars: make(map[string]*progressbar.ProgressBar),
	}
}

// OnEvent implements Reporter
func (tr *TerminalReporter) OnEvent(event ProgressEvent) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	switch event.Kind {
	case EventStarted:
		fmt.Fprintf(tr.out, "%s %s\n", color.CyanString("▶"), event.DisplayName)

	case EventBytesWritten:
		bar, ok := tr.bars[event.JobID]
		if !ok {
			bar = progressbar.NewOptions64(event.Total,
				progressbar.OptionSetWriter(tr.out),
				progressbar.OptionClearOnFinish(),
				progressbar.OptionSetElapsedTime(false),
				progressbar.OptionSetPredictTime(false),
				progressbar.OptionShowBytes(true),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionSetDescription(event.DisplayName),
			)
			tr.bars[event.JobID] = bar
		}
		_ = bar.Set64(event.Bytes)

	case EventSucceeded:
		tr.finishBar(event.JobID)
		fmt.Fprintf(tr.out, "%s %s\n", color.GreenString("✔"), event.DisplayName)

	case EventFailed:
		tr.finishBar(event.JobID)
		fmt.Fprintf(tr.out, "%s %s: %v\n", color.RedString("✘"), event.DisplayName, event.Err)

	case EventSkipped:
		fmt.Fprintf(tr.out, "%s Skip: %s already downloaded\n", color.YellowString("≫"), event.DisplayName)
	}
}

// PrintSummary renders the end-of-run counters and failure reasons.
func (tr *TerminalReporter) PrintSummary(summary RunSummary) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	fmt.Fprintf(tr.out, "\n%s %d  %s %d  %s %d\n",
		color.GreenString("succeeded:"), summary.Succeeded,
		color.YellowString("skipped:"), summary.Skipped,
		color.RedString("failed:"), summary.Failed,
	)
	for _, jobErr := range summary.Errors {
		fmt.Fprintf(tr.out, "  %s %s: %v\n", color.RedString("✘"), jobErr.Descriptor.DisplayName, jobErr.Err)
	}
}

func (tr *TerminalReporter) finishBar(jobID string) {
	if bar, ok := tr.bars[jobID]; ok {
		_ = bar.Finish()
		delete(tr.bars, jobID)
	}
}

// LogReporter mirrors progress events into a structured logger. Byte
// progress is logged at debug level to keep info output readable.
type LogReporter struct {
	logger *zap.Logger
}

// NewLogReporter creates a LogReporter backed by the given logger.
func NewLogReporter(logger *zap.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// OnEvent implements Reporter
func (lr *LogReporter) OnEvent(event ProgressEvent) {
	fields := []zap.Field{
		zap.String("job_id", event.JobID),
		zap.String("name", event.DisplayName),
	}
	switch event.Kind {
	case EventStarted:
		lr.logger.Info("download started", fields...)
	case EventBytesWritten:
		lr.logger.Debug("download progress",
			append(fields,
				zap.String("written", humanize.Bytes(uint64(event.Bytes))),
				zap.Int64("total", event.Total),
			)...)
	case EventSucceeded:
		lr.logger.Info("download succeeded", fields...)
	case EventFailed:
		lr.logger.Warn("download failed", append(fields, zap.Error(event.Err))...)
	case EventSkipped:
		lr.logger.Info("download skipped", fields...)
	}
}
