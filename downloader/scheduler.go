package downloader

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Scheduler bounds concurrent downloads, enforces per-target-path mutual
// exclusion, and is the single writer of the ledger. One job's failure
// never stops the run.
type Scheduler struct {
	executor      Executor
	ledger        Ledger
	reporter      Reporter
	logger        *zap.Logger
	concurrency   int
	skipCompleted bool
}

// NewScheduler creates a Scheduler. concurrency must be positive;
// skipCompleted enables the resume ledger check at admission time.
func NewScheduler(executor Executor, ledger Ledger, reporter Reporter, logger *zap.Logger, concurrency int, skipCompleted bool) *Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Scheduler{
		executor:      executor,
		ledger:        ledger,
		reporter:      reporter,
		logger:        logger,
		concurrency:   concurrency,
		skipCompleted: skipCompleted,
	}
}

// workerDone carries one worker's terminal report back to the scheduling
// loop. Workers never mutate job state themselves.
type workerDone struct {
	job      *DownloadJob
	result   *Result
	attempts int
	err      error
}

// Run consumes the descriptor sequence and returns once every job reached
// a terminal status. On cancellation it stops admitting, waits for
// in-flight workers to abort, and returns the context error alongside the
// partial summary.
func (s *Scheduler) Run(ctx context.Context, descriptors []TrackDescriptor) (RunSummary, error) {
	pending := make([]*DownloadJob, 0, len(descriptors))
	for _, desc := range descriptors {
		pending = append(pending, &DownloadJob{
			ID:         uuid.NewString(),
			Descriptor: desc,
			Status:     StatusPending,
		})
	}

	var summary RunSummary
	inflight := make(map[string]*DownloadJob)
	blocked := make(map[string][]*DownloadJob)
	results := make(chan workerDone)
	active := 0
	cancelled := false

	for {
		if !cancelled {
			pending = s.admit(ctx, pending, inflight, blocked, results, &active, &summary)
		}

		if active == 0 && (cancelled || len(pending) == 0) {
			break
		}

		select {
		case done := <-results:
			active--
			s.complete(done, inflight, blocked, &pending, &summary)
		case <-ctx.Done():
			cancelled = true
			s.logger.Info("run cancelled, draining in-flight downloads", zap.Int("active", active))
		}
	}

	if cancelled {
		return summary, ctx.Err()
	}
	return summary, nil
}

// admit moves jobs from the pending queue into workers while slots are
// free. Jobs whose target path is busy park in the blocked queue; jobs
// already verified in the ledger are marked skipped without a worker.
func (s *Scheduler) admit(
	ctx context.Context,
	pending []*DownloadJob,
	inflight map[string]*DownloadJob,
	blocked map[string][]*DownloadJob,
	results chan<- workerDone,
	active *int,
	summary *RunSummary,
) []*DownloadJob {
	for *active < s.concurrency && len(pending) > 0 {
		job := pending[0]
		pending = pending[1:]
		path := job.Descriptor.TargetPath

		if _, busy := inflight[path]; busy {
			blocked[path] = append(blocked[path], job)
			continue
		}

		if s.skipCompleted && s.ledger.Verified(path) {
			job.Status = StatusSkipped
			summary.Skipped++
			s.reporter.OnEvent(ProgressEvent{
				JobID:       job.ID,
				DisplayName: job.Descriptor.DisplayName,
				Kind:        EventSkipped,
			})
			continue
		}

		job.Status = StatusActive
		inflight[path] = job
		*active++

		go func(job *DownloadJob) {
			result, attempts, err := s.executor.Execute(ctx, job.ID, job.Descriptor)
			results <- workerDone{job: job, result: result, attempts: attempts, err: err}
		}(job)
	}
	return pending
}

// complete transitions a finished job, performs the single ledger write
// on success, and requeues jobs that were blocked on the same path.
func (s *Scheduler) complete(
	done workerDone,
	inflight map[string]*DownloadJob,
	blocked map[string][]*DownloadJob,
	pending *[]*DownloadJob,
	summary *RunSummary,
) {
	job := done.job
	path := job.Descriptor.TargetPath
	delete(inflight, path)
	job.Attempt = done.attempts

	if done.err != nil {
		job.Status = StatusFailed
		job.LastError = done.err
		summary.Failed++
		summary.Errors = append(summary.Errors, JobError{Descriptor: job.Descriptor, Err: done.err})
	} else {
		job.Status = StatusSucceeded
		summary.Succeeded++
		s.logger.Info("download complete",
			zap.String("name", job.Descriptor.DisplayName),
			zap.Int64("size", done.result.Size),
			zap.Duration("elapsed", done.result.Elapsed),
			zap.Int("attempts", done.attempts),
		)
		entry := LedgerEntry{
			TrackID:     job.Descriptor.ID,
			TargetPath:  path,
			CompletedAt: done.result.CompletedAt,
			Size:        done.result.Size,
			Checksum:    done.result.Checksum,
		}
		if err := s.ledger.Record(entry); err != nil {
			// A failed ledger write only costs a redo on the next run.
			s.logger.Warn("ledger write failed",
				zap.String("path", path),
				zap.Error(err),
			)
		}
	}

	// Requeue jobs that waited on this path; they re-check the ledger at
	// admission, so duplicates of a finished download get skipped.
	if waiters := blocked[path]; len(waiters) > 0 {
		delete(blocked, path)
		*pending = append(waiters, *pending...)
	}
}
