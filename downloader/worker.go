package downloader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultMaxAttempts bounds retries of transient failures per job.
	DefaultMaxAttempts = 3

	// progressStep is the byte interval between bytes_written events.
	progressStep = 256 * 1024
)

// Fetcher supplies the raw encoded audio stream for a track. The session
// collaborator implements this; tests substitute their own.
type Fetcher interface {
	Fetch(ctx context.Context, trackID string) (io.ReadCloser, int64, error)
}

// Executor runs one job to completion. The Scheduler only depends on this
// capability, never on the concrete worker.
type Executor interface {
	Execute(ctx context.Context, jobID string, desc TrackDescriptor) (*Result, int, error)
}

// Worker streams a track from the session collaborator into a colocated
// temporary file, pipes it through the external transcoder, and promotes
// the output to the target path with a single atomic rename. No partially
// written file is ever visible at the target path.
type Worker struct {
	fetcher     Fetcher
	transcoder  Transcoder
	reporter    Reporter
	maxAttempts int
	logger      *zap.Logger
}

// NewWorker creates a Worker with the default retry bound.
func NewWorker(fetcher Fetcher, transcoder Transcoder, reporter Reporter, logger *zap.Logger) *Worker {
	return &Worker{
		fetcher:     fetcher,
		transcoder:  transcoder,
		reporter:    reporter,
		maxAttempts: DefaultMaxAttempts,
		logger:      logger,
	}
}

// WithMaxAttempts overrides the retry bound. Values below 1 are clamped.
func (w *Worker) WithMaxAttempts(n int) *Worker {
	if n < 1 {
		n = 1
	}
	w.maxAttempts = n
	return w
}

// Execute implements the Executor interface. It returns the verified
// result, the number of attempts consumed, and the terminal error if all
// attempts failed. Transient failures are retried with exponential
// backoff; everything else reports immediately.
func (w *Worker) Execute(ctx context.Context, jobID string, desc TrackDescriptor) (*Result, int, error) {
	start := time.Now()
	attempts := 0

	w.reporter.OnEvent(ProgressEvent{JobID: jobID, DisplayName: desc.DisplayName, Kind: EventStarted})

	policy := backoff.WithContext(
		backoff.WithMaxRetries(newAttemptBackOff(), uint64(w.maxAttempts-1)),
		ctx,
	)

	var result *Result
	operation := func() error {
		attempts++
		res, err := w.attempt(ctx, jobID, desc)
		if err != nil {
			w.logger.Debug("download attempt failed",
				zap.String("job_id", jobID),
				zap.Int("attempt", attempts),
				zap.Error(err),
			)
			if !IsTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = res
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		err = classifyFsError(err)
		w.reporter.OnEvent(ProgressEvent{JobID: jobID, DisplayName: desc.DisplayName, Kind: EventFailed, Err: err})
		return nil, attempts, err
	}

	result.Elapsed = time.Since(start)
	w.reporter.OnEvent(ProgressEvent{JobID: jobID, DisplayName: desc.DisplayName, Kind: EventSucceeded})
	return result, attempts, nil
}

// attempt performs one full fetch-transcode-rename cycle. Temporary
// artifacts are removed on every exit path.
func (w *Worker) attempt(ctx context.Context, jobID string, desc TrackDescriptor) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewPipelineErrorWithCause(ErrorCancelled, "download cancelled", err)
	}

	dir := filepath.Dir(desc.TargetPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, classifyFsError(
			NewPipelineErrorWithCause(ErrorUnknown, "failed to create output directory", err))
	}

	// Temp files live next to the target so the final rename stays on one
	// filesystem.
	suffix := uuid.NewString()[:8]
	base := filepath.Base(desc.TargetPath)
	rawPath := filepath.Join(dir, fmt.Sprintf(".%s.%s.raw", base, suffix))
	outPath := filepath.Join(dir, fmt.Sprintf(".%s.%s.%s", base, suffix, desc.Format))
	defer os.Remove(rawPath)
	defer os.Remove(outPath)

	total, err := w.fetchRaw(ctx, jobID, desc, rawPath)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, NewPipelineError(ErrorTruncated, "stream ended before any audio data")
	}

	if err := w.transcoder.Transcode(ctx, rawPath, outPath, desc); err != nil {
		return nil, err
	}

	// Digest before promoting: a digest failure must not leave a file at
	// the target path that the run then reports as failed.
	size, checksum, err := fileDigest(outPath)
	if err != nil {
		return nil, NewPipelineErrorWithCause(ErrorUnknown, "failed to verify output file", err)
	}

	if err := os.Rename(outPath, desc.TargetPath); err != nil {
		return nil, classifyFsError(
			NewPipelineErrorWithCause(ErrorUnknown, "failed to promote output file", err))
	}

	return &Result{
		TargetPath:  desc.TargetPath,
		Size:        size,
		Checksum:    checksum,
		CompletedAt: time.Now(),
	}, nil
}

// fetchRaw streams the encoded track into rawPath, emitting throttled
// bytes_written events, and returns the byte count.
func (w *Worker) fetchRaw(ctx context.Context, jobID string, desc TrackDescriptor, rawPath string) (int64, error) {
	stream, total, err := w.fetcher.Fetch(ctx, desc.ID)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	file, err := os.Create(rawPath)
	if err != nil {
		return 0, classifyFsError(
			NewPipelineErrorWithCause(ErrorUnknown, "failed to create temp file", err))
	}
	defer file.Close()

	reader := &progressReader{
		ctx:    ctx,
		reader: stream,
		onStep: func(read int64) {
			w.reporter.OnEvent(ProgressEvent{
				JobID:       jobID,
				DisplayName: desc.DisplayName,
				Kind:        EventBytesWritten,
				Bytes:       read,
				Total:       total,
			})
		},
	}

	written, err := io.Copy(file, reader)
	if err != nil {
		if ctx.Err() != nil {
			return written, NewPipelineErrorWithCause(ErrorCancelled, "download cancelled", ctx.Err())
		}
		return written, classifyFsError(err)
	}
	return written, nil
}

// progressReader wraps an io.Reader and invokes onStep at progressStep
// boundaries and at EOF. It also turns context cancellation into a read
// error so in-flight copies abort promptly.
type progressReader struct {
	ctx      context.Context
	reader   io.Reader
	read     int64
	lastStep int64
	onStep   func(read int64)
}

func (pr *progressReader) Read(p []byte) (int, error) {
	if err := pr.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := pr.reader.Read(p)
	pr.read += int64(n)
	if pr.onStep != nil && (pr.read-pr.lastStep >= progressStep || err == io.EOF) {
		pr.lastStep = pr.read
		pr.onStep(pr.read)
	}
	return n, err
}

// newAttemptBackOff returns the per-job retry policy: short exponential
// delays, no overall elapsed-time cap (the retry count is the bound).
func newAttemptBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// classifyFsError upgrades raw filesystem errors into the pipeline
// taxonomy. Disk-full and permission errors are permanent.
func classifyFsError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.ENOSPC) {
		return NewPipelineErrorWithCause(ErrorDiskFull, "no space left on device", err)
	}
	if errors.Is(err, fs.ErrPermission) {
		return NewPipelineErrorWithCause(ErrorPermissionDenied, "permission denied", err)
	}
	return err
}

// fileDigest returns the size and hex SHA-256 of the file at path.
func fileDigest(path string) (int64, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, "", err
	}
	defer file.Close()

	hash := sha256.New()
	size, err := io.Copy(hash, file)
	if err != nil {
		return 0, "", err
	}
	return size, hex.EncodeToString(hash.Sum(nil)), nil
}
