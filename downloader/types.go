package downloader

import (
	"time"
)

// Format is the target audio format for a download.
type Format int

const (
	FormatMP3 Format = iota
	FormatWAV
)

// String returns the string representation of the format
func (f Format) String() string {
	switch f {
	case FormatMP3:
		return "mp3"
	case FormatWAV:
		return "wav"
	default:
		return "unknown"
	}
}

// ParseFormat parses a format name as accepted by the configuration surface.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "mp3":
		return FormatMP3, nil
	case "wav":
		return FormatWAV, nil
	default:
		return 0, NewPipelineError(ErrorInvalidInput, "unsupported format: "+s)
	}
}

// TrackTags is the metadata embedded into the finished audio file.
// Zero-value fields are omitted from the output.
type TrackTags struct {
	Artist      string
	Title       string
	Album       string
	Year        string
	DiscNumber  int
	TrackNumber int
	ArtworkURL  string
}

// TrackDescriptor identifies one downloadable unit and its destination.
// Descriptors are immutable; ownership passes Resolver -> Scheduler -> Worker.
type TrackDescriptor struct {
	ID              string
	DisplayName     string
	DurationSeconds int
	TargetPath      string
	Format          Format
	Tags            TrackTags
}

// JobStatus represents the run-time status of a download job
type JobStatus int

const (
	StatusPending JobStatus = iota
	StatusActive
	StatusSucceeded
	StatusFailed
	StatusSkipped
)

// String returns string representation of job status
func (s JobStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusActive:
		return "active"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// DownloadJob wraps a TrackDescriptor with mutable run-state. The Scheduler
// owns the job exclusively; workers report back via their return value and
// never mutate it directly.
type DownloadJob struct {
	ID         string
	Descriptor TrackDescriptor
	Status     JobStatus
	Attempt    int
	LastError  error
}

// Result describes a verified, completed download. Size and Checksum are
// taken from the final file at TargetPath after the atomic rename.
type Result struct {
	TargetPath  string
	Size        int64
	Checksum    string
	CompletedAt time.Time
	Elapsed     time.Duration
}

// JobError records one failed job for the run summary.
type JobError struct {
	Descriptor TrackDescriptor
	Err        error
}

// RunSummary is returned by the Scheduler once the job sequence is drained.
type RunSummary struct {
	Succeeded int
	Failed    int
	Skipped   int
	Errors    []JobError
}
