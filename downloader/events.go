package downloader

import "sync"

// EventKind identifies the progress event variants emitted by the
// scheduler and workers.
type EventKind int

const (
	EventStarted EventKind = iota
	EventBytesWritten
	EventSucceeded
	EventFailed
	EventSkipped
)

// String returns the string representation of the event kind
func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventBytesWritten:
		return "bytes_written"
	case EventSucceeded:
		return "succeeded"
	case EventFailed:
		return "failed"
	case EventSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// ProgressEvent is a transient value describing one observable step of a
// job's life. Bytes/Total are only meaningful for EventBytesWritten
// (Total may be -1 when the stream length is unknown); Err is only set
// for EventFailed.
type ProgressEvent struct {
	JobID       string
	DisplayName string
	Kind        EventKind
	Bytes       int64
	Total       int64
	Err         error
}

// Reporter is the capability the pipeline reports progress through. The
// core never depends on a rendering technology, only on this interface.
type Reporter interface {
	OnEvent(event ProgressEvent)
}

// MultiReporter fans events out to several reporters in order.
type MultiReporter []Reporter

// OnEvent implements Reporter
func (m MultiReporter) OnEvent(event ProgressEvent) {
	for _, r := range m {
		r.OnEvent(event)
	}
}

// NopReporter discards all events.
type NopReporter struct{}

// OnEvent implements Reporter
func (NopReporter) OnEvent(ProgressEvent) {}

// CaptureReporter records every event it receives. Intended for tests
// and assertions; safe for concurrent use.
type CaptureReporter struct {
	mu     sync.Mutex
	events []ProgressEvent
}

// NewCaptureReporter creates an empty CaptureReporter.
func NewCaptureReporter() *CaptureReporter {
	return &CaptureReporter{}
}

// OnEvent implements Reporter
func (cr *CaptureReporter) OnEvent(event ProgressEvent) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	cr.events = append(cr.events, event)
}

// Events returns a copy of the captured events in arrival order.
func (cr *CaptureReporter) Events() []ProgressEvent {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	events := make([]ProgressEvent, len(cr.events))
	copy(events, cr.events)
	return events
}

// CountKind returns how many captured events have the given kind.
func (cr *CaptureReporter) CountKind(kind EventKind) int {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	n := 0
	for _, event := range cr.events {
		if event.Kind == kind {
			n++
		}
	}
	return n
}
