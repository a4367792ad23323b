// Package downloader implements the resumable, concurrency-bounded
// download-and-transcode pipeline between a resolved track list and the
// set of verified local audio files.
//
// The package defines the core interfaces and data structures for:
//   - Scheduler: bounded admission control with per-path mutual exclusion
//     and single-writer ledger discipline
//   - Worker: fetch, transcode through an external process, and atomic
//     promotion of the finished file
//   - Reporter: progress reporting decoupled from rendering
//   - Error handling with structured PipelineError types
package downloader
