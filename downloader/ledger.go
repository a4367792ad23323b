package downloader

import "time"

// LedgerEntry is the persisted record of one verified completed download.
// An entry exists if and only if a verified complete file existed at
// TargetPath when the entry was written.
type LedgerEntry struct {
	TrackID     string
	TargetPath  string
	CompletedAt time.Time
	Size        int64
	Checksum    string
}

// Ledger is the skip/resume capability the Scheduler consults before
// admitting a job. Only the Scheduler calls Record (single-writer
// discipline); workers never touch the ledger.
type Ledger interface {
	// Verified reports whether a completed entry exists for targetPath
	// and the file on disk still matches it.
	Verified(targetPath string) bool

	// Record persists an entry for a completed download.
	Record(entry LedgerEntry) error
}
