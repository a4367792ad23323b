// Package ledger persists the record of completed downloads used for
// skip/resume decisions. The store is embedded SQLite; a missing or
// corrupt store degrades to empty rather than failing the run.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ozora-ogino/spotify-dlx/downloader"
)

// Entry is the persisted gorm model for one completed download.
type Entry struct {
	ID          uint   `gorm:"primaryKey"`
	TrackID     string `gorm:"index"`
	TargetPath  string `gorm:"uniqueIndex"`
	CompletedAt time.Time
	Size        int64
	Checksum    string
}

// TableName sets the table name for gorm
func (Entry) TableName() string {
	return "ledger_entries"
}

// Ledger implements downloader.Ledger on an embedded SQLite database.
// When the store cannot be opened or migrated it runs degraded: Verified
// always reports false and Record is a no-op, so prior work is redone but
// never lost.
type Ledger struct {
	db       *gorm.DB
	logger   *zap.Logger
	degraded bool
}

// Open opens or creates the ledger store at path. Open never returns an
// error for a corrupt store; it logs a warning and returns a degraded
// ledger instead.
func Open(path string, logger *zap.Logger) *Ledger {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err == nil {
		err = db.AutoMigrate(&Entry{})
	}
	if err != nil {
		logger.Warn("ledger unusable, resuming without skip records",
			zap.String("path", path),
			zap.Error(err),
		)
		return &Ledger{logger: logger, degraded: true}
	}
	return &Ledger{db: db, logger: logger}
}

// Verified implements downloader.Ledger. An entry counts only when the
// file on disk still exists with the recorded size and, when a checksum
// was recorded, the same SHA-256. Read errors count as "not verified".
func (l *Ledger) Verified(targetPath string) bool {
	if l.degraded {
		return false
	}

	var entry Entry
	err := l.db.Where("target_path = ?", targetPath).First(&entry).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			l.logger.Warn("ledger read failed, treating as missing",
				zap.String("path", targetPath),
				zap.Error(err),
			)
		}
		return false
	}

	info, err := os.Stat(targetPath)
	if err != nil || info.Size() != entry.Size {
		return false
	}
	if entry.Checksum != "" {
		sum, err := checksumFile(targetPath)
		if err != nil || sum != entry.Checksum {
			return false
		}
	}
	return true
}

// Record implements downloader.Ledger. Re-recording a path updates the
// existing row, so a re-download after a changed file stays consistent.
func (l *Ledger) Record(entry downloader.LedgerEntry) error {
	if l.degraded {
		return nil
	}

	row := Entry{
		TrackID:     entry.TrackID,
		TargetPath:  entry.TargetPath,
		CompletedAt: entry.CompletedAt,
		Size:        entry.Size,
		Checksum:    entry.Checksum,
	}

	var existing Entry
	err := l.db.Where("target_path = ?", entry.TargetPath).First(&existing).Error
	if err == nil {
		row.ID = existing.ID
		return l.db.Save(&row).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return l.db.Create(&row).Error
	}
	return err
}

// Count returns the number of persisted entries. Degraded ledgers report
// zero.
func (l *Ledger) Count() int64 {
	if l.degraded {
		return 0
	}
	var n int64
	if err := l.db.Model(&Entry{}).Count(&n).Error; err != nil {
		return 0
	}
	return n
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	if l.degraded {
		return nil
	}
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func checksumFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
