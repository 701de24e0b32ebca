package port

import "time"

// DownloadRecord is the persisted form of one download registry entry.
type DownloadRecord struct {
	ID              string
	URL             string
	FilePath        string
	ContentLength   int64
	SupportsRanges  bool
	State           string
	BytesDownloaded int64
	LastError       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DownloadRepository persists download entries so they survive process
// restarts. Implementations must be safe for concurrent use.
type DownloadRepository interface {
	// Save inserts a new record, replacing any record with the same id.
	Save(rec *DownloadRecord) error

	// UpdateProgress records a state change or progress checkpoint.
	UpdateProgress(id, state string, bytesDownloaded int64, lastError string) error

	// List returns all known records.
	List() ([]*DownloadRecord, error)

	// Ping checks that the backing store is reachable.
	Ping() error
}
