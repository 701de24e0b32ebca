package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/downpour-dl/downpour/internal/port"
)

// Save inserts a download record, replacing any existing record with
// the same id.
func (s *Store) Save(rec *port.DownloadRecord) error {
	query := `
		INSERT OR REPLACE INTO downloads (
			id, url, file_path, content_length, supports_ranges,
			state, bytes_downloaded, last_error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, datetime('now'), datetime('now'))
	`

	_, err := s.db.Exec(query,
		rec.ID, rec.URL, rec.FilePath, rec.ContentLength, rec.SupportsRanges,
		rec.State, rec.BytesDownloaded, rec.LastError)
	return err
}

// UpdateProgress records a state change or progress checkpoint for a
// download.
func (s *Store) UpdateProgress(id, state string, bytesDownloaded int64, lastError string) error {
	query := `
		UPDATE downloads
		SET state = ?,
			bytes_downloaded = ?,
			last_error = ?,
			updated_at = datetime('now')
		WHERE id = ?
	`

	result, err := s.db.Exec(query, state, bytesDownloaded, lastError, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("no download with id %s", id)
	}
	return nil
}

// List returns all persisted download records, oldest first.
func (s *Store) List() ([]*port.DownloadRecord, error) {
	query := `
		SELECT id, url, file_path, content_length, supports_ranges,
			   state, bytes_downloaded, last_error, created_at, updated_at
		FROM downloads
		ORDER BY created_at ASC
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*port.DownloadRecord
	for rows.Next() {
		rec, err := scanDownload(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func scanDownload(rows *sql.Rows) (*port.DownloadRecord, error) {
	rec := &port.DownloadRecord{}
	err := rows.Scan(
		&rec.ID, &rec.URL, &rec.FilePath, &rec.ContentLength, &rec.SupportsRanges,
		&rec.State, &rec.BytesDownloaded, &rec.LastError, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}
