// Package cache persists batch analysis results. The rest of the program
// sees only the narrow ReadAll/UpsertProcessed/Replace contract; the
// SQLite backing is an implementation detail and free to change.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// Store manages cache persistence backed by SQLite. All writes go through
// a single Store and are serialized by its mutex: the cache is mutated by
// read-modify-write from parallel workers, and lost updates are a
// correctness bug, not a performance concern.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
	lock *flock.Flock
}

const schema = `
CREATE TABLE IF NOT EXISTS media_cache (
    file_path              TEXT PRIMARY KEY,
    file_name              TEXT NOT NULL,
    file_size_bytes        INTEGER NOT NULL DEFAULT 0,
    container              TEXT NOT NULL DEFAULT '',
    video_codec            TEXT NOT NULL DEFAULT '',
    is_hdr                 INTEGER NOT NULL DEFAULT 0,
    audio_codecs           TEXT NOT NULL DEFAULT '',
    audio_channels         TEXT NOT NULL DEFAULT '',
    audio_languages        TEXT NOT NULL DEFAULT '',
    has_video              INTEGER NOT NULL DEFAULT 0,
    has_audio              INTEGER NOT NULL DEFAULT 0,
    direct_play_compatible INTEGER NOT NULL DEFAULT 0,
    action_needed          TEXT NOT NULL DEFAULT '',
    analysis_date          TEXT NOT NULL DEFAULT '',
    processed              INTEGER NOT NULL DEFAULT 0,
    processing_date        TEXT
)`

// Open connects to (or creates) the cache database at path and takes a
// cross-process advisory lock so two runs cannot interleave writes.
func Open(path string) (*Store, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock cache %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("cache %s is in use by another dpconv run", path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}

	return &Store{db: db, path: path, lock: lock}, nil
}

// OpenExisting is Open for consumers of a previously gathered cache. It
// refuses to conjure an empty database when the file is absent, so a
// mistyped or never-gathered path fails instead of yielding zero entries.
func OpenExisting(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("cache %s does not exist; run gather first", path)
		}
		return nil, fmt.Errorf("stat cache %s: %w", path, err)
	}
	return Open(path)
}

// Close releases the database and the advisory lock.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	if s.lock != nil {
		_ = s.lock.Unlock()
	}
	return err
}

// ReadAll returns every cache entry in file-path order.
func (s *Store) ReadAll(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
        SELECT file_path, file_name, file_size_bytes, container, video_codec,
               is_hdr, audio_codecs, audio_channels, audio_languages,
               has_video, has_audio, direct_play_compatible, action_needed,
               analysis_date, processed, processing_date
        FROM media_cache ORDER BY file_path`)
	if err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e              Entry
			analysisDate   string
			processingDate sql.NullString
		)
		if err := rows.Scan(
			&e.FilePath, &e.FileName, &e.FileSizeBytes, &e.Container, &e.VideoCodec,
			&e.IsHDR, &e.AudioCodecs, &e.AudioChannels, &e.AudioLanguages,
			&e.HasVideo, &e.HasAudio, &e.DirectPlayCompatible, &e.ActionNeeded,
			&analysisDate, &e.Processed, &processingDate,
		); err != nil {
			return nil, fmt.Errorf("scan cache row: %w", err)
		}
		e.AnalysisDate, _ = time.Parse(timeLayout, analysisDate)
		if processingDate.Valid && processingDate.String != "" {
			e.ProcessingDate, _ = time.Parse(timeLayout, processingDate.String)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpsertProcessed marks the entry for filePath as processed. A path with
// no cache row is a no-op, matching the collaborator contract: processing
// uncached files must not invent partial rows.
func (s *Store) UpsertProcessed(ctx context.Context, filePath string, processed bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE media_cache SET processed = ?, processing_date = ? WHERE file_path = ?`,
		processed, at.Format(timeLayout), filePath)
	if err != nil {
		return fmt.Errorf("update cache entry %s: %w", filePath, err)
	}
	return nil
}

// Replace swaps the entire cache contents for the given entries; used by
// gather mode to publish a fresh analysis atomically.
func (s *Store) Replace(ctx context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM media_cache`); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO media_cache (
            file_path, file_name, file_size_bytes, container, video_codec,
            is_hdr, audio_codecs, audio_channels, audio_languages,
            has_video, has_audio, direct_play_compatible, action_needed,
            analysis_date, processed, processing_date
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare cache insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		var processingDate any
		if !e.ProcessingDate.IsZero() {
			processingDate = e.ProcessingDate.Format(timeLayout)
		}
		if _, err := stmt.ExecContext(ctx,
			e.FilePath, e.FileName, e.FileSizeBytes, e.Container, e.VideoCodec,
			e.IsHDR, e.AudioCodecs, e.AudioChannels, e.AudioLanguages,
			e.HasVideo, e.HasAudio, e.DirectPlayCompatible, e.ActionNeeded,
			e.AnalysisDate.Format(timeLayout), e.Processed, processingDate,
		); err != nil {
			return fmt.Errorf("insert cache entry %s: %w", e.FilePath, err)
		}
	}
	return tx.Commit()
}
