package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"agrovoice/internal/models"
)

// MediaRepository is the data access layer for media entries.
type MediaRepository struct {
	db *DB
}

// NewMediaRepository creates a new MediaRepository.
func NewMediaRepository(db *DB) *MediaRepository {
	return &MediaRepository{db: db}
}

// Upsert inserts the entry, or merges it over an existing row for the same key.
// Every write bumps version and updated_at. The transcript and transcription
// metadata of an existing row are preserved when the incoming entry has none,
// so re-ingesting metadata never wipes a finished transcription.
func (r *MediaRepository) Upsert(ctx context.Context, entry *models.MediaEntry) error {
	now := time.Now()
	existing, err := r.GetByKey(ctx, entry.Key)
	if err != nil {
		return err
	}

	if existing == nil {
		entry.Version = 1
		entry.CreatedAt = now
		entry.UpdatedAt = now
		if entry.ProcessingStatus == "" {
			entry.ProcessingStatus = models.ProcessingPending
		}
		return r.insert(ctx, entry)
	}

	if entry.Transcript == "" {
		entry.Transcript = existing.Transcript
		entry.Transcription = existing.Transcription
	}
	if entry.ProcessingStatus == "" {
		entry.ProcessingStatus = existing.ProcessingStatus
	}
	if len(entry.ProcessingErrors) == 0 {
		entry.ProcessingErrors = existing.ProcessingErrors
	}
	entry.Version = existing.Version + 1
	entry.CreatedAt = existing.CreatedAt
	entry.UpdatedAt = now
	return r.update(ctx, entry)
}

func (r *MediaRepository) insert(ctx context.Context, entry *models.MediaEntry) error {
	tags, meta, errs, err := encodeEntry(entry)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO media_entries
			(key, title, source_url, channel_title, published_at, duration_seconds,
			 tags, transcript, transcription_meta, processing_status, processing_errors,
			 version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Key, entry.Title, entry.SourceURL, entry.ChannelTitle, entry.PublishedAt,
		entry.Duration, tags, entry.Transcript, meta, string(entry.ProcessingStatus),
		errs, entry.Version, entry.CreatedAt, entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert media entry: %w", err)
	}

	if err := upsertFTS(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *MediaRepository) update(ctx context.Context, entry *models.MediaEntry) error {
	tags, meta, errs, err := encodeEntry(entry)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE media_entries SET
			title = ?, source_url = ?, channel_title = ?, published_at = ?,
			duration_seconds = ?, tags = ?, transcript = ?, transcription_meta = ?,
			processing_status = ?, processing_errors = ?, version = ?, updated_at = ?
		WHERE key = ?`,
		entry.Title, entry.SourceURL, entry.ChannelTitle, entry.PublishedAt,
		entry.Duration, tags, entry.Transcript, meta, string(entry.ProcessingStatus),
		errs, entry.Version, entry.UpdatedAt, entry.Key)
	if err != nil {
		return fmt.Errorf("failed to update media entry: %w", err)
	}

	if err := upsertFTS(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertFTS(ctx context.Context, tx *sql.Tx, entry *models.MediaEntry) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM media_fts WHERE key = ?`, entry.Key); err != nil {
		return fmt.Errorf("failed to clear FTS row: %w", err)
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO media_fts (key, title, transcript, tags) VALUES (?, ?, ?, ?)`,
		entry.Key, entry.Title, entry.Transcript, strings.Join(entry.Tags, " "))
	if err != nil {
		return fmt.Errorf("failed to insert FTS row: %w", err)
	}
	return nil
}

// GetByKey returns the entry for key, or nil when absent.
func (r *MediaRepository) GetByKey(ctx context.Context, key string) (*models.MediaEntry, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` FROM media_entries WHERE key = ?`, key)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return entry, err
}

// UpdateStatus transitions the processing status, optionally recording an error
// message. Bumps version.
func (r *MediaRepository) UpdateStatus(ctx context.Context, key string, status models.ProcessingStatus, errMsg string) error {
	entry, err := r.GetByKey(ctx, key)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("media entry not found: %s", key)
	}
	entry.ProcessingStatus = status
	if errMsg != "" {
		entry.ProcessingErrors = append(entry.ProcessingErrors, errMsg)
	}
	entry.Version++
	entry.UpdatedAt = time.Now()
	return r.update(ctx, entry)
}

// SetTranscript records a completed transcription: text, service metadata and
// derived tags, moving the entry to completed.
func (r *MediaRepository) SetTranscript(ctx context.Context, key, transcript string, meta *models.TranscriptionMeta, tags []string) error {
	entry, err := r.GetByKey(ctx, key)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("media entry not found: %s", key)
	}
	entry.Transcript = transcript
	entry.Transcription = meta
	if len(tags) > 0 {
		entry.Tags = mergeTags(entry.Tags, tags)
	}
	entry.ProcessingStatus = models.ProcessingCompleted
	entry.Version++
	entry.UpdatedAt = time.Now()
	return r.update(ctx, entry)
}

// ListByStatus returns entries in the given processing status.
func (r *MediaRepository) ListByStatus(ctx context.Context, status models.ProcessingStatus, limit int) ([]models.MediaEntry, error) {
	if limit == 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		selectColumns+` FROM media_entries WHERE processing_status = ? ORDER BY updated_at DESC LIMIT ?`,
		string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Search runs a ranked full-text query over title/transcript/tags and returns
// the best-matching entries.
func (r *MediaRepository) Search(ctx context.Context, query string, limit int) ([]models.MediaEntry, error) {
	if limit == 0 {
		limit = 20
	}
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, selectColumns+`
		FROM media_entries
		WHERE key IN (SELECT key FROM media_fts WHERE media_fts MATCH ? ORDER BY rank LIMIT ?)`,
		match, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ftsQuery turns free text into an FTS5 OR-query of quoted tokens, so user
// input can never be parsed as FTS syntax.
func ftsQuery(query string) string {
	fields := strings.Fields(query)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " OR ")
}

const selectColumns = `
	SELECT key, title, source_url, channel_title, published_at, duration_seconds,
	       tags, transcript, transcription_meta, processing_status, processing_errors,
	       version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.MediaEntry, error) {
	var entry models.MediaEntry
	var publishedAt sql.NullTime
	var tags, errs string
	var meta sql.NullString
	var status string

	err := row.Scan(&entry.Key, &entry.Title, &entry.SourceURL, &entry.ChannelTitle,
		&publishedAt, &entry.Duration, &tags, &entry.Transcript, &meta, &status,
		&errs, &entry.Version, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return nil, err
	}

	entry.ProcessingStatus = models.ProcessingStatus(status)
	if publishedAt.Valid {
		t := publishedAt.Time
		entry.PublishedAt = &t
	}
	if err := json.Unmarshal([]byte(tags), &entry.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	if err := json.Unmarshal([]byte(errs), &entry.ProcessingErrors); err != nil {
		return nil, fmt.Errorf("failed to decode processing errors: %w", err)
	}
	if meta.Valid && meta.String != "" {
		var tm models.TranscriptionMeta
		if err := json.Unmarshal([]byte(meta.String), &tm); err != nil {
			return nil, fmt.Errorf("failed to decode transcription meta: %w", err)
		}
		entry.Transcription = &tm
	}
	return &entry, nil
}

func scanEntries(rows *sql.Rows) ([]models.MediaEntry, error) {
	var entries []models.MediaEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func encodeEntry(entry *models.MediaEntry) (tags, meta, errs string, err error) {
	if entry.Tags == nil {
		entry.Tags = []string{}
	}
	if entry.ProcessingErrors == nil {
		entry.ProcessingErrors = []string{}
	}
	b, err := json.Marshal(entry.Tags)
	if err != nil {
		return "", "", "", err
	}
	tags = string(b)
	b, err = json.Marshal(entry.ProcessingErrors)
	if err != nil {
		return "", "", "", err
	}
	errs = string(b)
	if entry.Transcription != nil {
		b, err = json.Marshal(entry.Transcription)
		if err != nil {
			return "", "", "", err
		}
		meta = string(b)
	}
	return tags, meta, errs, nil
}

func mergeTags(existing, extra []string) []string {
	seen := make(map[string]bool, len(existing))
	merged := make([]string, 0, len(existing)+len(extra))
	for _, t := range existing {
		if !seen[t] {
			seen[t] = true
			merged = append(merged, t)
		}
	}
	for _, t := range extra {
		if !seen[t] {
			seen[t] = true
			merged = append(merged, t)
		}
	}
	return merged
}
