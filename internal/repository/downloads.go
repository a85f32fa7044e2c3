// Package repository provides database operations for the download registry.
package repository

import (
	"context"

	"github.com/clipdeck/kick-clips-go/internal/db"
	"github.com/clipdeck/kick-clips-go/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of *pgxpool.Pool used by the repository.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// DownloadRepository persists completed downloads.
type DownloadRepository struct {
	db DBTX
}

// NewDownloadRepository creates a new DownloadRepository.
func NewDownloadRepository(conn DBTX) *DownloadRepository {
	return &DownloadRepository{db: conn}
}

// Save stores a completed download. Saving a clip that is already registered
// replaces the previous record.
func (r *DownloadRepository) Save(ctx context.Context, record *models.DownloadRecord) error {
	query := `
		INSERT INTO downloads (clip_id, title, channel_name, thumbnail_url, local_uri, downloaded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (clip_id) DO UPDATE SET
			title = EXCLUDED.title,
			channel_name = EXCLUDED.channel_name,
			thumbnail_url = EXCLUDED.thumbnail_url,
			local_uri = EXCLUDED.local_uri,
			downloaded_at = EXCLUDED.downloaded_at
	`
	_, err := r.db.Exec(ctx, query,
		record.ClipID, record.Title, record.ChannelName, record.ThumbnailURL,
		record.LocalURI, record.DownloadedAt,
	)
	return db.WrapError(err, "save download")
}

// Delete removes the record of clipID. It returns db.ErrNotFound when absent.
func (r *DownloadRepository) Delete(ctx context.Context, clipID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM downloads WHERE clip_id = $1`, clipID)
	if err != nil {
		return db.WrapError(err, "delete download")
	}
	if tag.RowsAffected() == 0 {
		return db.WrapError(pgx.ErrNoRows, "delete download")
	}
	return nil
}

// List returns every record, newest first.
func (r *DownloadRepository) List(ctx context.Context) ([]*models.DownloadRecord, error) {
	query := `
		SELECT clip_id, title, channel_name, thumbnail_url, local_uri, downloaded_at
		FROM downloads
		ORDER BY downloaded_at DESC, clip_id
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, db.WrapError(err, "list downloads")
	}
	defer rows.Close()

	var records []*models.DownloadRecord
	for rows.Next() {
		var rec models.DownloadRecord
		if err := rows.Scan(
			&rec.ClipID, &rec.Title, &rec.ChannelName, &rec.ThumbnailURL, &rec.LocalURI, &rec.DownloadedAt,
		); err != nil {
			return nil, db.WrapError(err, "scan download")
		}
		records = append(records, &rec)
	}
	return records, db.WrapError(rows.Err(), "list downloads")
}

// Ping checks database connectivity.
func (r *DownloadRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
