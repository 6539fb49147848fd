package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/ang2spot/internal/models"
	"github.com/desertthunder/ang2spot/internal/shared"
)

const playlistColumns = `
	id, sequence, source, source_id, profile_url, name, owner, description,
	track_count, is_owned, is_followed, cover_art_url, created_at, updated_at, deleted_at
`

// PlaylistRepository implements models.Repository[*models.PersistedPlaylist] for the playlist cache.
//
// Rows are unique per (source, source_id); [PlaylistRepository.Upsert] refreshes a row on re-extraction.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Create inserts a new playlist into the database with generated ID and sequence
func (r *PlaylistRepository) Create(playlist *models.PersistedPlaylist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "playlists")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	playlist.SetSequence(sequence)
	playlist.SetID(shared.GenerateID())

	rec := playlist.Record()
	query := `INSERT INTO playlists (` + playlistColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`

	_, err = r.db.Exec(query,
		playlist.ID(),
		sequence,
		rec.Source,
		rec.ID,
		playlist.ProfileURL(),
		rec.Name,
		rec.Owner,
		rec.Description,
		rec.TrackCount,
		rec.IsOwned,
		rec.IsFollowed,
		rec.CoverArtURL,
		playlist.CreatedAt(),
		playlist.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}

	return nil
}

// Upsert inserts rec or refreshes the cached row with the same source and id, restoring it if soft-deleted.
//
// An empty profileURL keeps the profile already recorded for the row.
func (r *PlaylistRepository) Upsert(profileURL string, rec models.PlaylistRecord) (*models.PersistedPlaylist, error) {
	playlist := models.NewPersistedPlaylist(0, profileURL, rec)
	if err := playlist.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "playlists")
	if err != nil {
		return nil, fmt.Errorf("failed to generate sequence: %w", err)
	}

	now := time.Now()
	query := `
		INSERT INTO playlists (` + playlistColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
		ON CONFLICT (source, source_id) DO UPDATE SET
			profile_url = CASE WHEN excluded.profile_url != '' THEN excluded.profile_url ELSE playlists.profile_url END,
			name = excluded.name,
			owner = excluded.owner,
			description = excluded.description,
			track_count = excluded.track_count,
			is_owned = excluded.is_owned,
			is_followed = excluded.is_followed,
			cover_art_url = excluded.cover_art_url,
			updated_at = excluded.updated_at,
			deleted_at = NULL
	`

	_, err = r.db.Exec(query,
		shared.GenerateID(), sequence, rec.Source, rec.ID, profileURL, rec.Name, rec.Owner, rec.Description,
		rec.TrackCount, rec.IsOwned, rec.IsFollowed, rec.CoverArtURL, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert playlist: %w", err)
	}

	return r.GetBySourceID(rec.Source, rec.ID)
}

// Get retrieves a playlist by ID, excluding soft-deleted playlists
func (r *PlaylistRepository) Get(id string) (*models.PersistedPlaylist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE id = ? AND deleted_at IS NULL`

	playlist, err := r.scanOne(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, id)
	}
	return playlist, err
}

// GetBySourceID retrieves a playlist by its source and the id it has there
func (r *PlaylistRepository) GetBySourceID(source models.Source, sourceID string) (*models.PersistedPlaylist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE source = ? AND source_id = ? AND deleted_at IS NULL`

	playlist, err := r.scanOne(r.db.QueryRow(query, source, sourceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s playlist %s", shared.ErrNotFound, source, sourceID)
	}
	return playlist, err
}

// TrackCounts returns the cached track count for each of the given source ids that is in the cache.
func (r *PlaylistRepository) TrackCounts(source models.Source, sourceIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(sourceIDs))
	for _, id := range sourceIDs {
		var n int
		err := r.db.QueryRow(
			`SELECT track_count FROM playlists WHERE source = ? AND source_id = ? AND deleted_at IS NULL`,
			source, id,
		).Scan(&n)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query track count: %w", err)
		}
		counts[id] = n
	}
	return counts, nil
}

// Update modifies an existing playlist in the database
func (r *PlaylistRepository) Update(playlist *models.PersistedPlaylist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	playlist.SetUpdatedAt(now)
	rec := playlist.Record()

	query := `
		UPDATE playlists
		SET profile_url = ?, name = ?, owner = ?, description = ?, track_count = ?,
			is_owned = ?, is_followed = ?, cover_art_url = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		playlist.ProfileURL(),
		rec.Name,
		rec.Owner,
		rec.Description,
		rec.TrackCount,
		rec.IsOwned,
		rec.IsFollowed,
		rec.CoverArtURL,
		now,
		playlist.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}

	return checkAffected(result, fmt.Errorf("%w: playlist not found or already deleted: %s", shared.ErrNotFound, playlist.ID()))
}

// Delete soft-deletes a playlist by ID
func (r *PlaylistRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE playlists SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}

	return checkAffected(result, fmt.Errorf("%w: playlist not found or already deleted: %s", shared.ErrNotFound, id))
}

// List retrieves all playlists matching the given criteria, excluding soft-deleted playlists.
//
// Supported criteria: "profile_url" (string), "source" ([models.Source] or string).
func (r *PlaylistRepository) List(criteria map[string]any) ([]*models.PersistedPlaylist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE deleted_at IS NULL`
	args := []any{}

	if profileURL, ok := criteria["profile_url"].(string); ok && profileURL != "" {
		query += " AND profile_url = ?"
		args = append(args, profileURL)
	}

	switch source := criteria["source"].(type) {
	case models.Source:
		query += " AND source = ?"
		args = append(args, string(source))
	case string:
		if source != "" {
			query += " AND source = ?"
			args = append(args, source)
		}
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*models.PersistedPlaylist
	for rows.Next() {
		playlist, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, playlist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return playlists, nil
}

// scanOne scans a single row into a [models.PersistedPlaylist]
func (r *PlaylistRepository) scanOne(row *sql.Row) (*models.PersistedPlaylist, error) {
	return scanPlaylist(row)
}

// scanRow scans the current row of a result set into a [models.PersistedPlaylist]
func (r *PlaylistRepository) scanRow(rows *sql.Rows) (*models.PersistedPlaylist, error) {
	playlist, err := scanPlaylist(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}
	return playlist, nil
}

func scanPlaylist(s scanner) (*models.PersistedPlaylist, error) {
	var (
		id, profileURL       string
		sequence             int
		source               string
		rec                  models.PlaylistRecord
		createdAt, updatedAt time.Time
		deletedAt            sql.NullTime
	)

	err := s.Scan(&id, &sequence, &source, &rec.ID, &profileURL, &rec.Name, &rec.Owner, &rec.Description,
		&rec.TrackCount, &rec.IsOwned, &rec.IsFollowed, &rec.CoverArtURL, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	rec.Source = models.Source(source)

	playlist := models.NewPersistedPlaylist(sequence, profileURL, rec)
	playlist.SetID(id)
	playlist.SetCreatedAt(createdAt)
	playlist.SetUpdatedAt(updatedAt)
	playlist.SetDeletedAt(timePtr(deletedAt))
	return playlist, nil
}
