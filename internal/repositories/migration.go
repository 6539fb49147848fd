package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/ang2spot/internal/models"
	"github.com/desertthunder/ang2spot/internal/shared"
)

const migrationColumns = `
	id, sequence, session_id, user_id, status, total_playlists, completed_playlists,
	total_tracks, matched_tracks, created_playlists, message, snapshot,
	started_at, finished_at, created_at, updated_at, deleted_at
`

// MigrationRepository implements models.Repository[*models.MigrationRecord] for the session archive.
//
// The count columns duplicate the JSON snapshot so history can be filtered without decoding it.
type MigrationRepository struct {
	db *sql.DB
}

// NewMigrationRepository creates a new MigrationRepository with the given database connection
func NewMigrationRepository(db *sql.DB) *MigrationRepository {
	return &MigrationRepository{db: db}
}

func migrationNotFound(id string) error {
	return fmt.Errorf("%w: migration not found or already deleted: %s", shared.ErrNotFound, id)
}

// Create archives a terminal session snapshot with generated ID and sequence
func (r *MigrationRepository) Create(record *models.MigrationRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "migrations")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	record.SetSequence(sequence)
	record.SetID(shared.GenerateID())

	snap := record.Snapshot()
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	query := `INSERT INTO migrations (` + migrationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`

	_, err = r.db.Exec(query,
		record.ID(),
		sequence,
		snap.SessionID,
		snap.UserID,
		snap.Status,
		snap.TotalPlaylists,
		snap.CompletedPlaylists,
		snap.TotalTracks,
		snap.MatchedTracks,
		snap.CreatedPlaylists,
		snap.Message,
		string(payload),
		snap.StartedAt,
		record.FinishedAt(),
		record.CreatedAt(),
		record.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert migration: %w", err)
	}

	return nil
}

// Archive stores a terminal session snapshot and returns the new record.
func (r *MigrationRepository) Archive(snap *models.MigrationSession) (*models.MigrationRecord, error) {
	record := models.NewMigrationRecord(0, snap)
	if err := r.Create(record); err != nil {
		return nil, err
	}
	return record, nil
}

// Get retrieves an archived migration by ID, excluding soft-deleted rows
func (r *MigrationRepository) Get(id string) (*models.MigrationRecord, error) {
	query := `SELECT ` + migrationColumns + ` FROM migrations WHERE id = ? AND deleted_at IS NULL`

	record, err := r.scanOne(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, migrationNotFound(id)
	}
	return record, err
}

// GetBySessionID retrieves an archived migration by its session id
func (r *MigrationRepository) GetBySessionID(sessionID string) (*models.MigrationRecord, error) {
	query := `SELECT ` + migrationColumns + ` FROM migrations WHERE session_id = ? AND deleted_at IS NULL`

	record, err := r.scanOne(r.db.QueryRow(query, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, sessionID)
	}
	return record, err
}

// Update rewrites the archived snapshot of an existing record.
func (r *MigrationRepository) Update(record *models.MigrationRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	record.SetUpdatedAt(now)

	snap := record.Snapshot()
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	query := `
		UPDATE migrations
		SET status = ?, total_playlists = ?, completed_playlists = ?, total_tracks = ?,
			matched_tracks = ?, created_playlists = ?, message = ?, snapshot = ?,
			finished_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		snap.Status, snap.TotalPlaylists, snap.CompletedPlaylists, snap.TotalTracks,
		snap.MatchedTracks, snap.CreatedPlaylists, snap.Message, string(payload),
		record.FinishedAt(), now, record.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update migration: %w", err)
	}

	return checkAffected(result, migrationNotFound(record.ID()))
}

// Delete soft-deletes an archived migration by ID
func (r *MigrationRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE migrations SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete migration: %w", err)
	}

	return checkAffected(result, migrationNotFound(id))
}

// List retrieves archived migrations, newest first.
//
// Supported criteria: "user_id" (string), "status" ([models.Status] or string), "limit" (int).
func (r *MigrationRepository) List(criteria map[string]any) ([]*models.MigrationRecord, error) {
	query := `SELECT ` + migrationColumns + ` FROM migrations WHERE deleted_at IS NULL`
	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	switch status := criteria["status"].(type) {
	case models.Status:
		query += " AND status = ?"
		args = append(args, string(status))
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	var records []*models.MigrationRecord
	for rows.Next() {
		record, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

func (r *MigrationRepository) scanOne(row *sql.Row) (*models.MigrationRecord, error) {
	return scanMigration(row)
}

func (r *MigrationRepository) scanRow(rows *sql.Rows) (*models.MigrationRecord, error) {
	record, err := scanMigration(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan migration: %w", err)
	}
	return record, nil
}

// scanMigration restores a record from its JSON snapshot; the count columns are not read back.
func scanMigration(s scanner) (*models.MigrationRecord, error) {
	var (
		id, sessionID, userID, status, message string
		sequence                               int
		totalPlaylists, completedPlaylists     int
		totalTracks, matchedTracks, created    int
		payload                                string
		startedAt, finishedAt                  time.Time
		createdAt, updatedAt                   time.Time
		deletedAt                              sql.NullTime
	)

	err := s.Scan(&id, &sequence, &sessionID, &userID, &status, &totalPlaylists, &completedPlaylists,
		&totalTracks, &matchedTracks, &created, &message, &payload,
		&startedAt, &finishedAt, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	var snap models.MigrationSession
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for session %s: %w", sessionID, err)
	}

	record := models.NewMigrationRecord(sequence, &snap)
	record.SetID(id)
	record.SetFinishedAt(finishedAt)
	record.SetCreatedAt(createdAt)
	record.SetUpdatedAt(updatedAt)
	record.SetDeletedAt(timePtr(deletedAt))
	return record, nil
}
