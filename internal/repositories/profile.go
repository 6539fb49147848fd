package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/ang2spot/internal/models"
	"github.com/desertthunder/ang2spot/internal/shared"
)

// HistoryLimit is the number of profiles returned by [ProfileRepository.Recent].
const HistoryLimit = 10

const profileColumns = `
	id, sequence, profile_url, profile_id, display_name, avatar_url, follower_count,
	usage_count, last_used, created_at, updated_at, deleted_at
`

// ProfileRepository stores recently used Anghami profiles.
type ProfileRepository struct {
	db *sql.DB
}

// NewProfileRepository creates a new ProfileRepository with the given database connection
func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func profileNotFound(id string) error {
	return fmt.Errorf("%w: profile not found or already deleted: %s", shared.ErrNotFound, id)
}

// Create inserts a new history entry with generated ID and sequence
func (r *ProfileRepository) Create(entry *models.ProfileEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "profile_history")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	entry.SetSequence(sequence)
	entry.SetID(shared.GenerateID())

	p := entry.Profile()
	query := `INSERT INTO profile_history (` + profileColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`

	_, err = r.db.Exec(query,
		entry.ID(), sequence, p.ProfileURL, p.ProfileID, p.DisplayName, p.AvatarURL, p.FollowerCount,
		entry.UsageCount(), entry.LastUsed(), entry.CreatedAt(), entry.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

// Record marks p as used now: a new entry starts at one use, an existing (or deleted) one is refreshed
// and its usage count incremented.
func (r *ProfileRepository) Record(p models.ProfileData) (*models.ProfileEntry, error) {
	if p.ProfileURL == "" {
		return nil, fmt.Errorf("%w: profile url is required", shared.ErrInvalidInput)
	}

	sequence, err := NextSequence(r.db, "profile_history")
	if err != nil {
		return nil, fmt.Errorf("failed to generate sequence: %w", err)
	}

	now := time.Now()
	query := `
		INSERT INTO profile_history (` + profileColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?, NULL)
		ON CONFLICT (profile_url) DO UPDATE SET
			profile_id = excluded.profile_id,
			display_name = excluded.display_name,
			avatar_url = excluded.avatar_url,
			follower_count = excluded.follower_count,
			usage_count = CASE WHEN profile_history.deleted_at IS NULL THEN profile_history.usage_count + 1 ELSE 1 END,
			last_used = excluded.last_used,
			updated_at = excluded.updated_at,
			deleted_at = NULL
	`

	_, err = r.db.Exec(query,
		shared.GenerateID(), sequence, p.ProfileURL, p.ProfileID, p.DisplayName, p.AvatarURL, p.FollowerCount,
		now, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record profile: %w", err)
	}

	return r.GetByURL(p.ProfileURL)
}

// Get retrieves a history entry by ID
func (r *ProfileRepository) Get(id string) (*models.ProfileEntry, error) {
	query := `SELECT ` + profileColumns + ` FROM profile_history WHERE id = ? AND deleted_at IS NULL`

	entry, err := r.scanOne(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, profileNotFound(id)
	}
	return entry, err
}

// GetByURL retrieves a history entry by profile URL
func (r *ProfileRepository) GetByURL(profileURL string) (*models.ProfileEntry, error) {
	query := `SELECT ` + profileColumns + ` FROM profile_history WHERE profile_url = ? AND deleted_at IS NULL`

	entry, err := r.scanOne(r.db.QueryRow(query, profileURL))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, profileNotFound(profileURL)
	}
	return entry, err
}

// Update modifies an existing history entry
func (r *ProfileRepository) Update(entry *models.ProfileEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	entry.SetUpdatedAt(now)
	p := entry.Profile()

	query := `
		UPDATE profile_history
		SET profile_id = ?, display_name = ?, avatar_url = ?, follower_count = ?,
			usage_count = ?, last_used = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		p.ProfileID, p.DisplayName, p.AvatarURL, p.FollowerCount,
		entry.UsageCount(), entry.LastUsed(), now, entry.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return checkAffected(result, profileNotFound(entry.ID()))
}

// Delete soft-deletes a history entry by ID
func (r *ProfileRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE profile_history SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return checkAffected(result, profileNotFound(id))
}

// List retrieves history entries, most recently used first.
//
// Supported criteria: "limit" (int).
func (r *ProfileRepository) List(criteria map[string]any) ([]*models.ProfileEntry, error) {
	query := `SELECT ` + profileColumns + ` FROM profile_history WHERE deleted_at IS NULL ORDER BY last_used DESC, sequence DESC`
	args := []any{}

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	var entries []*models.ProfileEntry
	for rows.Next() {
		entry, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

// Recent returns the [HistoryLimit] most recently used profiles.
func (r *ProfileRepository) Recent() ([]*models.ProfileEntry, error) {
	return r.List(map[string]any{"limit": HistoryLimit})
}

func (r *ProfileRepository) scanOne(row *sql.Row) (*models.ProfileEntry, error) {
	return scanProfile(row)
}

func (r *ProfileRepository) scanRow(rows *sql.Rows) (*models.ProfileEntry, error) {
	entry, err := scanProfile(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan profile: %w", err)
	}
	return entry, nil
}

func scanProfile(s scanner) (*models.ProfileEntry, error) {
	var (
		id                   string
		sequence, usage      int
		p                    models.ProfileData
		lastUsed             time.Time
		createdAt, updatedAt time.Time
		deletedAt            sql.NullTime
	)

	err := s.Scan(&id, &sequence, &p.ProfileURL, &p.ProfileID, &p.DisplayName, &p.AvatarURL, &p.FollowerCount,
		&usage, &lastUsed, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	p.IsValid = true

	entry := models.NewProfileEntry(sequence, p)
	entry.SetID(id)
	entry.SetUsageCount(usage)
	entry.SetLastUsed(lastUsed)
	entry.SetCreatedAt(createdAt)
	entry.SetUpdatedAt(updatedAt)
	entry.SetDeletedAt(timePtr(deletedAt))
	return entry, nil
}
