package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/ang2spot/internal/models"
	"github.com/desertthunder/ang2spot/internal/shared"
)

const userColumns = `
	id, sequence, display_name, spotify_client_id, encrypted_client_secret,
	encrypted_access_token, encrypted_refresh_token, token_expires_at,
	spotify_verified, last_used, created_at, updated_at, deleted_at
`

// UserRepository implements [models.Repository] for [models.User] persistence.
//
// It also stores the vault ciphertext of each user's Spotify client secret.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func userNotFound(id string) error {
	return fmt.Errorf("%w: user not found or already deleted: %s", shared.ErrNotFound, id)
}

// Create inserts a new user with a generated sequence. An ID already set on the user is kept.
func (r *UserRepository) Create(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "users")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	user.SetSequence(sequence)

	if user.ID() == "" {
		user.SetID(shared.GenerateID())
	}

	query := `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`

	_, err = r.db.Exec(query,
		user.ID(),
		sequence,
		user.DisplayName(),
		user.SpotifyClientID(),
		user.EncryptedSecret(),
		user.EncryptedAccessToken(),
		user.EncryptedRefreshToken(),
		nullTime(user.TokenExpiresAt()),
		user.SpotifyVerified(),
		nullTime(user.LastUsed()),
		user.CreatedAt(),
		user.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// Get retrieves a user by ID, excluding soft-deleted users
func (r *UserRepository) Get(id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ? AND deleted_at IS NULL`

	user, err := r.scanOne(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, userNotFound(id)
	}
	return user, err
}

// Update modifies profile fields, ciphertext columns and verification state.
func (r *UserRepository) Update(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	user.SetUpdatedAt(now)

	query := `
		UPDATE users
		SET display_name = ?, spotify_client_id = ?, encrypted_client_secret = ?,
			encrypted_access_token = ?, encrypted_refresh_token = ?, token_expires_at = ?,
			spotify_verified = ?, last_used = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		user.DisplayName(),
		user.SpotifyClientID(),
		user.EncryptedSecret(),
		user.EncryptedAccessToken(),
		user.EncryptedRefreshToken(),
		nullTime(user.TokenExpiresAt()),
		user.SpotifyVerified(),
		nullTime(user.LastUsed()),
		now,
		user.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	return checkAffected(result, userNotFound(user.ID()))
}

// Delete soft-deletes a user and wipes every stored ciphertext.
func (r *UserRepository) Delete(id string) error {
	query := `
		UPDATE users
		SET deleted_at = ?, encrypted_client_secret = '', encrypted_access_token = '',
			encrypted_refresh_token = '', token_expires_at = NULL
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	return checkAffected(result, userNotFound(id))
}

// List retrieves all users matching the given criteria, excluding soft-deleted users.
//
// Supported criteria: "client_id" (string), "verified" (bool).
func (r *UserRepository) List(criteria map[string]any) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE deleted_at IS NULL`
	args := []any{}

	if clientID, ok := criteria["client_id"].(string); ok && clientID != "" {
		query += " AND spotify_client_id = ?"
		args = append(args, clientID)
	}

	if verified, ok := criteria["verified"].(bool); ok {
		query += " AND spotify_verified = ?"
		args = append(args, verified)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return users, nil
}

// SaveTokens stores OAuth token ciphertext and marks the user as verified.
func (r *UserRepository) SaveTokens(id, encryptedAccess, encryptedRefresh string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET encrypted_access_token = ?, encrypted_refresh_token = ?, token_expires_at = ?,
			spotify_verified = 1, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, encryptedAccess, encryptedRefresh, expiresAt, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to save tokens: %w", err)
	}
	return checkAffected(result, userNotFound(id))
}

// Touch records that the user's credentials were just used.
func (r *UserRepository) Touch(id string) error {
	result, err := r.db.Exec(`UPDATE users SET last_used = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to touch user: %w", err)
	}
	return checkAffected(result, userNotFound(id))
}

// GetCiphertext returns the stored client secret ciphertext.
func (r *UserRepository) GetCiphertext(userID string) (string, error) {
	var ct string
	err := r.db.QueryRow(`SELECT encrypted_client_secret FROM users WHERE id = ? AND deleted_at IS NULL`, userID).Scan(&ct)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && ct == "") {
		return "", fmt.Errorf("%w: no stored secret for user %s", shared.ErrNotFound, userID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query secret: %w", err)
	}
	return ct, nil
}

// PutCiphertext replaces the stored client secret ciphertext.
func (r *UserRepository) PutCiphertext(userID, ciphertext string) error {
	result, err := r.db.Exec(
		`UPDATE users SET encrypted_client_secret = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		ciphertext, time.Now(), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to store secret: %w", err)
	}
	return checkAffected(result, userNotFound(userID))
}

// DeleteCiphertext clears the stored client secret ciphertext.
func (r *UserRepository) DeleteCiphertext(userID string) error {
	result, err := r.db.Exec(
		`UPDATE users SET encrypted_client_secret = '', updated_at = ? WHERE id = ? AND deleted_at IS NULL AND encrypted_client_secret != ''`,
		time.Now(), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove secret: %w", err)
	}
	return checkAffected(result, fmt.Errorf("%w: no stored secret for user %s", shared.ErrNotFound, userID))
}

// scanOne scans a single row into a [models.User]
func (r *UserRepository) scanOne(row *sql.Row) (*models.User, error) {
	return scanUser(row)
}

// scanRow scans the current row of a result set into a [models.User]
func (r *UserRepository) scanRow(rows *sql.Rows) (*models.User, error) {
	user, err := scanUser(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return user, nil
}

func scanUser(s scanner) (*models.User, error) {
	var (
		id, displayName, clientID string
		secret, access, refresh   string
		sequence                  int
		verified                  bool
		tokenExpiresAt, lastUsed  sql.NullTime
		createdAt, updatedAt      time.Time
		deletedAt                 sql.NullTime
	)

	err := s.Scan(&id, &sequence, &displayName, &clientID, &secret, &access, &refresh,
		&tokenExpiresAt, &verified, &lastUsed, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	user := models.NewUser(sequence, displayName, clientID)
	user.SetID(id)
	user.SetEncryptedSecret(secret)
	user.SetEncryptedTokens(access, refresh, timePtr(tokenExpiresAt))
	user.SetSpotifyVerified(verified)
	user.SetLastUsed(timePtr(lastUsed))
	user.SetCreatedAt(createdAt)
	user.SetUpdatedAt(updatedAt)
	user.SetDeletedAt(timePtr(deletedAt))
	return user, nil
}
