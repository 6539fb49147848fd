// Package repositories implements SQLite persistence for all domain entities.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// All repositories support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
//
// Key Implementations:
//   - [UserRepository] : Spotify application owners; also the ciphertext store behind the vault
//   - [PlaylistRepository] : playlist cache keyed by (source, source id) with upserts on re-extraction
//   - [ProfileRepository] : recently used Anghami profiles
//   - [MigrationRepository] : archived final snapshots of migration sessions
//
// Lookups that find nothing wrap [shared.ErrNotFound].
package repositories
