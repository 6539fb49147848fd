package models

import (
	"fmt"
	"time"
)

// MigrationRecord is the archived final snapshot of a migration session.
type MigrationRecord struct {
	entity
	snapshot   *MigrationSession
	finishedAt time.Time
}

// NewMigrationRecord archives a terminal snapshot. The snapshot is copied.
func NewMigrationRecord(sequence int, snap *MigrationSession) *MigrationRecord {
	r := &MigrationRecord{entity: newEntity(sequence), snapshot: snap.Clone()}
	r.finishedAt = snap.UpdatedAt
	if r.finishedAt.IsZero() {
		r.finishedAt = r.createdAt
	}
	return r
}

func (r *MigrationRecord) SessionID() string { return r.snapshot.SessionID }
func (r *MigrationRecord) UserID() string { return r.snapshot.UserID }
func (r *MigrationRecord) Status() Status { return r.snapshot.Status }
func (r *MigrationRecord) StartedAt() time.Time { return r.snapshot.StartedAt }
func (r *MigrationRecord) FinishedAt() time.Time { return r.finishedAt }

// Snapshot returns a copy of the archived session.
func (r *MigrationRecord) Snapshot() *MigrationSession { return r.snapshot.Clone() }

// SetFinishedAt overrides the completion time read from storage.
func (r *MigrationRecord) SetFinishedAt(t time.Time) { r.finishedAt = t }

// Validate requires a terminal snapshot that satisfies the session invariants.
func (r *MigrationRecord) Validate() error {
	if r.snapshot == nil {
		return fmt.Errorf("snapshot is required")
	}
	if !r.snapshot.Status.IsTerminal() {
		return fmt.Errorf("only terminal sessions can be archived, got %s", r.snapshot.Status)
	}
	return r.snapshot.Validate()
}
