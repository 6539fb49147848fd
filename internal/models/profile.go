package models

import (
	"fmt"
	"time"
)

// ProfileData describes an Anghami profile page.
//
// When IsValid is false ErrorMessage explains why and the remaining fields may be empty.
type ProfileData struct {
	ProfileURL    string `json:"profile_url"`
	ProfileID     string `json:"profile_id"`
	DisplayName   string `json:"display_name"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	FollowerCount int    `json:"follower_count"`
	IsValid       bool   `json:"is_valid"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

// ProfileEntry is a recently used profile.
type ProfileEntry struct {
	entity
	profile    ProfileData
	usageCount int
	lastUsed   time.Time
}

// NewProfileEntry records a first use of p.
func NewProfileEntry(sequence int, p ProfileData) *ProfileEntry {
	e := newEntity(sequence)
	return &ProfileEntry{entity: e, profile: p, usageCount: 1, lastUsed: e.createdAt}
}

func (p *ProfileEntry) Profile() ProfileData { return p.profile }
func (p *ProfileEntry) ProfileURL() string { return p.profile.ProfileURL }
func (p *ProfileEntry) UsageCount() int { return p.usageCount }
func (p *ProfileEntry) LastUsed() time.Time { return p.lastUsed }

func (p *ProfileEntry) SetProfile(d ProfileData) { p.profile = d }
func (p *ProfileEntry) SetUsageCount(n int) { p.usageCount = n }
func (p *ProfileEntry) SetLastUsed(t time.Time) { p.lastUsed = t }

// Validate checks required fields.
func (p *ProfileEntry) Validate() error {
	if p.profile.ProfileURL == "" {
		return fmt.Errorf("profile url is required")
	}
	if p.usageCount < 1 {
		return fmt.Errorf("usage count must be positive")
	}
	return nil
}
