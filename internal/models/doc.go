// Package models defines domain entities and persistence interfaces for the ang2spot migrator.
//
// The package contains two categories of types:
//
// 1. Value types exchanged between the extractor, matcher and orchestrator:
//   - [SourceTrack] : a track read from an Anghami playlist page
//   - [DestinationTrack] : a Spotify search result
//   - [MatchCandidate] : the accepted pairing of the two with its confidence score
//   - [PlaylistRecord] and [SourcePlaylist] : playlist metadata with and without tracks
//   - [ProfileData] : a validated Anghami profile
//   - [MigrationSession] : the live state of one migration run
//
// 2. Persistent entities stored in SQLite:
//   - [User] : a Spotify application owner with vault-encrypted credentials
//   - [PersistedPlaylist] : cached playlist metadata keyed by source and source id
//   - [ProfileEntry] : a recently used Anghami profile
//   - [MigrationRecord] : the archived final snapshot of a migration session
//
// All persistent entities implement [Model]; [Repository] describes the CRUD operations
// that the repositories package provides for them.
package models
