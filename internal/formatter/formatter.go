// package formatter writes migration reports listing the tracks that could not be matched on Spotify
// (JSON, CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/ang2spot/internal/models"
	"github.com/desertthunder/ang2spot/internal/shared"
	"github.com/google/renameio/v2"
	"github.com/gosimple/slug"
)

// Format is a report output format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "txt"
)

// Formats lists every supported format.
var Formats = []Format{FormatJSON, FormatCSV, FormatMarkdown, FormatText}

// ParseFormat accepts a format name or its file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: unknown report format %q (json, csv, markdown, txt)", shared.ErrInvalidArgument, s)
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	if f == FormatMarkdown {
		return ".md"
	}
	return "." + string(f)
}

// Report summarizes a finished migration session.
type Report struct {
	SessionID          string                   `json:"sessionId"`
	Status             models.Status            `json:"status"`
	StartedAt          time.Time                `json:"startedAt"`
	FinishedAt         time.Time                `json:"finishedAt"`
	TotalPlaylists     int                      `json:"totalPlaylists"`
	CompletedPlaylists int                      `json:"completedPlaylists"`
	TotalTracks        int                      `json:"totalTracks"`
	MatchedTracks      int                      `json:"matchedTracks"`
	Message            string                   `json:"message,omitempty"`
	Playlists          []models.CreatedPlaylist `json:"playlists"`
	Missing            []models.MissingTrack    `json:"missingTracks"`
	Errors             []string                 `json:"errors"`
}

// NewReport builds a report from a session snapshot. The snapshot's last update is taken as the finish time.
func NewReport(snap *models.MigrationSession) *Report {
	r := &Report{
		SessionID:          snap.SessionID,
		Status:             snap.Status,
		StartedAt:          snap.StartedAt,
		FinishedAt:         snap.UpdatedAt,
		TotalPlaylists:     snap.TotalPlaylists,
		CompletedPlaylists: snap.CompletedPlaylists,
		TotalTracks:        snap.TotalTracks,
		MatchedTracks:      snap.MatchedTracks,
		Message:            snap.Message,
		Playlists:          append([]models.CreatedPlaylist{}, snap.Playlists...),
		Missing:            append([]models.MissingTrack{}, snap.MissingTracks...),
		Errors:             append([]string{}, snap.Errors...),
	}
	return r
}

// NewReportFromRecord builds a report from an archived session.
func NewReportFromRecord(rec *models.MigrationRecord) *Report {
	r := NewReport(rec.Snapshot())
	r.FinishedAt = rec.FinishedAt()
	return r
}

// MatchRate is the percentage of searched tracks that were matched.
func (r *Report) MatchRate() float64 {
	if r.TotalTracks == 0 {
		return 0
	}
	return float64(r.MatchedTracks) / float64(r.TotalTracks) * 100
}

// missingByPlaylist groups missing tracks by playlist, keeping first-seen order.
func (r *Report) missingByPlaylist() ([]string, map[string][]models.MissingTrack) {
	var order []string
	groups := make(map[string][]models.MissingTrack)
	for _, m := range r.Missing {
		if _, ok := groups[m.Playlist]; !ok {
			order = append(order, m.Playlist)
		}
		groups[m.Playlist] = append(groups[m.Playlist], m)
	}
	return order, groups
}

// ExportToJSON encodes the full report as indented JSON.
func ExportToJSON(r *Report) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportToCSV writes one row per missing track with columns:
// Playlist, Title, Artists, Album, Duration, Best Score, Query, Reason
func ExportToCSV(r *Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Playlist", "Title", "Artists", "Album", "Duration", "Best Score", "Query", "Reason"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, m := range r.Missing {
		record := []string{
			m.Playlist,
			m.Track.Title,
			m.Track.ArtistString(),
			m.Track.Album,
			strconv.Itoa(m.Track.DurationSeconds),
			strconv.FormatFloat(m.BestScore, 'f', 2, 64),
			m.Query,
			m.Reason,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders a summary, the created playlists, and the missing tracks grouped by playlist.
func ExportToMarkdown(r *Report) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# Migration %s\n\n", r.SessionID)
	fmt.Fprintf(&buf, "**Status**: %s\n", r.Status)
	if !r.StartedAt.IsZero() {
		fmt.Fprintf(&buf, "**Started**: %s\n", r.StartedAt.UTC().Format(time.RFC3339))
	}
	if !r.FinishedAt.IsZero() {
		fmt.Fprintf(&buf, "**Finished**: %s\n", r.FinishedAt.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&buf, "**Playlists**: %d of %d\n", r.CompletedPlaylists, r.TotalPlaylists)
	fmt.Fprintf(&buf, "**Tracks matched**: %d of %d (%.1f%%)\n\n", r.MatchedTracks, r.TotalTracks, r.MatchRate())
	if r.Message != "" {
		fmt.Fprintf(&buf, "> %s\n\n", r.Message)
	}

	if len(r.Playlists) > 0 {
		buf.WriteString("## Created Playlists\n\n")
		for _, p := range r.Playlists {
			name := p.Name
			if p.URL != "" {
				name = fmt.Sprintf("[%s](%s)", p.Name, p.URL)
			}
			fmt.Fprintf(&buf, "- %s (%d tracks)\n", name, p.TracksAdded)
		}
		buf.WriteString("\n")
	}

	buf.WriteString("## Missing Tracks\n\n")
	if len(r.Missing) == 0 {
		buf.WriteString("Every track was matched.\n")
	}
	order, groups := r.missingByPlaylist()
	for _, playlist := range order {
		fmt.Fprintf(&buf, "### %s\n\n", playlist)
		for i, m := range groups[playlist] {
			fmt.Fprintf(&buf, "%d. %s [%s] - %s\n", i+1, m.Track.String(), shared.FormatDuration(m.Track.DurationSeconds), m.Reason)
		}
		buf.WriteString("\n")
	}

	if len(r.Errors) > 0 {
		buf.WriteString("## Errors\n\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&buf, "- %s\n", e)
		}
	}

	return buf.Bytes(), nil
}

// ExportToText renders a plain text summary followed by one line per missing track.
func ExportToText(r *Report) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Migration: %s\n", r.SessionID)
	fmt.Fprintf(&buf, "Status: %s\n", r.Status)
	fmt.Fprintf(&buf, "Playlists: %d/%d\n", r.CompletedPlaylists, r.TotalPlaylists)
	fmt.Fprintf(&buf, "Matched: %d/%d\n", r.MatchedTracks, r.TotalTracks)
	fmt.Fprintf(&buf, "Missing: %d\n\n", len(r.Missing))

	for i, m := range r.Missing {
		fmt.Fprintf(&buf, "%d. [%s] %s\n", i+1, m.Playlist, m.Track.String())
	}
	for _, e := range r.Errors {
		fmt.Fprintf(&buf, "error: %s\n", e)
	}

	return buf.Bytes(), nil
}

// Export renders r in format f.
func Export(r *Report, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return ExportToJSON(r)
	case FormatCSV:
		return ExportToCSV(r)
	case FormatMarkdown:
		return ExportToMarkdown(r)
	case FormatText:
		return ExportToText(r)
	}
	return nil, fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidArgument, f)
}

// FileName returns a slugged file name for the report, named after the playlist for single-playlist sessions.
//
// Example: missing-tracks-road-trip-2026-01-02.csv
func FileName(r *Report, f Format) string {
	label := r.SessionID
	if len(label) > 8 {
		label = label[:8]
	}
	if len(r.Playlists) == 1 {
		label = r.Playlists[0].Name
	}

	date := r.FinishedAt
	if date.IsZero() {
		date = time.Now()
	}
	name := slug.Make(fmt.Sprintf("missing tracks %s %s", label, date.UTC().Format("2006-01-02")))
	return name + f.Extension()
}

// WriteReport renders r and writes it atomically into dir. The file name defaults to [FileName].
func WriteReport(r *Report, f Format, dir, name string) (string, error) {
	data, err := Export(r, f)
	if err != nil {
		return "", err
	}

	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if name == "" {
		name = FileName(r, f)
	}

	path := filepath.Join(dir, name)
	if err := renameio.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
