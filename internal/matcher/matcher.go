// Package matcher scores Spotify search results against tracks extracted from Anghami.
package matcher

import (
	"fmt"
	"strings"

	"github.com/desertthunder/ang2spot/internal/models"
)

const (
	DefaultThreshold  = 0.8
	DefaultTieEpsilon = 0.02
)

// Options tunes a [Matcher].
type Options struct {
	// Threshold is the minimum score, in (0, 1], a candidate needs to be accepted.
	Threshold float64
	// TieEpsilon is the score window within which the duration tie-break applies.
	TieEpsilon float64
	// IncludeAlbum adds an album: term to search queries.
	IncludeAlbum bool
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{Threshold: DefaultThreshold, TieEpsilon: DefaultTieEpsilon}
}

// Matcher picks the best Spotify candidate for a source track.
type Matcher struct {
	opts Options
}

// New creates a matcher. Out of range values fall back to the defaults.
func New(opts Options) *Matcher {
	if opts.Threshold <= 0 || opts.Threshold > 1 {
		opts.Threshold = DefaultThreshold
	}
	if opts.TieEpsilon < 0 || opts.TieEpsilon >= 1 {
		opts.TieEpsilon = DefaultTieEpsilon
	}
	return &Matcher{opts: opts}
}

// Threshold returns the acceptance threshold.
func (m *Matcher) Threshold() float64 { return m.opts.Threshold }

// Score rates how well candidate matches src, in [0, 1].
//
// The candidate's title is compared together with each of its artists against the source title and
// primary artist; the best pairing wins, so artist credit order does not matter.
func (m *Matcher) Score(src models.SourceTrack, candidate models.DestinationTrack) float64 {
	left := joinNonEmpty(Normalize(src.Title), NormalizeArtist(src.PrimaryArtist()))
	title := Normalize(candidate.Title)

	artists := candidate.Artists
	if len(artists) == 0 {
		artists = []string{""}
	}

	var best float64
	for _, artist := range artists {
		best = max(best, TokenSetRatio(left, joinNonEmpty(title, NormalizeArtist(artist))))
	}
	return best
}

// FindBestMatch scores every candidate and returns the best one.
//
// Candidates scoring within TieEpsilon of the best are ordered by how close their duration is to the
// source's; the tie-break is skipped when the source duration is unknown. ok is false when no candidate
// reaches the threshold, in which case the returned value still carries the best score seen so callers
// can report it. A candidate below the threshold is never returned with ok set.
func (m *Matcher) FindBestMatch(src models.SourceTrack, candidates []models.DestinationTrack) (models.MatchCandidate, bool) {
	result := models.MatchCandidate{SourceTrack: src}
	if len(candidates) == 0 {
		return result, false
	}

	scores := make([]float64, len(candidates))
	bestIdx := 0
	for i, c := range candidates {
		scores[i] = m.Score(src, c)
		if scores[i] > scores[bestIdx] {
			bestIdx = i
		}
	}

	best := scores[bestIdx]
	chosen := bestIdx
	if src.DurationSeconds > 0 && m.opts.TieEpsilon > 0 {
		bestDelta := durationDelta(src, candidates[bestIdx])
		for i, c := range candidates {
			if i == bestIdx || scores[i] < best-m.opts.TieEpsilon {
				continue
			}
			if best >= m.opts.Threshold && scores[i] < m.opts.Threshold {
				continue
			}
			if d := durationDelta(src, c); d < bestDelta {
				chosen, bestDelta = i, d
			}
		}
	}

	c := candidates[chosen]
	result.SpotifyTrackID = c.ID
	result.Track = c
	result.ConfidenceScore = scores[chosen]
	return result, scores[chosen] >= m.opts.Threshold
}

// BuildQuery renders the Spotify search query for src:
//
//	track:<title> artist:<primary artist> [album:<album>]
func (m *Matcher) BuildQuery(src models.SourceTrack) string {
	parts := []string{fmt.Sprintf("track:%s", searchTerm(src.Title))}
	if a := src.PrimaryArtist(); a != "" {
		parts = append(parts, fmt.Sprintf("artist:%s", searchTerm(a)))
	}
	if m.opts.IncludeAlbum && src.Album != "" {
		parts = append(parts, fmt.Sprintf("album:%s", searchTerm(src.Album)))
	}
	return strings.Join(parts, " ")
}

// searchTerm drops featured-artist clauses and quotes so the term stays a single field filter.
func searchTerm(s string) string {
	s = featPattern.ReplaceAllString(s, "")
	s = strings.NewReplacer(`"`, " ", ":", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// durationDelta is the absolute duration difference; unknown candidate durations sort last.
func durationDelta(src models.SourceTrack, c models.DestinationTrack) int {
	if c.DurationSeconds <= 0 {
		return int(^uint(0) >> 1)
	}
	d := src.DurationSeconds - c.DurationSeconds
	if d < 0 {
		return -d
	}
	return d
}

func joinNonEmpty(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
