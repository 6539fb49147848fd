package matcher

import (
	"math"
	"testing"

	"github.com/desertthunder/ang2spot/internal/models"
)

func TestNormalize(t *testing.T) {
	tc := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase and punctuation", "Hello, World!", "hello world"},
		{"diacritics removed", "Beyoncé – Déjà Vu", "beyonce deja vu"},
		{"featured in parentheses", "Song Title (feat. Someone Else)", "song title"},
		{"featured trailing", "Song Title ft. Someone", "song title"},
		{"featuring in brackets", "Song [featuring Other]", "song"},
		{"remix qualifier", "Track (Club Remix)", "track"},
		{"version qualifier", "Track (Acoustic Version)", "track"},
		{"dash remaster suffix", "Track - Remastered 2011", "track"},
		{"apostrophes joined", "Don't Stop", "dont stop"},
		{"whitespace collapsed", "  a   b  ", "a b"},
		{"arabic diacritics", "حَبِيبِي", "حبيبي"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	if got := NormalizeArtist("Mix Master (Live)"); got != "mix master live" {
		t.Errorf("NormalizeArtist should keep qualifiers, got %q", got)
	}
}

func TestIsArabic(t *testing.T) {
	if !IsArabic("عمرو دياب") {
		t.Error("expected arabic text to be detected")
	}
	if IsArabic("Amr Diab") {
		t.Error("latin text should not be detected as arabic")
	}
	if IsArabic("") {
		t.Error("empty text is not arabic")
	}
}

func TestSimilarity(t *testing.T) {
	t.Run("Ratio", func(t *testing.T) {
		if Ratio("abc", "abc") != 1 {
			t.Error("identical strings should score 1")
		}
		if got := Ratio("kitten", "sitting"); math.Abs(got-(1-3.0/7.0)) > 1e-9 {
			t.Errorf("unexpected ratio %v", got)
		}
	})

	t.Run("TokenSetRatio ignores order", func(t *testing.T) {
		if got := TokenSetRatio("artist song", "song artist"); got != 1 {
			t.Errorf("expected 1, got %v", got)
		}
	})

	t.Run("TokenSetRatio subset", func(t *testing.T) {
		if got := TokenSetRatio("song artist", "song artist extra"); got != 1 {
			t.Errorf("a token subset should score 1, got %v", got)
		}
	})

	t.Run("TokenSetRatio disjoint", func(t *testing.T) {
		if got := TokenSetRatio("alpha beta", "gamma delta"); got >= 0.5 {
			t.Errorf("disjoint token sets should score low, got %v", got)
		}
	})

	t.Run("TokenSetRatio empty", func(t *testing.T) {
		if got := TokenSetRatio("", "song"); got != 0 {
			t.Errorf("empty input should score 0, got %v", got)
		}
	})
}

func TestFindBestMatch(t *testing.T) {
	m := New(DefaultOptions())
	src := models.SourceTrack{Title: "Tamally Maak", Artists: []string{"Amr Diab"}, DurationSeconds: 240}

	t.Run("exact match accepted", func(t *testing.T) {
		candidates := []models.DestinationTrack{
			{ID: "x", Title: "Something Else", Artists: []string{"Another Artist"}},
			{ID: "y", Title: "Tamally Maak", Artists: []string{"Amr Diab"}, DurationSeconds: 241},
		}

		got, ok := m.FindBestMatch(src, candidates)
		if !ok {
			t.Fatalf("expected a match, best score %v", got.ConfidenceScore)
		}
		if got.SpotifyTrackID != "y" || got.ConfidenceScore != 1 {
			t.Errorf("unexpected match %+v", got)
		}
		if got.SourceTrack.Title != src.Title {
			t.Error("source track should be carried on the candidate")
		}
	})

	t.Run("never selects below threshold", func(t *testing.T) {
		candidates := []models.DestinationTrack{
			{ID: "a", Title: "Completely Different", Artists: []string{"Nobody"}},
			{ID: "b", Title: "Other Song", Artists: []string{"Someone"}},
		}

		got, ok := m.FindBestMatch(src, candidates)
		if ok {
			t.Fatalf("no candidate should be accepted, got %+v", got)
		}
		if got.ConfidenceScore >= m.Threshold() {
			t.Errorf("reported score %v should be below threshold", got.ConfidenceScore)
		}
	})

	t.Run("no candidates", func(t *testing.T) {
		if _, ok := m.FindBestMatch(src, nil); ok {
			t.Error("expected no match without candidates")
		}
	})

	t.Run("duration tie-break", func(t *testing.T) {
		candidates := []models.DestinationTrack{
			{ID: "radio", Title: "Tamally Maak", Artists: []string{"Amr Diab"}, DurationSeconds: 180},
			{ID: "album", Title: "Tamally Maak", Artists: []string{"Amr Diab"}, DurationSeconds: 238},
		}

		got, ok := m.FindBestMatch(src, candidates)
		if !ok || got.SpotifyTrackID != "album" {
			t.Errorf("expected closest duration to win, got %s", got.SpotifyTrackID)
		}
	})

	t.Run("tie-break skipped without source duration", func(t *testing.T) {
		noDuration := src
		noDuration.DurationSeconds = 0
		candidates := []models.DestinationTrack{
			{ID: "first", Title: "Tamally Maak", Artists: []string{"Amr Diab"}, DurationSeconds: 180},
			{ID: "second", Title: "Tamally Maak", Artists: []string{"Amr Diab"}, DurationSeconds: 240},
		}

		got, _ := m.FindBestMatch(noDuration, candidates)
		if got.SpotifyTrackID != "first" {
			t.Errorf("expected first best candidate, got %s", got.SpotifyTrackID)
		}
	})

	t.Run("qualifiers and featured artists ignored", func(t *testing.T) {
		s := models.SourceTrack{Title: "Habibi (feat. Guest)", Artists: []string{"Singer"}}
		c := []models.DestinationTrack{{ID: "z", Title: "Habibi - Remastered 2011", Artists: []string{"Guest", "Singer"}}}

		got, ok := m.FindBestMatch(s, c)
		if !ok {
			t.Errorf("expected match, score %v", got.ConfidenceScore)
		}
	})

	t.Run("configurable threshold", func(t *testing.T) {
		strict := New(Options{Threshold: 1})
		c := []models.DestinationTrack{{ID: "z", Title: "Tamally Maak Live", Artists: []string{"Amr Diab Band"}}}
		if _, ok := strict.FindBestMatch(models.SourceTrack{Title: "Tamaly Maak", Artists: []string{"Amr Diab"}}, c); ok {
			t.Error("near miss should not pass a threshold of 1")
		}
	})
}

func TestNewClampsOptions(t *testing.T) {
	m := New(Options{Threshold: 5, TieEpsilon: -1})
	if m.Threshold() != DefaultThreshold {
		t.Errorf("expected default threshold, got %v", m.Threshold())
	}
	if m.opts.TieEpsilon != DefaultTieEpsilon {
		t.Errorf("expected default epsilon, got %v", m.opts.TieEpsilon)
	}
}

func TestBuildQuery(t *testing.T) {
	src := models.SourceTrack{Title: `Song "Name" (feat. X)`, Artists: []string{"Main", "Other"}, Album: "Album: One"}

	if got := New(DefaultOptions()).BuildQuery(src); got != "track:Song Name artist:Main" {
		t.Errorf("unexpected query %q", got)
	}

	withAlbum := New(Options{IncludeAlbum: true})
	if got := withAlbum.BuildQuery(src); got != "track:Song Name artist:Main album:Album One" {
		t.Errorf("unexpected query %q", got)
	}

	if got := withAlbum.BuildQuery(models.SourceTrack{Title: "Solo"}); got != "track:Solo" {
		t.Errorf("unexpected query %q", got)
	}
}
