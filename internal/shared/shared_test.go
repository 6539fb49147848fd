package shared

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestNormalizeTrackKey(t *testing.T) {
	tc := []struct {
		name   string
		title  string
		artist string
		want   string
	}{
		{
			name:   "basic normalization",
			title:  "Song Title",
			artist: "Artist Name",
			want:   "song title|artist name",
		},
		{
			name:   "extra whitespace",
			title:  "  Song   Title  ",
			artist: "  Artist   Name  ",
			want:   "song title|artist name",
		},
		{
			name:   "mixed case",
			title:  "SoNg TiTlE",
			artist: "ArTiSt NaMe",
			want:   "song title|artist name",
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeTrackKey(tt.title, tt.artist)
			if got != tt.want {
				t.Errorf("NormalizeTrackKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMaskSecret(t *testing.T) {
	tc := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"abc", "***"},
		{"abcd", "****"},
		{"abcdef123456", "********3456"},
	}

	for _, tt := range tc {
		if got := MaskSecret(tt.in); got != tt.want {
			t.Errorf("MaskSecret(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	if got := FormatDuration(0); got != "-:--" {
		t.Errorf("expected placeholder for zero, got %s", got)
	}
	if got := FormatDuration(185); got != "3:05" {
		t.Errorf("expected 3:05, got %s", got)
	}
}

func TestLoggers(t *testing.T) {
	t.Run("NewLogger writes to buffer", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		WithLogger(logger, "session", "abc").Info("started")

		if !strings.Contains(buf.String(), "session=abc") {
			t.Errorf("expected key-value pair in output, got %q", buf.String())
		}
	})

	t.Run("NewFileLogger creates parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "tui.log")
		logger, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		logger.Info("hello")
	})
}

func TestBrowserCommand(t *testing.T) {
	for _, goos := range []string{"darwin", "linux", "windows"} {
		cmd, err := browserCommand(goos, "https://accounts.spotify.com")
		if err != nil {
			t.Fatalf("%s: unexpected error %v", goos, err)
		}
		if cmd.Args[len(cmd.Args)-1] != "https://accounts.spotify.com" {
			t.Errorf("%s: url should be the last argument, got %v", goos, cmd.Args)
		}
	}

	if _, err := browserCommand("plan9", "https://accounts.spotify.com"); err == nil {
		t.Error("expected error for unsupported platform")
	}

	if err := OpenBrowser("file:///etc/passwd"); err == nil {
		t.Error("expected non-http urls to be rejected")
	}
}

func TestGenerateState(t *testing.T) {
	a, err := GenerateState()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	b, _ := GenerateState()
	if a == b || len(a) != 32 {
		t.Errorf("expected distinct 32 character states, got %q and %q", a, b)
	}
}
