package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/ang2spot/internal/models"
)

var (
	_ list.Item = playlistItem{}
)

// playlistItem wraps [models.PlaylistRecord] to implement [list.Item]. Marked items are migrated together.
type playlistItem struct {
	playlist models.PlaylistRecord
	marked   bool
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string {
	mark := "[ ]"
	if i.marked {
		mark = "[x]"
	}
	return fmt.Sprintf("%s %s", mark, i.playlist.Name)
}
func (i playlistItem) Description() string {
	desc := "tracks unknown"
	if i.playlist.TrackCount > 0 {
		desc = fmt.Sprintf("%d tracks", i.playlist.TrackCount)
	}
	if i.playlist.Owner != "" {
		desc = fmt.Sprintf("%s • by %s", desc, i.playlist.Owner)
	}
	return desc
}
