package tasks

import (
	"fmt"

	"github.com/desertthunder/ang2spot/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Extracting Phase = iota
	Matching
	Creating
	Finished
	Prefetch
)

func (p Phase) String() string {
	switch p {
	case Extracting:
		return "extracting"
	case Matching:
		return "matching"
	case Creating:
		return "creating"
	case Finished:
		return "finished"
	case Prefetch:
		return "prefetch"
	default:
		return ""
	}
}

func extractingUpdate(step, total int, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Extracting,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Extracting playlist %s from Anghami...", step, total, id),
	}
}

func extractFailedUpdate(step, total int, id string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Extracting,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, id, err),
	}
}

func matchTrackUpdate(step, total int, tr models.SourceTrack, matched bool) ProgressUpdate {
	mark := "✓"
	if !matched {
		mark = "✗"
	}
	return ProgressUpdate{
		Phase:   Matching,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s", step, total, mark, tr),
	}
}

func creatingUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Creating,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Creating Spotify playlist: %s", name),
	}
}

func createdUpdate(step, total int, pl models.CreatedPlaylist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Creating,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Playlist created: %s (%d tracks)", pl.Name, pl.TracksAdded),
		Data:    pl,
	}
}

func finishedUpdate(snap *models.MigrationSession) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Finished,
		Step:    snap.CompletedPlaylists,
		Total:   snap.TotalPlaylists,
		Message: snap.Message,
		Data:    snap,
	}
}

func prefetchCompletedUpdate(step, total int, name string, tracks int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Prefetch,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d tracks)", step, total, name, tracks),
	}
}

func prefetchFailedUpdate(step, total int, id string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Prefetch,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, id, err),
	}
}
