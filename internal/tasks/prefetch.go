package tasks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/desertthunder/ang2spot/internal/models"
	"github.com/desertthunder/ang2spot/internal/shared"
	"golang.org/x/time/rate"
)

// PlaylistCache stores extracted playlist metadata. Implemented by repositories.PlaylistRepository.
type PlaylistCache interface {
	Upsert(profileURL string, rec models.PlaylistRecord) (*models.PersistedPlaylist, error)
}

// PrefetchOpts contains configuration for concurrent playlist extraction.
type PrefetchOpts struct {
	ProfileURL string  // Profile the playlists were listed from, recorded in the cache
	NumWorkers int     // Concurrent workers (default: 4, max: 10)
	RateLimit  float64 // Anghami page requests per second (default: 2)
}

// PrefetchResult is the outcome for one playlist.
type PrefetchResult struct {
	PlaylistID string
	Playlist   *models.SourcePlaylist
	Error      error

	index int
}

// PrefetchSummary aggregates a [Orchestrator.Prefetch] run. Results follow the order of the requested ids.
type PrefetchSummary struct {
	TotalPlaylists int
	Succeeded      int
	Failed         int
	Results        []PrefetchResult
}

type prefetchJob struct {
	index int
	id    string
}

// Prefetch extracts many Anghami playlists concurrently and refreshes their cached metadata.
//
// A producer paces jobs with a rate limiter while a pool of workers extracts them; cache writes happen on
// the calling goroutine. Failed playlists are reported in the summary and do not stop the others.
// Cancelling ctx stops scheduling new work and returns the partial summary with ctx's error.
func (o *Orchestrator) Prefetch(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	cache PlaylistCache,
	ids []string,
	opts PrefetchOpts,
) (*PrefetchSummary, error) {
	if o.extractor == nil {
		return nil, fmt.Errorf("%w: extractor not initialized", shared.ErrServiceUnavailable)
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2.0
	}

	summary := &PrefetchSummary{
		TotalPlaylists: len(ids),
		Results:        make([]PrefetchResult, 0, len(ids)),
	}
	if len(ids) == 0 {
		return summary, nil
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan prefetchJob, len(ids))
	results := make(chan PrefetchResult, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go o.prefetchWorker(ctx, &wg, jobs, results)
	}

	go func() {
		defer close(jobs)
		for i, id := range ids {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			jobs <- prefetchJob{index: i, id: id}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++

		if res.Error == nil && cache != nil {
			if _, err := cache.Upsert(opts.ProfileURL, res.Playlist.PlaylistRecord); err != nil {
				res.Error = fmt.Errorf("failed to cache playlist: %w", err)
			}
		}

		if res.Error == nil {
			summary.Succeeded++
			PrefetchTotal.WithLabelValues("success").Inc()
			sendProgress(prog, prefetchCompletedUpdate(completed, len(ids), res.Playlist.Name, len(res.Playlist.Tracks)))
		} else {
			summary.Failed++
			PrefetchTotal.WithLabelValues("failed").Inc()
			o.logger.Warn("prefetch failed", "playlist", res.PlaylistID, "error", res.Error)
			sendProgress(prog, prefetchFailedUpdate(completed, len(ids), res.PlaylistID, res.Error))
		}
		summary.Results = append(summary.Results, res)
	}

	sort.Slice(summary.Results, func(i, j int) bool { return summary.Results[i].index < summary.Results[j].index })
	return summary, ctx.Err()
}

// prefetchWorker extracts playlists from the jobs channel.
func (o *Orchestrator) prefetchWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan prefetchJob,
	results chan<- PrefetchResult,
) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		pl, err := o.extractor.GetPlaylist(ctx, job.id)
		res := PrefetchResult{PlaylistID: job.id, Playlist: pl, Error: err, index: job.index}
		if err != nil {
			res.Playlist = nil
			res.Error = fmt.Errorf("failed to extract playlist: %w", err)
		}
		results <- res
	}
}
