package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"dpconv/internal/cache"
	"dpconv/internal/plan"
	"dpconv/internal/progress"
)

// CacheReplacer publishes a full analysis pass to the batch cache.
type CacheReplacer interface {
	Replace(ctx context.Context, entries []cache.Entry) error
}

// Gather probes and classifies every file without converting anything and
// publishes the result to the cache wholesale. Files that cannot be probed
// are reported through the reporter and left out of the cache. The
// returned entries keep the input order.
func (s *Service) Gather(ctx context.Context, files []string, store CacheReplacer) ([]cache.Entry, error) {
	if s.run.Limit > 0 && len(files) > s.run.Limit {
		files = files[:s.run.Limit]
	}

	type slot struct {
		entry cache.Entry
		ok    bool
	}
	slots := make([]slot, len(files))

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.run.AnalyzeJobs)
	for i, path := range files {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, path string) {
			defer wg.Done()
			defer func() { <-sem }()

			jobID := uuid.NewString()
			desc, err := s.prober.Probe(ctx, path)
			if err != nil {
				s.emitLog(jobID, fmt.Sprintf("warning: probe %s: %v", path, err))
				s.emitResult(FileResult{
					Path: path, JobID: jobID, Outcome: OutcomeError,
					Message: "probe failed", Err: err,
				})
				return
			}
			action := plan.Skip
			if desc.HasVideo {
				action = plan.Classify(desc)
			}
			slots[i] = slot{entry: cache.NewEntry(desc, action), ok: true}
			s.emitResult(FileResult{
				Path: path, JobID: jobID, Action: action,
				Outcome: OutcomeSkipped, Message: action.Describe(),
			})
		}(i, path)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := make([]cache.Entry, 0, len(files))
	for _, sl := range slots {
		if sl.ok {
			entries = append(entries, sl.entry)
		}
	}

	if store != nil {
		s.emitUpdate(progress.Update{
			Stage: progress.StageFinalizing, Percent: -1,
			Message: fmt.Sprintf("Writing %d entries to cache", len(entries)),
		})
		if err := store.Replace(ctx, entries); err != nil {
			return entries, fmt.Errorf("write cache: %w", err)
		}
	}
	return entries, nil
}
