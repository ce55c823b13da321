package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunBatch processes files through split worker pools: a wide analysis
// pool (probes are cheap) feeding a narrow encode pool (encodes contend
// for the machine). A quit decision at the prompt, or context
// cancellation, stops new work; files never started are reported as
// interrupted.
func (s *Service) RunBatch(ctx context.Context, files []string) Stats {
	if s.run.Limit > 0 && len(files) > s.run.Limit {
		files = files[:s.run.Limit]
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	paths := make(chan string)
	analyses := make(chan *analysis)
	results := make(chan FileResult)

	go func() {
		defer close(paths)
		for _, f := range files {
			select {
			case paths <- f:
			case <-ctx.Done():
				// Remaining files still get a result so the batch
				// accounting always sums to len(files).
				r := FileResult{
					Path: f, JobID: uuid.NewString(),
					Outcome: OutcomeInterrupted, Message: "not started",
				}
				s.emitResult(r)
				results <- r
			}
		}
	}()

	var analyzeWG sync.WaitGroup
	for i := 0; i < s.run.AnalyzeJobs; i++ {
		analyzeWG.Add(1)
		go func() {
			defer analyzeWG.Done()
			for path := range paths {
				jobID := uuid.NewString()
				if ctx.Err() != nil {
					r := FileResult{
						Path: path, JobID: jobID,
						Outcome: OutcomeInterrupted, Message: "not started",
					}
					s.emitResult(r)
					results <- r
					continue
				}
				a, done := s.analyze(ctx, path, jobID)
				if done != nil {
					s.emitResult(*done)
					results <- *done
					continue
				}
				analyses <- a
			}
		}()
	}
	go func() {
		analyzeWG.Wait()
		close(analyses)
	}()

	var encodeWG sync.WaitGroup
	for i := 0; i < s.run.EncodeJobs; i++ {
		encodeWG.Add(1)
		go func() {
			defer encodeWG.Done()
			for a := range analyses {
				res := s.convert(ctx, a)
				if res.Outcome == OutcomeQuit {
					cancel()
				}
				s.emitResult(res)
				results <- res
			}
		}()
	}
	go func() {
		encodeWG.Wait()
		close(results)
	}()

	var st Stats
	start := time.Now()
	for r := range results {
		st.Add(r)
	}
	st.Elapsed = time.Since(start)
	return st
}
