package pipeline

import "time"

// Stats aggregates per-file outcomes over a batch.
type Stats struct {
	Total       int
	Processed   int
	Remuxed     int
	Skipped     int
	Filtered    int
	Interrupted int
	Errors      int
	Quit        int

	InputBytes  int64 // originals of converted files
	OutputBytes int64
	Elapsed     time.Duration

	Results []FileResult
}

// Add folds one file result into the totals.
func (st *Stats) Add(r FileResult) {
	st.Total++
	st.Results = append(st.Results, r)
	switch r.Outcome {
	case OutcomeProcessed:
		st.Processed++
	case OutcomeRemuxed:
		st.Remuxed++
	case OutcomeSkipped:
		st.Skipped++
	case OutcomeFiltered:
		st.Filtered++
	case OutcomeInterrupted:
		st.Interrupted++
	case OutcomeError:
		st.Errors++
	case OutcomeQuit:
		st.Quit++
	}
	if r.Outcome == OutcomeProcessed || r.Outcome == OutcomeRemuxed {
		st.InputBytes += r.InputSize
		st.OutputBytes += r.OutputSize
	}
}

// Converted is the number of files that produced an output.
func (st *Stats) Converted() int {
	return st.Processed + st.Remuxed
}

// SavedBytes is positive when conversions shrank the originals.
func (st *Stats) SavedBytes() int64 {
	return st.InputBytes - st.OutputBytes
}
