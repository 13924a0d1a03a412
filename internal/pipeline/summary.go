package pipeline

import (
	"time"

	"github.com/rs/zerolog"
)

// RunStatus is the overall outcome of one pipeline run.
type RunStatus string

const (
	// StatusSuccess: every stage completed and every attempted table loaded.
	StatusSuccess RunStatus = "success"
	// StatusPartialSuccess: the run completed but some tables failed to load.
	StatusPartialSuccess RunStatus = "partial_success"
	// StatusFailure: a fatal stage error aborted the run before load.
	StatusFailure RunStatus = "failure"
)

// Stage names as they appear in the run summary.
const (
	StageExtract   = "extract"
	StageTransform = "transform"
	StageLoad      = "load"
)

// StageResult captures one stage's row accounting and duration.
type StageResult struct {
	Name         string
	RowsIn       int
	RowsOut      int
	RowsRejected int
	Duration     time.Duration
	Error        string
}

// RunSummary is the structured result of one pipeline run, consumed by
// operators and the monitoring dashboard. Every skipped or rejected item in
// the run is visible in a counter here; nothing is silently swallowed.
type RunSummary struct {
	RunID      string
	Mode       Mode
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Status     RunStatus

	Stages []StageResult
	Tables []TableLoadResult

	DuplicatesDropped    int
	UnresolvedReferences int
	HashAnomalies        int
	AmountDiscrepancies  int
}

func (s *RunSummary) record(stage StageResult) {
	s.Stages = append(s.Stages, stage)
}

// RowsExtracted sums the extract stage's output rows.
func (s *RunSummary) RowsExtracted() int {
	for _, st := range s.Stages {
		if st.Name == StageExtract {
			return st.RowsOut
		}
	}
	return 0
}

// RowsRejected sums rejected rows across all stages.
func (s *RunSummary) RowsRejected() int {
	total := 0
	for _, st := range s.Stages {
		total += st.RowsRejected
	}
	return total
}

// RowsLoaded sums rows across successfully loaded tables.
func (s *RunSummary) RowsLoaded() int {
	total := 0
	for _, t := range s.Tables {
		if t.Error == "" {
			total += t.Rows
		}
	}
	return total
}

// Log emits the summary through the structured logger.
func (s *RunSummary) Log(log zerolog.Logger) {
	ev := log.Info()
	if s.Status == StatusFailure {
		ev = log.Error()
	}
	ev = ev.
		Str("run_id", s.RunID).
		Str("mode", string(s.Mode)).
		Str("status", string(s.Status)).
		Dur("duration", s.Duration).
		Int("rows_rejected", s.RowsRejected()).
		Int("unresolved_references", s.UnresolvedReferences)

	for _, st := range s.Stages {
		d := zerolog.Dict().
			Int("rows_in", st.RowsIn).
			Int("rows_out", st.RowsOut).
			Int("rows_rejected", st.RowsRejected).
			Dur("duration", st.Duration)
		if st.Error != "" {
			d = d.Str("error", st.Error)
		}
		ev = ev.Dict(st.Name, d)
	}
	ev.Msg("Pipeline run finished")
}
