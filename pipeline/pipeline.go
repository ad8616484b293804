package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"olx-scraper/utils"
)

// Stage is one step of the pipeline. The file at Output marks the stage as
// complete.
type Stage interface {
	Name() string
	Output() string
	// Run executes the stage and returns how many records it produced.
	Run(ctx context.Context) (int, error)
}

// StageReport describes what happened to one stage.
type StageReport struct {
	Name    string
	Output  string
	Records int
	Skipped bool
	Elapsed time.Duration
}

// Report collects the per-stage results of a run.
type Report struct {
	Stages []StageReport
}

// Ran returns the stages that actually executed.
func (r *Report) Ran() []StageReport {
	var ran []StageReport
	for _, s := range r.Stages {
		if !s.Skipped {
			ran = append(ran, s)
		}
	}
	return ran
}

// Records is the count produced by the last stage that executed, or -1 when
// every stage was skipped.
func (r *Report) Records() int {
	ran := r.Ran()
	if len(ran) == 0 {
		return -1
	}
	return ran[len(ran)-1].Records
}

// Empty reports whether the run executed stages but ended with zero records.
func (r *Report) Empty() bool {
	return r.Records() == 0
}

// Runner executes stages in order. Without force it resumes after the last
// stage whose output already exists.
type Runner struct {
	stages []Stage
	force  bool
	logger *utils.Logger
}

// NewRunner creates a Runner for stages.
func NewRunner(logger *utils.Logger, force bool, stages ...Stage) *Runner {
	return &Runner{stages: stages, force: force, logger: logger}
}

// Run executes the pending stages. A failing stage has its partial output
// removed so the next run retries it.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	start := 0
	if !r.force {
		for i := len(r.stages) - 1; i >= 0; i-- {
			if exists(r.stages[i].Output()) {
				start = i + 1
				break
			}
		}
	}

	for i, st := range r.stages {
		sr := StageReport{Name: st.Name(), Output: st.Output()}
		if i < start {
			sr.Skipped = true
			report.Stages = append(report.Stages, sr)
			r.logger.Info("[pipeline] %s already complete (%s), skipping", st.Name(), st.Output())
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		r.logger.Info("[pipeline] ===== %s =====", st.Name())
		began := time.Now()
		n, err := st.Run(ctx)
		sr.Elapsed = time.Since(began)
		if err != nil {
			if rmErr := os.Remove(st.Output()); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				r.logger.Warn("[pipeline] Could not remove partial output %s: %v", st.Output(), rmErr)
			}
			return report, fmt.Errorf("pipeline: %s: %w", st.Name(), err)
		}
		sr.Records = n
		report.Stages = append(report.Stages, sr)
		r.logger.Info("[pipeline] %s done: %d records in %s", st.Name(), n, sr.Elapsed.Round(time.Millisecond))
	}
	return report, nil
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
