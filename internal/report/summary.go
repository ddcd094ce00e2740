// Package report aggregates scenario results into a run summary and renders it.
package report

import (
	"errors"
	"time"

	"petcontract/internal/core"
	"petcontract/internal/scenario"
)

// Summary is the outcome of one suite run. It is what monitor mode caches and serves.
type Summary struct {
	RunID      string    `json:"run_id"`
	BaseURL    string    `json:"base_url"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMs int64     `json:"duration_ms"`

	Scenarios       int `json:"scenarios"`
	PassedScenarios int `json:"passed_scenarios"`
	FailedScenarios int `json:"failed_scenarios"`
	PassedSteps     int `json:"passed_steps"`
	FailedSteps     int `json:"failed_steps"`
	SkippedSteps    int `json:"skipped_steps"`

	Results  []ScenarioSummary `json:"results"`
	Failures []Failure         `json:"failures,omitempty"`
}

// ScenarioSummary is the per-scenario line of a Summary.
type ScenarioSummary struct {
	Name       string `json:"name"`
	Passed     bool   `json:"passed"`
	DurationMs int64  `json:"duration_ms"`
	Steps      int    `json:"steps"`
	Skipped    int    `json:"skipped"`
}

// Failure is the diagnostic for one failed step or scenario.
type Failure struct {
	Scenario  string   `json:"scenario"`
	Step      string   `json:"step,omitempty"`
	Method    string   `json:"method,omitempty"`
	Path      string   `json:"path,omitempty"`
	Status    int      `json:"status,omitempty"`
	ErrorType string   `json:"error_type"`
	Message   string   `json:"message"`
	Expected  string   `json:"expected,omitempty"`
	Actual    string   `json:"actual,omitempty"`
	Details   []string `json:"details,omitempty"`
}

// Summarize builds a Summary from results, which keep their input order.
func Summarize(runID, baseURL string, startedAt time.Time, results []*scenario.Result) *Summary {
	finished := time.Now()
	s := &Summary{
		RunID:      runID,
		BaseURL:    baseURL,
		StartedAt:  startedAt.UTC(),
		FinishedAt: finished.UTC(),
		DurationMs: finished.Sub(startedAt).Milliseconds(),
		Scenarios:  len(results),
		Results:    make([]ScenarioSummary, 0, len(results)),
	}

	for _, r := range results {
		if r == nil {
			continue
		}
		if r.Passed {
			s.PassedScenarios++
		} else {
			s.FailedScenarios++
		}
		s.PassedSteps += r.Count(scenario.OutcomePassed)
		s.FailedSteps += r.Count(scenario.OutcomeFailed)
		s.SkippedSteps += r.Count(scenario.OutcomeSkipped)

		s.Results = append(s.Results, ScenarioSummary{
			Name:       r.Scenario,
			Passed:     r.Passed,
			DurationMs: r.Duration.Milliseconds(),
			Steps:      len(r.Steps),
			Skipped:    r.Count(scenario.OutcomeSkipped),
		})

		if step, ok := r.FailedStep(); ok {
			f := failure(step.Err)
			f.Scenario = r.Scenario
			f.Step = step.Name
			f.Method = step.Method
			f.Path = step.Path
			f.Status = step.Status
			s.Failures = append(s.Failures, f)
		} else if r.Err != nil {
			f := failure(r.Err)
			f.Scenario = r.Scenario
			s.Failures = append(s.Failures, f)
		}
	}
	return s
}

// Passed reports whether every scenario passed.
func (s *Summary) Passed() bool {
	return s.FailedScenarios == 0
}

// ExitCode is 0 when every scenario passed and 1 otherwise.
func (s *Summary) ExitCode() int {
	if s.Passed() {
		return 0
	}
	return 1
}

func failure(err error) Failure {
	if err == nil {
		return Failure{ErrorType: string(core.ErrorTypeUnexpected), Message: "failed without a diagnostic"}
	}
	var he *core.HarnessError
	if errors.As(err, &he) {
		return Failure{
			ErrorType: string(he.Type),
			Message:   he.Message,
			Expected:  he.Expected,
			Actual:    he.Actual,
			Details:   he.Details,
		}
	}
	return Failure{ErrorType: string(core.ErrorTypeUnexpected), Message: err.Error()}
}
