package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"runtime/debug"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"petcontract/internal/apiclient"
	"petcontract/internal/core"
)

// DefaultParallelism is the number of scenarios run concurrently by RunAll
const DefaultParallelism = 4

// Sender issues one request and always yields a Result. *apiclient.Client implements it.
type Sender interface {
	Send(ctx context.Context, req apiclient.Request) *apiclient.Result
}

// Runner executes scenarios. Each Run owns a fresh State, so a Runner can be shared by
// concurrently running scenarios.
type Runner struct {
	client      Sender
	logger      *slog.Logger
	observers   []Observer
	parallelism int
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithObserver registers observers notified after every step and scenario.
func WithObserver(observers ...Observer) RunnerOption {
	return func(r *Runner) {
		for _, o := range observers {
			if o != nil {
				r.observers = append(r.observers, o)
			}
		}
	}
}

// WithLogger sets the logger for step and scenario outcomes.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithParallelism bounds how many scenarios RunAll executes at once.
func WithParallelism(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.parallelism = n
		}
	}
}

// NewRunner creates a Runner sending requests through client.
func NewRunner(client Sender, opts ...RunnerOption) *Runner {
	r := &Runner{
		client:      client,
		logger:      slog.Default(),
		parallelism: DefaultParallelism,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunAll executes independent scenarios on a bounded worker pool. Results keep the
// order of scenarios. A failing scenario never stops the others.
func (r *Runner) RunAll(ctx context.Context, scenarios []*Scenario) []*Result {
	results := make([]*Result, len(scenarios))

	var g errgroup.Group
	g.SetLimit(r.parallelism)
	for i, sc := range scenarios {
		g.Go(func() error {
			results[i] = r.Run(ctx, sc)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Run executes the steps of sc in order and stops at the first failing step; the
// remaining steps are reported as skipped. A panic is recovered and fails only sc.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (result *Result) {
	start := time.Now()
	result = &Result{Scenario: sc.Name, Passed: true, Steps: make([]StepResult, 0, len(sc.Steps))}
	current := -1

	defer func() {
		if p := recover(); p != nil {
			err := core.NewUnexpectedError(fmt.Sprintf("panic: %v", p))
			r.logger.Error("scenario panicked",
				"scenario", sc.Name,
				"panic", p,
				"stack", string(debug.Stack()),
			)
			result.Passed = false
			result.Err = err
			if current >= 0 && len(result.Steps) == current {
				sr := StepResult{Name: sc.Steps[current].Name, Method: sc.Steps[current].Request.Method, Outcome: OutcomeFailed, Err: err}
				result.Steps = append(result.Steps, sr)
				r.notifyStep(sc.Name, sr)
			}
			r.skipRemaining(sc, len(result.Steps), result)
		}
		result.Duration = time.Since(start)
		r.finish(result)
	}()

	if err := sc.Validate(); err != nil {
		result.Passed = false
		result.Err = err
		r.skipRemaining(sc, 0, result)
		return result
	}

	st := NewState(sc.Vars)
	for i := range sc.Steps {
		current = i
		if err := ctx.Err(); err != nil {
			result.Passed = false
			result.Err = core.NewTransportError("scenario canceled", err)
			r.skipRemaining(sc, i, result)
			return result
		}

		sr := r.runStep(ctx, &sc.Steps[i], st)
		result.Steps = append(result.Steps, sr)
		r.notifyStep(sc.Name, sr)

		if sr.Outcome == OutcomeFailed {
			result.Passed = false
			r.skipRemaining(sc, i+1, result)
			return result
		}
	}
	return result
}

func (r *Runner) runStep(ctx context.Context, step *Step, st *State) StepResult {
	sr := StepResult{Name: step.Name, Method: step.Request.Method, Path: step.Request.Path}

	req, err := buildRequest(step.Request, st)
	if err != nil {
		sr.Outcome = OutcomeFailed
		sr.Err = err
		return sr
	}
	sr.Path = req.Path

	res := r.client.Send(ctx, req)
	if res == nil {
		sr.Outcome = OutcomeFailed
		sr.Err = core.NewUnexpectedError("client returned no result")
		return sr
	}
	sr.Status = res.Status
	sr.Elapsed = res.Elapsed

	if res.Err != nil {
		sr.Outcome = OutcomeFailed
		sr.Err = res.Err
		return sr
	}

	for _, a := range step.Expect {
		if err := a.Check(res, st); err != nil {
			sr.Outcome = OutcomeFailed
			sr.Err = annotate(a, err)
			return sr
		}
	}

	if err := capture(step.Capture, res, st); err != nil {
		sr.Outcome = OutcomeFailed
		sr.Err = err
		return sr
	}

	sr.Outcome = OutcomePassed
	return sr
}

func (r *Runner) skipRemaining(sc *Scenario, from int, result *Result) {
	for i := from; i < len(sc.Steps); i++ {
		sr := StepResult{
			Name:    sc.Steps[i].Name,
			Method:  sc.Steps[i].Request.Method,
			Path:    sc.Steps[i].Request.Path,
			Outcome: OutcomeSkipped,
		}
		result.Steps = append(result.Steps, sr)
		r.notifyStep(sc.Name, sr)
	}
}

func (r *Runner) notifyStep(scenario string, sr StepResult) {
	if sr.Outcome == OutcomeFailed {
		r.logger.Warn("step failed",
			"scenario", scenario,
			"step", sr.Name,
			"method", sr.Method,
			"path", sr.Path,
			"status", sr.Status,
			"elapsed_ms", sr.Elapsed.Milliseconds(),
			"error", sr.Err,
		)
	} else {
		r.logger.Debug("step finished",
			"scenario", scenario,
			"step", sr.Name,
			"outcome", sr.Outcome,
			"status", sr.Status,
			"elapsed_ms", sr.Elapsed.Milliseconds(),
		)
	}
	for _, o := range r.observers {
		o.StepFinished(scenario, sr)
	}
}

func (r *Runner) finish(result *Result) {
	r.logger.Info("scenario finished",
		"scenario", result.Scenario,
		"passed", result.Passed,
		"steps", len(result.Steps),
		"skipped", result.Count(OutcomeSkipped),
		"duration_ms", result.Duration.Milliseconds(),
	)
	for _, o := range r.observers {
		o.ScenarioFinished(result)
	}
}

// buildRequest resolves every placeholder of a step request against st.
func buildRequest(req Request, st *State) (apiclient.Request, error) {
	out := apiclient.Request{Method: req.Method}

	path, err := st.ExpandString(req.Path)
	if err != nil {
		return out, core.NewDefinitionError("cannot resolve request path", err)
	}
	out.Path = path

	if len(req.Query) > 0 {
		out.Query = url.Values{}
		for k, v := range req.Query {
			expanded, err := st.ExpandString(v)
			if err != nil {
				return out, core.NewDefinitionError("cannot resolve query parameter "+k, err)
			}
			out.Query.Set(k, expanded)
		}
	}

	if len(req.Headers) > 0 {
		out.Headers = make(map[string]string, len(req.Headers))
		for k, v := range req.Headers {
			expanded, err := st.ExpandString(v)
			if err != nil {
				return out, core.NewDefinitionError("cannot resolve header "+k, err)
			}
			out.Headers[k] = expanded
		}
	}

	if req.Body != nil {
		body, err := expandBody(req.Body, st)
		if err != nil {
			return out, core.NewDefinitionError("cannot resolve request body", err)
		}
		out.Body = body
	}

	if req.Upload != nil {
		up := *req.Upload
		if up.FileName, err = st.ExpandString(up.FileName); err != nil {
			return out, core.NewDefinitionError("cannot resolve upload file name", err)
		}
		if len(req.Upload.Fields) > 0 {
			up.Fields = make(map[string]string, len(req.Upload.Fields))
			for k, v := range req.Upload.Fields {
				expanded, err := st.ExpandString(v)
				if err != nil {
					return out, core.NewDefinitionError("cannot resolve upload field "+k, err)
				}
				up.Fields[k] = expanded
			}
		}
		out.Upload = &up
	}

	return out, nil
}

// expandBody keeps raw bodies raw: placeholders are substituted as text.
func expandBody(body any, st *State) (any, error) {
	switch b := body.(type) {
	case []byte:
		s, err := st.ExpandString(string(b))
		return []byte(s), err
	case json.RawMessage:
		s, err := st.ExpandString(string(b))
		return json.RawMessage(s), err
	default:
		return st.ExpandValue(body)
	}
}

// capture stores the configured response values in st, in key order.
func capture(paths map[string]string, res *apiclient.Result, st *State) error {
	if len(paths) == 0 {
		return nil
	}
	keys := make([]string, 0, len(paths))
	for k := range paths {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		path := paths[key]
		value := res.Get(path)
		if !value.Exists() {
			return core.NewAssertionError(fmt.Sprintf("cannot capture %s: body field %s not found", key, path), "present", "absent")
		}
		st.Set(key, captureValue(value))
	}
	return nil
}

// annotate prefixes a failure with the expectation that produced it.
func annotate(a Assertion, err error) error {
	var he *core.HarnessError
	if errors.As(err, &he) {
		annotated := *he
		annotated.Message = fmt.Sprintf("%s: %s", a, he.Message)
		return &annotated
	}
	return core.NewUnexpectedError(fmt.Sprintf("%s: %v", a, err))
}

// Validate checks that sc is executable: it has a name and steps, every request has a
// method and path, and every placeholder refers to an initial var or to a value captured
// by an earlier step of the same scenario.
func (sc *Scenario) Validate() error {
	if sc.Name == "" {
		return core.NewDefinitionError("scenario has no name", nil)
	}
	if len(sc.Steps) == 0 {
		return core.NewDefinitionError(fmt.Sprintf("scenario %q has no steps", sc.Name), nil)
	}

	known := make(map[string]struct{}, len(sc.Vars))
	for k := range sc.Vars {
		known[k] = struct{}{}
	}

	for i := range sc.Steps {
		step := &sc.Steps[i]
		if step.Request.Method == "" || step.Request.Path == "" {
			return core.NewDefinitionError(fmt.Sprintf("scenario %q step %d (%s) needs a method and a path", sc.Name, i+1, step.Name), nil)
		}
		for _, ref := range step.references() {
			if _, ok := known[ref]; !ok {
				return core.NewDefinitionError(
					fmt.Sprintf("scenario %q step %q uses {{%s}} before any earlier step captures it", sc.Name, step.Name, ref), nil)
			}
		}
		for key := range step.Capture {
			known[key] = struct{}{}
		}
	}
	return nil
}

func (s *Step) references() []string {
	seen := make(map[string]struct{})
	add := func(keys []string) {
		for _, k := range keys {
			seen[k] = struct{}{}
		}
	}

	add(placeholders(s.Request.Path))
	add(placeholders(s.Request.Query))
	add(placeholders(s.Request.Headers))
	switch b := s.Request.Body.(type) {
	case []byte:
		add(placeholders(string(b)))
	case json.RawMessage:
		add(placeholders(string(b)))
	default:
		add(placeholders(b))
	}
	if s.Request.Upload != nil {
		add(placeholders(s.Request.Upload.FileName))
		add(placeholders(s.Request.Upload.Fields))
	}
	for _, a := range s.Expect {
		if p, ok := a.(interface{ Placeholders() []string }); ok {
			add(p.Placeholders())
		}
	}

	refs := make([]string, 0, len(seen))
	for k := range seen {
		refs = append(refs, k)
	}
	sort.Strings(refs)
	return refs
}
