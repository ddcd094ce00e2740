package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
)

// Printer renders a Summary for humans.
type Printer struct {
	out   io.Writer
	green *color.Color
	red   *color.Color
	faint *color.Color
	bold  *color.Color
}

// NewPrinter creates a Printer writing to out. Colors are emitted only when colorize is true.
func NewPrinter(out io.Writer, colorize bool) *Printer {
	p := &Printer{
		out:   out,
		green: color.New(color.FgGreen),
		red:   color.New(color.FgRed),
		faint: color.New(color.Faint),
		bold:  color.New(color.Bold),
	}
	for _, c := range []*color.Color{p.green, p.red, p.faint, p.bold} {
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Print writes one line per scenario, then diagnostics for every failure, then totals.
func (p *Printer) Print(s *Summary) {
	_, _ = p.bold.Fprintf(p.out, "Contract run %s against %s\n\n", s.RunID, s.BaseURL)

	for _, r := range s.Results {
		mark, c := "✓", p.green
		if !r.Passed {
			mark, c = "✗", p.red
		}
		_, _ = c.Fprintf(p.out, "  %s %s", mark, r.Name)
		_, _ = p.faint.Fprintf(p.out, " (%d steps, %s)\n", r.Steps, (time.Duration(r.DurationMs) * time.Millisecond).String())
	}

	if len(s.Failures) > 0 {
		_, _ = fmt.Fprintln(p.out)
		_, _ = p.bold.Fprintln(p.out, "Failures:")
		for _, f := range s.Failures {
			p.printFailure(f)
		}
	}

	_, _ = fmt.Fprintln(p.out)
	totals := fmt.Sprintf("%d scenarios: %d passed, %d failed | steps: %d passed, %d failed, %d skipped | %dms",
		s.Scenarios, s.PassedScenarios, s.FailedScenarios, s.PassedSteps, s.FailedSteps, s.SkippedSteps, s.DurationMs)
	if s.Passed() {
		_, _ = p.green.Fprintln(p.out, totals)
	} else {
		_, _ = p.red.Fprintln(p.out, totals)
	}
}

func (p *Printer) printFailure(f Failure) {
	_, _ = p.red.Fprintf(p.out, "\n  %s", f.Scenario)
	if f.Step != "" {
		_, _ = p.red.Fprintf(p.out, " > %s", f.Step)
	}
	_, _ = fmt.Fprintln(p.out)

	if f.Method != "" {
		_, _ = p.faint.Fprintf(p.out, "    %s %s -> %d\n", f.Method, f.Path, f.Status)
	}
	_, _ = fmt.Fprintf(p.out, "    %s: %s\n", f.ErrorType, f.Message)
	if f.Expected != "" || f.Actual != "" {
		_, _ = fmt.Fprintf(p.out, "    expected: %s\n", f.Expected)
		_, _ = fmt.Fprintf(p.out, "    actual:   %s\n", f.Actual)
	}
	for _, d := range f.Details {
		_, _ = fmt.Fprintf(p.out, "    - %s\n", strings.ReplaceAll(d, "\n", "\n      "))
	}
}
