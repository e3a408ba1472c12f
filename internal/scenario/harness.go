package scenario

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/danielpatrickdp/ecc-analyzer/internal/asil"
	"github.com/danielpatrickdp/ecc-analyzer/internal/block"
	"github.com/danielpatrickdp/ecc-analyzer/internal/layout"
	"github.com/danielpatrickdp/ecc-analyzer/internal/logging"
	"github.com/danielpatrickdp/ecc-analyzer/internal/system"
)

// #region run

// Run builds the scenario's layout, analyzes it and compares the metrics
// with the expectation. Construction and load failures land in Result.Err.
func Run(s Scenario) Result {
	res := Result{Scenario: s.Name, Expected: s.Expected}

	var root block.Block
	var err error
	if s.Layout != nil {
		root, err = block.FromConfig(*s.Layout)
	} else {
		root, err = layout.Load(s.LayoutFile)
	}
	if err != nil {
		res.Err = fmt.Errorf("scenario %s: %w", s.Name, err)
		return res
	}

	if res.LayoutHash, err = logging.HashLayout(root.Config()); err != nil {
		res.Err = fmt.Errorf("scenario %s: %w", s.Name, err)
		return res
	}

	sys := system.New(s.Name, s.TotalFIT)
	if err := sys.Configure(root); err != nil {
		res.Err = fmt.Errorf("scenario %s: %w", s.Name, err)
		return res
	}
	m, err := sys.RunAnalysis()
	if err != nil {
		res.Err = fmt.Errorf("scenario %s: %w", s.Name, err)
		return res
	}
	res.Metrics = m
	res.Diffs = Compare(s.Expected, m)
	return res
}

// RunAll runs scenarios on up to workers goroutines. Results keep the input
// order. The only error returned is ctx's.
func RunAll(ctx context.Context, scenarios []Scenario, workers int) ([]Result, error) {
	if workers < 1 {
		workers = 1
	}
	results := make([]Result, len(scenarios))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range scenarios {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = Run(scenarios[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// #endregion run

// #region compare

// Compare lists every expected value that m does not reproduce.
func Compare(exp Expected, m asil.Metrics) []string {
	tol := exp.Tolerance
	if tol == 0 {
		tol = DefaultTolerance
	}
	var diffs []string
	if exp.Verdict != m.Verdict {
		diffs = append(diffs, fmt.Sprintf("verdict: want %q, got %q", exp.Verdict, m.Verdict))
	}
	check := func(field string, want *float64, got float64) {
		if want != nil && !scalar.EqualWithinAbs(*want, got, tol) {
			diffs = append(diffs, fmt.Sprintf("%s: want %.6f, got %.6f", field, *want, got))
		}
	}
	check("spfm", exp.SPFM, m.SPFM)
	check("lfm", exp.LFM, m.LFM)
	check("residual_fit", exp.ResidualFIT, m.ResidualFIT)
	return diffs
}

// Summarize computes aggregate stats from results.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch {
		case r.Err != nil:
			s.Errors++
		case len(r.Diffs) > 0:
			s.Diverge++
		default:
			s.Matches++
		}
	}
	return s
}

// Report prints a comparison table and summary to w and returns the
// Summary.
func Report(w io.Writer, results []Result) Summary {
	fmt.Fprintf(w, "%-20s| %-26s| %-26s| %s\n", "Scenario", "Expected", "Computed", "Match")
	fmt.Fprintf(w, "%-20s+%-27s+%-27s+%s\n",
		"--------------------", "---------------------------", "---------------------------", "------")

	for _, r := range results {
		got := r.Metrics.Verdict
		match := "OK"
		switch {
		case r.Err != nil:
			got, match = "-", "ERROR"
		case len(r.Diffs) > 0:
			match = "DIFF"
		}
		fmt.Fprintf(w, "%-20s| %-26s| %-26s| %s\n", r.Scenario, r.Expected.Verdict, got, match)
		if r.Err != nil {
			fmt.Fprintf(w, "    %v\n", r.Err)
		}
		for _, d := range r.Diffs {
			fmt.Fprintf(w, "    %s\n", d)
		}
	}

	s := Summarize(results)
	fmt.Fprintf(w, "\nSummary: %d total, %d match, %d diverge, %d error\n", s.Total, s.Matches, s.Diverge, s.Errors)
	return s
}

// #endregion compare
