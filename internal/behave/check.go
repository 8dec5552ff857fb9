package behave

import (
	"context"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/programme-lv/judge/internal/judge"
)

// Check lists every way res differs from the expectation.
func (c Case) Check(res judge.Result) []string {
	var diffs []string
	if res.Verdict != c.Expect.Verdict {
		diffs = append(diffs, fmt.Sprintf("verdict: expected %s, got %s", c.Expect.Verdict.Name(), res.Verdict.Name()))
	}

	failing := 0
	if res.FailingOrdinal != nil {
		failing = *res.FailingOrdinal
	}
	if c.Expect.FailingTest != 0 && failing != c.Expect.FailingTest {
		diffs = append(diffs, fmt.Sprintf("failing test: expected %d, got %d", c.Expect.FailingTest, failing))
	}

	if len(c.Expect.Tests) > 0 {
		if len(res.Tests) != len(c.Expect.Tests) {
			diffs = append(diffs, fmt.Sprintf("tests run: expected %d, got %d", len(c.Expect.Tests), len(res.Tests)))
		}
		for i := 0; i < min(len(res.Tests), len(c.Expect.Tests)); i++ {
			if got, want := res.Tests[i].Verdict, c.Expect.Tests[i]; got != want {
				diffs = append(diffs, fmt.Sprintf("test %d: expected %s, got %s", res.Tests[i].Ordinal, want, got))
			}
		}
	}
	return diffs
}

// Report is the outcome of one case.
type Report struct {
	Case    Case
	Result  judge.Result
	Skipped bool
	Err     error
	Diffs   []string
}

func (r Report) Passed() bool {
	return !r.Skipped && r.Err == nil && len(r.Diffs) == 0
}

// Run judges every case in order. Cases whose language is not in
// available are skipped; a nil set runs everything.
func Run(ctx context.Context, j *judge.Judge, cases []Case, available mapset.Set[string], gath func(Case) judge.ResultGatherer) []Report {
	reports := make([]Report, 0, len(cases))
	for _, c := range cases {
		r := Report{Case: c}
		if available != nil && !available.Contains(c.Submission.LanguageID) {
			r.Skipped = true
			reports = append(reports, r)
			continue
		}
		var g judge.ResultGatherer
		if gath != nil {
			g = gath(c)
		}
		r.Result, r.Err = j.Judge(ctx, c.Submission, c.Tests, g)
		if r.Err == nil {
			r.Diffs = c.Check(r.Result)
		}
		reports = append(reports, r)
	}
	return reports
}
