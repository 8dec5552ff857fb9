// Package behave reads behaviour scenarios: submissions with their tests
// and the verdict the judge is expected to reach.
package behave

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/programme-lv/judge/internal/judge"
	"github.com/programme-lv/judge/internal/langs"
	"github.com/programme-lv/judge/internal/sandbox"
	"github.com/programme-lv/judge/internal/verdict"
)

// SpecTest is a single test case in the behaviour file
type SpecTest struct {
	In  string `toml:"in"`
	Ans string `toml:"ans"`
}

// SpecRequest represents a request block inside a scenario entry
type SpecRequest struct {
	LangID string     `toml:"lang_id"`
	Code   string     `toml:"code"`
	Tests  []SpecTest `toml:"tests"`
	Limits SpecLimits `toml:"limits"`
}

// SpecLimits describes resource limits for a scenario request
type SpecLimits struct {
	CpuMs  int64 `toml:"cpu_ms"`
	WallMs int64 `toml:"wall_ms"`
	RamKiB int64 `toml:"ram_kib"`
}

// SpecTestVerdict represents an expected verdict for a test result
type SpecTestVerdict struct {
	Verdict string `toml:"verdict"`
}

// SpecExpect describes the expected verdict, the first failing test and,
// optionally, the verdict of every test that runs
type SpecExpect struct {
	Verdict     string            `toml:"verdict"`
	FailingTest int               `toml:"failing_test"`
	TestResults []SpecTestVerdict `toml:"test_results"`
}

// specSuite maps to [[scenarios]] entries. The request is written as an
// array-of-table, so we model it as a slice and use the first element.
type specSuite struct {
	Description string        `toml:"description"`
	RequestAOT  []SpecRequest `toml:"request"`
	Expect      SpecExpect    `toml:"expect"`
}

type specRoot struct {
	Suites []specSuite `toml:"scenarios"`
}

// Case is a runnable scenario converted from TOML
type Case struct {
	Name       string
	Submission judge.Submission
	Tests      []judge.TestCase
	Expect     Expectation
}

type Expectation struct {
	Verdict verdict.Verdict
	// FailingTest is zero when every test should pass.
	FailingTest int
	Tests       []verdict.Verdict
}

// File is a parsed behaviour file. Languages holds the profiles declared
// with [[languages]] entries next to the scenarios; it is empty when the
// file declares none.
type File struct {
	Cases     []Case
	Languages []langs.Profile
}

// Parse reads a behaviour TOML file and converts it to runnable cases
func Parse(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read behaviour file: %w", err)
	}
	f, err := ParseBytes(data)
	if err != nil {
		return File{}, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

func ParseBytes(data []byte) (File, error) {
	var root specRoot
	if err := toml.Unmarshal(data, &root); err != nil {
		return File{}, fmt.Errorf("failed to parse TOML: %w", err)
	}
	registry, err := langs.Parse(data)
	if err != nil {
		return File{}, err
	}

	f := File{Languages: registry.List()}
	for i, suite := range root.Suites {
		c, err := suite.toCase()
		if err != nil {
			return File{}, fmt.Errorf("scenario %d (%s): %w", i+1, suite.Description, err)
		}
		f.Cases = append(f.Cases, c)
	}
	return f, nil
}

func (s specSuite) toCase() (Case, error) {
	if len(s.RequestAOT) == 0 {
		return Case{}, fmt.Errorf("scenario entry is missing request block")
	}
	req := s.RequestAOT[0]
	if req.LangID == "" {
		return Case{}, fmt.Errorf("request is missing lang_id")
	}

	// Apply limits with sensible defaults if not provided
	cpuMs := req.Limits.CpuMs
	if cpuMs == 0 {
		cpuMs = 2000
	}
	ramKiB := req.Limits.RamKiB
	if ramKiB == 0 {
		ramKiB = 256 * 1024
	}

	c := Case{
		Name: s.Description,
		Submission: judge.Submission{
			Code:       req.Code,
			LanguageID: req.LangID,
			Limits: sandbox.Limits{
				CPUTime:     time.Duration(cpuMs) * time.Millisecond,
				WallTime:    time.Duration(req.Limits.WallMs) * time.Millisecond,
				MemoryBytes: ramKiB * 1024,
			},
		},
		Expect: Expectation{FailingTest: s.Expect.FailingTest},
	}
	for i, t := range req.Tests {
		c.Tests = append(c.Tests, judge.TestCase{Ordinal: i + 1, Input: t.In, Expected: t.Ans})
	}

	var err error
	if c.Expect.Verdict, err = verdict.Parse(s.Expect.Verdict); err != nil {
		return Case{}, fmt.Errorf("expect: %w", err)
	}
	for _, tv := range s.Expect.TestResults {
		v, err := verdict.Parse(tv.Verdict)
		if err != nil {
			return Case{}, fmt.Errorf("expect test_results: %w", err)
		}
		c.Expect.Tests = append(c.Expect.Tests, v)
	}
	return c, nil
}
