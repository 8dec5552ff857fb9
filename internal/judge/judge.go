// Package judge runs a submission against an ordered set of tests and
// decides a single verdict for it.
package judge

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/programme-lv/judge/internal/langs"
	"github.com/programme-lv/judge/internal/sandbox"
	"github.com/programme-lv/judge/internal/verdict"
)

// Executor compiles a submission once and runs the build per test.
// *sandbox.Engine implements it.
type Executor interface {
	Resolve(languageID string) (langs.Profile, error)
	Compile(ctx context.Context, code, languageID string) (*sandbox.Build, sandbox.ExecutionOutcome, error)
	Run(ctx context.Context, b *sandbox.Build, input string, limits sandbox.Limits) sandbox.ExecutionOutcome
	Release(b *sandbox.Build)
}

type Submission struct {
	Code       string
	LanguageID string
	Limits     sandbox.Limits
}

type TestCase struct {
	Ordinal  int
	Input    string
	Expected string
}

// TestReport is kept for every test that was actually run.
type TestReport struct {
	Ordinal   int
	Verdict   verdict.Verdict
	CPUTime   time.Duration
	WallTime  time.Duration
	MemoryKiB int64
}

type Result struct {
	Verdict verdict.Verdict
	// FailingOrdinal is the first test that was not accepted.
	FailingOrdinal *int
	Tests          []TestReport
	Compile        *sandbox.ExecutionOutcome
	// Message explains CompileError and InternalError verdicts.
	Message string
}

type Judge struct {
	exec       Executor
	log        *slog.Logger
	systemInfo string
}

func New(exec Executor, log *slog.Logger) *Judge {
	if log == nil {
		log = slog.Default()
	}
	return &Judge{exec: exec, log: log, systemInfo: SystemInfo()}
}

// Judge compiles the submission once and runs the tests in ordinal order,
// stopping at the first test that is not accepted. Every outcome of the
// submission is a verdict; the error is only returned for an unsupported
// language or invalid limits, which are rejected before any event is sent.
func (j *Judge) Judge(ctx context.Context, sub Submission, tests []TestCase, gath ResultGatherer) (Result, error) {
	if gath == nil {
		gath = noopGatherer{}
	}
	limits, err := sub.Limits.Normalize()
	if err != nil {
		return Result{}, err
	}
	if _, err := j.exec.Resolve(sub.LanguageID); err != nil {
		return Result{}, err
	}
	log := j.log.With("lang", sub.LanguageID)

	gath.StartJob(j.systemInfo)

	tests = slices.Clone(tests)
	slices.SortStableFunc(tests, func(a, b TestCase) int { return cmp.Compare(a.Ordinal, b.Ordinal) })
	if err := checkTests(tests); err != nil {
		return j.internalError(log, gath, err), nil
	}

	gath.StartCompile()
	build, compiled, err := j.exec.Compile(ctx, sub.Code, sub.LanguageID)
	if err != nil {
		return j.internalError(log, gath, err), nil
	}
	gath.FinishCompile(&compiled)

	switch {
	case compiled.Kind == sandbox.CompileError:
		log.Info("compilation failed")
		gath.CompileError(compiled.Message)
		gath.FinishJob(verdict.CompileError, nil)
		return Result{Verdict: verdict.CompileError, Compile: &compiled, Message: compiled.Message}, nil
	case build == nil:
		res := j.internalError(log, gath, fmt.Errorf("compilation: %s", compiled.Message))
		res.Compile = &compiled
		return res, nil
	}
	defer j.exec.Release(build)

	res := Result{Verdict: verdict.Accepted, Compile: &compiled}
	for i, test := range tests {
		gath.ReachTest(test.Ordinal, test.Input, test.Expected)
		out := j.exec.Run(ctx, build, test.Input, limits)
		v := verdict.Evaluate(out, test.Expected)
		gath.FinishTest(test.Ordinal, v, &out)
		res.Tests = append(res.Tests, TestReport{
			Ordinal:   test.Ordinal,
			Verdict:   v,
			CPUTime:   out.CPUTime,
			WallTime:  out.WallTime,
			MemoryKiB: out.MemoryKiB,
		})
		log.Debug("test finished", "test", test.Ordinal, "verdict", v)

		if v == verdict.Accepted {
			continue
		}
		res.Verdict = v
		res.FailingOrdinal = &test.Ordinal
		if v == verdict.InternalError {
			res.Message = out.Message
			log.Error("internal error while testing", "test", test.Ordinal, "error", out.Message)
			gath.InternalError(out.Message)
		}
		for _, rest := range tests[i+1:] {
			gath.IgnoreTest(rest.Ordinal)
		}
		break
	}

	gath.FinishJob(res.Verdict, res.FailingOrdinal)
	log.Info("judged", "verdict", res.Verdict, "tests", len(res.Tests))
	return res, nil
}

func (j *Judge) internalError(log *slog.Logger, gath ResultGatherer, err error) Result {
	log.Error("judging failed", "error", err)
	gath.InternalError(err.Error())
	gath.FinishJob(verdict.InternalError, nil)
	return Result{Verdict: verdict.InternalError, Message: err.Error()}
}

func checkTests(tests []TestCase) error {
	if len(tests) == 0 {
		return errors.New("no tests to run")
	}
	for i := 1; i < len(tests); i++ {
		if tests[i].Ordinal == tests[i-1].Ordinal {
			return fmt.Errorf("duplicate test ordinal %d", tests[i].Ordinal)
		}
	}
	return nil
}
