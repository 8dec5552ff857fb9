package judge_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/programme-lv/judge/internal/judge"
	"github.com/programme-lv/judge/internal/judge/mocks"
	"github.com/programme-lv/judge/internal/langs"
	"github.com/programme-lv/judge/internal/sandbox"
	"github.com/programme-lv/judge/internal/verdict"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// fakeExecutor answers every input with the output of respond.
type fakeExecutor struct {
	compile    sandbox.ExecutionOutcome
	resolveErr error
	err        error
	respond    func(input string) sandbox.ExecutionOutcome
	compiles   int
	runs       []string
	released   int
}

func (f *fakeExecutor) Resolve(languageID string) (langs.Profile, error) {
	if f.resolveErr != nil {
		return langs.Profile{}, f.resolveErr
	}
	return langs.Profile{ID: languageID}, nil
}

func (f *fakeExecutor) Compile(_ context.Context, _, languageID string) (*sandbox.Build, sandbox.ExecutionOutcome, error) {
	f.compiles++
	if f.err != nil {
		return nil, sandbox.ExecutionOutcome{}, f.err
	}
	out := f.compile
	if out.Kind == "" {
		out.Kind = sandbox.Success
	}
	if out.Kind != sandbox.Success {
		return nil, out, nil
	}
	return &sandbox.Build{}, out, nil
}

func (f *fakeExecutor) Run(_ context.Context, _ *sandbox.Build, input string, _ sandbox.Limits) sandbox.ExecutionOutcome {
	f.runs = append(f.runs, input)
	return f.respond(input)
}

func (f *fakeExecutor) Release(*sandbox.Build) { f.released++ }

// adder prints the sum of two integers.
func adder(input string) sandbox.ExecutionOutcome {
	var a, b int
	if _, err := fmt.Sscan(input, &a, &b); err != nil {
		return sandbox.ExecutionOutcome{Kind: sandbox.RuntimeError}
	}
	return sandbox.ExecutionOutcome{Kind: sandbox.Success, Stdout: fmt.Sprintf("%d\n", a+b), CPUTime: time.Millisecond}
}

func submission() judge.Submission {
	return judge.Submission{
		Code:       "print(sum(map(int, input().split())))",
		LanguageID: "py",
		Limits:     sandbox.Limits{CPUTime: time.Second, MemoryBytes: 256 << 20},
	}
}

func TestJudgeAccepted(t *testing.T) {
	exec := &fakeExecutor{respond: adder}
	tests := []judge.TestCase{
		{Ordinal: 2, Input: "10 20\n", Expected: "30\n"},
		{Ordinal: 1, Input: "3 4\n", Expected: "7"},
	}

	res, err := judge.New(exec, nil).Judge(context.Background(), submission(), tests, nil)
	require.NoError(t, err)

	assert.Equal(t, verdict.Accepted, res.Verdict)
	assert.Nil(t, res.FailingOrdinal)
	require.Len(t, res.Tests, 2)
	assert.Equal(t, 1, res.Tests[0].Ordinal)
	assert.Equal(t, 2, res.Tests[1].Ordinal)
	assert.Equal(t, []string{"3 4\n", "10 20\n"}, exec.runs)
	assert.Equal(t, 1, exec.compiles)
	assert.Equal(t, 1, exec.released)
}

func TestJudgeCompileErrorRunsNothing(t *testing.T) {
	exec := &fakeExecutor{
		compile: sandbox.ExecutionOutcome{Kind: sandbox.CompileError, Message: "main.cpp:1: expected ';'"},
		respond: adder,
	}
	tests := []judge.TestCase{{Ordinal: 1, Input: "1 1", Expected: "2"}}

	res, err := judge.New(exec, nil).Judge(context.Background(), submission(), tests, nil)
	require.NoError(t, err)

	assert.Equal(t, verdict.CompileError, res.Verdict)
	assert.Equal(t, "main.cpp:1: expected ';'", res.Message)
	assert.Nil(t, res.FailingOrdinal)
	assert.Empty(t, res.Tests)
	assert.Empty(t, exec.runs)
}

func TestJudgeStopsAtFirstFailure(t *testing.T) {
	exec := &fakeExecutor{respond: adder}
	tests := []judge.TestCase{
		{Ordinal: 1, Input: "1 2", Expected: "3"},
		{Ordinal: 2, Input: "2 2", Expected: "5"},
		{Ordinal: 3, Input: "3 3", Expected: "6"},
	}

	res, err := judge.New(exec, nil).Judge(context.Background(), submission(), tests, nil)
	require.NoError(t, err)

	assert.Equal(t, verdict.WrongAnswer, res.Verdict)
	require.NotNil(t, res.FailingOrdinal)
	assert.Equal(t, 2, *res.FailingOrdinal)
	assert.Len(t, res.Tests, 2)
	assert.Equal(t, []string{"1 2", "2 2"}, exec.runs)
}

func TestJudgeExecutionVerdicts(t *testing.T) {
	for kind, want := range map[sandbox.OutcomeKind]verdict.Verdict{
		sandbox.RuntimeError:        verdict.RuntimeError,
		sandbox.TimeLimitExceeded:   verdict.TimeLimitExceeded,
		sandbox.MemoryLimitExceeded: verdict.MemoryLimitExceeded,
		sandbox.InternalError:       verdict.InternalError,
	} {
		t.Run(string(kind), func(t *testing.T) {
			exec := &fakeExecutor{respond: func(string) sandbox.ExecutionOutcome {
				return sandbox.ExecutionOutcome{Kind: kind, Message: "boom"}
			}}
			tests := []judge.TestCase{{Ordinal: 1}, {Ordinal: 2}}

			res, err := judge.New(exec, nil).Judge(context.Background(), submission(), tests, nil)
			require.NoError(t, err)
			assert.Equal(t, want, res.Verdict)
			require.NotNil(t, res.FailingOrdinal)
			assert.Equal(t, 1, *res.FailingOrdinal)
			assert.Len(t, exec.runs, 1)
		})
	}
}

func TestJudgeCallerErrors(t *testing.T) {
	exec := &fakeExecutor{resolveErr: fmt.Errorf("%w: %q", langs.ErrUnsupportedLanguage, "cobol"), respond: adder}
	tests := []judge.TestCase{{Ordinal: 1}}

	_, err := judge.New(exec, nil).Judge(context.Background(), submission(), tests, nil)
	require.ErrorIs(t, err, langs.ErrUnsupportedLanguage)
	assert.Zero(t, exec.compiles)

	sub := submission()
	sub.Limits.MemoryBytes = 0
	_, err = judge.New(&fakeExecutor{respond: adder}, nil).Judge(context.Background(), sub, tests, nil)
	require.ErrorIs(t, err, sandbox.ErrInvalidLimits)
}

func TestJudgeInternalErrors(t *testing.T) {
	tests := map[string]struct {
		exec  *fakeExecutor
		tests []judge.TestCase
	}{
		"no tests": {
			exec: &fakeExecutor{respond: adder},
		},
		"duplicate ordinals": {
			exec:  &fakeExecutor{respond: adder},
			tests: []judge.TestCase{{Ordinal: 1}, {Ordinal: 1}},
		},
		"compiler infrastructure": {
			exec:  &fakeExecutor{err: errors.New("disk full"), respond: adder},
			tests: []judge.TestCase{{Ordinal: 1}},
		},
		"compile outcome without build": {
			exec: &fakeExecutor{
				compile: sandbox.ExecutionOutcome{Kind: sandbox.InternalError, Message: "no workspace"},
				respond: adder,
			},
			tests: []judge.TestCase{{Ordinal: 1}},
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			res, err := judge.New(tt.exec, nil).Judge(context.Background(), submission(), tt.tests, nil)
			require.NoError(t, err)
			assert.Equal(t, verdict.InternalError, res.Verdict)
			assert.NotEmpty(t, res.Message)
			assert.Empty(t, tt.exec.runs)
		})
	}
}

func TestJudgeStreamsEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	gath := mocks.NewMockResultGatherer(ctrl)
	exec := &fakeExecutor{respond: adder}
	tests := []judge.TestCase{
		{Ordinal: 1, Input: "1 2", Expected: "3"},
		{Ordinal: 2, Input: "2 2", Expected: "5"},
		{Ordinal: 3, Input: "3 3", Expected: "6"},
	}

	failing := 2
	gomock.InOrder(
		gath.EXPECT().StartJob(gomock.Any()),
		gath.EXPECT().StartCompile(),
		gath.EXPECT().FinishCompile(gomock.Any()),
		gath.EXPECT().ReachTest(1, "1 2", "3"),
		gath.EXPECT().FinishTest(1, verdict.Accepted, gomock.Any()),
		gath.EXPECT().ReachTest(2, "2 2", "5"),
		gath.EXPECT().FinishTest(2, verdict.WrongAnswer, gomock.Any()),
		gath.EXPECT().IgnoreTest(3),
		gath.EXPECT().FinishJob(verdict.WrongAnswer, &failing),
	)

	_, err := judge.New(exec, nil).Judge(context.Background(), submission(), tests, gath)
	require.NoError(t, err)
}

func TestJudgeUnsupportedLanguageSendsNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	gath := mocks.NewMockResultGatherer(ctrl)
	exec := &fakeExecutor{resolveErr: fmt.Errorf("%w: %q", langs.ErrUnsupportedLanguage, "cobol"), respond: adder}

	for _, tests := range [][]judge.TestCase{nil, {{Ordinal: 1}}} {
		res, err := judge.New(exec, nil).Judge(context.Background(), submission(), tests, gath)
		require.ErrorIs(t, err, langs.ErrUnsupportedLanguage)
		assert.Empty(t, res.Verdict)
	}
	assert.Zero(t, exec.compiles)
}

func TestJudgeDefaultCompileOutcome(t *testing.T) {
	ctrl := gomock.NewController(t)
	gath := mocks.NewMockResultGatherer(ctrl)
	exec := &fakeExecutor{respond: adder}

	gomock.InOrder(
		gath.EXPECT().StartJob(gomock.Any()),
		gath.EXPECT().StartCompile(),
		gath.EXPECT().FinishCompile(gomock.Cond(func(out *sandbox.ExecutionOutcome) bool {
			return out.Kind == sandbox.Success
		})),
		gath.EXPECT().ReachTest(1, "1 1", "2"),
		gath.EXPECT().FinishTest(1, verdict.Accepted, gomock.Any()),
		gath.EXPECT().FinishJob(verdict.Accepted, nil),
	)

	res, err := judge.New(exec, nil).Judge(context.Background(), submission(),
		[]judge.TestCase{{Ordinal: 1, Input: "1 1", Expected: "2"}}, gath)
	require.NoError(t, err)
	assert.Equal(t, verdict.Accepted, res.Verdict)
	assert.Equal(t, 1, exec.released)
}

func TestJudgeStreamsCompileError(t *testing.T) {
	ctrl := gomock.NewController(t)
	gath := mocks.NewMockResultGatherer(ctrl)
	exec := &fakeExecutor{
		compile: sandbox.ExecutionOutcome{Kind: sandbox.CompileError, Message: "syntax error"},
		respond: adder,
	}

	gomock.InOrder(
		gath.EXPECT().StartJob(gomock.Any()),
		gath.EXPECT().StartCompile(),
		gath.EXPECT().FinishCompile(gomock.Any()),
		gath.EXPECT().CompileError("syntax error"),
		gath.EXPECT().FinishJob(verdict.CompileError, nil),
	)

	_, err := judge.New(exec, nil).Judge(context.Background(), submission(),
		[]judge.TestCase{{Ordinal: 1}}, gath)
	require.NoError(t, err)
}

func TestCPUModel(t *testing.T) {
	path := t.TempDir() + "/cpuinfo"
	require.NoError(t, writeFile(path, "processor\t: 0\nmodel name\t: Test CPU @ 3.00GHz\nflags\t: fpu\n"))
	assert.Equal(t, "Test CPU @ 3.00GHz", judge.CPUModel(path))
	assert.Empty(t, judge.CPUModel(t.TempDir()+"/missing"))
	assert.True(t, strings.Contains(judge.SystemInfo(), "cpus"))
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}
