package respbuilder

import (
	"time"

	"github.com/programme-lv/judge/api"
	"github.com/programme-lv/judge/internal/gatherer"
	"github.com/programme-lv/judge/internal/sandbox"
	"github.com/programme-lv/judge/internal/verdict"
)

// Builder gathers execution events and builds a complete api.ExecResponse.
type Builder struct {
	evalUuid   string
	systemInfo string

	started  time.Time
	finished *time.Time

	// compilation
	compileResult api.CompileResult

	// tests
	testResults []api.TestResult

	// job status
	status       api.ExecStatus
	verdict      verdict.Verdict
	failingTest  *int64
	errorMessage *string
}

func New(evalUuid string) *Builder {
	return &Builder{
		evalUuid: evalUuid,
		started:  time.Now(),
		status:   api.Success,
	}
}

// StartJob implements judge.ResultGatherer.
func (b *Builder) StartJob(systemInfo string) {
	b.systemInfo = systemInfo
}

// StartCompile implements judge.ResultGatherer.
func (b *Builder) StartCompile() {}

// FinishCompile implements judge.ResultGatherer.
func (b *Builder) FinishCompile(out *sandbox.ExecutionOutcome) {
	if out == nil {
		return
	}
	b.compileResult.Success = out.Kind == sandbox.Success
	if !b.compileResult.Success && out.Message != "" {
		msg := out.Message
		b.compileResult.Error = &msg
	}
	cpu := out.CPUTime.Milliseconds()
	wall := out.WallTime.Milliseconds()
	mem := out.MemoryKiB
	b.compileResult.CpuMillis = &cpu
	b.compileResult.WallMillis = &wall
	b.compileResult.MemoryKiBytes = &mem
}

// ReachTest implements judge.ResultGatherer.
func (b *Builder) ReachTest(ordinal int, input, answer string) {}

// IgnoreTest implements judge.ResultGatherer.
func (b *Builder) IgnoreTest(ordinal int) {
	// Represent ignored test as a result with no runtime data
	b.testResults = append(b.testResults, api.TestResult{TestId: int64(ordinal)})
}

// FinishTest implements judge.ResultGatherer.
func (b *Builder) FinishTest(ordinal int, v verdict.Verdict, out *sandbox.ExecutionOutcome) {
	tr := api.TestResult{TestId: int64(ordinal), Verdict: string(v)}
	if data := gatherer.RuntimeData(out, "", api.MaxRuntimeDataHeight, api.MaxRuntimeDataWidth); data != nil {
		tr.CpuMillis = &data.CpuMillis
		tr.WallMillis = &data.WallMillis
		tr.MemoryKiBytes = &data.MemoryKiBytes
		tr.ExitSignal = data.ExitSignal
		if out.ExitCode != nil {
			tr.ExitCode = &data.ExitCode
		}
		if data.Stdout != "" {
			tr.Stdout = &data.Stdout
		}
		if data.Stderr != "" {
			tr.Stderr = &data.Stderr
		}
	}
	b.testResults = append(b.testResults, tr)
}

// CompileError implements judge.ResultGatherer.
func (b *Builder) CompileError(msg string) {
	b.status = api.CompileError
	b.errorMessage = &msg
}

// InternalError implements judge.ResultGatherer.
func (b *Builder) InternalError(msg string) {
	b.status = api.InternalError
	b.errorMessage = &msg
}

// FinishJob implements judge.ResultGatherer.
func (b *Builder) FinishJob(v verdict.Verdict, failing *int) {
	now := time.Now()
	b.finished = &now
	b.verdict = v
	b.failingTest = gatherer.TestID(failing)
}

// Response builds the api.ExecResponse from gathered data.
func (b *Builder) Response() api.ExecResponse {
	start := b.started.Format(time.RFC3339)
	finish := start
	total := int64(0)
	if b.finished != nil {
		finish = b.finished.Format(time.RFC3339)
		total = b.finished.Sub(b.started).Milliseconds()
	}
	return api.ExecResponse{
		EvalUuid:     b.evalUuid,
		Status:       b.status,
		Verdict:      string(b.verdict),
		FailingTest:  b.failingTest,
		Compilation:  b.compileResult,
		TestResults:  b.testResults,
		ErrorMessage: b.errorMessage,
		StartTime:    start,
		FinishTime:   finish,
		TotalTimeMs:  total,
		SystemInfo: func() *string {
			if b.systemInfo == "" {
				return nil
			}
			v := b.systemInfo
			return &v
		}(),
	}
}
