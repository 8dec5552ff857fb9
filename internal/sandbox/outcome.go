package sandbox

import "time"

type OutcomeKind string

const (
	Success             OutcomeKind = "success"
	CompileError        OutcomeKind = "compile_error"
	RuntimeError        OutcomeKind = "runtime_error"
	TimeLimitExceeded   OutcomeKind = "time_limit_exceeded"
	MemoryLimitExceeded OutcomeKind = "memory_limit_exceeded"
	InternalError       OutcomeKind = "internal_error"
)

// ExecutionOutcome is what one ExecutionRequest produced.
type ExecutionOutcome struct {
	Kind OutcomeKind

	Stdout          string
	StdoutTruncated bool
	Stderr          string

	// ExitCode is set when the process exited on its own, Signal when it
	// was killed. Neither is set if the process never ran.
	ExitCode *int
	Signal   *int

	CPUTime   time.Duration
	WallTime  time.Duration
	MemoryKiB int64

	CtxSwitchesVoluntary int64
	CtxSwitchesForced    int64
	OOMKilled            bool

	// Message carries compiler diagnostics for CompileError and the cause
	// for InternalError.
	Message string
}

func internalOutcome(err error) ExecutionOutcome {
	return ExecutionOutcome{Kind: InternalError, Message: err.Error()}
}
