package judge

import (
	"github.com/programme-lv/judge/internal/sandbox"
	"github.com/programme-lv/judge/internal/verdict"
)

//go:generate mockgen -source=gatherer.go -destination=mocks/gatherer.go -package=mocks

// ResultGatherer receives the progress of one judging job as it happens.
// Tests are identified by their ordinal.
type ResultGatherer interface {
	StartJob(systemInfo string)

	StartCompile()
	FinishCompile(out *sandbox.ExecutionOutcome)

	ReachTest(ordinal int, input, answer string)
	IgnoreTest(ordinal int)
	FinishTest(ordinal int, v verdict.Verdict, out *sandbox.ExecutionOutcome)

	CompileError(msg string)
	InternalError(msg string)
	FinishJob(v verdict.Verdict, failing *int)
}

type noopGatherer struct{}

func (noopGatherer) StartJob(string)                                            {}
func (noopGatherer) StartCompile()                                              {}
func (noopGatherer) FinishCompile(*sandbox.ExecutionOutcome)                    {}
func (noopGatherer) ReachTest(int, string, string)                              {}
func (noopGatherer) IgnoreTest(int)                                             {}
func (noopGatherer) FinishTest(int, verdict.Verdict, *sandbox.ExecutionOutcome) {}
func (noopGatherer) CompileError(string)                                        {}
func (noopGatherer) InternalError(string)                                       {}
func (noopGatherer) FinishJob(verdict.Verdict, *int)                            {}
