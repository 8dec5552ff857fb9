package natsgath

import (
	"log/slog"

	"github.com/programme-lv/judge/api"
	"github.com/programme-lv/judge/internal/gatherer"
	"github.com/programme-lv/judge/internal/sandbox"
	"github.com/programme-lv/judge/internal/verdict"
)

type natsGatherer struct {
	gatherer.JobErrors

	nc       Publisher
	inbox    string
	evalUuid string
	log      *slog.Logger

	input string
}

func (s *natsGatherer) StartJob(systemInfo string) {
	s.send(api.NewStartJob(s.evalUuid, systemInfo))
}

func (s *natsGatherer) StartCompile() {
	s.send(api.NewStartCompile(s.evalUuid))
}

// Compiler output is allowed twice the space of a test's output.
func (s *natsGatherer) FinishCompile(out *sandbox.ExecutionOutcome) {
	s.send(api.NewFinishCompile(
		s.evalUuid,
		gatherer.RuntimeData(out, "", api.MaxRuntimeDataHeight*2, api.MaxRuntimeDataWidth*2),
	))
}

func (s *natsGatherer) ReachTest(ordinal int, input, answer string) {
	s.input = input
	s.send(api.NewReachTest(
		s.evalUuid,
		int64(ordinal),
		gatherer.TrimPtr(input, api.MaxRuntimeDataHeight, api.MaxRuntimeDataWidth),
		gatherer.TrimPtr(answer, api.MaxRuntimeDataHeight, api.MaxRuntimeDataWidth),
	))
}

func (s *natsGatherer) IgnoreTest(ordinal int) {
	s.send(api.NewIgnoreTest(s.evalUuid, int64(ordinal)))
}

func (s *natsGatherer) FinishTest(ordinal int, v verdict.Verdict, out *sandbox.ExecutionOutcome) {
	s.send(api.NewFinishTest(
		s.evalUuid,
		int64(ordinal),
		string(v),
		gatherer.RuntimeData(out, s.input, api.MaxRuntimeDataHeight, api.MaxRuntimeDataWidth),
	))
	s.input = ""
}

func (s *natsGatherer) FinishJob(v verdict.Verdict, failing *int) {
	s.send(s.FinishMessage(s.evalUuid, v, failing))
}
